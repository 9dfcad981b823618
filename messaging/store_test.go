package messaging

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const localUser = 1

func newTestStore(debounce time.Duration) *ConversationStore {
	return NewConversationStore(localUser, debounce, testLogger())
}

func inboundMsg(id, from int, content string) Message {
	return Message{ID: id, SenderID: from, RecipientID: localUser, Content: content}
}

func TestStoreDedup(t *testing.T) {
	s := newTestStore(time.Hour)

	assert.True(t, s.Apply(inboundMsg(10, 7, "hello")))
	assert.False(t, s.Apply(inboundMsg(10, 7, "hello")), "same id must be discarded")
	assert.True(t, s.Apply(inboundMsg(11, 7, "hello")), "same content, new id is a new message")

	msgs := s.Messages(7)
	require.Len(t, msgs, 2)
	assert.Equal(t, 10, msgs[0].ID)
	assert.Equal(t, 11, msgs[1].ID)
}

func TestStoreDedupRepeatedSequence(t *testing.T) {
	s := newTestStore(time.Hour)

	ids := []int{5, 6, 5, 7, 6, 5, 7, 8}
	for _, id := range ids {
		s.Apply(inboundMsg(id, 7, "x"))
	}

	seen := make(map[int]int)
	for _, m := range s.Messages(7) {
		seen[m.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %d stored %d times", id, n)
	}
	assert.Len(t, seen, 4)
}

func TestStoreOptimisticReplacement(t *testing.T) {
	s := newTestStore(time.Hour)

	local := s.AppendOptimistic(42, "hello")
	assert.False(t, local.Confirmed())
	assert.NotEmpty(t, local.LocalID)

	echo := Message{ID: 101, SenderID: localUser, RecipientID: 42, Content: "hello"}
	assert.True(t, s.Apply(echo))

	msgs := s.Messages(42)
	require.Len(t, msgs, 1, "optimistic entry must be replaced, not duplicated")
	assert.Equal(t, 101, msgs[0].ID)
	assert.Equal(t, "hello", msgs[0].Content)

	// The confirmed echo arriving again is a plain duplicate.
	assert.False(t, s.Apply(echo))
	assert.Len(t, s.Messages(42), 1)
}

func TestStoreRelevanceFilter(t *testing.T) {
	s := newTestStore(time.Hour)

	unrelated := Message{ID: 3, SenderID: 5, RecipientID: 9, Content: "pas pour nous"}
	assert.False(t, s.Apply(unrelated))
	assert.Empty(t, s.Messages(5))
	assert.Empty(t, s.Messages(9))
}

func TestStoreOrdering(t *testing.T) {
	s := newTestStore(time.Hour)

	// Arrival order is kept even when timestamps disagree.
	now := time.Now()
	s.Apply(Message{ID: 2, SenderID: 7, RecipientID: localUser, CreatedAt: now})
	s.Apply(Message{ID: 1, SenderID: 7, RecipientID: localUser, CreatedAt: now.Add(-time.Minute)})

	msgs := s.Messages(7)
	require.Len(t, msgs, 2)
	assert.Equal(t, 2, msgs[0].ID)
	assert.Equal(t, 1, msgs[1].ID)
}

func TestStoreDebouncedMarkRead(t *testing.T) {
	s := newTestStore(30 * time.Millisecond)

	var mu sync.Mutex
	calls := make(map[int]int)
	s.SetMarkReadFunc(func(counterpartyID int) {
		mu.Lock()
		calls[counterpartyID]++
		mu.Unlock()
	})

	s.SetConversationOpen(7, true)
	for i := 1; i <= 5; i++ {
		s.Apply(inboundMsg(i, 7, "burst"))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls[7] > 0
	}, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, calls[7], "a burst must trigger exactly one mark-read")
	mu.Unlock()
}

func TestStoreOutboundDoesNotTriggerMarkRead(t *testing.T) {
	s := newTestStore(10 * time.Millisecond)

	var mu sync.Mutex
	var calls int
	s.SetMarkReadFunc(func(int) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	s.SetConversationOpen(42, true)
	s.AppendOptimistic(42, "hi")
	s.Apply(Message{ID: 9, SenderID: localUser, RecipientID: 42, Content: "hi"})

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()
}

func TestStoreBackgroundConversationNoMarkRead(t *testing.T) {
	s := newTestStore(10 * time.Millisecond)

	var mu sync.Mutex
	var calls int
	s.SetMarkReadFunc(func(int) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	// Inbound messages for a conversation the user never opened must not be
	// marked read behind their back.
	s.Apply(inboundMsg(1, 7, "non lu"))
	s.Apply(inboundMsg(2, 7, "toujours non lu"))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()
	assert.Len(t, s.Messages(7), 2)
}

func TestStoreClosingConversationCancelsMarkRead(t *testing.T) {
	s := newTestStore(30 * time.Millisecond)

	var mu sync.Mutex
	var calls int
	s.SetMarkReadFunc(func(int) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	s.SetConversationOpen(7, true)
	s.Apply(inboundMsg(1, 7, "a"))
	s.SetConversationOpen(7, false)

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, calls, "closing the conversation must drop the pending mark-read")
	mu.Unlock()

	// Once closed, later inbound messages stay unmarked too.
	s.Apply(inboundMsg(2, 7, "b"))
	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()
}

func TestStoreSeedConversation(t *testing.T) {
	s := newTestStore(time.Hour)

	// A live frame lands before the history response.
	s.Apply(inboundMsg(12, 7, "live"))

	s.SeedConversation(7, []Message{
		{ID: 11, SenderID: localUser, RecipientID: 7, Content: "ancien"},
		{ID: 12, SenderID: 7, RecipientID: localUser, Content: "live"},
	})

	msgs := s.Messages(7)
	require.Len(t, msgs, 2)
	seen := map[int]bool{}
	for _, m := range msgs {
		assert.False(t, seen[m.ID])
		seen[m.ID] = true
	}
}

func TestStoreClear(t *testing.T) {
	s := newTestStore(10 * time.Millisecond)

	var mu sync.Mutex
	var calls int
	s.SetMarkReadFunc(func(int) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	s.SetConversationOpen(7, true)
	s.Apply(inboundMsg(1, 7, "a"))
	s.Clear()

	assert.Empty(t, s.Messages(7))
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, calls, "clear must cancel pending mark-read timers")
	mu.Unlock()
}
