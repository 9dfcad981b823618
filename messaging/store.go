package messaging

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConversationStore keeps one duplicate-free, arrival-ordered message list
// per counterparty, merging local optimistic sends, live-transport echoes and
// REST fallback responses. Messaging is strictly 1:1, so the counterparty id
// is the conversation key.
type ConversationStore struct {
	localUserID int
	debounce    time.Duration
	logger      *slog.Logger

	mu            sync.Mutex
	conversations map[int][]Message
	openConvs     map[int]bool
	readTimers    map[int]*time.Timer
	markRead      func(counterpartyID int)
}

// NewConversationStore creates an empty store for the given local user.
func NewConversationStore(localUserID int, debounce time.Duration, logger *slog.Logger) *ConversationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationStore{
		localUserID:   localUserID,
		debounce:      debounce,
		logger:        logger,
		conversations: make(map[int][]Message),
		openConvs:     make(map[int]bool),
		readTimers:    make(map[int]*time.Timer),
	}
}

// SetConversationOpen records whether the conversation is currently on
// screen. Only open conversations auto-mark inbound messages as read;
// background ones just accumulate unread counts until the user opens them.
// Closing also drops any pending mark-read timer.
func (s *ConversationStore) SetConversationOpen(counterpartyID int, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.openConvs[counterpartyID] = true
		return
	}
	delete(s.openConvs, counterpartyID)
	if t, ok := s.readTimers[counterpartyID]; ok {
		t.Stop()
		delete(s.readTimers, counterpartyID)
	}
}

// SetMarkReadFunc installs the callback fired (debounced) when inbound
// messages are inserted. Typically the delivery adapter's MarkRead.
func (s *ConversationStore) SetMarkReadFunc(fn func(counterpartyID int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markRead = fn
}

// AppendOptimistic inserts a locally-originated message at the tail of the
// counterparty's sequence before any server confirmation, and returns it.
// The entry has no server id; LocalID identifies it until Apply replaces it
// with its confirmed counterpart.
func (s *ConversationStore) AppendOptimistic(counterpartyID int, content string) Message {
	m := Message{
		LocalID:     uuid.NewString(),
		SenderID:    s.localUserID,
		RecipientID: counterpartyID,
		Content:     content,
		CreatedAt:   time.Now(),
	}
	s.mu.Lock()
	s.conversations[counterpartyID] = append(s.conversations[counterpartyID], m)
	s.mu.Unlock()
	return m
}

// Apply merges a server-confirmed message into its conversation. It returns
// false when the message is irrelevant (neither side is the local user) or a
// duplicate of an already-stored id. A confirmed echo of one of our own
// optimistic entries replaces that entry in place instead of appending.
// Inserting an inbound message into an open conversation arms the debounced
// mark-read trigger.
func (s *ConversationStore) Apply(m Message) bool {
	counterparty, ok := s.counterpartyOf(m)
	if !ok {
		return false
	}

	s.mu.Lock()
	seq := s.conversations[counterparty]
	if m.Confirmed() {
		for _, existing := range seq {
			if existing.ID == m.ID {
				s.mu.Unlock()
				return false
			}
		}
	}
	inbound := m.SenderID != s.localUserID
	if !inbound && m.Confirmed() {
		if i := indexOptimistic(seq, m.Content); i >= 0 {
			seq[i] = m
			s.mu.Unlock()
			return true
		}
	}
	s.conversations[counterparty] = append(seq, m)
	if inbound {
		s.armReadTimerLocked(counterparty)
	}
	s.mu.Unlock()
	return true
}

// SeedConversation merges a fetched history into the conversation, oldest
// first, under the same id-based dedup as live events. Fallback responses
// and live frames for the same counterparty may interleave in any order.
func (s *ConversationStore) SeedConversation(counterpartyID int, history []Message) {
	for _, m := range history {
		if m.SenderID != counterpartyID && m.RecipientID != counterpartyID {
			continue
		}
		s.Apply(m)
	}
}

// Messages returns a copy of the counterparty's ordered sequence.
func (s *ConversationStore) Messages(counterpartyID int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.conversations[counterpartyID]
	out := make([]Message, len(seq))
	copy(out, seq)
	return out
}

// Clear drops every conversation and pending read timer. Called on session
// teardown so nothing leaks across sessions.
func (s *ConversationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.readTimers {
		t.Stop()
		delete(s.readTimers, id)
	}
	s.conversations = make(map[int][]Message)
	s.openConvs = make(map[int]bool)
}

// counterpartyOf applies the relevance filter: the message must involve the
// local user, and the conversation key is the other side.
func (s *ConversationStore) counterpartyOf(m Message) (int, bool) {
	switch {
	case m.SenderID == s.localUserID:
		return m.RecipientID, true
	case m.RecipientID == s.localUserID:
		return m.SenderID, true
	default:
		return 0, false
	}
}

// armReadTimerLocked (re)starts the per-counterparty debounce so a burst of
// inbound messages produces one mark-read request, not one per message.
// Conversations the user does not have open never arm it.
func (s *ConversationStore) armReadTimerLocked(counterpartyID int) {
	if s.markRead == nil || !s.openConvs[counterpartyID] {
		return
	}
	if t, ok := s.readTimers[counterpartyID]; ok {
		t.Stop()
	}
	s.readTimers[counterpartyID] = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		delete(s.readTimers, counterpartyID)
		fn := s.markRead
		s.mu.Unlock()
		if fn != nil {
			fn(counterpartyID)
		}
	})
}

func indexOptimistic(seq []Message, content string) int {
	for i, m := range seq {
		if !m.Confirmed() && m.LocalID != "" && m.Content == content {
			return i
		}
	}
	return -1
}
