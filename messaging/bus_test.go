package messaging

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBusDispatchOrder(t *testing.T) {
	b := NewBus(testLogger())

	var order []int
	b.On("ev", func(any) { order = append(order, 1) })
	b.On("ev", func(any) { order = append(order, 2) })
	b.On("ev", func(any) { order = append(order, 3) })

	b.Emit("ev", nil)
	assert.Equal(t, []int{1, 2, 3}, order, "handlers must run in registration order")

	b.Emit("ev", nil)
	assert.Equal(t, []int{1, 2, 3, 1, 2, 3}, order)
}

func TestBusPanickingHandler(t *testing.T) {
	b := NewBus(testLogger())

	var after bool
	b.On("ev", func(any) { panic("boom") })
	b.On("ev", func(any) { after = true })

	assert.NotPanics(t, func() { b.Emit("ev", nil) })
	assert.True(t, after, "handlers after a panicking one must still run")
}

func TestBusCancel(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		b := NewBus(testLogger())
		var calls int
		sub := b.On("ev", func(any) { calls++ })

		sub.Cancel()
		sub.Cancel()
		b.Emit("ev", nil)
		assert.Zero(t, calls)
	})

	t.Run("does not affect other subscribers", func(t *testing.T) {
		b := NewBus(testLogger())
		var first, second int
		s1 := b.On("ev", func(any) { first++ })
		b.On("ev", func(any) { second++ })

		s1.Cancel()
		b.Emit("ev", nil)
		assert.Zero(t, first)
		assert.Equal(t, 1, second)
	})

	t.Run("nil subscription", func(t *testing.T) {
		var sub *Subscription
		assert.NotPanics(t, func() { sub.Cancel() })
	})
}

func TestBusSameHandlerMultipleEvents(t *testing.T) {
	b := NewBus(testLogger())

	var calls int
	fn := func(any) { calls++ }
	b.On("a", fn)
	b.On("b", fn)

	b.Emit("a", nil)
	b.Emit("b", nil)
	assert.Equal(t, 2, calls)
}

func TestBusPayloadDelivery(t *testing.T) {
	b := NewBus(testLogger())

	var got any
	b.On(EventNewMessage, func(payload any) { got = payload })
	b.Emit(EventNewMessage, MessageEvent{Message: Message{ID: 12, Content: "salut"}})

	ev, ok := got.(MessageEvent)
	assert.True(t, ok)
	assert.Equal(t, 12, ev.Message.ID)
	assert.Equal(t, "salut", ev.Message.Content)
}
