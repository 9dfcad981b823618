package messaging

import (
	"context"
	"log/slog"

	"github.com/Ahmeddev23/permini-auto-ecole-sub001/messaging/rest"
)

// DeliveryRoute names the path a delivery took.
type DeliveryRoute int

const (
	// RouteLive means the frame went over the live transport.
	RouteLive DeliveryRoute = iota
	// RouteFallback means the operation used the REST path.
	RouteFallback
)

// String returns the string representation of a DeliveryRoute.
func (r DeliveryRoute) String() string {
	if r == RouteFallback {
		return "fallback"
	}
	return "live"
}

// DeliveryResult is the single decision point callers get back from the
// adapter: which route was taken, whether it failed, and for a failed send
// the original content so the caller can restore the user's input.
type DeliveryResult struct {
	Route   DeliveryRoute
	Message Message
	Content string
	Err     error
}

// Failed reports whether the delivery failed.
func (r DeliveryResult) Failed() bool {
	return r.Err != nil
}

// DeliveryAdapter sends messages and read receipts exactly once, choosing
// the live transport when it is open and the REST fallback otherwise. The
// route is locked in when the operation starts and never re-evaluated
// mid-flight, so a transport state change cannot cause a double send.
type DeliveryAdapter struct {
	client *Client
	api    *rest.Client
	store  *ConversationStore
	unread *UnreadReconciler
	logger *slog.Logger
}

// NewDeliveryAdapter wires the adapter to its collaborators.
func NewDeliveryAdapter(client *Client, api *rest.Client, store *ConversationStore, unread *UnreadReconciler, logger *slog.Logger) *DeliveryAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryAdapter{
		client: client,
		api:    api,
		store:  store,
		unread: unread,
		logger: logger,
	}
}

// SendMessage appends the message optimistically, then delivers it over
// whichever route is available right now. A live send that loses the race
// with a disconnect falls back to REST; the store's id-based dedup absorbs
// the echo in every branch. A failed fallback leaves the optimistic entry in
// place without retrying.
func (a *DeliveryAdapter) SendMessage(ctx context.Context, counterpartyID int, content string) DeliveryResult {
	optimistic := a.store.AppendOptimistic(counterpartyID, content)

	if a.client.IsConnected() {
		err := a.client.SendMessage(ctx, counterpartyID, content)
		if err == nil {
			return DeliveryResult{Route: RouteLive, Message: optimistic}
		}
		if !IsNotConnected(err) {
			return DeliveryResult{Route: RouteLive, Message: optimistic, Content: content, Err: err}
		}
		// Transport dropped between the check and the write; the frame never
		// left, so the fallback cannot duplicate it.
		a.logger.Info("live send raced a disconnect, using fallback", "counterparty", counterpartyID)
	}

	confirmed, err := a.api.SendDirectMessage(ctx, counterpartyID, content)
	if err != nil {
		return DeliveryResult{
			Route:   RouteFallback,
			Message: optimistic,
			Content: content,
			Err:     WrapError(ErrorFallbackFailed, "send direct message", err),
		}
	}
	msg := messageFromREST(*confirmed)
	a.store.Apply(msg)
	return DeliveryResult{Route: RouteFallback, Message: msg}
}

// MarkRead zeroes the local counter immediately (the user's intent is known
// without a round trip), then reports the read over the available route.
func (a *DeliveryAdapter) MarkRead(ctx context.Context, counterpartyID int) DeliveryResult {
	a.unread.MarkRead(counterpartyID)

	if a.client.IsConnected() {
		err := a.client.SendMarkRead(ctx, counterpartyID)
		if err == nil {
			return DeliveryResult{Route: RouteLive}
		}
		if !IsNotConnected(err) {
			return DeliveryResult{Route: RouteLive, Err: err}
		}
	}

	if err := a.api.MarkRead(ctx, counterpartyID); err != nil {
		return DeliveryResult{
			Route: RouteFallback,
			Err:   WrapError(ErrorFallbackFailed, "mark read", err),
		}
	}
	return DeliveryResult{Route: RouteFallback}
}

func messageFromREST(m rest.Message) Message {
	return Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		IsRead:      m.IsRead,
	}
}
