// Package messaging is the real-time messaging and notification layer of the
// driving-school platform: one live transport connection per session, an
// event bus fanning server frames out to independent consumers, and shared
// per-counterparty message and unread-counter state kept consistent across
// them.
package messaging

import (
	"context"
	"log/slog"

	"github.com/Ahmeddev23/permini-auto-ecole-sub001/messaging/rest"

	"github.com/golang-jwt/jwt/v5"
)

// Session owns one connected messaging lifecycle: it wires the connection
// manager, bus, stores and delivery adapter together, and tears them all
// down on Close so nothing leaks into the next session. There is no ambient
// global; callers hold the Session and pass it where it is needed.
type Session struct {
	cfg    Config
	logger *slog.Logger

	bus      *Bus
	client   *Client
	api      *rest.Client
	store    *ConversationStore
	unread   *UnreadReconciler
	delivery *DeliveryAdapter

	subs []*Subscription
}

// NewSession validates cfg, derives the local user id when it is not given
// explicitly, and wires all components. It does not connect; call Start.
func NewSession(cfg Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UserID == 0 {
		id, err := userIDFromToken(cfg.Token)
		if err != nil {
			return nil, WrapError(ErrorInvalidConfig, "cannot derive user id from token", err)
		}
		cfg.UserID = id
	}

	s := &Session{
		cfg:    cfg,
		logger: logger,
	}
	s.bus = NewBus(logger)
	s.client = NewClient(cfg, s.bus, logger)
	s.api = rest.NewClient(cfg.RESTBaseURL, cfg.Token)
	s.store = NewConversationStore(cfg.UserID, cfg.MarkReadDebounce, logger)
	s.unread = NewUnreadReconciler(s.api.UnreadCounts, logger)
	s.delivery = NewDeliveryAdapter(s.client, s.api, s.store, s.unread, logger)

	s.store.SetMarkReadFunc(func(counterpartyID int) {
		s.delivery.MarkRead(context.Background(), counterpartyID)
	})
	s.wireEvents()
	return s, nil
}

// wireEvents subscribes the stores to the live frames. Consumers read the
// stores; only the raw connected/disconnected status is meant to be consumed
// straight off the bus.
func (s *Session) wireEvents() {
	s.subs = append(s.subs,
		s.bus.On(EventNewMessage, s.onMessage),
		s.bus.On(EventMessageSent, s.onMessage),
		s.bus.On(EventMessagesRead, func(payload any) {
			ev, ok := payload.(MessagesReadEvent)
			if !ok {
				return
			}
			s.unread.MarkRead(ev.SenderID)
		}),
	)
}

func (s *Session) onMessage(payload any) {
	ev, ok := payload.(MessageEvent)
	if !ok {
		return
	}
	m := ev.Message
	inserted := s.store.Apply(m)
	if inserted && m.SenderID != s.cfg.UserID && m.RecipientID == s.cfg.UserID {
		s.unread.Increment(m.SenderID)
	}
}

// Start connects the live transport and seeds the unread counters from the
// fallback path. A failed seed logs and starts empty; a failed dial is
// already on the reconnect schedule, so neither blocks the session.
func (s *Session) Start(ctx context.Context) {
	_ = s.client.Connect(ctx)
	s.unread.Seed(ctx)
}

// Close disconnects and clears all per-session state.
func (s *Session) Close() {
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.subs = nil
	s.client.Disconnect()
	s.store.Clear()
	s.unread.Clear()
}

// SendMessage delivers a direct message through the adapter.
func (s *Session) SendMessage(ctx context.Context, counterpartyID int, content string) DeliveryResult {
	return s.delivery.SendMessage(ctx, counterpartyID, content)
}

// MarkRead records that the user opened the conversation, locally and
// remotely.
func (s *Session) MarkRead(ctx context.Context, counterpartyID int) DeliveryResult {
	return s.delivery.MarkRead(ctx, counterpartyID)
}

// OpenConversation fetches the history with a counterparty over the fallback
// path, merges it into the store, and marks the conversation read. While the
// conversation stays open, later inbound messages are auto-marked read after
// the debounce instead of accumulating as unread.
func (s *Session) OpenConversation(ctx context.Context, counterpartyID int) ([]Message, error) {
	history, err := s.api.DirectMessages(ctx, counterpartyID)
	if err != nil {
		return nil, WrapError(ErrorFallbackFailed, "fetch direct messages", err)
	}
	s.store.SetConversationOpen(counterpartyID, true)
	msgs := make([]Message, len(history))
	for i, m := range history {
		msgs[i] = messageFromREST(m)
	}
	s.store.SeedConversation(counterpartyID, msgs)
	s.MarkRead(ctx, counterpartyID)
	return s.store.Messages(counterpartyID), nil
}

// CloseConversation records that the conversation surface was dismissed, so
// later inbound messages count as unread again.
func (s *Session) CloseConversation(counterpartyID int) {
	s.store.SetConversationOpen(counterpartyID, false)
}

// Participants lists the users the local user may message.
func (s *Session) Participants(ctx context.Context) ([]Participant, error) {
	list, err := s.api.Participants(ctx)
	if err != nil {
		return nil, WrapError(ErrorFallbackFailed, "fetch participants", err)
	}
	out := make([]Participant, len(list))
	for i, p := range list {
		out[i] = Participant{
			ID:        p.ID,
			Username:  p.Username,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Role:      Role(p.UserType),
			Photo:     p.Photo,
			Online:    p.Online,
		}
	}
	return out, nil
}

// UserID returns the local user's id.
func (s *Session) UserID() int { return s.cfg.UserID }

// Bus exposes the event bus for connected/disconnected status consumers.
func (s *Session) Bus() *Bus { return s.bus }

// Connection exposes the connection manager.
func (s *Session) Connection() *Client { return s.client }

// Store exposes the conversation message store.
func (s *Session) Store() *ConversationStore { return s.store }

// Unread exposes the unread counter reconciler.
func (s *Session) Unread() *UnreadReconciler { return s.unread }

// userIDFromToken extracts the user_id claim without verifying the
// signature; the server is the one that verifies tokens, the client only
// needs its own identity out of the payload.
func userIDFromToken(token string) (int, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, err
	}
	if v, ok := claims["user_id"].(float64); ok {
		return int(v), nil
	}
	return 0, NewError(ErrorInvalidConfig, "token has no user_id claim")
}
