package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Ahmeddev23/permini-auto-ecole-sub001/messaging/internal"

	"github.com/coder/websocket"
)

// Client owns the single live transport connection: dialing, the two-phase
// authentication handshake, the fixed-interval reconnect loop and the fan-out
// of decoded frames onto the bus. At most one non-closed transport exists at
// any time; a generation counter guards against stale read loops touching
// state after their transport was superseded.
type Client struct {
	cfg    Config
	bus    *Bus
	logger *slog.Logger

	mu             sync.Mutex
	state          ConnState
	conn           *internal.Conn
	cancel         context.CancelFunc
	gen            int
	attempts       int
	closed         bool // explicit Disconnect or failed auth; suppresses reconnects
	terminal       bool // next closure is final, no reconnect will follow
	authRetried    bool
	reconnectTimer *time.Timer
	authTimer      *time.Timer
}

// NewClient builds a connection manager publishing onto bus. It does not
// dial; call Connect.
func NewClient(cfg Config, bus *Bus, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		bus:    bus,
		logger: logger,
		state:  StateIdle,
	}
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the connection is open and authenticated.
func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

// Connect opens the live transport. It is idempotent: a no-op while a
// connection attempt or an open connection already exists, which prevents
// duplicate transports. Calling it after the reconnect ceiling was reached
// (or after Disconnect) re-arms the manager with a fresh attempt budget.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateAwaitingAuth, StateOpen:
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.terminal = false
	c.attempts = 0
	c.mu.Unlock()
	return c.dial(ctx)
}

// Disconnect closes the transport with a normal-closure code and suppresses
// any pending reconnect. This is what distinguishes an intentional logout
// from a network drop. The resulting disconnected event is terminal, since
// no reconnect will follow.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.terminal = true
	c.stopTimersLocked()
	conn := c.conn
	if conn == nil {
		prev := c.state
		c.setStateLocked(StateClosed)
		c.mu.Unlock()
		if prev != StateClosed && prev != StateIdle {
			c.bus.Emit(EventDisconnected, DisconnectedEvent{Terminal: true})
		}
		return
	}
	c.setStateLocked(StateClosing)
	c.mu.Unlock()
	// The read loop observes the closure and finishes the transition.
	_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
}

// SendMessage sends a direct message over the live transport. If the
// connection is not open it fails with ErrNotConnected instead of queuing:
// queued frames would silently reorder across a reconnect gap.
func (c *Client) SendMessage(ctx context.Context, recipientID int, content string) error {
	return c.sendFrame(ctx, clientFrame{
		Type:        frameSendMessage,
		RecipientID: recipientID,
		Content:     content,
	})
}

// SendMarkRead reports over the live transport that the conversation with
// senderID has been read. Same no-queue contract as SendMessage.
func (c *Client) SendMarkRead(ctx context.Context, senderID int) error {
	return c.sendFrame(ctx, clientFrame{
		Type:     frameMarkRead,
		SenderID: senderID,
	})
}

func (c *Client) sendFrame(ctx context.Context, f clientFrame) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if state != StateOpen || conn == nil {
		return ErrNotConnected
	}
	if err := conn.WriteJSON(ctx, f); err != nil {
		return WrapError(ErrorTransport, "write "+f.Type+" frame", err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.conn != nil {
		stale := c.conn
		c.conn = nil
		go stale.Close(websocket.StatusNormalClosure, "superseded")
	}
	c.setStateLocked(StateConnecting)
	c.authRetried = false
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}
	ws, _, err := websocket.Dial(dialCtx, c.cfg.WSURL, nil)
	if err != nil {
		c.logger.Warn("transport dial failed", "url", c.cfg.WSURL, "error", err)
		c.scheduleReconnect()
		return WrapError(ErrorTransport, "dial "+c.cfg.WSURL, err)
	}

	conn := internal.NewConn(ws, c.cfg.ReadTimeout, c.cfg.WriteTimeout)
	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "superseded")
		return nil
	}
	c.conn = conn
	c.cancel = cancel
	// Transport is open but identity is unproven: wait for the server's
	// connection_established signal before sending credentials.
	c.setStateLocked(StateAwaitingAuth)
	c.mu.Unlock()

	go c.readLoop(runCtx, conn, gen)
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *internal.Conn, gen int) {
	for {
		data, err := conn.ReadMessage(ctx)
		if err != nil {
			c.handleClosure(gen, err)
			return
		}
		var f serverFrame
		if err := json.Unmarshal(data, &f); err != nil || f.Type == "" {
			// One bad frame must not take down the channel.
			c.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
			continue
		}
		c.handleFrame(&f)
	}
}

func (c *Client) handleFrame(f *serverFrame) {
	switch f.Type {
	case frameConnectionEstablished:
		c.sendAuthenticate()
	case frameAuthenticated:
		c.mu.Lock()
		c.setStateLocked(StateOpen)
		c.attempts = 0
		c.authRetried = false
		c.mu.Unlock()
		c.bus.Emit(EventConnected, ConnectedEvent{})
	case EventError:
		var msg string
		if err := json.Unmarshal(f.Message, &msg); err != nil {
			c.logger.Warn("dropping malformed error frame", "error", err)
			return
		}
		c.logger.Warn("server error frame", "message", msg)
		if msg == authFailedMessage {
			c.handleAuthFailure()
		}
		c.bus.Emit(EventError, ServerError{Message: msg})
	case EventNewMessage, EventMessageSent:
		var m Message
		if err := json.Unmarshal(f.Message, &m); err != nil {
			c.logger.Warn("dropping malformed message frame", "type", f.Type, "error", err)
			return
		}
		c.bus.Emit(f.Type, MessageEvent{Message: m})
	case EventMessagesRead:
		c.bus.Emit(EventMessagesRead, MessagesReadEvent{SenderID: f.SenderID})
	case EventNotificationCreated:
		var n Notification
		if err := json.Unmarshal(f.Notification, &n); err != nil {
			c.logger.Warn("dropping malformed notification frame", "error", err)
			return
		}
		c.bus.Emit(EventNotificationCreated, NotificationEvent{Notification: n})
	default:
		c.logger.Debug("ignoring unknown frame", "type", f.Type)
	}
}

// sendAuthenticate sends the credential frame. If the transport is not ready
// the send is dropped silently; it will be retried when the server's
// connection_established signal is (re)received.
func (c *Client) sendAuthenticate() {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if conn == nil || (state != StateAwaitingAuth && state != StateOpen) {
		c.logger.Debug("credentials not sent, transport not ready", "state", state.String())
		return
	}
	frame := clientFrame{Type: frameAuthenticate, Token: c.cfg.Token}
	if err := conn.WriteJSON(context.Background(), frame); err != nil {
		c.logger.Warn("credential send failed", "error", err)
	}
}

// handleAuthFailure retries the credential send exactly once after a fixed
// delay. A second rejection closes the connection for good; this is not a
// network problem a reconnect could fix.
func (c *Client) handleAuthFailure() {
	c.mu.Lock()
	if !c.authRetried {
		c.authRetried = true
		c.authTimer = time.AfterFunc(c.cfg.AuthRetryDelay, c.sendAuthenticate)
		c.mu.Unlock()
		c.logger.Info("authentication rejected, retrying once", "delay", c.cfg.AuthRetryDelay)
		return
	}
	c.closed = true
	c.terminal = true
	c.stopTimersLocked()
	conn := c.conn
	c.mu.Unlock()
	c.logger.Error("authentication failed after retry, closing")
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "authentication failed")
	}
}

func (c *Client) handleClosure(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		// A newer transport already took over.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	intentional := c.closed || websocket.CloseStatus(err) == websocket.StatusNormalClosure
	if intentional {
		terminal := c.terminal
		c.setStateLocked(StateClosed)
		c.mu.Unlock()
		c.logger.Info("connection closed", "terminal", terminal)
		c.bus.Emit(EventDisconnected, DisconnectedEvent{Terminal: terminal})
		return
	}
	c.mu.Unlock()
	c.logger.Warn("abnormal closure", "error", err)
	c.bus.Emit(EventDisconnected, DisconnectedEvent{})
	c.scheduleReconnect()
}

// scheduleReconnect arms the fixed-interval reconnect timer, or goes
// terminally Closed once the attempt ceiling is reached. The counter resets
// only on successful authentication or an explicit Connect.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.setStateLocked(StateClosed)
		c.mu.Unlock()
		c.logger.Error("reconnect attempts exhausted", "attempts", c.cfg.MaxReconnectAttempts)
		c.bus.Emit(EventDisconnected, DisconnectedEvent{Terminal: true})
		return
	}
	c.attempts++
	attempt := c.attempts
	c.setStateLocked(StateConnecting)
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectInterval, func() {
		_ = c.dial(context.Background())
	})
	c.mu.Unlock()
	c.logger.Info("reconnect scheduled", "attempt", attempt, "interval", c.cfg.ReconnectInterval)
}

func (c *Client) stopTimersLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
}

func (c *Client) setStateLocked(s ConnState) {
	if c.state == s {
		return
	}
	c.logger.Debug("connection state", "from", c.state.String(), "to", s.String())
	c.state = s
}
