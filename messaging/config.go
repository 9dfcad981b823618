package messaging

import "time"

// Config controls how the messaging session connects and behaves.
type Config struct {
	// WSURL is the live transport endpoint, e.g. "wss://host/ws/messaging/".
	WSURL string

	// RESTBaseURL is the base URL of the fallback API, e.g. "https://host/api".
	RESTBaseURL string

	// Token is the externally-managed bearer token. The session only reads
	// it at authentication time; issuance and refresh live elsewhere.
	Token string

	// UserID is the id of the local user. When zero it is derived from the
	// token claims.
	UserID int

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration // 0 disables, the read loop then blocks until close
	WriteTimeout     time.Duration

	// ReconnectInterval is the fixed delay between reconnect attempts after
	// an abnormal closure. Deliberately not exponential.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts caps consecutive reconnects. Past the cap the
	// connection stays closed until Connect is called again.
	MaxReconnectAttempts int

	// AuthRetryDelay is the wait before the single credential re-send after
	// the server reports an authentication failure.
	AuthRetryDelay time.Duration

	// MarkReadDebounce is how long the message store waits before issuing a
	// mark-read for a burst of inbound messages.
	MarkReadDebounce time.Duration
}

// DefaultConfig returns sensible defaults. WSURL, RESTBaseURL and Token must
// still be filled in by the caller.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 5,
		AuthRetryDelay:       time.Second,
		MarkReadDebounce:     500 * time.Millisecond,
	}
}

// Validate reports whether the config can produce a working session.
func (c Config) Validate() error {
	if c.WSURL == "" {
		return WrapError(ErrorInvalidConfig, "WSURL is required", nil)
	}
	if c.RESTBaseURL == "" {
		return WrapError(ErrorInvalidConfig, "RESTBaseURL is required", nil)
	}
	if c.Token == "" && c.UserID == 0 {
		return WrapError(ErrorInvalidConfig, "either Token or UserID is required", nil)
	}
	return nil
}
