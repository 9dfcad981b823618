package messaging

// ConnState represents the lifecycle state of the live connection.
type ConnState int

const (
	// StateIdle means no connection has been attempted yet.
	StateIdle ConnState = iota

	// StateConnecting means a transport dial (or reconnect wait) is in progress.
	StateConnecting

	// StateAwaitingAuth means the transport is open but the server has not
	// yet acknowledged our credentials.
	StateAwaitingAuth

	// StateOpen means the connection is authenticated and usable.
	StateOpen

	// StateClosing means an intentional shutdown is in progress.
	StateClosing

	// StateClosed means the connection is down. Terminal after Disconnect or
	// after the reconnect ceiling is reached; Connect re-arms it.
	StateClosed
)

// String returns the string representation of a ConnState.
func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
