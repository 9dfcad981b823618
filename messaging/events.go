package messaging

// Event names published on the bus. The frame-derived names match the
// server's type field; EventConnected and EventDisconnected are synthesized
// by the connection manager.
const (
	EventConnected           = "connected"
	EventDisconnected        = "disconnected"
	EventError               = "error"
	EventNewMessage          = "new_message"
	EventMessageSent         = "message_sent"
	EventMessagesRead        = "messages_read"
	EventNotificationCreated = "notification_created"
)

// ConnectedEvent is published once authentication completes.
type ConnectedEvent struct{}

// DisconnectedEvent is published on every closure. Terminal is set when no
// further reconnect will be attempted, so consumers can show a persistent
// offline indicator.
type DisconnectedEvent struct {
	Terminal bool
}

// MessageEvent carries a live message frame, both inbound messages and
// server echoes of our own sends.
type MessageEvent struct {
	Message Message
}

// MessagesReadEvent signals that the conversation with SenderID has been
// read, typically from another tab or device.
type MessagesReadEvent struct {
	SenderID int
}

// NotificationEvent carries a pushed notification.
type NotificationEvent struct {
	Notification Notification
}

// ServerError carries a well-formed server error frame. Transport failures
// never appear here; they are handled inside the connection manager.
type ServerError struct {
	Message string
}
