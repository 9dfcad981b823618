package messaging

import (
	"encoding/json"
	"time"
)

// Client -> server frame types.
const (
	frameAuthenticate = "authenticate"
	frameSendMessage  = "send_message"
	frameMarkRead     = "mark_read"
)

// Server -> client handshake frame types. These stay inside the connection
// manager; the bus carries EventConnected instead.
const (
	frameConnectionEstablished = "connection_established"
	frameAuthenticated         = "authenticated"
)

// authFailedMessage is the literal the server uses to report a rejected
// credential frame.
const authFailedMessage = "Non authentifié"

// clientFrame is the envelope for every frame we send. Fields are flat;
// omitempty keeps each frame down to the fields its type uses.
type clientFrame struct {
	Type        string `json:"type"`
	Token       string `json:"token,omitempty"`
	RecipientID int    `json:"recipient_id,omitempty"`
	SenderID    int    `json:"sender_id,omitempty"`
	Content     string `json:"content,omitempty"`
}

// serverFrame is the envelope for every frame the server sends. Message is
// raw because "error" frames carry a string under the same key that message
// frames use for an object.
type serverFrame struct {
	Type         string          `json:"type"`
	Message      json.RawMessage `json:"message,omitempty"`
	SenderID     int             `json:"sender_id,omitempty"`
	Notification json.RawMessage `json:"notification,omitempty"`
}

// Role is the kind of account a participant holds.
type Role string

const (
	RoleDrivingSchool Role = "driving_school"
	RoleInstructor    Role = "instructor"
	RoleStudent       Role = "student"
)

// Participant is another user the local user can exchange messages with.
// Immutable once fetched; refreshed by bulk re-fetch, never patched.
type Participant struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"user_type"`
	Photo     string `json:"photo,omitempty"`
	Online    bool   `json:"online,omitempty"`
}

// Message is a single direct message between the local user and a
// counterparty. ID is zero for an optimistic entry that the server has not
// confirmed yet; LocalID identifies such entries until confirmation.
type Message struct {
	ID          int       `json:"id"`
	LocalID     string    `json:"-"`
	SenderID    int       `json:"sender_id"`
	RecipientID int       `json:"recipient_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	IsRead      bool      `json:"is_read"`
}

// Confirmed reports whether the message carries a server-assigned id.
func (m Message) Confirmed() bool {
	return m.ID != 0
}

// Notification is a non-chat alert pushed over the live transport.
type Notification struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
