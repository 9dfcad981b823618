package rest

import "time"

// Message is a direct message as returned by the fallback API.
type Message struct {
	ID          int       `json:"id"`
	SenderID    int       `json:"sender_id"`
	RecipientID int       `json:"recipient_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	IsRead      bool      `json:"is_read"`
}

// Participant is a user reachable through messaging.
type Participant struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserType  string `json:"user_type"`
	Photo     string `json:"photo,omitempty"`
	Online    bool   `json:"online,omitempty"`
}

// SendMessageRequest is the body for posting a direct message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ErrorResponse is the API's error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
