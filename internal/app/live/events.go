// internal/app/live/events.go
package live

import "time"

// Inbound is the frame a connected client sends to post a message.
type Inbound struct {
	GroupID string `json:"group_id"`
	Content string `json:"content"`
}

// Event is the frame the server pushes to clients. Message events carry
// group, sender, content, and timestamp; error events carry only the
// reason and go to a single client. SentAt is a pointer so error events
// omit it instead of serializing a zero time.
type Event struct {
	Event    string     `json:"event"`
	GroupID  string     `json:"group_id,omitempty"`
	SenderID string     `json:"sender_id,omitempty"`
	Content  string     `json:"content,omitempty"`
	SentAt   *time.Time `json:"sent_at,omitempty"`
	Message  string     `json:"message,omitempty"`
}

const (
	EventMessage = "message"
	EventError   = "error"
)
