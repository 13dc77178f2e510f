package models

import "time"

// Message roles in a consultation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a patient's consultation history.
type Message struct {
	ID        int64     `json:"id"`
	Patient   string    `json:"patient"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
