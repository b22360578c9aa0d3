package models

import "time"

// Status is the server-side scoping state of a conversation.
type Status string

const (
	StatusActive  Status = "active"
	StatusWaiting Status = "waiting"
	StatusClosed  Status = "closed"
)

// Priority of a support conversation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Conversation is a support thread between one participant and the support
// staff. The server owns it; the client holds an eventually consistent copy
// whose summary fields are updated last-write-wins as messages arrive.
type Conversation struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Status          Status    `json:"status"`
	Priority        Priority  `json:"priority"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ChatStats is the aggregate view shown on a support dashboard.
type ChatStats struct {
	Active      int `json:"active"`
	Waiting     int `json:"waiting"`
	Closed      int `json:"closed"`
	TotalUnread int `json:"total_unread"`
}
