package models

// Push-channel event names consumed by the client.
const (
	EventNewMessage    = "new_message"
	EventUserTyping    = "user_typing"
	EventStoppedTyping = "stopped_typing"
	EventMessagesRead  = "messages_read"
	EventError         = "error"
)

// Push-channel signals emitted by the client.
const (
	SignalJoinRoom  = "join_room"
	SignalLeaveRoom = "leave_room"
)

// RoomSignal is the payload of join/leave signals.
type RoomSignal struct {
	ConversationID string `json:"conversation_id"`
}

// TypingEvent is the payload of typing on/off events. Hooks only: no ordering
// or delivery contract.
type TypingEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// MessagesReadEvent notifies that another participant read a conversation.
type MessagesReadEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}
