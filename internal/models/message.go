package models

import (
	"encoding/json"
	"time"
)

// Message is a chat message. ID is globally unique and is the dedup key when
// the same message arrives via both the REST history and the push channel.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderRole     Role      `json:"sender_role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Read           bool      `json:"read"`
}

// RawMessage is the wire shape of a message. Older backends send the read
// flag as "is_read"; newer ones as "read". Normalization happens here, at the
// boundary, and the ambiguous shape never travels further.
type RawMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderRole     string    `json:"sender_role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Read           *bool     `json:"read"`
	IsRead         *bool     `json:"is_read"`
}

// Normalize converts the wire shape into the canonical Message. When both
// read flags are present "read" wins; when neither is, the message is unread.
func (r RawMessage) Normalize() Message {
	read := false
	switch {
	case r.Read != nil:
		read = *r.Read
	case r.IsRead != nil:
		read = *r.IsRead
	}
	return Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		SenderRole:     ParseRole(r.SenderRole),
		Content:        r.Content,
		Timestamp:      r.Timestamp,
		Read:           read,
	}
}

// UnwrapList accepts either an enveloped list {"data":[...]} or a bare JSON
// array. Any other shape normalizes to nil.
func UnwrapList(raw []byte) []json.RawMessage {
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}
	return nil
}

// DecodeMessages decodes a message list payload, normalizing each entry.
// Entries that fail to decode are skipped.
func DecodeMessages(raw []byte) []Message {
	items := UnwrapList(raw)
	msgs := make([]Message, 0, len(items))
	for _, item := range items {
		var rm RawMessage
		if err := json.Unmarshal(item, &rm); err != nil {
			continue
		}
		msgs = append(msgs, rm.Normalize())
	}
	return msgs
}

// DecodeConversations decodes a conversation list payload.
func DecodeConversations(raw []byte) []Conversation {
	items := UnwrapList(raw)
	convs := make([]Conversation, 0, len(items))
	for _, item := range items {
		var c Conversation
		if err := json.Unmarshal(item, &c); err != nil {
			continue
		}
		convs = append(convs, c)
	}
	return convs
}
