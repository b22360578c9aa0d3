// Package store holds the client's eventually consistent copy of
// conversations and their message sequences. It is the single merge point for
// the two unordered sources feeding that state: REST history pages and
// push-delivered events. All writes go through Upsert, BulkLoad and
// MarkAllRead; nothing else mutates message data.
package store

import (
	"sort"
	"sync"
	"time"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

// Store maps conversation ids to ordered, de-duplicated message sequences.
type Store struct {
	mu            sync.RWMutex
	selfID        string
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
}

// New creates an empty store. selfID identifies the local user so that their
// own messages never inflate unread counts.
func New(selfID string) *Store {
	return &Store{
		selfID:        selfID,
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

// SetConversations replaces the conversation collection wholesale, as after a
// role-scoped list fetch. Message sequences survive: they belong to the
// history/push merge, not to the list loader.
func (s *Store) SetConversations(convs []models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make(map[string]*models.Conversation, len(convs))
	for i := range convs {
		c := convs[i]
		s.conversations[c.ID] = &c
	}
}

// PutConversation inserts or replaces a single conversation.
func (s *Store) PutConversation(conv models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = &conv
}

// BulkLoad replaces one conversation's sequence wholesale with a REST history
// page. msgs must already be in ascending order; the REST layer reverses
// newest-first pages before they get here.
func (s *Store) BulkLoad(conversationID string, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := make([]models.Message, len(msgs))
	copy(seq, msgs)
	s.messages[conversationID] = seq
	observability.IncBulkLoad()

	if len(seq) > 0 {
		s.propagateSummary(seq[len(seq)-1])
	}
}

// Upsert applies a single message from either the send response or a push
// event. Same id already present: replace in place, position preserved.
// Absent: append. This makes history loads and live events safe to interleave
// in either order without duplicates or lost updates.
func (s *Store) Upsert(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.messages[msg.ConversationID]
	for i := range seq {
		if seq[i].ID == msg.ID {
			seq[i] = msg
			observability.IncUpsert("replace")
			s.propagateSummary(msg)
			return
		}
	}
	s.messages[msg.ConversationID] = append(seq, msg)
	observability.IncUpsert("insert")

	if conv, ok := s.conversations[msg.ConversationID]; ok {
		if !msg.Read && msg.SenderID != s.selfID {
			conv.UnreadCount++
		}
	}
	s.propagateSummary(msg)
}

// propagateSummary updates the denormalized summary fields on the parent
// conversation. Last write wins: summary fields are cosmetic, derived from
// message state, and need no strict ordering. Caller holds s.mu.
func (s *Store) propagateSummary(msg models.Message) {
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		// A message can race ahead of the list fetch that would have
		// introduced its conversation. Hold a stub until the list catches up.
		conv = &models.Conversation{
			ID:     msg.ConversationID,
			Status: models.StatusActive,
		}
		s.conversations[msg.ConversationID] = conv
	}
	conv.LastMessage = msg.Content
	conv.LastMessageTime = msg.Timestamp
	conv.UpdatedAt = msg.Timestamp
}

// MarkAllRead flips every message in the conversation to read and resets the
// unread counter. Read flags only ever move forward; there is no rollback.
func (s *Store) MarkAllRead(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.messages[conversationID]
	for i := range seq {
		seq[i].Read = true
	}
	if conv, ok := s.conversations[conversationID]; ok {
		conv.UnreadCount = 0
	}
}

// Messages returns a copy of one conversation's sequence, ascending by
// timestamp with insertion order breaking ties.
func (s *Store) Messages(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq := s.messages[conversationID]
	out := make([]models.Message, len(seq))
	copy(out, seq)
	return out
}

// Conversation returns a copy of one conversation.
func (s *Store) Conversation(id string) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, false
	}
	return *conv, true
}

// Conversations returns a copy of the collection, most recent activity first.
func (s *Store) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, *conv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Reset drops all state, as on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make(map[string]*models.Conversation)
	s.messages = make(map[string][]models.Message)
}

// DayGroup is a display grouping of messages sharing a calendar date.
type DayGroup struct {
	Date     time.Time
	Messages []models.Message
}

// GroupByDay splits an ascending sequence into calendar-date groups. Within a
// group the stored order stands.
func GroupByDay(msgs []models.Message) []DayGroup {
	var groups []DayGroup
	for _, msg := range msgs {
		date := msg.Timestamp.Truncate(24 * time.Hour)
		if n := len(groups); n > 0 && groups[n-1].Date.Equal(date) {
			groups[n-1].Messages = append(groups[n-1].Messages, msg)
			continue
		}
		groups = append(groups, DayGroup{Date: date, Messages: []models.Message{msg}})
	}
	return groups
}
