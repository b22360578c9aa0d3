package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/models"
)

func msg(id, conv, content string, ts time.Time) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: conv,
		SenderID:       "u2",
		SenderRole:     models.RoleUser,
		Content:        content,
		Timestamp:      ts,
	}
}

func TestUpsertAppendsThenReplacesInPlace(t *testing.T) {
	s := New("me")
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Upsert(msg("m1", "c1", "one", base))
	s.Upsert(msg("m2", "c1", "two", base.Add(time.Minute)))

	updated := msg("m1", "c1", "one", base)
	updated.Read = true
	s.Upsert(updated)

	seq := s.Messages("c1")
	require.Len(t, seq, 2)
	assert.Equal(t, "m1", seq[0].ID)
	assert.True(t, seq[0].Read, "replace must land in place, not reorder")
	assert.Equal(t, "m2", seq[1].ID)
}

func TestUpsertIsIdempotentAcrossSources(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	history := []models.Message{
		msg("m1", "c1", "one", base),
		msg("m2", "c1", "two", base.Add(time.Minute)),
		msg("m3", "c1", "three", base.Add(2*time.Minute)),
	}
	push := msg("m2", "c1", "two", base.Add(time.Minute))

	// REST bulk load first, push second.
	a := New("me")
	a.BulkLoad("c1", history)
	a.Upsert(push)

	// Push first, REST second.
	b := New("me")
	b.Upsert(push)
	b.BulkLoad("c1", history)

	require.Equal(t, a.Messages("c1"), b.Messages("c1"))
	require.Len(t, a.Messages("c1"), 3)
}

func TestBulkLoadReplacesWholesale(t *testing.T) {
	s := New("me")
	base := time.Now().UTC()

	s.Upsert(msg("stale", "c1", "old", base))
	s.BulkLoad("c1", []models.Message{
		msg("m1", "c1", "one", base),
		msg("m2", "c1", "two", base.Add(time.Minute)),
	})

	seq := s.Messages("c1")
	require.Len(t, seq, 2)
	assert.Equal(t, "m1", seq[0].ID)
	assert.Equal(t, "m2", seq[1].ID)
}

func TestPushIntoEmptyConversationUpdatesSummary(t *testing.T) {
	s := New("me")
	s.PutConversation(models.Conversation{ID: "c1", Status: models.StatusActive})
	s.BulkLoad("c1", nil)

	ts := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	s.Upsert(msg("m1", "c1", "hi", ts))

	seq := s.Messages("c1")
	require.Len(t, seq, 1)
	assert.Equal(t, "m1", seq[0].ID)

	conv, ok := s.Conversation("c1")
	require.True(t, ok)
	assert.Equal(t, "hi", conv.LastMessage)
	assert.Equal(t, ts, conv.LastMessageTime)
	assert.Equal(t, 1, conv.UnreadCount)
}

func TestOwnMessagesDoNotCountAsUnread(t *testing.T) {
	s := New("me")
	s.PutConversation(models.Conversation{ID: "c1"})

	mine := msg("m1", "c1", "hello", time.Now())
	mine.SenderID = "me"
	s.Upsert(mine)

	conv, _ := s.Conversation("c1")
	assert.Zero(t, conv.UnreadCount)
}

func TestMarkAllReadIsForwardOnly(t *testing.T) {
	s := New("me")
	s.PutConversation(models.Conversation{ID: "c1", UnreadCount: 2})
	base := time.Now().UTC()
	s.BulkLoad("c1", []models.Message{
		msg("m1", "c1", "one", base),
		msg("m2", "c1", "two", base.Add(time.Second)),
	})

	s.MarkAllRead("c1")

	for _, m := range s.Messages("c1") {
		assert.True(t, m.Read)
	}
	conv, _ := s.Conversation("c1")
	assert.Zero(t, conv.UnreadCount)
}

func TestUnknownConversationGetsStub(t *testing.T) {
	s := New("me")
	s.Upsert(msg("m1", "c9", "surprise", time.Now()))

	conv, ok := s.Conversation("c9")
	require.True(t, ok)
	assert.Equal(t, "surprise", conv.LastMessage)
}

func TestSetConversationsKeepsSequences(t *testing.T) {
	s := New("me")
	s.Upsert(msg("m1", "c1", "one", time.Now()))

	s.SetConversations([]models.Conversation{{ID: "c1"}, {ID: "c2"}})

	require.Len(t, s.Messages("c1"), 1)
	assert.Len(t, s.Conversations(), 2)
}

func TestConversationsSortedByRecency(t *testing.T) {
	s := New("me")
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	s.SetConversations([]models.Conversation{
		{ID: "c1", UpdatedAt: base},
		{ID: "c2", UpdatedAt: base.Add(time.Hour)},
	})

	convs := s.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "c2", convs[0].ID)
}

func TestGroupByDay(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msg("m1", "c1", "a", day1),
		msg("m2", "c1", "b", day1.Add(time.Hour)),
		msg("m3", "c1", "c", day2),
	}

	groups := GroupByDay(msgs)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Messages, 2)
	assert.Equal(t, "m1", groups[0].Messages[0].ID)
	assert.Len(t, groups[1].Messages, 1)
}

func TestEqualTimestampsKeepInsertionOrder(t *testing.T) {
	s := New("me")
	ts := time.Now().UTC()
	s.Upsert(msg("m1", "c1", "first", ts))
	s.Upsert(msg("m2", "c1", "second", ts))

	seq := s.Messages("c1")
	require.Len(t, seq, 2)
	assert.Equal(t, "m1", seq[0].ID)
	assert.Equal(t, "m2", seq[1].ID)
}

func TestReset(t *testing.T) {
	s := New("me")
	s.Upsert(msg("m1", "c1", "one", time.Now()))
	s.Reset()

	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.Messages("c1"))
}
