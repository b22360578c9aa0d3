package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/auth"
	"chat-sync/internal/models"
	"chat-sync/internal/rest"
	"chat-sync/internal/session"
)

type APIMock struct {
	mock.Mock
}

func (m *APIMock) ListForRole(ctx context.Context, ident auth.Identity, f rest.Filters) ([]models.Conversation, error) {
	args := m.Called(ctx, ident, f)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

func (m *APIMock) GetConversation(ctx context.Context, id string) (models.Conversation, []models.Message, error) {
	args := m.Called(ctx, id)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	var msgs []models.Message
	if val := args.Get(1); val != nil {
		msgs = val.([]models.Message)
	}
	return conv, msgs, args.Error(2)
}

func (m *APIMock) CreateConversation(ctx context.Context, priority models.Priority) (models.Conversation, error) {
	args := m.Called(ctx, priority)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *APIMock) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *APIMock) SendMessage(ctx context.Context, conversationID, content string) (models.Message, error) {
	args := m.Called(ctx, conversationID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *APIMock) MarkRead(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *APIMock) GetStats(ctx context.Context) (models.ChatStats, error) {
	args := m.Called(ctx)
	var stats models.ChatStats
	if val := args.Get(0); val != nil {
		stats = val.(models.ChatStats)
	}
	return stats, args.Error(1)
}

var _ session.API = (*APIMock)(nil)
