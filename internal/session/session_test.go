package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/auth"
	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/rest"
	"chat-sync/internal/session"
	"chat-sync/internal/socket"
	"chat-sync/internal/store"
)

type nopChannel struct{}

func (nopChannel) Emit(event string, payload interface{}) error         { return nil }
func (nopChannel) Subscribe(owner, event string, fn socket.HandlerFunc) {}
func (nopChannel) UnsubscribeAll(owner string)                          {}

func newSession(api session.API, ident auth.Identity) (*session.Session, *store.Store) {
	st := store.New(ident.UserID)
	creds := auth.NewStaticProvider("tok", ident)
	return session.New(api, nopChannel{}, st, creds), st
}

func supportIdent() auth.Identity {
	return auth.Identity{UserID: "agent-1", Role: models.RoleModerator}
}

func TestSendRejectsWhitespaceWithoutNetworkCall(t *testing.T) {
	api := new(mocks.APIMock)
	s, _ := newSession(api, supportIdent())

	_, err := s.Send(context.Background(), "   ")

	require.ErrorIs(t, err, session.ErrEmptyMessage)
	api.AssertExpectations(t)
	api.AssertNotCalled(t, "SendMessage")
}

func TestSendRequiresActiveConversation(t *testing.T) {
	api := new(mocks.APIMock)
	s, _ := newSession(api, supportIdent())

	_, err := s.Send(context.Background(), "hello")

	require.ErrorIs(t, err, session.ErrNoActiveConversation)
	api.AssertNotCalled(t, "SendMessage")
}

func TestSendMergesAuthoritativeResponse(t *testing.T) {
	api := new(mocks.APIMock)
	s, st := newSession(api, supportIdent())

	api.On("GetMessages", mock.Anything, "c1", 50, 0).Return([]models.Message{}, nil).Once()
	api.On("MarkRead", mock.Anything, "c1").Return(nil).Maybe()
	api.On("SendMessage", mock.Anything, "c1", "hello").
		Return(models.Message{ID: "m1", ConversationID: "c1", Content: "hello", SenderID: "agent-1"}, nil).Once()

	require.NoError(t, s.Open(context.Background(), "c1"))
	msg, err := s.Send(context.Background(), "  hello  ")

	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	require.Len(t, st.Messages("c1"), 1)
	api.AssertExpectations(t)
}

func TestSendFailureLeavesNoLocalRow(t *testing.T) {
	api := new(mocks.APIMock)
	s, st := newSession(api, supportIdent())

	api.On("GetMessages", mock.Anything, "c1", 50, 0).Return([]models.Message{}, nil).Once()
	api.On("MarkRead", mock.Anything, "c1").Return(nil).Maybe()
	api.On("SendMessage", mock.Anything, "c1", "hello").
		Return(models.Message{}, assert.AnError).Once()

	require.NoError(t, s.Open(context.Background(), "c1"))
	_, err := s.Send(context.Background(), "hello")

	require.Error(t, err)
	assert.Empty(t, st.Messages("c1"))
	assert.Error(t, s.Err())
	api.AssertExpectations(t)
}

func TestCreateConversationRequiresIdentity(t *testing.T) {
	api := new(mocks.APIMock)
	s, _ := newSession(api, auth.Identity{})

	_, err := s.CreateConversation(context.Background(), models.PriorityHigh)

	require.ErrorIs(t, err, session.ErrNoIdentity)
	api.AssertNotCalled(t, "CreateConversation")
}

func TestCreateConversationOpensWithoutHistoryFetch(t *testing.T) {
	api := new(mocks.APIMock)
	s, st := newSession(api, supportIdent())

	api.On("CreateConversation", mock.Anything, models.PriorityHigh).
		Return(models.Conversation{ID: "new", Priority: models.PriorityHigh}, nil).Once()
	api.On("MarkRead", mock.Anything, "new").Return(nil).Maybe()

	conv, err := s.CreateConversation(context.Background(), models.PriorityHigh)

	require.NoError(t, err)
	assert.Equal(t, "new", conv.ID)
	assert.Equal(t, "new", s.View().ActiveID)
	_, ok := st.Conversation("new")
	assert.True(t, ok)
	// A brand-new conversation has no history to fetch.
	api.AssertNotCalled(t, "GetMessages")
	api.AssertExpectations(t)
}

func TestRefreshStoresRoleScopedList(t *testing.T) {
	api := new(mocks.APIMock)
	s, st := newSession(api, supportIdent())

	api.On("ListForRole", mock.Anything, supportIdent(), rest.Filters{}).
		Return([]models.Conversation{{ID: "c1"}, {ID: "c2"}}, nil).Once()

	require.NoError(t, s.Refresh(context.Background(), rest.Filters{}))
	assert.Len(t, st.Conversations(), 2)
	assert.NoError(t, s.Err())
	api.AssertExpectations(t)
}

func TestRefreshUnauthenticatedResetsWithoutError(t *testing.T) {
	api := new(mocks.APIMock)
	s, st := newSession(api, supportIdent())
	st.SetConversations([]models.Conversation{{ID: "old"}})

	// The loader reports an empty set and no error when logged out.
	api.On("ListForRole", mock.Anything, supportIdent(), rest.Filters{}).
		Return(([]models.Conversation)(nil), nil).Once()

	require.NoError(t, s.Refresh(context.Background(), rest.Filters{}))
	assert.Empty(t, st.Conversations())
	assert.NoError(t, s.Err())
}

func TestRefreshFailureKeepsPreviousList(t *testing.T) {
	api := new(mocks.APIMock)
	s, st := newSession(api, supportIdent())
	st.SetConversations([]models.Conversation{{ID: "old"}})

	api.On("ListForRole", mock.Anything, supportIdent(), rest.Filters{}).
		Return(([]models.Conversation)(nil), assert.AnError).Once()

	require.Error(t, s.Refresh(context.Background(), rest.Filters{}))
	assert.Len(t, st.Conversations(), 1)
	assert.Error(t, s.Err())
}
