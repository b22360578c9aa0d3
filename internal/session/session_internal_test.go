package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/auth"
	"chat-sync/internal/models"
	"chat-sync/internal/rest"
	"chat-sync/internal/socket"
	"chat-sync/internal/store"
)

type emit struct {
	event          string
	conversationID string
}

type fakeChannel struct {
	mu    sync.Mutex
	emits []emit
}

func (f *fakeChannel) Emit(event string, payload interface{}) error {
	signal, _ := payload.(models.RoomSignal)
	f.mu.Lock()
	f.emits = append(f.emits, emit{event: event, conversationID: signal.ConversationID})
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Subscribe(owner, event string, fn socket.HandlerFunc) {}
func (f *fakeChannel) UnsubscribeAll(owner string)                         {}

func (f *fakeChannel) signals() []emit {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emit, len(f.emits))
	copy(out, f.emits)
	return out
}

type fakeAPI struct {
	mu            sync.Mutex
	markReadCalls []string
	messageCalls  int
	history       []models.Message
}

func (f *fakeAPI) ListForRole(ctx context.Context, ident auth.Identity, _ rest.Filters) ([]models.Conversation, error) {
	return nil, nil
}

func (f *fakeAPI) GetConversation(ctx context.Context, id string) (models.Conversation, []models.Message, error) {
	return models.Conversation{ID: id}, nil, nil
}

func (f *fakeAPI) CreateConversation(ctx context.Context, priority models.Priority) (models.Conversation, error) {
	return models.Conversation{ID: "new", Priority: priority}, nil
}

func (f *fakeAPI) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	f.mu.Lock()
	f.messageCalls++
	f.mu.Unlock()
	return f.history, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, conversationID, content string) (models.Message, error) {
	return models.Message{ID: "m", ConversationID: conversationID, Content: content}, nil
}

func (f *fakeAPI) MarkRead(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	f.markReadCalls = append(f.markReadCalls, conversationID)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) GetStats(ctx context.Context) (models.ChatStats, error) {
	return models.ChatStats{}, nil
}

func (f *fakeAPI) readCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.markReadCalls)
}

func newTestSession() (*Session, *fakeAPI, *fakeChannel) {
	api := &fakeAPI{}
	ch := &fakeChannel{}
	creds := auth.NewStaticProvider("tok", auth.Identity{UserID: "me", Role: models.RoleUser})
	s := New(api, ch, store.New("me"), creds)
	return s, api, ch
}

func joins(signals []emit, conversationID string) int {
	n := 0
	for _, e := range signals {
		if e.event == models.SignalJoinRoom && e.conversationID == conversationID {
			n++
		}
	}
	return n
}

func TestOpenTwiceEmitsOneJoin(t *testing.T) {
	s, _, ch := newTestSession()

	require.NoError(t, s.Open(context.Background(), "A"))
	require.NoError(t, s.Open(context.Background(), "A"))

	assert.Equal(t, 1, joins(ch.signals(), "A"))
}

func TestOpenGuardHoldsAfterCloseWithinWindow(t *testing.T) {
	s, _, ch := newTestSession()
	s.guardDelay = 200 * time.Millisecond

	require.NoError(t, s.Open(context.Background(), "A"))
	s.Close()
	// Still inside the guard window: the reopen must not race a second join.
	require.NoError(t, s.Open(context.Background(), "A"))

	assert.Equal(t, 1, joins(ch.signals(), "A"))
}

func TestSwitchEmitsLeaveBeforeJoin(t *testing.T) {
	s, _, ch := newTestSession()

	require.NoError(t, s.Open(context.Background(), "A"))
	require.NoError(t, s.Open(context.Background(), "B"))

	var leaveA, joinB = -1, -1
	for i, e := range ch.signals() {
		if e.event == models.SignalLeaveRoom && e.conversationID == "A" {
			leaveA = i
		}
		if e.event == models.SignalJoinRoom && e.conversationID == "B" {
			joinB = i
		}
	}
	require.NotEqual(t, -1, leaveA, "leave A missing")
	require.NotEqual(t, -1, joinB, "join B missing")
	assert.Less(t, leaveA, joinB, "leave A must precede join B")
}

func TestActivePointerFollowsLastOpen(t *testing.T) {
	s, _, _ := newTestSession()

	require.NoError(t, s.Open(context.Background(), "A"))
	require.NoError(t, s.Open(context.Background(), "B"))

	assert.Equal(t, "B", s.View().ActiveID)
}

func TestDebounceCoalescesRapidSchedules(t *testing.T) {
	s, api, _ := newTestSession()
	s.debounce = newReadReceiptDebouncer(30*time.Millisecond, s.flushReadReceipt)

	for i := 0; i < 5; i++ {
		s.debounce.schedule("c1")
	}
	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, 1, api.readCalls())
}

func TestDebounceCancelAll(t *testing.T) {
	s, api, _ := newTestSession()
	s.debounce = newReadReceiptDebouncer(30*time.Millisecond, s.flushReadReceipt)

	s.debounce.schedule("c1")
	s.debounce.schedule("c2")
	s.debounce.cancelAll()
	time.Sleep(120 * time.Millisecond)

	assert.Zero(t, api.readCalls())
}

func TestCloseCancelsPendingReadReceipt(t *testing.T) {
	s, api, _ := newTestSession()
	s.debounce = newReadReceiptDebouncer(50*time.Millisecond, s.flushReadReceipt)

	require.NoError(t, s.Open(context.Background(), "A"))
	s.Close()
	time.Sleep(150 * time.Millisecond)

	assert.Zero(t, api.readCalls())
	assert.Empty(t, s.View().ActiveID)
}

func TestOpenFetchesHistoryIntoStore(t *testing.T) {
	s, api, _ := newTestSession()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	api.history = []models.Message{
		{ID: "m1", ConversationID: "A", Content: "one", Timestamp: base},
		{ID: "m2", ConversationID: "A", Content: "two", Timestamp: base.Add(time.Minute)},
	}

	require.NoError(t, s.Open(context.Background(), "A"))

	v := s.View()
	require.Len(t, v.Messages, 2)
	assert.Equal(t, "m1", v.Messages[0].ID)
}

func TestNewMessageEventUpserts(t *testing.T) {
	s, _, _ := newTestSession()
	s.debounce = newReadReceiptDebouncer(time.Hour, s.flushReadReceipt)
	require.NoError(t, s.Open(context.Background(), "A"))

	payload, err := json.Marshal(map[string]interface{}{
		"id":              "m9",
		"conversation_id": "A",
		"sender_id":       "agent",
		"sender_role":     "moderator",
		"content":         "hello",
		"timestamp":       time.Now().UTC(),
		"is_read":         false,
	})
	require.NoError(t, err)
	s.onNewMessage(payload)

	v := s.View()
	require.Len(t, v.Messages, 1)
	assert.Equal(t, "m9", v.Messages[0].ID)
	assert.Equal(t, models.RoleModerator, v.Messages[0].SenderRole)
}
