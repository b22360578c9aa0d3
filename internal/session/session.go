// Package session is the single entry point composing the sync core: room
// lifecycle, history loading, live event handling, sending, and the
// read-receipt debounce. A UI layer only ever talks to the Session and
// inspects its View for data and error state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-sync/internal/auth"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/rest"
	"chat-sync/internal/socket"
	"chat-sync/internal/store"
	"chat-sync/internal/telemetry"
)

// joinGuardDelay bounds the in-flight guard on open: a second open for the
// same conversation inside this window is a no-op even after the first one
// finished, so legitimately-rapid reopen attempts cannot race on the join
// signal.
const joinGuardDelay = time.Second

var (
	// ErrEmptyMessage rejects a send whose text trims to nothing.
	ErrEmptyMessage = errors.New("session: empty message")
	// ErrNoActiveConversation rejects a send with no conversation open.
	ErrNoActiveConversation = errors.New("session: no active conversation")
	// ErrNoIdentity rejects operations that need a known caller.
	ErrNoIdentity = errors.New("session: caller identity unknown")
)

// API is the REST surface the session depends on. *rest.Client implements it.
type API interface {
	ListForRole(ctx context.Context, ident auth.Identity, f rest.Filters) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id string) (models.Conversation, []models.Message, error)
	CreateConversation(ctx context.Context, priority models.Priority) (models.Conversation, error)
	GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, content string) (models.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	GetStats(ctx context.Context) (models.ChatStats, error)
}

// Channel is the push-channel surface the session depends on.
// *socket.Manager implements it.
type Channel interface {
	Emit(event string, payload interface{}) error
	Subscribe(owner, event string, fn socket.HandlerFunc)
	UnsubscribeAll(owner string)
}

// TypingHook receives typing on/off events. Hooks only: no ordering or
// delivery guarantee.
type TypingHook func(ev models.TypingEvent, typing bool)

// View is the read-only state a UI renders from.
type View struct {
	Conversations []models.Conversation
	ActiveID      string
	Messages      []models.Message
	Loading       bool
	Err           error
}

// Session drives conversation synchronization for one authenticated client.
type Session struct {
	api     API
	channel Channel
	store   *store.Store
	creds   auth.Provider
	owner   string

	mu       sync.Mutex
	active   string
	opening  map[string]bool
	loading  bool
	err      error
	typingFn TypingHook

	historyLimit int
	guardDelay   time.Duration
	debounce     *readReceiptDebouncer
	audit        *telemetry.AuditEmitter
}

// New wires a Session. The store is shared so other surfaces (the admin
// server) can read the same state.
func New(api API, channel Channel, st *store.Store, creds auth.Provider) *Session {
	s := &Session{
		api:          api,
		channel:      channel,
		store:        st,
		creds:        creds,
		owner:        "session-" + uuid.NewString(),
		opening:      make(map[string]bool),
		historyLimit: 50,
		guardDelay:   joinGuardDelay,
	}
	s.debounce = newReadReceiptDebouncer(readReceiptDelay, s.flushReadReceipt)
	return s
}

// Start subscribes the session's push-event handlers.
func (s *Session) Start() {
	s.channel.Subscribe(s.owner, models.EventNewMessage, s.onNewMessage)
	s.channel.Subscribe(s.owner, models.EventMessagesRead, s.onMessagesRead)
	s.channel.Subscribe(s.owner, models.EventUserTyping, func(data json.RawMessage) {
		s.onTyping(data, true)
	})
	s.channel.Subscribe(s.owner, models.EventStoppedTyping, func(data json.RawMessage) {
		s.onTyping(data, false)
	})
}

// Stop leaves the active room, drops timers and subscriptions. The socket
// itself stays up; it belongs to the application, not to one session.
func (s *Session) Stop() {
	s.Close()
	s.debounce.cancelAll()
	s.channel.UnsubscribeAll(s.owner)
}

// SetAudit installs an audit emitter for conversation-level actions.
func (s *Session) SetAudit(emitter *telemetry.AuditEmitter) {
	s.audit = emitter
}

func (s *Session) emitAudit(ctx context.Context, level, action, conversationID, text string) {
	var userID *string
	if ident, ok := s.creds.Identity(); ok {
		userID = &ident.UserID
	}
	s.audit.Emit(ctx, level, action, conversationID, text, userID)
}

// OnTyping installs the typing hook.
func (s *Session) OnTyping(fn TypingHook) {
	s.mu.Lock()
	s.typingFn = fn
	s.mu.Unlock()
}

// Refresh loads the role-scoped conversation list. Unauthenticated (no token
// or 401) is an expected state: the list resets to empty and no error is
// surfaced. Any other failure sets the error state and keeps the previous
// list.
func (s *Session) Refresh(ctx context.Context, f rest.Filters) error {
	ident, _ := s.creds.Identity()

	s.setLoading(true)
	convs, err := s.api.ListForRole(ctx, ident, f)
	s.setLoading(false)

	if err != nil {
		s.setErr(err)
		return err
	}
	s.store.SetConversations(convs)
	s.setErr(nil)
	return nil
}

// Open makes the conversation active: leave the previous room, join the new
// one, fetch history, schedule the read receipt. A no-op when the
// conversation is already active or an open for the same id is in flight.
func (s *Session) Open(ctx context.Context, conversationID string) error {
	return s.open(ctx, conversationID, true)
}

func (s *Session) open(ctx context.Context, conversationID string, fetchHistory bool) error {
	s.mu.Lock()
	if s.active == conversationID || s.opening[conversationID] {
		s.mu.Unlock()
		return nil
	}
	s.opening[conversationID] = true
	prev := s.active
	// The active pointer moves inside this critical section: there is never
	// a window with two active conversations, and last request wins.
	s.active = conversationID
	s.mu.Unlock()

	time.AfterFunc(s.guardDelay, func() {
		s.mu.Lock()
		delete(s.opening, conversationID)
		s.mu.Unlock()
	})

	if prev != "" {
		s.debounce.cancel(prev)
		s.emitRoom(models.SignalLeaveRoom, prev)
	}
	s.emitRoom(models.SignalJoinRoom, conversationID)
	s.emitAudit(ctx, "info", "conversation_open", conversationID, "conversation opened")

	if fetchHistory {
		s.setLoading(true)
		msgs, err := s.api.GetMessages(ctx, conversationID, s.historyLimit, 0)
		s.setLoading(false)
		if err != nil {
			s.setErr(err)
			return err
		}
		s.store.BulkLoad(conversationID, msgs)
		s.setErr(nil)
	}

	s.debounce.schedule(conversationID)
	return nil
}

// Close leaves the active room and clears the pointer.
func (s *Session) Close() {
	s.mu.Lock()
	conversationID := s.active
	s.active = ""
	s.mu.Unlock()

	if conversationID == "" {
		return
	}
	s.debounce.cancel(conversationID)
	s.emitRoom(models.SignalLeaveRoom, conversationID)
	s.emitAudit(context.Background(), "info", "conversation_close", conversationID, "conversation closed")
}

// Send posts a message to the active conversation. The returned message is
// the server-authoritative copy, already merged into the store. Nothing is
// inserted locally before the server confirms: a failed send leaves no
// fabricated row behind.
func (s *Session) Send(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	conversationID := s.active
	s.mu.Unlock()
	if conversationID == "" {
		return models.Message{}, ErrNoActiveConversation
	}

	msg, err := s.api.SendMessage(ctx, conversationID, text)
	if err != nil {
		s.setErr(err)
		s.emitAudit(ctx, "error", "message_send_failed", conversationID, err.Error())
		return models.Message{}, err
	}
	s.store.Upsert(msg)
	return msg, nil
}

// CreateConversation creates a thread and opens it. A brand-new conversation
// has no history, so the open skips the history fetch.
func (s *Session) CreateConversation(ctx context.Context, priority models.Priority) (models.Conversation, error) {
	if _, ok := s.creds.Identity(); !ok {
		return models.Conversation{}, ErrNoIdentity
	}

	conv, err := s.api.CreateConversation(ctx, priority)
	if err != nil {
		s.setErr(err)
		return models.Conversation{}, err
	}
	s.store.PutConversation(conv)
	if err := s.open(ctx, conv.ID, false); err != nil {
		return conv, err
	}
	return conv, nil
}

// Stats proxies the aggregate dashboard counters.
func (s *Session) Stats(ctx context.Context) (models.ChatStats, error) {
	return s.api.GetStats(ctx)
}

// View snapshots the state a UI renders from.
func (s *Session) View() View {
	s.mu.Lock()
	active := s.active
	loading := s.loading
	err := s.err
	s.mu.Unlock()

	v := View{
		Conversations: s.store.Conversations(),
		ActiveID:      active,
		Loading:       loading,
		Err:           err,
	}
	if active != "" {
		v.Messages = s.store.Messages(active)
	}
	return v
}

// Err reports the current error state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ClearErr resets the error state.
func (s *Session) ClearErr() {
	s.setErr(nil)
}

// flushReadReceipt runs when a debounce timer fires. Fire and forget: the
// local flip happens only on acknowledgment and is never rolled back, and a
// failure is logged, not surfaced.
func (s *Session) flushReadReceipt(conversationID string) {
	if err := s.api.MarkRead(context.Background(), conversationID); err != nil {
		observability.IncReadReceipt("error")
		log.Printf("session: mark read for %s failed: %v", conversationID, err)
		return
	}
	observability.IncReadReceipt("ok")
	s.store.MarkAllRead(conversationID)
}

func (s *Session) onNewMessage(data json.RawMessage) {
	var rm models.RawMessage
	if err := json.Unmarshal(data, &rm); err != nil {
		log.Printf("session: dropping malformed message event: %v", err)
		return
	}
	msg := rm.Normalize()
	// Upsert is idempotent by id, so an echo of a message already merged from
	// the send response resolves to the same logical entry.
	s.store.Upsert(msg)

	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active == msg.ConversationID {
		s.debounce.schedule(active)
	}
}

func (s *Session) onMessagesRead(data json.RawMessage) {
	var ev models.MessagesReadEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	// Informational only.
	log.Printf("session: conversation %s read by %s", ev.ConversationID, ev.UserID)
}

func (s *Session) onTyping(data json.RawMessage, typing bool) {
	var ev models.TypingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	s.mu.Lock()
	fn := s.typingFn
	s.mu.Unlock()
	if fn != nil {
		fn(ev, typing)
	}
}

func (s *Session) emitRoom(signal, conversationID string) {
	if err := s.channel.Emit(signal, models.RoomSignal{ConversationID: conversationID}); err != nil {
		log.Printf("session: %s for %s failed: %v", signal, conversationID, err)
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}
