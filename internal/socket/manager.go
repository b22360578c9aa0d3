// Package socket owns the single persistent push-channel connection. One
// Manager is shared by every consumer; the per-owner handler registry keeps
// one consumer's teardown from clobbering another's subscription to the same
// event name.
package socket

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-sync/internal/auth"
	"chat-sync/internal/observability"
)

const (
	reconnectMin = 5 * time.Second
	reconnectMax = 5 * time.Minute
)

// Frame is the wire shape of push-channel traffic in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// HandlerFunc receives the raw payload of one event.
type HandlerFunc func(data json.RawMessage)

type outbound struct {
	event   string
	payload interface{}
}

// Manager maintains the push-channel connection: lazy connect, queued emit
// behind exactly one reconnect, transparent retry on transient drops, and a
// terminal stop on authentication rejection.
type Manager struct {
	wsURL  string
	creds  auth.Provider
	dialer *websocket.Dialer

	mu          sync.Mutex
	conn        *websocket.Conn
	connID      string
	dialing     bool
	closed      bool
	pending     []outbound
	handlers    map[string]map[string]HandlerFunc // event -> owner -> handler
	lastOwned   map[string]string                 // owner -> last event subscribed
	connectedAt time.Time

	writeMu sync.Mutex
}

// NewManager builds a Manager for the given websocket endpoint. The
// credential is read from the provider at every dial, so a rotated token is
// picked up by the next (re)connection without tearing down a live session.
func NewManager(wsURL string, creds auth.Provider) *Manager {
	return &Manager{
		wsURL:     wsURL,
		creds:     creds,
		dialer:    websocket.DefaultDialer,
		handlers:  make(map[string]map[string]HandlerFunc),
		lastOwned: make(map[string]string),
	}
}

// Connect establishes the channel if a credential is present. Calling while
// connected, or while a dial is already in flight, is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.conn != nil || m.dialing {
		m.mu.Unlock()
		return nil
	}
	token := m.creds.Token()
	if token == "" {
		m.mu.Unlock()
		return ErrNoCredential
	}
	m.dialing = true
	m.mu.Unlock()

	err := m.dial(ctx, token)

	m.mu.Lock()
	m.dialing = false
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if err != nil {
		if len(pending) > 0 {
			log.Printf("socket: dropping %d queued emits after failed connect: %v", len(pending), err)
		}
		return err
	}
	for _, out := range pending {
		if emitErr := m.Emit(out.event, out.payload); emitErr != nil {
			log.Printf("socket: flush of queued emit %q failed: %v", out.event, emitErr)
		}
	}
	return nil
}

func (m *Manager) dial(ctx context.Context, token string) error {
	target := m.wsURL
	if u, err := url.Parse(m.wsURL); err == nil {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	conn, resp, err := m.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			log.Printf("socket: authentication rejected at handshake, not retrying")
			m.publishLifecycle("auth_failure", err.Error())
			return ErrAuthFailed
		}
		return err
	}

	connID := newConnID()
	m.mu.Lock()
	m.conn = conn
	m.connID = connID
	m.connectedAt = time.Now()
	m.mu.Unlock()

	observability.SetSocketConnected(true)
	observability.IncSocketEvent("connect")
	m.publishLifecycle("connect", "")
	log.Printf("socket: connected conn_id=%s", connID)

	go m.readLoop(conn)
	return nil
}

// readLoop dispatches inbound frames until the connection drops, then decides
// between reconnecting (transient) and stopping (closed or auth rejection).
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn, err)
			return
		}

		var frame Frame
		if jsonErr := json.Unmarshal(payload, &frame); jsonErr != nil {
			log.Printf("socket: dropping malformed frame: %v", jsonErr)
			continue
		}
		m.dispatch(frame)
	}
}

func (m *Manager) dispatch(frame Frame) {
	observability.IncSocketEvent(frame.Event)

	m.mu.Lock()
	owners := m.handlers[frame.Event]
	snapshot := make([]HandlerFunc, 0, len(owners))
	for _, fn := range owners {
		snapshot = append(snapshot, fn)
	}
	m.mu.Unlock()

	for _, fn := range snapshot {
		fn(frame.Data)
	}
}

func (m *Manager) handleDisconnect(conn *websocket.Conn, cause error) {
	conn.Close()

	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	closed := m.closed
	m.mu.Unlock()

	observability.SetSocketConnected(false)
	observability.IncSocketEvent("disconnect")
	m.publishLifecycle("disconnect", cause.Error())

	if closed || websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	if websocket.IsCloseError(cause, websocket.ClosePolicyViolation) {
		// The server revoked the session: re-dialing with the same credential
		// would loop on the same rejection.
		log.Printf("socket: connection closed for policy violation, not retrying")
		m.emitError(cause)
		return
	}

	log.Printf("socket: connection lost, reconnecting: %v", cause)
	m.emitError(cause)
	go m.reconnectLoop()
}

// reconnectLoop retries with capped exponential backoff and jitter,
// re-reading the credential on every attempt. It stops on success, on Close,
// and on authentication rejection.
func (m *Manager) reconnectLoop() {
	backoff := reconnectMin
	for {
		time.Sleep(backoff + time.Duration(rand.Int63n(int64(backoff/2))))

		m.mu.Lock()
		if m.closed || m.conn != nil {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		observability.IncSocketReconnect()
		err := m.Connect(context.Background())
		if err == nil || err == ErrAuthFailed || err == ErrClosed {
			return
		}
		if err == ErrNoCredential {
			log.Printf("socket: reconnect waiting for credential")
		} else {
			log.Printf("socket: reconnect failed: %v", err)
		}

		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// Emit sends a frame when connected. When not connected the frame is queued
// behind exactly one connect attempt; a failed attempt drops the queue rather
// than retrying forever.
func (m *Manager) Emit(event string, payload interface{}) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	conn := m.conn
	if conn == nil {
		m.pending = append(m.pending, outbound{event: event, payload: payload})
		dialing := m.dialing
		m.mu.Unlock()
		if !dialing {
			go func() {
				if err := m.Connect(context.Background()); err != nil {
					log.Printf("socket: connect for deferred emit failed: %v", err)
				}
			}()
		}
		return nil
	}
	m.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Printf("socket: write error: %v", err)
		return err
	}
	return nil
}

// Subscribe registers a handler for an event under the given owner key.
// Registering again replaces that owner's handler only.
func (m *Manager) Subscribe(owner, event string, fn HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handlers[event]; !ok {
		m.handlers[event] = make(map[string]HandlerFunc)
	}
	m.handlers[event][owner] = fn
	m.lastOwned[owner] = event
}

// Unsubscribe removes the owner's handler for the event. An empty event
// removes whatever the owner last subscribed to.
func (m *Manager) Unsubscribe(owner, event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event == "" {
		event = m.lastOwned[owner]
	}
	if owners, ok := m.handlers[event]; ok {
		delete(owners, owner)
		if len(owners) == 0 {
			delete(m.handlers, event)
		}
	}
	if m.lastOwned[owner] == event {
		delete(m.lastOwned, owner)
	}
}

// UnsubscribeAll removes every handler the owner registered.
func (m *Manager) UnsubscribeAll(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for event, owners := range m.handlers {
		delete(owners, owner)
		if len(owners) == 0 {
			delete(m.handlers, event)
		}
	}
	delete(m.lastOwned, owner)
}

// Connected reports whether the channel is currently up.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Close tears the channel down for good, as at application shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.pending = nil
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

// emitError surfaces a transport failure to subscribers of the error-class
// event instead of throwing across component boundaries.
func (m *Manager) emitError(cause error) {
	payload, err := json.Marshal(map[string]string{"message": cause.Error()})
	if err != nil {
		return
	}
	m.dispatch(Frame{Event: "error", Data: payload})
}

func (m *Manager) publishLifecycle(event, reason string) {
	m.mu.Lock()
	connID := m.connID
	connectedAt := m.connectedAt
	m.mu.Unlock()

	var userID string
	if ident, ok := m.creds.Identity(); ok {
		userID = ident.UserID
	}
	var durationMS int64
	if !connectedAt.IsZero() && event != "connect" {
		durationMS = time.Since(connectedAt).Milliseconds()
	}

	_ = observability.PublishEvent(context.Background(), observability.RoutingKeySocket,
		observability.EventEnvelope{
			EventType: "socket_events",
			EventName: event,
			Payload: observability.SocketEvent{
				ConnID:     connID,
				Event:      event,
				UserID:     userID,
				DurationMS: durationMS,
				Reason:     reason,
			},
		}, observability.BuildHeaders("", ""))
}
