package observability

// EventEnvelope wraps push-channel lifecycle events published for audit.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// SocketEvent describes a connection lifecycle transition of the push channel.
type SocketEvent struct {
	ConnID     string `json:"conn_id"`
	Event      string `json:"event"`
	UserID     string `json:"user_id,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// RoutingKeySocket is the routing key for push-channel lifecycle events.
const RoutingKeySocket = "chat_sync.socket"

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
