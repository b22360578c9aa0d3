package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"chat-sync/internal/auth"
	"chat-sync/internal/models"
)

// Filters narrows a support-role conversation listing.
type Filters struct {
	Status      models.Status
	Participant string
	Search      string
}

func (f Filters) query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Participant != "" {
		q.Set("user_id", f.Participant)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

// ListConversations fetches the global conversation set. Support roles only.
func (c *Client) ListConversations(ctx context.Context, f Filters) ([]models.Conversation, error) {
	raw, err := c.do(ctx, "list_conversations", http.MethodGet, "/api/chats", f.query(), nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeConversations(raw), nil
}

// ListMyConversations fetches only the caller's own conversations.
func (c *Client) ListMyConversations(ctx context.Context) ([]models.Conversation, error) {
	raw, err := c.do(ctx, "list_my_conversations", http.MethodGet, "/api/chats/my", nil, nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeConversations(raw), nil
}

// ListForRole is the role-scoped listing entry point. Without a credential it
// reports an empty set and no error: the loader may legitimately run before
// authentication completes. A 401 is classified the same way. Any other
// failure is returned so the caller can keep its previous data.
func (c *Client) ListForRole(ctx context.Context, ident auth.Identity, f Filters) ([]models.Conversation, error) {
	if c.auth.Token() == "" {
		return nil, nil
	}

	var (
		convs []models.Conversation
		err   error
	)
	if ident.Role.IsSupport() {
		convs, err = c.ListConversations(ctx, f)
	} else {
		convs, err = c.ListMyConversations(ctx)
	}
	if errors.Is(err, ErrUnauthorized) {
		return nil, nil
	}
	return convs, err
}

// GetConversation fetches one conversation, with its messages when the
// backend embeds them (ascending order is restored here).
func (c *Client) GetConversation(ctx context.Context, id string) (models.Conversation, []models.Message, error) {
	raw, err := c.do(ctx, "get_conversation", http.MethodGet, "/api/chats/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return models.Conversation{}, nil, err
	}

	var resp struct {
		Conversation models.Conversation `json:"conversation"`
		Messages     json.RawMessage     `json:"messages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return models.Conversation{}, nil, err
	}
	var msgs []models.Message
	if len(resp.Messages) > 0 {
		msgs = reverse(models.DecodeMessages(resp.Messages))
	}
	return resp.Conversation, msgs, nil
}

// CreateConversation opens a new support thread with the given priority.
func (c *Client) CreateConversation(ctx context.Context, priority models.Priority) (models.Conversation, error) {
	if c.auth.Token() == "" {
		return models.Conversation{}, ErrNoCredential
	}
	body := map[string]string{"priority": string(priority)}
	raw, err := c.do(ctx, "create_conversation", http.MethodPost, "/api/chats", nil, body)
	if err != nil {
		return models.Conversation{}, err
	}
	var conv models.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetMessages fetches one history page. The backend returns newest-first;
// the page is reversed to ascending before it leaves this package.
func (c *Client) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	raw, err := c.do(ctx, "get_messages", http.MethodGet, "/api/chats/"+url.PathEscape(conversationID)+"/messages", q, nil)
	if err != nil {
		return nil, err
	}
	return reverse(models.DecodeMessages(raw)), nil
}

// SendMessage posts a message and returns the server-authoritative copy.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (models.Message, error) {
	body := map[string]string{"content": content}
	raw, err := c.do(ctx, "send_message", http.MethodPost, "/api/chats/"+url.PathEscape(conversationID)+"/messages", nil, body)
	if err != nil {
		return models.Message{}, err
	}
	var rm models.RawMessage
	if err := json.Unmarshal(raw, &rm); err != nil {
		return models.Message{}, err
	}
	return rm.Normalize(), nil
}

// MarkRead marks every message in the conversation as read on the server.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	_, err := c.do(ctx, "mark_read", http.MethodPost, "/api/chats/"+url.PathEscape(conversationID)+"/read", nil, nil)
	return err
}

// GetStats fetches aggregate counts for the support dashboard.
func (c *Client) GetStats(ctx context.Context) (models.ChatStats, error) {
	raw, err := c.do(ctx, "get_stats", http.MethodGet, "/api/chats/stats", nil, nil)
	if err != nil {
		return models.ChatStats{}, err
	}
	var stats models.ChatStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return models.ChatStats{}, err
	}
	return stats, nil
}

func reverse(msgs []models.Message) []models.Message {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}
