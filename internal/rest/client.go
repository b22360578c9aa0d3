// Package rest is the authoritative write/read path to the chat backend. It
// attaches the current bearer credential to every request, retries a 401
// exactly once after a credential refresh, and normalizes the backend's
// response envelopes into canonical model types at the boundary.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"chat-sync/internal/auth"
	"chat-sync/internal/observability"
)

// ErrUnauthorized marks a 401 response. Callers treat it as an expected
// logged-out state, not a failure.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNoCredential is returned by write operations attempted without a token.
var ErrNoCredential = errors.New("no credential")

// StatusError is any non-401 HTTP failure.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Client talks to the chat backend over HTTP.
type Client struct {
	base   string
	http   *http.Client
	auth   auth.Provider
	tracer trace.Tracer
}

// NewClient builds a Client. baseURL must not have a trailing slash.
func NewClient(baseURL string, provider auth.Provider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:   baseURL,
		http:   &http.Client{Timeout: timeout},
		auth:   provider,
		tracer: otel.Tracer("chat-sync/rest"),
	}
}

// do issues one request, retrying exactly once after a successful credential
// refresh when the backend answers 401. The response body is returned raw;
// normalization belongs to the caller.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body interface{}) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "rest."+op)
	defer span.End()

	start := time.Now()
	raw, status, err := c.once(ctx, method, path, query, body, c.auth.Token())
	if status == http.StatusUnauthorized {
		if refresher, ok := c.auth.(auth.Refresher); ok {
			if token, refreshErr := refresher.Refresh(); refreshErr == nil && token != "" {
				raw, status, err = c.once(ctx, method, path, query, body, token)
			}
		}
	}
	observability.ObserveRESTRequest(op, status, time.Since(start))

	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case status >= 400:
		return nil, &StatusError{Status: status, Body: truncate(string(raw), 256)}
	}
	return raw, nil
}

func (c *Client) once(ctx context.Context, method, path string, query url.Values, body interface{}, token string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
