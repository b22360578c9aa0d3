// Package auth exposes the authentication capability the sync core consumes.
// Token issuance and refresh live elsewhere; the client only ever asks "what
// is the current credential" and "who am I".
package auth

import (
	"sync"

	"chat-sync/internal/models"
)

// Identity describes the authenticated caller.
type Identity struct {
	UserID string
	Name   string
	Role   models.Role
}

// Provider supplies the current bearer credential and caller identity.
// An empty token means unauthenticated, which is an expected state, not an
// error.
type Provider interface {
	Token() string
	Identity() (Identity, bool)
}

// Refresher is implemented by providers that can replace an expired
// credential. The REST client retries a 401 response exactly once after a
// successful refresh.
type Refresher interface {
	Refresh() (string, error)
}

// StaticProvider holds a fixed identity and a replaceable token. SetToken
// models credential rotation: the new credential is attached to subsequent
// requests and push-channel dials without tearing anything down.
type StaticProvider struct {
	mu    sync.RWMutex
	token string
	ident Identity
}

// NewStaticProvider builds a provider for a known identity.
func NewStaticProvider(token string, ident Identity) *StaticProvider {
	return &StaticProvider{token: token, ident: ident}
}

func (p *StaticProvider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

func (p *StaticProvider) Identity() (Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ident.UserID == "" {
		return Identity{}, false
	}
	return p.ident, true
}

// SetToken replaces the attached credential.
func (p *StaticProvider) SetToken(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
}
