package socket

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNoCredential means connect was attempted without a bearer token.
	ErrNoCredential = errors.New("socket: no credential")
	// ErrAuthFailed means the server rejected the credential. Terminal for
	// the connection attempt: no retry loop.
	ErrAuthFailed = errors.New("socket: authentication failed")
	// ErrClosed means the manager was shut down.
	ErrClosed = errors.New("socket: closed")
)

func newConnID() string {
	return uuid.NewString()
}
