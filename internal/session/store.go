// Package session provides server-side session storage.
// A session maps an opaque random token to the identity captured at login.
// Because the mapping lives in a shared store, any service instance can
// resolve a token issued by another.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/prn-tf/vaultbox/internal/domain"
)

// ErrNotFound indicates the token is unknown or its session expired.
var ErrNotFound = errors.New("session not found")

// Store persists sessions.
type Store interface {
	// Create stores identity under a freshly generated token that expires after ttl.
	Create(ctx context.Context, identity domain.Identity, ttl time.Duration) (string, error)

	// Get resolves a token. Returns ErrNotFound for unknown or expired tokens.
	Get(ctx context.Context, token string) (*domain.Identity, error)

	// Delete removes a session. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
}
