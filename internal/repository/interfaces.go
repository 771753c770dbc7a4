// Package repository defines data access interfaces for Vaultbox.
// These interfaces abstract database operations, allowing for different implementations
// (PostgreSQL, SQLite, mocks for testing) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/prn-tf/vaultbox/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	// Returns domain.ErrUserAlreadyExists if the username is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByUsername retrieves a user by username (case-sensitive).
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// List returns all users.
	List(ctx context.Context) ([]*domain.User, error)

	// Delete deletes a user by ID.
	// Returns false if no such user existed.
	Delete(ctx context.Context, id string) (bool, error)

	// ExistsByRole checks if at least one user holds the given role.
	ExistsByRole(ctx context.Context, role domain.Role) (bool, error)
}

// =============================================================================
// Object Repository
// =============================================================================

// ObjectRepository defines the interface for stored object metadata.
// Every lookup that serves a user request is scoped by owner in the same query.
type ObjectRepository interface {
	// Create inserts object metadata.
	Create(ctx context.Context, obj *domain.StoredObject) error

	// GetByIDAndOwner retrieves an object only if it belongs to ownerID.
	// Returns domain.ErrObjectNotFound for missing and foreign objects alike.
	GetByIDAndOwner(ctx context.Context, id, ownerID string) (*domain.StoredObject, error)

	// ListByOwner returns all objects owned by ownerID, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.StoredObject, error)

	// DeleteByIDAndOwner deletes an object only if it belongs to ownerID.
	// Returns false if nothing matched.
	DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (bool, error)

	// ListIDsByOwner returns the IDs of all objects owned by ownerID.
	ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error)

	// DeleteByOwner deletes all objects owned by ownerID.
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)

	// ListOrphanOwners returns up to limit distinct owner IDs that have
	// objects but no matching user row.
	ListOrphanOwners(ctx context.Context, limit int) ([]string, error)
}
