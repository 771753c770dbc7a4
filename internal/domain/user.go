// Package domain contains the core business entities for Vaultbox.
// These are pure Go structs with no external dependencies, representing
// users, their session identity and the objects they own.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a coarse-grained permission tag attached to a user.
type Role string

const (
	// RoleAdmin may manage other users.
	RoleAdmin Role = "admin"

	// RoleUser may only manage their own files.
	RoleUser Role = "user"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// ParseRole converts a string into a Role.
// An empty string yields RoleUser.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleUser, nil
	}
	r := Role(s)
	if !r.IsValid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// User represents a registered user in the system.
type User struct {
	// ID is the stable identifier generated once at creation.
	// It is the foreign key for object ownership and is never reused.
	ID string `json:"user_id"`

	// Username is the unique, case-sensitive login name.
	Username string `json:"username"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Role is the user's permission tag.
	Role Role `json:"role"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewUser creates a new User with a freshly generated ID.
func NewUser(username, passwordHash string, role Role) *User {
	return &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
}

// IsAdmin returns true if the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Identity returns the session identity for this user.
func (u *User) Identity() Identity {
	return Identity{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
}

// Identity is the authenticated identity carried by a session.
// It is copied from the user at login time and is not re-validated
// against the credential store on later requests.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin returns true if the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
