// Package auth holds the access-control predicates and the HTTP middleware
// that resolves the session cookie into an identity.
package auth

import "github.com/prn-tf/vaultbox/internal/domain"

// RequireAuthenticated fails with domain.ErrUnauthorized for anonymous callers.
func RequireAuthenticated(id *domain.Identity) error {
	if id == nil {
		return domain.ErrUnauthorized
	}
	return nil
}

// RequireRole fails with domain.ErrUnauthorized for anonymous callers and
// with domain.ErrForbidden for authenticated callers holding another role.
// The authentication check always runs first.
func RequireRole(id *domain.Identity, role domain.Role) error {
	if err := RequireAuthenticated(id); err != nil {
		return err
	}
	if id.Role != role {
		return domain.ErrForbidden
	}
	return nil
}

// ForbidSelf fails with domain.ErrSelfDeletion when the caller targets their own account.
func ForbidSelf(id *domain.Identity, targetUserID string) error {
	if id != nil && id.UserID == targetUserID {
		return domain.ErrSelfDeletion
	}
	return nil
}
