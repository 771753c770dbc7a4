// Package service implements the business operations of Vaultbox:
// sessions, user administration, per-user file storage and the
// orphaned-object reconciler.
package service

import "errors"

// ErrInternalError wraps infrastructure failures (database, blob backend,
// session store). Handlers map it to a generic 500 response.
var ErrInternalError = errors.New("internal server error")
