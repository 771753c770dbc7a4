// Package domain contains the core business entities for Vaultbox.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// StoredObject is a file uploaded by a user.
// The content lives in the blob backend under ID; this struct is the metadata.
type StoredObject struct {
	// ID is assigned at creation and is also the blob backend key.
	ID string `json:"file_id"`

	// OwnerID is the user ID of the uploader. Set once, immutable.
	OwnerID string `json:"-"`

	// Filename is the client-supplied name. Not sanitized, not unique.
	Filename string `json:"filename"`

	// UploadedBy is a username snapshot for auditing only.
	// It is never consulted in access decisions.
	UploadedBy string `json:"-"`

	// ContentType is the client-declared media type, if any.
	ContentType string `json:"-"`

	// Size is the content length in bytes.
	Size int64 `json:"-"`

	// Checksum is the SHA-256 hex digest of the content.
	Checksum string `json:"-"`

	// UploadDate is when the upload completed.
	UploadDate time.Time `json:"upload_date"`
}

// NewStoredObject creates object metadata owned by the given identity.
func NewStoredObject(owner Identity, filename, contentType string) *StoredObject {
	return &StoredObject{
		ID:          uuid.NewString(),
		OwnerID:     owner.UserID,
		Filename:    filename,
		UploadedBy:  owner.Username,
		ContentType: contentType,
		UploadDate:  time.Now().UTC(),
	}
}

// IsOwnedBy reports whether the object belongs to the given user ID.
func (o *StoredObject) IsOwnedBy(userID string) bool {
	return o.OwnerID == userID
}

// IsValidObjectID reports whether id has the shape of an object identifier.
// Malformed identifiers can be rejected before reaching the store.
func IsValidObjectID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
