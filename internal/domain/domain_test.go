package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "", want: RoleUser},
		{in: "user", want: RoleUser},
		{in: "admin", want: RoleAdmin},
		{in: "Admin", wantErr: true},
		{in: "root", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}
}

func TestNewUser(t *testing.T) {
	a := NewUser("alice", "hash", RoleUser)
	b := NewUser("alice", "hash", RoleUser)

	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.IsAdmin())

	id := a.Identity()
	assert.Equal(t, Identity{UserID: a.ID, Username: "alice", Role: RoleUser}, id)
	assert.False(t, id.IsAdmin())

	admin := NewUser("root", "hash", RoleAdmin)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.Identity().IsAdmin())
}

func TestNewStoredObject(t *testing.T) {
	owner := Identity{UserID: "u1", Username: "alice", Role: RoleUser}
	obj := NewStoredObject(owner, "a.txt", "text/plain")

	assert.True(t, IsValidObjectID(obj.ID))
	assert.True(t, obj.IsOwnedBy("u1"))
	assert.False(t, obj.IsOwnedBy("u2"))
	assert.Equal(t, "alice", obj.UploadedBy)
	assert.False(t, obj.UploadDate.IsZero())
}

func TestIsValidObjectID(t *testing.T) {
	assert.True(t, IsValidObjectID("7f1d0a56-3c55-4a53-8f71-6a9cbb6b3c1e"))
	assert.False(t, IsValidObjectID(""))
	assert.False(t, IsValidObjectID("not-an-id"))
	assert.False(t, IsValidObjectID("../etc/passwd"))
}

func TestDomainError(t *testing.T) {
	err := NewDomainError(ErrInvalidInput, "bad json", "")
	assert.Equal(t, "invalid input: bad json", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput))

	err = NewDomainError(ErrUserAlreadyExists, "duplicate", "alice")
	assert.Equal(t, "user already exists: duplicate (alice)", err.Error())

	assert.Equal(t, "forbidden", NewDomainError(ErrForbidden, "", "").Error())
}
