package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/metrics"
	"github.com/prn-tf/vaultbox/internal/session"
)

func newTestUser(t *testing.T, username, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return domain.NewUser(username, string(hash), role)
}

func setupSessionService(t *testing.T) (*SessionService, *mockUserRepository, *metrics.Metrics) {
	t.Helper()
	repo := new(mockUserRepository)
	store := session.NewMemoryStore()
	t.Cleanup(store.Stop)
	m := metrics.New()
	return NewSessionService(repo, store, time.Hour, m, zerolog.Nop()), repo, m
}

func TestSessionService_Login(t *testing.T) {
	ctx := context.Background()
	svc, repo, m := setupSessionService(t)

	alice := newTestUser(t, "alice", "pw1", domain.RoleUser)
	repo.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)

	out, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, alice.ID, out.Identity.UserID)
	assert.Equal(t, domain.RoleUser, out.Identity.Role)
	assert.Equal(t, "alice", out.Identity.Username)

	id, err := svc.Current(ctx, out.Token)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, out.Identity, *id)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")))
}

func TestSessionService_LoginFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	svc, repo, m := setupSessionService(t)

	alice := newTestUser(t, "alice", "pw1", domain.RoleUser)
	repo.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)
	repo.On("GetByUsername", mock.Anything, "mallory").Return(nil, domain.ErrUserNotFound)

	_, wrongPassword := svc.Login(ctx, LoginInput{Username: "alice", Password: "nope"})
	_, unknownUser := svc.Login(ctx, LoginInput{Username: "mallory", Password: "pw1"})

	assert.ErrorIs(t, wrongPassword, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, domain.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("invalid")))
}

func TestSessionService_LoginValidation(t *testing.T) {
	svc, repo, _ := setupSessionService(t)

	tests := []struct {
		name  string
		input LoginInput
	}{
		{name: "missing username", input: LoginInput{Password: "pw"}},
		{name: "missing password", input: LoginInput{Username: "alice"}},
		{name: "both missing", input: LoginInput{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.input)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	repo.AssertNotCalled(t, "GetByUsername", mock.Anything, mock.Anything)
}

func TestSessionService_LoginStoreError(t *testing.T) {
	svc, repo, m := setupSessionService(t)
	repo.On("GetByUsername", mock.Anything, "alice").Return(nil, errors.New("connection refused"))

	_, err := svc.Login(context.Background(), LoginInput{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, ErrInternalError)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("error")))
}

func TestSessionService_CurrentAndLogout(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setupSessionService(t)

	admin := newTestUser(t, "admin", "secret", domain.RoleAdmin)
	repo.On("GetByUsername", mock.Anything, "admin").Return(admin, nil)

	id, err := svc.Current(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = svc.Current(ctx, "unknown-token")
	require.NoError(t, err)
	assert.Nil(t, id)

	out, err := svc.Login(ctx, LoginInput{Username: "admin", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, out.Token))
	id, err = svc.Current(ctx, out.Token)
	require.NoError(t, err)
	assert.Nil(t, id, "session must be gone after logout")

	assert.NoError(t, svc.Logout(ctx, out.Token), "logout is idempotent")
	assert.NoError(t, svc.Logout(ctx, ""))
}
