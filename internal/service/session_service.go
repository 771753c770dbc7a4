package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/metrics"
	"github.com/prn-tf/vaultbox/internal/repository"
	"github.com/prn-tf/vaultbox/internal/session"
)

// dummyPasswordHash is compared against when the username is unknown so that
// both failure paths perform one bcrypt comparison.
var dummyPasswordHash = mustHash("vaultbox-dummy-password")

func mustHash(password string) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}

// SessionService authenticates users and manages their sessions.
type SessionService struct {
	userRepo repository.UserRepository
	store    session.Store
	ttl      time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	userRepo repository.UserRepository,
	store session.Store,
	ttl time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *SessionService {
	return &SessionService{
		userRepo: userRepo,
		store:    store,
		ttl:      ttl,
		metrics:  m,
		logger:   logger.With().Str("service", "session").Logger(),
	}
}

// TTL returns the lifetime of sessions created by Login.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// LoginInput contains the credentials presented at login.
type LoginInput struct {
	Username string
	Password string

	// IPAddress and UserAgent are logged only.
	IPAddress string
	UserAgent string
}

// LoginOutput contains the issued session.
type LoginOutput struct {
	Token    string
	Identity domain.Identity
}

// Login verifies credentials and opens a session.
// Unknown usernames and wrong passwords both yield domain.ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	if input.Username == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(input.Password))
			s.recordLogin("invalid")
			s.logger.Info().
				Str("username", input.Username).
				Str("ip", input.IPAddress).
				Msg("login failed: unknown user")
			return nil, domain.ErrInvalidCredentials
		}
		s.recordLogin("error")
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.recordLogin("invalid")
		s.logger.Info().
			Str("username", input.Username).
			Str("ip", input.IPAddress).
			Msg("login failed: wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	identity := user.Identity()
	token, err := s.store.Create(ctx, identity, s.ttl)
	if err != nil {
		s.recordLogin("error")
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to create session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.recordLogin("success")
	s.logger.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Str("ip", input.IPAddress).
		Str("user_agent", input.UserAgent).
		Msg("user logged in")

	return &LoginOutput{Token: token, Identity: identity}, nil
}

// Current resolves a session token.
// Empty, unknown and expired tokens yield a nil identity and no error.
func (s *SessionService) Current(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, nil
	}

	id, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return id, nil
}

// Logout ends a session. It succeeds for empty and unknown tokens.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.Delete(ctx, token); err != nil {
		s.logger.Error().Err(err).Msg("failed to delete session")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

func (s *SessionService) recordLogin(result string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(result)
	}
}
