package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/vaultbox/internal/auth"
	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/repository"
)

// OwnerPurger removes every object belonging to an owner.
// FileService implements it.
type OwnerPurger interface {
	DeleteAllByOwner(ctx context.Context, ownerID string) (int, error)
}

// UserService handles user administration. Every operation except
// Bootstrap requires an admin requester.
type UserService struct {
	userRepo repository.UserRepository
	purger   OwnerPurger
	logger   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, purger OwnerPurger, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		purger:   purger,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// ListUsers returns all users.
func (s *UserService) ListUsers(ctx context.Context, requester *domain.Identity) ([]*domain.User, error) {
	if err := auth.RequireRole(requester, domain.RoleAdmin); err != nil {
		return nil, err
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

// CreateUserInput contains the data needed to create a new user.
type CreateUserInput struct {
	Username string
	Password string

	// Role is "admin" or "user". Empty means "user".
	Role string
}

// CreateUserOutput contains the result of creating a user.
type CreateUserOutput struct {
	UserID string
}

// CreateUser creates a new user account.
func (s *UserService) CreateUser(ctx context.Context, requester *domain.Identity, input CreateUserInput) (*CreateUserOutput, error) {
	if err := auth.RequireRole(requester, domain.RoleAdmin); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, input)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Str("role", string(user.Role)).
		Str("created_by", requester.Username).
		Msg("user created")

	return &CreateUserOutput{UserID: user.ID}, nil
}

func (s *UserService) createUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if input.Username == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, input.Role)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(input.Username, string(passwordHash), role)

	// The unique constraint is the only race-free duplicate check.
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return user, nil
}

// DeleteUserOutput contains the result of deleting a user.
type DeleteUserOutput struct {
	// PurgedObjects is the number of the user's objects removed.
	PurgedObjects int

	// OrphanedObjects is set when the object cascade failed. Those objects
	// are unreachable and are removed later by the Reconciler.
	OrphanedObjects bool
}

// DeleteUser removes a user and then every object the user owned.
// The two steps are not atomic. A cascade failure is logged and reported
// in the output but does not fail the call.
func (s *UserService) DeleteUser(ctx context.Context, requester *domain.Identity, userID string) (*DeleteUserOutput, error) {
	if err := auth.RequireRole(requester, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := auth.ForbidSelf(requester, userID); err != nil {
		return nil, err
	}

	deleted, err := s.userRepo.Delete(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to delete user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !deleted {
		return nil, domain.ErrUserNotFound
	}

	output := &DeleteUserOutput{}

	purged, err := s.purger.DeleteAllByOwner(ctx, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Int("purged", purged).
			Msg("object cascade failed, leaving orphans for reconciler")
		output.OrphanedObjects = true
	}
	output.PurgedObjects = purged

	s.logger.Info().
		Str("user_id", userID).
		Int("purged_objects", purged).
		Str("deleted_by", requester.Username).
		Msg("user deleted")

	return output, nil
}

// Bootstrap creates an admin account when no admin exists yet.
// It reports whether an account was created.
func (s *UserService) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	exists, err := s.userRepo.ExistsByRole(ctx, domain.RoleAdmin)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check for admin users")
		return false, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		s.logger.Debug().Msg("admin user present, skipping bootstrap")
		return false, nil
	}

	user, err := s.createUser(ctx, CreateUserInput{
		Username: username,
		Password: password,
		Role:     string(domain.RoleAdmin),
	})
	if err != nil {
		// Another instance bootstrapped concurrently.
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return false, nil
		}
		return false, err
	}

	s.logger.Warn().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Msg("bootstrap admin created")

	return true, nil
}
