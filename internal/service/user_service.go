package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/repository"
)

// Credential format bounds. Enforced before any storage access so malformed
// input never reaches the database or the password hasher.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// dummyPasswordHash is compared against when the username does not resolve,
// so a login attempt costs one bcrypt verification whether or not the user
// exists.
var dummyPasswordHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// UserService manages user accounts: registration and credential
// verification.
type UserService struct {
	userRepo   repository.UserRepository
	bcryptCost int
	logger     zerolog.Logger
}

// NewUserService creates a new UserService. A bcryptCost outside the range
// accepted by the bcrypt package falls back to its default cost.
func NewUserService(userRepo repository.UserRepository, bcryptCost int, logger zerolog.Logger) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		userRepo:   userRepo,
		bcryptCost: bcryptCost,
		logger:     logger.With().Str("service", "user").Logger(),
	}
}

// RegisterInput contains parameters for registering a user.
type RegisterInput struct {
	Username string
	Password string
}

// Register creates a new user account with the given credentials.
//
// The username is normalized to lower case before storage, so uniqueness is
// case-insensitive. Uniqueness is enforced by the database constraint rather
// than a pre-check, which makes concurrent registration of the same username
// safe: exactly one insert wins and the rest observe ErrDuplicateUsername.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	username := domain.NormalizeUsername(input.Username)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := domain.NewUser(username, string(hash))
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateUsername, username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("User registered")

	return user, nil
}

// Verify checks a username/password pair and returns the matching user.
//
// All verification failures, including an unknown username and an inactive
// account, surface as domain.ErrInvalidCredentials so the caller cannot
// probe which usernames exist.
func (s *UserService) Verify(ctx context.Context, username, password string) (*domain.User, error) {
	normalized := domain.NormalizeUsername(username)

	user, err := s.userRepo.GetByUsername(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn a hash comparison so the response time does not
			// reveal whether the username resolved.
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug().
			Str("username", normalized).
			Msg("Password verification failed")
		return nil, domain.ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.logger.Warn().
			Int64("user_id", user.ID).
			Str("username", normalized).
			Msg("Login attempt for inactive user")
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

// GetByID retrieves a user by its numeric identifier.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetActive enables or disables a user account. Disabling does not revoke
// tokens already issued to the user, but every token validation re-checks
// the account, so a disabled user loses access on the next request.
func (s *UserService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.userRepo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info().
		Int64("user_id", id).
		Bool("active", active).
		Msg("User active state changed")

	return nil
}

// List returns a page of user accounts ordered by id.
func (s *UserService) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	result, err := s.userRepo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return result, nil
}

func validateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return fmt.Errorf("%w: username must be %d-%d characters",
			domain.ErrInvalidCredentialFormat, MinUsernameLength, MaxUsernameLength)
	}
	for _, c := range username {
		if !isUsernameChar(c) {
			return fmt.Errorf("%w: username may only contain letters, digits, '.', '_' and '-'",
				domain.ErrInvalidCredentialFormat)
		}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be %d-%d characters",
			domain.ErrInvalidCredentialFormat, MinPasswordLength, MaxPasswordLength)
	}
	return nil
}

func isUsernameChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-':
		return true
	}
	return false
}
