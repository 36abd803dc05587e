package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/pkg/crypto"
	"github.com/kesrow/constable/internal/repository"
)

// DefaultSessionTTL is the token lifetime used when none is configured.
const DefaultSessionTTL = 24 * time.Hour

// tokenCacheTTL bounds how long a token row may live in the cache. The
// effective TTL is the smaller of this and the token's remaining lifetime.
const tokenCacheTTL = 60 * time.Second

// SessionService issues, validates and revokes session tokens.
//
// A token is valid iff it exists, has not been revoked and has not expired.
// Expiry is checked lazily at validation time; no background sweeper is
// required for correctness, only for storage hygiene (see PurgeExpired).
type SessionService struct {
	tokenRepo repository.TokenRepository
	userRepo  repository.UserRepository
	cache     repository.Cache // optional, may be nil
	ttl       time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewSessionService creates a new SessionService. cache may be nil, in which
// case every validation reads the token store directly. A non-positive ttl
// falls back to DefaultSessionTTL.
func NewSessionService(
	tokenRepo repository.TokenRepository,
	userRepo repository.UserRepository,
	cache repository.Cache,
	ttl time.Duration,
	logger zerolog.Logger,
) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		cache:     cache,
		ttl:       ttl,
		now:       time.Now,
		logger:    logger.With().Str("service", "session").Logger(),
	}
}

// IssueOutput contains the result of issuing a session token.
type IssueOutput struct {
	Token     *domain.SessionToken
	ExpiresIn time.Duration
}

// Issue creates a new session token for the given user. The token identifier
// is the opaque credential handed to the client; it is never derivable from
// user data.
func (s *SessionService) Issue(ctx context.Context, user *domain.User) (*IssueOutput, error) {
	if !user.CanAuthenticate() {
		return nil, domain.ErrUserInactive
	}

	id, err := crypto.GenerateSessionTokenID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	token := domain.NewSessionToken(id, user.ID, s.now().UTC(), s.ttl)
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store session token: %w", err)
	}

	s.cacheToken(ctx, token)

	s.logger.Info().
		Int64("user_id", user.ID).
		Time("expires_at", token.ExpiresAt).
		Msg("Session token issued")

	return &IssueOutput{Token: token, ExpiresIn: s.ttl}, nil
}

// Validate checks a session token and returns the owning user.
//
// Returns domain.ErrTokenInvalid for unknown, malformed or revoked tokens
// and for tokens whose owner no longer exists or is inactive, and
// domain.ErrTokenExpired for tokens past their expiry.
func (s *SessionService) Validate(ctx context.Context, tokenID string) (*domain.User, error) {
	if !crypto.ValidSessionTokenID(tokenID) {
		return nil, domain.ErrTokenInvalid
	}

	token, err := s.lookupToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	if token.Revoked {
		return nil, domain.ErrTokenInvalid
	}
	if token.Expired(s.now()) {
		// Lazily retire the token so later lookups short-circuit.
		s.invalidateToken(ctx, tokenID)
		return nil, domain.ErrTokenExpired
	}

	user, err := s.userRepo.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to resolve token owner: %w", err)
	}
	if !user.CanAuthenticate() {
		return nil, domain.ErrTokenInvalid
	}

	return user, nil
}

// Revoke invalidates a session token. Revoking an already revoked token is a
// no-op; revoking an unknown token returns domain.ErrTokenInvalid.
func (s *SessionService) Revoke(ctx context.Context, tokenID string) error {
	if !crypto.ValidSessionTokenID(tokenID) {
		return domain.ErrTokenInvalid
	}

	if err := s.tokenRepo.SetRevoked(ctx, tokenID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return fmt.Errorf("failed to revoke session token: %w", err)
	}

	// Drop the cached copy so revocation takes effect immediately on all
	// nodes sharing the cache.
	if s.cache != nil {
		if err := s.cache.Delete(ctx, repository.CacheKey{}.Token(tokenID)); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to evict revoked token from cache")
		}
	}

	s.logger.Info().Msg("Session token revoked")
	return nil
}

// PurgeExpired deletes session tokens past their expiry and returns the
// number removed. Validation does not depend on this; it exists to keep the
// token table small.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.tokenRepo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("Expired session tokens purged")
	}
	return n, nil
}

// lookupToken reads a token from the cache if available, falling back to the
// repository. Cache failures degrade to repository reads.
func (s *SessionService) lookupToken(ctx context.Context, tokenID string) (*domain.SessionToken, error) {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, repository.CacheKey{}.Token(tokenID))
		if err == nil {
			var token domain.SessionToken
			if err := json.Unmarshal(data, &token); err == nil {
				return &token, nil
			}
			s.logger.Warn().Msg("Discarding undecodable cached token")
		} else if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("Token cache read failed")
		}
	}

	token, err := s.tokenRepo.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to look up session token: %w", err)
	}

	s.cacheToken(ctx, token)
	return token, nil
}

// cacheToken stores a token row in the cache, best effort. The TTL never
// exceeds the token's remaining lifetime so an expired token cannot be
// served from cache as live.
func (s *SessionService) cacheToken(ctx context.Context, token *domain.SessionToken) {
	if s.cache == nil {
		return
	}

	remaining := token.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return
	}
	ttl := tokenCacheTTL
	if remaining < ttl {
		ttl = remaining
	}

	data, err := json.Marshal(token)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, repository.CacheKey{}.Token(token.ID), data, ttl); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to cache session token")
	}
}

// invalidateToken marks a token revoked and evicts it from the cache, best
// effort. Used when expiry is detected during validation.
func (s *SessionService) invalidateToken(ctx context.Context, tokenID string) {
	if err := s.tokenRepo.SetRevoked(ctx, tokenID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn().Err(err).Msg("Failed to retire expired token")
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, repository.CacheKey{}.Token(tokenID)); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to evict expired token from cache")
		}
	}
}
