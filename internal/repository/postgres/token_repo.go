package postgres

import (
	"context"
	"fmt"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/repository"
)

// tokenRepository implements repository.TokenRepository for PostgreSQL.
type tokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new PostgreSQL token repository.
func NewTokenRepository(db *DB) repository.TokenRepository {
	return &tokenRepository{db: db}
}

// Create persists a newly issued token.
func (r *tokenRepository) Create(ctx context.Context, token *domain.SessionToken) error {
	query := `
		INSERT INTO tokens (id, user_id, issued_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.IssuedAt,
		token.ExpiresAt,
		token.Revoked,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: token id", repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create token: %w", err)
	}

	return nil
}

// GetByID retrieves a token by its opaque identifier.
func (r *tokenRepository) GetByID(ctx context.Context, id string) (*domain.SessionToken, error) {
	query := `
		SELECT id, user_id, issued_at, expires_at, revoked
		FROM tokens
		WHERE id = $1
	`

	token := &domain.SessionToken{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&token.ID,
		&token.UserID,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.Revoked,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return token, nil
}

// SetRevoked marks a token revoked. Idempotent.
func (r *tokenRepository) SetRevoked(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE tokens SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteExpired removes tokens past their expiry.
func (r *tokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Ensure tokenRepository implements repository.TokenRepository.
var _ repository.TokenRepository = (*tokenRepository)(nil)
