package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/repository"
)

// tokenRepository implements repository.TokenRepository for SQLite.
type tokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new SQLite token repository.
func NewTokenRepository(db *DB) repository.TokenRepository {
	return &tokenRepository{db: db}
}

// Create persists a newly issued token.
func (r *tokenRepository) Create(ctx context.Context, token *domain.SessionToken) error {
	query := `
		INSERT INTO tokens (id, user_id, issued_at, expires_at, revoked)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.IssuedAt.Format(time.RFC3339),
		token.ExpiresAt.Format(time.RFC3339),
		boolToInt(token.Revoked),
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
		WHERE id = ?
	`

	token := &domain.SessionToken{}
	var revoked int
	var issuedAt, expiresAt string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&token.ID,
		&token.UserID,
		&issuedAt,
		&expiresAt,
		&revoked,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	token.Revoked = revoked != 0
	token.IssuedAt, _ = time.Parse(time.RFC3339, issuedAt)
	token.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)

	return token, nil
}

// SetRevoked marks a token revoked. Idempotent.
func (r *tokenRepository) SetRevoked(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tokens SET revoked = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteExpired removes tokens past their expiry.
func (r *tokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	count, _ := result.RowsAffected()
	return count, nil
}

// Ensure tokenRepository implements repository.TokenRepository.
var _ repository.TokenRepository = (*tokenRepository)(nil)
