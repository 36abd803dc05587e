// Package repository defines data access interfaces for Constable.
// These interfaces abstract database operations, allowing for different
// implementations (SQLite, PostgreSQL, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"

	"github.com/kesrow/constable/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create inserts a new user. The insert and the username uniqueness
	// check are a single atomic operation: a UNIQUE constraint violation
	// is returned as ErrDuplicate. This is the only serialization point
	// for concurrent registrations of the same username.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by normalized username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// SetActive enables or disables a user account.
	SetActive(ctx context.Context, id int64, active bool) error

	// List returns all users with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)
}

// =============================================================================
// Session Token Repository
// =============================================================================

// TokenRepository defines the interface for session token data access.
// Tokens are independent rows keyed by their own identifier, so no
// cross-request locking is needed.
type TokenRepository interface {
	// Create persists a newly issued token.
	Create(ctx context.Context, token *domain.SessionToken) error

	// GetByID retrieves a token by its opaque identifier.
	GetByID(ctx context.Context, id string) (*domain.SessionToken, error)

	// SetRevoked marks a token revoked. Idempotent: revoking an already
	// revoked token is not an error. Returns ErrNotFound for unknown IDs.
	SetRevoked(ctx context.Context, id string) error

	// DeleteExpired removes tokens past their expiry. Storage reclaim
	// only; validation never relies on it.
	DeleteExpired(ctx context.Context) (int64, error)
}

// =============================================================================
// Record Repository
// =============================================================================

// RecordRepository defines read access to the catalogued records.
// The search core never writes records.
type RecordRepository interface {
	// Search returns the records matching the plan's filters, ordered by
	// record ID ascending, windowed by the plan's offset/limit, plus the
	// total match count ignoring pagination. The ordering must be stable
	// across repeated identical queries so pagination neither skips nor
	// duplicates records.
	Search(ctx context.Context, plan *domain.QueryPlan) ([]*domain.Record, int64, error)
}

// RecordWriter defines the importer-side write access to the records table.
// Kept separate from RecordRepository so the search path stays read-only.
type RecordWriter interface {
	// InsertBatch inserts records in a single transaction.
	InsertBatch(ctx context.Context, records []*domain.Record) error
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}

// DatabaseHealth is an interface for database health checks.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}
