package domain

import "time"

// SessionToken is an opaque credential proving a successful prior login.
// The token ID itself is the secret: a cryptographically random string
// handed to the client and presented as a bearer credential.
type SessionToken struct {
	// ID is the opaque random token identifier (64 hex characters).
	ID string `json:"id"`

	// UserID is the user this token authenticates as.
	UserID int64 `json:"user_id"`

	// IssuedAt is when the token was issued.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt is when the token stops being accepted.
	ExpiresAt time.Time `json:"expires_at"`

	// Revoked marks the token as explicitly invalidated (logout or admin
	// action). A revoked token is never accepted again.
	Revoked bool `json:"revoked"`
}

// NewSessionToken creates a token for the given user with the given lifetime.
func NewSessionToken(id string, userID int64, issuedAt time.Time, ttl time.Duration) *SessionToken {
	return &SessionToken{
		ID:        id,
		UserID:    userID,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *SessionToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Valid reports whether the token is accepted at the given instant:
// not revoked and not expired.
func (t *SessionToken) Valid(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}
