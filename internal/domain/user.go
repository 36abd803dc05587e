// Package domain contains the core business entities for Constable.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the record catalogue.
package domain

import (
	"strings"
	"time"
)

// User represents a registered user of the catalogue.
// Users authenticate with a username and password and receive session
// tokens for subsequent search requests.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique username for login.
	// Stored in normalized (lower case) form; uniqueness is case-insensitive.
	// Constraints: 3-64 characters.
	Username string `json:"username"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// IsActive indicates whether the user account is active.
	// Inactive users cannot authenticate.
	IsActive bool `json:"is_active"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values.
// The username is normalized to lower case.
func NewUser(username, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Username:     NormalizeUsername(username),
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeUsername returns the canonical form of a username.
// Usernames are compared case-insensitively, so the lower-cased,
// trimmed form is what gets persisted and looked up.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}
