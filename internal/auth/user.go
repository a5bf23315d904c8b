// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxEmailLength caps stored email addresses.
const MaxEmailLength = 254

// emailRegex is a pragmatic check, not an RFC 5322 validator. The
// address is a lookup key here; deliverability is someone else's job.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User represents an account known to the session subsystem.
// Immutable from this subsystem's point of view except for credential
// replacement during password reset.
type User struct {
	ID           ulid.ULID
	Name         string
	Email        string
	AvatarURL    string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary returns the caller-facing view of the user. It carries no
// credential material.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}

// UserSummary is what login returns alongside the token pair.
type UserSummary struct {
	ID        ulid.ULID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// NewUser creates a validated User with a fresh ULID.
func NewUser(name, email, passwordHash string) (*User, error) {
	return NewUserWithID(ulid.Make(), name, email, passwordHash)
}

// NewUserWithID creates a validated User with a caller-chosen ID.
// Seed and test fixtures use this instead of mutating the ID after the
// fact; request paths should prefer NewUser.
func NewUserWithID(id ulid.ULID, name, email, passwordHash string) (*User, error) {
	if id.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("USER_INVALID_ID").Errorf("user ID cannot be zero")
	}
	if strings.TrimSpace(name) == "" {
		return nil, oops.Code("USER_INVALID_NAME").Errorf("name cannot be empty")
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           id,
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail lowercases and trims an email for use as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates an email address used as a lookup key.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("USER_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("USER_INVALID_EMAIL").Errorf("email is not a valid address")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *User) error

	// UpdatePassword replaces only the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
