// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sessionforge/sessionforge/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository
// using PostgreSQL.
type PasswordResetRepository struct {
	db db
}

// NewPasswordResetRepository creates a PasswordResetRepository on the
// given pool or mock.
func NewPasswordResetRepository(db db) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

const resetColumns = `id, user_id, token_hash, expires_at, created_at`

// Create stores a new password reset request.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_resets (`+resetColumns+`)
		VALUES ($1, $2, $3, $4, $5)
	`,
		reset.ID.String(),
		reset.UserID.String(),
		reset.TokenHash,
		reset.ExpiresAt,
		reset.CreatedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password reset").
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset request by its token hash.
func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+resetColumns+`
		FROM password_resets
		WHERE token_hash = $1
	`, tokenHash)

	var (
		idStr     string
		userIDStr string
		hash      string
		expiresAt time.Time
		createdAt time.Time
	)

	err := row.Scan(&idStr, &userIDStr, &hash, &expiresAt, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get password reset").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").With("id", idStr).Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_USER_ID").With("user_id", userIDStr).Wrap(err)
	}

	return &auth.PasswordReset{
		ID:        id,
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// DeleteByUser removes all reset requests for a user.
func (r *PasswordResetRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM password_resets
		WHERE user_id = $1
	`, userID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password resets").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired reset requests and reports how
// many rows went away.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM password_resets
		WHERE expires_at <= $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("RESET_SWEEP_FAILED").
			With("operation", "delete expired password resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
