// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

// Package postgres implements the auth store contracts on PostgreSQL
// via pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sessionforge/sessionforge/internal/auth"
)

// db is the subset of pgxpool.Pool the stores use. Taking the
// interface keeps the stores testable with pgxmock.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionStore implements auth.SessionStore using PostgreSQL.
type SessionStore struct {
	db db
}

// NewSessionStore creates a SessionStore on the given pool or mock.
func NewSessionStore(db db) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `id, user_id, token, expires_at, created_at, is_revoked, revoked_at, replaced_by_token`

// FindByToken retrieves a record by its exact token value.
func (s *SessionStore) FindByToken(ctx context.Context, token string) (*auth.RefreshToken, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM refresh_tokens
		WHERE token = $1
	`, token)

	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get refresh token by value").
			Wrap(err)
	}
	return record, nil
}

// FindActiveByUser retrieves all unrevoked, unexpired records for a
// user.
func (s *SessionStore) FindActiveByUser(ctx context.Context, userID ulid.ULID) ([]*auth.RefreshToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM refresh_tokens
		WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $2
		ORDER BY created_at DESC
	`, userID.String(), time.Now())
	if err != nil {
		return nil, oops.Code("SESSION_GET_ACTIVE_FAILED").
			With("operation", "get active refresh tokens").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var records []*auth.RefreshToken
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan refresh token row").
				Wrap(err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate refresh token rows").
			Wrap(err)
	}

	return records, nil
}

// Insert stores a new record. A duplicate token value surfaces as
// auth.ErrDuplicateToken.
func (s *SessionStore) Insert(ctx context.Context, record *auth.RefreshToken) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		record.ID.String(),
		record.UserID.String(),
		record.Token,
		record.ExpiresAt,
		record.CreatedAt,
		record.IsRevoked,
		record.RevokedAt,
		nullableString(record.ReplacedByToken),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("STORE_CONFLICT").
				With("operation", "insert refresh token").
				Wrap(auth.ErrDuplicateToken)
		}
		return oops.Code("SESSION_INSERT_FAILED").
			With("operation", "insert refresh token").
			With("user_id", record.UserID.String()).
			Wrap(err)
	}
	return nil
}

// Update persists a record's revocation state. Only unrevoked rows
// match, so first-rotation-wins holds at the row level even without
// the service's per-user lock: a concurrent second rotation matches
// zero rows and fails as a conflict.
func (s *SessionStore) Update(ctx context.Context, record *auth.RefreshToken) error {
	result, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = $2, revoked_at = $3, replaced_by_token = $4
		WHERE id = $1 AND is_revoked = FALSE
	`,
		record.ID.String(),
		record.IsRevoked,
		record.RevokedAt,
		nullableString(record.ReplacedByToken),
	)
	if err != nil {
		return oops.Code("SESSION_UPDATE_FAILED").
			With("operation", "update refresh token").
			With("token_id", record.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("STORE_CONFLICT").
			With("token_id", record.ID.String()).
			Wrap(auth.ErrUnknownRecord)
	}
	return nil
}

// DeleteExpired removes all records past their expiry and returns the
// count.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.Exec(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired refresh tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanRecord scans a single row into a RefreshToken. Callers handle
// pgx.ErrNoRows.
func scanRecord(row pgx.Row) (*auth.RefreshToken, error) {
	var (
		idStr      string
		userIDStr  string
		token      string
		expiresAt  time.Time
		createdAt  time.Time
		isRevoked  bool
		revokedAt  *time.Time
		replacedBy *string
	)

	err := row.Scan(&idStr, &userIDStr, &token, &expiresAt, &createdAt, &isRevoked, &revokedAt, &replacedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.With("operation", "scan refresh token").Wrap(err)
	}

	// Left uncoded so the calling operation's code surfaces.
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("id", idStr).Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.With("user_id", userIDStr).Wrap(err)
	}

	record := &auth.RefreshToken{
		ID:        id,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		IsRevoked: isRevoked,
		RevokedAt: revokedAt,
	}
	if replacedBy != nil {
		record.ReplacedByToken = *replacedBy
	}
	return record, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
