// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionforge/internal/auth"
	"github.com/sessionforge/sessionforge/pkg/errutil"
)

var userRowColumns = []string{
	"id", "name", "email", "avatar_url", "password_hash", "created_at", "updated_at",
}

func testStoredUser(t *testing.T) *auth.User {
	t.Helper()
	user, err := auth.NewUser("Test User", "test@example.com", "$argon2id$v=19$m=65536,t=1,p=4$salt$hash")
	require.NoError(t, err)
	return user
}

func TestUserRepository_Create(t *testing.T) {
	user := &auth.User{
		ID:           ulid.Make(),
		Name:         "Test User",
		Email:        "test@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$salt$hash",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		errCode   string
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Name, user.Email, user.AvatarURL,
						user.PasswordHash, user.CreatedAt, user.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Name, user.Email, user.AvatarURL,
						user.PasswordHash, user.CreatedAt, user.UpdatedAt).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: true,
			errCode: "USER_ALREADY_EXISTS",
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), user.Name, user.Email, user.AvatarURL,
						user.PasswordHash, user.CreatedAt, user.UpdatedAt).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
			errCode: "USER_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewUserRepository(mock)
			err = repo.Create(context.Background(), user)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.errCode)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	user := testStoredUser(t)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		errCode   string
		errIs     error
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userRowColumns).
					AddRow(user.ID.String(), user.Name, user.Email, user.AvatarURL,
						user.PasswordHash, user.CreatedAt, user.UpdatedAt)
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
					WithArgs(user.ID.String()).
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
					WithArgs(user.ID.String()).
					WillReturnRows(pgxmock.NewRows(userRowColumns))
			},
			wantErr: true,
			errCode: "USER_NOT_FOUND",
			errIs:   auth.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
					WithArgs(user.ID.String()).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
			errCode: "USER_GET_BY_ID_FAILED",
		},
		{
			name: "malformed id column surfaces the operation code",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userRowColumns).
					AddRow("not-a-ulid", user.Name, user.Email, user.AvatarURL,
						user.PasswordHash, user.CreatedAt, user.UpdatedAt)
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
					WithArgs(user.ID.String()).
					WillReturnRows(rows)
			},
			wantErr: true,
			errCode: "USER_GET_BY_ID_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewUserRepository(mock)
			got, err := repo.GetByID(context.Background(), user.ID)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.errCode)
				if tt.errIs != nil {
					assert.ErrorIs(t, err, tt.errIs)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, user, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	user := testStoredUser(t)

	t.Run("found regardless of case", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		rows := pgxmock.NewRows(userRowColumns).
			AddRow(user.ID.String(), user.Name, user.Email, user.AvatarURL,
				user.PasswordHash, user.CreatedAt, user.UpdatedAt)
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).
			WithArgs("Test@Example.com").
			WillReturnRows(rows)

		repo := NewUserRepository(mock)
		got, err := repo.GetByEmail(context.Background(), "Test@Example.com")
		require.NoError(t, err)
		assert.Equal(t, user, got)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).
			WithArgs("nobody@example.com").
			WillReturnRows(pgxmock.NewRows(userRowColumns))

		repo := NewUserRepository(mock)
		_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
		assert.ErrorIs(t, err, auth.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestUserRepository_Update(t *testing.T) {
	user := testStoredUser(t)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		errCode   string
		errIs     error
	}{
		{
			name: "successful update",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs(user.ID.String(), user.Name, user.Email, user.AvatarURL,
						user.PasswordHash, user.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "user vanished",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs(user.ID.String(), user.Name, user.Email, user.AvatarURL,
						user.PasswordHash, user.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: true,
			errCode: "USER_NOT_FOUND",
			errIs:   auth.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs(user.ID.String(), user.Name, user.Email, user.AvatarURL,
						user.PasswordHash, user.UpdatedAt).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
			errCode: "USER_UPDATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewUserRepository(mock)
			err = repo.Update(context.Background(), user)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.errCode)
				if tt.errIs != nil {
					assert.ErrorIs(t, err, tt.errIs)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	userID := ulid.Make()
	newHash := "$argon2id$v=19$m=65536,t=1,p=4$newsalt$newhash"

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		errCode   string
	}{
		{
			name: "successful update",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs(userID.String(), newHash, pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "user vanished",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs(userID.String(), newHash, pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: true,
			errCode: "USER_NOT_FOUND",
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs(userID.String(), newHash, pgxmock.AnyArg()).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
			errCode: "USER_UPDATE_PASSWORD_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewUserRepository(mock)
			err = repo.UpdatePassword(context.Background(), userID, newHash)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.errCode)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}
