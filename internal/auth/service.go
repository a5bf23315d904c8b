// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"

	"github.com/sessionforge/sessionforge/internal/observability"
)

// tracer is a no-op unless the process installs a real trace provider.
var tracer = otel.Tracer("github.com/sessionforge/sessionforge/internal/auth")

// Service is the session lifecycle manager. It orchestrates login,
// refresh-token rotation, logout, mass revocation, and password
// replacement against the UserRepository, SessionStore, PasswordHasher,
// and TokenSigner capabilities.
//
// Operations for different users may run concurrently; operations that
// touch the same user's sessions are serialized on a per-user lock so
// two concurrent logins cannot both observe "no active sessions" and
// issue pairs that outlive each other's revocation.
type Service struct {
	users  UserRepository
	store  SessionStore
	hasher PasswordHasher
	signer TokenSigner
	logger *slog.Logger
	locks  userLocks
}

// LoginResult is what a successful login returns: the token pair plus
// a user summary with no credential material.
type LoginResult struct {
	TokenPair
	User UserSummary `json:"user"`
}

// NewService creates a Service logging through slog.Default().
func NewService(users UserRepository, store SessionStore, hasher PasswordHasher, signer TokenSigner) (*Service, error) {
	return NewServiceWithLogger(users, store, hasher, signer, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(users UserRepository, store SessionStore, hasher PasswordHasher, signer TokenSigner, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("user repository is required")
	}
	if store == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("password hasher is required")
	}
	if signer == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("token signer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("logger is required")
	}
	return &Service{
		users:  users,
		store:  store,
		hasher: hasher,
		signer: signer,
		logger: logger,
	}, nil
}

// dummyPasswordHash is verified against when a user doesn't exist so
// response time stays flat and email enumeration by timing fails.
// This is NOT a real credential - it can never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login verifies credentials and establishes the user's sole active
// session: every previously active refresh token is revoked before the
// new pair is persisted (single-active-session policy).
//
// Unknown email and wrong password produce the identical error code
// and message so callers cannot tell which part failed.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" {
		return nil, oops.Code("AUTH_INVALID_INPUT").With("field", "email").Errorf("email is required")
	}
	if strings.TrimSpace(password) == "" {
		return nil, oops.Code("AUTH_INVALID_INPUT").With("field", "password").Errorf("password is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("AUTH_CANCELED").Wrap(err)
	}

	ctx, span := tracer.Start(ctx, "auth.login")
	defer span.End()

	user, lookupErr := s.users.GetByEmail(ctx, NormalizeEmail(email))

	// Verify against a dummy hash for unknown users so lookup outcome
	// does not show in response time.
	targetHash := dummyPasswordHash
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		// fall through to dummy verification
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			observability.RecordLogin("failure")
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf(invalidCredentials)
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		observability.RecordLogin("failure")
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf(invalidCredentials)
	}

	// Transparent hash upgrade on successful verification. Login
	// succeeds even if the re-hash or its persistence fails.
	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			user.PasswordHash = newHash
			user.UpdatedAt = time.Now()
			s.logBestEffort("upgrade_password_hash", s.users.Update(ctx, user))
		}
	}

	unlock := s.locks.acquire(user.ID)
	defer unlock()

	// Old sessions must be durably revoked before the new token
	// exists; failing here fails the login rather than risking two
	// active sessions.
	if _, err := s.revokeActiveLocked(ctx, user.ID); err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "revoke prior sessions").
			Wrap(err)
	}

	pair, err := s.signer.Issue(user)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token pair").
			Wrap(err)
	}

	record, err := NewRefreshToken(user.ID, pair.RefreshToken, pair.ExpiresAt)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create refresh token record").
			Wrap(err)
	}

	if err := s.store.Insert(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateToken) {
			return nil, oops.Code("STORE_CONFLICT").
				With("operation", "insert refresh token").
				Wrap(err)
		}
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert refresh token").
			Wrap(err)
	}

	observability.RecordLogin("success")
	return &LoginResult{TokenPair: *pair, User: user.Summary()}, nil
}

// Refresh rotates a refresh token: the presented token is validated,
// revoked with a forward link to its successor, and a fresh pair is
// issued. Rotation is one-shot - a rotated token can never be redeemed
// again, which makes replay of a stolen token fail loudly.
//
// Every validation failure maps to the same unauthorized code and
// message so the endpoint is not an oracle for token validity.
func (s *Service) Refresh(ctx context.Context, token string) (*TokenPair, error) {
	if strings.TrimSpace(token) == "" {
		return nil, oops.Code("AUTH_INVALID_INPUT").With("field", "refresh_token").Errorf("refresh token is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("AUTH_CANCELED").Wrap(err)
	}

	ctx, span := tracer.Start(ctx, "auth.refresh")
	defer span.End()

	userID, err := s.signer.ValidateRefresh(token)
	if err != nil {
		observability.RecordRotation("failure")
		return nil, oops.Code("AUTH_UNAUTHORIZED").Errorf(invalidRefresh)
	}

	// Same-token races are necessarily same-user, so the per-user lock
	// also guarantees first-rotation-wins.
	unlock := s.locks.acquire(userID)
	defer unlock()

	record, err := s.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RecordRotation("failure")
			return nil, oops.Code("AUTH_UNAUTHORIZED").Errorf(invalidRefresh)
		}
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "find token record").
			Wrap(err)
	}

	// Token state is re-read from the store on every call; staleness
	// here is a security bug, not a performance concern.
	if record.UserID != userID || !record.IsActive() {
		observability.RecordRotation("failure")
		return nil, oops.Code("AUTH_UNAUTHORIZED").Errorf(invalidRefresh)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RecordRotation("failure")
			return nil, oops.Code("AUTH_UNAUTHORIZED").Errorf(invalidRefresh)
		}
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	pair, err := s.signer.Issue(user)
	if err != nil {
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "issue token pair").
			Wrap(err)
	}

	if err := record.RevokeAndReplace(time.Now(), pair.RefreshToken); err != nil {
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "link successor token").
			Wrap(err)
	}

	// The old record's revocation is persisted before the successor is
	// inserted: a crash in between leaves no redeemable token rather
	// than two.
	if err := s.store.Update(ctx, record); err != nil {
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "persist rotation").
			Wrap(err)
	}

	successor, err := NewRefreshToken(user.ID, pair.RefreshToken, pair.ExpiresAt)
	if err != nil {
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "create successor record").
			Wrap(err)
	}
	if err := s.store.Insert(ctx, successor); err != nil {
		if errors.Is(err, ErrDuplicateToken) {
			return nil, oops.Code("STORE_CONFLICT").
				With("operation", "insert successor token").
				Wrap(err)
		}
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "insert successor token").
			Wrap(err)
	}

	observability.RecordRotation("success")
	return pair, nil
}

// Logout revokes the presented token if it is still active. A missing,
// revoked, or expired token reports false without error: logging out
// of something already gone is not a failure from the caller's side.
func (s *Service) Logout(ctx context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, oops.Code("AUTH_INVALID_INPUT").With("field", "refresh_token").Errorf("refresh token is required")
	}
	if err := ctx.Err(); err != nil {
		return false, oops.Code("AUTH_CANCELED").Wrap(err)
	}

	ctx, span := tracer.Start(ctx, "auth.logout")
	defer span.End()

	record, err := s.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("SESSION_LOGOUT_FAILED").
			With("operation", "find token record").
			Wrap(err)
	}

	unlock := s.locks.acquire(record.UserID)
	defer unlock()

	// Re-read under the lock: a concurrent Refresh may have rotated
	// this token between the lookup and the lock, and revoking the
	// stale copy would clobber its successor link.
	record, err = s.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("SESSION_LOGOUT_FAILED").
			With("operation", "reload token record").
			Wrap(err)
	}

	if !record.IsActive() {
		return false, nil
	}

	// No successor link: this is logout, not rotation.
	record.Revoke(time.Now())
	if err := s.store.Update(ctx, record); err != nil {
		return false, oops.Code("SESSION_LOGOUT_FAILED").
			With("operation", "persist revocation").
			Wrap(err)
	}

	observability.RecordSessionsRevoked(1)
	return true, nil
}

// RevokeAllSessions revokes every currently active refresh token for
// the user. Used by login and available as an explicit "log out
// everywhere" operation. Already-revoked tokens are left untouched.
func (s *Service) RevokeAllSessions(ctx context.Context, userID ulid.ULID) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("AUTH_CANCELED").Wrap(err)
	}

	ctx, span := tracer.Start(ctx, "auth.revoke_all_sessions")
	defer span.End()

	unlock := s.locks.acquire(userID)
	defer unlock()

	if _, err := s.revokeActiveLocked(ctx, userID); err != nil {
		return oops.Code("SESSION_REVOKE_ALL_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// ResetPassword replaces the user's credential. Unknown email is a
// not-found error, distinguishable from credential errors: reset is
// not a credential-guessing surface the way login is. All active
// sessions are revoked after the credential changes.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, oops.Code("AUTH_INVALID_INPUT").With("field", "email").Errorf("email is required")
	}
	if strings.TrimSpace(newPassword) == "" {
		return false, oops.Code("AUTH_INVALID_INPUT").With("field", "password").Errorf("new password is required")
	}
	if err := ctx.Err(); err != nil {
		return false, oops.Code("AUTH_CANCELED").Wrap(err)
	}

	ctx, span := tracer.Start(ctx, "auth.reset_password")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, oops.Code("AUTH_USER_NOT_FOUND").
				Errorf("no user with that email")
		}
		return false, oops.Code("AUTH_RESET_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return false, oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return false, oops.Code("AUTH_RESET_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	// A changed credential invalidates every outstanding session.
	// The password is already replaced, so a failure here is logged
	// rather than turned into a caller-facing failure.
	unlock := s.locks.acquire(user.ID)
	_, revokeErr := s.revokeActiveLocked(ctx, user.ID)
	unlock()
	s.logBestEffort("revoke_sessions_after_reset", revokeErr)

	return true, nil
}

// revokeActiveLocked revokes every active record for the user and
// returns the count. Callers must hold the user's lock.
func (s *Service) revokeActiveLocked(ctx context.Context, userID ulid.ULID) (int, error) {
	active, err := s.store.FindActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	revoked := 0
	for _, record := range active {
		if !record.Revoke(now) {
			continue
		}
		if err := s.store.Update(ctx, record); err != nil {
			return revoked, err
		}
		revoked++
	}

	if revoked > 0 {
		observability.RecordSessionsRevoked(revoked)
	}
	return revoked, nil
}

// logBestEffort records a failed best-effort side operation. The main
// operation already succeeded; operators still want to know.
func (s *Service) logBestEffort(operation string, err error) {
	if err == nil {
		return
	}
	s.logger.Warn("best-effort operation failed",
		"operation", operation,
		"error", err.Error(),
	)
}

// userLocks serializes session mutations per user. Entries are
// refcounted and removed when the last holder releases, so the map does
// not grow with the user population.
type userLocks struct {
	mu      sync.Mutex
	entries map[ulid.ULID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (l *userLocks) acquire(id ulid.ULID) (release func()) {
	l.mu.Lock()
	if l.entries == nil {
		l.entries = make(map[ulid.ULID]*lockEntry)
	}
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
