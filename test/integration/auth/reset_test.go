// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

//go:build integration

package auth_test

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/sessionforge/sessionforge/internal/auth"
)

var _ = Describe("Password Reset", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)
	})

	It("completes the request-validate-reset round trip", func() {
		user := createTestUser(ctx, "Alice", "alice@example.com", "old password here")
		result, err := env.Service.Login(ctx, "alice@example.com", "old password here")
		Expect(err).NotTo(HaveOccurred())

		token, err := env.Reset.RequestReset(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).NotTo(BeEmpty())

		userID, err := env.Reset.ValidateToken(ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(userID).To(Equal(user.ID))

		Expect(env.Reset.ResetPassword(ctx, token, "new password here")).To(Succeed())

		// The old credential is gone, the new one works.
		_, err = env.Service.Login(ctx, "alice@example.com", "old password here")
		expectCode(err, "AUTH_INVALID_CREDENTIALS")
		_, err = env.Service.Login(ctx, "alice@example.com", "new password here")
		Expect(err).NotTo(HaveOccurred())

		// All sessions issued before the reset are revoked.
		_, err = env.Service.Refresh(ctx, result.RefreshToken)
		expectCode(err, "AUTH_UNAUTHORIZED")
	})

	It("consumes the token on use", func() {
		createTestUser(ctx, "Alice", "alice@example.com", "old password here")

		token, err := env.Reset.RequestReset(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Reset.ResetPassword(ctx, token, "new password here")).To(Succeed())

		err = env.Reset.ResetPassword(ctx, token, "another password")
		Expect(err).To(HaveOccurred())
	})

	It("returns an empty token for an unknown email", func() {
		token, err := env.Reset.RequestReset(ctx, "nobody@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(BeEmpty())
	})

	It("rejects an expired reset token", func() {
		user := createTestUser(ctx, "Alice", "alice@example.com", "old password here")

		plaintext, hash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())

		expired := &auth.PasswordReset{
			ID:        ulid.Make(),
			UserID:    user.ID,
			TokenHash: hash,
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-time.Hour),
		}
		Expect(env.Resets.Create(ctx, expired)).To(Succeed())

		_, err = env.Reset.ValidateToken(ctx, plaintext)
		Expect(err).To(HaveOccurred())
	})

	It("sweeps expired reset requests", func() {
		user := createTestUser(ctx, "Alice", "alice@example.com", "old password here")

		_, hash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())
		expired := &auth.PasswordReset{
			ID:        ulid.Make(),
			UserID:    user.ID,
			TokenHash: hash,
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-time.Hour),
		}
		Expect(env.Resets.Create(ctx, expired)).To(Succeed())

		liveToken, err := env.Reset.RequestReset(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())

		sweeper, err := auth.NewSweeper(env.Sessions, env.Resets, time.Hour, slog.Default())
		Expect(err).NotTo(HaveOccurred())
		Expect(sweeper.SweepOnce(ctx)).To(Succeed())

		// The expired request is gone, the live one still validates.
		_, err = env.Resets.GetByTokenHash(ctx, hash)
		Expect(err).To(MatchError(auth.ErrNotFound))
		_, err = env.Reset.ValidateToken(ctx, liveToken)
		Expect(err).NotTo(HaveOccurred())
	})
})
