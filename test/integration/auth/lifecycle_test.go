// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

//go:build integration

package auth_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/sessionforge/sessionforge/internal/auth"
)

// expectCode asserts err carries the given oops code.
func expectCode(err error, code string) {
	GinkgoHelper()
	Expect(err).To(HaveOccurred())
	oopsErr, ok := oops.AsOops(err)
	Expect(ok).To(BeTrue(), "expected oops error, got %T", err)
	Expect(oopsErr.Code()).To(Equal(code))
}

var _ = Describe("Session Lifecycle", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)
	})

	Describe("Login", func() {
		It("issues a token pair for valid credentials", func() {
			user := createTestUser(ctx, "Alice", "alice@example.com", "correct horse battery")

			result, err := env.Service.Login(ctx, "alice@example.com", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.AccessToken).NotTo(BeEmpty())
			Expect(result.RefreshToken).NotTo(BeEmpty())
			Expect(result.User.ID).To(Equal(user.ID))
			Expect(result.User.Email).To(Equal("alice@example.com"))

			active, err := env.Sessions.FindActiveByUser(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(active[0].Token).To(Equal(result.RefreshToken))
		})

		It("normalizes the email before lookup", func() {
			createTestUser(ctx, "Alice", "alice@example.com", "correct horse battery")

			_, err := env.Service.Login(ctx, "  Alice@Example.COM  ", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a wrong password and an unknown email identically", func() {
			createTestUser(ctx, "Alice", "alice@example.com", "correct horse battery")

			_, wrongPass := env.Service.Login(ctx, "alice@example.com", "wrong")
			_, unknown := env.Service.Login(ctx, "nobody@example.com", "wrong")

			expectCode(wrongPass, "AUTH_INVALID_CREDENTIALS")
			expectCode(unknown, "AUTH_INVALID_CREDENTIALS")
			Expect(wrongPass.Error()).To(Equal(unknown.Error()))
		})

		It("enforces the single-active-session policy", func() {
			user := createTestUser(ctx, "Alice", "alice@example.com", "correct horse battery")

			first, err := env.Service.Login(ctx, "alice@example.com", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())
			second, err := env.Service.Login(ctx, "alice@example.com", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())

			active, err := env.Sessions.FindActiveByUser(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(active[0].Token).To(Equal(second.RefreshToken))

			old, err := env.Sessions.FindByToken(ctx, first.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(old.IsRevoked).To(BeTrue())
			Expect(old.RevokedAt).NotTo(BeNil())
			// Login revocation is not a rotation, so no forward link.
			Expect(old.ReplacedByToken).To(BeEmpty())
		})
	})

	Describe("Refresh", func() {
		var user *auth.User
		var loginPair *auth.TokenPair

		BeforeEach(func() {
			user = createTestUser(ctx, "Alice", "alice@example.com", "correct horse battery")
			result, err := env.Service.Login(ctx, "alice@example.com", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())
			loginPair = &result.TokenPair
		})

		It("rotates the refresh token and links the successor", func() {
			rotated, err := env.Service.Refresh(ctx, loginPair.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(rotated.RefreshToken).NotTo(Equal(loginPair.RefreshToken))

			old, err := env.Sessions.FindByToken(ctx, loginPair.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(old.IsRevoked).To(BeTrue())
			Expect(old.ReplacedByToken).To(Equal(rotated.RefreshToken))

			active, err := env.Sessions.FindActiveByUser(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(active[0].Token).To(Equal(rotated.RefreshToken))
		})

		It("rejects replay of a rotated token", func() {
			rotated, err := env.Service.Refresh(ctx, loginPair.RefreshToken)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Service.Refresh(ctx, loginPair.RefreshToken)
			expectCode(err, "AUTH_UNAUTHORIZED")

			// The legitimate chain is unaffected by the replay attempt.
			_, err = env.Service.Refresh(ctx, rotated.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
		})

		It("supports chained rotations", func() {
			pair := loginPair
			for range 3 {
				rotated, err := env.Service.Refresh(ctx, pair.RefreshToken)
				Expect(err).NotTo(HaveOccurred())
				pair = rotated
			}

			active, err := env.Sessions.FindActiveByUser(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(active[0].Token).To(Equal(pair.RefreshToken))
		})

		It("rejects a structurally invalid token", func() {
			_, err := env.Service.Refresh(ctx, "not-a-jwt")
			expectCode(err, "AUTH_UNAUTHORIZED")
		})
	})

	Describe("Logout", func() {
		It("revokes the session exactly once", func() {
			createTestUser(ctx, "Alice", "alice@example.com", "correct horse battery")
			result, err := env.Service.Login(ctx, "alice@example.com", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())

			revoked, err := env.Service.Logout(ctx, result.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(revoked).To(BeTrue())

			revoked, err = env.Service.Logout(ctx, result.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(revoked).To(BeFalse())

			_, err = env.Service.Refresh(ctx, result.RefreshToken)
			expectCode(err, "AUTH_UNAUTHORIZED")
		})
	})

	Describe("RevokeAllSessions", func() {
		It("revokes every active session for the user", func() {
			user := createTestUser(ctx, "Alice", "alice@example.com", "correct horse battery")
			result, err := env.Service.Login(ctx, "alice@example.com", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Service.RevokeAllSessions(ctx, user.ID)).To(Succeed())

			active, err := env.Sessions.FindActiveByUser(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())

			_, err = env.Service.Refresh(ctx, result.RefreshToken)
			expectCode(err, "AUTH_UNAUTHORIZED")
		})

		It("leaves other users untouched", func() {
			alice := createTestUser(ctx, "Alice", "alice@example.com", "correct horse battery")
			bob := createTestUser(ctx, "Bob", "bob@example.com", "hunter2 but longer")
			_, err := env.Service.Login(ctx, "alice@example.com", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())
			_, err = env.Service.Login(ctx, "bob@example.com", "hunter2 but longer")
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Service.RevokeAllSessions(ctx, alice.ID)).To(Succeed())

			bobActive, err := env.Sessions.FindActiveByUser(ctx, bob.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(bobActive).To(HaveLen(1))
		})
	})

	Describe("Token uniqueness", func() {
		It("rejects inserting a duplicate refresh token value", func() {
			user := createTestUser(ctx, "Alice", "alice@example.com", "correct horse battery")

			record, err := auth.NewRefreshToken(user.ID, "dup-token", time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Sessions.Insert(ctx, record)).To(Succeed())

			dup, err := auth.NewRefreshToken(user.ID, "dup-token", time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			err = env.Sessions.Insert(ctx, dup)
			Expect(err).To(MatchError(auth.ErrDuplicateToken))
		})
	})

	Describe("Expiry sweeping", func() {
		It("removes only rows past their expiry", func() {
			user := createTestUser(ctx, "Alice", "alice@example.com", "correct horse battery")

			expired := &auth.RefreshToken{
				ID:        ulid.Make(),
				UserID:    user.ID,
				Token:     "expired-token",
				ExpiresAt: time.Now().Add(-time.Hour),
				CreatedAt: time.Now().Add(-2 * time.Hour),
			}
			Expect(env.Sessions.Insert(ctx, expired)).To(Succeed())

			live, err := auth.NewRefreshToken(user.ID, "live-token", time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Sessions.Insert(ctx, live)).To(Succeed())

			swept, err := env.Sessions.DeleteExpired(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(swept).To(Equal(int64(1)))

			_, err = env.Sessions.FindByToken(ctx, "expired-token")
			Expect(err).To(MatchError(auth.ErrNotFound))
			_, err = env.Sessions.FindByToken(ctx, "live-token")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
