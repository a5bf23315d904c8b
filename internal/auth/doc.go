// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

// Package auth implements the authentication and session-lifecycle
// core for SessionForge.
//
// # Domain Types
//
// Domain types (User, RefreshToken, PasswordReset) should be created
// using their respective constructors:
//   - NewUser / NewUserWithID - creates a User with a validated email
//   - NewRefreshToken - creates a RefreshToken with a strictly future expiry
//   - NewPasswordReset - creates a PasswordReset with validated owner and expiry
//
// Direct struct initialization bypasses validation and may create
// invalid state. Store implementations receive pre-validated values
// from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login, refresh-token rotation, logout, mass revocation
//   - PasswordResetService - token-based password reset flow
//   - Sweeper - background removal of expired, revoked records
//
// Services are created with New*Service constructors that validate
// their dependencies.
//
// # External Capabilities
//
// The core consumes three narrow contracts it does not reimplement:
// PasswordHasher (credential verification), TokenSigner (access and
// refresh token issuance), and UserRepository (identity lookup).
// SessionStore is the durable record of issued refresh tokens.
package auth
