// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/sessionforge/sessionforge/internal/observability"
)

// DefaultSweepInterval is how often the sweeper removes expired rows
// when configuration does not override it.
const DefaultSweepInterval = time.Hour

// Sweeper periodically removes fully expired refresh-token records.
// This is the out-of-band housekeeping pass from the record lifecycle;
// nothing on the request path depends on it. Sweeping is idempotent,
// so transient store failures are retried with capped backoff.
type Sweeper struct {
	store    SessionStore
	resets   PasswordResetRepository // optional
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. A nil resets repository is allowed;
// then only refresh tokens are swept.
func NewSweeper(store SessionStore, resets PasswordResetRepository, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("session store is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("logger is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		resets:   resets,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run sweeps on the configured interval until the context is canceled.
// It blocks; callers run it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("expiry sweep failed", "error", err.Error())
			}
		}
	}
}

// SweepOnce runs a single sweep, retrying transient failures with
// capped exponential backoff.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))

	var swept int64
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := s.store.DeleteExpired(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		swept = n
		return nil
	})
	if err != nil {
		return oops.Code("SWEEP_FAILED").
			With("operation", "delete expired tokens").
			Wrap(err)
	}

	if swept > 0 {
		observability.RecordExpiredSwept(swept)
		s.logger.Info("swept expired refresh tokens", "count", swept)
	}

	if s.resets != nil {
		n, err := s.resets.DeleteExpired(ctx)
		if err != nil {
			return oops.Code("SWEEP_FAILED").
				With("operation", "delete expired resets").
				Wrap(err)
		}
		if n > 0 {
			s.logger.Info("swept expired reset tokens", "count", n)
		}
	}

	return nil
}
