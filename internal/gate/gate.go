// SPDX-License-Identifier: Apache-2.0

// Package gate is the final checkpoint before any external side effect.
// It enforces a single hard invariant: no payload reaches the
// dispatcher without an approved review, regardless of which other
// component asks.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adiadia/concierge/internal/dispatch"
	"github.com/adiadia/concierge/internal/domain"
	"github.com/adiadia/concierge/internal/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 300 * time.Millisecond
	DefaultTimeout     = 30 * time.Second
)

type Gate struct {
	dispatcher  dispatch.Dispatcher
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

func New(d dispatch.Dispatcher, opts Options) *Gate {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gate{
		dispatcher:  d,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		now:         opts.Now,
		sleep:       sleepCtx,
	}
}

// Dispatch executes an approved draft. Drafts without approval are
// refused with domain.ErrNotApproved before the dispatcher is ever
// consulted. Transient provider failures retry with exponential
// backoff; permanent failures and exhausted retries surface as a
// failed outcome with the reason preserved.
func (g *Gate) Dispatch(ctx context.Context, d *domain.Draft, review domain.ReviewResult) (domain.ExecutionOutcome, error) {
	if !review.Approved {
		return domain.ExecutionOutcome{}, fmt.Errorf("%w: draft %s (score %.2f)",
			domain.ErrNotApproved, d.ID, review.Score)
	}
	if review.DraftID != d.ID {
		return domain.ExecutionOutcome{}, fmt.Errorf("%w: review %s does not cover draft %s",
			domain.ErrNotApproved, review.DraftID, d.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		outcome, err := g.dispatcher.Execute(ctx, d.Capability, d.Payload)
		if err == nil {
			outcome.StepID = d.StepID
			outcome.DraftID = d.ID
			if outcome.FinishedAt.IsZero() {
				outcome.FinishedAt = g.now()
			}
			return outcome, nil
		}

		lastErr = err
		if !errors.Is(err, domain.ErrDispatchTransient) {
			g.logger.Error("dispatch failed permanently",
				"draft_id", d.ID, "capability", d.Capability, "error", err)
			break
		}

		g.logger.Warn("dispatch attempt failed",
			"draft_id", d.ID, "capability", d.Capability,
			"attempt", attempt, "error", err)

		if attempt == g.maxAttempts {
			break
		}
		metrics.IncDispatchRetries()
		if err := g.sleep(ctx, g.baseDelay*time.Duration(1<<(attempt-1))); err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrDispatchTransient, err)
			break
		}
	}

	return domain.ExecutionOutcome{
		StepID:     d.StepID,
		DraftID:    d.ID,
		Capability: d.Capability,
		Success:    false,
		Failure:    lastErr.Error(),
		FinishedAt: g.now(),
	}, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
