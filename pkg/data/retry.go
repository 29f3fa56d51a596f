package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hollanded/kindred/pkg/model"
)

// ErrExhausted indicates every fetch attempt failed. Callers treat it as "no
// new data for this instrument" and move on; it must never abort a batch.
var ErrExhausted = errors.New("data: fetch attempts exhausted")

// RetryConfig bounds the retrying fetcher. Each attempt carries its own
// timeout; the delay between attempts grows exponentially up to MaxDelay.
type RetryConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	InitialDelay   time.Duration
	MaxDelay       time.Duration
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		AttemptTimeout: 10 * time.Second,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
	}
}

// RetryingProvider wraps a PriceProvider with per-attempt timeouts and
// bounded exponential backoff, returning a typed exhausted error instead of
// recursing. The network boundary lives here, strictly separate from any
// CPU-bound scoring work.
type RetryingProvider struct {
	inner  PriceProvider
	cfg    RetryConfig
	logger zerolog.Logger
}

// NewRetryingProvider wraps a provider with retry semantics.
func NewRetryingProvider(inner PriceProvider, cfg RetryConfig, logger zerolog.Logger) *RetryingProvider {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &RetryingProvider{inner: inner, cfg: cfg, logger: logger}
}

// Fetch attempts the inner fetch up to MaxAttempts times. On exhaustion it
// returns an error wrapping ErrExhausted and the last cause.
func (r *RetryingProvider) Fetch(ctx context.Context, instrumentID string, since time.Time, fidelity time.Duration) ([]model.PricePoint, error) {
	var lastErr error
	delay := r.cfg.InitialDelay

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		points, err := r.fetchOnce(ctx, instrumentID, since, fidelity)
		if err == nil {
			return points, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt < r.cfg.MaxAttempts {
			r.logger.Warn().
				Err(err).
				Str("instrument", instrumentID).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("price fetch failed, retrying")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > r.cfg.MaxDelay {
				delay = r.cfg.MaxDelay
			}
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

func (r *RetryingProvider) fetchOnce(ctx context.Context, instrumentID string, since time.Time, fidelity time.Duration) ([]model.PricePoint, error) {
	if r.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.AttemptTimeout)
		defer cancel()
	}
	return r.inner.Fetch(ctx, instrumentID, since, fidelity)
}
