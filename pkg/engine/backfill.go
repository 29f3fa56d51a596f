package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hollanded/kindred/pkg/candle"
	"github.com/hollanded/kindred/pkg/pattern"
)

// BackfillResult reports what one backfill run wrote.
type BackfillResult struct {
	CandleCount  int `json:"candle_count"`
	PatternCount int `json:"pattern_count"`
}

// BackfillContext optionally tags generated windows with their market context.
type BackfillContext struct {
	ID    string
	Label string
}

// Backfill fetches price history for one instrument, aggregates it into base
// candles, and regenerates pattern windows over the full stored series so
// outcome labels fill in as newer candles arrive. Not enough history is a
// normal zero-count result, not an error.
func (e *Engine) Backfill(ctx context.Context, instrumentID string, bctx *BackfillContext) (BackfillResult, error) {
	points, err := e.provider.Fetch(ctx, instrumentID, time.Time{}, e.cfg.Fidelity)
	if err != nil {
		return BackfillResult{}, err
	}

	candles := candle.AggregateFor(instrumentID, points, e.cfg.BaseInterval)
	if len(candles) == 0 {
		return BackfillResult{}, nil
	}
	if err := e.candles.Upsert(ctx, candles); err != nil {
		return BackfillResult{}, err
	}

	// Regenerate from everything stored, not just this fetch: earlier
	// windows near the old tail now have measurable outcomes.
	history, err := e.candles.Latest(ctx, instrumentID, e.cfg.HistoryLimit)
	if err != nil {
		return BackfillResult{}, err
	}

	gen := pattern.NewGenerator(e.cfg.WindowLength, e.cfg.BaseInterval)
	var contextID, contextLabel string
	if bctx != nil {
		contextID, contextLabel = bctx.ID, bctx.Label
	}
	windows := gen.Generate(instrumentID, history, contextID, contextLabel)
	if len(windows) > 0 {
		if err := e.patterns.UpsertPatterns(ctx, windows); err != nil {
			return BackfillResult{}, err
		}
		if e.indexer != nil {
			if err := e.indexer.Upsert(ctx, windows); err != nil {
				// The index is a prefilter, not the source of truth.
				e.logger.Warn().Err(err).Str("instrument", instrumentID).Msg("series index update failed")
			}
		}
	}

	e.library.Invalidate()

	e.logger.Info().
		Str("instrument", instrumentID).
		Int("candles", len(candles)).
		Int("patterns", len(windows)).
		Msg("backfill complete")

	return BackfillResult{CandleCount: len(candles), PatternCount: len(windows)}, nil
}

// BackfillAll runs Backfill for each instrument with bounded parallelism.
// Instruments share no mutable state, so the only synchronization is the
// store's idempotent upserts. One instrument's failure is logged and skipped;
// it never aborts the run.
func (e *Engine) BackfillAll(ctx context.Context, instrumentIDs []string, bctx *BackfillContext) (BackfillResult, error) {
	results := make([]BackfillResult, len(instrumentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.BackfillWorkers)
	for i, id := range instrumentIDs {
		i, id := i, id // per-iteration copies for Go <1.22 loop semantics
		g.Go(func() error {
			res, err := e.Backfill(gctx, id, bctx)
			if err != nil {
				e.logger.Warn().Err(err).Str("instrument", id).Msg("backfill skipped instrument")
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BackfillResult{}, err
	}

	var total BackfillResult
	for _, r := range results {
		total.CandleCount += r.CandleCount
		total.PatternCount += r.PatternCount
	}
	return total, nil
}
