// Package library serves pattern-window candidates for similarity search. At
// the base materialized interval candidates come straight from persistence;
// at coarser intervals they are re-derived in memory from base candles. That
// trades query-time CPU for not pre-materializing every interval combination.
package library

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/hollanded/kindred/pkg/candle"
	"github.com/hollanded/kindred/pkg/model"
	"github.com/hollanded/kindred/pkg/pattern"
)

// PatternSource is the persisted side of the library.
type PatternSource interface {
	// QueryPatterns returns stored windows most-recent-first. Empty results
	// are normal, not errors.
	QueryPatterns(ctx context.Context, length int, excludeInstrument string, requireOutcome bool, limit int) ([]*model.PatternWindow, error)

	// PatternsByIDs hydrates full windows after a vector-recall prefilter.
	PatternsByIDs(ctx context.Context, ids []string) ([]*model.PatternWindow, error)
}

// CandleSource supplies base candles for coarse re-derivation.
type CandleSource interface {
	Instruments(ctx context.Context) ([]string, error)
	Latest(ctx context.Context, instrumentID string, limit int) ([]model.Candle, error)
}

// Recaller narrows the base-interval candidate set with an approximate
// nearest-neighbor index before exact scoring. Recall only ever skips
// candidates; it never contributes to a reported distance.
type Recaller interface {
	Recall(ctx context.Context, series []float64, topN int, excludeInstrument string) ([]string, error)
}

// Config bounds the library's work.
type Config struct {
	BaseInterval     time.Duration // materialized candle interval
	MaxPerInstrument int           // coarse windows kept per instrument
	ScanBudget       int           // hard global cap on candidates per query
	CacheTTL         time.Duration // TTL for re-derived coarse candidate sets
}

// DefaultConfig returns sensible defaults for a 5-minute base interval.
func DefaultConfig() Config {
	return Config{
		BaseInterval:     5 * time.Minute,
		MaxPerInstrument: 200,
		ScanBudget:       2000,
		CacheTTL:         5 * time.Minute,
	}
}

// Library retrieves candidate windows.
type Library struct {
	cfg      Config
	patterns PatternSource
	candles  CandleSource
	recall   Recaller // optional
	cache    *candidateCache
	logger   zerolog.Logger
}

// New creates a library. recall may be nil to disable vector prefiltering.
func New(cfg Config, patterns PatternSource, candles CandleSource, recall Recaller, logger zerolog.Logger) *Library {
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = 5 * time.Minute
	}
	if cfg.MaxPerInstrument <= 0 {
		cfg.MaxPerInstrument = 200
	}
	if cfg.ScanBudget <= 0 {
		cfg.ScanBudget = 2000
	}
	return &Library{
		cfg:      cfg,
		patterns: patterns,
		candles:  candles,
		recall:   recall,
		cache:    newCandidateCache(cfg.CacheTTL),
		logger:   logger,
	}
}

// Params selects candidates for one search.
type Params struct {
	Length            int
	ExcludeInstrument string
	Limit             int
	Interval          time.Duration // candle interval; base or a multiple of it
	Query             []float64     // normalized query series, used only for vector recall
}

// Candidates returns scoring candidates for the given parameters.
// Insufficient data at any interval is a normal zero-candidate outcome; the
// only errors are persistence failures and misaligned intervals.
func (l *Library) Candidates(ctx context.Context, p Params) ([]*model.PatternWindow, error) {
	if p.Interval <= 0 || p.Interval == l.cfg.BaseInterval {
		return l.baseCandidates(ctx, p)
	}
	if p.Interval%l.cfg.BaseInterval != 0 || p.Interval < l.cfg.BaseInterval {
		return nil, fmt.Errorf("library: interval %s is not a multiple of base interval %s", p.Interval, l.cfg.BaseInterval)
	}
	return l.coarseCandidates(ctx, p)
}

// Invalidate drops cached coarse candidate sets, e.g. after a backfill wrote
// new candles.
func (l *Library) Invalidate() {
	l.cache.invalidate()
}

func (l *Library) baseCandidates(ctx context.Context, p Params) ([]*model.PatternWindow, error) {
	limit := l.capLimit(p.Limit)

	if l.recall != nil && len(p.Query) > 0 {
		ids, err := l.recall.Recall(ctx, p.Query, limit, p.ExcludeInstrument)
		if err != nil {
			// Recall is an optimization; fall back to the exhaustive path.
			l.logger.Warn().Err(err).Msg("vector recall failed, scanning persisted patterns")
		} else if len(ids) > 0 {
			windows, err := l.patterns.PatternsByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			return filterScorable(windows, p.ExcludeInstrument), nil
		}
	}

	return l.patterns.QueryPatterns(ctx, p.Length, p.ExcludeInstrument, true, limit)
}

// coarseCandidates synthesizes windows at a non-materialized interval: group
// interval/base consecutive base candles, take the last close per chunk, and
// run the batch windowing logic ephemerally. Results are capped
// per-instrument and globally to bound CPU cost, and cached under the
// injected TTL.
func (l *Library) coarseCandidates(ctx context.Context, p Params) ([]*model.PatternWindow, error) {
	key := fmt.Sprintf("%d|%d|%s", p.Interval, p.Length, p.ExcludeInstrument)
	if cached, ok := l.cache.get(key); ok {
		return l.capCandidates(cached, p.Limit), nil
	}

	instruments, err := l.candles.Instruments(ctx)
	if err != nil {
		return nil, err
	}

	factor := int(p.Interval / l.cfg.BaseInterval)
	gen := pattern.NewGenerator(p.Length, p.Interval)
	needCoarse := p.Length + gen.H2 + l.cfg.MaxPerInstrument

	var all []*model.PatternWindow
	for _, id := range instruments {
		if id == p.ExcludeInstrument {
			continue
		}
		if len(all) >= l.cfg.ScanBudget {
			break
		}

		base, err := l.candles.Latest(ctx, id, needCoarse*factor)
		if err != nil {
			return nil, err
		}

		coarse := candle.Reaggregate(base, factor)
		windows := gen.Generate(id, coarse, "", "")
		if len(windows) == 0 {
			continue // not enough history at this interval: normal, skip
		}
		if len(windows) > l.cfg.MaxPerInstrument {
			windows = windows[len(windows)-l.cfg.MaxPerInstrument:]
		}
		all = append(all, scorable(windows)...)
	}

	// Deterministic cap: most-recent first, budget-bounded.
	sort.Slice(all, func(i, j int) bool {
		return all[i].WindowStart.After(all[j].WindowStart)
	})
	if len(all) > l.cfg.ScanBudget {
		all = all[:l.cfg.ScanBudget]
	}

	l.cache.set(key, all)
	return l.capCandidates(all, p.Limit), nil
}

func (l *Library) capLimit(limit int) int {
	if limit <= 0 || limit > l.cfg.ScanBudget {
		return l.cfg.ScanBudget
	}
	return limit
}

func (l *Library) capCandidates(windows []*model.PatternWindow, limit int) []*model.PatternWindow {
	limit = l.capLimit(limit)
	if len(windows) > limit {
		return windows[:limit]
	}
	return windows
}

// scorable keeps only windows with at least one measured outcome: a window
// with no labels can never contribute to statistics.
func scorable(windows []*model.PatternWindow) []*model.PatternWindow {
	out := windows[:0]
	for _, w := range windows {
		if w.HasAnyOutcome() {
			out = append(out, w)
		}
	}
	return out
}

func filterScorable(windows []*model.PatternWindow, excludeInstrument string) []*model.PatternWindow {
	var out []*model.PatternWindow
	for _, w := range windows {
		if excludeInstrument != "" && w.InstrumentID == excludeInstrument {
			continue
		}
		if w.HasAnyOutcome() {
			out = append(out, w)
		}
	}
	return out
}
