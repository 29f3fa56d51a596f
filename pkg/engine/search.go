package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hollanded/kindred/pkg/candle"
	"github.com/hollanded/kindred/pkg/dtw"
	"github.com/hollanded/kindred/pkg/library"
	"github.com/hollanded/kindred/pkg/model"
	"github.com/hollanded/kindred/pkg/pattern"
	"github.com/hollanded/kindred/pkg/predict"
)

// SearchParams selects what to search for. Zero values pick defaults.
type SearchParams struct {
	InstrumentID   string
	WindowSize     int           // candles per window (default 20)
	Horizon        model.Horizon // default 4h
	MaxDistance    float64       // DTW pruning threshold (default 5.0)
	TopK           int           // matches kept (default 10)
	CandleInterval time.Duration // base interval or a multiple (default base)
}

// Query describes the window the search compared against.
type Query struct {
	InstrumentID string    `json:"instrument_id"`
	WindowSize   int       `json:"window_size"`
	Interval     string    `json:"interval"`
	WindowEnd    time.Time `json:"window_end"`
	Series       []float64 `json:"series"`
}

// SearchResult is always well-formed: Matches is never nil and Prediction
// falls back to NEUTRAL, so callers never need a separate "did it work"
// branch.
type SearchResult struct {
	Query      Query                  `json:"query"`
	Matches    []model.MatchResult    `json:"matches"`
	Statistics model.SearchStatistics `json:"statistics"`
	Prediction model.Prediction       `json:"prediction"`
}

const defaultMaxDistance = 5.0

func (p *SearchParams) applyDefaults(base time.Duration) {
	if p.WindowSize <= 0 {
		p.WindowSize = pattern.DefaultWindowLength
	}
	if p.Horizon == "" {
		p.Horizon = model.Horizon4h
	}
	if p.MaxDistance <= 0 {
		p.MaxDistance = defaultMaxDistance
	}
	if p.TopK <= 0 {
		p.TopK = 10
	}
	if p.CandleInterval <= 0 {
		p.CandleInterval = base
	}
}

// Search builds the live query window, scores every library candidate with
// banded DTW, and aggregates the best matches into a prediction.
//
// The network-bound fetch happens first and is strictly separate from the
// CPU-bound scoring loop. If ctx expires mid-scan the matches found so far
// are aggregated into a partial result rather than discarded.
func (e *Engine) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	params.applyDefaults(e.cfg.BaseInterval)

	query, err := e.buildQuery(ctx, params)
	if err != nil {
		return nil, err
	}

	candidates, err := e.library.Candidates(ctx, library.Params{
		Length:            params.WindowSize,
		ExcludeInstrument: params.InstrumentID,
		Interval:          params.CandleInterval,
		Query:             query.Series,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	matches := e.score(ctx, query.Series, candidates, params)

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > params.TopK {
		matches = matches[:params.TopK]
	}

	stats, prediction := predict.Evaluate(matches, params.Horizon, params.TopK, e.cfg.Epsilon)

	return &SearchResult{
		Query:      query,
		Matches:    matches,
		Statistics: stats,
		Prediction: prediction,
	}, nil
}

// buildQuery aggregates the live tail into candles and normalizes the most
// recent WindowSize closes. Failing here is the one typed error of a search:
// without a query window there is nothing to compare.
func (e *Engine) buildQuery(ctx context.Context, params SearchParams) (Query, error) {
	points, err := e.provider.Fetch(ctx, params.InstrumentID, time.Time{}, e.cfg.Fidelity)
	if err != nil {
		return Query{}, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}

	candles := candle.AggregateFor(params.InstrumentID, points, params.CandleInterval)
	if len(candles) < params.WindowSize {
		return Query{}, fmt.Errorf("%w: need %d candles at %s, have %d",
			ErrInsufficientData, params.WindowSize, params.CandleInterval, len(candles))
	}

	tail := candles[len(candles)-params.WindowSize:]
	return Query{
		InstrumentID: params.InstrumentID,
		WindowSize:   params.WindowSize,
		Interval:     params.CandleInterval.String(),
		WindowEnd:    tail[len(tail)-1].BucketStart,
		Series:       pattern.MinMaxNormalize(model.Closes(tail)),
	}, nil
}

// score runs the comparison loop. Each comparison is a pure function with a
// purely local early abort, so candidates fan out across workers with no
// cross-candidate coordination; a nil slot simply means "no match".
func (e *Engine) score(ctx context.Context, query []float64, candidates []*model.PatternWindow, params SearchParams) []model.MatchResult {
	window := dtw.DefaultWindow(len(query))
	scored := make([]*model.MatchResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ScoreConcurrency)
	for i, cand := range candidates {
		i, cand := i, cand // per-iteration copies for Go <1.22 loop semantics
		g.Go(func() error {
			// Deadline: leave remaining candidates unscored and let the
			// caller aggregate the partial result.
			if gctx.Err() != nil {
				return nil
			}

			// Envelope bound: skip-only, never a reported distance.
			if dtw.LowerBound(query, cand.Series, window) >= params.MaxDistance {
				return nil
			}

			distance, err := dtw.Distance(query, cand.Series, dtw.Options{
				Window:      window,
				MaxDistance: params.MaxDistance,
			})
			if err != nil {
				e.logger.Warn().Err(err).Str("pattern", cand.ID).Msg("skipping unscorable candidate")
				return nil
			}
			if math.IsInf(distance, 1) || distance >= params.MaxDistance {
				return nil
			}

			m := model.MatchResult{
				Pattern:    cand,
				Distance:   distance,
				Similarity: dtw.Similarity(distance, params.MaxDistance),
			}
			if outcome := cand.Outcome(params.Horizon); outcome != nil {
				m.Outcome = outcome
				m.Direction = predict.Classify(*outcome, e.cfg.Epsilon)
			} else {
				m.Direction = model.DirectionNeutral
			}
			scored[i] = &m
			return nil
		})
	}
	// Workers only ever return nil; Wait just joins them.
	_ = g.Wait()

	matches := make([]model.MatchResult, 0, len(scored))
	for _, m := range scored {
		if m != nil {
			matches = append(matches, *m)
		}
	}
	return matches
}
