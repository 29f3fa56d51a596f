// Package engine wires the pattern search pipeline together: price history
// in, candles and pattern windows persisted, DTW-ranked matches and a
// directional prediction out.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hollanded/kindred/pkg/data"
	"github.com/hollanded/kindred/pkg/library"
	"github.com/hollanded/kindred/pkg/model"
	"github.com/hollanded/kindred/pkg/pattern"
	"github.com/hollanded/kindred/pkg/predict"
)

// ErrInsufficientData means the query window itself could not be built from
// live data. An empty pattern library is NOT this error: searches against an
// empty library return a well-formed empty result instead.
var ErrInsufficientData = errors.New("engine: insufficient data to build query window")

// CandleStore is the candle persistence boundary.
type CandleStore interface {
	Upsert(ctx context.Context, candles []model.Candle) error
	Latest(ctx context.Context, instrumentID string, limit int) ([]model.Candle, error)
	Count(ctx context.Context) (int64, error)
	Instruments(ctx context.Context) ([]string, error)
}

// PatternStore is the pattern persistence boundary.
type PatternStore interface {
	UpsertPatterns(ctx context.Context, windows []*model.PatternWindow) error
	CountPatterns(ctx context.Context) (int64, error)
}

// SeriesIndexer mirrors pattern series into an optional recall index.
type SeriesIndexer interface {
	Upsert(ctx context.Context, windows []*model.PatternWindow) error
}

// Config tunes the engine.
type Config struct {
	BaseInterval     time.Duration // materialized candle interval
	Fidelity         time.Duration // tick resolution requested from the provider
	WindowLength     int           // pattern window length in candles
	Epsilon          float64       // FLAT deadband for outcome classification
	HistoryLimit     int           // candles loaded per instrument for generation
	ScoreConcurrency int           // parallel DTW comparisons per search
	BackfillWorkers  int           // parallel instruments per backfill run
}

// DefaultConfig returns production defaults for a 5-minute base interval.
func DefaultConfig() Config {
	return Config{
		BaseInterval:     5 * time.Minute,
		Fidelity:         time.Minute,
		WindowLength:     pattern.DefaultWindowLength,
		Epsilon:          predict.DefaultEpsilon,
		HistoryLimit:     20000,
		ScoreConcurrency: 8,
		BackfillWorkers:  4,
	}
}

// Engine is the search facade. The pure core underneath it holds no locks;
// all mutable state lives at the persistence boundary and resolves through
// idempotent upserts.
type Engine struct {
	cfg      Config
	provider data.PriceProvider
	candles  CandleStore
	patterns PatternStore
	library  *library.Library
	indexer  SeriesIndexer // optional
	logger   zerolog.Logger
}

// New creates an engine. indexer may be nil.
func New(cfg Config, provider data.PriceProvider, candles CandleStore, patterns PatternStore, lib *library.Library, indexer SeriesIndexer, logger zerolog.Logger) *Engine {
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = 5 * time.Minute
	}
	if cfg.Fidelity <= 0 {
		cfg.Fidelity = time.Minute
	}
	if cfg.WindowLength <= 0 {
		cfg.WindowLength = pattern.DefaultWindowLength
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20000
	}
	if cfg.ScoreConcurrency <= 0 {
		cfg.ScoreConcurrency = 8
	}
	if cfg.BackfillWorkers <= 0 {
		cfg.BackfillWorkers = 4
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		candles:  candles,
		patterns: patterns,
		library:  lib,
		indexer:  indexer,
		logger:   logger,
	}
}

// LibraryStats summarizes the stored corpus.
type LibraryStats struct {
	TotalCandles      int64 `json:"total_candles"`
	TotalPatterns     int64 `json:"total_patterns"`
	UniqueInstruments int   `json:"unique_instruments"`
}

// Stats reports corpus totals.
func (e *Engine) Stats(ctx context.Context) (LibraryStats, error) {
	candleCount, err := e.candles.Count(ctx)
	if err != nil {
		return LibraryStats{}, err
	}
	patternCount, err := e.patterns.CountPatterns(ctx)
	if err != nil {
		return LibraryStats{}, err
	}
	instruments, err := e.candles.Instruments(ctx)
	if err != nil {
		return LibraryStats{}, err
	}
	return LibraryStats{
		TotalCandles:      candleCount,
		TotalPatterns:     patternCount,
		UniqueInstruments: len(instruments),
	}, nil
}
