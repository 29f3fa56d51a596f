// Package memory provides an in-memory implementation of the candle and
// pattern stores. It mirrors the DuckDB repositories' upsert semantics and is
// used by tests and ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hollanded/kindred/pkg/model"
)

// Store keeps candles and pattern windows in memory with idempotent upserts.
// Safe for concurrent use; the upsert rules resolve conflicts the same way
// the relational store does.
type Store struct {
	mu       sync.RWMutex
	candles  map[string]map[time.Time]model.Candle // instrument -> bucket -> candle
	patterns map[string]*model.PatternWindow       // id -> window
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		candles:  make(map[string]map[time.Time]model.Candle),
		patterns: make(map[string]*model.PatternWindow),
	}
}

// Upsert writes candles keyed by (instrument, bucket_start); last writer wins.
func (s *Store) Upsert(_ context.Context, candles []model.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range candles {
		byBucket, ok := s.candles[c.InstrumentID]
		if !ok {
			byBucket = make(map[time.Time]model.Candle)
			s.candles[c.InstrumentID] = byBucket
		}
		byBucket[c.BucketStart] = c
	}
	return nil
}

// Latest returns the most recent limit candles in chronological order.
func (s *Store) Latest(_ context.Context, instrumentID string, limit int) ([]model.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byBucket := s.candles[instrumentID]
	candles := make([]model.Candle, 0, len(byBucket))
	for _, c := range byBucket {
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].BucketStart.Before(candles[j].BucketStart)
	})

	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// Count returns the total number of candles.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, byBucket := range s.candles {
		n += int64(len(byBucket))
	}
	return n, nil
}

// Instruments lists every instrument with stored candles.
func (s *Store) Instruments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.candles))
	for id := range s.candles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// UpsertPatterns writes pattern windows keyed by id. Conflicts update only
// the outcome fields, never an archived series.
func (s *Store) UpsertPatterns(_ context.Context, windows []*model.PatternWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range windows {
		if existing, ok := s.patterns[w.ID]; ok {
			existing.Outcome1h = w.Outcome1h
			existing.Outcome4h = w.Outcome4h
			existing.Outcome24h = w.Outcome24h
			continue
		}
		cp := *w
		s.patterns[w.ID] = &cp
	}
	return nil
}

// QueryPatterns returns matching windows most-recent-first. The filter
// mirrors duckdb.Filter semantics: empty results are normal.
func (s *Store) QueryPatterns(_ context.Context, length int, excludeInstrument string, requireOutcome bool, limit int) ([]*model.PatternWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.PatternWindow
	for _, w := range s.patterns {
		if w.Length != length {
			continue
		}
		if excludeInstrument != "" && w.InstrumentID == excludeInstrument {
			continue
		}
		if requireOutcome && !w.HasAnyOutcome() {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].WindowStart.After(out[j].WindowStart)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PatternsByIDs returns stored windows for the given ids, most-recent-first.
func (s *Store) PatternsByIDs(_ context.Context, ids []string) ([]*model.PatternWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.PatternWindow
	for _, id := range ids {
		if w, ok := s.patterns[id]; ok {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WindowStart.After(out[j].WindowStart)
	})
	return out, nil
}

// CountPatterns returns the total number of stored pattern windows.
func (s *Store) CountPatterns(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.patterns)), nil
}

// Purge removes all data for one instrument. This is the only deletion path.
func (s *Store) Purge(_ context.Context, instrumentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.candles, instrumentID)
	for id, w := range s.patterns {
		if w.InstrumentID == instrumentID {
			delete(s.patterns, id)
		}
	}
	return nil
}
