package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Horizon is the forward offset at which an outcome is measured.
type Horizon string

const (
	Horizon1h  Horizon = "1h"
	Horizon4h  Horizon = "4h"
	Horizon24h Horizon = "24h"
)

// Duration returns the wall-clock length of the horizon.
func (h Horizon) Duration() time.Duration {
	switch h {
	case Horizon1h:
		return time.Hour
	case Horizon4h:
		return 4 * time.Hour
	case Horizon24h:
		return 24 * time.Hour
	}
	return 0
}

// Candles converts the horizon into a candle count for the given interval.
func (h Horizon) Candles(interval time.Duration) int {
	if interval <= 0 {
		return 0
	}
	return int(h.Duration() / interval)
}

// PatternWindow is a fixed-length, locally normalized slice of historical
// closes with forward outcome labels. A nil outcome means the future data
// needed to measure it did not exist at generation time - unknown, never zero.
type PatternWindow struct {
	ID           string    `json:"id"`
	InstrumentID string    `json:"instrument_id"`
	ContextID    string    `json:"context_id,omitempty"`
	ContextLabel string    `json:"context_label,omitempty"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	Length       int       `json:"length"`
	Series       []float64 `json:"series"`
	Outcome1h    *float64  `json:"outcome_1h"`
	Outcome4h    *float64  `json:"outcome_4h"`
	Outcome24h   *float64  `json:"outcome_24h"`
}

// PatternID builds a deterministic identifier from the upsert key
// (instrument, window_start, length), so regeneration always maps a window
// back onto the same row.
func PatternID(instrumentID string, windowStart time.Time, length int) string {
	data := fmt.Sprintf("%s|%d|%d", instrumentID, windowStart.Unix(), length)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// Outcome returns the signed delta for the requested horizon, nil if unknown.
func (w *PatternWindow) Outcome(h Horizon) *float64 {
	switch h {
	case Horizon1h:
		return w.Outcome1h
	case Horizon4h:
		return w.Outcome4h
	case Horizon24h:
		return w.Outcome24h
	}
	return nil
}

// HasAnyOutcome reports whether at least one horizon was measurable.
func (w *PatternWindow) HasAnyOutcome() bool {
	return w.Outcome1h != nil || w.Outcome4h != nil || w.Outcome24h != nil
}
