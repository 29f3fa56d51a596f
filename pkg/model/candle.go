package model

import "time"

// Candle is a fixed-interval OHLCV summary for one instrument.
// One row exists per (instrument, bucket); candle buckets for a single
// instrument never overlap.
type Candle struct {
	InstrumentID string    `json:"instrument_id"`
	BucketStart  time.Time `json:"bucket_start"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
}

// BucketStartFor computes the bucket a timestamp falls into:
// floor(ts_ms / interval_ms) * interval_ms.
func BucketStartFor(ts time.Time, interval time.Duration) time.Time {
	ms := ts.UnixMilli()
	intervalMS := interval.Milliseconds()
	return time.UnixMilli(ms - ms%intervalMS).UTC()
}

// Returns calculates the percentage return of this candle.
func (c *Candle) Returns() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open
}

// IsBullish returns true if close > open.
func (c *Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish returns true if close < open.
func (c *Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Closes extracts the close-price series from a chronological candle slice.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}
