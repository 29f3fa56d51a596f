package model

import "time"

// PricePoint is a single externally sourced price observation.
// Price is a probability-style quote in [0, 1]; Timestamp is unix seconds.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// Time returns the observation time.
func (p PricePoint) Time() time.Time {
	return time.Unix(p.Timestamp, 0).UTC()
}
