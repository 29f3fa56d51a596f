// Package data defines the price-history boundary: the provider interface,
// file- and memory-backed implementations, and the retrying fetcher that
// wraps the network-bound provider.
package data

import (
	"context"
	"time"

	"github.com/hollanded/kindred/pkg/model"
)

// PriceProvider fetches raw price history for an instrument. Implementations
// sit at the network boundary; a failed fetch means "no new data for this
// call" and is retried there, never treated as fatal by a running batch.
type PriceProvider interface {
	// Fetch returns price points at the requested fidelity, oldest first.
	// A zero since means "all available history".
	Fetch(ctx context.Context, instrumentID string, since time.Time, fidelity time.Duration) ([]model.PricePoint, error)
}

// MemoryProvider serves price points from memory. Used by tests and for
// replaying captured history.
type MemoryProvider struct {
	points map[string][]model.PricePoint
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{points: make(map[string][]model.PricePoint)}
}

// Add appends price points for an instrument.
func (p *MemoryProvider) Add(instrumentID string, points ...model.PricePoint) {
	p.points[instrumentID] = append(p.points[instrumentID], points...)
}

// Fetch returns the stored points for an instrument, filtered by since.
func (p *MemoryProvider) Fetch(_ context.Context, instrumentID string, since time.Time, _ time.Duration) ([]model.PricePoint, error) {
	var result []model.PricePoint
	for _, pt := range p.points[instrumentID] {
		if !since.IsZero() && pt.Time().Before(since) {
			continue
		}
		result = append(result, pt)
	}
	return result, nil
}
