// Package rerank reorders scored matches so recent market behavior outranks
// equally similar but stale history. Shape similarity stays untouched; only
// the ordering weight changes.
package rerank

import (
	"math"
	"sort"
	"time"

	"github.com/hollanded/kindred/pkg/model"
)

// TimeDecayConfig holds configuration for time decay reranking
type TimeDecayConfig struct {
	Lambda float64 // Exponential decay rate (higher = faster decay)
	// Segment weights for different time ranges (optional, used if UseSegments is true)
	UseSegments  bool
	RecentDays   float64 // Days considered "recent" (e.g., 3)
	MediumDays   float64 // Days considered "medium" (e.g., 30)
	RecentWeight float64 // Weight for recent (<= RecentDays)
	MediumWeight float64 // Weight for medium (RecentDays < x <= MediumDays)
	OldWeight    float64 // Weight for old (> MediumDays)
}

// DefaultTimeDecayConfig returns a default configuration
func DefaultTimeDecayConfig() TimeDecayConfig {
	return TimeDecayConfig{
		Lambda:       0.1, // Moderate decay
		UseSegments:  false,
		RecentDays:   3,
		MediumDays:   30,
		RecentWeight: 1.0,
		MediumWeight: 0.7,
		OldWeight:    0.4,
	}
}

// SegmentConfig returns a configuration using segment-based weights
func SegmentConfig() TimeDecayConfig {
	return TimeDecayConfig{
		UseSegments:  true,
		RecentDays:   3,
		MediumDays:   30,
		RecentWeight: 1.0,
		MediumWeight: 0.7,
		OldWeight:    0.4,
	}
}

// RankedMatch extends MatchResult with its reranked score
type RankedMatch struct {
	model.MatchResult
	TimeWeight float64
	FinalScore float64
}

// Reranker performs time-based reranking of match results
type Reranker struct {
	config TimeDecayConfig
}

// NewReranker creates a new reranker with the given configuration
func NewReranker(config TimeDecayConfig) *Reranker {
	return &Reranker{config: config}
}

// Rerank weights each match's similarity by the age of its window end and
// sorts by the combined score, best first.
func (r *Reranker) Rerank(matches []model.MatchResult, now time.Time) []RankedMatch {
	ranked := make([]RankedMatch, len(matches))

	for i, m := range matches {
		ageDays := now.Sub(m.Pattern.WindowEnd).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}

		var weight float64
		if r.config.UseSegments {
			weight = r.segmentWeight(ageDays)
		} else {
			weight = r.exponentialDecay(ageDays)
		}

		ranked[i] = RankedMatch{
			MatchResult: m,
			TimeWeight:  weight,
			FinalScore:  m.Similarity * weight,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})

	return ranked
}

// exponentialDecay calculates decay using exponential function
func (r *Reranker) exponentialDecay(ageDays float64) float64 {
	return math.Exp(-r.config.Lambda * ageDays)
}

// segmentWeight returns weight based on time segments
func (r *Reranker) segmentWeight(ageDays float64) float64 {
	switch {
	case ageDays <= r.config.RecentDays:
		return r.config.RecentWeight
	case ageDays <= r.config.MediumDays:
		return r.config.MediumWeight
	default:
		return r.config.OldWeight
	}
}

// TopN returns the top N matches after reranking
func (r *Reranker) TopN(matches []model.MatchResult, now time.Time, n int) []RankedMatch {
	ranked := r.Rerank(matches, now)
	if len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}

// FilterByMinScore filters matches by minimum final score
func FilterByMinScore(matches []RankedMatch, minScore float64) []RankedMatch {
	var filtered []RankedMatch
	for _, m := range matches {
		if m.FinalScore >= minScore {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
