// Package dtw computes banded Dynamic Time Warping distances between
// normalized price series. The band (Sakoe-Chiba corridor) bounds compute to
// O(m*window) and forbids degenerate alignments; a per-row early abort prunes
// candidates that can no longer beat the caller's distance budget.
//
// Distances are only comparable across series produced by the same
// normalization scheme.
package dtw

import (
	"errors"
	"math"
)

var (
	// ErrEmptySequence indicates one or both inputs are empty.
	ErrEmptySequence = errors.New("dtw: input sequences must be non-empty")

	// ErrMalformedSeries indicates a series contains NaN or infinite values.
	// Such values must never enter the DP loop: they would silently corrupt
	// every downstream distance comparison.
	ErrMalformedSeries = errors.New("dtw: series contains non-finite values")
)

// Options configures a distance computation.
//
//   - Window is the Sakoe-Chiba band half-width: only cells with |i-j| <=
//     Window are computed. Zero is a valid (degenerate) band; a negative
//     value selects the default floor(len(query)/2).
//   - MaxDistance is the pruning threshold. Once no cell of a row can stay
//     below it the computation stops and returns +Inf ("no match"), never a
//     truncated finite value. Non-positive disables pruning.
type Options struct {
	Window      int
	MaxDistance float64
}

// DefaultWindow returns the default band half-width for a query of length m.
func DefaultWindow(m int) int {
	return m / 2
}

// Distance computes the banded DTW distance between query q and candidate p.
//
// The recurrence is the classic one restricted to the band:
//
//	cost(i,j) = |q[i]-p[j]| + min(cost(i-1,j), cost(i,j-1), cost(i-1,j-1))
//	cost(0,0) = |q[0]-p[0]|
//
// Guarantees: deterministic, side-effect free, non-negative; Distance(q,q)=0
// under any non-degenerate band; widening the band never increases the
// result; Window=0 with equal lengths reduces to elementwise L1 distance.
// Cells the band cannot reach are +Inf, so a band too narrow to connect
// (0,0) with (m-1,n-1) yields +Inf.
//
// Storage is two rolling rows, O(min-side) memory; the full matrix is never
// materialized since no alignment path is needed.
func Distance(q, p []float64, opts Options) (float64, error) {
	m, n := len(q), len(p)
	if m == 0 || n == 0 {
		return 0, ErrEmptySequence
	}
	if !finite(q) || !finite(p) {
		return 0, ErrMalformedSeries
	}

	window := opts.Window
	if window < 0 {
		window = DefaultWindow(m)
	}
	maxDist := opts.MaxDistance
	prune := maxDist > 0

	inf := math.Inf(1)
	prev := make([]float64, n)
	curr := make([]float64, n)

	for i := 0; i < m; i++ {
		prev, curr = curr, prev
		for j := range curr {
			curr[j] = inf
		}

		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window
		if hi > n-1 {
			hi = n - 1
		}

		rowMin := inf
		for j := lo; j <= hi; j++ {
			d := math.Abs(q[i] - p[j])
			switch {
			case i == 0 && j == 0:
				curr[j] = d
			case i == 0:
				curr[j] = d + curr[j-1]
			case j == 0:
				curr[j] = d + prev[j]
			default:
				curr[j] = d + min3(prev[j], curr[j-1], prev[j-1])
			}
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}

		// No cell in this row can recover below the budget: the accumulated
		// cost is monotone along any warping path.
		if prune && rowMin > maxDist {
			return inf, nil
		}
	}

	return curr[n-1], nil
}

// finite reports whether every value in s is a real number.
func finite(s []float64) bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// min3 returns the minimum of three values.
func min3(a, b, c float64) float64 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
