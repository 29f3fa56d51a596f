package dtw

import "math"

// LowerBound computes the LB_Keogh envelope bound on the banded DTW distance
// between q and p: each query point outside the candidate's band envelope
// contributes its overshoot, everything else contributes zero.
//
// The bound never exceeds the true distance for equal-length series, so it is
// only ever used to SKIP clearly non-matching candidates (bound >=
// MaxDistance); it must never stand in for a reported distance. For
// unequal-length inputs it degrades to the trivial bound 0.
func LowerBound(q, p []float64, window int) float64 {
	if len(q) != len(p) || len(q) == 0 {
		return 0
	}
	if window < 0 {
		window = DefaultWindow(len(q))
	}

	n := len(p)
	var bound float64
	for i, v := range q {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window
		if hi > n-1 {
			hi = n - 1
		}

		upper := math.Inf(-1)
		lower := math.Inf(1)
		for j := lo; j <= hi; j++ {
			if p[j] > upper {
				upper = p[j]
			}
			if p[j] < lower {
				lower = p[j]
			}
		}

		if v > upper {
			bound += v - upper
		} else if v < lower {
			bound += lower - v
		}
	}

	return bound
}
