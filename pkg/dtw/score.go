package dtw

import "math"

// Similarity converts a distance into a 0-100 score:
//
//	score = clamp(100 * (1 - distance/maxDistance), 0, 100)
//
// A distance at or beyond maxDistance (including the +Inf "no match"
// sentinel) scores 0.
func Similarity(distance, maxDistance float64) float64 {
	if maxDistance <= 0 || math.IsInf(distance, 1) || distance >= maxDistance {
		return 0
	}
	score := 100 * (1 - distance/maxDistance)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
