// Package predict turns a distance-ranked match set into direction,
// confidence, and statistical significance for one forward horizon.
package predict

import (
	"math"
	"sort"

	"github.com/hollanded/kindred/pkg/model"
)

const (
	// DefaultEpsilon is the deadband around zero: outcomes with |value|
	// below it count as FLAT rather than directional noise.
	DefaultEpsilon = 0.001

	// directionThreshold is the asymmetric deadzone for calling a
	// direction: a strict majority above 55% is required, anything closer
	// to a coin flip stays NEUTRAL to avoid noise-driven flip-flopping.
	directionThreshold = 55.0
)

// Classify maps a signed outcome delta to a direction using the deadband.
func Classify(value, epsilon float64) model.Direction {
	switch {
	case value > epsilon:
		return model.DirectionUp
	case value < -epsilon:
		return model.DirectionDown
	default:
		return model.DirectionNeutral
	}
}

// Evaluate aggregates the top-K matches (ascending by distance) for the
// requested horizon. Matches lacking an outcome for that horizon are excluded
// from the percentages entirely, never treated as FLAT.
func Evaluate(matches []model.MatchResult, horizon model.Horizon, topK int, epsilon float64) (model.SearchStatistics, model.Prediction) {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}

	ranked := make([]model.MatchResult, len(matches))
	copy(ranked, matches)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	stats := model.SearchStatistics{TotalMatches: len(ranked)}
	var sum float64
	var labeled int
	for _, m := range ranked {
		outcome := m.Pattern.Outcome(horizon)
		if outcome == nil {
			continue
		}
		labeled++
		sum += *outcome
		switch Classify(*outcome, epsilon) {
		case model.DirectionUp:
			stats.UpCount++
		case model.DirectionDown:
			stats.DownCount++
		default:
			stats.FlatCount++
		}
	}

	if labeled > 0 {
		stats.UpPercentage = 100 * float64(stats.UpCount) / float64(labeled)
		stats.DownPercentage = 100 * float64(stats.DownCount) / float64(labeled)
	}

	pred := model.Prediction{
		Direction: model.DirectionNeutral,
		PValue:    1,
	}
	switch {
	case stats.UpPercentage > directionThreshold:
		pred.Direction = model.DirectionUp
	case stats.DownPercentage > directionThreshold:
		pred.Direction = model.DirectionDown
	}

	pred.Confidence = math.Abs(stats.UpPercentage-50) / 50
	if pred.Confidence > 1 {
		pred.Confidence = 1
	}
	if labeled == 0 {
		pred.Confidence = 0
	}

	if labeled > 0 {
		pred.ExpectedMove = sum / float64(labeled)
	}
	pred.PValue = binomialPValue(stats.UpCount, stats.DownCount)

	return stats, pred
}

// binomialPValue is a one-sided normal approximation to a binomial test of
// the directional counts against a 50% null. Flat and unlabeled matches carry
// no directional information and are excluded from the trial count. It is
// reported alongside the heuristic confidence, never substituted for it.
func binomialPValue(up, down int) float64 {
	n := up + down
	if n == 0 {
		return 1
	}
	k := float64(up)
	if down > up {
		k = float64(down)
	}
	z := (k - float64(n)/2) / math.Sqrt(float64(n)/4)
	return 0.5 * math.Erfc(z/math.Sqrt2)
}
