package predict_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollanded/kindred/pkg/model"
	"github.com/hollanded/kindred/pkg/predict"
)

func matchWith(outcome4h *float64, distance float64) model.MatchResult {
	return model.MatchResult{
		Pattern:  &model.PatternWindow{Outcome4h: outcome4h},
		Distance: distance,
	}
}

func f(v float64) *float64 { return &v }

// upDownMatches builds a match set with the given directional split.
func upDownMatches(up, down int) []model.MatchResult {
	var out []model.MatchResult
	for i := 0; i < up; i++ {
		out = append(out, matchWith(f(0.05), float64(i)))
	}
	for i := 0; i < down; i++ {
		out = append(out, matchWith(f(-0.05), float64(up+i)))
	}
	return out
}

func TestEvaluate_DirectionBoundaryIsStrict(t *testing.T) {
	// 11/20 up = 55.0% exactly: NEUTRAL under strict >.
	stats, pred := predict.Evaluate(upDownMatches(11, 9), model.Horizon4h, 0, 0)
	assert.InDelta(t, 55.0, stats.UpPercentage, 1e-9)
	assert.Equal(t, model.DirectionNeutral, pred.Direction)

	// 551/1000 up = 55.1%: UP.
	stats, pred = predict.Evaluate(upDownMatches(551, 449), model.Horizon4h, 0, 0)
	assert.InDelta(t, 55.1, stats.UpPercentage, 1e-9)
	assert.Equal(t, model.DirectionUp, pred.Direction)
}

func TestEvaluate_DownDirection(t *testing.T) {
	_, pred := predict.Evaluate(upDownMatches(2, 8), model.Horizon4h, 0, 0)
	assert.Equal(t, model.DirectionDown, pred.Direction)
}

func TestEvaluate_NilOutcomesExcluded(t *testing.T) {
	matches := []model.MatchResult{
		matchWith(f(0.04), 0.1),
		matchWith(nil, 0.2),
		matchWith(f(0.03), 0.3),
		matchWith(nil, 0.4),
	}

	stats, pred := predict.Evaluate(matches, model.Horizon4h, 0, 0)
	assert.Equal(t, 4, stats.TotalMatches)
	assert.Equal(t, 2, stats.UpCount)
	assert.Zero(t, stats.FlatCount, "unknown outcomes are not FLAT")
	assert.InDelta(t, 100.0, stats.UpPercentage, 1e-9)
	assert.InDelta(t, 0.035, pred.ExpectedMove, 1e-12)
}

func TestEvaluate_DeadbandFlat(t *testing.T) {
	matches := []model.MatchResult{
		matchWith(f(0.0004), 0.1),
		matchWith(f(-0.0003), 0.2),
		matchWith(f(0.02), 0.3),
	}

	stats, _ := predict.Evaluate(matches, model.Horizon4h, 0, 0.001)
	assert.Equal(t, 2, stats.FlatCount)
	assert.Equal(t, 1, stats.UpCount)
}

func TestEvaluate_TopKTruncatesByDistance(t *testing.T) {
	matches := []model.MatchResult{
		matchWith(f(-0.05), 3.0), // worst match: dropped by top-2
		matchWith(f(0.05), 0.0),
		matchWith(f(0.04), 0.5),
	}

	stats, pred := predict.Evaluate(matches, model.Horizon4h, 2, 0)
	assert.Equal(t, 2, stats.TotalMatches)
	assert.InDelta(t, 100.0, stats.UpPercentage, 1e-9)
	assert.Equal(t, model.DirectionUp, pred.Direction)
	assert.InDelta(t, 1.0, pred.Confidence, 1e-9)
}

func TestEvaluate_EmptyMatchSet(t *testing.T) {
	stats, pred := predict.Evaluate(nil, model.Horizon4h, 10, 0)
	assert.Zero(t, stats.TotalMatches)
	assert.Equal(t, model.DirectionNeutral, pred.Direction)
	assert.Zero(t, pred.Confidence)
	assert.Zero(t, pred.ExpectedMove, "expected move is 0 when no outcomes exist")
	assert.Equal(t, 1.0, pred.PValue)
}

func TestEvaluate_PValueShrinksWithLopsidedEvidence(t *testing.T) {
	_, even := predict.Evaluate(upDownMatches(10, 10), model.Horizon4h, 0, 0)
	_, skewed := predict.Evaluate(upDownMatches(19, 1), model.Horizon4h, 0, 0)

	require.Greater(t, even.PValue, 0.4, "a 50/50 split is not significant")
	assert.Less(t, skewed.PValue, 0.01, "19/1 is strongly significant")
	assert.Less(t, skewed.PValue, even.PValue)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, model.DirectionUp, predict.Classify(0.01, 0.001))
	assert.Equal(t, model.DirectionDown, predict.Classify(-0.01, 0.001))
	assert.Equal(t, model.DirectionNeutral, predict.Classify(0.0005, 0.001))
}
