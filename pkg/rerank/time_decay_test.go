package rerank_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollanded/kindred/pkg/model"
	"github.com/hollanded/kindred/pkg/rerank"
)

func match(id string, similarity float64, age time.Duration, now time.Time) model.MatchResult {
	return model.MatchResult{
		Pattern: &model.PatternWindow{
			ID:        id,
			WindowEnd: now.Add(-age),
		},
		Similarity: similarity,
	}
}

func TestRerank_RecencyBreaksSimilarityOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	matches := []model.MatchResult{
		match("stale", 90, 60*24*time.Hour, now),
		match("fresh", 80, 24*time.Hour, now),
	}

	ranked := rerank.NewReranker(rerank.DefaultTimeDecayConfig()).Rerank(matches, now)
	require.Len(t, ranked, 2)

	// The slightly weaker but much fresher match wins.
	assert.Equal(t, "fresh", ranked[0].Pattern.ID)
	assert.Greater(t, ranked[0].FinalScore, ranked[1].FinalScore)
	// Similarity itself is never rewritten.
	assert.Equal(t, 80.0, ranked[0].Similarity)
}

func TestRerank_SegmentWeights(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	matches := []model.MatchResult{
		match("recent", 50, 24*time.Hour, now),
		match("medium", 50, 10*24*time.Hour, now),
		match("old", 50, 90*24*time.Hour, now),
	}

	ranked := rerank.NewReranker(rerank.SegmentConfig()).Rerank(matches, now)
	require.Len(t, ranked, 3)

	assert.Equal(t, "recent", ranked[0].Pattern.ID)
	assert.InDelta(t, 1.0, ranked[0].TimeWeight, 1e-9)
	assert.Equal(t, "medium", ranked[1].Pattern.ID)
	assert.InDelta(t, 0.7, ranked[1].TimeWeight, 1e-9)
	assert.Equal(t, "old", ranked[2].Pattern.ID)
	assert.InDelta(t, 0.4, ranked[2].TimeWeight, 1e-9)
}

func TestRerank_FutureWindowsGetFullWeight(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	matches := []model.MatchResult{match("ahead", 50, -time.Hour, now)}

	ranked := rerank.NewReranker(rerank.DefaultTimeDecayConfig()).Rerank(matches, now)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 1.0, ranked[0].TimeWeight, 1e-9)
}

func TestTopNAndFilter(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	matches := []model.MatchResult{
		match("a", 90, 24*time.Hour, now),
		match("b", 80, 24*time.Hour, now),
		match("c", 10, 24*time.Hour, now),
	}

	r := rerank.NewReranker(rerank.SegmentConfig())
	top := r.TopN(matches, now, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].Pattern.ID)

	kept := rerank.FilterByMinScore(r.Rerank(matches, now), 50)
	require.Len(t, kept, 2)
}
