package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterBuild_LengthOnly(t *testing.T) {
	query, args := Filter{Length: 20}.build()

	assert.Contains(t, query, "length = ?")
	assert.NotContains(t, query, "instrument_id != ?")
	assert.NotContains(t, query, "LIMIT")
	assert.Contains(t, query, "ORDER BY window_start DESC")
	assert.Equal(t, []any{20}, args)
}

func TestFilterBuild_AllPredicates(t *testing.T) {
	query, args := Filter{
		Length:            20,
		ExcludeInstrument: "btc-usd",
		RequireOutcome:    true,
		Limit:             100,
	}.build()

	assert.Contains(t, query, "length = ?")
	assert.Contains(t, query, "instrument_id != ?")
	assert.Contains(t, query, "outcome_1h IS NOT NULL OR outcome_4h IS NOT NULL OR outcome_24h IS NOT NULL")
	assert.Contains(t, query, "LIMIT ?")
	// Placeholder order matches argument order.
	assert.Equal(t, []any{20, "btc-usd", 100}, args)
}

func TestFilterBuild_RequireOutcomeAddsNoArgs(t *testing.T) {
	_, args := Filter{Length: 20, RequireOutcome: true}.build()
	assert.Equal(t, []any{20}, args)
}
