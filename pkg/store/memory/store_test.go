package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollanded/kindred/pkg/model"
	"github.com/hollanded/kindred/pkg/store/memory"
)

func candleAt(instrumentID string, bucket time.Time, close float64) model.Candle {
	return model.Candle{
		InstrumentID: instrumentID,
		BucketStart:  bucket,
		Open:         close,
		High:         close,
		Low:          close,
		Close:        close,
		Volume:       1,
	}
}

func TestUpsert_LastWriterWins(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	bucket := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, []model.Candle{candleAt("btc-usd", bucket, 0.40)}))
	require.NoError(t, store.Upsert(ctx, []model.Candle{candleAt("btc-usd", bucket, 0.55)}))

	candles, err := store.Latest(ctx, "btc-usd", 0)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 0.55, candles[0].Close)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLatest_ChronologicalTail(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	// Insert out of order.
	for _, i := range []int{3, 0, 4, 1, 2} {
		bucket := base.Add(time.Duration(i) * 5 * time.Minute)
		require.NoError(t, store.Upsert(ctx, []model.Candle{candleAt("btc-usd", bucket, float64(i))}))
	}

	candles, err := store.Latest(ctx, "btc-usd", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, 2.0, candles[0].Close)
	assert.Equal(t, 4.0, candles[2].Close)
}

func TestUpsertPatterns_ConflictUpdatesOnlyOutcomes(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	original := &model.PatternWindow{
		ID:           model.PatternID("btc-usd", start, 3),
		InstrumentID: "btc-usd",
		WindowStart:  start,
		Length:       3,
		Series:       []float64{0, 0.5, 1},
	}
	require.NoError(t, store.UpsertPatterns(ctx, []*model.PatternWindow{original}))

	// Regeneration carries filled-in outcomes and a (hypothetically) altered
	// series; only the outcomes may land.
	outcome := 0.02
	regenerated := &model.PatternWindow{
		ID:           original.ID,
		InstrumentID: "btc-usd",
		WindowStart:  start,
		Length:       3,
		Series:       []float64{1, 0.5, 0},
		Outcome1h:    &outcome,
	}
	require.NoError(t, store.UpsertPatterns(ctx, []*model.PatternWindow{regenerated}))

	got, err := store.PatternsByIDs(ctx, []string{original.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, []float64{0, 0.5, 1}, got[0].Series, "archived series must survive regeneration")
	require.NotNil(t, got[0].Outcome1h)
	assert.Equal(t, 0.02, *got[0].Outcome1h)

	count, err := store.CountPatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestQueryPatterns_Filters(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	outcome := 0.01

	seed := func(instrumentID string, offset, length int, labeled bool) {
		ws := start.Add(time.Duration(offset) * 5 * time.Minute)
		w := &model.PatternWindow{
			ID:           model.PatternID(instrumentID, ws, length),
			InstrumentID: instrumentID,
			WindowStart:  ws,
			Length:       length,
			Series:       make([]float64, length),
		}
		if labeled {
			w.Outcome4h = &outcome
		}
		require.NoError(t, store.UpsertPatterns(ctx, []*model.PatternWindow{w}))
	}

	seed("eth-usd", 0, 20, true)
	seed("eth-usd", 1, 20, false)
	seed("eth-usd", 2, 30, true)
	seed("btc-usd", 3, 20, true)

	got, err := store.QueryPatterns(ctx, 20, "btc-usd", true, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "eth-usd", got[0].InstrumentID)
}

func TestPurge_RemovesOnlyThatInstrument(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	bucket := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, []model.Candle{
		candleAt("btc-usd", bucket, 0.4),
		candleAt("eth-usd", bucket, 0.6),
	}))
	require.NoError(t, store.UpsertPatterns(ctx, []*model.PatternWindow{{
		ID:           model.PatternID("btc-usd", bucket, 3),
		InstrumentID: "btc-usd",
		WindowStart:  bucket,
		Length:       3,
		Series:       []float64{0, 0.5, 1},
	}}))

	require.NoError(t, store.Purge(ctx, "btc-usd"))

	instruments, err := store.Instruments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth-usd"}, instruments)

	patterns, err := store.CountPatterns(ctx)
	require.NoError(t, err)
	assert.Zero(t, patterns)
}
