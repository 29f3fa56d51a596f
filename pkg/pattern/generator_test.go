package pattern_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollanded/kindred/pkg/model"
	"github.com/hollanded/kindred/pkg/pattern"
)

func TestMinMaxNormalize_Bounds(t *testing.T) {
	values := []float64{0.37, 0.12, 0.88, 0.45, 0.61}
	norm := pattern.MinMaxNormalize(values)
	require.Len(t, norm, len(values))

	min, max := norm[0], norm[0]
	for _, v := range norm {
		assert.False(t, math.IsNaN(v))
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	assert.Equal(t, 0.0, min, "non-constant window normalizes to min 0")
	assert.Equal(t, 1.0, max, "non-constant window normalizes to max 1")
}

func TestMinMaxNormalize_ConstantWindow(t *testing.T) {
	norm := pattern.MinMaxNormalize([]float64{0.5, 0.5, 0.5})
	for _, v := range norm {
		assert.False(t, math.IsNaN(v), "constant window must not divide by zero")
		assert.Equal(t, 0.0, v)
	}
}

func TestMinMaxNormalize_Empty(t *testing.T) {
	assert.Nil(t, pattern.MinMaxNormalize(nil))
}

func makeCandles(n int, interval time.Duration) []model.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, n)
	for i := range candles {
		price := 0.5 + 0.3*math.Sin(float64(i)/9)
		candles[i] = model.Candle{
			InstrumentID: "inst-a",
			BucketStart:  base.Add(time.Duration(i) * interval),
			Open:         price,
			High:         price + 0.01,
			Low:          price - 0.01,
			Close:        price,
		}
	}
	return candles
}

func TestGenerator_SkipsShortSeries(t *testing.T) {
	g := pattern.NewGenerator(20, 5*time.Minute)
	require.Equal(t, 12, g.H1)
	require.Equal(t, 48, g.H2)
	require.Equal(t, 288, g.H3)

	// One candle short of W+H2.
	assert.Nil(t, g.Generate("inst-a", makeCandles(67, 5*time.Minute), "", ""))
}

func TestGenerator_WindowCountAndLabels(t *testing.T) {
	g := pattern.NewGenerator(20, 5*time.Minute)
	candles := makeCandles(100, 5*time.Minute)

	windows := g.Generate("inst-a", candles, "ctx-1", "election")
	require.Len(t, windows, 100-20-48+1)

	closes := model.Closes(candles)
	for _, w := range windows {
		assert.Len(t, w.Series, 20, "normalized series has constant length")
		assert.Equal(t, "inst-a", w.InstrumentID)
		assert.Equal(t, "ctx-1", w.ContextID)
		require.NotNil(t, w.Outcome4h, "every emitted window has a 4h label")
		assert.Nil(t, w.Outcome24h, "series too short for any 24h label")
	}

	// Spot-check the first window's labels against the raw series.
	w0 := windows[0]
	assert.Equal(t, candles[0].BucketStart, w0.WindowStart)
	assert.Equal(t, candles[19].BucketStart, w0.WindowEnd)
	assert.InDelta(t, closes[19+12]-closes[19], *w0.Outcome1h, 1e-12)
	assert.InDelta(t, closes[19+48]-closes[19], *w0.Outcome4h, 1e-12)
}

func TestGenerator_24hLabelWhenInRange(t *testing.T) {
	g := pattern.NewGenerator(20, 5*time.Minute)
	candles := makeCandles(400, 5*time.Minute)
	closes := model.Closes(candles)

	windows := g.Generate("inst-a", candles, "", "")
	require.NotEmpty(t, windows)

	first := windows[0]
	require.NotNil(t, first.Outcome24h)
	assert.InDelta(t, closes[19+288]-closes[19], *first.Outcome24h, 1e-12)

	last := windows[len(windows)-1]
	assert.Nil(t, last.Outcome24h, "24h outcome is unknown near the tail, never zero")
	assert.NotNil(t, last.Outcome4h)
}

func TestGenerator_DeterministicIDs(t *testing.T) {
	g := pattern.NewGenerator(20, 5*time.Minute)
	candles := makeCandles(100, 5*time.Minute)

	a := g.Generate("inst-a", candles, "", "")
	b := g.Generate("inst-a", candles, "", "")
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID, "regeneration maps onto the same rows")
	}
}
