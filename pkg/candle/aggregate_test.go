package candle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollanded/kindred/pkg/candle"
	"github.com/hollanded/kindred/pkg/model"
)

func tick(ts int64, price float64) model.PricePoint {
	return model.PricePoint{Timestamp: ts, Price: price}
}

func TestAggregate_Empty(t *testing.T) {
	assert.Nil(t, candle.Aggregate(nil, 5*time.Minute))
	assert.Nil(t, candle.Aggregate([]model.PricePoint{}, 5*time.Minute))
}

func TestAggregate_SingleBucketOHLC(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Unix()
	points := []model.PricePoint{
		tick(base, 0.50),
		tick(base+60, 0.80),
		tick(base+120, 0.20),
		tick(base+240, 0.60),
	}

	candles := candle.Aggregate(points, 5*time.Minute)
	require.Len(t, candles, 1)

	c := candles[0]
	assert.Equal(t, 0.50, c.Open, "open must be the first price")
	assert.Equal(t, 0.80, c.High)
	assert.Equal(t, 0.20, c.Low)
	assert.Equal(t, 0.60, c.Close, "close must be the last price")
	assert.Equal(t, 4.0, c.Volume, "volume counts every tick in the bucket")
}

func TestAggregate_UnsortedAndDuplicateInput(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Unix()
	points := []model.PricePoint{
		tick(base+240, 0.60),
		tick(base, 0.50),
		tick(base+120, 0.20),
		tick(base+240, 0.65), // duplicate timestamp: later slice entry wins close
	}

	candles := candle.Aggregate(points, 5*time.Minute)
	require.Len(t, candles, 1)
	assert.Equal(t, 0.50, candles[0].Open)
	assert.Equal(t, 0.65, candles[0].Close, "stable sort keeps input order within a timestamp")
}

func TestAggregate_Idempotent(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Unix()
	var points []model.PricePoint
	for i := int64(0); i < 200; i++ {
		points = append(points, tick(base+i*90, 0.4+float64(i%7)*0.01))
	}

	first := candle.Aggregate(points, 5*time.Minute)
	second := candle.Aggregate(points, 5*time.Minute)
	assert.Equal(t, first, second, "same input must yield identical candles")
}

func TestAggregate_BucketBoundaries(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	points := []model.PricePoint{
		tick(base.Unix(), 0.10),
		tick(base.Add(4*time.Minute+59*time.Second).Unix(), 0.20),
		tick(base.Add(5*time.Minute).Unix(), 0.30),
	}

	candles := candle.Aggregate(points, 5*time.Minute)
	require.Len(t, candles, 2)
	assert.Equal(t, base, candles[0].BucketStart)
	assert.Equal(t, base.Add(5*time.Minute), candles[1].BucketStart)
	assert.Equal(t, 0.20, candles[0].Close)
	assert.Equal(t, 0.30, candles[1].Open)
}

func TestReaggregate_DropsPartialTail(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var candles []model.Candle
	for i := 0; i < 25; i++ {
		candles = append(candles, model.Candle{
			BucketStart: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:        float64(i),
			High:        float64(i) + 0.5,
			Low:         float64(i) - 0.5,
			Close:       float64(i) + 0.25,
		})
	}

	coarse := candle.Reaggregate(candles, 12)
	require.Len(t, coarse, 2, "25 base candles at factor 12 yield 2 complete chunks")
	assert.Equal(t, candles[0].Open, coarse[0].Open)
	assert.Equal(t, candles[11].Close, coarse[0].Close)
	assert.Equal(t, candles[23].Close, coarse[1].Close)
}

// 60-minute candles built directly from ticks must agree with 60-minute
// candles rebuilt from stored 5-minute candles at aligned chunk boundaries.
func TestReaggregate_ConsistentWithDirectAggregation(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Unix()
	var points []model.PricePoint
	for i := int64(0); i < 6*60*2; i++ { // six hours of 30s ticks
		price := 0.5 + 0.1*float64(i%13)/13 - 0.05*float64(i%7)/7
		points = append(points, tick(base+i*30, price))
	}

	direct := candle.Aggregate(points, time.Hour)
	fromBase := candle.Reaggregate(candle.Aggregate(points, 5*time.Minute), 12)

	require.Equal(t, len(direct), len(fromBase))
	for i := range direct {
		assert.Equal(t, direct[i].BucketStart, fromBase[i].BucketStart)
		assert.InDelta(t, direct[i].Close, fromBase[i].Close, 1e-12,
			"closes must match at aligned chunk boundaries")
		assert.InDelta(t, direct[i].Open, fromBase[i].Open, 1e-12)
	}
}
