// Package candle turns raw price points into fixed-interval OHLCV candles
// and re-aggregates base-interval candles into coarser ones.
package candle

import (
	"sort"
	"time"

	"github.com/hollanded/kindred/pkg/model"
)

// Aggregate buckets price points into fixed-interval candles: open is the
// first price in the bucket, close the last, high/low the running extremes.
// Price points carry no trade size, so Volume is the tick count of the
// bucket, a liquidity proxy rather than traded volume.
// Input may be unsorted and contain duplicate timestamps; it is sorted by a
// stable sort first, so the last point observed in a bucket wins for close.
// Pure function: empty input yields empty output, no side effects.
func Aggregate(points []model.PricePoint, interval time.Duration) []model.Candle {
	if len(points) == 0 || interval <= 0 {
		return nil
	}

	sorted := make([]model.PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	var candles []model.Candle
	var cur *model.Candle
	for _, p := range sorted {
		bucket := model.BucketStartFor(p.Time(), interval)
		if cur == nil || !cur.BucketStart.Equal(bucket) {
			if cur != nil {
				candles = append(candles, *cur)
			}
			cur = &model.Candle{
				BucketStart: bucket,
				Open:        p.Price,
				High:        p.Price,
				Low:         p.Price,
				Close:       p.Price,
				Volume:      1,
			}
			continue
		}
		if p.Price > cur.High {
			cur.High = p.Price
		}
		if p.Price < cur.Low {
			cur.Low = p.Price
		}
		cur.Close = p.Price
		cur.Volume++
	}
	if cur != nil {
		candles = append(candles, *cur)
	}

	return candles
}

// AggregateFor is Aggregate with the instrument stamped onto each candle.
func AggregateFor(instrumentID string, points []model.PricePoint, interval time.Duration) []model.Candle {
	candles := Aggregate(points, interval)
	for i := range candles {
		candles[i].InstrumentID = instrumentID
	}
	return candles
}

// Reaggregate groups factor consecutive base candles into one coarse candle:
// open from the first candle, close from the last, high/low the extremes,
// volume summed. A trailing partial group is dropped so coarse candles always
// cover complete chunks. Input must be chronological.
func Reaggregate(base []model.Candle, factor int) []model.Candle {
	if factor <= 1 {
		return base
	}
	n := len(base) / factor
	if n == 0 {
		return nil
	}

	coarse := make([]model.Candle, 0, n)
	for i := 0; i < n; i++ {
		chunk := base[i*factor : (i+1)*factor]
		c := model.Candle{
			InstrumentID: chunk[0].InstrumentID,
			BucketStart:  chunk[0].BucketStart,
			Open:         chunk[0].Open,
			High:         chunk[0].High,
			Low:          chunk[0].Low,
			Close:        chunk[len(chunk)-1].Close,
		}
		for _, b := range chunk {
			if b.High > c.High {
				c.High = b.High
			}
			if b.Low < c.Low {
				c.Low = b.Low
			}
			c.Volume += b.Volume
		}
		coarse = append(coarse, c)
	}

	return coarse
}
