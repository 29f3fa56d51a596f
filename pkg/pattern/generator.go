package pattern

import (
	"time"

	"github.com/hollanded/kindred/pkg/model"
)

// DefaultWindowLength is the number of candles per pattern window.
const DefaultWindowLength = 20

// Generator slides a fixed-length window over a close-price series and labels
// each window with the signed close deltas observed H1/H2/H3 candles later.
// Horizon offsets are candle counts derived from the candle interval, e.g.
// 5-minute candles give H1=12, H2=48, H3=288.
type Generator struct {
	Window int
	H1     int
	H2     int
	H3     int
}

// NewGenerator derives horizon offsets from the candle interval.
func NewGenerator(window int, interval time.Duration) *Generator {
	if window <= 0 {
		window = DefaultWindowLength
	}
	return &Generator{
		Window: window,
		H1:     model.Horizon1h.Candles(interval),
		H2:     model.Horizon4h.Candles(interval),
		H3:     model.Horizon24h.Candles(interval),
	}
}

// Generate produces one pattern window per sliding start position. Start
// indices run over [0, N-W-H2]; windows whose 1h/4h outcomes are in range get
// them labeled, the 24h outcome stays nil near the tail of the series. The
// whole instrument is skipped when the series cannot support even one fully
// 4h-labeled window.
//
// This is an O(N) batch operation meant for maintenance and backfill jobs,
// never for the query path.
func (g *Generator) Generate(instrumentID string, candles []model.Candle, contextID, contextLabel string) []*model.PatternWindow {
	n := len(candles)
	if n < g.Window+g.H2 {
		return nil
	}

	closes := model.Closes(candles)
	windows := make([]*model.PatternWindow, 0, n-g.Window-g.H2+1)

	for i := 0; i <= n-g.Window-g.H2; i++ {
		end := i + g.Window - 1
		start := candles[i].BucketStart

		windows = append(windows, &model.PatternWindow{
			ID:           model.PatternID(instrumentID, start, g.Window),
			InstrumentID: instrumentID,
			ContextID:    contextID,
			ContextLabel: contextLabel,
			WindowStart:  start,
			WindowEnd:    candles[end].BucketStart,
			Length:       g.Window,
			Series:       MinMaxNormalize(closes[i : i+g.Window]),
			Outcome1h:    outcomeAt(closes, end, g.H1),
			Outcome4h:    outcomeAt(closes, end, g.H2),
			Outcome24h:   outcomeAt(closes, end, g.H3),
		})
	}

	return windows
}

// outcomeAt returns close[end+h] - close[end], or nil when the series does
// not reach that far. Unknown is nil, never zero: absent outcomes are
// excluded from statistics, not zeroed into them.
func outcomeAt(closes []float64, end, h int) *float64 {
	if h <= 0 || end+h >= len(closes) {
		return nil
	}
	delta := closes[end+h] - closes[end]
	return &delta
}
