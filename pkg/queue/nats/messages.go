package nats

import (
	"encoding/json"
	"time"

	"github.com/hollanded/kindred/pkg/model"
)

// Subject constants
const (
	SubjectBackfill     = "kindred.jobs.backfill"
	SubjectCandleWrite  = "kindred.candles.write"
	SubjectPatternWrite = "kindred.patterns.write"
)

// BackfillMsg asks a worker to fetch history for one instrument and
// regenerate its pattern windows.
type BackfillMsg struct {
	InstrumentID string    `json:"instrument_id"`
	ContextID    string    `json:"context_id,omitempty"`
	ContextLabel string    `json:"context_label,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}

// CandleBatchMsg carries aggregated candles to the write path.
type CandleBatchMsg struct {
	Candles []model.Candle `json:"candles"`
}

// PatternBatchMsg carries generated pattern windows to the write path.
type PatternBatchMsg struct {
	Windows []*model.PatternWindow `json:"windows"`
}

// Encode serializes a message to JSON bytes
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeBackfill deserializes a BackfillMsg from JSON bytes
func DecodeBackfill(data []byte) (*BackfillMsg, error) {
	var msg BackfillMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeCandleBatch deserializes a CandleBatchMsg from JSON bytes
func DecodeCandleBatch(data []byte) (*CandleBatchMsg, error) {
	var msg CandleBatchMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodePatternBatch deserializes a PatternBatchMsg from JSON bytes
func DecodePatternBatch(data []byte) (*PatternBatchMsg, error) {
	var msg PatternBatchMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
