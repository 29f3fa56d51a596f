package duckdb

import (
	"context"
	"fmt"

	"github.com/hollanded/kindred/pkg/model"
)

// CandleRepo handles candle persistence.
type CandleRepo struct {
	client *Client
}

// NewCandleRepo creates a new candle repository.
func NewCandleRepo(client *Client) *CandleRepo {
	return &CandleRepo{client: client}
}

const upsertCandle = `
	INSERT INTO candles (instrument_id, bucket_start, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (instrument_id, bucket_start) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume
`

// Upsert writes candles idempotently, keyed by (instrument, bucket_start).
// Last writer wins for the whole OHLCV row: the source series is recomputed
// from authoritative ticks, so overwriting is correct, not a race hazard.
func (r *CandleRepo) Upsert(ctx context.Context, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := r.client.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertCandle)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx,
			c.InstrumentID, c.BucketStart, c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert candle: %w", err)
		}
	}

	return tx.Commit()
}

// Latest retrieves the most recent limit candles in chronological order.
func (r *CandleRepo) Latest(ctx context.Context, instrumentID string, limit int) ([]model.Candle, error) {
	query := `
		SELECT instrument_id, bucket_start, open, high, low, close, volume
		FROM candles
		WHERE instrument_id = ?
		ORDER BY bucket_start DESC
		LIMIT ?
	`

	rows, err := r.client.Query(ctx, query, instrumentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		err := rows.Scan(&c.InstrumentID, &c.BucketStart, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	return candles, nil
}

// Count returns the total number of candles across all instruments.
func (r *CandleRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.client.QueryRow(ctx, "SELECT COUNT(*) FROM candles").Scan(&count)
	return count, err
}

// Instruments lists every instrument with stored candles.
func (r *CandleRepo) Instruments(ctx context.Context) ([]string, error) {
	rows, err := r.client.Query(ctx, "SELECT DISTINCT instrument_id FROM candles ORDER BY instrument_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
