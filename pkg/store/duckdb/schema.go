package duckdb

import (
	"context"
	"fmt"
)

// CreateCandlesTable creates the candles fact table. One row per
// (instrument, bucket); upserts overwrite OHLCV because source data is
// authoritative and recomputed.
const CreateCandlesTable = `
CREATE TABLE IF NOT EXISTS candles (
    instrument_id VARCHAR NOT NULL,
    bucket_start TIMESTAMP NOT NULL,
    open DOUBLE,
    high DOUBLE,
    low DOUBLE,
    close DOUBLE,
    volume DOUBLE,
    PRIMARY KEY (instrument_id, bucket_start)
);
`

// CreatePatternWindowsTable creates the pattern library table. The id is
// deterministic over (instrument, window_start, length), so re-running
// generation hits the same rows; outcome columns are nullable because an
// unknown outcome is null, never zero.
const CreatePatternWindowsTable = `
CREATE TABLE IF NOT EXISTS pattern_windows (
    id VARCHAR PRIMARY KEY,
    instrument_id VARCHAR NOT NULL,
    context_id VARCHAR,
    context_label VARCHAR,
    window_start TIMESTAMP NOT NULL,
    window_end TIMESTAMP NOT NULL,
    length INTEGER NOT NULL,
    series VARCHAR NOT NULL,
    outcome_1h DOUBLE,
    outcome_4h DOUBLE,
    outcome_24h DOUBLE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_patterns_instrument ON pattern_windows(instrument_id);
CREATE INDEX IF NOT EXISTS idx_patterns_window_start ON pattern_windows(window_start);
`

// InitializeSchema creates all required tables.
func InitializeSchema(ctx context.Context, c *Client) error {
	schemas := []string{
		CreateCandlesTable,
		CreatePatternWindowsTable,
	}

	for _, schema := range schemas {
		if err := c.Exec(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// PurgeInstrument removes every candle and pattern for one instrument. This
// is the only deletion path; the library otherwise grows monotonically.
func PurgeInstrument(ctx context.Context, c *Client, instrumentID string) error {
	if err := c.Exec(ctx, "DELETE FROM pattern_windows WHERE instrument_id = ?", instrumentID); err != nil {
		return fmt.Errorf("failed to purge patterns: %w", err)
	}
	if err := c.Exec(ctx, "DELETE FROM candles WHERE instrument_id = ?", instrumentID); err != nil {
		return fmt.Errorf("failed to purge candles: %w", err)
	}
	return nil
}
