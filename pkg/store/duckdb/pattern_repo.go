package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hollanded/kindred/pkg/model"
)

// PatternRepo handles pattern-window persistence.
type PatternRepo struct {
	client *Client
}

// NewPatternRepo creates a new pattern repository.
func NewPatternRepo(client *Client) *PatternRepo {
	return &PatternRepo{client: client}
}

// The conflict clause updates ONLY the outcome columns: regeneration is
// re-runnable without ever rewriting an archived normalized series that
// earlier searches already compared against.
const upsertPattern = `
	INSERT INTO pattern_windows (
		id, instrument_id, context_id, context_label,
		window_start, window_end, length, series,
		outcome_1h, outcome_4h, outcome_24h
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		outcome_1h = EXCLUDED.outcome_1h,
		outcome_4h = EXCLUDED.outcome_4h,
		outcome_24h = EXCLUDED.outcome_24h
`

// Upsert writes pattern windows idempotently, keyed by the deterministic id
// over (instrument, window_start, length).
func (r *PatternRepo) Upsert(ctx context.Context, windows []*model.PatternWindow) error {
	if len(windows) == 0 {
		return nil
	}

	tx, err := r.client.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPattern)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, w := range windows {
		series, err := json.Marshal(w.Series)
		if err != nil {
			return fmt.Errorf("failed to encode series: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			w.ID, w.InstrumentID, w.ContextID, w.ContextLabel,
			w.WindowStart, w.WindowEnd, w.Length, string(series),
			w.Outcome1h, w.Outcome4h, w.Outcome24h,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert pattern: %w", err)
		}
	}

	return tx.Commit()
}

// Filter selects pattern windows. Each predicate has exactly one code path;
// the WHERE clause is assembled from typed parts, never ad hoc concatenation
// of caller input.
type Filter struct {
	Length            int
	ExcludeInstrument string
	RequireOutcome    bool
	Limit             int
}

func (f Filter) build() (string, []any) {
	clauses := []string{"length = ?"}
	args := []any{f.Length}

	if f.ExcludeInstrument != "" {
		clauses = append(clauses, "instrument_id != ?")
		args = append(args, f.ExcludeInstrument)
	}
	if f.RequireOutcome {
		clauses = append(clauses, "(outcome_1h IS NOT NULL OR outcome_4h IS NOT NULL OR outcome_24h IS NOT NULL)")
	}

	query := `
		SELECT id, instrument_id, context_id, context_label,
		       window_start, window_end, length, series,
		       outcome_1h, outcome_4h, outcome_24h
		FROM pattern_windows
		WHERE ` + strings.Join(clauses, " AND ") + `
		ORDER BY window_start DESC
	`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return query, args
}

// Query returns matching windows most-recent-first. An empty result is a
// normal outcome, not an error.
func (r *PatternRepo) Query(ctx context.Context, f Filter) ([]*model.PatternWindow, error) {
	query, args := f.build()

	rows, err := r.client.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// ByIDs hydrates full windows for the given ids, e.g. after a vector-recall
// prefilter.
func (r *PatternRepo) ByIDs(ctx context.Context, ids []string) ([]*model.PatternWindow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `
		SELECT id, instrument_id, context_id, context_label,
		       window_start, window_end, length, series,
		       outcome_1h, outcome_4h, outcome_24h
		FROM pattern_windows
		WHERE id IN (` + placeholders + `)
		ORDER BY window_start DESC
	`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.client.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns by id: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// QueryPatterns adapts Query to the library's candidate-source interface.
func (r *PatternRepo) QueryPatterns(ctx context.Context, length int, excludeInstrument string, requireOutcome bool, limit int) ([]*model.PatternWindow, error) {
	return r.Query(ctx, Filter{
		Length:            length,
		ExcludeInstrument: excludeInstrument,
		RequireOutcome:    requireOutcome,
		Limit:             limit,
	})
}

// PatternsByIDs adapts ByIDs to the library's candidate-source interface.
func (r *PatternRepo) PatternsByIDs(ctx context.Context, ids []string) ([]*model.PatternWindow, error) {
	return r.ByIDs(ctx, ids)
}

// UpsertPatterns adapts Upsert to the engine's pattern-store interface.
func (r *PatternRepo) UpsertPatterns(ctx context.Context, windows []*model.PatternWindow) error {
	return r.Upsert(ctx, windows)
}

// CountPatterns adapts Count to the engine's pattern-store interface.
func (r *PatternRepo) CountPatterns(ctx context.Context) (int64, error) {
	return r.Count(ctx)
}

// Count returns the total number of stored pattern windows.
func (r *PatternRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.client.QueryRow(ctx, "SELECT COUNT(*) FROM pattern_windows").Scan(&count)
	return count, err
}

func scanPatterns(rows *sql.Rows) ([]*model.PatternWindow, error) {
	var windows []*model.PatternWindow
	for rows.Next() {
		var w model.PatternWindow
		var contextID, contextLabel sql.NullString
		var series string
		var o1, o4, o24 sql.NullFloat64

		err := rows.Scan(
			&w.ID, &w.InstrumentID, &contextID, &contextLabel,
			&w.WindowStart, &w.WindowEnd, &w.Length, &series,
			&o1, &o4, &o24,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}

		if err := json.Unmarshal([]byte(series), &w.Series); err != nil {
			return nil, fmt.Errorf("failed to decode series: %w", err)
		}
		w.ContextID = contextID.String
		w.ContextLabel = contextLabel.String
		w.Outcome1h = nullableFloat(o1)
		w.Outcome4h = nullableFloat(o4)
		w.Outcome24h = nullableFloat(o24)

		windows = append(windows, &w)
	}
	return windows, rows.Err()
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
