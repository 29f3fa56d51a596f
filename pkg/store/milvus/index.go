package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/hollanded/kindred/pkg/model"
)

// DefaultCollectionName is the default collection for pattern series.
const DefaultCollectionName = "pattern_series"

// SeriesIndex is a recall index over normalized pattern series. All vectors
// in one collection must share a length (and a normalization scheme), since
// L2 recall distances are only meaningful within one scheme.
type SeriesIndex struct {
	client     *Client
	collection string
	dim        int
}

// NewSeriesIndex ensures the collection exists and returns an index handle.
func NewSeriesIndex(ctx context.Context, client *Client, collection string, dim int) (*SeriesIndex, error) {
	if collection == "" {
		collection = DefaultCollectionName
	}

	exists, err := client.conn.HasCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		schema := &entity.Schema{
			CollectionName: collection,
			Description:    "Normalized pattern-window series for candidate recall",
			Fields: []*entity.Field{
				{
					Name:       "id",
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:     "series",
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": fmt.Sprintf("%d", dim),
					},
				},
				{
					Name:       "instrument_id",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:     "window_start",
					DataType: entity.FieldTypeInt64,
				},
			},
		}
		if err := client.conn.CreateCollection(ctx, schema, 2); err != nil {
			return nil, fmt.Errorf("failed to create collection: %w", err)
		}
		if err := client.CreateIndex(ctx, collection); err != nil {
			return nil, fmt.Errorf("failed to index collection: %w", err)
		}
	}

	// Search requires the collection in memory; loading is idempotent.
	if err := client.LoadCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	return &SeriesIndex{client: client, collection: collection, dim: dim}, nil
}

// Flush persists buffered upserts so they become searchable. Call it after
// bulk writes, not per batch.
func (s *SeriesIndex) Flush(ctx context.Context) error {
	return s.client.Flush(ctx, s.collection)
}

// Upsert writes window series into the index, keyed by the deterministic
// window id so regeneration is idempotent here too.
func (s *SeriesIndex) Upsert(ctx context.Context, windows []*model.PatternWindow) error {
	if len(windows) == 0 {
		return nil
	}

	ids := make([]string, 0, len(windows))
	series := make([][]float32, 0, len(windows))
	instruments := make([]string, 0, len(windows))
	starts := make([]int64, 0, len(windows))

	for _, w := range windows {
		if len(w.Series) != s.dim {
			continue // foreign window length, belongs in another collection
		}
		ids = append(ids, w.ID)
		series = append(series, toFloat32(w.Series))
		instruments = append(instruments, w.InstrumentID)
		starts = append(starts, w.WindowStart.Unix())
	}
	if len(ids) == 0 {
		return nil
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector("series", s.dim, series),
		entity.NewColumnVarChar("instrument_id", instruments),
		entity.NewColumnInt64("window_start", starts),
	}

	if _, err := s.client.conn.Upsert(ctx, s.collection, "", columns...); err != nil {
		return fmt.Errorf("failed to upsert series: %w", err)
	}
	return nil
}

// Recall returns the ids of the topN stored series nearest to the query
// under L2. Used only to narrow the candidate set before exact DTW scoring.
func (s *SeriesIndex) Recall(ctx context.Context, query []float64, topN int, excludeInstrument string) ([]string, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("milvus: query length %d does not match index dimension %d", len(query), s.dim)
	}

	var expr string
	if excludeInstrument != "" {
		expr = fmt.Sprintf("instrument_id != %q", excludeInstrument)
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(16) // nprobe
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := s.client.conn.Search(
		ctx,
		s.collection,
		nil, // partitions
		expr,
		[]string{"id"},
		[]entity.Vector{entity.FloatVector(toFloat32(query))},
		"series",
		entity.L2,
		topN,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, results[0].ResultCount)
	for _, field := range results[0].Fields {
		if field.Name() != "id" {
			continue
		}
		col, ok := field.(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		for i := 0; i < results[0].ResultCount; i++ {
			id, err := col.ValueByIdx(i)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}

	return ids, nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
