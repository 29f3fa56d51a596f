package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/hollanded/kindred/pkg/model"
)

// CSVProvider reads price points from a CSV export with header columns
// instrument_id, timestamp (unix seconds), price. Rows for other instruments
// and malformed rows are skipped. Safe for concurrent use: the file is
// loaded exactly once, and the points map is read-only afterwards.
type CSVProvider struct {
	filePath string
	loadOnce sync.Once
	loadErr  error
	points   map[string][]model.PricePoint
}

// NewCSVProvider creates a CSV-backed price provider.
func NewCSVProvider(filePath string) *CSVProvider {
	return &CSVProvider{
		filePath: filePath,
		points:   make(map[string][]model.PricePoint),
	}
}

// loadIfNeeded parses the file on first call. Backfill fans Fetch out across
// instrument workers, so the one-time load must be the only write.
func (p *CSVProvider) loadIfNeeded() error {
	p.loadOnce.Do(func() {
		p.loadErr = p.load()
	})
	return p.loadErr
}

func (p *CSVProvider) load() error {
	file, err := os.Open(p.filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int)
	for i, col := range header {
		colMap[col] = i
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV record: %w", err)
		}

		instrument, point, err := parseRecord(record, colMap)
		if err != nil {
			continue // skip invalid records
		}
		p.points[instrument] = append(p.points[instrument], point)
	}

	return nil
}

func parseRecord(record []string, colMap map[string]int) (string, model.PricePoint, error) {
	getValue := func(name string) string {
		if idx, ok := colMap[name]; ok && idx < len(record) {
			return record[idx]
		}
		return ""
	}

	instrument := getValue("instrument_id")
	if instrument == "" {
		return "", model.PricePoint{}, fmt.Errorf("missing instrument_id")
	}

	ts, err := strconv.ParseInt(getValue("timestamp"), 10, 64)
	if err != nil {
		return "", model.PricePoint{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	price, err := strconv.ParseFloat(getValue("price"), 64)
	if err != nil {
		return "", model.PricePoint{}, fmt.Errorf("invalid price: %w", err)
	}

	return instrument, model.PricePoint{Timestamp: ts, Price: price}, nil
}

// Fetch returns points for an instrument, filtered by since, oldest first.
func (p *CSVProvider) Fetch(_ context.Context, instrumentID string, since time.Time, _ time.Duration) ([]model.PricePoint, error) {
	if err := p.loadIfNeeded(); err != nil {
		return nil, err
	}

	var result []model.PricePoint
	for _, pt := range p.points[instrumentID] {
		if !since.IsZero() && pt.Time().Before(since) {
			continue
		}
		result = append(result, pt)
	}
	return result, nil
}

// Instruments lists every instrument present in the file.
func (p *CSVProvider) Instruments() ([]string, error) {
	if err := p.loadIfNeeded(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(p.points))
	for id := range p.points {
		ids = append(ids, id)
	}
	return ids, nil
}
