package data_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollanded/kindred/pkg/data"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticks.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestCSVProvider_FetchSkipsMalformedRows(t *testing.T) {
	path := writeCSV(t, `instrument_id,timestamp,price
btc-usd,1735776000,0.41
btc-usd,not-a-number,0.42
,1735776300,0.43
btc-usd,1735776600,bad
btc-usd,1735776900,0.44
eth-usd,1735776000,0.60
`)

	provider := data.NewCSVProvider(path)
	points, err := provider.Fetch(context.Background(), "btc-usd", time.Time{}, time.Minute)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 0.41, points[0].Price)
	assert.Equal(t, 0.44, points[1].Price)
}

func TestCSVProvider_FetchHonorsSince(t *testing.T) {
	path := writeCSV(t, `instrument_id,timestamp,price
btc-usd,1735776000,0.41
btc-usd,1735776300,0.42
btc-usd,1735776600,0.43
`)

	provider := data.NewCSVProvider(path)
	since := time.Unix(1735776300, 0)
	points, err := provider.Fetch(context.Background(), "btc-usd", since, time.Minute)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(1735776300), points[0].Timestamp)
}

func TestCSVProvider_Instruments(t *testing.T) {
	path := writeCSV(t, `instrument_id,timestamp,price
btc-usd,1735776000,0.41
eth-usd,1735776000,0.60
btc-usd,1735776300,0.42
`)

	provider := data.NewCSVProvider(path)
	ids, err := provider.Instruments()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"btc-usd", "eth-usd"}, ids)
}

// Backfill workers call Fetch on a cold provider concurrently; the lazy
// load must happen exactly once with every caller seeing the full file.
func TestCSVProvider_ConcurrentFirstFetch(t *testing.T) {
	path := writeCSV(t, `instrument_id,timestamp,price
btc-usd,1735776000,0.41
btc-usd,1735776300,0.42
eth-usd,1735776000,0.60
eth-usd,1735776300,0.61
`)

	provider := data.NewCSVProvider(path)

	const goroutines = 8
	results := make([][]int, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		g := g // per-iteration copy for Go <1.22 loop semantics
		wg.Add(1)
		go func() {
			defer wg.Done()
			instrument := "btc-usd"
			if g%2 == 1 {
				instrument = "eth-usd"
			}
			points, err := provider.Fetch(context.Background(), instrument, time.Time{}, time.Minute)
			assert.NoError(t, err)
			results[g] = []int{len(points)}
		}()
	}
	wg.Wait()

	for g := 0; g < goroutines; g++ {
		require.Equal(t, []int{2}, results[g], "goroutine %d saw a partial load", g)
	}
}

func TestCSVProvider_MissingFile(t *testing.T) {
	provider := data.NewCSVProvider(filepath.Join(t.TempDir(), "absent.csv"))
	_, err := provider.Fetch(context.Background(), "btc-usd", time.Time{}, time.Minute)
	require.Error(t, err)
}
