package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollanded/kindred/pkg/config"
)

func TestLoad_EmptyPathYieldsDefaults(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "kindred.db", c.Database.Path)
	assert.False(t, c.Milvus.Enabled)
	assert.Equal(t, 5*time.Minute, c.Engine.BaseInterval)
	assert.Equal(t, 20, c.Engine.WindowLength)
	assert.Equal(t, 10, c.Search.TopK)
	assert.Equal(t, "4h", c.Search.Horizon)
	assert.Equal(t, "info", c.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
database:
  path: /var/lib/kindred/kindred.db
engine:
  window_length: 30
search:
  top_k: 25
`), 0o600))

	c, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, "/var/lib/kindred/kindred.db", c.Database.Path)
	assert.Equal(t, 30, c.Engine.WindowLength)
	assert.Equal(t, 25, c.Search.TopK)
	// Untouched sections keep their defaults.
	assert.Equal(t, "nats://localhost:4222", c.NATS.URL)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  horizon: 2h
`), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoadWithEnv_OverridesFile(t *testing.T) {
	t.Setenv("KINDRED_DB_PATH", "/tmp/override.db")
	t.Setenv("INSTRUMENTS", "btc-usd,eth-usd")

	c, err := config.LoadWithEnv("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", c.Database.Path)
	assert.Equal(t, []string{"btc-usd", "eth-usd"}, c.Data.Instruments)
}
