// Package config loads YAML configuration with defaults and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the full process configuration. Every field carries a default,
// so an empty file (or no file at all) yields a runnable local setup.
type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`

	Database struct {
		Path string `yaml:"path" default:"kindred.db"`
	} `yaml:"database"`

	Milvus struct {
		Enabled    bool   `yaml:"enabled" default:"false"`
		Address    string `yaml:"address" default:"localhost:19530"`
		Collection string `yaml:"collection" default:"pattern_series"`
	} `yaml:"milvus"`

	NATS struct {
		URL        string `yaml:"url" default:"nats://localhost:4222"`
		StreamName string `yaml:"stream_name" default:"kindred"`
	} `yaml:"nats"`

	Data struct {
		CSVPath     string        `yaml:"csv_path"`
		Instruments []string      `yaml:"instruments"`
		Fidelity    time.Duration `yaml:"fidelity" default:"1m"`
	} `yaml:"data"`

	Engine struct {
		BaseInterval     time.Duration `yaml:"base_interval" default:"5m" validate:"gt=0"`
		WindowLength     int           `yaml:"window_length" default:"20" validate:"gt=1"`
		Epsilon          float64       `yaml:"epsilon" default:"0.001" validate:"gte=0"`
		HistoryLimit     int           `yaml:"history_limit" default:"20000" validate:"gt=0"`
		ScoreConcurrency int           `yaml:"score_concurrency" default:"8" validate:"gt=0"`
		BackfillWorkers  int           `yaml:"backfill_workers" default:"4" validate:"gt=0"`
	} `yaml:"engine"`

	Library struct {
		MaxPerInstrument int           `yaml:"max_per_instrument" default:"200" validate:"gt=0"`
		ScanBudget       int           `yaml:"scan_budget" default:"2000" validate:"gt=0"`
		CacheTTL         time.Duration `yaml:"cache_ttl" default:"5m"`
	} `yaml:"library"`

	Search struct {
		TopK        int     `yaml:"top_k" default:"10" validate:"gt=0"`
		MaxDistance float64 `yaml:"max_distance" default:"5.0" validate:"gt=0"`
		Horizon     string  `yaml:"horizon" default:"4h" validate:"oneof=1h 4h 24h"`
	} `yaml:"search"`

	Retry struct {
		MaxAttempts    int           `yaml:"max_attempts" default:"3" validate:"gt=0"`
		AttemptTimeout time.Duration `yaml:"attempt_timeout" default:"10s"`
		InitialDelay   time.Duration `yaml:"initial_delay" default:"500ms"`
		MaxDelay       time.Duration `yaml:"max_delay" default:"10s"`
	} `yaml:"retry"`

	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Pretty bool   `yaml:"pretty" default:"false"`
	} `yaml:"logging"`
}

// Load reads and parses a YAML configuration file. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KINDRED_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("MILVUS_ADDR"); v != "" {
		c.Milvus.Enabled = true
		c.Milvus.Address = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		c.Data.Instruments = strings.Split(v, ",")
	}

	return c, nil
}
