package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hollanded/kindred/pkg/config"
	"github.com/hollanded/kindred/pkg/data"
	"github.com/hollanded/kindred/pkg/engine"
	"github.com/hollanded/kindred/pkg/library"
	"github.com/hollanded/kindred/pkg/queue/nats"
	"github.com/hollanded/kindred/pkg/store/duckdb"
	"github.com/hollanded/kindred/pkg/store/milvus"
)

type flags struct {
	ConfigPath   string
	CSVPath      string
	Instruments  string
	ContextID    string
	ContextLabel string
	Purge        bool
	Enqueue      bool
}

func main() {
	f := parseFlags()

	cfg, err := config.LoadWithEnv(f.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if f.CSVPath != "" {
		cfg.Data.CSVPath = f.CSVPath
	}
	if f.Instruments != "" {
		cfg.Data.Instruments = strings.Split(f.Instruments, ",")
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	if f.Enqueue {
		enqueue(ctx, cfg, f, logger)
		return
	}

	if cfg.Data.CSVPath == "" {
		logger.Fatal().Msg("no data source: set -csv or data.csv_path")
	}

	logger.Info().Str("duckdb", cfg.Database.Path).Msg("connecting to DuckDB")
	duckClient, err := duckdb.NewClient(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to DuckDB")
	}
	defer duckClient.Close()

	if err := duckdb.InitializeSchema(ctx, duckClient); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize schema")
	}

	candleRepo := duckdb.NewCandleRepo(duckClient)
	patternRepo := duckdb.NewPatternRepo(duckClient)

	var seriesIndex *milvus.SeriesIndex
	var indexer engine.SeriesIndexer
	var recall library.Recaller
	if cfg.Milvus.Enabled {
		logger.Info().Str("milvus", cfg.Milvus.Address).Msg("connecting to Milvus")
		milvusClient, err := milvus.NewClient(ctx, milvus.Config{Address: cfg.Milvus.Address})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Milvus")
		}
		defer milvusClient.Close()

		seriesIndex, err = milvus.NewSeriesIndex(ctx, milvusClient, cfg.Milvus.Collection, cfg.Engine.WindowLength)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare series index")
		}
		indexer, recall = seriesIndex, seriesIndex
	}

	csv := data.NewCSVProvider(cfg.Data.CSVPath)
	provider := data.NewRetryingProvider(csv, data.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		AttemptTimeout: cfg.Retry.AttemptTimeout,
		InitialDelay:   cfg.Retry.InitialDelay,
		MaxDelay:       cfg.Retry.MaxDelay,
	}, logger)

	instruments := cfg.Data.Instruments
	if len(instruments) == 0 {
		instruments, err = csv.Instruments()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to list instruments")
		}
	}
	if len(instruments) == 0 {
		logger.Fatal().Msg("no instruments to backfill")
	}

	lib := library.New(library.Config{
		BaseInterval:     cfg.Engine.BaseInterval,
		MaxPerInstrument: cfg.Library.MaxPerInstrument,
		ScanBudget:       cfg.Library.ScanBudget,
		CacheTTL:         cfg.Library.CacheTTL,
	}, patternRepo, candleRepo, recall, logger)

	eng := engine.New(engine.Config{
		BaseInterval:     cfg.Engine.BaseInterval,
		Fidelity:         cfg.Data.Fidelity,
		WindowLength:     cfg.Engine.WindowLength,
		Epsilon:          cfg.Engine.Epsilon,
		HistoryLimit:     cfg.Engine.HistoryLimit,
		ScoreConcurrency: cfg.Engine.ScoreConcurrency,
		BackfillWorkers:  cfg.Engine.BackfillWorkers,
	}, provider, candleRepo, patternRepo, lib, indexer, logger)

	var bctx *engine.BackfillContext
	if f.ContextID != "" || f.ContextLabel != "" {
		bctx = &engine.BackfillContext{ID: f.ContextID, Label: f.ContextLabel}
	}

	if f.Purge {
		for _, id := range instruments {
			if err := duckdb.PurgeInstrument(ctx, duckClient, id); err != nil {
				logger.Fatal().Err(err).Str("instrument", id).Msg("failed to purge instrument")
			}
			logger.Info().Str("instrument", id).Msg("purged stored history")
		}
	}

	logger.Info().Strs("instruments", instruments).Msg("starting backfill")
	result, err := eng.BackfillAll(ctx, instruments, bctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("backfill failed")
	}

	if seriesIndex != nil {
		if err := seriesIndex.Flush(ctx); err != nil {
			logger.Warn().Err(err).Msg("series index flush failed")
		}
	}

	stats, err := eng.Stats(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read library stats")
	}

	logger.Info().
		Int("candles_written", result.CandleCount).
		Int("patterns_written", result.PatternCount).
		Int64("total_candles", stats.TotalCandles).
		Int64("total_patterns", stats.TotalPatterns).
		Int("instruments", stats.UniqueInstruments).
		Msg("backfill finished")
}

// enqueue publishes one backfill job per instrument for cmd/worker instead of
// running the backfill inline.
func enqueue(ctx context.Context, cfg *config.Config, f flags, logger zerolog.Logger) {
	if len(cfg.Data.Instruments) == 0 {
		logger.Fatal().Msg("-enqueue requires -instruments or data.instruments")
	}

	natsClient, err := nats.NewClient(nats.Config{
		URL:        cfg.NATS.URL,
		StreamName: cfg.NATS.StreamName,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer natsClient.Close()

	if err := natsClient.CreateStream(ctx, []string{nats.SubjectBackfill}); err != nil {
		logger.Fatal().Err(err).Msg("failed to create stream")
	}

	for _, id := range cfg.Data.Instruments {
		payload, err := nats.Encode(nats.BackfillMsg{
			InstrumentID: id,
			ContextID:    f.ContextID,
			ContextLabel: f.ContextLabel,
			RequestedAt:  time.Now().UTC(),
		})
		if err != nil {
			logger.Fatal().Err(err).Str("instrument", id).Msg("failed to encode job")
		}
		if err := natsClient.Publish(ctx, nats.SubjectBackfill, payload); err != nil {
			logger.Fatal().Err(err).Str("instrument", id).Msg("failed to publish job")
		}
		logger.Info().Str("instrument", id).Msg("backfill job enqueued")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if cfg.Logging.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}

func parseFlags() flags {
	f := flags{}

	flag.StringVar(&f.ConfigPath, "config", "", "Path to YAML config file")
	flag.StringVar(&f.CSVPath, "csv", "", "Price tick CSV path (overrides config)")
	flag.StringVar(&f.Instruments, "instruments", "", "Comma-separated instrument ids (default: all in CSV)")
	flag.StringVar(&f.ContextID, "context-id", "", "Optional market context id to tag generated windows")
	flag.StringVar(&f.ContextLabel, "context-label", "", "Optional market context label")
	flag.BoolVar(&f.Purge, "purge", false, "Delete stored candles and patterns for the instruments before backfilling")
	flag.BoolVar(&f.Enqueue, "enqueue", false, "Publish backfill jobs to NATS for cmd/worker instead of running inline")

	flag.Parse()
	return f
}
