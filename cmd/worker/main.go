package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go/jetstream"
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
	ConfigPath string
	CSVPath    string
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

	logger := newLogger(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info().Str("duckdb", cfg.Database.Path).Str("nats", cfg.NATS.URL).Msg("starting worker")

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

	var indexer engine.SeriesIndexer
	var recall library.Recaller
	if cfg.Milvus.Enabled {
		milvusClient, err := milvus.NewClient(ctx, milvus.Config{Address: cfg.Milvus.Address})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Milvus")
		}
		defer milvusClient.Close()

		index, err := milvus.NewSeriesIndex(ctx, milvusClient, cfg.Milvus.Collection, cfg.Engine.WindowLength)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare series index")
		}
		indexer, recall = index, index
	}

	lib := library.New(library.Config{
		BaseInterval:     cfg.Engine.BaseInterval,
		MaxPerInstrument: cfg.Library.MaxPerInstrument,
		ScanBudget:       cfg.Library.ScanBudget,
		CacheTTL:         cfg.Library.CacheTTL,
	}, patternRepo, candleRepo, recall, logger)

	var eng *engine.Engine
	if cfg.Data.CSVPath != "" {
		provider := data.NewRetryingProvider(
			data.NewCSVProvider(cfg.Data.CSVPath),
			data.RetryConfig{
				MaxAttempts:    cfg.Retry.MaxAttempts,
				AttemptTimeout: cfg.Retry.AttemptTimeout,
				InitialDelay:   cfg.Retry.InitialDelay,
				MaxDelay:       cfg.Retry.MaxDelay,
			}, logger)
		eng = engine.New(engine.Config{
			BaseInterval:     cfg.Engine.BaseInterval,
			Fidelity:         cfg.Data.Fidelity,
			WindowLength:     cfg.Engine.WindowLength,
			Epsilon:          cfg.Engine.Epsilon,
			HistoryLimit:     cfg.Engine.HistoryLimit,
			ScoreConcurrency: cfg.Engine.ScoreConcurrency,
			BackfillWorkers:  cfg.Engine.BackfillWorkers,
		}, provider, candleRepo, patternRepo, lib, indexer, logger)
	}

	natsClient, err := nats.NewClient(nats.Config{
		URL:        cfg.NATS.URL,
		StreamName: cfg.NATS.StreamName,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer natsClient.Close()

	subjects := []string{nats.SubjectBackfill, nats.SubjectCandleWrite, nats.SubjectPatternWrite}
	if err := natsClient.CreateStream(ctx, subjects); err != nil {
		logger.Fatal().Err(err).Msg("failed to create stream")
	}

	candleConsumer, err := natsClient.Subscribe(ctx, nats.SubjectCandleWrite, "candle-writer", func(msg jetstream.Msg) error {
		batch, err := nats.DecodeCandleBatch(msg.Data())
		if err != nil {
			logger.Error().Err(err).Msg("failed to decode candle batch")
			return err
		}
		if len(batch.Candles) == 0 {
			return nil
		}
		if err := candleRepo.Upsert(ctx, batch.Candles); err != nil {
			logger.Error().Err(err).Msg("failed to upsert candles")
			return err
		}
		lib.Invalidate()
		logger.Info().Int("candles", len(batch.Candles)).Msg("candle batch written")
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe to candle writes")
	}
	defer candleConsumer.Stop()

	patternConsumer, err := natsClient.Subscribe(ctx, nats.SubjectPatternWrite, "pattern-writer", func(msg jetstream.Msg) error {
		batch, err := nats.DecodePatternBatch(msg.Data())
		if err != nil {
			logger.Error().Err(err).Msg("failed to decode pattern batch")
			return err
		}
		if len(batch.Windows) == 0 {
			return nil
		}
		if err := patternRepo.Upsert(ctx, batch.Windows); err != nil {
			logger.Error().Err(err).Msg("failed to upsert patterns")
			return err
		}
		if indexer != nil {
			if err := indexer.Upsert(ctx, batch.Windows); err != nil {
				logger.Warn().Err(err).Msg("series index update failed")
			}
		}
		logger.Info().Int("patterns", len(batch.Windows)).Msg("pattern batch written")
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe to pattern writes")
	}
	defer patternConsumer.Stop()

	backfillConsumer, err := natsClient.Subscribe(ctx, nats.SubjectBackfill, "backfill-worker", func(msg jetstream.Msg) error {
		job, err := nats.DecodeBackfill(msg.Data())
		if err != nil {
			logger.Error().Err(err).Msg("failed to decode backfill job")
			return err
		}
		if eng == nil {
			logger.Error().Str("instrument", job.InstrumentID).Msg("backfill job received but no data source configured")
			return fmt.Errorf("no data source configured")
		}
		var bctx *engine.BackfillContext
		if job.ContextID != "" || job.ContextLabel != "" {
			bctx = &engine.BackfillContext{ID: job.ContextID, Label: job.ContextLabel}
		}
		result, err := eng.Backfill(ctx, job.InstrumentID, bctx)
		if err != nil {
			logger.Error().Err(err).Str("instrument", job.InstrumentID).Msg("backfill job failed")
			return err
		}
		logger.Info().
			Str("instrument", job.InstrumentID).
			Int("candles", result.CandleCount).
			Int("patterns", result.PatternCount).
			Msg("backfill job done")
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe to backfill jobs")
	}
	defer backfillConsumer.Stop()

	logger.Info().Msg("worker started, waiting for jobs")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down worker")
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

	flag.Parse()
	return f
}
