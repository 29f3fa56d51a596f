package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hollanded/kindred/pkg/config"
	"github.com/hollanded/kindred/pkg/data"
	"github.com/hollanded/kindred/pkg/engine"
	"github.com/hollanded/kindred/pkg/library"
	"github.com/hollanded/kindred/pkg/model"
	"github.com/hollanded/kindred/pkg/rerank"
	"github.com/hollanded/kindred/pkg/store/duckdb"
	"github.com/hollanded/kindred/pkg/store/milvus"
)

type flags struct {
	ConfigPath  string
	CSVPath     string
	Instrument  string
	Window      int
	Horizon     string
	TopK        int
	MaxDistance float64
	Interval    time.Duration
	Recency     bool
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

	// Unset flags fall back to the configured search defaults.
	if f.Window <= 0 {
		f.Window = cfg.Engine.WindowLength
	}
	if f.Horizon == "" {
		f.Horizon = cfg.Search.Horizon
	}
	if f.TopK <= 0 {
		f.TopK = cfg.Search.TopK
	}
	if f.MaxDistance <= 0 {
		f.MaxDistance = cfg.Search.MaxDistance
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	if f.Instrument == "" {
		logger.Fatal().Msg("-instrument is required")
	}
	if cfg.Data.CSVPath == "" {
		logger.Fatal().Msg("no data source: set -csv or data.csv_path")
	}

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

	var recall library.Recaller
	if cfg.Milvus.Enabled {
		milvusClient, err := milvus.NewClient(ctx, milvus.Config{Address: cfg.Milvus.Address})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Milvus")
		}
		defer milvusClient.Close()

		index, err := milvus.NewSeriesIndex(ctx, milvusClient, cfg.Milvus.Collection, f.Window)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare series index")
		}
		recall = index
	}

	provider := data.NewRetryingProvider(
		data.NewCSVProvider(cfg.Data.CSVPath),
		data.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			AttemptTimeout: cfg.Retry.AttemptTimeout,
			InitialDelay:   cfg.Retry.InitialDelay,
			MaxDelay:       cfg.Retry.MaxDelay,
		}, logger)

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
	}, provider, candleRepo, patternRepo, lib, nil, logger)

	result, err := eng.Search(ctx, engine.SearchParams{
		InstrumentID:   f.Instrument,
		WindowSize:     f.Window,
		Horizon:        model.Horizon(f.Horizon),
		MaxDistance:    f.MaxDistance,
		TopK:           f.TopK,
		CandleInterval: f.Interval,
	})
	if err != nil {
		if errors.Is(err, engine.ErrInsufficientData) {
			logger.Fatal().Err(err).Msg("not enough price history for a query window")
		}
		logger.Fatal().Err(err).Msg("search failed")
	}

	printResult(result, f.Horizon)

	if f.Recency {
		printReranked(result.Matches)
	}
}

func printReranked(matches []model.MatchResult) {
	ranked := rerank.NewReranker(rerank.DefaultTimeDecayConfig()).Rerank(matches, time.Now())

	fmt.Printf("\nRecency-weighted order:\n")
	fmt.Printf("%-5s %-12s %-20s %-8s %-8s %-8s\n",
		"Rank", "Instrument", "Window End", "Sim%", "Weight", "Score")
	for i, m := range ranked {
		fmt.Printf("%-5d %-12s %-20s %-8.2f %-8.4f %-8.2f\n",
			i+1, m.Pattern.InstrumentID, m.Pattern.WindowEnd.Format("2006-01-02 15:04"),
			m.Similarity, m.TimeWeight, m.FinalScore)
	}
}

func printResult(result *engine.SearchResult, horizon string) {
	fmt.Printf("Query: %s  window=%d  interval=%s  ends=%s\n\n",
		result.Query.InstrumentID, result.Query.WindowSize, result.Query.Interval,
		result.Query.WindowEnd.Format(time.RFC3339))

	fmt.Printf("%-5s %-12s %-20s %-10s %-8s %-10s %-8s\n",
		"Rank", "Instrument", "Window Start", "Distance", "Sim%", "Outcome", "Dir")
	fmt.Println("--------------------------------------------------------------------------------")
	for i, m := range result.Matches {
		outcome := "unknown"
		if m.Outcome != nil {
			outcome = fmt.Sprintf("%+.4f", *m.Outcome)
		}
		fmt.Printf("%-5d %-12s %-20s %-10.4f %-8.2f %-10s %-8s\n",
			i+1, m.Pattern.InstrumentID, m.Pattern.WindowStart.Format("2006-01-02 15:04"),
			m.Distance, m.Similarity, outcome, m.Direction)
	}

	s := result.Statistics
	fmt.Printf("\nMatches: %d  up=%d down=%d flat=%d  (up %.1f%% / down %.1f%%)\n",
		s.TotalMatches, s.UpCount, s.DownCount, s.FlatCount, s.UpPercentage, s.DownPercentage)

	p := result.Prediction
	fmt.Printf("Prediction (%s): %s  confidence=%.2f  expected_move=%+.4f  p=%.4f\n",
		horizon, p.Direction, p.Confidence, p.ExpectedMove, p.PValue)
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
	flag.StringVar(&f.Instrument, "instrument", "", "Instrument id to search for")
	flag.IntVar(&f.Window, "window", 0, "Query window length in candles (default: configured window length)")
	flag.StringVar(&f.Horizon, "horizon", "", "Outcome horizon: 1h, 4h or 24h (default: configured horizon)")
	flag.IntVar(&f.TopK, "topk", 0, "Top K matches to keep (default: configured top k)")
	flag.Float64Var(&f.MaxDistance, "max-distance", 0, "DTW distance cutoff (default: configured cutoff)")
	flag.DurationVar(&f.Interval, "interval", 0, "Candle interval (default: configured base interval)")
	flag.BoolVar(&f.Recency, "recency", false, "Also print matches reordered by time-decayed similarity")

	flag.Parse()
	return f
}
