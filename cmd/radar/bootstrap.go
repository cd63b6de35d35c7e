package main

import (
	"context"
	"fmt"
	"os"

	"memecoin-radar/internal/checkpoint"
	"memecoin-radar/internal/feed"
	"memecoin-radar/internal/interfaces"
	"memecoin-radar/internal/logger"
	"memecoin-radar/internal/market"
	"memecoin-radar/internal/oracle/gemini"
	"memecoin-radar/internal/oracle/noop"
	"memecoin-radar/internal/oracle/oracleobs"
	"memecoin-radar/internal/pipeline"
	"memecoin-radar/internal/report"
	"memecoin-radar/internal/runlog"
	"memecoin-radar/internal/store"
	"memecoin-radar/internal/trace"

	"github.com/joho/godotenv"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := "config.yaml"
	if v := os.Getenv("RADAR_CONFIG"); v != "" {
		path = v
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old runlog files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("RADAR_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := runlog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeOracle initializes and returns the oracle with observability.
// A GEMINI provider with no usable credentials is a startup failure.
func initializeOracle(ctx context.Context, cfg *store.Config) (interfaces.Oracle, error) {
	var oracle interfaces.Oracle

	switch cfg.Oracle.Provider {
	case "GEMINI":
		client, err := gemini.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("gemini oracle unavailable: %w", err)
		}
		logger.Info(ctx, "Gemini oracle initialized",
			"model", cfg.Oracle.Model, "credentials", client.KeyCount())
		oracle = client
	default:
		oracle = noop.New()
		logger.Warn(ctx, "No oracle provider configured - using Noop oracle (neutral verdicts)")
	}

	// Wrap with observability middleware
	return oracleobs.Wrap(oracle), nil
}

// initializePipeline wires the sources, oracle and sinks into one pipeline
func initializePipeline(ctx context.Context, cfg *store.Config) (*pipeline.Pipeline, error) {
	oracle, err := initializeOracle(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return pipeline.New(cfg,
		feed.NewFileSource(cfg.Paths.Posts),
		market.NewFileSource(cfg.Paths.Market),
		oracle,
		checkpoint.New(cfg.Paths.Checkpoint),
		report.NewWriter(cfg.Paths.Report),
	), nil
}
