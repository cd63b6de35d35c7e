package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memecoin-radar/internal/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = logger.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Fatal(err)
	}

	compressOldLogs(ctx)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Warn(ctx, "Signal received, finishing current batch", "signal", s.String())
		cancel()
	}()

	p, err := initializePipeline(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Startup failed", err)
		os.Exit(1)
	}

	logger.Info(ctx, "Radar run starting", "mode", cfg.Mode, "provider", cfg.Oracle.Provider)
	if err := p.Run(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Warn(ctx, "Run interrupted, progress checkpointed")
			return
		}
		logger.ErrorWithErr(ctx, "Run failed", err)
		os.Exit(1)
	}
}
