// Package main is the entry point for the point cloud viewer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Faultbox/arcloud/internal/app"
	"github.com/Faultbox/arcloud/internal/config"
	"github.com/Faultbox/arcloud/internal/experiment/sinks"
	"github.com/Faultbox/arcloud/internal/logger"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== arcloud viewer ===", zap.String("config", cfg.Path))
	logger.Sugar.Debugf("Config: %+v", cfg)

	store, err := sinks.Open(cfg.Experiment)
	if err != nil {
		logger.Error("failed to open experiment storage", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	a, err := app.New(cfg, store)
	if err != nil {
		logger.Error("failed to create viewer", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}
