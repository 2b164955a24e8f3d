package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfolio/riskapi/internal/config"
	"github.com/quantfolio/riskapi/internal/dataload"
	"github.com/quantfolio/riskapi/internal/scheduler"
	"github.com/quantfolio/riskapi/internal/server"
	"github.com/quantfolio/riskapi/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info"})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting risk API")

	// Optional SQLite cache for the monthly return series
	var store *dataload.ReturnStore
	if cfg.ReturnsDBPath != "" {
		store, err = dataload.OpenReturnStore(cfg.ReturnsDBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ReturnsDBPath).Msg("Failed to open return store")
		}
		defer store.Close()
	}

	// Load the dataset before serving; analyses have nothing to run against
	// until the first snapshot is in place
	loader := dataload.NewLoader(cfg.DataDir, store, log)
	provider := dataload.NewProvider(loader, log)

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := provider.Reload(loadCtx); err != nil {
		loadCancel()
		log.Fatal().Err(err).Str("data_dir", cfg.DataDir).Msg("Initial data load failed")
	}
	loadCancel()

	// Background reload keeps the snapshot fresh without restarts
	sched := scheduler.New(log)
	if cfg.ReloadSchedule != "" {
		reloadJob := scheduler.NewDatasetReloadJob(provider, log)
		if err := sched.AddJob(cfg.ReloadSchedule, reloadJob); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.ReloadSchedule).Msg("Failed to register reload job")
		}
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Data:      provider,
		Store:     store,
		Scheduler: sched,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sched.Stop()

	log.Info().Msg("Server stopped")
}
