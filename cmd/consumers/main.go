package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatkeeper/cmd/consumers/jobs"
	"seatkeeper/internal/config"
	"seatkeeper/internal/consumers"
	"seatkeeper/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting consumers service...")

	// Separate NATS client ID for consumers
	cfg.NATS.ClientID = "seatkeeper-consumers"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumerService.Start(ctx); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	services := consumerService.Services()
	scheduled, err := jobs.New(services.Expiry, services.Showtimes, cfg.Jobs.SweepInterval, cfg.Jobs.StatusInterval, nil)
	if err != nil {
		logger.Fatal("Failed to schedule jobs", "error", err)
	}
	scheduled.Start()

	slog.Info("Consumers service started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down consumers service...")

	if err := scheduled.Stop(); err != nil {
		slog.Error("Error stopping scheduled jobs", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}

	slog.Info("Consumers service stopped")
}
