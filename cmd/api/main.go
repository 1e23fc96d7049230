package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/promo-crawler/internal/api"
	"github.com/maltedev/promo-crawler/internal/app"
	"github.com/maltedev/promo-crawler/internal/config"
	"github.com/maltedev/promo-crawler/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize crawler", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var (
		publisher api.Publisher
		readers   []api.SnapshotReader
	)
	if a.Cache != nil {
		publisher = a.Cache
		readers = append(readers, a.Cache)
	}
	if a.Snapshots != nil {
		readers = append(readers, a.Snapshots)
	}

	runner := api.NewRunner(ctx, a.Orchestrator, publisher, logger)
	handlers := api.NewHandlers(runner, logger, readers...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	// in-flight runs observe the cancelled context and wind down
	runner.Wait()
	logger.Info("server stopped")
}
