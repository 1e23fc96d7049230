package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/promo-crawler/internal/app"
	"github.com/maltedev/promo-crawler/internal/config"
	"github.com/maltedev/promo-crawler/internal/crawler"
	"github.com/maltedev/promo-crawler/internal/logger"
)

func main() {
	var (
		outputDir    = flag.String("output", "", "Directory for <timeframe>_offers.json files (overrides CRAWL_OUTPUT_DIR)")
		headless     = flag.Bool("headless", true, "Run browser in headless mode")
		maxScrolls   = flag.Int("max-scrolls", 0, "Maximum scroll iterations per timeframe (0 = config default)")
		childWorkers = flag.Int("child-workers", 0, "Concurrent child page fetches (0 = config default)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *outputDir != "" {
		cfg.Crawl.OutputDir = *outputDir
	}
	if *maxScrolls > 0 {
		cfg.Crawl.MaxScrolls = *maxScrolls
	}
	if *childWorkers > 0 {
		cfg.Crawl.ChildWorkers = *childWorkers
	}
	cfg.Browser.Headless = *headless

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting promo crawler", "initial_url", cfg.Crawl.InitialURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize crawler", "error", err)
		os.Exit(1)
	}

	report, runErr := a.Orchestrator.Run(ctx, "")

	if a.Cache != nil {
		if err := a.Cache.PublishRun(ctx, report.RunID, report.Summary); err != nil {
			logger.Warn("Failed to publish run summary", "error", err)
		}
	}
	a.Close()

	out, err := json.MarshalIndent(report.Summary, "", "  ")
	if err != nil {
		logger.Error("Failed to encode summary", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if runErr != nil {
		if errors.Is(runErr, crawler.ErrDiscovery) {
			logger.Error("Timeframe discovery failed, no output written", "error", runErr)
		}
		os.Exit(1)
	}

	for _, result := range report.Results {
		if result != nil && result.State == crawler.StateDone {
			logger.Info("Wrote offers", "timeframe", result.Window.Key, "path", a.Files.Path(result.Window.Key))
		}
	}
}
