// Package app wires configuration into a ready-to-run crawler with its
// optional storage backends.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/promo-crawler/internal/browser"
	"github.com/maltedev/promo-crawler/internal/cache"
	"github.com/maltedev/promo-crawler/internal/config"
	"github.com/maltedev/promo-crawler/internal/crawler"
	"github.com/maltedev/promo-crawler/internal/database"
	"github.com/maltedev/promo-crawler/internal/output"
	"github.com/maltedev/promo-crawler/internal/session"
)

type App struct {
	Orchestrator *crawler.Orchestrator
	Files        *output.FileWriter

	// Snapshots and Cache are nil unless configured.
	Snapshots *database.SnapshotRepository
	Cache     *cache.SnapshotCache

	browser *browser.Browser
	db      *database.DB
	logger  *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger.With("component", "app")}

	files, err := output.NewFileWriter(cfg.Crawl.OutputDir, logger)
	if err != nil {
		return nil, err
	}
	a.Files = files
	sinks := []crawler.Sink{files}

	if cfg.DatabaseEnabled() {
		db, err := database.New(ctx, DatabaseConfig(cfg))
		if err != nil {
			return nil, err
		}
		a.db = db
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Snapshots = database.NewSnapshotRepository(db, logger)
		sinks = append(sinks, a.Snapshots)
	}

	if cfg.RedisEnabled() {
		client, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Cache = cache.New(client, cfg.Redis.SnapshotTTL, logger)
		sinks = append(sinks, a.Cache)
	}

	b, err := browser.New(BrowserOptions(cfg))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	a.browser = b

	orchestrator, err := crawler.New(CrawlerOptions(cfg), Sessions(b), session.NewHTTPFetcher(logger), logger, sinks...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Orchestrator = orchestrator

	a.logger.Info("crawler ready",
		"output_dir", cfg.Crawl.OutputDir,
		"database", cfg.DatabaseEnabled(),
		"redis", cfg.RedisEnabled())

	return a, nil
}

// Sessions adapts the browser to the orchestrator's session factory.
func Sessions(b *browser.Browser) crawler.SessionFactory {
	return crawler.SessionFactoryFunc(func(ctx context.Context) (crawler.Renderer, error) {
		s, err := b.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

func CrawlerOptions(cfg *config.Config) crawler.Options {
	return crawler.Options{
		InitialURL:        cfg.Crawl.InitialURL,
		BrowseURL:         cfg.Crawl.BrowseURL,
		BaseURL:           cfg.Crawl.BaseURL,
		UserAgent:         cfg.Crawl.UserAgent,
		MaxScrolls:        cfg.Crawl.MaxScrolls,
		SettleDelay:       cfg.Crawl.SettleDelay,
		ChildWorkers:      cfg.Crawl.ChildWorkers,
		ChildRequestDelay: cfg.Crawl.ChildRequestDelay,
		ChildTimeout:      cfg.Crawl.ChildTimeout,
		TimeframeTimeout:  cfg.Crawl.TimeframeTimeout,
	}
}

// BrowserOptions uses the crawl user agent so the renderer and the
// stateless fetcher present the same client.
func BrowserOptions(cfg *config.Config) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Crawl.PageTimeout
	opts.UserAgent = cfg.Crawl.UserAgent
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.AcceptLanguage = cfg.Browser.AcceptLanguage
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	return opts
}

func DatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		MaxConns: cfg.Database.MaxConns,
	}
}

func (a *App) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Warn("failed to close browser", "error", err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
