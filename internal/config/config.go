package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Crawl    CrawlConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type CrawlConfig struct {
	BaseURL           string
	InitialURL        string
	BrowseURL         string
	UserAgent         string
	PageTimeout       time.Duration
	MaxScrolls        int
	SettleDelay       time.Duration
	ChildWorkers      int
	ChildRequestDelay time.Duration
	ChildTimeout      time.Duration
	TimeframeTimeout  time.Duration
	OutputDir         string
}

type BrowserConfig struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

// DatabaseConfig is optional; an empty Host disables snapshot persistence.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

// RedisConfig is optional; an empty Addr disables the snapshot cache.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	SnapshotTTL time.Duration
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

const (
	defaultBaseURL    = "https://www.hoogvliet.com/"
	defaultBrowseURL  = "https://www.hoogvliet.com/INTERSHOP/web/WFS/org-webshop-Site/nl_NL/-/EUR/ViewStandardCatalog-Browse"
	defaultInitialURL = defaultBrowseURL + "?CategoryName=aanbiedingen&CatalogID=schappen"
	defaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

func Load() (*Config, error) {
	cfg := &Config{
		Crawl: CrawlConfig{
			BaseURL:           getEnvOrDefault("CRAWL_BASE_URL", defaultBaseURL),
			InitialURL:        getEnvOrDefault("CRAWL_INITIAL_URL", defaultInitialURL),
			BrowseURL:         getEnvOrDefault("CRAWL_BROWSE_URL", defaultBrowseURL),
			UserAgent:         getEnvOrDefault("CRAWL_USER_AGENT", defaultUserAgent),
			PageTimeout:       getDurationOrDefault("CRAWL_PAGE_TIMEOUT", 20*time.Second),
			MaxScrolls:        getIntOrDefault("CRAWL_MAX_SCROLLS", 200),
			SettleDelay:       getDurationOrDefault("CRAWL_SETTLE_DELAY", 2*time.Second),
			ChildWorkers:      getIntOrDefault("CRAWL_CHILD_WORKERS", 2),
			ChildRequestDelay: getDurationOrDefault("CRAWL_CHILD_REQUEST_DELAY", 1*time.Second),
			ChildTimeout:      getDurationOrDefault("CRAWL_CHILD_TIMEOUT", 20*time.Second),
			TimeframeTimeout:  getDurationOrDefault("CRAWL_TIMEFRAME_TIMEOUT", 0),
			OutputDir:         getEnvOrDefault("CRAWL_OUTPUT_DIR", "output"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "nl-NL,nl;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Amsterdam"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "nl-NL"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", ""),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "promo_crawler"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Redis: RedisConfig{
			Addr:        getEnvOrDefault("REDIS_ADDR", ""),
			Password:    getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:          getIntOrDefault("REDIS_DB", 0),
			SnapshotTTL: getDurationOrDefault("REDIS_SNAPSHOT_TTL", 7*24*time.Hour),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("PORT", 8085),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Crawl.InitialURL == "" || c.Crawl.BaseURL == "" {
		return fmt.Errorf("CRAWL_INITIAL_URL and CRAWL_BASE_URL are required")
	}

	if c.Crawl.MaxScrolls < 1 {
		return fmt.Errorf("CRAWL_MAX_SCROLLS must be at least 1")
	}

	if c.Crawl.ChildWorkers < 1 {
		return fmt.Errorf("CRAWL_CHILD_WORKERS must be at least 1")
	}

	if c.Crawl.PageTimeout <= 0 || c.Crawl.ChildTimeout <= 0 {
		return fmt.Errorf("CRAWL_PAGE_TIMEOUT and CRAWL_CHILD_TIMEOUT must be positive")
	}

	if c.Crawl.SettleDelay < 0 || c.Crawl.ChildRequestDelay < 0 || c.Crawl.TimeframeTimeout < 0 {
		return fmt.Errorf("delays cannot be negative")
	}

	return nil
}

// DatabaseEnabled reports whether snapshot persistence is configured.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != ""
}

// RedisEnabled reports whether the snapshot cache is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
