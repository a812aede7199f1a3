package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"deal_hunter/models"
	"deal_hunter/storage"
)

type Config struct {
	DBPath      string
	DatabaseURL string
	ConfigDir   string
	Log         LogConfig
	Hunt        HuntConfig
	Browser     BrowserConfig
	API         APIConfig
	Alert       AlertConfig
	Scheduler   SchedulerConfig
	S3          storage.S3Config
	EnrichLimit int

	Sites     map[models.Source]*SourceConfig
	Pricing   *PricingConfig
	Watchlist []WatchItem
}

type LogConfig struct {
	Path    string
	MaxMB   int
	Backups int
}

// HuntConfig holds the scoring parameters and the default ranker filter.
type HuntConfig struct {
	PlatformFeePercent float64
	Thresholds         models.DealThresholds
	MinProfit          float64
	MinMargin          float64
	MaxMargin          float64 // 0 disables the upper bound
	MaxResults         int
	SourceTimeout      time.Duration
	Sources            []models.Source
}

type BrowserConfig struct {
	Headless   bool
	ProfileDir string
	ProxyURL   string
}

type APIConfig struct {
	Addr      string
	User      string
	Pass      string
	RateLimit int // requests per minute per client
}

func (c APIConfig) AuthEnabled() bool {
	return c.User != "" && c.Pass != ""
}

type AlertConfig struct {
	DiscordWebhookURL string
	MinDeals          int
	Interval          time.Duration
}

type SchedulerConfig struct {
	Cron string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:      getEnv("DB_PATH", "deal_hunter.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ConfigDir:   getEnv("CONFIG_DIR", "config"),
		Log: LogConfig{
			Path:    getEnv("LOG_PATH", "deal_hunter.log"),
			MaxMB:   getEnvInt("LOG_MAX_MB", 10),
			Backups: getEnvInt("LOG_BACKUPS", 3),
		},
		Hunt: HuntConfig{
			PlatformFeePercent: getEnvFloat("PLATFORM_FEE_PERCENT", models.DefaultPlatformFeePercent),
			Thresholds: models.DealThresholds{
				GoodMinProfit:  getEnvFloat("GOOD_MIN_PROFIT", 30),
				GoodMinMargin:  getEnvFloat("GOOD_MIN_MARGIN", 25),
				GreatMinProfit: getEnvFloat("GREAT_MIN_PROFIT", 75),
				GreatMinMargin: getEnvFloat("GREAT_MIN_MARGIN", 40),
			},
			MinProfit:     getEnvFloat("MIN_PROFIT", 30),
			MinMargin:     getEnvFloat("MIN_MARGIN", 25),
			MaxMargin:     getEnvFloat("MAX_MARGIN", 0),
			MaxResults:    getEnvInt("MAX_RESULTS", 30),
			SourceTimeout: time.Duration(getEnvInt("SOURCE_TIMEOUT_SEC", 60)) * time.Second,
		},
		Browser: BrowserConfig{
			Headless:   getEnvBool("HEADLESS", true),
			ProfileDir: getEnv("BROWSER_PROFILE_DIR", ".browser"),
			ProxyURL:   os.Getenv("PROXY_URL"),
		},
		API: APIConfig{
			Addr:      getEnv("API_ADDR", ":8080"),
			User:      os.Getenv("API_USER"),
			Pass:      os.Getenv("API_PASS"),
			RateLimit: getEnvInt("API_RATE_LIMIT", 30),
		},
		Alert: AlertConfig{
			DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
			MinDeals:          getEnvInt("ALERT_MIN_DEALS", 1),
			Interval:          time.Duration(getEnvInt("ALERT_INTERVAL_MIN", 5)) * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Cron: getEnv("WATCHLIST_CRON", "*/30 * * * *"),
		},
		S3: storage.S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("S3_SECRET_KEY"),
			PublicURL:       os.Getenv("S3_PUBLIC_URL"),
		},
		EnrichLimit: getEnvInt("ENRICH_LIMIT", 0),
		Sites:       make(map[models.Source]*SourceConfig),
	}

	sources, err := ParseSources(getEnv("SOURCES", joinSources(models.AllSources)))
	if err != nil {
		return nil, fmt.Errorf("SOURCES: %w", err)
	}
	cfg.Hunt.Sources = sources

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, fmt.Errorf("site configs: %w", err)
	}
	if cfg.Pricing, err = LoadPricing(filepath.Join(cfg.ConfigDir, "pricing.yaml")); err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	if cfg.Watchlist, err = LoadWatchlist(filepath.Join(cfg.ConfigDir, "watchlist.yaml")); err != nil {
		return nil, fmt.Errorf("watchlist: %w", err)
	}

	return cfg, nil
}

// Validate checks the values a hunt cannot run without.
func (c *Config) Validate() error {
	if err := c.Hunt.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Hunt.PlatformFeePercent < 0 || c.Hunt.PlatformFeePercent >= 100 {
		return fmt.Errorf("PLATFORM_FEE_PERCENT must be in [0, 100), got %v", c.Hunt.PlatformFeePercent)
	}
	if c.Hunt.MaxResults <= 0 {
		return fmt.Errorf("MAX_RESULTS must be positive, got %d", c.Hunt.MaxResults)
	}
	if c.Hunt.SourceTimeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT_SEC must be positive")
	}
	if c.Hunt.MaxMargin > 0 && c.Hunt.MaxMargin < c.Hunt.MinMargin {
		return fmt.Errorf("MAX_MARGIN %v is below MIN_MARGIN %v", c.Hunt.MaxMargin, c.Hunt.MinMargin)
	}
	return nil
}

// Site returns the configured source, falling back to the built-in one.
func (c *Config) Site(src models.Source) *SourceConfig {
	if s, ok := c.Sites[src]; ok {
		return s
	}
	if s, ok := DefaultSourceConfig(src); ok {
		return s
	}
	return nil
}

// ParseSources splits a comma separated list and rejects unknown names.
func ParseSources(list string) ([]models.Source, error) {
	var out []models.Source
	seen := make(map[models.Source]bool)
	for _, part := range strings.Split(list, ",") {
		name := models.Source(strings.ToLower(strings.TrimSpace(part)))
		if name == "" || seen[name] {
			continue
		}
		if !models.IsKnownSource(name) {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sources selected")
	}
	return out, nil
}

func joinSources(sources []models.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func readYAML(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
