package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // feed timezone must resolve on hosts without a zoneinfo db

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that points at the config file.
const EnvConfigPath = "STATEJOBS_CONFIG"

// DefaultPath is used when neither the flag nor the environment names a file.
const DefaultPath = "config.yaml"

// Config is the root configuration for the statejobs pipeline.
type Config struct {
	FetchInterval time.Duration
	Feed          FeedConfig
	Scrape        ScrapeConfig
	Store         StoreConfig
	Lock          LockConfig
	AI            AIConfig
	API           APIConfig
	Notification  NotificationConfig
}

// FeedConfig locates the listing feed.
type FeedConfig struct {
	URL      string
	Location *time.Location // zone in which feed deadlines are interpreted
	Timeout  time.Duration
}

// ScrapeConfig controls detail-page fetching.
type ScrapeConfig struct {
	Workers           int
	RequestsPerSecond float64 // per host; 0 disables limiting
	Burst             int
	Timeout           time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // postgres connection URL
}

// LockConfig selects the cross-process cycle guard.
type LockConfig struct {
	Type     string // "none", "file" or "redis"
	Path     string
	RedisURL string
	Key      string
	TTL      time.Duration
}

// AIConfig controls the optional extraction layer.
type AIConfig struct {
	Enabled        bool
	BaseURL        string // defaults to https://api.openai.com/v1
	Model          string
	APIKey         string // expanded from env var by Load
	KeyringAccount string // consulted when APIKey is empty
	Timeout        time.Duration
	Workers        int
}

// APIConfig controls the read API served by `start`.
type APIConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"addr"`
	DefaultLimit int    `yaml:"default_limit"`
}

// NotificationConfig controls which notifier is used and which postings it announces.
type NotificationConfig struct {
	Type          string   `yaml:"type"`        // "none", "log" or "slack"
	WebhookURL    string   `yaml:"webhook_url"` // required if type is "slack"
	TitleKeywords []string `yaml:"title_keywords"`
	Counties      []string `yaml:"counties"`
}

const (
	defaultFeedURL       = "https://statejobs.ny.gov/rss/employeerss.cfm"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultTimezone      = "America/New_York"
	maxAPILimit          = 500
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	FetchIntervalMinutes *int               `yaml:"fetch_interval_minutes"`
	Feed                 rawFeedConfig      `yaml:"feed"`
	Scrape               rawScrapeConfig    `yaml:"scrape"`
	Store                StoreConfig        `yaml:"store"`
	Lock                 rawLockConfig      `yaml:"lock"`
	AI                   rawAIConfig        `yaml:"ai"`
	API                  *APIConfig         `yaml:"api"`
	Notification         NotificationConfig `yaml:"notification"`
}

type rawFeedConfig struct {
	URL      string `yaml:"url"`
	Timezone string `yaml:"timezone"`
	Timeout  string `yaml:"timeout"`
}

type rawScrapeConfig struct {
	Workers           int     `yaml:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	Timeout           string  `yaml:"timeout"`
	MaxRetries        *int    `yaml:"max_retries"`
	RetryBaseDelay    string  `yaml:"retry_base_delay"`
}

type rawLockConfig struct {
	Type     string `yaml:"type"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	Key      string `yaml:"key"`
	TTL      string `yaml:"ttl"`
}

type rawAIConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	KeyringAccount string `yaml:"keyring_account"`
	Timeout        string `yaml:"timeout"`
	Workers        int    `yaml:"workers"`
}

// ResolvePath picks the config file: the flag value, then $STATEJOBS_CONFIG,
// then ./config.yaml.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultPath
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := build(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(raw rawConfig) (*Config, error) {
	interval := 15 * time.Minute
	if raw.FetchIntervalMinutes != nil {
		interval = time.Duration(*raw.FetchIntervalMinutes) * time.Minute
	}

	tz := raw.Feed.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("parse feed.timezone %q: %w", tz, err)
	}

	feedTimeout, err := durationOr(raw.Feed.Timeout, 30*time.Second, "feed.timeout")
	if err != nil {
		return nil, err
	}
	scrapeTimeout, err := durationOr(raw.Scrape.Timeout, 20*time.Second, "scrape.timeout")
	if err != nil {
		return nil, err
	}
	retryDelay, err := durationOr(raw.Scrape.RetryBaseDelay, 2*time.Second, "scrape.retry_base_delay")
	if err != nil {
		return nil, err
	}
	lockTTL, err := durationOr(raw.Lock.TTL, 30*time.Minute, "lock.ttl")
	if err != nil {
		return nil, err
	}
	aiTimeout, err := durationOr(raw.AI.Timeout, 30*time.Second, "ai.timeout")
	if err != nil {
		return nil, err
	}

	maxRetries := 2
	if raw.Scrape.MaxRetries != nil {
		maxRetries = *raw.Scrape.MaxRetries
	}

	cfg := &Config{
		FetchInterval: interval,
		Feed: FeedConfig{
			URL:      orDefault(raw.Feed.URL, defaultFeedURL),
			Location: loc,
			Timeout:  feedTimeout,
		},
		Scrape: ScrapeConfig{
			Workers:           max(raw.Scrape.Workers, 1),
			RequestsPerSecond: raw.Scrape.RequestsPerSecond,
			Burst:             max(raw.Scrape.Burst, 1),
			Timeout:           scrapeTimeout,
			MaxRetries:        maxRetries,
			RetryBaseDelay:    retryDelay,
		},
		Store: StoreConfig{
			Driver: strings.ToLower(orDefault(raw.Store.Driver, "sqlite")),
			Path:   orDefault(raw.Store.Path, "statejobs.db"),
			DSN:    raw.Store.DSN,
		},
		Lock: LockConfig{
			Type:     strings.ToLower(orDefault(raw.Lock.Type, "none")),
			Path:     orDefault(raw.Lock.Path, "statejobs.lock"),
			RedisURL: raw.Lock.RedisURL,
			Key:      orDefault(raw.Lock.Key, "statejobs:cycle"),
			TTL:      lockTTL,
		},
		AI: AIConfig{
			Enabled:        raw.AI.Enabled,
			BaseURL:        orDefault(raw.AI.BaseURL, defaultOpenAIBaseURL),
			Model:          raw.AI.Model,
			APIKey:         raw.AI.APIKey,
			KeyringAccount: raw.AI.KeyringAccount,
			Timeout:        aiTimeout,
			Workers:        max(raw.AI.Workers, 1),
		},
		API: APIConfig{Enabled: true, Addr: ":8080", DefaultLimit: 20},
		Notification: NotificationConfig{
			Type:          strings.ToLower(orDefault(raw.Notification.Type, "none")),
			WebhookURL:    raw.Notification.WebhookURL,
			TitleKeywords: raw.Notification.TitleKeywords,
			Counties:      raw.Notification.Counties,
		},
	}

	if raw.API != nil {
		cfg.API.Enabled = raw.API.Enabled
		cfg.API.Addr = orDefault(raw.API.Addr, cfg.API.Addr)
		if raw.API.DefaultLimit != 0 {
			cfg.API.DefaultLimit = raw.API.DefaultLimit
		}
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.FetchInterval <= 0 {
		return fmt.Errorf("fetch_interval_minutes must be positive, got %v", cfg.FetchInterval)
	}

	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Store.Driver)
	}

	switch cfg.Lock.Type {
	case "none", "file":
	case "redis":
		if cfg.Lock.RedisURL == "" {
			return fmt.Errorf("lock.redis_url is required when lock.type is \"redis\"")
		}
	default:
		return fmt.Errorf("lock.type must be none, file or redis, got %q", cfg.Lock.Type)
	}

	if cfg.Scrape.RequestsPerSecond < 0 {
		return fmt.Errorf("scrape.requests_per_second must not be negative")
	}
	if cfg.Scrape.MaxRetries < 0 {
		return fmt.Errorf("scrape.max_retries must not be negative")
	}

	if cfg.API.DefaultLimit < 1 || cfg.API.DefaultLimit > maxAPILimit {
		return fmt.Errorf("api.default_limit must be between 1 and %d, got %d", maxAPILimit, cfg.API.DefaultLimit)
	}

	switch cfg.Notification.Type {
	case "none", "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notification.type must be none, log or slack, got %q", cfg.Notification.Type)
	}

	if cfg.AI.Enabled {
		if cfg.AI.APIKey == "" && cfg.AI.KeyringAccount == "" {
			return fmt.Errorf("ai.api_key or ai.keyring_account is required when ai.enabled is true")
		}
		if cfg.AI.Model == "" {
			return fmt.Errorf("ai.model is required when ai.enabled is true")
		}
	}

	return nil
}

func durationOr(s string, def time.Duration, field string) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
