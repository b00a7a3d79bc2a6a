package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/statejobs/internal/adapter"
	"github.com/amishk599/statejobs/internal/ai"
	"github.com/amishk599/statejobs/internal/config"
	"github.com/amishk599/statejobs/internal/filter"
	"github.com/amishk599/statejobs/internal/lock"
	"github.com/amishk599/statejobs/internal/model"
	"github.com/amishk599/statejobs/internal/notifier"
	"github.com/amishk599/statejobs/internal/ratelimit"
	"github.com/amishk599/statejobs/internal/reconcile"
	"github.com/amishk599/statejobs/internal/retry"
	"github.com/amishk599/statejobs/internal/scheduler"
	"github.com/amishk599/statejobs/internal/secrets"
	"github.com/amishk599/statejobs/internal/store"
)

var (
	cfgPath string
	envFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "statejobs",
	Short: "State job postings, ingested and summarized",
	Long:  "statejobs mirrors the state jobs RSS feed into a local store, scrapes each posting page, summarizes it with a language model and serves the result.",
	// Default to `start` so that `statejobs` with no args runs the daemon.
	RunE:          runStart,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: STATEJOBS_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config is expanded")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// closableStore is a JobStore whose connection the command owns.
type closableStore interface {
	model.JobStore
	Close() error
}

// loadConfig loads the dotenv file, then resolves the config path and parses it.
// Priority: --config flag > STATEJOBS_CONFIG env var > "./config.yaml"
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	return config.Load(config.ResolvePath(cfgPath))
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// discardLogger is handed to components while a TUI owns the terminal.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (closableStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		logger.Info("using postgres store")
		return store.NewPostgresStore(ctx, cfg.Store.DSN)
	default:
		logger.Info("using sqlite store", "path", cfg.Store.Path)
		return store.NewSQLiteStore(cfg.Store.Path)
	}
}

// setupLocker returns the configured cycle guard and a func releasing its
// resources. A nil locker runs cycles unguarded.
func setupLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (scheduler.Locker, func(), error) {
	switch cfg.Lock.Type {
	case "file":
		l, err := lock.NewFileLocker(cfg.Lock.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using file lock", "path", cfg.Lock.Path)
		return l, func() {}, nil
	case "redis":
		client, err := lock.NewRedisClient(ctx, cfg.Lock.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis lock", "key", cfg.Lock.Key, "ttl", cfg.Lock.TTL.String())
		return lock.NewRedisLocker(client, cfg.Lock.Key, cfg.Lock.TTL, logger), func() { _ = client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// setupNotifier returns nil when notifications are off.
func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	case "log":
		return notifier.NewLogNotifier(logger)
	default:
		return nil
	}
}

func setupFilter(cfg *config.Config) model.JobFilter {
	return filter.NewTitleAndCountyFilter(cfg.Notification.TitleKeywords, cfg.Notification.Counties)
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{MaxRetries: cfg.Scrape.MaxRetries, BaseDelay: cfg.Scrape.RetryBaseDelay}
}

func setupScraper(cfg *config.Config, logger *slog.Logger) model.DetailScraper {
	client := &http.Client{Timeout: cfg.Scrape.Timeout}
	limiter := ratelimit.NewHostLimiter(cfg.Scrape.RequestsPerSecond, cfg.Scrape.Burst)
	scraper := ratelimit.NewRateLimitedScraper(adapter.NewDetailAdapter(client, logger), limiter)
	return retry.NewRetryScraper(scraper, retryPolicy(cfg), logger)
}

// setupExtractor returns nil when ai.enabled is false. The API key comes from
// the config, or from the OS keychain when only ai.keyring_account is set.
func setupExtractor(cfg *config.Config, logger *slog.Logger) (model.Extractor, error) {
	if !cfg.AI.Enabled {
		logger.Info("enrichment disabled")
		return nil, nil
	}

	apiKey := cfg.AI.APIKey
	if apiKey == "" {
		key, err := secrets.LookupAPIKey(cfg.AI.KeyringAccount)
		if err != nil {
			return nil, fmt.Errorf("ai api key: %w", err)
		}
		apiKey = key
	}

	client := &http.Client{Timeout: cfg.AI.Timeout}
	provider := ai.NewOpenAIProvider(cfg.AI.BaseURL, apiKey, cfg.AI.Model, client)
	extractor := ai.NewLLMExtractor(provider, ai.ExtractJobTemplate, logger)
	logger.Info("enrichment enabled", "model", cfg.AI.Model, "base_url", cfg.AI.BaseURL)
	return retry.NewRetryExtractor(extractor, retryPolicy(cfg), logger), nil
}

func buildReconciler(cfg *config.Config, jobStore model.JobStore, n model.Notifier, logger *slog.Logger) (*reconcile.Reconciler, error) {
	feedClient := &http.Client{Timeout: cfg.Feed.Timeout}
	feed := retry.NewRetryFetcher(
		adapter.NewFeedAdapter(cfg.Feed.URL, cfg.Feed.Location, feedClient, logger),
		retryPolicy(cfg),
		logger,
	)

	extractor, err := setupExtractor(cfg, logger)
	if err != nil {
		return nil, err
	}

	return reconcile.New(
		jobStore,
		feed,
		setupScraper(cfg, logger),
		extractor,
		n,
		setupFilter(cfg),
		reconcile.Options{DetailWorkers: cfg.Scrape.Workers, EnrichWorkers: cfg.AI.Workers},
		logger,
	), nil
}
