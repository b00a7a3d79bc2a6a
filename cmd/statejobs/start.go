package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/statejobs/internal/api"
	"github.com/amishk599/statejobs/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ingestion daemon and read API",
	Long:  "Run an ingestion cycle every fetch interval and serve the stored postings over HTTP; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.FetchInterval.String(),
		"feed", cfg.Feed.URL,
		"store", cfg.Store.Driver,
		"lock", cfg.Lock.Type,
		"ai", cfg.AI.Enabled,
		"api", cfg.API.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, err := setupStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	locker, closeLocker, err := setupLocker(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up lock", "error", err)
		os.Exit(1)
	}
	defer closeLocker()

	n := setupNotifier(cfg, &http.Client{Timeout: 30 * time.Second}, logger)
	rec, err := buildReconciler(cfg, jobStore, n, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	sched := scheduler.NewScheduler(rec, locker, cfg.FetchInterval, logger)
	g.Go(func() error { return sched.Run(ctx) })

	if cfg.API.Enabled {
		app := api.NewApp(jobStore, api.Options{DefaultLimit: cfg.API.DefaultLimit}, logger)
		g.Go(func() error {
			logger.Info("api listening", "addr", cfg.API.Addr)
			return app.Listen(cfg.API.Addr)
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return app.ShutdownWithContext(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("daemon error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
