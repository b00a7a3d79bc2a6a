package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/amishk599/statejobs/internal/model"
)

var invalidateTier string

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <id>",
	Short: "Clear a stored tier so the next cycle rebuilds it",
	Long: `Clear part of a stored posting so the next cycle refills it.

  --tier detail      clears the detail and enrichment tiers (default)
  --tier enrichment  clears only the enrichment tier
  --tier all         deletes the row; the next summary pass re-inserts it`,
	Args: cobra.ExactArgs(1),
	RunE: runInvalidate,
}

func init() {
	invalidateCmd.Flags().StringVar(&invalidateTier, "tier", string(model.TierDetail), "tier to clear: detail, enrichment or all")
	rootCmd.AddCommand(invalidateCmd)
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= model.NoID {
		return fmt.Errorf("invalid job id %q", args[0])
	}
	switch invalidateTier {
	case string(model.TierDetail), string(model.TierEnrichment), "all":
	default:
		return fmt.Errorf("unknown tier %q (want detail, enrichment or all)", invalidateTier)
	}

	logger := setupLogger(debug)
	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	jobStore, err := setupStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	rec, err := jobStore.Get(ctx, id)
	if err != nil {
		return err
	}

	switch invalidateTier {
	case "all":
		err = jobStore.Delete(ctx, id)
	case string(model.TierEnrichment):
		err = jobStore.Upsert(ctx, rec.WithoutExtraction())
	default:
		err = jobStore.Upsert(ctx, rec.WithoutDetail())
	}
	if err != nil {
		return fmt.Errorf("invalidating job %d: %w", id, err)
	}

	logger.Info("job invalidated", "job_id", id, "tier", invalidateTier)
	return nil
}
