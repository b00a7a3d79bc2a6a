package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/statejobs/internal/browse"
	"github.com/amishk599/statejobs/internal/model"
)

var browseLimit int

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse stored postings interactively (TUI)",
	Long:  "Shows the listing picker, then the split-pane browser over stored postings.",
	RunE:  runBrowse,
}

func init() {
	browseCmd.Flags().IntVar(&browseLimit, "limit", 200, "number of postings to load")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Anything logged after the alt-screen starts corrupts the display.
	silent := discardLogger()

	ctx := context.Background()
	jobStore, err := setupStore(ctx, cfg, silent)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	extractor, err := setupExtractor(cfg, silent)
	if err != nil {
		logger.Error("failed to set up extractor", "error", err)
		os.Exit(1)
	}
	scraper := setupScraper(cfg, silent)
	jobFilter := setupFilter(cfg)

	for {
		choice, err := browse.RunPicker(browse.Views)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return nil
		}
		if choice < 0 {
			return nil
		}
		view := browse.Views[choice]

		jobs, err := browse.RunLoader(view.Label, func(ctx context.Context) ([]model.JobRecord, error) {
			return jobStore.ListRecent(ctx, browseLimit, view.EnrichedOnly)
		})
		if err != nil {
			fmt.Printf("Error loading jobs: %v\n", err)
			continue
		}

		var matched []model.JobRecord
		for _, j := range jobs {
			if jobFilter.Match(j) {
				matched = append(matched, j)
			}
		}

		wantQuit, err := browse.Run(jobs, matched, scraper, extractor)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
	}
}
