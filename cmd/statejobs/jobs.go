package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/statejobs/internal/model"
)

var (
	jobsLimit    int
	jobsEnriched bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List stored postings",
	Long:  "Prints the most recently published postings in the store, newest first.",
	RunE:  runJobs,
}

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "number of postings to list")
	jobsCmd.Flags().BoolVar(&jobsEnriched, "enriched", false, "only list postings with a summary")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	if jobsLimit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", jobsLimit)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	jobStore, err := setupStore(ctx, cfg, discardLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	jobs, err := jobStore.ListRecent(ctx, jobsLimit, jobsEnriched)
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}

	fmt.Printf("%-8s %-10s %-10s %-14s %-6s %s\n", "ID", "Published", "Deadline", "County", "Tiers", "Title")
	fmt.Println(strings.Repeat("─", 80))
	for _, j := range jobs {
		fmt.Printf("%-8d %-10s %-10s %-14s %-6s %s\n",
			j.ID,
			j.PublishDate.Format("2006-01-02"),
			j.Deadline.Format("2006-01-02"),
			truncate(j.County, 14),
			tiers(j),
			j.Title,
		)
	}
	fmt.Printf("\nTotal: %d postings\n", len(jobs))
	return nil
}

// tiers renders which pipeline stages have filled the record: S, D, E.
func tiers(j model.JobRecord) string {
	t := "S"
	if j.HasDetail() {
		t += "D"
	}
	if j.HasExtraction() {
		t += "E"
	}
	return t
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
