// Package reconcile drives the three ingestion passes that bring stored job
// records in line with the feed: summaries, detail pages and enrichment.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/statejobs/internal/fingerprint"
	"github.com/amishk599/statejobs/internal/model"
)

// Options tunes a Reconciler. Zero values select the defaults.
type Options struct {
	DetailWorkers int // concurrent detail scrapes, default 1
	EnrichWorkers int // concurrent extractions, default 1
	Now           func() time.Time
}

// Reconciler owns the ingestion cycle. The store, feed, scraper, extractor
// and notifier are injected; their lifecycles belong to the caller.
type Reconciler struct {
	store     model.JobStore
	feed      model.FeedFetcher
	scraper   model.DetailScraper
	extractor model.Extractor // nil disables the enrichment pass
	notifier  model.Notifier  // nil disables notifications
	filter    model.JobFilter // nil announces every new posting

	detailWorkers int
	enrichWorkers int
	now           func() time.Time
	locks         *keyedMutex
	logger        *slog.Logger
}

// New creates a Reconciler wired with all its dependencies.
func New(
	store model.JobStore,
	feed model.FeedFetcher,
	scraper model.DetailScraper,
	extractor model.Extractor,
	notifier model.Notifier,
	filter model.JobFilter,
	opts Options,
	logger *slog.Logger,
) *Reconciler {
	r := &Reconciler{
		store:         store,
		feed:          feed,
		scraper:       scraper,
		extractor:     extractor,
		notifier:      notifier,
		filter:        filter,
		detailWorkers: max(opts.DetailWorkers, 1),
		enrichWorkers: max(opts.EnrichWorkers, 1),
		now:           opts.Now,
		locks:         newKeyedMutex(),
		logger:        logger,
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// RunCycle runs the summary, detail and enrichment passes in that order and
// returns the joined errors of the passes. A failed summary pass does not
// stop the later passes, whose worklists come from the store.
func (r *Reconciler) RunCycle(ctx context.Context) error {
	log := r.logger.With("run_id", uuid.NewString())
	start := time.Now()
	log.Info("cycle started")

	var errs []error
	if _, err := r.syncSummaries(ctx, log); err != nil {
		errs = append(errs, fmt.Errorf("summary pass: %w", err))
	}
	if ctx.Err() == nil {
		if _, err := r.syncDetails(ctx, log); err != nil {
			errs = append(errs, fmt.Errorf("detail pass: %w", err))
		}
	}
	if ctx.Err() == nil {
		if _, err := r.syncEnrichment(ctx, log); err != nil {
			errs = append(errs, fmt.Errorf("enrichment pass: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		log.Error("cycle finished with errors", "duration", time.Since(start).Round(time.Millisecond), "error", err)
	} else {
		log.Info("cycle finished", "duration", time.Since(start).Round(time.Millisecond))
	}
	return err
}

// SyncSummaries is the summary pass: fetch the feed, drop entries without an
// id or past their deadline, and write every entry whose id is unknown or
// whose summary hash changed. Matching hashes cause no write. A store failure
// on one entry is logged and counted and the pass moves on.
func (r *Reconciler) SyncSummaries(ctx context.Context) (SummaryReport, error) {
	return r.syncSummaries(ctx, r.logger)
}

func (r *Reconciler) syncSummaries(ctx context.Context, log *slog.Logger) (SummaryReport, error) {
	var report SummaryReport

	summaries, err := r.feed.FetchSummaries(ctx)
	if err != nil {
		return report, fmt.Errorf("fetching feed: %w", err)
	}
	report.Fetched = len(summaries)

	stored, err := r.store.ListSummaryHashes(ctx)
	if err != nil {
		return report, fmt.Errorf("listing stored hashes: %w", err)
	}
	report.Seeding = len(stored) == 0

	known := make(map[int64]string, len(stored))
	for _, h := range stored {
		known[h.ID] = h.Hash
	}

	now := r.now()
	for _, s := range summaries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !s.HasID() {
			report.Invalid++
			continue
		}
		if s.Expired(now) {
			report.Expired++
			continue
		}
		if s.SummaryHash == "" {
			s.SummaryHash = fingerprint.Summary(s)
		}

		hash, seen := known[s.ID]
		if seen && hash == s.SummaryHash {
			report.Unchanged++
			continue
		}

		rec, err := r.writeSummary(ctx, s)
		if err != nil {
			report.Failed++
			log.Warn("failed to store summary", "job_id", s.ID, "error", err)
			continue
		}
		report.Written++
		known[s.ID] = s.SummaryHash
		if !seen {
			report.New = append(report.New, rec)
		}
	}

	log.Info("summary pass complete",
		"fetched", report.Fetched,
		"invalid", report.Invalid,
		"expired", report.Expired,
		"unchanged", report.Unchanged,
		"written", report.Written,
		"new", len(report.New),
		"failed", report.Failed,
	)

	r.announce(report, log)
	return report, nil
}

// writeSummary lays the new summary over the stored row, keeping every
// detail and enrichment field already known.
func (r *Reconciler) writeSummary(ctx context.Context, s model.Summary) (model.JobRecord, error) {
	unlock := r.locks.Lock(s.ID)
	defer unlock()

	prev, err := r.store.Get(ctx, s.ID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.JobRecord{}, err
	}
	next := prev.Merge(model.JobRecord{Summary: s})
	if err := r.store.Upsert(ctx, next); err != nil {
		return model.JobRecord{}, err
	}
	return next, nil
}

func (r *Reconciler) announce(report SummaryReport, log *slog.Logger) {
	if r.notifier == nil || len(report.New) == 0 {
		return
	}
	if report.Seeding {
		log.Info("first run, skipping notifications", "new", len(report.New))
		return
	}

	var matched []model.JobRecord
	for _, rec := range report.New {
		if r.filter == nil || r.filter.Match(rec) {
			matched = append(matched, rec)
		}
	}
	if len(matched) == 0 {
		return
	}
	if err := r.notifier.Notify(matched); err != nil {
		log.Error("notification failed", "jobs", len(matched), "error", err)
	}
}

// SyncDetails is the detail pass: scrape every stored record whose detail
// tier is unset, then merge and store the result.
func (r *Reconciler) SyncDetails(ctx context.Context) (PassReport, error) {
	return r.syncDetails(ctx, r.logger)
}

func (r *Reconciler) syncDetails(ctx context.Context, log *slog.Logger) (PassReport, error) {
	pending, err := r.store.ListMissing(ctx, model.TierDetail)
	if err != nil {
		return PassReport{}, fmt.Errorf("listing records without detail: %w", err)
	}

	report := r.fanOut(ctx, pending, r.detailWorkers, r.scrapeOne, log.With("pass", "detail"))

	log.Info("detail pass complete",
		"pending", report.Pending,
		"written", report.Written,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, ctx.Err()
}

func (r *Reconciler) scrapeOne(ctx context.Context, rec model.JobRecord) (bool, error) {
	if rec.Link == "" {
		return false, fmt.Errorf("job %d has no link", rec.ID)
	}
	detail, err := r.scraper.ScrapeDetail(ctx, rec.Link)
	if err != nil {
		return false, err
	}
	fullHash, err := fingerprint.Detail(detail)
	if err != nil {
		return false, err
	}
	scrapedAt := r.now().UTC()

	unlock := r.locks.Lock(rec.ID)
	defer unlock()

	cur, err := r.store.Get(ctx, rec.ID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if cur.HasDetail() {
		return false, nil
	}

	next := cur.Merge(model.JobRecord{
		Detail:      detail,
		LastScraped: &scrapedAt,
		FullHash:    fullHash,
	})
	if next.Detail.Agency != nil {
		next.HumanReadableAgency = model.HumanizeAgency(*next.Detail.Agency)
	}
	if err := r.store.Upsert(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// SyncEnrichment is the enrichment pass: extract structured fields for every
// record that has its detail tier but no extraction yet. Without an extractor
// the pass does nothing.
func (r *Reconciler) SyncEnrichment(ctx context.Context) (PassReport, error) {
	return r.syncEnrichment(ctx, r.logger)
}

func (r *Reconciler) syncEnrichment(ctx context.Context, log *slog.Logger) (PassReport, error) {
	if r.extractor == nil {
		log.Debug("enrichment disabled, skipping pass")
		return PassReport{Disabled: true}, nil
	}

	pending, err := r.store.ListMissing(ctx, model.TierEnrichment)
	if err != nil {
		return PassReport{}, fmt.Errorf("listing records without enrichment: %w", err)
	}

	report := r.fanOut(ctx, pending, r.enrichWorkers, r.extractOne, log.With("pass", "enrichment"))

	log.Info("enrichment pass complete",
		"pending", report.Pending,
		"written", report.Written,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, ctx.Err()
}

func (r *Reconciler) extractOne(ctx context.Context, rec model.JobRecord) (bool, error) {
	extraction, err := r.extractor.Extract(ctx, rec.EnrichmentText())
	if err != nil {
		return false, err
	}
	extractedAt := r.now().UTC()

	unlock := r.locks.Lock(rec.ID)
	defer unlock()

	cur, err := r.store.Get(ctx, rec.ID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if cur.HasExtraction() {
		return false, nil
	}

	next := cur.Merge(model.JobRecord{Extraction: &extraction, ExtractedAt: &extractedAt})
	if err := r.store.Upsert(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// fanOut runs work for each record on a bounded pool. A failing record is
// logged and counted; it never stops the others.
func (r *Reconciler) fanOut(
	ctx context.Context,
	pending []model.JobRecord,
	workers int,
	work func(context.Context, model.JobRecord) (bool, error),
	log *slog.Logger,
) PassReport {
	report := PassReport{Pending: len(pending)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(workers)
	for _, rec := range pending {
		if ctx.Err() != nil {
			break
		}
		rec := rec
		g.Go(func() error {
			wrote, err := work(ctx, rec)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				log.Warn("record failed", "job_id", rec.ID, "error", err)
			case wrote:
				report.Written++
			default:
				report.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}
