package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/statejobs/internal/model"
	"github.com/amishk599/statejobs/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func strPtr(s string) *string { return &s }

// countingStore wraps a MemoryStore and counts writes, optionally failing
// upserts for chosen ids.
type countingStore struct {
	*store.MemoryStore
	upserts atomic.Int32
	failIDs map[int64]bool
	listErr error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: store.NewMemoryStore(), failIDs: map[int64]bool{}}
}

func (s *countingStore) Upsert(ctx context.Context, rec model.JobRecord) error {
	if s.failIDs[rec.ID] {
		return errors.New("disk full")
	}
	s.upserts.Add(1)
	return s.MemoryStore.Upsert(ctx, rec)
}

func (s *countingStore) ListSummaryHashes(ctx context.Context) ([]model.SummaryHash, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListSummaryHashes(ctx)
}

type fakeFeed struct {
	summaries []model.Summary
	err       error
}

func (f *fakeFeed) FetchSummaries(_ context.Context) ([]model.Summary, error) {
	return f.summaries, f.err
}

type fakeScraper struct {
	mu     sync.Mutex
	calls  []string
	fail   map[string]bool
	detail model.Detail
}

func (s *fakeScraper) ScrapeDetail(_ context.Context, link string) (model.Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, link)
	if s.fail[link] {
		return model.Detail{}, &model.HTTPError{StatusCode: 503, Err: errors.New("unavailable")}
	}
	return s.detail, nil
}

type fakeExtractor struct {
	calls atomic.Int32
	err   error
}

func (e *fakeExtractor) Extract(_ context.Context, text string) (model.Extraction, error) {
	e.calls.Add(1)
	if e.err != nil {
		return model.Extraction{}, e.err
	}
	return model.Extraction{SemanticJobTitle: "Clerk", Duties: []string{text[:5]}}, nil
}

type recordingNotifier struct {
	batches [][]model.JobRecord
	err     error
}

func (n *recordingNotifier) Notify(jobs []model.JobRecord) error {
	n.batches = append(n.batches, jobs)
	return n.err
}

type titleFilter string

func (f titleFilter) Match(job model.JobRecord) bool { return job.Title == string(f) }

func summary(id int64, title string) model.Summary {
	return model.Summary{
		ID:          id,
		Link:        fmt.Sprintf("https://jobs.example.gov/vacancy/%d", id),
		Title:       title,
		PublishDate: fixedNow.Add(-24 * time.Hour),
		Deadline:    fixedNow.AddDate(1, 0, 0),
		Grade:       "18",
		County:      "Albany",
	}
}

func newReconciler(st model.JobStore, feed *fakeFeed, opts ...func(*Reconciler)) *Reconciler {
	r := New(st, feed, &fakeScraper{detail: model.Detail{Agency: strPtr("Taxation, Department of")}},
		nil, nil, nil, Options{Now: clock, DetailWorkers: 4, EnrichWorkers: 4}, discardLogger())
	for _, o := range opts {
		o(r)
	}
	return r
}

func TestSyncSummaries_StoresNewEntry(t *testing.T) {
	st := newCountingStore()
	r := newReconciler(st, &fakeFeed{summaries: []model.Summary{summary(12345, "Clerk")}})

	report, err := r.SyncSummaries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Written != 1 || len(report.New) != 1 || !report.Seeding {
		t.Fatalf("unexpected report: %+v", report)
	}

	rec, err := st.Get(context.Background(), 12345)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Grade != "18" || rec.County != "Albany" {
		t.Errorf("grade/county = %q/%q", rec.Grade, rec.County)
	}
	if rec.SummaryHash == "" {
		t.Error("expected summary hash to be computed")
	}
	if rec.HasDetail() || rec.HasExtraction() {
		t.Error("expected detail and enrichment tiers to be empty")
	}
}

func TestSyncSummaries_SecondRunWritesNothing(t *testing.T) {
	st := newCountingStore()
	feed := &fakeFeed{summaries: []model.Summary{summary(1, "Clerk"), summary(2, "Analyst")}}
	r := newReconciler(st, feed)

	if _, err := r.SyncSummaries(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := st.upserts.Load()

	report, err := r.SyncSummaries(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := st.upserts.Load() - before; got != 0 {
		t.Errorf("expected no upserts on second run, got %d", got)
	}
	if report.Unchanged != 2 || report.Written != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestSyncSummaries_ChangedTitleKeepsEnrichedTiers(t *testing.T) {
	st := newCountingStore()
	ctx := context.Background()

	feed := &fakeFeed{summaries: []model.Summary{summary(7, "Clerk")}}
	ext := &fakeExtractor{}
	r := newReconciler(st, feed, func(r *Reconciler) { r.extractor = ext })
	if err := r.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	before, _ := st.Get(ctx, 7)
	if !before.HasDetail() || !before.HasExtraction() {
		t.Fatalf("expected fully enriched record, got %+v", before)
	}

	feed.summaries = []model.Summary{summary(7, "Senior Clerk")}
	report, err := r.SyncSummaries(ctx)
	if err != nil {
		t.Fatalf("SyncSummaries: %v", err)
	}
	if report.Written != 1 || len(report.New) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	after, _ := st.Get(ctx, 7)
	if after.Title != "Senior Clerk" {
		t.Errorf("title = %q, want Senior Clerk", after.Title)
	}
	if after.SummaryHash == before.SummaryHash {
		t.Error("expected summary hash to change")
	}
	if after.FullHash != before.FullHash || after.Extraction == nil || after.HumanReadableAgency != before.HumanReadableAgency {
		t.Errorf("detail or enrichment lost: %+v", after)
	}
}

func TestSyncSummaries_SkipsExpiredAndMissingID(t *testing.T) {
	st := newCountingStore()
	expired := summary(3, "Old")
	expired.Deadline = fixedNow.Add(-time.Hour)
	noID := summary(0, "Nameless")
	dueNow := summary(4, "Due")
	dueNow.Deadline = fixedNow

	r := newReconciler(st, &fakeFeed{summaries: []model.Summary{expired, noID, dueNow}})
	report, err := r.SyncSummaries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Expired != 1 || report.Invalid != 1 || report.Written != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := st.Get(context.Background(), 3); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected expired posting to be skipped, got %v", err)
	}
}

func TestSyncSummaries_KeepsStoredRecordAfterDeadlinePasses(t *testing.T) {
	ctx := context.Background()
	entry := summary(9, "Clerk")

	tests := []struct {
		name    string
		advance func(r *Reconciler, feed *fakeFeed)
	}{
		{"clock moves past deadline", func(r *Reconciler, _ *fakeFeed) {
			r.now = func() time.Time { return entry.Deadline.Add(time.Hour) }
		}},
		{"feed republishes with past deadline", func(_ *Reconciler, feed *fakeFeed) {
			expired := entry
			expired.Deadline = fixedNow.Add(-time.Hour)
			feed.summaries = []model.Summary{expired}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newCountingStore()
			feed := &fakeFeed{summaries: []model.Summary{entry}}
			r := newReconciler(st, feed, func(r *Reconciler) { r.extractor = &fakeExtractor{} })
			if err := r.RunCycle(ctx); err != nil {
				t.Fatalf("RunCycle: %v", err)
			}
			before, err := st.Get(ctx, 9)
			if err != nil || !before.HasDetail() || !before.HasExtraction() {
				t.Fatalf("expected fully enriched record, got %+v, %v", before, err)
			}
			writes := st.upserts.Load()

			tt.advance(r, feed)
			report, err := r.SyncSummaries(ctx)
			if err != nil {
				t.Fatalf("SyncSummaries: %v", err)
			}
			if report.Expired != 1 || report.Written != 0 {
				t.Fatalf("unexpected report: %+v", report)
			}
			if got := st.upserts.Load(); got != writes {
				t.Errorf("expected no writes, got %d more", got-writes)
			}

			after, err := st.Get(ctx, 9)
			if err != nil {
				t.Fatalf("expected record to remain, got %v", err)
			}
			if after.SummaryHash != before.SummaryHash || after.FullHash != before.FullHash || after.Extraction == nil {
				t.Errorf("stored record changed: %+v", after)
			}
		})
	}
}

func TestSyncSummaries_StoreFailureIsIsolated(t *testing.T) {
	st := newCountingStore()
	st.failIDs[2] = true
	r := newReconciler(st, &fakeFeed{summaries: []model.Summary{summary(1, "A"), summary(2, "B"), summary(3, "C")}})

	report, err := r.SyncSummaries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 1 || report.Written != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := st.Get(context.Background(), 3); err != nil {
		t.Errorf("expected entry after the failure to be stored: %v", err)
	}
}

func TestSyncSummaries_FeedErrorAbortsPass(t *testing.T) {
	st := newCountingStore()
	r := newReconciler(st, &fakeFeed{err: errors.New("dns failure")})

	if _, err := r.SyncSummaries(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if st.upserts.Load() != 0 {
		t.Error("expected no writes")
	}
}

func TestSyncSummaries_HashListErrorAbortsPass(t *testing.T) {
	st := newCountingStore()
	st.listErr = errors.New("connection refused")
	r := newReconciler(st, &fakeFeed{summaries: []model.Summary{summary(1, "A")}})

	if _, err := r.SyncSummaries(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if st.upserts.Load() != 0 {
		t.Error("expected no writes")
	}
}

func TestSyncSummaries_NotifiesOnlyAfterSeeding(t *testing.T) {
	st := newCountingStore()
	n := &recordingNotifier{}
	feed := &fakeFeed{summaries: []model.Summary{summary(1, "Clerk")}}
	r := newReconciler(st, feed, func(r *Reconciler) {
		r.notifier = n
		r.filter = titleFilter("Analyst")
	})

	if _, err := r.SyncSummaries(context.Background()); err != nil {
		t.Fatalf("seeding run: %v", err)
	}
	if len(n.batches) != 0 {
		t.Fatalf("expected no notification on seeding run, got %d", len(n.batches))
	}

	feed.summaries = append(feed.summaries, summary(2, "Analyst"), summary(3, "Janitor"))
	if _, err := r.SyncSummaries(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(n.batches) != 1 || len(n.batches[0]) != 1 || n.batches[0][0].ID != 2 {
		t.Fatalf("expected one batch with job 2, got %+v", n.batches)
	}
}

func TestSyncSummaries_NotifyErrorDoesNotFailPass(t *testing.T) {
	st := newCountingStore()
	_ = st.Upsert(context.Background(), model.JobRecord{Summary: summary(1, "Seed")})
	n := &recordingNotifier{err: errors.New("webhook down")}
	r := newReconciler(st, &fakeFeed{summaries: []model.Summary{summary(2, "Clerk")}},
		func(r *Reconciler) { r.notifier = n })

	if _, err := r.SyncSummaries(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.batches) != 1 {
		t.Fatalf("expected notify attempt, got %d", len(n.batches))
	}
}

func TestSyncDetails_PopulatesDetailTier(t *testing.T) {
	st := newCountingStore()
	ctx := context.Background()
	_ = st.Upsert(ctx, model.JobRecord{Summary: summary(1, "Clerk")})

	r := newReconciler(st, &fakeFeed{})
	report, err := r.SyncDetails(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Pending != 1 || report.Written != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	rec, _ := st.Get(ctx, 1)
	if rec.LastScraped == nil || !rec.LastScraped.Equal(fixedNow) {
		t.Errorf("LastScraped = %v, want %v", rec.LastScraped, fixedNow)
	}
	if rec.FullHash == "" {
		t.Error("expected full hash")
	}
	if rec.HumanReadableAgency != "Department of Taxation" {
		t.Errorf("HumanReadableAgency = %q", rec.HumanReadableAgency)
	}
	if rec.Title != "Clerk" {
		t.Errorf("summary fields lost: %+v", rec.Summary)
	}
}

func TestSyncDetails_FailureIsIsolated(t *testing.T) {
	st := newCountingStore()
	ctx := context.Background()
	for id := int64(1); id <= 5; id++ {
		_ = st.Upsert(ctx, model.JobRecord{Summary: summary(id, "Clerk")})
	}
	scraper := &fakeScraper{
		detail: model.Detail{City: strPtr("Albany")},
		fail:   map[string]bool{summary(3, "").Link: true},
	}

	r := newReconciler(st, &fakeFeed{}, func(r *Reconciler) { r.scraper = scraper })
	report, err := r.SyncDetails(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Written != 4 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	missing, _ := st.ListMissing(ctx, model.TierDetail)
	if len(missing) != 1 || missing[0].ID != 3 {
		t.Fatalf("expected only job 3 pending, got %v", missing)
	}
}

func TestSyncDetails_UnhashableDetailIsIsolated(t *testing.T) {
	st := newCountingStore()
	ctx := context.Background()
	_ = st.Upsert(ctx, model.JobRecord{Summary: summary(1, "Clerk")})
	inf := math.Inf(1)
	scraper := &fakeScraper{detail: model.Detail{TravelPercentage: &inf}}

	r := newReconciler(st, &fakeFeed{}, func(r *Reconciler) { r.scraper = scraper })
	report, err := r.SyncDetails(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 1 || report.Written != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	rec, _ := st.Get(ctx, 1)
	if rec.HasDetail() {
		t.Errorf("expected detail tier left pending, got %+v", rec)
	}
}

func TestSyncDetails_SkipsRecordAlreadyScraped(t *testing.T) {
	st := newCountingStore()
	ctx := context.Background()
	_ = st.Upsert(ctx, model.JobRecord{Summary: summary(1, "Clerk")})

	r := newReconciler(st, &fakeFeed{})
	pending, _ := st.ListMissing(ctx, model.TierDetail)

	// Another worker fills the tier between listing and writing.
	scrapedAt := fixedNow.Add(-time.Hour)
	_ = st.Upsert(ctx, model.JobRecord{Summary: summary(1, "Clerk"), LastScraped: &scrapedAt, FullHash: "abc"})

	wrote, err := r.scrapeOne(ctx, pending[0])
	if err != nil || wrote {
		t.Fatalf("expected skip, got wrote=%v err=%v", wrote, err)
	}
	rec, _ := st.Get(ctx, 1)
	if rec.FullHash != "abc" {
		t.Errorf("existing detail overwritten: %q", rec.FullHash)
	}
}

func TestSyncEnrichment_DisabledWithoutExtractor(t *testing.T) {
	r := newReconciler(newCountingStore(), &fakeFeed{})
	report, err := r.SyncEnrichment(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Disabled {
		t.Error("expected disabled report")
	}
}

func TestSyncEnrichment_OnlyScrapedRecords(t *testing.T) {
	st := newCountingStore()
	ctx := context.Background()
	scrapedAt := fixedNow
	_ = st.Upsert(ctx, model.JobRecord{
		Summary:     summary(1, "Clerk"),
		Detail:      model.Detail{DutiesDescription: strPtr("Filing")},
		LastScraped: &scrapedAt,
		FullHash:    "h1",
	})
	_ = st.Upsert(ctx, model.JobRecord{Summary: summary(2, "Analyst")})

	ext := &fakeExtractor{}
	r := newReconciler(st, &fakeFeed{}, func(r *Reconciler) { r.extractor = ext })
	report, err := r.SyncEnrichment(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Pending != 1 || report.Written != 1 || ext.calls.Load() != 1 {
		t.Fatalf("unexpected report: %+v (calls %d)", report, ext.calls.Load())
	}

	rec, _ := st.Get(ctx, 1)
	if rec.Extraction == nil || rec.Extraction.SemanticJobTitle != "Clerk" {
		t.Fatalf("extraction not stored: %+v", rec.Extraction)
	}
	if rec.ExtractedAt == nil || rec.FullHash != "h1" || rec.Detail.DutiesDescription == nil {
		t.Errorf("enrichment lost other tiers: %+v", rec)
	}
}

func TestSyncEnrichment_ErrorLeavesRecordPending(t *testing.T) {
	st := newCountingStore()
	ctx := context.Background()
	scrapedAt := fixedNow
	_ = st.Upsert(ctx, model.JobRecord{Summary: summary(1, "Clerk"), LastScraped: &scrapedAt, FullHash: "h"})

	r := newReconciler(st, &fakeFeed{}, func(r *Reconciler) {
		r.extractor = &fakeExtractor{err: &model.HTTPError{StatusCode: 429}}
	})
	report, err := r.SyncEnrichment(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	missing, _ := st.ListMissing(ctx, model.TierEnrichment)
	if len(missing) != 1 {
		t.Errorf("expected record to stay pending, got %d", len(missing))
	}
}

func TestRunCycle_LaterPassesRunAfterFeedFailure(t *testing.T) {
	st := newCountingStore()
	ctx := context.Background()
	_ = st.Upsert(ctx, model.JobRecord{Summary: summary(1, "Clerk")})

	r := newReconciler(st, &fakeFeed{err: errors.New("timeout")})
	if err := r.RunCycle(ctx); err == nil {
		t.Fatal("expected cycle error")
	}
	rec, _ := st.Get(ctx, 1)
	if !rec.HasDetail() {
		t.Error("expected detail pass to run despite feed failure")
	}
}

func TestRunCycle_StopsOnCancelledContext(t *testing.T) {
	st := newCountingStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newReconciler(st, &fakeFeed{summaries: []model.Summary{summary(1, "Clerk")}})
	if err := r.RunCycle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st.upserts.Load() != 0 {
		t.Error("expected no writes after cancellation")
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(42)
			n := active.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if peak.Load() != 1 {
		t.Errorf("expected at most one holder, saw %d", peak.Load())
	}
	if km.size() != 0 {
		t.Errorf("expected lock table to drain, has %d entries", km.size())
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := newKeyedMutex()
	unlockA := km.Lock(1)
	done := make(chan struct{})
	go func() {
		unlock := km.Lock(2)
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
	unlockA()
}
