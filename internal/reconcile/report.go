package reconcile

import "github.com/amishk599/statejobs/internal/model"

// SummaryReport counts what the summary pass did with each feed entry.
type SummaryReport struct {
	Fetched   int
	Invalid   int // no usable id
	Expired   int
	Unchanged int
	Written   int
	Failed    int

	// New holds the records whose id was not stored before this pass.
	New []model.JobRecord
	// Seeding is true when the store was empty before the pass.
	Seeding bool
}

// PassReport counts the outcome of a detail or enrichment pass.
type PassReport struct {
	Pending int
	Written int
	Skipped int // already populated by the time the worker got the lock, or row gone
	Failed  int
	// Disabled is true when the pass has no backend configured.
	Disabled bool
}
