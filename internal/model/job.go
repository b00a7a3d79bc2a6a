package model

import (
	"context"
	"time"
)

// NoID marks a feed entry whose description carried no usable ID.
// Such entries are never persisted.
const NoID int64 = 0

// Summary holds the fields sourced directly from the RSS feed.
type Summary struct {
	ID          int64     `json:"id"`
	Link        string    `json:"link"`
	Title       string    `json:"title"`
	PublishDate time.Time `json:"publishDate"`
	Deadline    time.Time `json:"deadline"`
	Grade       string    `json:"grade"`
	County      string    `json:"county"`
	SummaryHash string    `json:"summaryHash"`
}

// HasID reports whether the entry carries a feed-assigned ID.
func (s Summary) HasID() bool { return s.ID > NoID }

// Expired reports whether the application deadline has passed at now.
func (s Summary) Expired(now time.Time) bool { return s.Deadline.Before(now) }

// Detail holds the labeled attributes scraped from a posting's own page.
// A nil field means the page did not expose that row.
type Detail struct {
	// Basics (#information)
	NYHelp               *bool    `json:"nyHelp,omitempty"`
	Agency               *string  `json:"agency,omitempty"`
	Title                *string  `json:"detailTitle,omitempty"`
	OccupationalCategory *string  `json:"occupationalCategory,omitempty"`
	SalaryGrade          *string  `json:"salaryGrade,omitempty"`
	BargainingUnit       *string  `json:"bargainingUnit,omitempty"`
	SalaryRange          *string  `json:"salaryRange,omitempty"`
	EmploymentType       *string  `json:"employmentType,omitempty"`
	AppointmentType      *string  `json:"appointmentType,omitempty"`
	JurisdictionalClass  *string  `json:"jurisdictionalClass,omitempty"`
	TravelPercentage     *float64 `json:"travelPercentage,omitempty"`

	// Schedule (#schedule)
	Workweek             *string `json:"workweek,omitempty"`
	HoursPerWeek         *string `json:"hoursPerWeek,omitempty"`
	WorkdayFrom          *string `json:"workdayFrom,omitempty"`
	WorkdayTo            *string `json:"workdayTo,omitempty"`
	FlextimeAllowed      *bool   `json:"flextimeAllowed,omitempty"`
	MandatoryOvertime    *bool   `json:"mandatoryOvertime,omitempty"`
	CompressedWorkweek   *bool   `json:"compressedWorkweek,omitempty"`
	TelecommutingAllowed *bool   `json:"telecommutingAllowed,omitempty"`

	// Location (#location)
	LocationCounty *string `json:"locationCounty,omitempty"`
	StreetAddress  *string `json:"streetAddress,omitempty"`
	City           *string `json:"city,omitempty"`
	State          *string `json:"state,omitempty"`
	ZipCode        *string `json:"zipCode,omitempty"`

	// Job specifics (#jobspecifics)
	DutiesDescription     *string `json:"dutiesDescription,omitempty"`
	MinimumQualifications *string `json:"minimumQualifications,omitempty"`
	AdditionalComments    *string `json:"additionalComments,omitempty"`

	// Contact (#contact)
	ContactName     *string `json:"contactName,omitempty"`
	ContactPhone    *string `json:"contactPhone,omitempty"`
	ContactFax      *string `json:"contactFax,omitempty"`
	ContactEmail    *string `json:"contactEmail,omitempty"`
	ContactStreet   *string `json:"contactStreet,omitempty"`
	ContactCity     *string `json:"contactCity,omitempty"`
	ContactState    *string `json:"contactState,omitempty"`
	ContactZip      *string `json:"contactZip,omitempty"`
	NotesOnApplying *string `json:"notesOnApplying,omitempty"`
}

// Extraction is the structured output of the text-extraction model.
type Extraction struct {
	SemanticJobTitle   string   `json:"semanticJobTitle"`
	BulletPoints       []string `json:"threeBulletPointsDescription"`
	MinQualifications  []string `json:"minQualifications"`
	PrefQualifications []string `json:"prefQualifications"`
	Duties             []string `json:"duties"`
}

// IsEmpty reports whether the model produced nothing usable.
func (e Extraction) IsEmpty() bool {
	return e.SemanticJobTitle == "" && len(e.BulletPoints) == 0 &&
		len(e.MinQualifications) == 0 && len(e.PrefQualifications) == 0 && len(e.Duties) == 0
}

// JobRecord is the unit of storage. Each pipeline stage fills one tier and
// writes the whole record back.
type JobRecord struct {
	Summary

	Detail      Detail     `json:"detail"`
	LastScraped *time.Time `json:"lastScraped,omitempty"`
	FullHash    string     `json:"fullHash,omitempty"`

	Extraction  *Extraction `json:"extraction,omitempty"`
	ExtractedAt *time.Time  `json:"extractedAt,omitempty"`

	HumanReadableAgency string `json:"humanReadableAgency,omitempty"`
}

// HasDetail reports whether the detail tier has been populated.
func (r JobRecord) HasDetail() bool { return r.LastScraped != nil || r.FullHash != "" }

// HasExtraction reports whether the enrichment tier has been populated.
func (r JobRecord) HasExtraction() bool { return r.Extraction != nil }

// Tier names a pipeline stage whose output can be missing from a record.
type Tier string

const (
	TierDetail     Tier = "detail"
	TierEnrichment Tier = "enrichment"
)

// SummaryHash pairs a stored id with its stored summary fingerprint.
type SummaryHash struct {
	ID   int64
	Hash string
}

// FeedFetcher retrieves the current listing feed.
type FeedFetcher interface {
	FetchSummaries(ctx context.Context) ([]Summary, error)
}

// DetailScraper retrieves and parses a single posting page.
type DetailScraper interface {
	ScrapeDetail(ctx context.Context, link string) (Detail, error)
}

// Extractor turns raw posting text into a structured Extraction.
type Extractor interface {
	Extract(ctx context.Context, text string) (Extraction, error)
}

// JobStore is the persistence gateway consumed by the reconciler.
type JobStore interface {
	ListSummaryHashes(ctx context.Context) ([]SummaryHash, error)
	Get(ctx context.Context, id int64) (JobRecord, error)
	Upsert(ctx context.Context, rec JobRecord) error
	Delete(ctx context.Context, id int64) error
	ListMissing(ctx context.Context, tier Tier) ([]JobRecord, error)
	ListRecent(ctx context.Context, limit int, enrichedOnly bool) ([]JobRecord, error)
}

// Notifier announces newly ingested postings.
type Notifier interface {
	Notify(jobs []JobRecord) error
}

// JobFilter decides whether a posting is interesting enough to announce.
type JobFilter interface {
	Match(job JobRecord) bool
}
