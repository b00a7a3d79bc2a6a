package model

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestMergeSummaryOverridesWhenHashed(t *testing.T) {
	prev := JobRecord{Summary: Summary{ID: 7, Title: "Old", SummaryHash: "h1"}}
	next := JobRecord{Summary: Summary{ID: 7, Title: "New", SummaryHash: "h2"}}

	got := prev.Merge(next)
	if got.Title != "New" || got.SummaryHash != "h2" {
		t.Errorf("summary not replaced: %+v", got.Summary)
	}
}

func TestMergeKeepsSummaryWhenNextHasNone(t *testing.T) {
	prev := JobRecord{Summary: Summary{ID: 7, Title: "Kept", SummaryHash: "h1"}}
	now := time.Now()
	next := JobRecord{Summary: Summary{ID: 7}, LastScraped: &now, FullHash: "f"}

	got := prev.Merge(next)
	if got.Title != "Kept" || got.SummaryHash != "h1" {
		t.Errorf("summary lost: %+v", got.Summary)
	}
	if got.LastScraped == nil || got.FullHash != "f" {
		t.Error("detail markers not applied")
	}
}

func TestMergeDetailFieldFallback(t *testing.T) {
	prev := JobRecord{Detail: Detail{Agency: strPtr("Health, Department of"), City: strPtr("Albany")}}
	next := JobRecord{Detail: Detail{City: strPtr("Troy"), FlextimeAllowed: boolPtr(true)}}

	got := prev.Merge(next)
	if got.Detail.Agency == nil || *got.Detail.Agency != "Health, Department of" {
		t.Error("expected agency to fall back to previous value")
	}
	if got.Detail.City == nil || *got.Detail.City != "Troy" {
		t.Error("expected city to be overridden")
	}
	if got.Detail.FlextimeAllowed == nil || !*got.Detail.FlextimeAllowed {
		t.Error("expected flextime to be set")
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	prev := JobRecord{Detail: Detail{City: strPtr("Albany")}}
	got := prev.Merge(JobRecord{})

	*got.Detail.City = "Changed"
	if *prev.Detail.City != "Albany" {
		t.Error("merged record shares pointers with its input")
	}
}

func TestMergeNeverClearsTiers(t *testing.T) {
	now := time.Now()
	prev := JobRecord{
		Summary:     Summary{ID: 1, SummaryHash: "h"},
		LastScraped: &now,
		FullHash:    "f",
		Extraction:  &Extraction{SemanticJobTitle: "Nurse"},
		ExtractedAt: &now,
	}
	got := prev.Merge(JobRecord{Summary: Summary{ID: 1, SummaryHash: "h2"}})
	if !got.HasDetail() || !got.HasExtraction() {
		t.Error("merge cleared a populated tier")
	}
}

func TestWithoutDetailClearsDownstream(t *testing.T) {
	now := time.Now()
	rec := JobRecord{
		Summary:             Summary{ID: 1, SummaryHash: "h"},
		Detail:              Detail{City: strPtr("Albany")},
		LastScraped:         &now,
		FullHash:            "f",
		Extraction:          &Extraction{SemanticJobTitle: "Nurse"},
		ExtractedAt:         &now,
		HumanReadableAgency: "Department of Health",
	}
	got := rec.WithoutDetail()
	if got.HasDetail() || got.HasExtraction() || got.HumanReadableAgency != "" || got.Detail.City != nil {
		t.Errorf("expected detail and enrichment cleared, got %+v", got)
	}
	if got.SummaryHash != "h" {
		t.Error("summary tier should survive")
	}
	if !rec.HasDetail() {
		t.Error("receiver was modified")
	}
}

func TestWithoutExtractionKeepsDetail(t *testing.T) {
	now := time.Now()
	rec := JobRecord{LastScraped: &now, Extraction: &Extraction{}, ExtractedAt: &now}
	got := rec.WithoutExtraction()
	if got.HasExtraction() || got.ExtractedAt != nil {
		t.Error("expected extraction cleared")
	}
	if !got.HasDetail() {
		t.Error("expected detail to survive")
	}
}

func TestEnrichmentText(t *testing.T) {
	rec := JobRecord{
		Summary: Summary{Title: "Nurse 1"},
		Detail: Detail{
			DutiesDescription:     strPtr("  Provide care. "),
			MinimumQualifications: strPtr(""),
			AdditionalComments:    strPtr("Night shift."),
		},
	}
	want := "Title: Nurse 1\n\nDuties Description:\nProvide care.\n\nAdditional Comments:\nNight shift."
	if got := rec.EnrichmentText(); got != want {
		t.Errorf("EnrichmentText() =\n%q\nwant\n%q", got, want)
	}
}

func TestHumanizeAgency(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Health, Department of", "Department of Health"},
		{"Taxation and Finance,  Department of", "Department of Taxation and Finance"},
		{"Children and Family Services, Office for", "Office for Children and Family Services"},
		{"State Police, Division of", "Division of State Police"},
		{"Thruway Authority", "Thruway Authority"},
		{"Albany, NY", "Albany, NY"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := HumanizeAgency(tt.in); got != tt.want {
			t.Errorf("HumanizeAgency(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummaryExpired(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if !(Summary{Deadline: now.Add(-time.Hour)}).Expired(now) {
		t.Error("past deadline should be expired")
	}
	if (Summary{Deadline: now}).Expired(now) {
		t.Error("deadline equal to now should not be expired")
	}
}
