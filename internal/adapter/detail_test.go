package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/statejobs/internal/model"
)

const detailPage = `<!DOCTYPE html>
<html><body>
<div id="information">
  <p class="row"><span class="leftCol">NY HELP</span><span class="rightCol">Yes</span></p>
  <p class="row"><span class="leftCol">Agency</span><span class="rightCol"> Health, Department of </span></p>
  <p class="row"><span class="leftCol">Title</span><span class="rightCol">Nurse 1</span></p>
  <p class="row"><span class="leftCol">Salary Grade</span><span class="rightCol">NS</span></p>
  <p class="row"><span class="leftCol">Salary Range</span><span class="rightCol">From $78,000 to $95,000 Annually</span></p>
  <p class="row"><span class="leftCol">Travel Percentage</span><span class="rightCol">25%</span></p>
  <p class="row"><span class="leftCol">Mystery Label</span><span class="rightCol">ignored</span></p>
</div>
<div id="schedule">
  <p class="row"><span class="leftCol">Workweek</span><span class="rightCol">Mon-Fri</span></p>
  <p class="row"><span class="leftCol">From</span><span class="rightCol">8 AM</span></p>
  <p class="row"><span class="leftCol">To</span><span class="rightCol">4 PM</span></p>
  <p class="row"><span class="leftCol">Flextime allowed?</span><span class="rightCol">NO</span></p>
  <p class="row"><span class="leftCol">Mandatory overtime?</span><span class="rightCol">yes</span></p>
  <p class="row"><span class="leftCol">Telecommuting allowed?</span><span class="rightCol">Maybe</span></p>
  <p class="row"><span class="leftCol">City</span><span class="rightCol">Wrong Section</span></p>
</div>
<div id="location">
  <p class="row"><span class="leftCol">County</span><span class="rightCol">Albany</span></p>
  <p class="row"><span class="leftCol">City</span><span class="rightCol">Albany</span></p>
  <p class="row"><span class="leftCol">Zip Code</span><span class="rightCol">12237</span></p>
</div>
<div id="jobspecifics">
  <p class="row"><span class="leftCol">Duties Description</span><span class="rightCol">Provide patient care.</span></p>
  <p class="row"><span class="leftCol">Minimum Qualifications</span><span class="rightCol">RN license.</span></p>
</div>
</body></html>`

func TestScrapeDetail_MissingContactSection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(detailPage))
	}))
	defer srv.Close()

	d, err := NewDetailAdapter(srv.Client(), discardLogger()).ScrapeDetail(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertStr(t, "Agency", d.Agency, "Health, Department of")
	assertStr(t, "Title", d.Title, "Nurse 1")
	assertStr(t, "SalaryRange", d.SalaryRange, "From $78,000 to $95,000 Annually")
	assertStr(t, "WorkdayFrom", d.WorkdayFrom, "8 AM")
	assertStr(t, "WorkdayTo", d.WorkdayTo, "4 PM")
	assertStr(t, "City", d.City, "Albany")
	assertStr(t, "ZipCode", d.ZipCode, "12237")
	assertStr(t, "DutiesDescription", d.DutiesDescription, "Provide patient care.")

	if d.NYHelp == nil || !*d.NYHelp {
		t.Error("NYHelp: expected true")
	}
	if d.FlextimeAllowed == nil || *d.FlextimeAllowed {
		t.Error("FlextimeAllowed: expected false")
	}
	if d.MandatoryOvertime == nil || !*d.MandatoryOvertime {
		t.Error("MandatoryOvertime: expected true")
	}
	if d.TelecommutingAllowed == nil || *d.TelecommutingAllowed {
		t.Error("TelecommutingAllowed: invalid yes/no should read as false")
	}
	if d.TravelPercentage == nil || *d.TravelPercentage != 25 {
		t.Errorf("TravelPercentage = %v, want 25", d.TravelPercentage)
	}

	// Absent rows stay unset.
	if d.BargainingUnit != nil || d.CompressedWorkweek != nil || d.AdditionalComments != nil {
		t.Error("expected rows missing from the page to stay nil")
	}
	contact := []*string{d.ContactName, d.ContactPhone, d.ContactFax, d.ContactEmail,
		d.ContactStreet, d.ContactCity, d.ContactState, d.ContactZip, d.NotesOnApplying}
	for i, f := range contact {
		if f != nil {
			t.Errorf("contact field %d: expected nil, got %q", i, *f)
		}
	}
}

func TestParseDetail_ContactSectionLabelsDoNotLeak(t *testing.T) {
	page := `<div id="contact">
	  <p class="row"><span class="leftCol">Name</span><span class="rightCol">Jane Doe</span></p>
	  <p class="row"><span class="leftCol">City</span><span class="rightCol">Troy</span></p>
	  <p class="row"><span class="leftCol">Email Address</span><span class="rightCol">jobs@health.ny.gov</span></p>
	</div>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}

	d := parseDetail(doc, discardLogger())
	assertStr(t, "ContactName", d.ContactName, "Jane Doe")
	assertStr(t, "ContactCity", d.ContactCity, "Troy")
	assertStr(t, "ContactEmail", d.ContactEmail, "jobs@health.ny.gov")
	if d.City != nil {
		t.Error("contact City must not populate the location City")
	}
}

func TestScrapeDetail_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewDetailAdapter(srv.Client(), discardLogger()).ScrapeDetail(context.Background(), srv.URL)
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected HTTPError 404, got %v", err)
	}
}

func TestScrapeDetail_NonTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	_, err := NewDetailAdapter(srv.Client(), discardLogger()).ScrapeDetail(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for non-text content")
	}
}

func TestParsePercent(t *testing.T) {
	if v, err := parsePercent(" 12.5 % "); err != nil || v != 12.5 {
		t.Errorf("parsePercent = %v, %v", v, err)
	}
	if _, err := parsePercent("n/a"); err == nil {
		t.Error("expected error for non-numeric percentage")
	}
	for _, v := range []string{"Inf%", "-Inf%", "Infinity %", "NaN%"} {
		if f, err := parsePercent(v); err == nil {
			t.Errorf("parsePercent(%q) = %v, expected error", v, f)
		}
	}
}

func TestScrapeDetail_NonFinitePercentLeftUnset(t *testing.T) {
	page := strings.Replace(detailPage, ">25%<", ">Inf%<", 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	d, err := NewDetailAdapter(srv.Client(), discardLogger()).ScrapeDetail(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.TravelPercentage != nil {
		t.Errorf("expected TravelPercentage unset, got %v", *d.TravelPercentage)
	}
	assertStr(t, "Agency", d.Agency, "Health, Department of")
}

func assertStr(t *testing.T, name string, got *string, want string) {
	t.Helper()
	if got == nil {
		t.Errorf("%s: expected %q, got nil", name, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %q, want %q", name, *got, want)
	}
}
