package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/statejobs/internal/model"
)

// Page sections of a posting, by element id.
const (
	sectionInformation  = "information"
	sectionSchedule     = "schedule"
	sectionLocation     = "location"
	sectionJobSpecifics = "jobspecifics"
	sectionContact      = "contact"
)

var detailSections = []string{
	sectionInformation,
	sectionSchedule,
	sectionLocation,
	sectionJobSpecifics,
	sectionContact,
}

// fieldDef maps one labeled row of one section onto a Detail field.
type fieldDef struct {
	section string
	label   string
	apply   func(d *model.Detail, value string, logger *slog.Logger)
}

func text(field func(*model.Detail) **string) func(*model.Detail, string, *slog.Logger) {
	return func(d *model.Detail, value string, _ *slog.Logger) {
		v := value
		*field(d) = &v
	}
}

func yesNo(label string, field func(*model.Detail) **bool) func(*model.Detail, string, *slog.Logger) {
	return func(d *model.Detail, value string, logger *slog.Logger) {
		b := parseYesNo(label, value, logger)
		*field(d) = &b
	}
}

func percent(label string, field func(*model.Detail) **float64) func(*model.Detail, string, *slog.Logger) {
	return func(d *model.Detail, value string, logger *slog.Logger) {
		f, err := parsePercent(value)
		if err != nil {
			logger.Warn("unparseable percentage", "label", label, "value", value)
			return
		}
		*field(d) = &f
	}
}

var fieldDefs = []fieldDef{
	// Basics
	{sectionInformation, "NY HELP", yesNo("NY HELP", func(d *model.Detail) **bool { return &d.NYHelp })},
	{sectionInformation, "Agency", text(func(d *model.Detail) **string { return &d.Agency })},
	{sectionInformation, "Title", text(func(d *model.Detail) **string { return &d.Title })},
	{sectionInformation, "Occupational Category", text(func(d *model.Detail) **string { return &d.OccupationalCategory })},
	{sectionInformation, "Salary Grade", text(func(d *model.Detail) **string { return &d.SalaryGrade })},
	{sectionInformation, "Bargaining Unit", text(func(d *model.Detail) **string { return &d.BargainingUnit })},
	{sectionInformation, "Salary Range", text(func(d *model.Detail) **string { return &d.SalaryRange })},
	{sectionInformation, "Employment Type", text(func(d *model.Detail) **string { return &d.EmploymentType })},
	{sectionInformation, "Appointment Type", text(func(d *model.Detail) **string { return &d.AppointmentType })},
	{sectionInformation, "Jurisdictional Class", text(func(d *model.Detail) **string { return &d.JurisdictionalClass })},
	{sectionInformation, "Travel Percentage", percent("Travel Percentage", func(d *model.Detail) **float64 { return &d.TravelPercentage })},

	// Schedule
	{sectionSchedule, "Workweek", text(func(d *model.Detail) **string { return &d.Workweek })},
	{sectionSchedule, "Hours Per Week", text(func(d *model.Detail) **string { return &d.HoursPerWeek })},
	{sectionSchedule, "From", text(func(d *model.Detail) **string { return &d.WorkdayFrom })},
	{sectionSchedule, "To", text(func(d *model.Detail) **string { return &d.WorkdayTo })},
	{sectionSchedule, "Flextime allowed?", yesNo("Flextime allowed?", func(d *model.Detail) **bool { return &d.FlextimeAllowed })},
	{sectionSchedule, "Mandatory overtime?", yesNo("Mandatory overtime?", func(d *model.Detail) **bool { return &d.MandatoryOvertime })},
	{sectionSchedule, "Compressed workweek allowed?", yesNo("Compressed workweek allowed?", func(d *model.Detail) **bool { return &d.CompressedWorkweek })},
	{sectionSchedule, "Telecommuting allowed?", yesNo("Telecommuting allowed?", func(d *model.Detail) **bool { return &d.TelecommutingAllowed })},

	// Location
	{sectionLocation, "County", text(func(d *model.Detail) **string { return &d.LocationCounty })},
	{sectionLocation, "Street Address", text(func(d *model.Detail) **string { return &d.StreetAddress })},
	{sectionLocation, "City", text(func(d *model.Detail) **string { return &d.City })},
	{sectionLocation, "State", text(func(d *model.Detail) **string { return &d.State })},
	{sectionLocation, "Zip Code", text(func(d *model.Detail) **string { return &d.ZipCode })},

	// Job specifics
	{sectionJobSpecifics, "Duties Description", text(func(d *model.Detail) **string { return &d.DutiesDescription })},
	{sectionJobSpecifics, "Minimum Qualifications", text(func(d *model.Detail) **string { return &d.MinimumQualifications })},
	{sectionJobSpecifics, "Additional Comments", text(func(d *model.Detail) **string { return &d.AdditionalComments })},

	// Contact
	{sectionContact, "Name", text(func(d *model.Detail) **string { return &d.ContactName })},
	{sectionContact, "Telephone", text(func(d *model.Detail) **string { return &d.ContactPhone })},
	{sectionContact, "Fax", text(func(d *model.Detail) **string { return &d.ContactFax })},
	{sectionContact, "Email Address", text(func(d *model.Detail) **string { return &d.ContactEmail })},
	{sectionContact, "Street", text(func(d *model.Detail) **string { return &d.ContactStreet })},
	{sectionContact, "City", text(func(d *model.Detail) **string { return &d.ContactCity })},
	{sectionContact, "State", text(func(d *model.Detail) **string { return &d.ContactState })},
	{sectionContact, "Zip Code", text(func(d *model.Detail) **string { return &d.ContactZip })},
	{sectionContact, "Notes on Applying", text(func(d *model.Detail) **string { return &d.NotesOnApplying })},
}

// fieldIndex is keyed by section then label.
var fieldIndex = func() map[string]map[string]fieldDef {
	idx := make(map[string]map[string]fieldDef, len(detailSections))
	for _, def := range fieldDefs {
		if idx[def.section] == nil {
			idx[def.section] = make(map[string]fieldDef)
		}
		idx[def.section][def.label] = def
	}
	return idx
}()

// DetailAdapter scrapes the labeled attributes from a posting's page.
type DetailAdapter struct {
	client *http.Client
	logger *slog.Logger
}

// NewDetailAdapter creates a detail scraper.
func NewDetailAdapter(client *http.Client, logger *slog.Logger) *DetailAdapter {
	return &DetailAdapter{client: client, logger: logger}
}

// ScrapeDetail makes one request to link and returns the fields the page
// exposes. Rows with unknown labels, or labels found in the wrong section,
// are ignored.
func (a *DetailAdapter) ScrapeDetail(ctx context.Context, link string) (model.Detail, error) {
	resp, err := get(ctx, a.client, link, "detail fetch", "text/")
	if err != nil {
		return model.Detail{}, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return model.Detail{}, fmt.Errorf("detail parse %s: %w", link, err)
	}

	return parseDetail(doc, a.logger.With("link", link)), nil
}

func parseDetail(doc *goquery.Document, logger *slog.Logger) model.Detail {
	var d model.Detail
	for _, section := range detailSections {
		defs := fieldIndex[section]
		doc.Find("#" + section + " p.row").Each(func(_ int, row *goquery.Selection) {
			label := strings.TrimSpace(row.Find(".leftCol").Text())
			def, ok := defs[label]
			if !ok {
				return
			}
			value := strings.TrimSpace(row.Find(".rightCol").Text())
			def.apply(&d, value, logger)
		})
	}
	return d
}

// parseYesNo maps YES/NO case-insensitively. Anything else is logged and
// read as false.
func parseYesNo(label, value string, logger *slog.Logger) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes":
		return true
	case "no":
		return false
	default:
		logger.Warn("expected YES or NO", "label", label, "value", value)
		return false
	}
}

// parsePercent turns "75%" into 75. NaN and infinities are rejected.
func parsePercent(value string) (float64, error) {
	v := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite percentage %q", value)
	}
	return f, nil
}
