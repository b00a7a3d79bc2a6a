package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/statejobs/internal/model"
)

const tableName = "jobs"

// column is one entry of the jobs table. All column naming lives here; the
// rest of the package works in terms of dbRow.
type column struct {
	name     string
	sqlite   string
	postgres string
	field    func(r *dbRow) any
}

// dbRow holds one jobs row in typed, nullable form.
type dbRow struct {
	ID          int64
	Link        string
	Title       string
	PublishDate time.Time
	Deadline    time.Time
	Grade       string
	County      string
	SummaryHash string

	NYHelp               sql.NullBool
	Agency               sql.NullString
	DetailTitle          sql.NullString
	OccupationalCategory sql.NullString
	SalaryGrade          sql.NullString
	BargainingUnit       sql.NullString
	SalaryRange          sql.NullString
	EmploymentType       sql.NullString
	AppointmentType      sql.NullString
	JurisdictionalClass  sql.NullString
	TravelPercentage     sql.NullFloat64

	Workweek             sql.NullString
	HoursPerWeek         sql.NullString
	WorkdayFrom          sql.NullString
	WorkdayTo            sql.NullString
	FlextimeAllowed      sql.NullBool
	MandatoryOvertime    sql.NullBool
	CompressedWorkweek   sql.NullBool
	TelecommutingAllowed sql.NullBool

	LocationCounty sql.NullString
	StreetAddress  sql.NullString
	City           sql.NullString
	State          sql.NullString
	ZipCode        sql.NullString

	DutiesDescription     sql.NullString
	MinimumQualifications sql.NullString
	AdditionalComments    sql.NullString

	ContactName     sql.NullString
	ContactPhone    sql.NullString
	ContactFax      sql.NullString
	ContactEmail    sql.NullString
	ContactStreet   sql.NullString
	ContactCity     sql.NullString
	ContactState    sql.NullString
	ContactZip      sql.NullString
	NotesOnApplying sql.NullString

	LastScraped         sql.NullTime
	FullHash            sql.NullString
	ExtractedData       sql.NullString
	ExtractedAt         sql.NullTime
	HumanReadableAgency sql.NullString
}

var columns = []column{
	{"id", "INTEGER PRIMARY KEY", "BIGINT PRIMARY KEY", func(r *dbRow) any { return &r.ID }},
	{"link", "TEXT NOT NULL", "TEXT NOT NULL", func(r *dbRow) any { return &r.Link }},
	{"title", "TEXT NOT NULL", "TEXT NOT NULL", func(r *dbRow) any { return &r.Title }},
	{"publish_date", "DATETIME NOT NULL", "TIMESTAMPTZ NOT NULL", func(r *dbRow) any { return &r.PublishDate }},
	{"deadline", "DATETIME NOT NULL", "TIMESTAMPTZ NOT NULL", func(r *dbRow) any { return &r.Deadline }},
	{"grade", "TEXT NOT NULL", "TEXT NOT NULL", func(r *dbRow) any { return &r.Grade }},
	{"county", "TEXT NOT NULL", "TEXT NOT NULL", func(r *dbRow) any { return &r.County }},
	{"summary_hash", "TEXT NOT NULL", "TEXT NOT NULL", func(r *dbRow) any { return &r.SummaryHash }},

	{"ny_help", "BOOLEAN", "BOOLEAN", func(r *dbRow) any { return &r.NYHelp }},
	{"agency", "TEXT", "TEXT", func(r *dbRow) any { return &r.Agency }},
	{"detail_title", "TEXT", "TEXT", func(r *dbRow) any { return &r.DetailTitle }},
	{"occupational_category", "TEXT", "TEXT", func(r *dbRow) any { return &r.OccupationalCategory }},
	{"salary_grade", "TEXT", "TEXT", func(r *dbRow) any { return &r.SalaryGrade }},
	{"bargaining_unit", "TEXT", "TEXT", func(r *dbRow) any { return &r.BargainingUnit }},
	{"salary_range", "TEXT", "TEXT", func(r *dbRow) any { return &r.SalaryRange }},
	{"employment_type", "TEXT", "TEXT", func(r *dbRow) any { return &r.EmploymentType }},
	{"appointment_type", "TEXT", "TEXT", func(r *dbRow) any { return &r.AppointmentType }},
	{"jurisdictional_class", "TEXT", "TEXT", func(r *dbRow) any { return &r.JurisdictionalClass }},
	{"travel_percentage", "REAL", "DOUBLE PRECISION", func(r *dbRow) any { return &r.TravelPercentage }},

	{"workweek", "TEXT", "TEXT", func(r *dbRow) any { return &r.Workweek }},
	{"hours_per_week", "TEXT", "TEXT", func(r *dbRow) any { return &r.HoursPerWeek }},
	{"workday_from", "TEXT", "TEXT", func(r *dbRow) any { return &r.WorkdayFrom }},
	{"workday_to", "TEXT", "TEXT", func(r *dbRow) any { return &r.WorkdayTo }},
	{"flextime_allowed", "BOOLEAN", "BOOLEAN", func(r *dbRow) any { return &r.FlextimeAllowed }},
	{"mandatory_overtime", "BOOLEAN", "BOOLEAN", func(r *dbRow) any { return &r.MandatoryOvertime }},
	{"compressed_workweek", "BOOLEAN", "BOOLEAN", func(r *dbRow) any { return &r.CompressedWorkweek }},
	{"telecommuting_allowed", "BOOLEAN", "BOOLEAN", func(r *dbRow) any { return &r.TelecommutingAllowed }},

	{"location_county", "TEXT", "TEXT", func(r *dbRow) any { return &r.LocationCounty }},
	{"street_address", "TEXT", "TEXT", func(r *dbRow) any { return &r.StreetAddress }},
	{"city", "TEXT", "TEXT", func(r *dbRow) any { return &r.City }},
	{"state", "TEXT", "TEXT", func(r *dbRow) any { return &r.State }},
	{"zip_code", "TEXT", "TEXT", func(r *dbRow) any { return &r.ZipCode }},

	{"duties_description", "TEXT", "TEXT", func(r *dbRow) any { return &r.DutiesDescription }},
	{"minimum_qualifications", "TEXT", "TEXT", func(r *dbRow) any { return &r.MinimumQualifications }},
	{"additional_comments", "TEXT", "TEXT", func(r *dbRow) any { return &r.AdditionalComments }},

	{"contact_name", "TEXT", "TEXT", func(r *dbRow) any { return &r.ContactName }},
	{"contact_phone", "TEXT", "TEXT", func(r *dbRow) any { return &r.ContactPhone }},
	{"contact_fax", "TEXT", "TEXT", func(r *dbRow) any { return &r.ContactFax }},
	{"contact_email", "TEXT", "TEXT", func(r *dbRow) any { return &r.ContactEmail }},
	{"contact_street", "TEXT", "TEXT", func(r *dbRow) any { return &r.ContactStreet }},
	{"contact_city", "TEXT", "TEXT", func(r *dbRow) any { return &r.ContactCity }},
	{"contact_state", "TEXT", "TEXT", func(r *dbRow) any { return &r.ContactState }},
	{"contact_zip", "TEXT", "TEXT", func(r *dbRow) any { return &r.ContactZip }},
	{"notes_on_applying", "TEXT", "TEXT", func(r *dbRow) any { return &r.NotesOnApplying }},

	{"last_scraped", "DATETIME", "TIMESTAMPTZ", func(r *dbRow) any { return &r.LastScraped }},
	{"full_hash", "TEXT", "TEXT", func(r *dbRow) any { return &r.FullHash }},
	{"extracted_data", "TEXT", "TEXT", func(r *dbRow) any { return &r.ExtractedData }},
	{"extracted_at", "DATETIME", "TIMESTAMPTZ", func(r *dbRow) any { return &r.ExtractedAt }},
	{"human_readable_agency", "TEXT", "TEXT", func(r *dbRow) any { return &r.HumanReadableAgency }},
}

var columnNames = func() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}()

// dialect selects the column type and placeholder flavour of a backend.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func createTableSQL(d dialect) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		typ := c.sqlite
		if d == dialectPostgres {
			typ = c.postgres
		}
		defs[i] = "  " + c.name + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", tableName, strings.Join(defs, ",\n"))
}

var indexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_jobs_publish_date ON jobs(publish_date)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_last_scraped ON jobs(last_scraped)`,
}

var (
	selectColumns = strings.Join(columnNames, ", ")

	upsertSQL = func() string {
		placeholders := make([]string, len(columns))
		updates := make([]string, 0, len(columns)-1)
		for i, c := range columns {
			placeholders[i] = "?"
			if c.name != "id" {
				updates = append(updates, c.name+" = excluded."+c.name)
			}
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
			tableName, selectColumns, strings.Join(placeholders, ", "), strings.Join(updates, ", "))
	}()

	getSQL         = "SELECT " + selectColumns + " FROM " + tableName + " WHERE id = ?"
	deleteSQL      = "DELETE FROM " + tableName + " WHERE id = ?"
	summaryHashSQL = "SELECT id, summary_hash FROM " + tableName + " ORDER BY id"
	missingTierSQL = map[model.Tier]string{
		model.TierDetail:     "SELECT " + selectColumns + " FROM " + tableName + " WHERE last_scraped IS NULL ORDER BY id",
		model.TierEnrichment: "SELECT " + selectColumns + " FROM " + tableName + " WHERE last_scraped IS NOT NULL AND extracted_data IS NULL ORDER BY id",
	}
	recentSQL         = "SELECT " + selectColumns + " FROM " + tableName + " ORDER BY publish_date DESC, id DESC LIMIT ?"
	recentEnrichedSQL = "SELECT " + selectColumns + " FROM " + tableName + " WHERE extracted_data IS NOT NULL ORDER BY publish_date DESC, id DESC LIMIT ?"
)

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func rebind(d dialect, query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (r *dbRow) dest() []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = c.field(r)
	}
	return out
}

// args returns the row's values, not pointers, in column order.
func (r *dbRow) args() []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = reflect.ValueOf(c.field(r)).Elem().Interface()
	}
	return out
}

// checkColumns fails with ErrIntegrity when a result set does not have the
// exact column list the decoder expects.
func checkColumns(got []string) error {
	if len(got) != len(columnNames) {
		return fmt.Errorf("%w: expected %d columns, got %d", model.ErrIntegrity, len(columnNames), len(got))
	}
	for i, name := range got {
		if !strings.EqualFold(name, columnNames[i]) {
			return fmt.Errorf("%w: column %d is %q, expected %q", model.ErrIntegrity, i, name, columnNames[i])
		}
	}
	return nil
}

// scanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (model.JobRecord, error) {
	var row dbRow
	if err := s.Scan(row.dest()...); err != nil {
		return model.JobRecord{}, err
	}
	return row.record()
}

func encodeRecord(rec model.JobRecord) (dbRow, error) {
	if !rec.HasID() {
		return dbRow{}, fmt.Errorf("%w: invalid id %d", model.ErrIntegrity, rec.ID)
	}
	d := rec.Detail
	row := dbRow{
		ID:          rec.ID,
		Link:        rec.Link,
		Title:       rec.Title,
		PublishDate: rec.PublishDate.UTC(),
		Deadline:    rec.Deadline.UTC(),
		Grade:       rec.Grade,
		County:      rec.County,
		SummaryHash: rec.SummaryHash,

		NYHelp:               nullBool(d.NYHelp),
		Agency:               nullString(d.Agency),
		DetailTitle:          nullString(d.Title),
		OccupationalCategory: nullString(d.OccupationalCategory),
		SalaryGrade:          nullString(d.SalaryGrade),
		BargainingUnit:       nullString(d.BargainingUnit),
		SalaryRange:          nullString(d.SalaryRange),
		EmploymentType:       nullString(d.EmploymentType),
		AppointmentType:      nullString(d.AppointmentType),
		JurisdictionalClass:  nullString(d.JurisdictionalClass),
		TravelPercentage:     nullFloat(d.TravelPercentage),

		Workweek:             nullString(d.Workweek),
		HoursPerWeek:         nullString(d.HoursPerWeek),
		WorkdayFrom:          nullString(d.WorkdayFrom),
		WorkdayTo:            nullString(d.WorkdayTo),
		FlextimeAllowed:      nullBool(d.FlextimeAllowed),
		MandatoryOvertime:    nullBool(d.MandatoryOvertime),
		CompressedWorkweek:   nullBool(d.CompressedWorkweek),
		TelecommutingAllowed: nullBool(d.TelecommutingAllowed),

		LocationCounty: nullString(d.LocationCounty),
		StreetAddress:  nullString(d.StreetAddress),
		City:           nullString(d.City),
		State:          nullString(d.State),
		ZipCode:        nullString(d.ZipCode),

		DutiesDescription:     nullString(d.DutiesDescription),
		MinimumQualifications: nullString(d.MinimumQualifications),
		AdditionalComments:    nullString(d.AdditionalComments),

		ContactName:     nullString(d.ContactName),
		ContactPhone:    nullString(d.ContactPhone),
		ContactFax:      nullString(d.ContactFax),
		ContactEmail:    nullString(d.ContactEmail),
		ContactStreet:   nullString(d.ContactStreet),
		ContactCity:     nullString(d.ContactCity),
		ContactState:    nullString(d.ContactState),
		ContactZip:      nullString(d.ContactZip),
		NotesOnApplying: nullString(d.NotesOnApplying),

		LastScraped: nullTime(rec.LastScraped),
		ExtractedAt: nullTime(rec.ExtractedAt),
	}
	if rec.FullHash != "" {
		row.FullHash = sql.NullString{String: rec.FullHash, Valid: true}
	}
	if rec.HumanReadableAgency != "" {
		row.HumanReadableAgency = sql.NullString{String: rec.HumanReadableAgency, Valid: true}
	}
	if rec.Extraction != nil {
		b, err := json.Marshal(rec.Extraction)
		if err != nil {
			return dbRow{}, fmt.Errorf("encoding extraction for job %d: %w", rec.ID, err)
		}
		row.ExtractedData = sql.NullString{String: string(b), Valid: true}
	}
	return row, nil
}

func (r *dbRow) record() (model.JobRecord, error) {
	if r.ID <= 0 {
		return model.JobRecord{}, fmt.Errorf("%w: stored row has id %d", model.ErrIntegrity, r.ID)
	}
	rec := model.JobRecord{
		Summary: model.Summary{
			ID:          r.ID,
			Link:        r.Link,
			Title:       r.Title,
			PublishDate: r.PublishDate.UTC(),
			Deadline:    r.Deadline.UTC(),
			Grade:       r.Grade,
			County:      r.County,
			SummaryHash: r.SummaryHash,
		},
		Detail: model.Detail{
			NYHelp:               boolPtr(r.NYHelp),
			Agency:               strPtr(r.Agency),
			Title:                strPtr(r.DetailTitle),
			OccupationalCategory: strPtr(r.OccupationalCategory),
			SalaryGrade:          strPtr(r.SalaryGrade),
			BargainingUnit:       strPtr(r.BargainingUnit),
			SalaryRange:          strPtr(r.SalaryRange),
			EmploymentType:       strPtr(r.EmploymentType),
			AppointmentType:      strPtr(r.AppointmentType),
			JurisdictionalClass:  strPtr(r.JurisdictionalClass),
			TravelPercentage:     floatPtr(r.TravelPercentage),

			Workweek:             strPtr(r.Workweek),
			HoursPerWeek:         strPtr(r.HoursPerWeek),
			WorkdayFrom:          strPtr(r.WorkdayFrom),
			WorkdayTo:            strPtr(r.WorkdayTo),
			FlextimeAllowed:      boolPtr(r.FlextimeAllowed),
			MandatoryOvertime:    boolPtr(r.MandatoryOvertime),
			CompressedWorkweek:   boolPtr(r.CompressedWorkweek),
			TelecommutingAllowed: boolPtr(r.TelecommutingAllowed),

			LocationCounty: strPtr(r.LocationCounty),
			StreetAddress:  strPtr(r.StreetAddress),
			City:           strPtr(r.City),
			State:          strPtr(r.State),
			ZipCode:        strPtr(r.ZipCode),

			DutiesDescription:     strPtr(r.DutiesDescription),
			MinimumQualifications: strPtr(r.MinimumQualifications),
			AdditionalComments:    strPtr(r.AdditionalComments),

			ContactName:     strPtr(r.ContactName),
			ContactPhone:    strPtr(r.ContactPhone),
			ContactFax:      strPtr(r.ContactFax),
			ContactEmail:    strPtr(r.ContactEmail),
			ContactStreet:   strPtr(r.ContactStreet),
			ContactCity:     strPtr(r.ContactCity),
			ContactState:    strPtr(r.ContactState),
			ContactZip:      strPtr(r.ContactZip),
			NotesOnApplying: strPtr(r.NotesOnApplying),
		},
		LastScraped:         timePtr(r.LastScraped),
		FullHash:            r.FullHash.String,
		ExtractedAt:         timePtr(r.ExtractedAt),
		HumanReadableAgency: r.HumanReadableAgency.String,
	}
	if r.ExtractedData.Valid {
		var e model.Extraction
		if err := json.Unmarshal([]byte(r.ExtractedData.String), &e); err != nil {
			return model.JobRecord{}, fmt.Errorf("%w: job %d has malformed extracted_data: %v", model.ErrIntegrity, r.ID, err)
		}
		rec.Extraction = &e
	}
	return rec, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Bool
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time.UTC()
	return &v
}
