package model

import "strings"

// Merge returns the record produced by laying next over r. Fields set in
// next win; fields next leaves unset keep r's value. Merge never clears a
// populated tier, so a record only moves forward.
func (r JobRecord) Merge(next JobRecord) JobRecord {
	out := r

	// The summary tier travels as a unit: a summary without a hash was not
	// produced by the feed pass.
	if next.SummaryHash != "" {
		out.Summary = next.Summary
	}
	if out.ID == NoID {
		out.ID = next.ID
	}

	out.Detail = r.Detail.Merge(next.Detail)
	if next.LastScraped != nil {
		t := *next.LastScraped
		out.LastScraped = &t
	}
	if next.FullHash != "" {
		out.FullHash = next.FullHash
	}

	if next.Extraction != nil {
		e := next.Extraction.clone()
		out.Extraction = &e
	}
	if next.ExtractedAt != nil {
		t := *next.ExtractedAt
		out.ExtractedAt = &t
	}

	if next.HumanReadableAgency != "" {
		out.HumanReadableAgency = next.HumanReadableAgency
	}
	return out
}

// WithoutDetail returns a copy with the detail and derived tiers cleared so the
// next cycle scrapes the posting again. The enrichment tier is cleared too,
// since it was extracted from the old detail text.
func (r JobRecord) WithoutDetail() JobRecord {
	out := r.WithoutExtraction()
	out.Detail = Detail{}
	out.LastScraped = nil
	out.FullHash = ""
	out.HumanReadableAgency = ""
	return out
}

// WithoutExtraction returns a copy with the enrichment tier cleared.
func (r JobRecord) WithoutExtraction() JobRecord {
	out := r
	out.Extraction = nil
	out.ExtractedAt = nil
	return out
}

// EnrichmentText is the raw text handed to the extraction model.
func (r JobRecord) EnrichmentText() string {
	var parts []string
	add := func(label string, v *string) {
		if v == nil || strings.TrimSpace(*v) == "" {
			return
		}
		parts = append(parts, label+":\n"+strings.TrimSpace(*v))
	}
	if r.Title != "" {
		parts = append(parts, "Title: "+r.Title)
	}
	add("Duties Description", r.Detail.DutiesDescription)
	add("Minimum Qualifications", r.Detail.MinimumQualifications)
	add("Additional Comments", r.Detail.AdditionalComments)
	return strings.Join(parts, "\n\n")
}

// Merge lays next over d field by field.
func (d Detail) Merge(next Detail) Detail {
	return Detail{
		NYHelp:               pick(next.NYHelp, d.NYHelp),
		Agency:               pick(next.Agency, d.Agency),
		Title:                pick(next.Title, d.Title),
		OccupationalCategory: pick(next.OccupationalCategory, d.OccupationalCategory),
		SalaryGrade:          pick(next.SalaryGrade, d.SalaryGrade),
		BargainingUnit:       pick(next.BargainingUnit, d.BargainingUnit),
		SalaryRange:          pick(next.SalaryRange, d.SalaryRange),
		EmploymentType:       pick(next.EmploymentType, d.EmploymentType),
		AppointmentType:      pick(next.AppointmentType, d.AppointmentType),
		JurisdictionalClass:  pick(next.JurisdictionalClass, d.JurisdictionalClass),
		TravelPercentage:     pick(next.TravelPercentage, d.TravelPercentage),

		Workweek:             pick(next.Workweek, d.Workweek),
		HoursPerWeek:         pick(next.HoursPerWeek, d.HoursPerWeek),
		WorkdayFrom:          pick(next.WorkdayFrom, d.WorkdayFrom),
		WorkdayTo:            pick(next.WorkdayTo, d.WorkdayTo),
		FlextimeAllowed:      pick(next.FlextimeAllowed, d.FlextimeAllowed),
		MandatoryOvertime:    pick(next.MandatoryOvertime, d.MandatoryOvertime),
		CompressedWorkweek:   pick(next.CompressedWorkweek, d.CompressedWorkweek),
		TelecommutingAllowed: pick(next.TelecommutingAllowed, d.TelecommutingAllowed),

		LocationCounty: pick(next.LocationCounty, d.LocationCounty),
		StreetAddress:  pick(next.StreetAddress, d.StreetAddress),
		City:           pick(next.City, d.City),
		State:          pick(next.State, d.State),
		ZipCode:        pick(next.ZipCode, d.ZipCode),

		DutiesDescription:     pick(next.DutiesDescription, d.DutiesDescription),
		MinimumQualifications: pick(next.MinimumQualifications, d.MinimumQualifications),
		AdditionalComments:    pick(next.AdditionalComments, d.AdditionalComments),

		ContactName:     pick(next.ContactName, d.ContactName),
		ContactPhone:    pick(next.ContactPhone, d.ContactPhone),
		ContactFax:      pick(next.ContactFax, d.ContactFax),
		ContactEmail:    pick(next.ContactEmail, d.ContactEmail),
		ContactStreet:   pick(next.ContactStreet, d.ContactStreet),
		ContactCity:     pick(next.ContactCity, d.ContactCity),
		ContactState:    pick(next.ContactState, d.ContactState),
		ContactZip:      pick(next.ContactZip, d.ContactZip),
		NotesOnApplying: pick(next.NotesOnApplying, d.NotesOnApplying),
	}
}

// pick copies the first non-nil pointer so merged values never alias their inputs.
func pick[T any](next, prev *T) *T {
	src := next
	if src == nil {
		src = prev
	}
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func (e Extraction) clone() Extraction {
	return Extraction{
		SemanticJobTitle:   e.SemanticJobTitle,
		BulletPoints:       append([]string(nil), e.BulletPoints...),
		MinQualifications:  append([]string(nil), e.MinQualifications...),
		PrefQualifications: append([]string(nil), e.PrefQualifications...),
		Duties:             append([]string(nil), e.Duties...),
	}
}

// Clone returns a deep copy that shares no pointers with r.
func (r JobRecord) Clone() JobRecord {
	out := r
	out.Detail = Detail{}.Merge(r.Detail)
	out.LastScraped = pick(r.LastScraped, nil)
	out.ExtractedAt = pick(r.ExtractedAt, nil)
	if r.Extraction != nil {
		e := r.Extraction.clone()
		out.Extraction = &e
	}
	return out
}
