package model

import "time"

// DocumentSource is the persisted form of a SourceRef.
type DocumentSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Document is the flat persisted form of a Record. The run-scoped ID and the
// smart-match ranking hint are not part of it.
type Document struct {
	ContactName     string           `json:"contact_name"`
	Address         string           `json:"address"`
	Details         string           `json:"details"`
	Phones          []string         `json:"phones"`
	PostTime        *time.Time       `json:"post_time"`
	LastVerifiedUTC *time.Time       `json:"last_verified_utc"`
	ResourceSubtype string           `json:"resource_subtype"`
	Lat             *float64         `json:"lat"`
	Lng             *float64         `json:"lng"`
	Availability    bool             `json:"availability"`
	CardSourceURL   string           `json:"card_source_url,omitempty"`
	Sources         []DocumentSource `json:"sources"`

	BloodGroup *string  `json:"blood_group,omitempty"`
	Litres     *float64 `json:"litres,omitempty"`

	AvailableCovidBeds    *int `json:"available_covid_beds,omitempty"`
	AvailableOxygenBeds   *int `json:"available_oxygen_beds,omitempty"`
	AvailableNoOxygenBeds *int `json:"available_no_oxygen_beds,omitempty"`
	TotalAvailableBeds    *int `json:"total_available_beds,omitempty"`

	AvailableNoVentilatorBeds *int `json:"available_no_ventilator_beds,omitempty"`
	AvailableVentilatorBeds   *int `json:"available_ventilator_beds,omitempty"`
	TotalAvailableICUBeds     *int `json:"total_available_icu_beds,omitempty"`
	AvailableVentilators      *int `json:"available_ventilators,omitempty"`

	HospitalType string `json:"hospital_type,omitempty"`
}

// ToDocument flattens r for persistence.
func (r *Record) ToDocument() Document {
	phones := r.Phones
	if phones == nil {
		phones = []string{}
	}
	d := Document{
		ContactName:     r.ContactName,
		Address:         r.Address,
		Details:         r.Details,
		Phones:          phones,
		PostTime:        r.PostTime,
		LastVerifiedUTC: r.LastVerifiedUTC,
		ResourceSubtype: r.ResourceSubtype,
		Lat:             r.Lat,
		Lng:             r.Lng,
		Availability:    r.Available,
		CardSourceURL:   r.CardSourceURL,
		Sources:         make([]DocumentSource, 0, len(r.Sources)),
		BloodGroup:      r.BloodGroup,
		Litres:          r.Litres,
	}
	for _, s := range r.Sources {
		d.Sources = append(d.Sources, DocumentSource{Name: s.Name, URL: s.URL})
	}
	if b := r.Beds; b != nil {
		d.AvailableCovidBeds = b.CovidBeds
		d.AvailableOxygenBeds = b.OxygenBeds
		d.AvailableNoOxygenBeds = b.NoOxygenBeds
		d.TotalAvailableBeds = b.TotalBeds
		d.HospitalType = b.HospitalType
	}
	if icu := r.ICU; icu != nil {
		d.AvailableNoVentilatorBeds = icu.NoVentilatorBeds
		d.AvailableVentilatorBeds = icu.VentilatorBeds
		d.TotalAvailableICUBeds = icu.TotalICUBeds
		d.AvailableVentilators = icu.Ventilators
		d.HospitalType = icu.HospitalType
	}
	return d
}

// Documents flattens a ranked record list.
func Documents(records []*Record) []Document {
	out := make([]Document, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToDocument())
	}
	return out
}
