package model

import "time"

// SourceRef names a web source that contributed to a record.
type SourceRef struct {
	Name            string
	URL             string
	NeedsSmartMatch bool
}

// HospitalBeds holds general hospital bed availability.
type HospitalBeds struct {
	CovidBeds    *int
	OxygenBeds   *int
	NoOxygenBeds *int
	TotalBeds    *int
	HospitalType string
}

// ICUBeds holds ICU bed availability. Ventilators counts devices, which some
// hospitals report separately from the ventilator bed split.
type ICUBeds struct {
	NoVentilatorBeds *int
	VentilatorBeds   *int
	TotalICUBeds     *int
	Ventilators      *int
	HospitalType     string
}

// Record is the canonical, source-agnostic form of one resource listing.
// ID is unique only within a single aggregation run.
type Record struct {
	ID              int64
	ContactName     string
	Address         string
	Details         string
	Phones          []string
	PostTime        *time.Time
	LastVerifiedUTC *time.Time
	ResourceSubtype string
	Lat             *float64
	Lng             *float64
	Available       bool
	CardSourceURL   string
	Sources         []SourceRef

	// Sparse per-resource-type fields.
	BloodGroup *string
	Litres     *float64
	Beds       *HospitalBeds
	ICU        *ICUBeds
}

// OriginSource returns the source a record was first mapped from.
func (r *Record) OriginSource() (SourceRef, bool) {
	if len(r.Sources) == 0 {
		return SourceRef{}, false
	}
	return r.Sources[0], true
}

// HasSource reports whether a source with the given name is already listed.
func (r *Record) HasSource(name string) bool {
	for _, s := range r.Sources {
		if s.Name == name {
			return true
		}
	}
	return false
}

// FilteredResources is the aggregation result persisted under one filter key.
type FilteredResources struct {
	SearchFilter string     `json:"search_filter"`
	Data         []Document `json:"resource_info_data"`
}
