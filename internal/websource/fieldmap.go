package websource

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/covisearch/aggregator/internal/timeparse"
)

// Canonical field names used as keys of a descriptor's field mappings.
const (
	FieldContactName      = "contact_name"
	FieldAddress          = "address"
	FieldDetails          = "details"
	FieldDetailsAppend    = "details_append"
	FieldPhones           = "phones"
	FieldPostTime         = "post_time"
	FieldLastVerified     = "last_verified_utc"
	FieldResourceSubtype  = "resource_subtype"
	FieldLat              = "lat"
	FieldLng              = "lng"
	FieldAvailability     = "availability"
	FieldBloodGroup       = "blood_group"
	FieldLitres           = "litres"
	FieldCovidBeds        = "available_covid_beds"
	FieldOxygenBeds       = "available_oxygen_beds"
	FieldNoOxygenBeds     = "available_no_oxygen_beds"
	FieldTotalBeds        = "total_available_beds"
	FieldNoVentilatorBeds = "available_no_ventilator_beds"
	FieldVentilatorBeds   = "available_ventilator_beds"
	FieldTotalICUBeds     = "total_available_icu_beds"
	FieldVentilators      = "available_ventilators"
	FieldHospitalType     = "hospital_type"
)

var knownFields = map[string]bool{
	FieldContactName: true, FieldAddress: true, FieldDetails: true, FieldDetailsAppend: true,
	FieldPhones: true, FieldPostTime: true, FieldLastVerified: true, FieldResourceSubtype: true,
	FieldLat: true, FieldLng: true, FieldAvailability: true, FieldBloodGroup: true,
	FieldLitres: true, FieldCovidBeds: true, FieldOxygenBeds: true, FieldNoOxygenBeds: true,
	FieldTotalBeds: true, FieldNoVentilatorBeds: true, FieldVentilatorBeds: true,
	FieldTotalICUBeds: true, FieldVentilators: true, FieldHospitalType: true,
}

const (
	datetimeFormatToken  = "datetimeformat"
	exactPhoneMatchToken = "need_exact_phone_number_match"
)

// FieldMappingDesc describes how one canonical field is read from a raw row.
type FieldMappingDesc struct {
	Field           string
	RawFields       []string
	DatetimeFormat  timeparse.Format
	ExactPhoneMatch bool
}

// ParseFieldMapping parses a mapping description such as
// "datetimeformat(ago),lastVerified" or "need_exact_phone_number_match,phone1+phone2".
// The last comma-separated token names the raw fields, joined by "+".
func ParseFieldMapping(field, desc string) (FieldMappingDesc, error) {
	field = strings.TrimSpace(field)
	if !knownFields[field] {
		return FieldMappingDesc{}, eris.Errorf("websource: unknown canonical field %q", field)
	}
	tokens := strings.Split(desc, ",")
	m := FieldMappingDesc{Field: field}

	for _, raw := range strings.Split(tokens[len(tokens)-1], "+") {
		if raw = strings.TrimSpace(raw); raw != "" {
			m.RawFields = append(m.RawFields, raw)
		}
	}
	if len(m.RawFields) == 0 {
		return FieldMappingDesc{}, eris.Errorf("websource: mapping for %s names no raw field", field)
	}

	for _, tok := range tokens[:len(tokens)-1] {
		tok = strings.TrimSpace(tok)
		lower := strings.ToLower(tok)
		switch {
		case lower == "":
		case lower == exactPhoneMatchToken:
			m.ExactPhoneMatch = true
		case strings.HasPrefix(lower, datetimeFormatToken):
			open, end := strings.Index(tok, "("), strings.LastIndex(tok, ")")
			if open < 0 || end < open {
				return FieldMappingDesc{}, eris.Errorf("websource: malformed %q in mapping for %s", tok, field)
			}
			f, err := timeparse.ParseFormat(tok[open+1 : end])
			if err != nil {
				return FieldMappingDesc{}, eris.Wrapf(err, "websource: mapping for %s", field)
			}
			m.DatetimeFormat = f
		default:
			return FieldMappingDesc{}, eris.Errorf("websource: unknown token %q in mapping for %s", tok, field)
		}
	}
	return m, nil
}

// ParseFieldMappings parses a whole mapping table.
func ParseFieldMappings(raw map[string]string) (map[string]FieldMappingDesc, error) {
	out := make(map[string]FieldMappingDesc, len(raw))
	for field, desc := range raw {
		m, err := ParseFieldMapping(field, desc)
		if err != nil {
			return nil, err
		}
		out[m.Field] = m
	}
	return out, nil
}
