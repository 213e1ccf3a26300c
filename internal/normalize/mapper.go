// Package normalize maps raw source rows to canonical records.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/covisearch/aggregator/internal/model"
	"github.com/covisearch/aggregator/internal/phone"
	"github.com/covisearch/aggregator/internal/resource"
	"github.com/covisearch/aggregator/internal/timeparse"
	"github.com/covisearch/aggregator/internal/websource"
)

// ErrMissingMapping marks a row whose source lacks a required field mapping.
var ErrMissingMapping = eris.New("normalize: missing required field mapping")

// Stitching delimiters.
const (
	textDelim         = ", "
	phoneDelim        = "/"
	hospitalTypeDelim = "|"
	appendDelim       = "."
)

var (
	sanitizer = strings.NewReplacer("\n", ", ", "\r", "", "\t", " ")
	firstInt  = regexp.MustCompile(`(\d+)`)
	firstNum  = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

	availableValues = map[string]bool{"available": true, "yes": true, "true": true, "1": true}
)

// Sequence hands out record ids that increase within one run.
type Sequence struct {
	n atomic.Int64
}

// Next returns the next id, starting at 1.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Mapper converts rows of resolved sources into records.
type Mapper struct {
	phones *phone.Uniformizer
	times  *timeparse.Parser
	seq    *Sequence
}

// NewMapper creates a Mapper. A nil seq gets a fresh Sequence.
func NewMapper(phones *phone.Uniformizer, times *timeparse.Parser, seq *Sequence) *Mapper {
	if seq == nil {
		seq = &Sequence{}
	}
	return &Mapper{phones: phones, times: times, seq: seq}
}

// MapRow maps one raw row of inst. Missing raw columns read as empty; a
// field that fails to parse is left unset. Only a missing contact name or
// phone mapping fails the row.
func (m *Mapper) MapRow(row map[string]string, inst *websource.Instance) (*model.Record, error) {
	mappings := inst.FieldMappings()
	filter := inst.Filter

	name, ok := mappings[websource.FieldContactName]
	if !ok {
		return nil, eris.Wrapf(ErrMissingMapping, "normalize: %s: %s", inst.Name(), websource.FieldContactName)
	}
	phones, ok := mappings[websource.FieldPhones]
	if !ok {
		return nil, eris.Wrapf(ErrMissingMapping, "normalize: %s: %s", inst.Name(), websource.FieldPhones)
	}

	r := &model.Record{
		ID:            m.seq.Next(),
		ContactName:   Sanitize(row[name.RawFields[0]]),
		Phones:        m.phones.Uniformize(stitch(row, phones.RawFields, phoneDelim), filter.City, phones.ExactPhoneMatch),
		Available:     true,
		CardSourceURL: inst.SourceURL(row),
		Sources: []model.SourceRef{{
			Name:            inst.Name(),
			URL:             inst.SourceURL(row),
			NeedsSmartMatch: inst.NeedsSmartMatch,
		}},
	}

	text := func(field, delim string) string {
		if d, ok := mappings[field]; ok {
			return stitch(row, d.RawFields, delim)
		}
		return ""
	}
	r.Address = text(websource.FieldAddress, textDelim)
	r.Details = text(websource.FieldDetails, textDelim)
	if extra := text(websource.FieldDetailsAppend, appendDelim); extra != "" {
		r.Details = join([]string{r.Details, extra}, appendDelim)
	}
	r.ResourceSubtype = text(websource.FieldResourceSubtype, textDelim)

	r.PostTime = m.datetime(mappings, websource.FieldPostTime, row, inst.Name())
	r.LastVerifiedUTC = m.datetime(mappings, websource.FieldLastVerified, row, inst.Name())

	if d, ok := mappings[websource.FieldAvailability]; ok {
		r.Available = availableValues[strings.ToLower(strings.TrimSpace(row[d.RawFields[0]]))]
	}
	r.Lat = coord(mappings, websource.FieldLat, row)
	r.Lng = coord(mappings, websource.FieldLng, row)

	if bg := text(websource.FieldBloodGroup, textDelim); bg != "" {
		bg = strings.ToUpper(bg)
		r.BloodGroup = &bg
	}
	if d, ok := mappings[websource.FieldLitres]; ok {
		if s := firstNum.FindString(row[d.RawFields[0]]); s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				r.Litres = &v
			}
		}
	}

	switch filter.ResourceType {
	case model.ResourceHospitalBed:
		r.Beds = &model.HospitalBeds{
			CovidBeds:    count(mappings, websource.FieldCovidBeds, row),
			OxygenBeds:   count(mappings, websource.FieldOxygenBeds, row),
			NoOxygenBeds: count(mappings, websource.FieldNoOxygenBeds, row),
			TotalBeds:    count(mappings, websource.FieldTotalBeds, row),
			HospitalType: text(websource.FieldHospitalType, hospitalTypeDelim),
		}
	case model.ResourceHospitalBedICU:
		r.ICU = &model.ICUBeds{
			NoVentilatorBeds: count(mappings, websource.FieldNoVentilatorBeds, row),
			VentilatorBeds:   count(mappings, websource.FieldVentilatorBeds, row),
			TotalICUBeds:     count(mappings, websource.FieldTotalICUBeds, row),
			Ventilators:      count(mappings, websource.FieldVentilators, row),
			HospitalType:     text(websource.FieldHospitalType, hospitalTypeDelim),
		}
	}

	resource.For(filter.ResourceType).Enrich(r)
	return r, nil
}

// MapRows maps every row of inst, logging and dropping rows that fail.
func (m *Mapper) MapRows(rows []map[string]string, inst *websource.Instance) []*model.Record {
	out := make([]*model.Record, 0, len(rows))
	for _, row := range rows {
		r, err := m.MapRow(row, inst)
		if err != nil {
			zap.L().Warn("normalize: row dropped",
				zap.String("source", inst.Name()),
				zap.Error(err),
			)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (m *Mapper) datetime(mappings map[string]websource.FieldMappingDesc, field string, row map[string]string, source string) *time.Time {
	d, ok := mappings[field]
	if !ok {
		return nil
	}
	f := d.DatetimeFormat
	if f == "" {
		f = timeparse.ISO
	}
	raw := row[d.RawFields[0]]
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := m.times.Parse(f, raw)
	if err != nil {
		zap.L().Debug("normalize: unparsed datetime",
			zap.String("source", source),
			zap.String("field", field),
			zap.String("value", raw),
			zap.Error(err),
		)
		return nil
	}
	return &t
}

// Sanitize trims s and flattens line breaks and tabs.
func Sanitize(s string) string {
	return strings.TrimSpace(sanitizer.Replace(strings.TrimSpace(s)))
}

func stitch(row map[string]string, fields []string, delim string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, Sanitize(row[f]))
	}
	return join(parts, delim)
}

// join concatenates the non-empty parts and trims a trailing delimiter.
func join(parts []string, delim string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(delim)
		}
		b.WriteString(p)
	}
	out := strings.TrimSpace(b.String())
	if d := strings.TrimSpace(delim); d != "" {
		out = strings.TrimSpace(strings.TrimSuffix(out, d))
	}
	return out
}

func count(mappings map[string]websource.FieldMappingDesc, field string, row map[string]string) *int {
	d, ok := mappings[field]
	if !ok {
		return nil
	}
	s := firstInt.FindString(row[d.RawFields[0]])
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func coord(mappings map[string]websource.FieldMappingDesc, field string, row map[string]string) *float64 {
	d, ok := mappings[field]
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[d.RawFields[0]]), 64)
	if err != nil {
		return nil
	}
	return &v
}
