package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covisearch/aggregator/internal/model"
	"github.com/covisearch/aggregator/internal/phone"
	"github.com/covisearch/aggregator/internal/timeparse"
	"github.com/covisearch/aggregator/internal/websource"
)

var fixedNow = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMapper(t *testing.T) *Mapper {
	t.Helper()
	p, err := timeparse.NewInZone(timeparse.DefaultZone)
	require.NoError(t, err)
	p = p.WithClock(func() time.Time { return fixedNow })
	return NewMapper(phone.NewUniformizer(phone.DefaultRegion, nil), p, nil)
}

func newInstance(t *testing.T, rt model.ResourceType, mappings map[string]string) *websource.Instance {
	t.Helper()
	d := &websource.Descriptor{
		Name:                "leads",
		HomepageURL:         "https://leads.example.org",
		URLTemplate:         "https://api.leads.example.org/{CITY}/{RESOURCE_TYPE}",
		ResponseContentType: websource.ContentJSON,
		ColumnSelectors:     map[string]string{"name": "data[*].name"},
		RawFieldMappings:    mappings,
		ResourceTypeLabels: map[string]string{
			string(rt): "label",
		},
	}
	require.NoError(t, d.Compile())

	f, err := model.NewSearchFilter("mumbai", rt, "")
	require.NoError(t, err)
	inst, ok := d.Resolve(f, nil)
	require.True(t, ok)
	return inst
}

func TestMapRow(t *testing.T) {
	t.Parallel()

	m := newTestMapper(t)
	inst := newInstance(t, model.ResourceOxygen, map[string]string{
		websource.FieldContactName:   "name",
		websource.FieldPhones:        "phone",
		websource.FieldAddress:       "area+city",
		websource.FieldDetails:       "note",
		websource.FieldLastVerified:  "datetimeformat(ago),verified",
		websource.FieldPostTime:      "posted",
		websource.FieldLat:           "lat",
		websource.FieldLng:           "lng",
		websource.FieldLitres:        "cap",
		websource.FieldDetailsAppend: "hours+extra",
	})

	r, err := m.MapRow(map[string]string{
		"name":     " Sharma Oxygen\n",
		"phone":    "9876543210, 8123456789",
		"area":     "Andheri\tEast",
		"city":     "Mumbai",
		"note":     "Refill only",
		"hours":    "Open 24x7",
		"verified": "2 hours ago",
		"posted":   "2021-05-30T10:00:00+05:30",
		"lat":      "19.1",
		"lng":      "n/a",
		"cap":      "10.5 L",
	}, inst)
	require.NoError(t, err)

	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, "Sharma Oxygen", r.ContactName)
	assert.Equal(t, []string{"9876543210", "8123456789"}, r.Phones)
	assert.Equal(t, "Andheri East, Mumbai", r.Address)
	assert.Equal(t, "Refill only.Open 24x7", r.Details)
	require.NotNil(t, r.LastVerifiedUTC)
	assert.Equal(t, fixedNow.Add(-2*time.Hour), *r.LastVerifiedUTC)
	require.NotNil(t, r.PostTime)
	assert.Equal(t, time.Date(2021, 5, 30, 4, 30, 0, 0, time.UTC), *r.PostTime)
	require.NotNil(t, r.Lat)
	assert.InDelta(t, 19.1, *r.Lat, 1e-9)
	assert.Nil(t, r.Lng)
	require.NotNil(t, r.Litres)
	assert.InDelta(t, 10.5, *r.Litres, 1e-9)
	assert.True(t, r.Available)
	assert.Equal(t, "https://leads.example.org", r.CardSourceURL)
	assert.Equal(t, []model.SourceRef{{Name: "leads", URL: "https://leads.example.org"}}, r.Sources)
	assert.Nil(t, r.Beds)
}

func TestMapRow_MissingMapping(t *testing.T) {
	t.Parallel()

	m := newTestMapper(t)
	row := map[string]string{"name": "a", "phone": "9876543210"}

	_, err := m.MapRow(row, newInstance(t, model.ResourceOxygen, map[string]string{
		websource.FieldPhones: "phone",
	}))
	assert.True(t, errors.Is(err, ErrMissingMapping))

	_, err = m.MapRow(row, newInstance(t, model.ResourceOxygen, map[string]string{
		websource.FieldContactName: "name",
	}))
	assert.True(t, errors.Is(err, ErrMissingMapping))
}

func TestMapRow_DetailsAppend(t *testing.T) {
	t.Parallel()

	m := newTestMapper(t)
	inst := newInstance(t, model.ResourceOxygen, map[string]string{
		websource.FieldContactName:   "name",
		websource.FieldPhones:        "phone",
		websource.FieldDetailsAppend: "hours+extra",
	})

	r, err := m.MapRow(map[string]string{
		"name":  "a",
		"phone": "9876543210",
		"hours": "Open 24x7",
		"extra": "Cash only.",
	}, inst)
	require.NoError(t, err)
	assert.Equal(t, "Open 24x7.Cash only", r.Details)
}

func TestMapRow_HospitalBeds(t *testing.T) {
	t.Parallel()

	m := newTestMapper(t)
	inst := newInstance(t, model.ResourceHospitalBed, map[string]string{
		websource.FieldContactName:  "name",
		websource.FieldPhones:       "phone",
		websource.FieldOxygenBeds:   "o2",
		websource.FieldNoOxygenBeds: "plain",
		websource.FieldHospitalType: "kind+scheme",
	})

	r, err := m.MapRow(map[string]string{
		"name":   "City Hospital",
		"phone":  "9876543210",
		"o2":     "12 beds",
		"plain":  "8",
		"kind":   "Private",
		"scheme": "Covid Care",
	}, inst)
	require.NoError(t, err)
	require.NotNil(t, r.Beds)
	assert.Equal(t, 12, *r.Beds.OxygenBeds)
	assert.Equal(t, 8, *r.Beds.NoOxygenBeds)
	require.NotNil(t, r.Beds.TotalBeds)
	assert.Equal(t, 20, *r.Beds.TotalBeds)
	assert.Nil(t, r.Beds.CovidBeds)
	assert.Equal(t, "Private|Covid Care", r.Beds.HospitalType)
}

func TestMapRow_ICUBeds(t *testing.T) {
	t.Parallel()

	m := newTestMapper(t)
	inst := newInstance(t, model.ResourceHospitalBedICU, map[string]string{
		websource.FieldContactName:      "name",
		websource.FieldPhones:           "phone",
		websource.FieldVentilatorBeds:   "vent",
		websource.FieldNoVentilatorBeds: "novent",
		websource.FieldTotalICUBeds:     "total",
	})

	r, err := m.MapRow(map[string]string{
		"name":   "City Hospital",
		"phone":  "9876543210",
		"vent":   "3",
		"novent": "n/a",
		"total":  "Total: 5",
	}, inst)
	require.NoError(t, err)
	require.NotNil(t, r.ICU)
	require.NotNil(t, r.ICU.NoVentilatorBeds)
	assert.Equal(t, 2, *r.ICU.NoVentilatorBeds)
	assert.Equal(t, 5, *r.ICU.TotalICUBeds)
}

func TestMapRow_Availability(t *testing.T) {
	t.Parallel()

	m := newTestMapper(t)
	inst := newInstance(t, model.ResourceOxygen, map[string]string{
		websource.FieldContactName:  "name",
		websource.FieldPhones:       "phone",
		websource.FieldAvailability: "status",
	})

	tests := []struct {
		status string
		want   bool
	}{
		{"Available", true},
		{" YES ", true},
		{"1", true},
		{"true", true},
		{"No", false},
		{"", false},
	}
	for _, tt := range tests {
		r, err := m.MapRow(map[string]string{"name": "a", "phone": "9876543210", "status": tt.status}, inst)
		require.NoError(t, err)
		assert.Equal(t, tt.want, r.Available, tt.status)
	}
}

func TestMapRow_BloodGroupAndBadTimes(t *testing.T) {
	t.Parallel()

	m := newTestMapper(t)
	inst := newInstance(t, model.ResourcePlasma, map[string]string{
		websource.FieldContactName:  "name",
		websource.FieldPhones:       "phone",
		websource.FieldBloodGroup:   "bg",
		websource.FieldLastVerified: "datetimeformat(unix_timestamp_sec),ts",
		websource.FieldPostTime:     "datetimeformat(short_datetime_dd_mm),posted",
	})

	r, err := m.MapRow(map[string]string{
		"name":   "Donor",
		"phone":  "9876543210",
		"bg":     "o+",
		"ts":     "yesterday",
		"posted": "",
	}, inst)
	require.NoError(t, err)
	require.NotNil(t, r.BloodGroup)
	assert.Equal(t, "O+", *r.BloodGroup)
	assert.Nil(t, r.LastVerifiedUTC)
	assert.Nil(t, r.PostTime)
	assert.Equal(t, []string{"9876543210"}, r.Phones)
}

func TestMapRows(t *testing.T) {
	t.Parallel()

	m := newTestMapper(t)
	inst := newInstance(t, model.ResourceOxygen, map[string]string{
		websource.FieldContactName: "name",
		websource.FieldPhones:      "phone",
	})

	rs := m.MapRows([]map[string]string{
		{"name": "a", "phone": "9876543210"},
		{"name": "b"},
		{"name": "c", "phone": "8123456789"},
	}, inst)
	require.Len(t, rs, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{rs[0].ID, rs[1].ID, rs[2].ID})
	assert.Equal(t, []string{}, rs[1].Phones)

	broken := newInstance(t, model.ResourceOxygen, map[string]string{
		websource.FieldContactName: "name",
	})
	assert.Empty(t, m.MapRows([]map[string]string{{"name": "a"}}, broken))
}

func TestSequence(t *testing.T) {
	t.Parallel()

	var s Sequence
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a, b c", Sanitize(" a\nb\r\tc "))
	assert.Equal(t, "", Sanitize(" \n "))
}

func TestJoin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parts []string
		delim string
		want  string
	}{
		{"skips empties", []string{"a", "", "b"}, ", ", "a, b"},
		{"trailing delimiter", []string{"a,"}, ", ", "a"},
		{"phones", []string{"1/", ""}, "/", "1"},
		{"hospital type", []string{"Private", "Govt"}, "|", "Private|Govt"},
		{"nothing", []string{"", ""}, ", ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, join(tt.parts, tt.delim))
		})
	}
}
