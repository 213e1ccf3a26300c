package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDocument(t *testing.T) {
	verified := time.Date(2021, 5, 12, 4, 30, 0, 0, time.UTC)
	total := 12
	r := &Record{
		ID:              42,
		ContactName:     "City Hospital",
		LastVerifiedUTC: &verified,
		Available:       true,
		Sources:         []SourceRef{{Name: "beds", URL: "https://beds.example.org", NeedsSmartMatch: true}},
		Beds:            &HospitalBeds{TotalBeds: &total, HospitalType: "Private"},
	}

	d := r.ToDocument()
	assert.Equal(t, []string{}, d.Phones)
	assert.Equal(t, []DocumentSource{{Name: "beds", URL: "https://beds.example.org"}}, d.Sources)
	assert.Equal(t, &total, d.TotalAvailableBeds)
	assert.Equal(t, "Private", d.HospitalType)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.NotContains(t, raw, "id")
	assert.NotContains(t, raw, "blood_group")
	assert.Equal(t, "2021-05-12T04:30:00Z", raw["last_verified_utc"])
	assert.Equal(t, true, raw["availability"])
	src := raw["sources"].([]any)[0].(map[string]any)
	assert.NotContains(t, src, "needs_smart_match")
	assert.InDelta(t, 12.0, raw["total_available_beds"], 0.001)
}

func TestDocuments_Empty(t *testing.T) {
	assert.Equal(t, []Document{}, Documents(nil))
}

func TestRecord_OriginSource(t *testing.T) {
	r := &Record{}
	_, ok := r.OriginSource()
	assert.False(t, ok)

	r.Sources = []SourceRef{{Name: "a"}, {Name: "b"}}
	src, ok := r.OriginSource()
	require.True(t, ok)
	assert.Equal(t, "a", src.Name)
	assert.True(t, r.HasSource("b"))
	assert.False(t, r.HasSource("c"))
}
