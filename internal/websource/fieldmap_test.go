package websource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covisearch/aggregator/internal/timeparse"
)

func TestParseFieldMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field string
		desc  string
		want  FieldMappingDesc
	}{
		{
			name:  "single raw field",
			field: FieldContactName,
			desc:  "name",
			want:  FieldMappingDesc{Field: FieldContactName, RawFields: []string{"name"}},
		},
		{
			name:  "stitched fields",
			field: FieldAddress,
			desc:  "area + city ",
			want:  FieldMappingDesc{Field: FieldAddress, RawFields: []string{"area", "city"}},
		},
		{
			name:  "datetime format",
			field: FieldLastVerified,
			desc:  "datetimeformat(ago),lastVerified",
			want:  FieldMappingDesc{Field: FieldLastVerified, RawFields: []string{"lastVerified"}, DatetimeFormat: timeparse.Ago},
		},
		{
			name:  "format tag case-insensitive",
			field: FieldPostTime,
			desc:  "DateTimeFormat(SHORT_DATETIME_DD_MM), posted",
			want:  FieldMappingDesc{Field: FieldPostTime, RawFields: []string{"posted"}, DatetimeFormat: timeparse.ShortDayMonth},
		},
		{
			name:  "exact phone match",
			field: FieldPhones,
			desc:  "need_exact_phone_number_match,phone1+phone2",
			want:  FieldMappingDesc{Field: FieldPhones, RawFields: []string{"phone1", "phone2"}, ExactPhoneMatch: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseFieldMapping(tt.field, tt.desc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFieldMapping_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field string
		desc  string
	}{
		{"unknown field", "phone_number", "phone"},
		{"no raw field", FieldPhones, "need_exact_phone_number_match,"},
		{"unknown datetime format", FieldPostTime, "datetimeformat(rfc822),posted"},
		{"malformed datetime token", FieldPostTime, "datetimeformat,posted"},
		{"unknown token", FieldPhones, "remove_chars(+),phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseFieldMapping(tt.field, tt.desc)
			assert.Error(t, err)
		})
	}
}

func TestParseFieldMappings(t *testing.T) {
	t.Parallel()

	got, err := ParseFieldMappings(map[string]string{
		FieldContactName: "name",
		FieldPhones:      "phone",
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []string{"phone"}, got[FieldPhones].RawFields)

	_, err = ParseFieldMappings(map[string]string{FieldPostTime: "datetimeformat(nope),x"})
	assert.Error(t, err)
}
