package model

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Query parameter names of the canonical filter form.
const (
	FilterCityParam         = "city"
	FilterResourceTypeParam = "resource_type"
	FilterBloodGroupParam   = "blood_group"
)

// SearchFilter selects the listings for one city and resource type.
// It is a comparable value; the zero BloodGroup means no blood group filter.
type SearchFilter struct {
	City         string
	ResourceType ResourceType
	BloodGroup   BloodGroup
}

// NewSearchFilter validates and normalizes a filter. The city is lowercased.
func NewSearchFilter(city string, rt ResourceType, bg BloodGroup) (SearchFilter, error) {
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		return SearchFilter{}, eris.New("model: city param must have non-empty value")
	}
	if rt == "" {
		return SearchFilter{}, eris.New("model: resource_type param must have non-empty value")
	}
	if !rt.Valid() {
		return SearchFilter{}, eris.Errorf("model: unknown resource type %q", rt)
	}
	if bg != "" && !bloodGroupSet[bg] {
		return SearchFilter{}, eris.Errorf("model: unknown blood group %q", bg)
	}
	return SearchFilter{City: city, ResourceType: rt, BloodGroup: bg}, nil
}

// String returns the canonical form
// city=<city>&resource_type=<type>[&blood_group=<bg>], which doubles as the
// persistence key.
func (f SearchFilter) String() string {
	var b strings.Builder
	b.WriteString(FilterCityParam)
	b.WriteByte('=')
	b.WriteString(escape(f.City))
	b.WriteByte('&')
	b.WriteString(FilterResourceTypeParam)
	b.WriteByte('=')
	b.WriteString(escape(string(f.ResourceType)))
	if f.BloodGroup != "" {
		b.WriteByte('&')
		b.WriteString(FilterBloodGroupParam)
		b.WriteByte('=')
		b.WriteString(escape(string(f.BloodGroup)))
	}
	return b.String()
}

// WithCity returns a copy of f for another city, without a blood group.
func (f SearchFilter) WithCity(city string) SearchFilter {
	return SearchFilter{City: strings.ToLower(strings.TrimSpace(city)), ResourceType: f.ResourceType}
}

// ParseSearchFilter parses the canonical string form of a filter.
func ParseSearchFilter(s string) (SearchFilter, error) {
	if strings.TrimSpace(s) == "" {
		return SearchFilter{}, eris.New("model: empty search filter")
	}
	for _, pair := range strings.Split(s, "&") {
		if pair == "" || !strings.Contains(pair, "=") {
			return SearchFilter{}, eris.Errorf("model: malformed search filter %q", s)
		}
	}
	q, err := url.ParseQuery(s)
	if err != nil {
		return SearchFilter{}, eris.Wrapf(err, "model: parse search filter %q", s)
	}
	return FilterFromQuery(q)
}

// FilterFromQuery builds a filter from already-decoded query parameters.
func FilterFromQuery(q url.Values) (SearchFilter, error) {
	if _, ok := q[FilterCityParam]; !ok {
		return SearchFilter{}, eris.New("model: city param is mandatory")
	}
	if _, ok := q[FilterResourceTypeParam]; !ok {
		return SearchFilter{}, eris.New("model: resource_type param is mandatory")
	}
	rt, err := ParseResourceType(q.Get(FilterResourceTypeParam))
	if err != nil {
		return SearchFilter{}, err
	}
	var bg BloodGroup
	if raw, ok := q[FilterBloodGroupParam]; ok && len(raw) > 0 && raw[0] != "" {
		bg, err = ParseBloodGroup(raw[0])
		if err != nil {
			return SearchFilter{}, err
		}
	}
	return NewSearchFilter(q.Get(FilterCityParam), rt, bg)
}

// escape percent-encodes like a URL query value but keeps spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
