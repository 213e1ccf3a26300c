package websource

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/covisearch/aggregator/internal/model"
	"github.com/covisearch/aggregator/internal/resource"
)

// Template placeholders.
const (
	PlaceholderCity         = "{CITY}"
	PlaceholderState        = "{STATE}"
	PlaceholderResourceType = "{RESOURCE_TYPE}"
	PlaceholderSubtype      = "{RESOURCE_SUBTYPE_SEARCH_NAME}"
)

// States resolves the states a city belongs to, best match first.
type States interface {
	StatesForCity(city string) []string
}

// Instance is a descriptor bound to one search filter.
type Instance struct {
	Descriptor      *Descriptor
	Filter          model.SearchFilter
	City            string
	URL             string
	RequestBody     string
	RowFilters      map[string]string
	NeedsSmartMatch bool

	cardTemplate string
}

// Name returns the source name.
func (i *Instance) Name() string { return i.Descriptor.Name }

// FieldMappings returns the descriptor's parsed field mappings.
func (i *Instance) FieldMappings() map[string]FieldMappingDesc { return i.Descriptor.FieldMappings }

var columnPlaceholder = regexp.MustCompile(`\{([^{}]+)\}`)

// SourceURL returns the link shown for one row: the card template with
// {column} placeholders filled from the row, or the homepage when the
// descriptor has no card template.
func (i *Instance) SourceURL(row map[string]string) string {
	if i.cardTemplate == "" {
		return i.Descriptor.HomepageURL
	}
	return columnPlaceholder.ReplaceAllStringFunc(i.cardTemplate, func(m string) string {
		return escape(strings.TrimSpace(row[m[1:len(m)-1]]))
	})
}

// SourceCity spells a filter city the way the source expects it.
func (d *Descriptor) SourceCity(city string) string {
	if alias, ok := d.CityAliases[city]; ok {
		return alias
	}
	switch d.CityCase {
	case CaseLower:
		return strings.ToLower(city)
	case CaseUpper:
		return strings.ToUpper(city)
	case CaseTitle:
		return cases.Title(language.English).String(city)
	}
	return city
}

// Resolve binds d to a filter. It reports false when d has no label for the
// filter's resource type; the source simply does not apply.
func (d *Descriptor) Resolve(filter model.SearchFilter, states States) (*Instance, bool) {
	label, ok := d.ResourceTypeLabels[string(filter.ResourceType)]
	if !ok {
		return nil, false
	}

	city := d.SourceCity(filter.City)
	var state string
	if states != nil {
		if s := states.StatesForCity(filter.City); len(s) > 0 {
			state = s[0]
		}
	}
	subtype := resource.For(filter.ResourceType).SubtypeSearchName

	escaped := strings.NewReplacer(
		PlaceholderCity, escape(city),
		PlaceholderState, escape(state),
		PlaceholderResourceType, escape(label),
		PlaceholderSubtype, escape(subtype),
	)
	raw := strings.NewReplacer(
		PlaceholderCity, city,
		PlaceholderState, state,
		PlaceholderResourceType, label,
		PlaceholderSubtype, subtype,
	)

	inst := &Instance{
		Descriptor:      d,
		Filter:          filter,
		City:            city,
		URL:             escaped.Replace(d.URLTemplate),
		RequestBody:     raw.Replace(d.RequestBodyTemplate),
		NeedsSmartMatch: d.NeedsSmartMatch(filter.ResourceType),
		cardTemplate:    escaped.Replace(d.CardSourceURLTemplate),
	}
	if len(d.RowFilterTemplates) > 0 {
		inst.RowFilters = make(map[string]string, len(d.RowFilterTemplates))
		for col, tmpl := range d.RowFilterTemplates {
			inst.RowFilters[col] = raw.Replace(tmpl)
		}
	}
	return inst, true
}

// ResolveAll binds every applicable descriptor to filter, in order.
func ResolveAll(ds []*Descriptor, filter model.SearchFilter, states States) []*Instance {
	var out []*Instance
	for _, d := range ds {
		if inst, ok := d.Resolve(filter, states); ok {
			out = append(out, inst)
		}
	}
	return out
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
