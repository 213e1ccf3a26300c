// Package websource describes the third-party listing sites searched for
// resources and binds those descriptions to a search filter.
package websource

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/covisearch/aggregator/internal/model"
)

// ContentType is a request or response body encoding.
type ContentType string

// Supported content types.
const (
	ContentNone     ContentType = ""
	ContentJSON     ContentType = "json"
	ContentHTML     ContentType = "html"
	ContentFormData ContentType = "formdata"
)

// LetterCase is how a source spells city names.
type LetterCase string

// Supported city letter cases. The zero value keeps the filter's spelling.
const (
	CaseAsIs  LetterCase = ""
	CaseLower LetterCase = "lowercase"
	CaseUpper LetterCase = "uppercase"
	CaseTitle LetterCase = "titlecase"
)

// PanIndia is the location scope of sources covering every city.
const PanIndia = "pan_india"

// Descriptor is the reusable configuration of one listing site.
type Descriptor struct {
	Name                  string            `yaml:"name"`
	HomepageURL           string            `yaml:"homepage_url"`
	URLTemplate           string            `yaml:"web_resource_url_template"`
	CardSourceURLTemplate string            `yaml:"card_source_url_template"`
	RequestContentType    ContentType       `yaml:"request_content_type"`
	RequestBodyTemplate   string            `yaml:"request_body_template"`
	ResponseContentType   ContentType       `yaml:"response_content_type"`
	Headers               map[string]string `yaml:"additional_http_headers"`
	ColumnSelectors       map[string]string `yaml:"data_table_extract_selectors"`
	RowFilterTemplates    map[string]string `yaml:"data_table_filter_templates"`
	RawFieldMappings      map[string]string `yaml:"resource_mapping_desc"`
	ResourceTypeLabels    map[string]string `yaml:"resource_type_label_mapping"`
	CityCase              LetterCase        `yaml:"city_name_case_mapping"`
	CityAliases           map[string]string `yaml:"city_name_mapping"`
	SmartMatch            []string          `yaml:"resource_types_need_smart_match"`
	LocationScope         string            `yaml:"location_scope"`

	// FieldMappings is RawFieldMappings parsed by Compile.
	FieldMappings map[string]FieldMappingDesc `yaml:"-"`

	smartMatch map[model.ResourceType]bool
}

// Compile validates d and parses its field mappings. It must be called
// before d is resolved.
func (d *Descriptor) Compile() error {
	if strings.TrimSpace(d.Name) == "" {
		return eris.New("websource: descriptor has no name")
	}
	if d.URLTemplate == "" {
		return eris.Errorf("websource: %s: missing web_resource_url_template", d.Name)
	}
	switch d.RequestContentType {
	case ContentNone, ContentJSON, ContentFormData:
	default:
		return eris.Errorf("websource: %s: unsupported request content type %q", d.Name, d.RequestContentType)
	}
	switch d.ResponseContentType {
	case ContentJSON, ContentHTML:
	default:
		return eris.Errorf("websource: %s: unsupported response content type %q", d.Name, d.ResponseContentType)
	}
	switch d.CityCase {
	case CaseAsIs, CaseLower, CaseUpper, CaseTitle:
	default:
		return eris.Errorf("websource: %s: unsupported city case %q", d.Name, d.CityCase)
	}
	if len(d.ColumnSelectors) == 0 {
		return eris.Errorf("websource: %s: no column selectors", d.Name)
	}

	labels := make(map[string]string, len(d.ResourceTypeLabels))
	for rt, label := range d.ResourceTypeLabels {
		parsed, err := model.ParseResourceType(rt)
		if err != nil {
			return eris.Wrapf(err, "websource: %s: resource type label", d.Name)
		}
		labels[string(parsed)] = label
	}
	d.ResourceTypeLabels = labels

	d.smartMatch = make(map[model.ResourceType]bool, len(d.SmartMatch))
	for _, rt := range d.SmartMatch {
		parsed, err := model.ParseResourceType(rt)
		if err != nil {
			return eris.Wrapf(err, "websource: %s: smart match", d.Name)
		}
		d.smartMatch[parsed] = true
	}

	aliases := make(map[string]string, len(d.CityAliases))
	for city, alias := range d.CityAliases {
		aliases[strings.ToLower(strings.TrimSpace(city))] = alias
	}
	d.CityAliases = aliases

	mappings, err := ParseFieldMappings(d.RawFieldMappings)
	if err != nil {
		return eris.Wrapf(err, "websource: %s", d.Name)
	}
	d.FieldMappings = mappings

	if strings.TrimSpace(d.LocationScope) == "" {
		d.LocationScope = PanIndia
	}
	return nil
}

// Supports reports whether d has a label for the resource type.
func (d *Descriptor) Supports(rt model.ResourceType) bool {
	_, ok := d.ResourceTypeLabels[string(rt)]
	return ok
}

// NeedsSmartMatch reports whether rows of d for rt mix subtypes and must be
// fuzzy-matched against the requested subtype.
func (d *Descriptor) NeedsSmartMatch(rt model.ResourceType) bool {
	return d.smartMatch[rt]
}
