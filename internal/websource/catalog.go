package websource

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/covisearch/aggregator/internal/model"
)

// MatchesScope reports whether the filter's city lies in d's location scope.
// A scope lists cities or states; a city matches through any of its states.
func (d *Descriptor) MatchesScope(filter model.SearchFilter, states States) bool {
	scope := strings.ToLower(strings.TrimSpace(d.LocationScope))
	if scope == "" || scope == PanIndia {
		return true
	}
	supported := make(map[string]bool)
	for _, loc := range strings.Split(scope, ",") {
		if loc = strings.TrimSpace(loc); loc != "" {
			supported[loc] = true
		}
	}
	if supported[filter.City] {
		return true
	}
	if states == nil {
		return false
	}
	for _, s := range states.StatesForCity(filter.City) {
		if supported[s] {
			return true
		}
	}
	return false
}

// Catalog is the set of known sources.
type Catalog struct {
	descriptors []*Descriptor
	states      States
}

// NewCatalog creates a Catalog over compiled descriptors.
func NewCatalog(ds []*Descriptor, states States) *Catalog {
	return &Catalog{descriptors: ds, states: states}
}

// Descriptors returns every source in load order.
func (c *Catalog) Descriptors() []*Descriptor { return c.descriptors }

// States returns the state lookup used for scope and placeholder resolution.
func (c *Catalog) States() States { return c.states }

// ForFilter returns the sources in scope for the filter that also carry a
// label for its resource type.
func (c *Catalog) ForFilter(filter model.SearchFilter) []*Descriptor {
	var out []*Descriptor
	for _, d := range c.descriptors {
		if d.Supports(filter.ResourceType) && d.MatchesScope(filter, c.states) {
			out = append(out, d)
		}
	}
	return out
}

type catalogFile struct {
	Sources []*Descriptor `yaml:"sources"`
}

// Parse decodes and compiles a YAML document with a top-level "sources" list.
func Parse(data []byte) ([]*Descriptor, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "websource: parse sources")
	}
	seen := make(map[string]bool, len(f.Sources))
	for i, d := range f.Sources {
		if d == nil {
			return nil, eris.Errorf("websource: source %d is empty", i)
		}
		if err := d.Compile(); err != nil {
			return nil, err
		}
		if seen[d.Name] {
			return nil, eris.Errorf("websource: duplicate source name %q", d.Name)
		}
		seen[d.Name] = true
	}
	return f.Sources, nil
}

// LoadFile reads and compiles a sources file.
func LoadFile(path string) ([]*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "websource: read %s", path)
	}
	return Parse(data)
}
