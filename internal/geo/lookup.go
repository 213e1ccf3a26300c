// Package geo provides city reference lookups: states, nearby cities and STD
// area codes.
package geo

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed cities.yaml
var defaultCities []byte

// City is one entry of the reference table.
type City struct {
	States   []string `yaml:"states"`
	AreaCode string   `yaml:"area_code"`
	Synonyms []string `yaml:"synonyms"`
}

// Lookup answers city reference questions. Keys are lowercase city names.
type Lookup struct {
	cities map[string]City
}

// Default returns the lookup backed by the embedded city table.
func Default() *Lookup {
	l, err := Parse(defaultCities)
	if err != nil {
		panic(err)
	}
	return l
}

// Parse builds a Lookup from a YAML document with a top-level "cities" map.
func Parse(data []byte) (*Lookup, error) {
	var doc struct {
		Cities map[string]City `yaml:"cities"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "geo: parse city table")
	}
	l := &Lookup{cities: make(map[string]City, len(doc.Cities))}
	for name, c := range doc.Cities {
		for i := range c.States {
			c.States[i] = normalize(c.States[i])
		}
		for i := range c.Synonyms {
			c.Synonyms[i] = normalize(c.Synonyms[i])
		}
		l.cities[normalize(name)] = c
	}
	return l, nil
}

// StatesForCity returns the states a city belongs to, first match first.
func (l *Lookup) StatesForCity(city string) []string {
	return l.cities[normalize(city)].States
}

// FirstState returns the first state for a city, or "" if unknown.
func (l *Lookup) FirstState(city string) string {
	states := l.StatesForCity(city)
	if len(states) == 0 {
		return ""
	}
	return states[0]
}

// SynonymCities returns nearby cities searched when a city is thin on data.
func (l *Lookup) SynonymCities(city string) []string {
	return l.cities[normalize(city)].Synonyms
}

// AreaCode returns the STD code of a city without the trunk prefix.
func (l *Lookup) AreaCode(city string) string {
	return l.cities[normalize(city)].AreaCode
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
