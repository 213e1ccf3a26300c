package geo

import (
	"os"

	"github.com/rotisserie/eris"
)

// LoadFile reads a city table from disk. An empty path returns the embedded
// table.
func LoadFile(path string) (*Lookup, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read city table %s", path)
	}
	return Parse(data)
}
