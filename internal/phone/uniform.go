// Package phone extracts and uniformizes contact numbers from listing text.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the numbering region assumed for national numbers.
const DefaultRegion = "IN"

// AreaCodes resolves the STD code of a city, without the trunk prefix.
type AreaCodes interface {
	AreaCode(city string) string
}

// Uniformizer normalizes raw phone text for one deployment region.
type Uniformizer struct {
	region string
	codes  AreaCodes
}

// NewUniformizer creates a Uniformizer. An empty region means DefaultRegion;
// codes may be nil, which disables the area-code retry.
func NewUniformizer(region string, codes AreaCodes) *Uniformizer {
	if region == "" {
		region = DefaultRegion
	}
	return &Uniformizer{region: strings.ToUpper(region), codes: codes}
}

var separators = strings.NewReplacer(
	" / ", "/",
	" , ", "/",
	",", "/",
	" | ", "/",
	"|", "/",
	"\n", "/",
	"\r", "",
	"\t", " ",
)

// Sanitize rewrites the separators seen between numbers to "/".
func Sanitize(raw string) string {
	return separators.Replace(strings.TrimSpace(raw))
}

// Split sanitizes raw and returns its non-empty trimmed pieces.
func Split(raw string) []string {
	var out []string
	for _, p := range strings.Split(Sanitize(raw), "/") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Uniformize returns the distinct numbers found in raw, in order. Matched
// pieces become national significant numbers. A piece that does not match,
// even with the city's area code prepended, is kept verbatim unless exact is
// set. The result is never nil.
func (u *Uniformizer) Uniformize(raw, city string, exact bool) []string {
	out := []string{}
	seen := make(map[string]struct{})
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, piece := range Split(raw) {
		if n, ok := u.match(piece); ok {
			add(n)
			continue
		}
		if code := u.areaCode(city); code != "" {
			if n, ok := u.match("0" + code + piece); ok {
				add(n)
				continue
			}
		}
		if !exact {
			add(piece)
		}
	}
	return out
}

func (u *Uniformizer) match(s string) (string, bool) {
	num, err := phonenumbers.Parse(s, u.region)
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.GetNationalSignificantNumber(num), true
}

func (u *Uniformizer) areaCode(city string) string {
	if u.codes == nil || city == "" {
		return ""
	}
	return u.codes.AreaCode(city)
}
