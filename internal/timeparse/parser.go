package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
)

// DefaultZone is the zone assumed for timestamps published without one.
const DefaultZone = "Asia/Kolkata"

// Parser converts source datetimes to UTC. Values without a zone are read in
// the parser's location.
type Parser struct {
	loc *time.Location
	now func() time.Time
}

// New creates a Parser for the given location. A nil location means UTC.
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{loc: loc, now: time.Now}
}

// NewInZone creates a Parser for a named IANA zone.
func NewInZone(name string) (*Parser, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, eris.Wrapf(err, "timeparse: load zone %s", name)
	}
	return New(loc), nil
}

// WithClock returns a copy of p that reads the current time from now.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	cp := *p
	cp.now = now
	return &cp
}

// Location returns the zone assumed for zone-less values.
func (p *Parser) Location() *time.Location {
	return p.loc
}

// Parse converts raw text in the given format to a UTC instant.
func (p *Parser) Parse(f Format, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, eris.New("timeparse: empty value")
	}
	var (
		t   time.Time
		err error
	)
	switch f {
	case Ago:
		t, err = p.parseAgo(raw)
	case ISO:
		t, err = p.parseISO(raw)
	case ShortDayMonth:
		t, err = p.parseShort(raw, false)
	case ShortMonthDay:
		t, err = p.parseShort(raw, true)
	case UnixSeconds:
		t, err = parseUnix(raw, false)
	case UnixMillis:
		t, err = parseUnix(raw, true)
	default:
		return time.Time{}, eris.Errorf("timeparse: unsupported format %q", f)
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

type agoUnit struct {
	re    *regexp.Regexp
	apply func(now time.Time, n int) time.Time
}

var agoUnits = []agoUnit{
	{regexp.MustCompile(`(?i)(\d+|an?)\s+(?:minutes?|mins?)\s+ago`), func(now time.Time, n int) time.Time {
		return now.Add(-time.Duration(n) * time.Minute)
	}},
	{regexp.MustCompile(`(?i)(\d+|an?)\s+(?:hours?|hrs?)\s+ago`), func(now time.Time, n int) time.Time {
		return now.Add(-time.Duration(n) * time.Hour)
	}},
	{regexp.MustCompile(`(?i)(\d+|an?)\s+days?\s+ago`), func(now time.Time, n int) time.Time {
		return now.Add(-time.Duration(n) * 24 * time.Hour)
	}},
	{regexp.MustCompile(`(?i)(\d+|an?)\s+weeks?\s+ago`), func(now time.Time, n int) time.Time {
		return now.Add(-time.Duration(n) * 7 * 24 * time.Hour)
	}},
	{regexp.MustCompile(`(?i)(\d+|an?)\s+months?\s+ago`), func(now time.Time, n int) time.Time {
		return now.AddDate(0, -n, 0)
	}},
	{regexp.MustCompile(`(?i)(\d+|an?)\s+years?\s+ago`), func(now time.Time, n int) time.Time {
		return now.AddDate(-n, 0, 0)
	}},
}

func (p *Parser) parseAgo(raw string) (time.Time, error) {
	now := p.now().UTC()
	for _, u := range agoUnits {
		m := u.re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		n := 1
		if q := strings.ToLower(m[1]); q != "a" && q != "an" {
			v, err := strconv.Atoi(q)
			if err != nil {
				return time.Time{}, eris.Wrapf(err, "timeparse: ago quantity %q", m[1])
			}
			n = v
		}
		return u.apply(now, n), nil
	}
	return time.Time{}, eris.Errorf("timeparse: no relative time in %q", raw)
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

func (p *Parser) parseISO(raw string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, raw, p.loc); err == nil {
			return t, nil
		}
	}
	t, err := dateparse.ParseIn(raw, p.loc)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "timeparse: isoformat %q", raw)
	}
	return t, nil
}

// Day-first layouts; month-first variants are derived by swapping "2/1".
var shortLayouts = []string{
	"2/1/2006 3:04:05 PM",
	"2/1/2006 3:04 PM",
	"2/1/2006 3:04PM",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2/1/06 3:04 PM",
	"2/1/06 15:04",
	"2/1 3:04:05 PM",
	"2/1 3:04 PM",
	"2/1 3:04PM",
	"2/1 15:04:05",
	"2/1 15:04",
	"2/1",
}

var (
	dayFirstLayouts   = expandSeparators(shortLayouts)
	monthFirstLayouts = expandSeparators(swapDayMonth(shortLayouts))
	atWord            = regexp.MustCompile(`(?i)\bat\b`)
)

func swapDayMonth(layouts []string) []string {
	out := make([]string, len(layouts))
	for i, l := range layouts {
		out[i] = strings.Replace(l, "2/1", "1/2", 1)
	}
	return out
}

func expandSeparators(layouts []string) []string {
	out := make([]string, 0, len(layouts)*3)
	for _, sep := range []string{"/", "-", "."} {
		for _, l := range layouts {
			out = append(out, strings.ReplaceAll(l, "/", sep))
		}
	}
	return out
}

func (p *Parser) parseShort(raw string, monthFirst bool) (time.Time, error) {
	s := strings.ToUpper(strings.Join(strings.Fields(atWord.ReplaceAllString(raw, " ")), " "))

	primary, secondary := dayFirstLayouts, monthFirstLayouts
	if monthFirst {
		primary, secondary = monthFirstLayouts, dayFirstLayouts
	}
	for _, layouts := range [][]string{primary, secondary} {
		if t, ok := p.tryLayouts(layouts, s); ok {
			return t, nil
		}
	}

	t, err := dateparse.ParseIn(raw, p.loc,
		dateparse.PreferMonthFirst(monthFirst),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "timeparse: short datetime %q", raw)
	}
	return t, nil
}

func (p *Parser) tryLayouts(layouts []string, s string) (time.Time, bool) {
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, p.loc)
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "06") {
			t = p.withCurrentYear(t)
		}
		return t, true
	}
	return time.Time{}, false
}

// withCurrentYear places a year-less value in the current year, or the
// previous one when that would put it more than a day in the future.
func (p *Parser) withCurrentYear(t time.Time) time.Time {
	now := p.now().In(p.loc)
	out := time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), p.loc)
	if out.After(now.Add(24 * time.Hour)) {
		out = out.AddDate(-1, 0, 0)
	}
	return out
}

func parseUnix(raw string, millis bool) (time.Time, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return time.Time{}, eris.Wrapf(err, "timeparse: unix timestamp %q", raw)
		}
		if millis {
			return time.UnixMilli(int64(f)), nil
		}
		return time.Unix(int64(f), 0), nil
	}
	if millis {
		return time.UnixMilli(n), nil
	}
	return time.Unix(n, 0), nil
}
