// Package timeparse converts the date and time notations found on listing
// sites into UTC instants.
package timeparse

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Format names a source datetime notation.
type Format string

const (
	// Ago is relative text such as "5 hours ago" or "a day ago".
	Ago Format = "ago"
	// ISO is an ISO-8601 style timestamp, e.g. 2021-05-16T21:06:17.000000+05:30.
	ISO Format = "isoformat"
	// ShortDayMonth is day-first short text, e.g. "2/05 5:35 PM" or "27/12 at 6:09 AM".
	ShortDayMonth Format = "short_datetime_dd_mm"
	// ShortMonthDay is month-first short text, e.g. "12/27 at 6:09 AM".
	ShortMonthDay Format = "short_datetime_mm_dd"
	// UnixSeconds is seconds since the epoch.
	UnixSeconds Format = "unix_timestamp_sec"
	// UnixMillis is milliseconds since the epoch.
	UnixMillis Format = "unix_timestamp_millisec"
)

// ParseFormat parses a format tag, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case Ago, ISO, ShortDayMonth, ShortMonthDay, UnixSeconds, UnixMillis:
		return f, nil
	default:
		return "", eris.Errorf("timeparse: unknown datetime format %q", s)
	}
}
