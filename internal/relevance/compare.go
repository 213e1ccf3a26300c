// Package relevance orders canonical records for display. A Comparator
// returns a negative value when a should be shown before b.
package relevance

import (
	"time"

	"github.com/covisearch/aggregator/internal/model"
)

// Comparator orders two records; -1 puts a first, 1 puts b first.
type Comparator func(a, b *model.Record) int

// Base orders by last verification time, newest first, then by post time.
// A missing timestamp is older than any real one.
func Base(a, b *model.Record) int {
	if c := timeDesc(a.LastVerifiedUTC, b.LastVerifiedUTC); c != 0 {
		return c
	}
	return timeDesc(a.PostTime, b.PostTime)
}

// timeDesc compares two optional instants, later first.
func timeDesc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.After(*b):
		return -1
	case b.After(*a):
		return 1
	}
	return 0
}

// intDesc compares two optional counts, larger first. A missing count sorts
// after any present one.
func intDesc(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *b > *a:
		return 1
	}
	return 0
}

// moreRecent returns the more recently verified record. With no timestamps
// at all, a is returned; on equal timestamps, b.
func moreRecent(a, b *model.Record) (recent, older *model.Record) {
	ta, tb := a.LastVerifiedUTC, b.LastVerifiedUTC
	switch {
	case ta == nil && tb == nil:
		return a, b
	case ta == nil:
		return b, a
	case tb == nil:
		return a, b
	case ta.After(*tb):
		return a, b
	}
	return b, a
}

// wholeDays counts complete days in d.
func wholeDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}

func winner(a, w *model.Record) int {
	if w == a {
		return -1
	}
	return 1
}
