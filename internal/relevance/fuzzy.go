package relevance

import (
	"math"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/covisearch/aggregator/internal/model"
)

const (
	// MatchThreshold is the minimum partial similarity counted as a match.
	MatchThreshold = 0.8
	// SubtypeGapDays is how many days of staleness a subtype match outweighs.
	SubtypeGapDays = 30
)

// MatchFunc reports whether target occurs in text.
type MatchFunc func(target, text string) bool

// PartialRatio scores how well target occurs anywhere in text, from 0 to 1.
// The shorter string is slid across the longer one and the best
// Levenshtein similarity of any equal-length window wins. Case is ignored.
func PartialRatio(target, text string) float64 {
	s, l := []rune(strings.ToLower(target)), []rune(strings.ToLower(text))
	if len(s) > len(l) {
		s, l = l, s
	}
	if len(s) == 0 {
		if len(l) == 0 {
			return 1
		}
		return 0
	}
	short := string(s)
	best := 0.0
	for i := 0; i+len(s) <= len(l); i++ {
		d := matchr.Levenshtein(short, string(l[i:i+len(s)]))
		r := 1 - float64(d)/float64(len(s))
		if r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

// PartialMatch is the default MatchFunc.
func PartialMatch(target, text string) bool {
	return PartialRatio(target, text) >= MatchThreshold
}

// FuzzySubtype prefers records that mention target in their subtype or
// details, unless the matching record is more than SubtypeGapDays staler
// than the other. Records from sources that do not need smart matching
// always count as matching. Match results are cached per record ID for the
// lifetime of the returned comparator, so record IDs must be unique within
// one ranking pass. Records sharing an ID share a single match result.
func FuzzySubtype(target string, match MatchFunc) Comparator {
	if match == nil {
		match = PartialMatch
	}
	cache := make(map[int64]bool)

	matches := func(r *model.Record) bool {
		if m, ok := cache[r.ID]; ok {
			return m
		}
		m := true
		if src, ok := r.OriginSource(); ok && src.NeedsSmartMatch && target != "" {
			m = match(target, r.ResourceSubtype) || match(target, r.Details)
		}
		cache[r.ID] = m
		return m
	}

	return func(a, b *model.Record) int {
		ma, mb := matches(a), matches(b)
		if ma == mb {
			return Base(a, b)
		}

		recent, older := moreRecent(a, b)
		matching := a
		if mb {
			matching = b
		}
		if matching == recent {
			return winner(a, recent)
		}
		if verificationGap(recent, older) > SubtypeGapDays {
			return winner(a, recent)
		}
		return winner(a, older)
	}
}

// verificationGap is the whole-day gap between two records. Two unverified
// records are no days apart; an unverified older record is unboundedly far.
func verificationGap(recent, older *model.Record) int {
	switch {
	case recent.LastVerifiedUTC == nil && older.LastVerifiedUTC == nil:
		return 0
	case older.LastVerifiedUTC == nil:
		return math.MaxInt
	case recent.LastVerifiedUTC == nil:
		return 0
	}
	return wholeDays(recent.LastVerifiedUTC.Sub(*older.LastVerifiedUTC))
}
