package relevance

import "github.com/covisearch/aggregator/internal/model"

// TotalFunc extracts the bed total a comparator weighs against recency.
type TotalFunc func(r *model.Record) *int

// BedCount trades recency against capacity. An older record is shown first
// when its total exceeds the recent one's by more than threshold beds for
// every whole day between the two verifications, plus one day of tolerance.
func BedCount(threshold int, total TotalFunc) Comparator {
	return func(a, b *model.Record) int {
		ta, tb := total(a), total(b)

		if a.LastVerifiedUTC == nil || b.LastVerifiedUTC == nil || ta == nil || tb == nil {
			if c := Base(a, b); c != 0 {
				return c
			}
			return intDesc(ta, tb)
		}

		if a.LastVerifiedUTC.Equal(*b.LastVerifiedUTC) || *ta == *tb {
			if c := timeDesc(a.LastVerifiedUTC, b.LastVerifiedUTC); c != 0 {
				return c
			}
			if c := intDesc(ta, tb); c != 0 {
				return c
			}
			return Base(a, b)
		}

		recent, older := moreRecent(a, b)
		gap := wholeDays(recent.LastVerifiedUTC.Sub(*older.LastVerifiedUTC))
		diff := *total(older) - *total(recent)
		if diff > (gap+1)*threshold {
			return winner(a, older)
		}
		return winner(a, recent)
	}
}
