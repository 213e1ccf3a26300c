// Package merge reconciles duplicate listings that share a phone number.
package merge

import "github.com/covisearch/aggregator/internal/model"

// ExtraFunc fills resource-type-specific fields of winner from loser.
type ExtraFunc func(winner, loser *model.Record)

// Duplicates merges records sharing any phone number. For each shared number
// the more recently verified record survives and absorbs every field it
// lacks from the other; sources are unioned by name. Survivors are returned
// in the order the numbers they hold were first seen, followed by the
// records without phones, which are never merged.
func Duplicates(records []*model.Record, extra ExtraFunc) []*model.Record {
	byPhone := make(map[string]int)
	var (
		phoneOrder []string
		phoneless  []int
	)

	for i, r := range records {
		if len(r.Phones) == 0 {
			phoneless = append(phoneless, i)
			continue
		}
		for _, p := range r.Phones {
			cur, seen := byPhone[p]
			if !seen {
				byPhone[p] = i
				phoneOrder = append(phoneOrder, p)
				continue
			}
			if cur == i {
				continue
			}
			w, l := winner(records, cur, i)
			absorb(records[w], records[l], extra)
			byPhone[p] = w
		}
	}

	out := make([]*model.Record, 0, len(phoneOrder)+len(phoneless))
	emitted := make([]bool, len(records))
	for _, p := range phoneOrder {
		i := byPhone[p]
		if emitted[i] {
			continue
		}
		emitted[i] = true
		out = append(out, records[i])
	}
	for _, i := range phoneless {
		out = append(out, records[i])
	}
	return out
}

// winner picks the more recently verified of the current and the incoming
// record. Ties, including two missing timestamps, keep the current one.
func winner(records []*model.Record, cur, in int) (w, l int) {
	tc, ti := records[cur].LastVerifiedUTC, records[in].LastVerifiedUTC
	switch {
	case tc == nil && ti == nil:
		return cur, in
	case tc == nil:
		return in, cur
	case ti == nil:
		return cur, in
	case ti.After(*tc):
		return in, cur
	}
	return cur, in
}

func absorb(w, l *model.Record, extra ExtraFunc) {
	fillString(&w.ContactName, l.ContactName)
	if len(w.Phones) == 0 {
		w.Phones = append([]string(nil), l.Phones...)
	}
	fillString(&w.Details, l.Details)
	fillString(&w.Address, l.Address)
	if w.PostTime == nil {
		w.PostTime = l.PostTime
	}
	fillString(&w.ResourceSubtype, l.ResourceSubtype)
	if w.Lat == nil {
		w.Lat = l.Lat
	}
	if w.Lng == nil {
		w.Lng = l.Lng
	}
	fillString(&w.CardSourceURL, l.CardSourceURL)
	if extra != nil {
		extra(w, l)
	}
	for _, s := range l.Sources {
		if !w.HasSource(s.Name) {
			w.Sources = append(w.Sources, s)
		}
	}
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}
