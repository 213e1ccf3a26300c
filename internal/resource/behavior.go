// Package resource holds the per-resource-type behaviour table: post-map
// enrichment, extra merge fields, ranking and the subtype search name.
package resource

import (
	"github.com/covisearch/aggregator/internal/model"
	"github.com/covisearch/aggregator/internal/relevance"
)

// Bed weightage thresholds, in beds per day of verification gap.
const (
	HospitalBedThreshold = 10
	ICUBedThreshold      = 2
)

// Behavior bundles what differs between resource types.
type Behavior struct {
	Type              model.ResourceType
	SubtypeSearchName string

	enrich     func(r *model.Record)
	mergeExtra func(winner, loser *model.Record)
	comparator func() relevance.Comparator
}

// Enrich completes derived fields of a freshly mapped record.
func (b Behavior) Enrich(r *model.Record) {
	if b.enrich != nil {
		b.enrich(r)
	}
}

// MergeExtra fills the type-specific fields of winner from loser where the
// winner has no value.
func (b Behavior) MergeExtra(winner, loser *model.Record) {
	if b.mergeExtra != nil {
		b.mergeExtra(winner, loser)
	}
}

// Comparator returns a fresh comparator for one ranking pass. Stateful
// comparators keep their caches inside the returned function.
func (b Behavior) Comparator() relevance.Comparator {
	if b.comparator == nil {
		return relevance.Base
	}
	return b.comparator()
}

var subtypeSearchNames = map[model.ResourceType]string{
	model.ResourceMedPosaconazole: "posaconazole",
	model.ResourceMedAmpholyn:     "ampholyn",
	model.ResourceMedAmphotericin: "amphotericin b",
	model.ResourceMedCresemba:     "cresemba",
	model.ResourceMedOseltamivir:  "oseltamivir",
	model.ResourceMedTocilizumab:  "tocilizumab",
	model.ResourceMedFabiflu:      "fabiflu",
	model.ResourceOxyCylinder:     "cylinder",
	model.ResourceOxyRefill:       "refill",
	model.ResourceOxyRegulator:    "regulator",
	model.ResourceOxyConcentrator: "concentrator",
}

// For returns the behaviour of a resource type. Unknown types get the base
// behaviour.
func For(rt model.ResourceType) Behavior {
	b := Behavior{Type: rt, SubtypeSearchName: subtypeSearchNames[rt]}

	switch rt {
	case model.ResourcePlasma, model.ResourceBlood:
		b.mergeExtra = mergeBloodGroup
	case model.ResourceOxygen:
		b.mergeExtra = mergeLitres
	case model.ResourceOxyCylinder, model.ResourceOxyRefill,
		model.ResourceOxyRegulator, model.ResourceOxyConcentrator:
		b.mergeExtra = mergeLitres
		b.comparator = fuzzy(b.SubtypeSearchName)
	case model.ResourceMedPosaconazole, model.ResourceMedAmpholyn,
		model.ResourceMedAmphotericin, model.ResourceMedCresemba,
		model.ResourceMedOseltamivir, model.ResourceMedTocilizumab,
		model.ResourceMedFabiflu:
		b.comparator = fuzzy(b.SubtypeSearchName)
	case model.ResourceHospitalBed:
		b.enrich = func(r *model.Record) {
			if r.Beds == nil {
				r.Beds = &model.HospitalBeds{}
			}
			FillHospitalBeds(r.Beds)
		}
		b.mergeExtra = mergeHospitalBeds
		b.comparator = func() relevance.Comparator {
			return relevance.BedCount(HospitalBedThreshold, hospitalTotal)
		}
	case model.ResourceHospitalBedICU:
		b.enrich = func(r *model.Record) {
			if r.ICU == nil {
				r.ICU = &model.ICUBeds{}
			}
			FillICUBeds(r.ICU)
		}
		b.mergeExtra = mergeICUBeds
		b.comparator = func() relevance.Comparator {
			return relevance.BedCount(ICUBedThreshold, icuTotal)
		}
	}
	return b
}

func fuzzy(target string) func() relevance.Comparator {
	return func() relevance.Comparator {
		return relevance.FuzzySubtype(target, relevance.PartialMatch)
	}
}

func hospitalTotal(r *model.Record) *int {
	if r.Beds == nil {
		return nil
	}
	return r.Beds.TotalBeds
}

func icuTotal(r *model.Record) *int {
	if r.ICU == nil {
		return nil
	}
	return r.ICU.TotalICUBeds
}

func mergeBloodGroup(w, l *model.Record) {
	if (w.BloodGroup == nil || *w.BloodGroup == "") && l.BloodGroup != nil {
		w.BloodGroup = l.BloodGroup
	}
}

func mergeLitres(w, l *model.Record) {
	if w.Litres == nil {
		w.Litres = l.Litres
	}
}

func mergeHospitalBeds(w, l *model.Record) {
	if l.Beds == nil {
		return
	}
	if w.Beds == nil {
		cp := *l.Beds
		w.Beds = &cp
		return
	}
	fillInt(&w.Beds.CovidBeds, l.Beds.CovidBeds)
	fillInt(&w.Beds.NoOxygenBeds, l.Beds.NoOxygenBeds)
	fillInt(&w.Beds.OxygenBeds, l.Beds.OxygenBeds)
	fillInt(&w.Beds.TotalBeds, l.Beds.TotalBeds)
	fillString(&w.Beds.HospitalType, l.Beds.HospitalType)
}

func mergeICUBeds(w, l *model.Record) {
	if l.ICU == nil {
		return
	}
	if w.ICU == nil {
		cp := *l.ICU
		w.ICU = &cp
		return
	}
	fillInt(&w.ICU.NoVentilatorBeds, l.ICU.NoVentilatorBeds)
	fillInt(&w.ICU.VentilatorBeds, l.ICU.VentilatorBeds)
	fillInt(&w.ICU.TotalICUBeds, l.ICU.TotalICUBeds)
	fillString(&w.ICU.HospitalType, l.ICU.HospitalType)
	fillInt(&w.ICU.Ventilators, l.ICU.Ventilators)
}

func fillInt(dst **int, src *int) {
	if *dst == nil {
		*dst = src
	}
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}
