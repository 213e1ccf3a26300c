package resource

import "github.com/covisearch/aggregator/internal/model"

// FillHospitalBeds treats covid, oxygen and no-oxygen beds as the three
// components of the total. A single missing component is the total less the
// other two; a missing total is the sum of the components present. With no
// component known the record is left as is.
func FillHospitalBeds(b *model.HospitalBeds) {
	if b == nil {
		return
	}
	if b.CovidBeds == nil && b.OxygenBeds == nil && b.NoOxygenBeds == nil {
		return
	}
	fillComponent(&b.CovidBeds, b.OxygenBeds, b.NoOxygenBeds, b.TotalBeds)
	fillComponent(&b.OxygenBeds, b.CovidBeds, b.NoOxygenBeds, b.TotalBeds)
	fillComponent(&b.NoOxygenBeds, b.CovidBeds, b.OxygenBeds, b.TotalBeds)
	if b.TotalBeds == nil {
		b.TotalBeds = intPtr(deref(b.CovidBeds) + deref(b.OxygenBeds) + deref(b.NoOxygenBeds))
	}
}

func fillComponent(missing **int, other1, other2, total *int) {
	if *missing == nil && other1 != nil && other2 != nil && total != nil {
		*missing = intPtr(*total - *other1 - *other2)
	}
}

// FillICUBeds completes the ventilator split the same way. With neither part
// nor total known, the total stays nil.
func FillICUBeds(b *model.ICUBeds) {
	if b == nil {
		return
	}
	fillSplit(&b.VentilatorBeds, &b.NoVentilatorBeds, &b.TotalICUBeds)
	if b.TotalICUBeds == nil && (b.VentilatorBeds != nil || b.NoVentilatorBeds != nil) {
		b.TotalICUBeds = intPtr(deref(b.VentilatorBeds) + deref(b.NoVentilatorBeds))
	}
}

func fillSplit(x, y, total **int) {
	switch {
	case *x == nil && *y != nil && *total != nil:
		*x = intPtr(**total - **y)
	case *y == nil && *x != nil && *total != nil:
		*y = intPtr(**total - **x)
	case *total == nil && *x != nil && *y != nil:
		*total = intPtr(**x + **y)
	}
}

func intPtr(v int) *int { return &v }

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
