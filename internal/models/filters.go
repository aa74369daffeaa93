package models

import (
	"errors"
	"slices"
)

// SortKey selects the comparator key of the sort engine.
type SortKey string

const (
	SortByDueDate         SortKey = "dueDate"
	SortByPercentComplete SortKey = "percentComplete"
	SortByFitScore        SortKey = "fitScore"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortByDueDate, SortByPercentComplete, SortByFitScore:
		return true
	}
	return false
}

// SortDir is the sort direction.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

func (d SortDir) Valid() bool {
	return d == SortAsc || d == SortDesc
}

// PeriodType tags the period variant.
type PeriodType string

const (
	PeriodNone PeriodType = "none"
	PeriodNext PeriodType = "next"
)

// PeriodDays are the only accepted window lengths for a "next N days" period.
var PeriodDays = []int{30, 60, 90}

// Period is the due-date window facet: either no constraint or the next N days.
type Period struct {
	Type PeriodType `json:"type"`
	Days int        `json:"days,omitempty"`
}

func NoPeriod() Period { return Period{Type: PeriodNone} }

func NextDays(days int) Period { return Period{Type: PeriodNext, Days: days} }

// Sanitize revalidates the period against PeriodDays; anything else
// degrades to no constraint.
func (p Period) Sanitize() Period {
	if p.Type == PeriodNext && slices.Contains(PeriodDays, p.Days) {
		return NextDays(p.Days)
	}
	return NoPeriod()
}

// IsNext reports whether the period constrains the due date.
func (p Period) IsNext() bool {
	return p.Type == PeriodNext
}

// Filters is the set of facet constraints applied to the list. Nil optional fields and empty
// collections mean "do not constrain on this facet".
type Filters struct {
	NAICS       *string  `json:"naics,omitempty"`
	SetAside    []string `json:"setAside"`
	Vehicle     *string  `json:"vehicle,omitempty"`
	Agencies    []string `json:"agencies"`
	Period      Period   `json:"period"`
	CeilingMin  *float64 `json:"ceilingMin,omitempty"`
	CeilingMax  *float64 `json:"ceilingMax,omitempty"`
	Keywords    []string `json:"keywords"`
	MinFitScore *float64 `json:"minFitScore,omitempty"`
	SortBy      SortKey  `json:"sortBy"`
	SortDir     SortDir  `json:"sortDir"`
}

// DefaultFilters returns the default filters: every facet
// unconstrained, sorted by due date ascending.
func DefaultFilters() Filters {
	return Filters{
		SetAside: []string{},
		Agencies: []string{},
		Period:   NoPeriod(),
		Keywords: []string{},
		SortBy:   SortByDueDate,
		SortDir:  SortAsc,
	}
}

// ErrCeilingRange is returned by Validate for an inverted ceiling range.
var ErrCeilingRange = errors.New("ceiling min must be less than or equal to ceiling max")

// Validate reports input problems the UI surfaces inline. The filtering
// engine itself accepts any Filters.
func (f Filters) Validate() error {
	if f.CeilingMin != nil && f.CeilingMax != nil && *f.CeilingMin > *f.CeilingMax {
		return ErrCeilingRange
	}
	return nil
}

// Sanitize returns a deep copy with the period revalidated, nil
// collections replaced by empty ones and out-of-enumeration sort values reset.
func (f Filters) Sanitize() Filters {
	out := f.Clone()
	out.Period = out.Period.Sanitize()
	if out.SetAside == nil {
		out.SetAside = []string{}
	}
	if out.Agencies == nil {
		out.Agencies = []string{}
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	if !out.SortBy.Valid() {
		out.SortBy = SortByDueDate
	}
	if !out.SortDir.Valid() {
		out.SortDir = SortAsc
	}
	return out
}

// Clone returns a deep copy so callers never share slices or pointers.
func (f Filters) Clone() Filters {
	out := f
	out.NAICS = cloneString(f.NAICS)
	out.Vehicle = cloneString(f.Vehicle)
	out.CeilingMin = cloneFloat(f.CeilingMin)
	out.CeilingMax = cloneFloat(f.CeilingMax)
	out.MinFitScore = cloneFloat(f.MinFitScore)
	out.SetAside = slices.Clone(f.SetAside)
	out.Agencies = slices.Clone(f.Agencies)
	out.Keywords = slices.Clone(f.Keywords)
	return out
}

// Equal compares two Filters facet by facet. Nil and empty collections are equal.
func (f Filters) Equal(o Filters) bool {
	return equalString(f.NAICS, o.NAICS) &&
		equalString(f.Vehicle, o.Vehicle) &&
		slices.Equal(f.SetAside, o.SetAside) &&
		slices.Equal(f.Agencies, o.Agencies) &&
		slices.Equal(f.Keywords, o.Keywords) &&
		f.Period == o.Period &&
		equalFloat(f.CeilingMin, o.CeilingMin) &&
		equalFloat(f.CeilingMax, o.CeilingMax) &&
		equalFloat(f.MinFitScore, o.MinFitScore) &&
		f.SortBy == o.SortBy &&
		f.SortDir == o.SortDir
}

// Preset is a named snapshot of Filters.
type Preset struct {
	Name    string  `json:"name"`
	Filters Filters `json:"filters"`
}

func StringPtr(s string) *string { return &s }

func FloatPtr(v float64) *float64 { return &v }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
