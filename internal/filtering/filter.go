package filtering

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/david/gsa-finder/internal/models"
)

const day = 24 * time.Hour

// Filter returns the records passing every facet of f, in input order.
func Filter(opps []models.Opportunity, f models.Filters) []models.Opportunity {
	return FilterAt(opps, f, time.Now())
}

// FilterAt is Filter with an explicit clock for the period facet.
func FilterAt(opps []models.Opportunity, f models.Filters, now time.Time) []models.Opportunity {
	keywords := normalizeKeywords(f.Keywords)

	out := make([]models.Opportunity, 0, len(opps))
	for _, o := range opps {
		if matches(o, f, keywords, now) {
			out = append(out, o)
		}
	}
	return out
}

func matches(o models.Opportunity, f models.Filters, keywords []string, now time.Time) bool {
	if f.NAICS != nil && *f.NAICS != "" && o.NAICS != *f.NAICS {
		return false
	}

	if len(f.SetAside) > 0 && !sharesAny(f.SetAside, o.SetAside) {
		return false
	}

	if f.Vehicle != nil && *f.Vehicle != "" && o.Vehicle != *f.Vehicle {
		return false
	}

	if len(f.Agencies) > 0 && !slices.Contains(f.Agencies, o.Agency) {
		return false
	}

	if f.Period.IsNext() {
		if o.DueDate.IsZero() {
			return false
		}
		diff := DaysUntil(o.DueDate.Time, now)
		if diff < 0 || diff > f.Period.Days {
			return false
		}
	}

	if !inRange(o.Ceiling, f.CeilingMin, f.CeilingMax) {
		return false
	}

	if f.MinFitScore != nil && o.FitScore < *f.MinFitScore {
		return false
	}

	if len(keywords) > 0 && !matchesKeyword(o, keywords) {
		return false
	}

	return true
}

// DaysUntil is ceil((due - now) / 1 day). A due date exactly at now is 0.
func DaysUntil(due, now time.Time) int {
	return int(math.Ceil(float64(due.Sub(now)) / float64(day)))
}

// DueLabel renders the relative due date shown next to each result,
// e.g. "12d left" or "3d past due".
func DueLabel(due, now time.Time) string {
	diff := DaysUntil(due, now)
	if diff >= 0 {
		return fmt.Sprintf("%dd left", diff)
	}
	return fmt.Sprintf("%dd past due", -diff)
}

// inRange applies both bounds literally, so an inverted range matches nothing.
func inRange(value float64, min, max *float64) bool {
	if min != nil && value < *min {
		return false
	}
	if max != nil && value > *max {
		return false
	}
	return true
}

func sharesAny(want, have []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

func matchesKeyword(o models.Opportunity, keywords []string) bool {
	title := strings.ToLower(o.Title)
	tags := make(map[string]struct{}, len(o.Keywords))
	for _, k := range o.Keywords {
		tags[strings.ToLower(k)] = struct{}{}
	}

	for _, k := range keywords {
		if strings.Contains(title, k) {
			return true
		}
		if _, ok := tags[k]; ok {
			return true
		}
	}
	return false
}

// normalizeKeywords lower-cases the facet and drops blank entries, which
// would otherwise match every title.
func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if strings.TrimSpace(k) == "" {
			continue
		}
		out = append(out, strings.ToLower(k))
	}
	return out
}

// ApplyOverrides returns a copy of opps with overridden statuses swapped in.
// The input slice is left untouched.
func ApplyOverrides(opps []models.Opportunity, overrides models.StatusOverrides) []models.Opportunity {
	out := make([]models.Opportunity, len(opps))
	copy(out, opps)
	if len(overrides) == 0 {
		return out
	}
	for i := range out {
		if s, ok := overrides[out[i].ID]; ok && s.Valid() {
			out[i].Status = s
		}
	}
	return out
}
