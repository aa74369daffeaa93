package filtering

import (
	"cmp"
	"slices"

	"github.com/david/gsa-finder/internal/models"
)

// Sort returns a new slice ordered by key and direction. The sort is stable:
// records with equal keys keep their input order in both directions.
func Sort(opps []models.Opportunity, by models.SortKey, dir models.SortDir) []models.Opportunity {
	out := slices.Clone(opps)
	if out == nil {
		out = []models.Opportunity{}
	}

	mul := 1
	if dir == models.SortDesc {
		mul = -1
	}

	slices.SortStableFunc(out, func(a, b models.Opportunity) int {
		return compareBy(a, b, by) * mul
	})
	return out
}

func compareBy(a, b models.Opportunity, by models.SortKey) int {
	switch by {
	case models.SortByPercentComplete:
		return cmp.Compare(a.PercentComplete, b.PercentComplete)
	case models.SortByFitScore:
		return cmp.Compare(a.FitScore, b.FitScore)
	default:
		return a.DueDate.Time.Compare(b.DueDate.Time)
	}
}
