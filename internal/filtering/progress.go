package filtering

import (
	"math"

	"github.com/david/gsa-finder/internal/models"
)

// StatusCount is one cell of the progress dashboard.
type StatusCount struct {
	Status models.Status `json:"status"`
	Count  int           `json:"count"`
	// Share is the percentage of the collection in this status, used for
	// the distribution bar.
	Share float64 `json:"share"`
}

// Progress is the dashboard projection of a filtered collection.
type Progress struct {
	Total           int           `json:"total"`
	Statuses        []StatusCount `json:"statuses"`
	AverageComplete int           `json:"average_complete"`
}

// Count returns the count for s; statuses not present report zero.
func (p Progress) Count(s models.Status) int {
	for _, c := range p.Statuses {
		if c.Status == s {
			return c.Count
		}
	}
	return 0
}

// Project computes per-status counts and the rounded average percent
// complete. Every status is reported. Averages and shares divide by
// max(len, 1), so an empty collection projects to zeros.
func Project(opps []models.Opportunity) Progress {
	counts := make(map[models.Status]int, len(models.Statuses))
	sum := 0
	for _, o := range opps {
		counts[o.Status]++
		sum += o.PercentComplete
	}

	denom := len(opps)
	if denom == 0 {
		denom = 1
	}

	p := Progress{
		Total:           len(opps),
		Statuses:        make([]StatusCount, 0, len(models.Statuses)),
		AverageComplete: int(math.Floor(float64(sum)/float64(denom) + 0.5)),
	}
	for _, s := range models.Statuses {
		p.Statuses = append(p.Statuses, StatusCount{
			Status: s,
			Count:  counts[s],
			Share:  float64(counts[s]) / float64(denom) * 100,
		})
	}
	return p
}
