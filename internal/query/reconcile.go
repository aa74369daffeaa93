package query

import (
	"net/url"

	"github.com/david/gsa-finder/internal/models"
)

// Reconcile builds the starting filters of a session. Precedence, highest first:
// facets present in the URL, then the persisted last-viewed filters, then the
// hard defaults. persisted may be nil when nothing was stored or the stored
// copy was unreadable.
func Reconcile(fromURL url.Values, persisted *models.Filters) models.Filters {
	base := models.DefaultFilters()
	if persisted != nil {
		base = persisted.Sanitize()
	}
	return Overlay(base, fromURL)
}
