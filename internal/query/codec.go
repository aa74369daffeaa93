// Package query maps filters to and from the flat parameter
// map carried in the dashboard URL.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/david/gsa-finder/internal/models"
)

// URL parameter names.
const (
	ParamNAICS    = "naics"
	ParamSetAside = "setAside"
	ParamVehicle  = "vehicle"
	ParamAgencies = "agencies"
	ParamPeriod   = "period"
	ParamCMin     = "cMin"
	ParamCMax     = "cMax"
	ParamKeywords = "kw"
	ParamSortBy   = "sortBy"
	ParamSortDir  = "sortDir"
	ParamMinFit   = "minFit"
)

const periodPrefix = "next:"

// Encode renders f as URL parameters. Unconstrained facets are omitted;
// sort key and direction are always written so shared links keep their order.
func Encode(f models.Filters) url.Values {
	out := url.Values{}
	if f.NAICS != nil && *f.NAICS != "" {
		out.Set(ParamNAICS, *f.NAICS)
	}
	if s := joinList(f.SetAside); s != "" {
		out.Set(ParamSetAside, s)
	}
	if f.Vehicle != nil && *f.Vehicle != "" {
		out.Set(ParamVehicle, *f.Vehicle)
	}
	if s := joinList(f.Agencies); s != "" {
		out.Set(ParamAgencies, s)
	}
	if f.CeilingMin != nil && finite(*f.CeilingMin) {
		out.Set(ParamCMin, formatNumber(*f.CeilingMin))
	}
	if f.CeilingMax != nil && finite(*f.CeilingMax) {
		out.Set(ParamCMax, formatNumber(*f.CeilingMax))
	}
	if s := joinList(f.Keywords); s != "" {
		out.Set(ParamKeywords, s)
	}

	sortBy, sortDir := f.SortBy, f.SortDir
	if !sortBy.Valid() {
		sortBy = models.SortByDueDate
	}
	if !sortDir.Valid() {
		sortDir = models.SortAsc
	}
	out.Set(ParamSortBy, string(sortBy))
	out.Set(ParamSortDir, string(sortDir))

	if p := f.Period.Sanitize(); p.IsNext() {
		out.Set(ParamPeriod, periodPrefix+strconv.Itoa(p.Days))
	}
	if f.MinFitScore != nil && finite(*f.MinFitScore) {
		out.Set(ParamMinFit, formatNumber(*f.MinFitScore))
	}
	return out
}

// Decode builds filters from URL parameters, filling every omitted key with
// its unconstrained default.
func Decode(v url.Values) models.Filters {
	return Overlay(models.DefaultFilters(), v)
}

// Overlay returns a copy of base with every facet present in v replaced by
// its decoded value. Keys absent from v leave base's facet in place; a key
// present with a value that does not decode resets the facet to its
// unconstrained default.
func Overlay(base models.Filters, v url.Values) models.Filters {
	out := base.Sanitize()

	if s, ok := single(v, ParamNAICS); ok {
		out.NAICS = models.StringPtr(s)
	}
	if list, ok := listParam(v, ParamSetAside); ok {
		out.SetAside = list
	}
	if s, ok := single(v, ParamVehicle); ok {
		out.Vehicle = models.StringPtr(s)
	}
	if list, ok := listParam(v, ParamAgencies); ok {
		out.Agencies = list
	}
	if s, ok := single(v, ParamPeriod); ok {
		out.Period = decodePeriod(s)
	}
	if n, ok := number(v, ParamCMin); ok {
		out.CeilingMin = n
	}
	if n, ok := number(v, ParamCMax); ok {
		out.CeilingMax = n
	}
	if list, ok := listParam(v, ParamKeywords); ok {
		out.Keywords = list
	}
	if s, ok := single(v, ParamSortBy); ok {
		out.SortBy = models.SortByDueDate
		if k := models.SortKey(s); k.Valid() {
			out.SortBy = k
		}
	}
	if s, ok := single(v, ParamSortDir); ok {
		out.SortDir = models.SortAsc
		if d := models.SortDir(s); d.Valid() {
			out.SortDir = d
		}
	}
	if n, ok := number(v, ParamMinFit); ok {
		out.MinFitScore = n
	}
	return out
}

// String is Encode rendered as a query string with sorted keys.
func String(f models.Filters) string {
	return Encode(f).Encode()
}

// decodePeriod accepts only "next:<30|60|90>"; anything else is no constraint.
func decodePeriod(s string) models.Period {
	if !strings.HasPrefix(s, periodPrefix) {
		return models.NoPeriod()
	}
	days, err := strconv.Atoi(strings.TrimPrefix(s, periodPrefix))
	if err != nil {
		return models.NoPeriod()
	}
	return models.NextDays(days).Sanitize()
}

func single(v url.Values, key string) (string, bool) {
	s := v.Get(key)
	if s == "" {
		return "", false
	}
	return s, true
}

func listParam(v url.Values, key string) ([]string, bool) {
	s, ok := single(v, key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out, true
}

// number reports ok when key is present. The value is nil when it does not
// parse to a finite number.
func number(v url.Values, key string) (*float64, bool) {
	s, ok := single(v, key)
	if !ok {
		return nil, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !finite(n) {
		return nil, true
	}
	return models.FloatPtr(n), true
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// joinList flattens list items on the separator so that every encoded list
// decodes to exactly the items it was built from.
func joinList(items []string) string {
	var parts []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part != "" {
				parts = append(parts, part)
			}
		}
	}
	return strings.Join(parts, ",")
}

func finite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}
