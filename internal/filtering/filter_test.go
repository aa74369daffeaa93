package filtering

import (
	"testing"
	"time"

	"github.com/david/gsa-finder/internal/models"
)

var testNow = time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

func due(d time.Duration) models.Timestamp {
	return models.Timestamp{Time: testNow.Add(d)}
}

func sampleOpps() []models.Opportunity {
	return []models.Opportunity{
		{
			ID: "a1", Title: "Cloud Security Services", Agency: "GSA", NAICS: "541511",
			SetAside: []string{"SB", "8(a)"}, Vehicle: "GSA MAS", DueDate: due(10 * day),
			Status: models.StatusDraft, PercentComplete: 20, FitScore: 80, Ceiling: 1000000,
			Keywords: []string{"cloud", "security"},
		},
		{
			ID: "a2", Title: "Data Analytics Platform", Agency: "USDA", NAICS: "541512",
			SetAside: []string{"WOSB"}, Vehicle: "Alliant 2", DueDate: due(45 * day),
			Status: models.StatusReady, PercentComplete: 60, FitScore: 65, Ceiling: 500000,
			Keywords: []string{"analytics", "AI"},
		},
		{
			ID: "a3", Title: "Help Desk Support", Agency: "VA", NAICS: "541513",
			SetAside: nil, Vehicle: "CIO-SP3", DueDate: due(-2 * day),
			Status: models.StatusSubmitted, PercentComplete: 100, FitScore: 40, Ceiling: 250000,
			Keywords: []string{"service desk"},
		},
	}
}

func ids(opps []models.Opportunity) []string {
	out := make([]string, 0, len(opps))
	for _, o := range opps {
		out = append(out, o.ID)
	}
	return out
}

func sameIDs(t *testing.T, got []models.Opportunity, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("expected %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, g)
		}
	}
}

func TestFilterAt_DefaultIsIdentity(t *testing.T) {
	opps := sampleOpps()
	got := FilterAt(opps, models.DefaultFilters(), testNow)
	sameIDs(t, got, "a1", "a2", "a3")

	got = FilterAt(opps, models.Filters{}, testNow)
	sameIDs(t, got, "a1", "a2", "a3")
}

func TestFilterAt_Facets(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *models.Filters)
		want   []string
	}{
		{"naics exact", func(f *models.Filters) { f.NAICS = models.StringPtr("541512") }, []string{"a2"}},
		{"empty naics is unconstrained", func(f *models.Filters) { f.NAICS = models.StringPtr("") }, []string{"a1", "a2", "a3"}},
		{"set-aside any of", func(f *models.Filters) { f.SetAside = []string{"WOSB", "8(a)"} }, []string{"a1", "a2"}},
		{"vehicle exact", func(f *models.Filters) { f.Vehicle = models.StringPtr("CIO-SP3") }, []string{"a3"}},
		{"agencies membership", func(f *models.Filters) { f.Agencies = []string{"VA", "GSA"} }, []string{"a1", "a3"}},
		{"period excludes past due", func(f *models.Filters) { f.Period = models.NextDays(60) }, []string{"a1", "a2"}},
		{"period 30", func(f *models.Filters) { f.Period = models.NextDays(30) }, []string{"a1"}},
		{"ceiling min only", func(f *models.Filters) { f.CeilingMin = models.FloatPtr(400000) }, []string{"a1", "a2"}},
		{"ceiling max only", func(f *models.Filters) { f.CeilingMax = models.FloatPtr(500000) }, []string{"a2", "a3"}},
		{"ceiling bounds inclusive", func(f *models.Filters) {
			f.CeilingMin = models.FloatPtr(250000)
			f.CeilingMax = models.FloatPtr(500000)
		}, []string{"a2", "a3"}},
		{"inverted ceiling matches nothing", func(f *models.Filters) {
			f.CeilingMin = models.FloatPtr(600000)
			f.CeilingMax = models.FloatPtr(100000)
		}, []string{}},
		{"min fit score", func(f *models.Filters) { f.MinFitScore = models.FloatPtr(65) }, []string{"a1", "a2"}},
		{"keyword in title case-insensitive", func(f *models.Filters) { f.Keywords = []string{"HELP"} }, []string{"a3"}},
		{"keyword exact tag", func(f *models.Filters) { f.Keywords = []string{"ai"} }, []string{"a2"}},
		{"keyword tag must be exact", func(f *models.Filters) { f.Keywords = []string{"service d"} }, []string{}},
		{"keywords any of", func(f *models.Filters) { f.Keywords = []string{"cloud", "desk"} }, []string{"a1", "a3"}},
		{"blank keywords are ignored", func(f *models.Filters) { f.Keywords = []string{"", "  "} }, []string{"a1", "a2", "a3"}},
		{"facets combine with and", func(f *models.Filters) {
			f.Agencies = []string{"GSA", "USDA"}
			f.MinFitScore = models.FloatPtr(70)
		}, []string{"a1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := models.DefaultFilters()
			tt.mutate(&f)
			sameIDs(t, FilterAt(sampleOpps(), f, testNow), tt.want...)
		})
	}
}

func TestFilterAt_PeriodBoundaries(t *testing.T) {
	opps := []models.Opportunity{
		{ID: "now", DueDate: due(0)},
		{ID: "d30", DueDate: due(30 * day)},
		{ID: "d29.5", DueDate: due(29*day + 12*time.Hour)},
		{ID: "d31", DueDate: due(31 * day)},
		{ID: "d30.1", DueDate: due(30*day + time.Minute)},
		{ID: "yesterday", DueDate: due(-day)},
	}
	f := models.DefaultFilters()
	f.Period = models.NextDays(30)

	sameIDs(t, FilterAt(opps, f, testNow), "now", "d30", "d29.5")
}

func TestFilterAt_NAICSMatchCeilingFails(t *testing.T) {
	opps := []models.Opportunity{
		{ID: "x", NAICS: "541511", Ceiling: 100},
		{ID: "y", NAICS: "541512", Ceiling: 50},
	}
	f := models.DefaultFilters()
	f.NAICS = models.StringPtr("541511")
	f.CeilingMax = models.FloatPtr(80)

	if got := FilterAt(opps, f, testNow); len(got) != 0 {
		t.Fatalf("expected no results, got %v", ids(got))
	}
}

func TestFilterAt_Idempotent(t *testing.T) {
	f := models.DefaultFilters()
	f.Keywords = []string{"cloud", "data"}
	f.Period = models.NextDays(90)

	once := FilterAt(sampleOpps(), f, testNow)
	twice := FilterAt(once, f, testNow)
	sameIDs(t, twice, ids(once)...)
}

func TestFilterAt_DoesNotMutateInput(t *testing.T) {
	opps := sampleOpps()
	f := models.DefaultFilters()
	f.Agencies = []string{"VA"}
	_ = FilterAt(opps, f, testNow)
	sameIDs(t, opps, "a1", "a2", "a3")
}

func TestDueLabel(t *testing.T) {
	if got := DueLabel(testNow.Add(12*day), testNow); got != "12d left" {
		t.Fatalf("expected 12d left, got %s", got)
	}
	if got := DueLabel(testNow.Add(-3*day), testNow); got != "3d past due" {
		t.Fatalf("expected 3d past due, got %s", got)
	}
	if got := DueLabel(testNow, testNow); got != "0d left" {
		t.Fatalf("expected 0d left, got %s", got)
	}
}

func TestApplyOverrides(t *testing.T) {
	opps := sampleOpps()
	out := ApplyOverrides(opps, models.StatusOverrides{
		"a1":      models.StatusSubmitted,
		"missing": models.StatusLost,
		"a2":      models.Status("Bogus"),
	})

	if out[0].Status != models.StatusSubmitted {
		t.Fatalf("expected a1 overridden to Submitted, got %s", out[0].Status)
	}
	if out[1].Status != models.StatusReady {
		t.Fatalf("expected invalid override ignored, got %s", out[1].Status)
	}
	if opps[0].Status != models.StatusDraft {
		t.Fatalf("source record mutated: %s", opps[0].Status)
	}
}
