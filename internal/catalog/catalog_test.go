package catalog

import (
	"slices"
	"testing"

	"github.com/david/gsa-finder/internal/models"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"naics", c.NAICS, []string{"541511", "541512", "541513", "541519", "517311"}},
		{"set-asides", c.SetAsides, []string{"SB", "8(a)", "WOSB", "SDVOSB", "HUBZone", "VOSB"}},
		{"vehicles", c.Vehicles, []string{"GSA MAS", "Alliant 2", "CIO-SP3"}},
		{"agencies", c.Agencies, []string{"GSA", "USDA", "DOE", "HHS", "VA", "DHS", "DOC", "DOD", "NOAA", "SSA"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !slices.Equal(tt.got, tt.want) {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_MatchesModels(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(c.PeriodDays, models.PeriodDays) {
		t.Errorf("period days %v, want %v", c.PeriodDays, models.PeriodDays)
	}
	if len(c.Statuses) != len(models.Statuses) {
		t.Fatalf("statuses %v, want %v", c.Statuses, models.Statuses)
	}
	for i, s := range models.Statuses {
		if c.Statuses[i] != string(s) {
			t.Errorf("status %d = %s, want %s", i, c.Statuses[i], s)
		}
	}
	for _, k := range c.SortKeys {
		if !models.SortKey(k).Valid() {
			t.Errorf("sort key %q not accepted by models", k)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("naics: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}
