// Package catalog holds the option lists shown by the filter controls.
package catalog

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/catalog.yaml
var catalogYAML embed.FS

// Catalog lists the known values of each facet. It only drives the option
// lists; the filter engine accepts values outside it.
type Catalog struct {
	NAICS      []string `yaml:"naics" json:"naics"`
	SetAsides  []string `yaml:"set_asides" json:"setAside"`
	Vehicles   []string `yaml:"vehicles" json:"vehicle"`
	Agencies   []string `yaml:"agencies" json:"agencies"`
	Statuses   []string `yaml:"statuses" json:"statuses"`
	PeriodDays []int    `yaml:"period_days" json:"periodDays"`
	SortKeys   []string `yaml:"sort_keys" json:"sortKeys"`
}

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Load parses the embedded catalog once.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		data, err := catalogYAML.ReadFile("config/catalog.yaml")
		if err != nil {
			loadErr = fmt.Errorf("read catalog: %w", err)
			return
		}
		loaded, loadErr = Parse(data)
	})
	return loaded, loadErr
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}
