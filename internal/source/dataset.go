// Package source loads the static opportunity document and tracks whether
// it is loading, ready or failed.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/david/gsa-finder/internal/metrics"
	"github.com/david/gsa-finder/internal/models"
)

// ErrNotLoaded is returned while no usable document is available.
var ErrNotLoaded = errors.New("data not loaded")

// State of a Dataset.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Status describes a Dataset for clients deciding between a spinner, an
// error banner with retry, and the results. Count, Skipped and LoadedAt
// always describe the records being served, that is the last successful
// load; Error is the most recent load failure and is cleared by the next
// success.
type Status struct {
	State     State      `json:"state"`
	Source    string     `json:"source"`
	Reloading bool       `json:"reloading"`
	Count     int        `json:"count"`
	Skipped   int        `json:"skipped"`
	Error     string     `json:"error,omitempty"`
	LoadedAt  *time.Time `json:"loaded_at,omitempty"`
}

// Dataset holds the most recently loaded opportunities. Records are never
// modified after load. Once a load has succeeded its records stay served
// until a later load replaces them.
type Dataset struct {
	src     string
	fetcher *Fetcher

	mu        sync.RWMutex
	state     State
	reloading bool
	opps      []models.Opportunity
	skipped   int
	lastErr   error
	loadedAt  time.Time
}

func NewDataset(src string, fetcher *Fetcher) *Dataset {
	if fetcher == nil {
		fetcher = NewFetcher(FetchConfig{})
	}
	return &Dataset{src: src, fetcher: fetcher, state: StateLoading}
}

// Load fetches and decodes the document. Previously loaded records keep
// being served while the fetch runs and survive a failed fetch; the
// dataset only enters the failed state when nothing was ever loaded.
func (d *Dataset) Load(ctx context.Context) error {
	d.mu.Lock()
	if d.loadedAt.IsZero() {
		d.state = StateLoading
	}
	d.reloading = true
	d.mu.Unlock()

	opps, skipped, err := d.fetch(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.reloading = false
	metrics.RecordDataLoad(err == nil)
	if err != nil {
		d.lastErr = err
		if d.loadedAt.IsZero() {
			d.state = StateFailed
			log.Printf("source: load %s failed: %v", d.src, err)
		} else {
			log.Printf("source: reload %s failed, keeping %d opportunities: %v", d.src, len(d.opps), err)
		}
		return err
	}
	d.state = StateReady
	d.opps = opps
	d.skipped = skipped
	d.lastErr = nil
	d.loadedAt = time.Now()
	log.Printf("source: loaded %d opportunities from %s (%d skipped)", len(opps), d.src, skipped)
	return nil
}

func (d *Dataset) fetch(ctx context.Context) ([]models.Opportunity, int, error) {
	raw, err := d.fetcher.Fetch(ctx, d.src)
	if err != nil {
		return nil, 0, err
	}
	return Decode(raw)
}

// Decode parses the document and drops records that break the data model
// invariants or repeat an id. The number of dropped records is returned.
func Decode(raw []byte) ([]models.Opportunity, int, error) {
	var records []models.Opportunity
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, 0, fmt.Errorf("decode data document: %w", err)
	}

	out := make([]models.Opportunity, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	skipped := 0
	for _, r := range records {
		if err := r.Validate(); err != nil {
			log.Printf("source: skipping record: %v", err)
			skipped++
			continue
		}
		if _, dup := seen[r.ID]; dup {
			log.Printf("source: skipping duplicate id %s", r.ID)
			skipped++
			continue
		}
		seen[r.ID] = struct{}{}
		if r.SetAside == nil {
			r.SetAside = []string{}
		}
		if r.Keywords == nil {
			r.Keywords = []string{}
		}
		out = append(out, r)
	}
	return out, skipped, nil
}

// Opportunities returns a copy of the loaded records, or ErrNotLoaded
// (wrapping the load error, if any) when none are available.
func (d *Dataset) Opportunities() ([]models.Opportunity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.loadedAt.IsZero() {
		if d.lastErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotLoaded, d.lastErr)
		}
		return nil, ErrNotLoaded
	}
	return slices.Clone(d.opps), nil
}

func (d *Dataset) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := Status{
		State:     d.state,
		Source:    d.src,
		Reloading: d.reloading,
		Count:     len(d.opps),
		Skipped:   d.skipped,
	}
	if d.lastErr != nil {
		st.Error = d.lastErr.Error()
	}
	if !d.loadedAt.IsZero() {
		t := d.loadedAt
		st.LoadedAt = &t
	}
	return st
}
