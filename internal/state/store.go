// Package state owns the filter lifecycle of one dashboard session: the
// draft and applied filters, the deferred apply transition, named presets and
// local status overrides, kept in sync with the session's address bar and
// persisted entries.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/david/gsa-finder/internal/metrics"
	"github.com/david/gsa-finder/internal/models"
	"github.com/david/gsa-finder/internal/query"
)

var (
	ErrEmptyPresetName = errors.New("preset name is empty")
	ErrPresetNotFound  = errors.New("preset not found")
	ErrInvalidStatus   = errors.New("invalid status")
)

// Phase is the lifecycle state of the store.
type Phase string

const (
	PhaseSynced   Phase = "idle-draft-equals-applied"
	PhaseDiverged Phase = "idle-draft-diverged"
	PhaseApplying Phase = "applying"
)

// Snapshot is a copy of the store state; callers may keep and modify it.
type Snapshot struct {
	Draft     models.Filters         `json:"draft"`
	Applied   models.Filters         `json:"applied"`
	Phase     Phase                  `json:"phase"`
	Presets   []models.Preset        `json:"presets"`
	Overrides models.StatusOverrides `json:"overrides"`
}

// Options configures a Store. Persister and Location default to in-memory
// implementations; Delay defaults to RandomDelay(300ms, 300ms).
type Options struct {
	Persister Persister
	Location  Location
	Delay     func() time.Duration
}

// RandomDelay returns a delay source of floor plus up to jitter.
func RandomDelay(floor, jitter time.Duration) func() time.Duration {
	return func() time.Duration {
		if jitter <= 0 {
			return floor
		}
		return floor + rand.N(jitter)
	}
}

type pendingApply struct {
	timer *time.Timer
	done  chan bool
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	draft     models.Filters
	applied   models.Filters
	presets   []models.Preset
	overrides models.StatusOverrides
	pending   *pendingApply

	kv    Persister
	loc   Location
	delay func() time.Duration
}

// New restores a session. The starting draft is reconciled from the
// location's query (highest precedence), the persisted last-viewed filters and
// the defaults; applied starts equal to it. Unreadable persisted entries are
// logged and treated as absent.
func New(ctx context.Context, opts Options) *Store {
	s := &Store{
		kv:    opts.Persister,
		loc:   opts.Location,
		delay: opts.Delay,
	}
	if s.kv == nil {
		s.kv = NewMemoryPersister()
	}
	if s.loc == nil {
		s.loc = NewMemoryLocation(nil)
	}
	if s.delay == nil {
		s.delay = RandomDelay(300*time.Millisecond, 300*time.Millisecond)
	}

	var lastView *models.Filters
	var stored models.Filters
	if s.readJSON(ctx, LastViewKey, &stored) {
		lastView = &stored
	}
	s.draft = query.Reconcile(s.loc.Query(), lastView)
	s.applied = s.draft.Clone()

	s.presets = []models.Preset{}
	var presets []models.Preset
	if s.readJSON(ctx, PresetsKey, &presets) {
		for _, p := range presets {
			if strings.TrimSpace(p.Name) != "" {
				s.presets = append(s.presets, p)
			}
		}
	}

	s.overrides = models.StatusOverrides{}
	var overrides models.StatusOverrides
	if s.readJSON(ctx, StatusOverridesKey, &overrides) {
		for id, st := range overrides {
			if st.Valid() {
				s.overrides[id] = st
			}
		}
	}

	s.persistDraftLocked(ctx)
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := make([]models.Preset, 0, len(s.presets))
	for _, p := range s.presets {
		presets = append(presets, models.Preset{Name: p.Name, Filters: p.Filters.Clone()})
	}
	return Snapshot{
		Draft:     s.draft.Clone(),
		Applied:   s.applied.Clone(),
		Phase:     s.phaseLocked(),
		Presets:   presets,
		Overrides: s.overrides.Clone(),
	}
}

func (s *Store) Draft() models.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

func (s *Store) Applied() models.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied.Clone()
}

func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phaseLocked()
}

func (s *Store) Overrides() models.StatusOverrides {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overrides.Clone()
}

func (s *Store) phaseLocked() Phase {
	switch {
	case s.pending != nil:
		return PhaseApplying
	case s.draft.Equal(s.applied):
		return PhaseSynced
	default:
		return PhaseDiverged
	}
}

// SetDraft replaces the draft. Applied is untouched.
func (s *Store) SetDraft(ctx context.Context, f models.Filters) models.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = f.Sanitize()
	s.persistDraftLocked(ctx)
	return s.draft.Clone()
}

// UpdateDraft applies fn to a copy of the draft and stores the result.
func (s *Store) UpdateDraft(ctx context.Context, fn func(f *models.Filters)) models.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.draft.Clone()
	fn(&next)
	s.draft = next.Sanitize()
	s.persistDraftLocked(ctx)
	return s.draft.Clone()
}

// ResetAll puts the draft back to the defaults. It does not apply.
func (s *Store) ResetAll(ctx context.Context) models.Filters {
	return s.SetDraft(ctx, models.DefaultFilters())
}

// Apply schedules applied := target (the current draft when target is nil)
// after the store's delay. A pending apply is cancelled first, so the last
// call always wins. On completion the location is replaced with the encoded
// target. The returned channel yields true once this apply has landed, or
// false if it was superseded or cancelled.
func (s *Store) Apply(target *models.Filters) <-chan bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next models.Filters
	if target != nil {
		next = target.Sanitize()
	} else {
		next = s.draft.Clone()
	}

	s.cancelPendingLocked("superseded")

	p := &pendingApply{done: make(chan bool, 1)}
	s.pending = p
	p.timer = time.AfterFunc(s.delay(), func() {
		s.completeApply(p, next)
	})
	return p.done
}

func (s *Store) completeApply(p *pendingApply, next models.Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A newer Apply may have replaced p after its timer already fired.
	if s.pending != p {
		return
	}
	s.pending = nil
	s.applied = next
	s.loc.Replace(query.Encode(next))
	metrics.RecordApply("applied")
	p.done <- true
}

// SetSort changes the draft sort and applies the draft immediately, the way
// the result list sort buttons do.
func (s *Store) SetSort(ctx context.Context, by models.SortKey, dir models.SortDir) <-chan bool {
	next := s.UpdateDraft(ctx, func(f *models.Filters) {
		if by.Valid() {
			f.SortBy = by
		}
		if dir.Valid() {
			f.SortDir = dir
		}
	})
	return s.Apply(&next)
}

// Close cancels any pending apply.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPendingLocked("cancelled")
}

func (s *Store) cancelPendingLocked(outcome string) {
	if s.pending == nil {
		return
	}
	s.pending.timer.Stop()
	s.pending.done <- false
	s.pending = nil
	metrics.RecordApply(outcome)
}

// Presets returns a copy of the saved presets in save order.
func (s *Store) Presets() []models.Preset {
	return s.Snapshot().Presets
}

// SavePreset stores a copy of the current draft under the trimmed name,
// replacing any preset with the same name, and persists the collection.
func (s *Store) SavePreset(ctx context.Context, name string) (models.Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Preset{}, ErrEmptyPresetName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := models.Preset{Name: name, Filters: s.draft.Clone()}
	next := slices.DeleteFunc(slices.Clone(s.presets), func(existing models.Preset) bool {
		return existing.Name == name
	})
	s.presets = append(next, p)
	s.writeJSON(ctx, PresetsKey, s.presets)
	return models.Preset{Name: p.Name, Filters: p.Filters.Clone()}, nil
}

// LoadPreset replaces the draft with a sanitised copy of the named preset.
// It does not apply.
func (s *Store) LoadPreset(ctx context.Context, name string) (models.Filters, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.presets {
		if p.Name == name {
			s.draft = p.Filters.Sanitize()
			s.persistDraftLocked(ctx)
			return s.draft.Clone(), nil
		}
	}
	return models.Filters{}, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
}

// MarkSubmitted overrides the status of id to Submitted.
func (s *Store) MarkSubmitted(ctx context.Context, id string) error {
	return s.SetStatus(ctx, id, models.StatusSubmitted)
}

// SetStatus records a local status override and persists the whole map.
// It takes effect on the next read without an apply.
func (s *Store) SetStatus(ctx context.Context, id string, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.overrides.Clone()
	next[id] = status
	s.overrides = next
	s.writeJSON(ctx, StatusOverridesKey, s.overrides)
	return nil
}

func (s *Store) persistDraftLocked(ctx context.Context) {
	s.writeJSON(ctx, LastViewKey, s.draft)
}

// readJSON loads key into dst. It reports false when the entry is missing
// or unreadable; neither is an error for the caller.
func (s *Store) readJSON(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		log.Printf("state: read %s failed: %v", key, err)
		metrics.RecordPersistError("read")
		return false
	}
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Printf("state: ignoring corrupt %s: %v", key, err)
		metrics.RecordPersistError("decode")
		return false
	}
	return true
}

// writeJSON persists value under key. Failures are logged and dropped.
func (s *Store) writeJSON(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("state: encode %s failed: %v", key, err)
		metrics.RecordPersistError("write")
		return
	}
	if err := s.kv.Put(ctx, key, raw); err != nil {
		log.Printf("state: write %s failed: %v", key, err)
		metrics.RecordPersistError("write")
	}
}
