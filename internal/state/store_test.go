package state

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/david/gsa-finder/internal/models"
)

func delays(ds ...time.Duration) func() time.Duration {
	var mu sync.Mutex
	i := 0
	return func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		d := ds[min(i, len(ds)-1)]
		i++
		return d
	}
}

func wait(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("apply did not resolve")
		return false
	}
}

type failingPersister struct{}

func (failingPersister) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("storage unavailable")
}

func (failingPersister) Put(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func TestNew_URLTakesPrecedenceOverPersisted(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryPersister()
	stored := models.DefaultFilters()
	stored.NAICS = models.StringPtr("541512")
	stored.Agencies = []string{"DOE"}
	raw, _ := json.Marshal(stored)
	_ = kv.Put(ctx, LastViewKey, raw)

	loc := NewMemoryLocation(url.Values{"naics": {"541511"}})
	s := New(ctx, Options{Persister: kv, Location: loc, Delay: delays(0)})

	snap := s.Snapshot()
	if *snap.Draft.NAICS != "541511" {
		t.Fatalf("expected url naics, got %s", *snap.Draft.NAICS)
	}
	if len(snap.Draft.Agencies) != 1 || snap.Draft.Agencies[0] != "DOE" {
		t.Fatalf("expected persisted agencies, got %v", snap.Draft.Agencies)
	}
	if !snap.Applied.Equal(snap.Draft) || snap.Phase != PhaseSynced {
		t.Fatalf("expected applied to start equal to draft, phase %s", snap.Phase)
	}
}

func TestNew_CorruptPersistedFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryPersister()
	_ = kv.Put(ctx, LastViewKey, []byte("{not json"))
	_ = kv.Put(ctx, PresetsKey, []byte(`[{"name":"a","filters":`))
	_ = kv.Put(ctx, StatusOverridesKey, []byte(`{"x":"Submitted","y":"Bogus"}`))

	s := New(ctx, Options{Persister: kv, Delay: delays(0)})
	snap := s.Snapshot()

	if !snap.Draft.Equal(models.DefaultFilters()) {
		t.Fatalf("expected default draft, got %+v", snap.Draft)
	}
	if len(snap.Presets) != 0 {
		t.Fatalf("expected no presets, got %v", snap.Presets)
	}
	if len(snap.Overrides) != 1 || snap.Overrides["x"] != models.StatusSubmitted {
		t.Fatalf("expected only valid override kept, got %v", snap.Overrides)
	}
}

func TestNew_UnavailableStorageIsNotFatal(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, Options{Persister: failingPersister{}, Delay: delays(0)})

	s.SetDraft(ctx, models.DefaultFilters())
	if _, err := s.SavePreset(ctx, "mine"); err != nil {
		t.Fatalf("save should ignore write failures, got %v", err)
	}
	if err := s.MarkSubmitted(ctx, "a1"); err != nil {
		t.Fatalf("mark should ignore write failures, got %v", err)
	}
	if len(s.Presets()) != 1 || s.Overrides()["a1"] != models.StatusSubmitted {
		t.Fatalf("in-memory state should still change")
	}
}

func TestDraftMutation_DivergesWithoutTouchingApplied(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, Options{Delay: delays(0)})

	s.UpdateDraft(ctx, func(f *models.Filters) { f.Keywords = []string{"cloud"} })

	snap := s.Snapshot()
	if snap.Phase != PhaseDiverged {
		t.Fatalf("expected diverged, got %s", snap.Phase)
	}
	if len(snap.Applied.Keywords) != 0 {
		t.Fatalf("applied changed: %v", snap.Applied.Keywords)
	}

	s.UpdateDraft(ctx, func(f *models.Filters) { f.Keywords = nil })
	if p := s.Phase(); p != PhaseSynced {
		t.Fatalf("expected synced after reverting draft, got %s", p)
	}
}

func TestApply_SetsAppliedAndReplacesLocation(t *testing.T) {
	ctx := context.Background()
	loc := NewMemoryLocation(url.Values{"stale": {"1"}})
	s := New(ctx, Options{Location: loc, Delay: delays(20 * time.Millisecond)})

	s.UpdateDraft(ctx, func(f *models.Filters) {
		f.NAICS = models.StringPtr("541511")
		f.Period = models.NextDays(30)
	})

	done := s.Apply(nil)
	if p := s.Phase(); p != PhaseApplying {
		t.Fatalf("expected applying, got %s", p)
	}
	if !wait(t, done) {
		t.Fatal("expected apply to land")
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseSynced || *snap.Applied.NAICS != "541511" {
		t.Fatalf("unexpected state after apply: %+v", snap)
	}
	q := loc.Query()
	if q.Get("naics") != "541511" || q.Get("period") != "next:30" || q.Get("stale") != "" {
		t.Fatalf("location not replaced: %v", q)
	}
}

func TestApply_ExplicitTarget(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, Options{Delay: delays(0)})

	target := models.DefaultFilters()
	target.SortBy = models.SortByFitScore
	target.Period = models.Period{Type: models.PeriodNext, Days: 15}
	if !wait(t, s.Apply(&target)) {
		t.Fatal("expected apply to land")
	}

	applied := s.Applied()
	if applied.SortBy != models.SortByFitScore || applied.Period.IsNext() {
		t.Fatalf("expected sanitised target applied, got %+v", applied)
	}
	if s.Draft().SortBy != models.SortByDueDate {
		t.Fatal("explicit target must not rewrite the draft")
	}
}

func TestApply_LastCallWins(t *testing.T) {
	ctx := context.Background()
	loc := NewMemoryLocation(nil)
	s := New(ctx, Options{Location: loc, Delay: delays(200*time.Millisecond, 10*time.Millisecond)})

	first := models.DefaultFilters()
	first.Keywords = []string{"first"}
	second := models.DefaultFilters()
	second.Keywords = []string{"second"}

	slow := s.Apply(&first)
	fast := s.Apply(&second)

	if wait(t, slow) {
		t.Fatal("superseded apply reported as landed")
	}
	if !wait(t, fast) {
		t.Fatal("expected last apply to land")
	}

	time.Sleep(300 * time.Millisecond)
	if kw := s.Applied().Keywords; len(kw) != 1 || kw[0] != "second" {
		t.Fatalf("stale apply overwrote result: %v", kw)
	}
	if loc.Query().Get("kw") != "second" {
		t.Fatalf("location holds stale query: %v", loc.Query())
	}
}

func TestClose_CancelsPendingApply(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, Options{Delay: delays(time.Hour)})
	done := s.Apply(nil)
	s.Close()
	if wait(t, done) {
		t.Fatal("cancelled apply reported as landed")
	}
	if p := s.Phase(); p != PhaseSynced {
		t.Fatalf("expected synced after cancel, got %s", p)
	}
}

func TestResetAll_OnlyTouchesDraft(t *testing.T) {
	ctx := context.Background()
	loc := NewMemoryLocation(url.Values{"naics": {"541511"}, "sortDir": {"desc"}})
	s := New(ctx, Options{Location: loc, Delay: delays(0)})

	draft := s.ResetAll(ctx)
	if !draft.Equal(models.DefaultFilters()) {
		t.Fatalf("expected default draft, got %+v", draft)
	}
	if *s.Applied().NAICS != "541511" {
		t.Fatal("reset must not touch applied")
	}
	if loc.Query().Get("naics") != "541511" {
		t.Fatal("reset must not touch the location")
	}
	if s.Phase() != PhaseDiverged {
		t.Fatalf("expected diverged, got %s", s.Phase())
	}
}

func TestSetSort_AppliesImmediately(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, Options{Delay: delays(0)})

	if !wait(t, s.SetSort(ctx, models.SortByPercentComplete, models.SortDesc)) {
		t.Fatal("expected sort apply to land")
	}
	a := s.Applied()
	if a.SortBy != models.SortByPercentComplete || a.SortDir != models.SortDesc {
		t.Fatalf("unexpected applied sort %s/%s", a.SortBy, a.SortDir)
	}
}

func TestSavePreset_OverwritesByName(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryPersister()
	s := New(ctx, Options{Persister: kv, Delay: delays(0)})

	s.UpdateDraft(ctx, func(f *models.Filters) { f.Agencies = []string{"GSA"} })
	if _, err := s.SavePreset(ctx, "Mine"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SavePreset(ctx, "Other"); err != nil {
		t.Fatal(err)
	}

	s.UpdateDraft(ctx, func(f *models.Filters) { f.Agencies = []string{"VA"} })
	if _, err := s.SavePreset(ctx, "  Mine  "); err != nil {
		t.Fatal(err)
	}

	presets := s.Presets()
	if len(presets) != 2 {
		t.Fatalf("expected 2 presets after overwrite, got %d", len(presets))
	}
	var mine *models.Preset
	for i := range presets {
		if presets[i].Name == "Mine" {
			mine = &presets[i]
		}
	}
	if mine == nil || mine.Filters.Agencies[0] != "VA" {
		t.Fatalf("expected overwritten preset, got %+v", presets)
	}

	raw, ok, _ := kv.Get(ctx, PresetsKey)
	var persisted []models.Preset
	if !ok || json.Unmarshal(raw, &persisted) != nil || len(persisted) != 2 {
		t.Fatalf("presets not persisted: %s", raw)
	}

	if _, err := s.SavePreset(ctx, "mine"); err != nil {
		t.Fatal(err)
	}
	if len(s.Presets()) != 3 {
		t.Fatal("preset names must be case-sensitive")
	}
}

func TestSavePreset_RejectsBlankName(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, Options{Delay: delays(0)})
	for _, name := range []string{"", "   ", "\t"} {
		if _, err := s.SavePreset(ctx, name); !errors.Is(err, ErrEmptyPresetName) {
			t.Fatalf("%q: expected ErrEmptyPresetName, got %v", name, err)
		}
	}
	if len(s.Presets()) != 0 {
		t.Fatal("blank preset was saved")
	}
}

func TestLoadPreset_SanitizesAndDoesNotApply(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryPersister()
	corrupt := models.DefaultFilters()
	corrupt.Vehicle = models.StringPtr("Alliant 2")
	corrupt.Period = models.Period{Type: models.PeriodNext, Days: 45}
	raw, _ := json.Marshal([]models.Preset{{Name: "Old", Filters: corrupt}})
	_ = kv.Put(ctx, PresetsKey, raw)

	s := New(ctx, Options{Persister: kv, Delay: delays(0)})

	draft, err := s.LoadPreset(ctx, "Old")
	if err != nil {
		t.Fatal(err)
	}
	if draft.Period.IsNext() || *draft.Vehicle != "Alliant 2" {
		t.Fatalf("expected sanitised preset, got %+v", draft)
	}
	if s.Applied().Vehicle != nil {
		t.Fatal("load must not apply")
	}

	if _, err := s.LoadPreset(ctx, "old"); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}
}

func TestMarkSubmitted_PersistsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryPersister()
	s := New(ctx, Options{Persister: kv, Delay: delays(0)})

	if err := s.MarkSubmitted(ctx, "opp-7"); err != nil {
		t.Fatal(err)
	}
	if s.Phase() != PhaseSynced {
		t.Fatal("status override must not affect filter phase")
	}
	if err := s.SetStatus(ctx, "opp-8", models.Status("Pending")); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	reloaded := New(ctx, Options{Persister: kv, Delay: delays(0)})
	if reloaded.Overrides()["opp-7"] != models.StatusSubmitted {
		t.Fatalf("override not restored: %v", reloaded.Overrides())
	}
}

func TestDraft_PersistsAsLastView(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryPersister()
	s := New(ctx, Options{Persister: kv, Delay: delays(0)})
	s.UpdateDraft(ctx, func(f *models.Filters) { f.MinFitScore = models.FloatPtr(55) })

	reloaded := New(ctx, Options{Persister: kv, Delay: delays(0)})
	if mf := reloaded.Draft().MinFitScore; mf == nil || *mf != 55 {
		t.Fatalf("expected restored draft, got %v", mf)
	}
}
