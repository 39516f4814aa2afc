package replay

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/metrics"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/sim"
)

func loadKitchen(t *testing.T) *Fixture {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", "kitchen.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	return f
}

// #region fixture-tests

// TestFixture_Kitchen replays the kitchen fixture and compares every expected
// value. This is the regression baseline for ordering, soaking and offline seeding.
func TestFixture_Kitchen(t *testing.T) {
	f := loadKitchen(t)

	results, err := Run(f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != f.Ticks {
		t.Fatalf("expected %d results, got %d", f.Ticks, len(results))
	}
	for _, m := range Check(results, f.Expected) {
		t.Errorf("mismatch: %s", m)
	}

	// Sink is gone after tick 7
	if _, ok := results[7].Snapshot.Value("sink", objstate.KindToggledOn); ok {
		t.Error("expected sink removed from tick 7 on")
	}

	s := Summarize(results)
	if s.TotalTicks != 8 {
		t.Errorf("expected 8 ticks, got %d", s.TotalTicks)
	}
	if s.Soaked != 1 {
		t.Errorf("expected 1 soak event, got %d", s.Soaked)
	}
}

func TestFixture_Deterministic(t *testing.T) {
	f := loadKitchen(t)

	a, err := Run(f)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	b, err := Run(f)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !Equal(a, b) {
		t.Fatal("expected identical replays")
	}

	// A changed script diverges
	f.Events = f.Events[:0]
	c, err := Run(f)
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if Equal(a, c) {
		t.Fatal("expected replays with different events to differ")
	}
}

func TestFixture_ObserversSeeEveryTick(t *testing.T) {
	f := loadKitchen(t)
	tracker := metrics.NewPredicateTracker(metrics.Predicate{Object: "sponge", Kind: objstate.KindSoaked})

	if _, err := Run(f, tracker); err != nil {
		t.Fatalf("Run: %v", err)
	}
	tr := tracker.Transitions()
	if len(tr) != 1 || tr[0].Tick != 4 {
		t.Fatalf("expected single transition at tick 4, got %+v", tr)
	}
}

// #endregion fixture-tests

// #region check-tests
func TestCheck_ReportsMismatches(t *testing.T) {
	f := loadKitchen(t)
	results, err := Run(f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	expected := []FixtureExpected{
		{Tick: 3, Object: "sponge", Kind: "soaked", Value: json.RawMessage("true")},
		{Tick: 99, Object: "sponge", Kind: "soaked", Value: json.RawMessage("true")},
		{Tick: 2, Object: "ghost", Kind: "pose", Value: json.RawMessage("null")},
	}
	mm := Check(results, expected)
	if len(mm) != 3 {
		t.Fatalf("expected 3 mismatches, got %d: %v", len(mm), mm)
	}
	if mm[0].Got != "false" {
		t.Errorf("expected got=false, got %s", mm[0].Got)
	}
	if mm[1].Got != "<tick not replayed>" {
		t.Errorf("unexpected got for tick 99: %s", mm[1].Got)
	}
	if mm[2].Got != "<missing>" {
		t.Errorf("unexpected got for ghost: %s", mm[2].Got)
	}
}

// #endregion check-tests

// #region error-tests
func TestRun_ConfigErrorFailsBuild(t *testing.T) {
	f := &Fixture{
		Ticks:   1,
		Objects: []FixtureObject{{Name: "towel", Kinds: []string{"soaked"}}},
	}
	_, err := Run(f)
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !errors.Is(err, objstate.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestRun_BadEvent(t *testing.T) {
	f := loadKitchen(t)
	f.Events = []FixtureEvent{{Tick: 2, Type: EventRemove, Object: "ghost"}}

	results, err := Run(f)
	if err == nil {
		t.Fatal("expected error for unknown object")
	}
	if !errors.Is(err, sim.ErrUnknownObject) {
		t.Errorf("expected ErrUnknownObject, got %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 completed tick, got %d", len(results))
	}
}

func TestRun_UnknownBody(t *testing.T) {
	f := &Fixture{
		Ticks:   1,
		Objects: []FixtureObject{{Name: "cup", Body: "table", Kinds: []string{"pose"}}},
	}
	if _, err := Run(f); err == nil {
		t.Fatal("expected unknown body error")
	}
}

func TestRun_DespawnDropsContacts(t *testing.T) {
	f := &Fixture{
		TimeStep: 0.1,
		Ticks:    3,
		Bodies: []FixtureBody{
			{Name: "counter", Position: [3]float64{0, 0, 0}, HalfExtents: [3]float64{1, 1, 0.1}},
			{Name: "mug", Position: [3]float64{0, 0, 0.15}, HalfExtents: [3]float64{0.1, 0.1, 0.1}},
		},
		Objects: []FixtureObject{{Name: "counter", Body: "counter", Kinds: []string{"contact_bodies"}}},
		Events:  []FixtureEvent{{Tick: 3, Type: EventDespawn, Body: "mug"}},
	}
	results, err := Run(f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	contacts := func(tick int64) objstate.ContactSet {
		for _, r := range results {
			if r.Tick == tick {
				v, _ := r.Snapshot.Value("counter", objstate.KindContactBodies)
				set, _ := v.(objstate.ContactSet)
				return set
			}
		}
		t.Fatalf("no result for tick %d", tick)
		return nil
	}
	if len(contacts(2)) != 1 {
		t.Fatalf("expected the mug in contact at tick 2, got %v", contacts(2))
	}
	if len(contacts(3)) != 0 {
		t.Errorf("expected no contacts after despawn, got %v", contacts(3))
	}
}

func TestFixture_Online(t *testing.T) {
	f := loadKitchen(t)
	if f.Online() {
		t.Error("expected kitchen to be offline: cup runs from baked values")
	}
	online := true
	for i := range f.Objects {
		f.Objects[i].Online = &online
	}
	if !f.Online() {
		t.Error("expected all-online fixture to report online")
	}
	f.Objects[0].Online = nil
	if !f.Online() {
		t.Error("expected unset online to default to true")
	}
}

func TestLoadFixture_Errors(t *testing.T) {
	if _, err := LoadFixture(filepath.Join("testdata", "missing.json")); err == nil {
		t.Fatal("expected read error")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFixture(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPlay_MoveNeedsWorld(t *testing.T) {
	f := loadKitchen(t)
	w := physics.NewWorld(physics.DefaultWorldConfig())
	if err := Populate(w, f); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	s, bodies, err := Attach(f, w, nil)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer s.Close()

	results, err := Play(s, nil, bodies, f)
	if !errors.Is(err, ErrNoWorld) {
		t.Fatalf("expected ErrNoWorld, got %v", err)
	}
	if len(results) != 4 {
		t.Errorf("expected 4 ticks before the move event, got %d", len(results))
	}
}

func TestPopulate_DuplicateBody(t *testing.T) {
	f := &Fixture{Bodies: []FixtureBody{{Name: "box"}, {Name: "box"}}}
	if err := Populate(physics.NewWorld(physics.DefaultWorldConfig()), f); err == nil {
		t.Fatal("expected duplicate body error")
	}
}

// #endregion error-tests

// #region attach-tests
func TestAttach_StoreBakedFillsGaps(t *testing.T) {
	f := loadKitchen(t)
	stored := physics.Pose{Position: mgl64.Vec3{9, 9, 9}, Orientation: mgl64.QuatIdent()}
	baked := map[string]map[objstate.Kind]any{"cup": {objstate.KindPose: stored}}

	w := physics.NewWorld(physics.DefaultWorldConfig())
	if err := Populate(w, f); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	s, _, err := Attach(f, w, baked)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer s.Close()
	// The fixture's own baked pose wins
	v, _ := s.Snapshot().Value("cup", objstate.KindPose)
	if p, ok := v.(physics.Pose); !ok || !p.Position.ApproxEqual(mgl64.Vec3{-3, 0, 0}) {
		t.Errorf("expected fixture pose, got %v", v)
	}

	for i := range f.Objects {
		if f.Objects[i].Name == "cup" {
			f.Objects[i].Baked = nil
		}
	}
	w2 := physics.NewWorld(physics.DefaultWorldConfig())
	if err := Populate(w2, f); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	s2, bodies, err := Attach(f, w2, baked)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer s2.Close()
	v, _ = s2.Snapshot().Value("cup", objstate.KindPose)
	if p, ok := v.(physics.Pose); !ok || !p.ApproxEqual(stored) {
		t.Errorf("expected stored pose, got %v", v)
	}
	if bodies["cup"] != 4 {
		t.Errorf("expected cup body id 4, got %d", bodies["cup"])
	}
}

// #endregion attach-tests
