package replay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/sim"
)

// #region types
// TickResult is the outcome of one replayed tick.
type TickResult struct {
	Tick     int64
	Snapshot sim.Snapshot
	Stats    sim.TickStats
}

// Mismatch is an expected value that the replay did not reproduce.
type Mismatch struct {
	Tick   int64
	Object string
	Kind   objstate.Kind
	Want   string
	Got    string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("tick %d %s/%s: want %s, got %s", m.Tick, m.Object, m.Kind, m.Want, m.Got)
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTicks   int
	Updates      int
	Soaked       int
	DroppedEdges int
}

// #endregion types

// #region build
// ErrNoWorld is returned for move and despawn events when the scene runs on a
// backend that cannot be edited from here.
var ErrNoWorld = errors.New("event needs the in-memory world")

// Build constructs the in-memory world and simulator described by f.
func Build(f *Fixture) (*sim.Simulator, *physics.World, map[string]physics.BodyID, error) {
	wcfg := physics.DefaultWorldConfig()
	if f.TimeStep > 0 {
		wcfg.TimeStep = f.TimeStep
	}
	w := physics.NewWorld(wcfg)
	if err := Populate(w, f); err != nil {
		return nil, nil, nil, err
	}
	s, bodies, err := Attach(f, w, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return s, w, bodies, nil
}

// Populate adds the fixture's bodies to w in declaration order.
func Populate(w *physics.World, f *Fixture) error {
	seen := make(map[string]bool, len(f.Bodies))
	for i := range f.Bodies {
		b := &f.Bodies[i]
		if seen[b.Name] {
			return fmt.Errorf("duplicate body %q", b.Name)
		}
		seen[b.Name] = true
		w.AddBody(b.ToBodySpec())
	}
	return nil
}

// Attach imports the fixture's objects into a simulator over backend. The
// backend must already hold the fixture's bodies with ids assigned from 1 in
// declaration order, which is what Populate produces. Baked values from a
// store fill in kinds the fixture leaves unbaked.
func Attach(f *Fixture, backend physics.Backend, baked map[string]map[objstate.Kind]any) (*sim.Simulator, map[string]physics.BodyID, error) {
	bodies := make(map[string]physics.BodyID, len(f.Bodies))
	for i, b := range f.Bodies {
		bodies[b.Name] = physics.BodyID(i + 1)
	}

	cfg := sim.DefaultConfig()
	if f.MaxParticles > 0 {
		cfg.MaxParticles = f.MaxParticles
	}
	s := sim.New(backend, nil, cfg)
	for i := range f.Objects {
		spec, err := f.Objects[i].ToObjectSpec(bodies, s.Registry())
		if err != nil {
			return nil, nil, err
		}
		for k, v := range baked[spec.Name] {
			if spec.Baked == nil {
				spec.Baked = make(map[objstate.Kind]any)
			}
			if _, ok := spec.Baked[k]; !ok {
				spec.Baked[k] = v
			}
		}
		if _, err := s.Import(spec); err != nil {
			return nil, nil, err
		}
	}
	return s, bodies, nil
}

// #endregion build

// #region replay
// Run replays the fixture on a fresh in-memory world. Identical fixtures
// always produce identical results.
func Run(f *Fixture, observers ...sim.Observer) ([]TickResult, error) {
	s, w, bodies, err := Build(f)
	if err != nil {
		return nil, fmt.Errorf("build fixture: %w", err)
	}
	defer s.Close()
	return Play(s, w, bodies, f, observers...)
}

// Play steps s for f.Ticks ticks, applying each event right before the tick
// it names. w may be nil when s runs on a remote backend; move events then fail.
// The caller closes s.
func Play(s *sim.Simulator, w *physics.World, bodies map[string]physics.BodyID, f *Fixture, observers ...sim.Observer) ([]TickResult, error) {
	for _, o := range observers {
		s.AddObserver(o)
	}

	events := make(map[int64][]FixtureEvent)
	for _, ev := range f.Events {
		events[ev.Tick] = append(events[ev.Tick], ev)
	}

	results := make([]TickResult, 0, f.Ticks)
	for i := 0; i < f.Ticks; i++ {
		next := s.Tick() + 1
		for _, ev := range events[next] {
			if err := apply(s, w, bodies, ev); err != nil {
				return results, fmt.Errorf("tick %d %s: %w", next, ev.Type, err)
			}
		}
		if err := s.Step(); err != nil {
			return results, err
		}
		results = append(results, TickResult{Tick: s.Tick(), Snapshot: s.Snapshot(), Stats: s.LastStats()})
	}
	s.Finish()
	return results, nil
}

func apply(s *sim.Simulator, w *physics.World, bodies map[string]physics.BodyID, ev FixtureEvent) error {
	switch ev.Type {
	case EventToggle:
		if ev.Value == nil {
			return fmt.Errorf("toggle %s: missing value", ev.Object)
		}
		obj, ok := s.Scene().Object(ev.Object)
		if !ok {
			return fmt.Errorf("toggle %s: %w", ev.Object, sim.ErrUnknownObject)
		}
		st, ok := obj.State(objstate.KindToggledOn)
		if !ok {
			return fmt.Errorf("toggle %s: object has no %s", ev.Object, objstate.KindToggledOn)
		}
		return st.SetValue(*ev.Value)
	case EventMove:
		if w == nil {
			return ErrNoWorld
		}
		id, ok := bodies[ev.Body]
		if !ok || ev.Position == nil {
			return fmt.Errorf("move %q: unknown body or missing position", ev.Body)
		}
		return w.SetBodyPose(id, physics.Pose{Position: mgl64.Vec3(*ev.Position), Orientation: mgl64.QuatIdent()})
	case EventRemove:
		return s.Remove(ev.Object)
	case EventDespawn:
		if w == nil {
			return ErrNoWorld
		}
		id, ok := bodies[ev.Body]
		if !ok {
			return fmt.Errorf("despawn %q: unknown body", ev.Body)
		}
		if err := w.RemoveBody(id); err != nil {
			return fmt.Errorf("despawn %q: %w", ev.Body, err)
		}
		delete(bodies, ev.Body)
		return nil
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// #endregion replay

// #region check
// Check compares the replay against expected values. Values are compared as
// decoded JSON so formatting differences do not matter.
func Check(results []TickResult, expected []FixtureExpected) []Mismatch {
	byTick := make(map[int64]sim.Snapshot, len(results))
	for _, r := range results {
		byTick[r.Tick] = r.Snapshot
	}

	var out []Mismatch
	for _, e := range expected {
		m := Mismatch{Tick: e.Tick, Object: e.Object, Kind: objstate.Kind(e.Kind), Want: string(e.Value)}
		snap, ok := byTick[e.Tick]
		if !ok {
			m.Got = "<tick not replayed>"
			out = append(out, m)
			continue
		}
		v, ok := snap.Value(e.Object, objstate.Kind(e.Kind))
		if !ok {
			m.Got = "<missing>"
			out = append(out, m)
			continue
		}
		got, err := objstate.EncodeValue(v)
		if err != nil {
			m.Got = err.Error()
			out = append(out, m)
			continue
		}
		m.Got = string(got)
		if !sameJSON(e.Value, got) {
			out = append(out, m)
		}
	}
	return out
}

func sameJSON(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

// #endregion check

// #region determinism
// Equal reports whether two replays produced identical snapshots tick by tick.
func Equal(a, b []TickResult) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Tick != b[i].Tick {
			return false
		}
		ja, errA := json.Marshal(a[i].Snapshot)
		jb, errB := json.Marshal(b[i].Snapshot)
		if errA != nil || errB != nil || !bytes.Equal(ja, jb) {
			return false
		}
	}
	return true
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []TickResult) ReplaySummary {
	s := ReplaySummary{TotalTicks: len(results)}
	for _, r := range results {
		s.Updates += r.Stats.Updates
		s.Soaked += r.Stats.Soaked
		s.DroppedEdges += r.Stats.DroppedEdges
	}
	return s
}

// #endregion determinism
