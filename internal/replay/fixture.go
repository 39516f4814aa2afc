package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a scene,
// scripted per-tick events and the values expected after given ticks.
type Fixture struct {
	Description  string            `json:"description"`
	TimeStep     float64           `json:"time_step"`
	MaxParticles int               `json:"max_particles,omitempty"`
	Ticks        int               `json:"ticks"`
	Bodies       []FixtureBody     `json:"bodies"`
	Objects      []FixtureObject   `json:"objects"`
	Events       []FixtureEvent    `json:"events"`
	Expected     []FixtureExpected `json:"expected"`
}

// FixtureBody mirrors physics.BodySpec with JSON tags.
type FixtureBody struct {
	Name        string                `json:"name"`
	Position    [3]float64            `json:"position"`
	HalfExtents [3]float64            `json:"half_extents"`
	Velocity    [3]float64            `json:"velocity"`
	Links       map[string][3]float64 `json:"links,omitempty"`
}

// FixtureObject mirrors objstate.ObjectSpec. Online defaults to true; Baked
// values use the state value JSON encoding.
type FixtureObject struct {
	Name   string                     `json:"name"`
	Body   string                     `json:"body"`
	Kinds  []string                   `json:"kinds"`
	Online *bool                      `json:"online,omitempty"`
	Baked  map[string]json.RawMessage `json:"baked,omitempty"`
}

// Event types.
const (
	EventToggle  = "toggle"  // set toggled_on of Object to Value
	EventMove    = "move"    // teleport Body to Position
	EventRemove  = "remove"  // remove Object from the scene
	EventDespawn = "despawn" // delete Body from the world
)

// FixtureEvent is applied right before the tick it names is stepped.
type FixtureEvent struct {
	Tick     int64       `json:"tick"`
	Type     string      `json:"type"`
	Object   string      `json:"object,omitempty"`
	Body     string      `json:"body,omitempty"`
	Value    *bool       `json:"value,omitempty"`
	Position *[3]float64 `json:"position,omitempty"`
}

// FixtureExpected is the value of one state after a tick.
type FixtureExpected struct {
	Tick   int64           `json:"tick"`
	Object string          `json:"object"`
	Kind   string          `json:"kind"`
	Value  json.RawMessage `json:"value"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToBodySpec converts a FixtureBody to a physics.BodySpec.
func (b *FixtureBody) ToBodySpec() physics.BodySpec {
	links := make(map[string]mgl64.Vec3, len(b.Links))
	for name, off := range b.Links {
		links[name] = off
	}
	return physics.BodySpec{
		Name:        b.Name,
		Position:    b.Position,
		HalfExtents: b.HalfExtents,
		Velocity:    b.Velocity,
		Links:       links,
	}
}

// IsOnline reports whether the object's states query the live backend.
func (o *FixtureObject) IsOnline() bool { return o.Online == nil || *o.Online }

// Online reports whether every object of the fixture runs online. A scene
// with any offline object records as an offline run.
func (f *Fixture) Online() bool {
	for i := range f.Objects {
		if !f.Objects[i].IsOnline() {
			return false
		}
	}
	return true
}

// ToObjectSpec converts a FixtureObject, resolving its body name and decoding baked values with reg.
func (o *FixtureObject) ToObjectSpec(bodies map[string]physics.BodyID, reg *objstate.Registry) (objstate.ObjectSpec, error) {
	id, ok := bodies[o.Body]
	if !ok && o.Body != "" {
		return objstate.ObjectSpec{}, fmt.Errorf("object %s: unknown body %q", o.Name, o.Body)
	}
	spec := objstate.ObjectSpec{
		Name:   o.Name,
		Body:   id,
		Online: o.IsOnline(),
		Kinds:  make([]objstate.Kind, len(o.Kinds)),
	}
	for i, k := range o.Kinds {
		spec.Kinds[i] = objstate.Kind(k)
	}
	if len(o.Baked) > 0 {
		spec.Baked = make(map[objstate.Kind]any, len(o.Baked))
		for k, raw := range o.Baked {
			v, err := reg.DecodeValue(objstate.Kind(k), raw)
			if err != nil {
				return objstate.ObjectSpec{}, fmt.Errorf("object %s baked %s: %w", o.Name, k, err)
			}
			if v != nil {
				spec.Baked[objstate.Kind(k)] = v
			}
		}
	}
	return spec, nil
}

// #endregion fixture-loader
