package objstate

import (
	"errors"
	"fmt"
	"log"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// #region kinds
// Kind names a category of derived per-object state.
type Kind string

const (
	KindPose          Kind = "pose"
	KindAABB          Kind = "aabb"
	KindContactBodies Kind = "contact_bodies"
	KindToggledOn     Kind = "toggled_on"
	KindSoaked        Kind = "soaked"
	KindWaterSource   Kind = "water_source"
)

// #endregion kinds

// #region errors
var (
	// ErrConfiguration marks setup-time failures: unknown kinds, missing required
	// dependencies, required cycles. These abort object construction.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnsupportedOperation is returned by SetValue on read-only derived states.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrValueType is returned by SetValue when the value has the wrong Go type for the kind.
	ErrValueType = errors.New("wrong value type")
)

// ConfigError describes a configuration error for one object.
type ConfigError struct {
	Object string
	Kind   Kind
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%v: object %q", ErrConfiguration, e.Object)
	if e.Kind != "" {
		msg += fmt.Sprintf(" kind %q", e.Kind)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrConfiguration) true.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigError) Unwrap() error { return e.Err }

// #endregion errors

// #region interfaces
// Simulator is the view of the running simulation a state gets during Update.
type Simulator interface {
	Backend() physics.Backend
	Particles() physics.ParticleSystem
	Tick() int64
}

// Owner is the non-owning back-reference a state keeps to its object.
type Owner interface {
	Name() string
	BodyID() physics.BodyID
	State(kind Kind) (State, bool)
}

// State is one derived fact about one object, recomputed each tick.
type State interface {
	Kind() Kind
	Online() bool

	// Update recomputes the value from the backend. Unavailable backend data
	// leaves the previous value in place.
	Update(sim Simulator)

	// Value returns the cached value; it belongs to the tick reported by UpdatedAt.
	Value() any

	// SetValue overrides the cached value.
	SetValue(v any) error

	// UpdatedAt returns the tick of the last Update call, or -1 before the first.
	UpdatedAt() int64
}

// #endregion interfaces

// #region base
type base struct {
	kind    Kind
	owner   Owner
	online  bool
	updated int64
	warned  bool
}

func newBase(kind Kind, owner Owner, online bool) base {
	return base{kind: kind, owner: owner, online: online, updated: -1}
}

func (b *base) Kind() Kind       { return b.kind }
func (b *base) Online() bool     { return b.online }
func (b *base) UpdatedAt() int64 { return b.updated }

func (b *base) touch(sim Simulator) {
	b.updated = sim.Tick()
}

// transient records a backend failure that leaves the value untouched. Logged once per state.
func (b *base) transient(err error) {
	if b.warned {
		return
	}
	b.warned = true
	log.Printf("objstate: %s/%s: backend unavailable, keeping previous value: %v", b.owner.Name(), b.kind, err)
}

// #endregion base

// #region value-helpers
// ValueAs returns the state's value as T. ok is false when the value is absent or of another type.
func ValueAs[T any](s State) (T, bool) {
	v, ok := s.Value().(T)
	return v, ok
}

// #endregion value-helpers
