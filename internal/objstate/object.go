package objstate

import (
	"errors"
	"io"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/graph"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// #region object
// Object is a physical object and the states it owns, with their resolved update order.
type Object struct {
	name    string
	body    physics.BodyID
	online  bool
	states  map[Kind]State
	order   []Kind
	dropped []graph.Edge
}

func (o *Object) Name() string           { return o.name }
func (o *Object) BodyID() physics.BodyID { return o.body }
func (o *Object) Online() bool           { return o.online }

// State returns the instance of kind, if the object has it.
func (o *Object) State(kind Kind) (State, bool) {
	s, ok := o.states[kind]
	return s, ok
}

// Has reports whether the object owns a state of kind.
func (o *Object) Has(kind Kind) bool {
	_, ok := o.states[kind]
	return ok
}

// Value returns the cached value of kind.
func (o *Object) Value(kind Kind) (any, bool) {
	s, ok := o.states[kind]
	if !ok {
		return nil, false
	}
	return s.Value(), true
}

// Order returns the update order of the object's states.
func (o *Object) Order() []Kind {
	out := make([]Kind, len(o.order))
	copy(out, o.order)
	return out
}

// DroppedEdges returns the optional edges dropped while resolving the order.
func (o *Object) DroppedEdges() []graph.Edge {
	return o.dropped
}

// #endregion object

// #region update
// Update runs every state once, in resolved order, and returns how many ran.
func (o *Object) Update(sim Simulator) int {
	for _, k := range o.order {
		o.states[k].Update(sim)
	}
	return len(o.order)
}

// #endregion update

// #region close
// Close releases sub-resources owned by the object's states.
func (o *Object) Close() error {
	var errs []error
	for _, k := range o.order {
		if c, ok := o.states[k].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// #endregion close
