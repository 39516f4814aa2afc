package metrics

import (
	"fmt"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/sim"
)

// #region metric
// Metric is a tick observer that reports a named result set.
type Metric interface {
	sim.Observer
	Name() string
	Results() map[string]any
}
// #endregion metric

// #region predicate
// Predicate is a boolean state on one object, e.g. sponge/soaked.
type Predicate struct {
	Object string
	Kind   objstate.Kind
}

func (p Predicate) String() string { return fmt.Sprintf("%s/%s", p.Object, p.Kind) }

// Transition records a predicate changing value at a tick.
type Transition struct {
	Tick      int64     `json:"tick"`
	Predicate Predicate `json:"-"`
	Name      string    `json:"predicate"`
	Value     bool      `json:"value"`
}
// #endregion predicate

// #region contact-stats
// ContactStats is the per-object result of ContactMetric.
type ContactStats struct {
	TicksInContact int `json:"ticks_in_contact"`
	MaxContacts    int `json:"max_contacts"`
}
// #endregion contact-stats
