package store

import (
	"time"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
)

// #region run
// Run is one recorded simulation session.
type Run struct {
	RunID     string
	Scene     string
	Online    bool
	CreatedAt time.Time
}
// #endregion run

// #region state-value
// StateValue is one state value to persist. Value is a native state value
// (physics.Pose, objstate.ContactSet, bool, ...) or nil when absent.
type StateValue struct {
	Object string
	Kind   objstate.Kind
	Value  any
}

// StoredValue is a persisted state value as JSON.
type StoredValue struct {
	Tick      int64
	Object    string
	Kind      objstate.Kind
	ValueJSON string
}
// #endregion state-value
