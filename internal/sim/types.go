package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
)

// #region errors
var (
	ErrDuplicateObject = errors.New("duplicate object name")
	ErrUnknownObject   = errors.New("unknown object")
	ErrClosed          = errors.New("simulator closed")
	ErrNoParticles     = errors.New("no particle system")
)

// #endregion errors

// #region config
// Config holds simulator settings.
type Config struct {
	MaxParticles int // particle bound per water source stream
}

// DefaultConfig returns the settings used by the commands.
func DefaultConfig() Config {
	return Config{MaxParticles: objstate.DefaultOptions().MaxParticles}
}

// #endregion config

// #region observer
// Observer receives tick callbacks. Start runs before the first tick it sees,
// Step after every tick (states and soak phase done), End once on Finish or Close.
type Observer interface {
	Start(s *Simulator)
	Step(s *Simulator)
	End(s *Simulator)
}

// #endregion observer

// #region tick-stats
// TickStats summarizes the last completed tick.
type TickStats struct {
	Tick         int64
	Objects      int
	Updates      int // state Update calls
	Soaked       int // objects newly soaked by the post-phase
	DroppedEdges int // optional edges dropped across the live objects' orders
	Duration     time.Duration
}

// #endregion tick-stats

// #region snapshot
// Snapshot is the value of every state of every live object after a tick.
type Snapshot struct {
	Tick    int64
	Objects []ObjectSnapshot
}

// ObjectSnapshot holds one object's values in update order.
type ObjectSnapshot struct {
	Name   string
	Online bool
	Order  []objstate.Kind
	Values map[objstate.Kind]any
}

// Value returns the value of kind on the named object.
func (s Snapshot) Value(object string, kind objstate.Kind) (any, bool) {
	for _, o := range s.Objects {
		if o.Name != object {
			continue
		}
		v, ok := o.Values[kind]
		return v, ok
	}
	return nil, false
}

type objectJSON struct {
	Name   string                     `json:"name"`
	Online bool                       `json:"online"`
	Order  []objstate.Kind            `json:"order"`
	Values map[string]json.RawMessage `json:"values"`
}

// MarshalJSON encodes values with objstate.EncodeValue.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := struct {
		Tick    int64        `json:"tick"`
		Objects []objectJSON `json:"objects"`
	}{Tick: s.Tick, Objects: make([]objectJSON, 0, len(s.Objects))}

	for _, o := range s.Objects {
		oj := objectJSON{Name: o.Name, Online: o.Online, Order: o.Order, Values: make(map[string]json.RawMessage, len(o.Values))}
		for k, v := range o.Values {
			data, err := objstate.EncodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s/%s: %w", o.Name, k, err)
			}
			oj.Values[string(k)] = data
		}
		out.Objects = append(out.Objects, oj)
	}
	return json.Marshal(out)
}

// #endregion snapshot
