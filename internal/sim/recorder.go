package sim

import (
	"fmt"
	"log"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/logging"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/store"
)

// #region recorder
// Recorder is an observer that persists every tick: the snapshot into
// state_values and the tick stats into tick_log. Persistence failures never
// abort a tick; the first one is kept for Err and logged.
type Recorder struct {
	store *store.Store
	run   store.Run
	err   error
}

// NewRecorder opens a new run in st.
func NewRecorder(st *store.Store, scene string, online bool) (*Recorder, error) {
	run, err := st.CreateRun(scene, online)
	if err != nil {
		return nil, fmt.Errorf("new recorder: %w", err)
	}
	return &Recorder{store: st, run: run}, nil
}

// RunID returns the id of the run being recorded.
func (r *Recorder) RunID() string { return r.run.RunID }

// Err returns the first persistence error, if any.
func (r *Recorder) Err() error { return r.err }

// Start records the initial values as tick 0 when nothing has been stepped yet.
func (r *Recorder) Start(s *Simulator) {
	if s.Tick() == 0 {
		r.fail(r.store.RecordSnapshot(r.run.RunID, 0, StateValues(s.Snapshot())))
	}
}

func (r *Recorder) Step(s *Simulator) {
	snap := s.Snapshot()
	if err := r.store.RecordSnapshot(r.run.RunID, snap.Tick, StateValues(snap)); err != nil {
		r.fail(err)
		return
	}
	st := s.LastStats()
	r.fail(logging.LogTick(r.store.DB(), logging.TickEntry{
		RunID:        r.run.RunID,
		Tick:         st.Tick,
		Objects:      st.Objects,
		Updates:      st.Updates,
		Soaked:       st.Soaked,
		DroppedEdges: st.DroppedEdges,
		Duration:     st.Duration,
	}))
}

func (r *Recorder) End(s *Simulator) {
	log.Printf("sim: run %s recorded %d ticks", r.run.RunID, s.Tick())
}

func (r *Recorder) fail(err error) {
	if err == nil || r.err != nil {
		return
	}
	r.err = err
	log.Printf("sim: recorder %s: %v", r.run.RunID, err)
}

// StateValues flattens a snapshot into store rows in object then update order.
func StateValues(snap Snapshot) []store.StateValue {
	var out []store.StateValue
	for _, o := range snap.Objects {
		for _, k := range o.Order {
			out = append(out, store.StateValue{Object: o.Name, Kind: k, Value: o.Values[k]})
		}
	}
	return out
}

// #endregion recorder
