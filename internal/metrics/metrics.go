package metrics

import (
	"sort"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/sim"
)

// #region soak-metric
// SoakMetric records the first tick each soakable object became soaked.
type SoakMetric struct {
	first map[string]int64
}

func NewSoakMetric() *SoakMetric {
	return &SoakMetric{first: make(map[string]int64)}
}

func (m *SoakMetric) Name() string { return "soak" }

func (m *SoakMetric) Start(s *sim.Simulator) { m.Step(s) }

func (m *SoakMetric) Step(s *sim.Simulator) {
	for _, obj := range s.Scene().ObjectsWithState(objstate.KindSoaked) {
		if _, seen := m.first[obj.Name()]; seen {
			continue
		}
		if v, _ := obj.Value(objstate.KindSoaked); v == true {
			m.first[obj.Name()] = s.Tick()
		}
	}
}

func (m *SoakMetric) End(*sim.Simulator) {}

// FirstSoaked returns the tick obj became soaked.
func (m *SoakMetric) FirstSoaked(object string) (int64, bool) {
	t, ok := m.first[object]
	return t, ok
}

func (m *SoakMetric) Results() map[string]any {
	first := make(map[string]int64, len(m.first))
	for k, v := range m.first {
		first[k] = v
	}
	return map[string]any{
		"first_soaked_tick": first,
		"soaked_objects":    len(first),
	}
}
// #endregion soak-metric

// #region contact-metric
// ContactMetric counts, per object, the ticks with a non-empty contact set and
// the largest contact set seen.
type ContactMetric struct {
	stats map[string]*ContactStats
}

func NewContactMetric() *ContactMetric {
	return &ContactMetric{stats: make(map[string]*ContactStats)}
}

func (m *ContactMetric) Name() string { return "contact" }

func (m *ContactMetric) Start(*sim.Simulator) {}

func (m *ContactMetric) Step(s *sim.Simulator) {
	for _, obj := range s.Scene().ObjectsWithState(objstate.KindContactBodies) {
		st, ok := m.stats[obj.Name()]
		if !ok {
			st = &ContactStats{}
			m.stats[obj.Name()] = st
		}
		cs, _ := obj.State(objstate.KindContactBodies)
		set, ok := objstate.ValueAs[objstate.ContactSet](cs)
		if !ok || len(set) == 0 {
			continue
		}
		st.TicksInContact++
		st.MaxContacts = max(st.MaxContacts, len(set))
	}
}

func (m *ContactMetric) End(*sim.Simulator) {}

// Stats returns the counters for one object.
func (m *ContactMetric) Stats(object string) ContactStats {
	if st, ok := m.stats[object]; ok {
		return *st
	}
	return ContactStats{}
}

func (m *ContactMetric) Results() map[string]any {
	per := make(map[string]ContactStats, len(m.stats))
	for k, v := range m.stats {
		per[k] = *v
	}
	return map[string]any{"per_object": per}
}
// #endregion contact-metric

// #region predicate-tracker
// PredicateTracker watches boolean predicates and records a Transition each
// time one changes. Values are read after the soak phase of every tick.
type PredicateTracker struct {
	predicates  []Predicate
	current     map[Predicate]bool
	transitions []Transition
}

// NewPredicateTracker tracks preds in the given order.
func NewPredicateTracker(preds ...Predicate) *PredicateTracker {
	return &PredicateTracker{predicates: preds, current: make(map[Predicate]bool, len(preds))}
}

func (m *PredicateTracker) Name() string { return "predicates" }

// Start captures the initial values without recording transitions.
func (m *PredicateTracker) Start(s *sim.Simulator) {
	for _, p := range m.predicates {
		m.current[p] = readBool(s, p)
	}
}

func (m *PredicateTracker) Step(s *sim.Simulator) {
	for _, p := range m.predicates {
		v := readBool(s, p)
		if v == m.current[p] {
			continue
		}
		m.current[p] = v
		m.transitions = append(m.transitions, Transition{Tick: s.Tick(), Predicate: p, Name: p.String(), Value: v})
	}
}

func (m *PredicateTracker) End(*sim.Simulator) {}

// Transitions returns the recorded changes in tick order.
func (m *PredicateTracker) Transitions() []Transition {
	out := make([]Transition, len(m.transitions))
	copy(out, m.transitions)
	return out
}

// Satisfied returns the names of the predicates currently true, sorted.
func (m *PredicateTracker) Satisfied() []string {
	var out []string
	for p, v := range m.current {
		if v {
			out = append(out, p.String())
		}
	}
	sort.Strings(out)
	return out
}

func (m *PredicateTracker) Results() map[string]any {
	return map[string]any{
		"transitions": m.Transitions(),
		"satisfied":   m.Satisfied(),
	}
}

func readBool(s *sim.Simulator, p Predicate) bool {
	obj, ok := s.Scene().Object(p.Object)
	if !ok {
		return false
	}
	v, _ := obj.Value(p.Kind)
	b, _ := v.(bool)
	return b
}
// #endregion predicate-tracker

// #region gather
// Gather collects the results of every metric keyed by metric name.
func Gather(metrics ...Metric) map[string]map[string]any {
	out := make(map[string]map[string]any, len(metrics))
	for _, m := range metrics {
		out[m.Name()] = m.Results()
	}
	return out
}
// #endregion gather
