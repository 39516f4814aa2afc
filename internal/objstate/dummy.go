package objstate

import "fmt"

// #region dummy
// Dummy is the offline variant of every kind: it never queries the backend and
// holds a constant value, absent until seeded through SetValue.
type Dummy struct {
	base
	accepts func(any) bool
	value   any
}

func newDummy(d Descriptor, owner Owner) State {
	return &Dummy{base: newBase(d.Kind, owner, false), accepts: d.Accepts}
}

func (s *Dummy) Update(sim Simulator) { s.touch(sim) }

func (s *Dummy) Value() any { return s.value }

func (s *Dummy) SetValue(v any) error {
	if s.accepts != nil && !s.accepts(v) {
		return fmt.Errorf("%s: %T: %w", s.kind, v, ErrValueType)
	}
	s.value = v
	return nil
}

// #endregion dummy
