package objstate

import "fmt"

// #region binary
// Binary is an externally driven boolean state (toggled_on, soaked). Update
// keeps the current value; writers use SetValue. The value starts false.
type Binary struct {
	base
	value bool
}

func newToggledOn(owner Owner, _ Options) State {
	return &Binary{base: newBase(KindToggledOn, owner, true)}
}

func newSoaked(owner Owner, _ Options) State {
	return &Binary{base: newBase(KindSoaked, owner, true)}
}

func (s *Binary) Update(sim Simulator) { s.touch(sim) }

func (s *Binary) Value() any { return s.value }

func (s *Binary) SetValue(v any) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("%s: %T: %w", s.kind, v, ErrValueType)
	}
	s.value = b
	return nil
}

// #endregion binary
