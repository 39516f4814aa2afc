package objstate

import (
	"fmt"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// #region pose
// Pose tracks the base pose of the owner's body.
type Pose struct {
	base
	value any
}

func newPose(owner Owner, _ Options) State {
	return &Pose{base: newBase(KindPose, owner, true)}
}

func (s *Pose) Update(sim Simulator) {
	s.touch(sim)
	pose, ok, err := sim.Backend().BodyPose(s.owner.BodyID())
	if err != nil {
		s.transient(err)
		return
	}
	if !ok {
		return
	}
	s.value = pose
}

func (s *Pose) Value() any { return s.value }

func (s *Pose) SetValue(v any) error {
	pose, ok := v.(physics.Pose)
	if !ok {
		return fmt.Errorf("pose: %T: %w", v, ErrValueType)
	}
	s.value = pose
	return nil
}

// #endregion pose

// #region aabb
// AABB tracks the world bounding box of the owner's body.
type AABB struct {
	base
	value any
}

func newAABB(owner Owner, _ Options) State {
	return &AABB{base: newBase(KindAABB, owner, true)}
}

func (s *AABB) Update(sim Simulator) {
	s.touch(sim)
	box, ok, err := sim.Backend().BodyAABB(s.owner.BodyID())
	if err != nil {
		s.transient(err)
		return
	}
	if !ok {
		return
	}
	s.value = box
}

func (s *AABB) Value() any { return s.value }

func (s *AABB) SetValue(v any) error {
	box, ok := v.(physics.AABB)
	if !ok {
		return fmt.Errorf("aabb: %T: %w", v, ErrValueType)
	}
	s.value = box
	return nil
}

// #endregion aabb
