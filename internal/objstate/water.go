package objstate

import (
	"fmt"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// WaterSourceLink is the link a water source emits from.
const WaterSourceLink = "water_source"

// #region water-flow
// WaterFlow is the value of a water source: whether it is flowing and its active particles.
type WaterFlow struct {
	Flowing   bool
	Particles []physics.Particle
}

// ParticleBodies returns the body ids of the active particles.
func (f WaterFlow) ParticleBodies() map[physics.BodyID]bool {
	out := make(map[physics.BodyID]bool, len(f.Particles))
	for _, p := range f.Particles {
		out[p.Body] = true
	}
	return out
}

// #endregion water-flow

// #region water-source
// WaterSource owns one particle stream, created lazily on the first update
// that finds the source link. The stream follows the link, mirrors toggled_on
// when the owner has it (otherwise it always flows), and recycles particles
// that land on the owner itself.
type WaterSource struct {
	base
	maxParticles int
	particles    physics.ParticleSystem
	stream       physics.StreamID
	hasStream    bool
	value        any
}

func newWaterSource(owner Owner, opts Options) State {
	return &WaterSource{
		base:         newBase(KindWaterSource, owner, true),
		maxParticles: opts.MaxParticles,
	}
}

func (s *WaterSource) Update(sim Simulator) {
	s.touch(sim)
	pose, ok, err := sim.Backend().LinkWorldPose(s.owner.BodyID(), WaterSourceLink)
	if err != nil {
		s.transient(err)
		return
	}
	if !ok {
		return
	}

	ps := sim.Particles()
	if !s.hasStream {
		id, err := ps.CreateStream(s.owner.BodyID(), pose.Position, s.maxParticles)
		if err != nil {
			s.transient(err)
			return
		}
		s.stream, s.hasStream, s.particles = id, true, ps
	} else if err := ps.SetAnchor(s.stream, pose.Position); err != nil {
		s.transient(err)
		return
	}

	flowing := true
	if toggle, ok := s.owner.State(KindToggledOn); ok {
		if on, ok := toggle.Value().(bool); ok {
			flowing = on
		}
	}
	if err := ps.SetEnabled(s.stream, flowing); err != nil {
		s.transient(err)
		return
	}
	if err := ps.StepStream(s.stream); err != nil {
		s.transient(err)
		return
	}

	active, err := ps.Particles(s.stream)
	if err != nil {
		s.transient(err)
		return
	}
	wet := contactBodyIDs(s.owner)
	kept := make([]physics.Particle, 0, len(active))
	for _, p := range active {
		if wet[p.Body] {
			if err := ps.Stash(s.stream, p.ID); err != nil {
				s.transient(err)
				kept = append(kept, p)
			}
			continue
		}
		kept = append(kept, p)
	}
	s.value = WaterFlow{Flowing: flowing, Particles: kept}
}

// Stream returns the particle stream id once it has been created.
func (s *WaterSource) Stream() (physics.StreamID, bool) {
	return s.stream, s.hasStream
}

func (s *WaterSource) Value() any { return s.value }

func (s *WaterSource) SetValue(v any) error {
	return fmt.Errorf("water_source is driven by toggled_on: %w", ErrUnsupportedOperation)
}

// Close destroys the particle stream.
func (s *WaterSource) Close() error {
	if !s.hasStream {
		return nil
	}
	s.hasStream = false
	if err := s.particles.DestroyStream(s.stream); err != nil {
		return fmt.Errorf("close water source %s: %w", s.owner.Name(), err)
	}
	return nil
}

// #endregion water-source
