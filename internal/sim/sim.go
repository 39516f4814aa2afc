package sim

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// #region simulator-struct
// Simulator owns the scene and drives ticks: physics step, per-object state
// updates in resolved order, the soak post-phase, then observers. It is not
// safe for concurrent use; a tick always runs to completion on the caller's goroutine.
type Simulator struct {
	backend   physics.Backend
	particles physics.ParticleSystem
	registry  *objstate.Registry
	config    Config
	scene     *Scene

	tick      int64
	last      TickStats
	observers []observerEntry
	closed    bool
}

type observerEntry struct {
	o       Observer
	started bool
	ended   bool
}

// #endregion simulator-struct

// #region constructor
// New creates a simulator. When particles is nil and backend also implements
// physics.ParticleSystem, the backend is used for particles; otherwise water
// sources see an unavailable particle system and stay inert.
func New(backend physics.Backend, particles physics.ParticleSystem, config Config) *Simulator {
	if particles == nil {
		if ps, ok := backend.(physics.ParticleSystem); ok {
			particles = ps
		} else {
			particles = noParticles{}
		}
	}
	return &Simulator{
		backend:   backend,
		particles: particles,
		registry:  objstate.DefaultRegistry(objstate.Options{MaxParticles: config.MaxParticles}),
		config:    config,
		scene:     NewScene(),
	}
}

// #endregion constructor

// #region accessors
func (s *Simulator) Backend() physics.Backend          { return s.backend }
func (s *Simulator) Particles() physics.ParticleSystem { return s.particles }

// Tick returns the number of completed ticks.
func (s *Simulator) Tick() int64 { return s.tick }

func (s *Simulator) Registry() *objstate.Registry { return s.registry }
func (s *Simulator) Scene() *Scene                { return s.scene }

// LastStats returns the summary of the last completed tick.
func (s *Simulator) LastStats() TickStats { return s.last }

// #endregion accessors

// #region objects
// Import constructs an object and adds it to the scene. Configuration errors
// (unknown kinds, missing dependencies, cycles) are returned here, never during a tick.
func (s *Simulator) Import(spec objstate.ObjectSpec) (*objstate.Object, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.scene.Object(spec.Name); ok {
		return nil, fmt.Errorf("import %q: %w", spec.Name, ErrDuplicateObject)
	}
	obj, err := s.registry.NewObject(spec)
	if err != nil {
		return nil, fmt.Errorf("import %q: %w", spec.Name, err)
	}
	if err := s.scene.Add(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Remove takes an object out of the scene and releases its sub-resources.
func (s *Simulator) Remove(name string) error {
	obj, ok := s.scene.Remove(name)
	if !ok {
		return fmt.Errorf("remove %q: %w", name, ErrUnknownObject)
	}
	if err := obj.Close(); err != nil {
		return fmt.Errorf("remove %q: %w", name, err)
	}
	return nil
}

// AddObserver registers o. Observers run in registration order.
func (s *Simulator) AddObserver(o Observer) {
	s.observers = append(s.observers, observerEntry{o: o})
}

// #endregion objects

// #region step
// Step runs one tick. A backend failure aborts the tick before any state
// update and leaves the tick counter unchanged.
func (s *Simulator) Step() error {
	if s.closed {
		return ErrClosed
	}
	for i := range s.observers {
		if !s.observers[i].started {
			s.observers[i].started = true
			s.observers[i].o.Start(s)
		}
	}

	start := time.Now()
	if err := s.backend.Step(); err != nil {
		return fmt.Errorf("step backend at tick %d: %w", s.tick+1, err)
	}
	s.tick++

	stats := TickStats{Tick: s.tick, Objects: s.scene.Len()}
	for _, obj := range s.scene.objects {
		stats.Updates += obj.Update(s)
		stats.DroppedEdges += len(obj.DroppedEdges())
	}
	stats.Soaked = s.propagateSoak()
	stats.Duration = time.Since(start)
	s.last = stats

	for _, e := range s.observers {
		e.o.Step(s)
	}
	return nil
}

// Run steps n ticks, stopping at the first error.
func (s *Simulator) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// #endregion step

// #region snapshot
// Snapshot captures every live object's values in creation order.
func (s *Simulator) Snapshot() Snapshot {
	snap := Snapshot{Tick: s.tick, Objects: make([]ObjectSnapshot, 0, s.scene.Len())}
	for _, obj := range s.scene.objects {
		order := obj.Order()
		entry := ObjectSnapshot{
			Name:   obj.Name(),
			Online: obj.Online(),
			Order:  order,
			Values: make(map[objstate.Kind]any, len(order)),
		}
		for _, k := range order {
			entry.Values[k], _ = obj.Value(k)
		}
		snap.Objects = append(snap.Objects, entry)
	}
	return snap
}

// #endregion snapshot

// #region lifecycle
// Finish calls End on observers that have started and not yet ended.
func (s *Simulator) Finish() {
	for i := range s.observers {
		e := &s.observers[i]
		if e.started && !e.ended {
			e.ended = true
			e.o.End(s)
		}
	}
}

// Close finishes observers and releases every object. The simulator cannot be stepped afterwards.
func (s *Simulator) Close() error {
	if s.closed {
		return nil
	}
	s.Finish()
	s.closed = true
	var errs []error
	for _, obj := range s.scene.Objects() {
		if err := obj.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("sim: close: %v", err)
		return err
	}
	return nil
}

// #endregion lifecycle

// #region no-particles
type noParticles struct{}

func (noParticles) CreateStream(physics.BodyID, mgl64.Vec3, int) (physics.StreamID, error) {
	return 0, ErrNoParticles
}
func (noParticles) SetAnchor(physics.StreamID, mgl64.Vec3) error { return ErrNoParticles }
func (noParticles) SetEnabled(physics.StreamID, bool) error      { return ErrNoParticles }
func (noParticles) StepStream(physics.StreamID) error            { return ErrNoParticles }
func (noParticles) Particles(physics.StreamID) ([]physics.Particle, error) {
	return nil, ErrNoParticles
}
func (noParticles) Stash(physics.StreamID, int) error     { return ErrNoParticles }
func (noParticles) DestroyStream(physics.StreamID) error { return ErrNoParticles }

// #endregion no-particles
