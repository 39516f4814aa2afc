package physics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// #region world-config
// WorldConfig holds the integration parameters of the in-memory world.
type WorldConfig struct {
	TimeStep       float64    // seconds per Step
	Gravity        mgl64.Vec3 // applied to particles only; rigid bodies are kinematic
	ParticleRadius float64    // half extent of a particle's box
}

// DefaultWorldConfig returns a 60 Hz world with earth gravity.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		TimeStep:       1.0 / 60.0,
		Gravity:        mgl64.Vec3{0, 0, -9.8},
		ParticleRadius: 0.01,
	}
}

// #endregion world-config

// #region body-spec
// BodySpec describes a kinematic box body.
type BodySpec struct {
	Name        string
	Position    mgl64.Vec3
	Orientation mgl64.Quat // zero value means identity
	HalfExtents mgl64.Vec3
	Velocity    mgl64.Vec3
	Links       map[string]mgl64.Vec3 // link name -> offset in the body frame
}

// #endregion body-spec

// #region types
type body struct {
	id       BodyID
	name     string
	pose     Pose
	half     mgl64.Vec3
	vel      mgl64.Vec3
	links    map[string]mgl64.Vec3
	particle bool
	parked   bool // pooled particles take no part in motion or contacts
}

type particleState struct {
	id     int
	body   BodyID
	pooled bool
}

type stream struct {
	id        StreamID
	owner     BodyID
	anchor    mgl64.Vec3
	maxCount  int
	enabled   bool
	particles map[int]*particleState
	pool      []int // stashed particle ids, FIFO
	nextID    int
}

// World is an in-memory kinematic backend with box bodies and particle streams.
// Contacts are AABB overlaps. It implements both Backend and ParticleSystem.
type World struct {
	mu         sync.Mutex
	config     WorldConfig
	bodies     map[BodyID]*body
	nextBody   BodyID
	streams    map[StreamID]*stream
	nextStream StreamID
	steps      int64
}

// #endregion types

// #region constructor
// NewWorld creates an empty world.
func NewWorld(config WorldConfig) *World {
	return &World{
		config:     config,
		bodies:     make(map[BodyID]*body),
		nextBody:   1,
		streams:    make(map[StreamID]*stream),
		nextStream: 1,
	}
}

// #endregion constructor

// #region bodies
// AddBody inserts a body and returns its id. Ids are assigned sequentially from 1.
func (w *World) AddBody(spec BodySpec) BodyID {
	w.mu.Lock()
	defer w.mu.Unlock()

	orn := spec.Orientation
	if orn == (mgl64.Quat{}) {
		orn = mgl64.QuatIdent()
	}
	links := make(map[string]mgl64.Vec3, len(spec.Links))
	for name, off := range spec.Links {
		links[name] = off
	}
	b := &body{
		id:    w.nextBody,
		name:  spec.Name,
		pose:  Pose{Position: spec.Position, Orientation: orn},
		half:  spec.HalfExtents,
		vel:   spec.Velocity,
		links: links,
	}
	w.bodies[b.id] = b
	w.nextBody++
	return b.id
}

// RemoveBody deletes a rigid body. Removing an unknown body is a no-op.
// Particle bodies belong to their stream and only go with DestroyStream.
func (w *World) RemoveBody(id BodyID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	if !ok {
		return nil
	}
	if b.particle {
		return fmt.Errorf("remove body %d: %w", id, ErrParticleBody)
	}
	delete(w.bodies, id)
	return nil
}

// SetBodyPose teleports a body.
func (w *World) SetBodyPose(id BodyID, pose Pose) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("set pose: unknown body %d", id)
	}
	b.pose = pose
	return nil
}

// SetVelocity sets a body's linear velocity.
func (w *World) SetVelocity(id BodyID, vel mgl64.Vec3) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("set velocity: unknown body %d", id)
	}
	b.vel = vel
	return nil
}

// AddLink attaches a named link to an existing body.
func (w *World) AddLink(id BodyID, name string, offset mgl64.Vec3) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("add link: unknown body %d", id)
	}
	b.links[name] = offset
	return nil
}

// Steps returns how many times Step has run.
func (w *World) Steps() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

func (w *World) sortedBodies() []*body {
	out := make([]*body, 0, len(w.bodies))
	for _, b := range w.bodies {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (b *body) aabb() AABB {
	return BoxAround(b.pose.Position, b.half)
}

// #endregion bodies

// #region step
// Step integrates one timestep. Rigid bodies move at constant velocity; particles
// fall under gravity until they touch a rigid body, where they come to rest.
func (w *World) Step() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dt := w.config.TimeStep
	all := w.sortedBodies()
	for _, b := range all {
		if b.parked {
			continue
		}
		if b.particle {
			if w.touchesRigid(b, all) {
				b.vel = mgl64.Vec3{}
				continue
			}
			b.vel = b.vel.Add(w.config.Gravity.Mul(dt))
		}
		b.pose.Position = b.pose.Position.Add(b.vel.Mul(dt))
	}
	w.steps++
	return nil
}

func (w *World) touchesRigid(p *body, all []*body) bool {
	box := p.aabb()
	for _, o := range all {
		if o.particle || o.id == p.id {
			continue
		}
		if box.Overlaps(o.aabb()) {
			return true
		}
	}
	return false
}

// #endregion step

// #region queries
// ContactPoints returns overlaps of body with every other active body, ordered by BodyB.
func (w *World) ContactPoints(id BodyID) ([]ContactPoint, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bodies[id]
	if !ok || b.parked {
		return nil, nil
	}
	box := b.aabb()
	var out []ContactPoint
	for _, o := range w.sortedBodies() {
		if o.id == id || o.parked {
			continue
		}
		other := o.aabb()
		if !box.Overlaps(other) {
			continue
		}
		overlap := AABB{
			Min: mgl64.Vec3{max(box.Min[0], other.Min[0]), max(box.Min[1], other.Min[1]), max(box.Min[2], other.Min[2])},
			Max: mgl64.Vec3{min(box.Max[0], other.Max[0]), min(box.Max[1], other.Max[1]), min(box.Max[2], other.Max[2])},
		}
		depth := min(overlap.Max[0]-overlap.Min[0], overlap.Max[1]-overlap.Min[1], overlap.Max[2]-overlap.Min[2])
		out = append(out, ContactPoint{
			BodyA:    id,
			BodyB:    o.id,
			LinkA:    BaseLink,
			LinkB:    BaseLink,
			Position: overlap.Center(),
			Distance: -depth,
		})
	}
	return out, nil
}

// LinkWorldPose returns the pose of a named link, or ok=false when body or link is absent.
func (w *World) LinkWorldPose(id BodyID, link string) (Pose, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bodies[id]
	if !ok {
		return Pose{}, false, nil
	}
	off, ok := b.links[link]
	if !ok {
		return Pose{}, false, nil
	}
	return Pose{Position: b.pose.Transform(off), Orientation: b.pose.Orientation}, true, nil
}

// BodyPose returns the base pose of a body.
func (w *World) BodyPose(id BodyID) (Pose, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bodies[id]
	if !ok {
		return Pose{}, false, nil
	}
	return b.pose, true, nil
}

// BodyAABB returns the world box of a body.
func (w *World) BodyAABB(id BodyID) (AABB, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bodies[id]
	if !ok {
		return AABB{}, false, nil
	}
	return b.aabb(), true, nil
}

// #endregion queries

// #region particles
// CreateStream registers a particle stream anchored at anchor. The stream starts disabled.
func (w *World) CreateStream(owner BodyID, anchor mgl64.Vec3, maxCount int) (StreamID, error) {
	if maxCount <= 0 {
		return 0, fmt.Errorf("create stream: max count must be positive, got %d", maxCount)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	s := &stream{
		id:        w.nextStream,
		owner:     owner,
		anchor:    anchor,
		maxCount:  maxCount,
		particles: make(map[int]*particleState),
		nextID:    1,
	}
	w.streams[s.id] = s
	w.nextStream++
	return s.id, nil
}

// SetAnchor moves the emission point of a stream.
func (w *World) SetAnchor(id StreamID, anchor mgl64.Vec3) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.streams[id]
	if !ok {
		return fmt.Errorf("set anchor %d: %w", id, ErrUnknownStream)
	}
	s.anchor = anchor
	return nil
}

// SetEnabled turns emission on or off. Existing particles are unaffected.
func (w *World) SetEnabled(id StreamID, enabled bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.streams[id]
	if !ok {
		return fmt.Errorf("set enabled %d: %w", id, ErrUnknownStream)
	}
	s.enabled = enabled
	return nil
}

// StepStream emits at most one particle when the stream is enabled and below its
// bound. Pooled particles are reused before new ones are created.
func (w *World) StepStream(id StreamID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.streams[id]
	if !ok {
		return fmt.Errorf("step stream %d: %w", id, ErrUnknownStream)
	}
	if !s.enabled || s.activeCount() >= s.maxCount {
		return nil
	}

	if len(s.pool) > 0 {
		pid := s.pool[0]
		s.pool = s.pool[1:]
		p := s.particles[pid]
		p.pooled = false
		b := w.bodies[p.body]
		b.parked = false
		b.pose = Pose{Position: s.anchor, Orientation: mgl64.QuatIdent()}
		b.vel = mgl64.Vec3{}
		return nil
	}

	if len(s.particles) >= s.maxCount {
		return nil
	}
	r := w.config.ParticleRadius
	b := &body{
		id:       w.nextBody,
		name:     fmt.Sprintf("stream%d/particle%d", s.id, s.nextID),
		pose:     Pose{Position: s.anchor, Orientation: mgl64.QuatIdent()},
		half:     mgl64.Vec3{r, r, r},
		links:    map[string]mgl64.Vec3{},
		particle: true,
	}
	w.bodies[b.id] = b
	w.nextBody++
	s.particles[s.nextID] = &particleState{id: s.nextID, body: b.id}
	s.nextID++
	return nil
}

// Particles lists the active particles of a stream ordered by particle id.
func (w *World) Particles(id StreamID) ([]Particle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.streams[id]
	if !ok {
		return nil, fmt.Errorf("particles %d: %w", id, ErrUnknownStream)
	}
	out := make([]Particle, 0, len(s.particles))
	for _, p := range s.particles {
		if p.pooled {
			continue
		}
		out = append(out, Particle{ID: p.id, Body: p.body, Position: w.bodies[p.body].pose.Position})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Stash parks a particle in the stream's reuse pool.
func (w *World) Stash(id StreamID, particleID int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.streams[id]
	if !ok {
		return fmt.Errorf("stash %d: %w", id, ErrUnknownStream)
	}
	p, ok := s.particles[particleID]
	if !ok {
		return fmt.Errorf("stash: stream %d has no particle %d", id, particleID)
	}
	if p.pooled {
		return nil
	}
	p.pooled = true
	w.bodies[p.body].parked = true
	s.pool = append(s.pool, particleID)
	return nil
}

// Pool returns the stashed particle ids of a stream in reuse order.
func (w *World) Pool(id StreamID) []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.streams[id]
	if !ok {
		return nil
	}
	out := make([]int, len(s.pool))
	copy(out, s.pool)
	return out
}

// DestroyStream removes a stream and all of its particle bodies.
func (w *World) DestroyStream(id StreamID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.streams[id]
	if !ok {
		return fmt.Errorf("destroy stream %d: %w", id, ErrUnknownStream)
	}
	for _, p := range s.particles {
		delete(w.bodies, p.body)
	}
	delete(w.streams, id)
	return nil
}

// StreamCount returns the number of live streams.
func (w *World) StreamCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.streams)
}

func (s *stream) activeCount() int {
	n := 0
	for _, p := range s.particles {
		if !p.pooled {
			n++
		}
	}
	return n
}

// #endregion particles
