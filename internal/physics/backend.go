package physics

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrUnknownStream is returned by particle operations on a stream id that was never created or was destroyed.
var ErrUnknownStream = errors.New("unknown particle stream")

// ErrParticleBody is returned when a particle body is removed outside its stream.
var ErrParticleBody = errors.New("body is owned by a particle stream")

// #region backend
// Backend is the physics capability the state engine consumes.
// A false ok result means the data is not available yet; it is not an error.
type Backend interface {
	// Step advances the simulation by one timestep.
	Step() error

	// ContactPoints returns the contacts of body as BodyA, in a stable order.
	ContactPoints(body BodyID) ([]ContactPoint, error)

	// LinkWorldPose returns the world pose of a named link.
	LinkWorldPose(body BodyID, link string) (Pose, bool, error)

	// BodyPose returns the world pose of a body's base.
	BodyPose(body BodyID) (Pose, bool, error)

	// BodyAABB returns the world AABB of a body.
	BodyAABB(body BodyID) (AABB, bool, error)
}

// #endregion backend

// #region particle-system
// ParticleSystem owns particle streams (e.g. water) and their reuse pools.
type ParticleSystem interface {
	CreateStream(owner BodyID, anchor mgl64.Vec3, maxCount int) (StreamID, error)
	SetAnchor(id StreamID, anchor mgl64.Vec3) error
	SetEnabled(id StreamID, enabled bool) error
	StepStream(id StreamID) error

	// Particles returns the active (non-stashed) particles ordered by id.
	Particles(id StreamID) ([]Particle, error)

	// Stash returns a particle to the stream's reuse pool. Stashing a pooled particle is a no-op.
	Stash(id StreamID, particleID int) error

	DestroyStream(id StreamID) error
}

// #endregion particle-system
