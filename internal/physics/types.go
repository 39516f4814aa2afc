package physics

import "github.com/go-gl/mathgl/mgl64"

// #region ids
// BodyID identifies a rigid body in the backend.
type BodyID int

// LinkID identifies a link within a body. BaseLink is the root link.
type LinkID int

// BaseLink is the link id reported for contacts on a body's root.
const BaseLink LinkID = -1

// StreamID identifies a particle stream owned by the particle system.
type StreamID int

// #endregion ids

// #region contact-point
// ContactPoint is one contact reported for a queried body (always BodyA).
type ContactPoint struct {
	BodyA    BodyID
	BodyB    BodyID
	LinkA    LinkID
	LinkB    LinkID
	Position mgl64.Vec3
	Distance float64
}

// #endregion contact-point

// #region pose
// Pose is a rigid transform in world coordinates.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// IdentityPose returns a pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: mgl64.QuatIdent()}
}

// Transform maps a point from this pose's local frame into the world frame.
func (p Pose) Transform(local mgl64.Vec3) mgl64.Vec3 {
	return p.Position.Add(p.Orientation.Rotate(local))
}

// ApproxEqual reports whether two poses match within mgl64's default epsilon.
func (p Pose) ApproxEqual(o Pose) bool {
	return p.Position.ApproxEqual(o.Position) && p.Orientation.OrientationEqual(o.Orientation)
}

// #endregion pose

// #region aabb
// AABB is an axis-aligned bounding box in world coordinates.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// BoxAround returns the AABB centered at center with the given half extents.
func BoxAround(center, halfExtents mgl64.Vec3) AABB {
	return AABB{Min: center.Sub(halfExtents), Max: center.Add(halfExtents)}
}

// Overlaps reports whether the two boxes intersect (touching counts).
func (a AABB) Overlaps(b AABB) bool {
	for i := 0; i < 3; i++ {
		if a.Max[i] < b.Min[i] || b.Max[i] < a.Min[i] {
			return false
		}
	}
	return true
}

// Center returns the midpoint of the box.
func (a AABB) Center() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// #endregion aabb

// #region particle
// Particle is one active particle of a stream. Each particle is also a body.
type Particle struct {
	ID       int
	Body     BodyID
	Position mgl64.Vec3
}

// #endregion particle
