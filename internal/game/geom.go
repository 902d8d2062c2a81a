package game

import "math"

// Vec3 is a world-space position or offset
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Lerp interpolates from v to o by t (not clamped)
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return Vec3{
		v.X + (o.X-v.X)*t,
		v.Y + (o.Y-v.Y)*t,
		v.Z + (o.Z-v.Z)*t,
	}
}

// Quat is a rotation quaternion. Replayed rotations are copied verbatim,
// the core never composes them.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the no-rotation quaternion
var Identity = Quat{W: 1}

// Pose is a position plus rotation
type Pose struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
}

// PoseAt returns an unrotated pose at p
func PoseAt(p Vec3) Pose {
	return Pose{Position: p, Rotation: Identity}
}

// EaseInOut is the smoothstep curve used for room transitions.
// Input is clamped to [0, 1].
func EaseInOut(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}

// ceilSeconds rounds remaining time up to whole seconds for display and
// key capture
func ceilSeconds(remaining float64) int {
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining))
}
