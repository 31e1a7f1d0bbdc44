// Package spatial provides the convention normalizers: every rotation,
// pose, and extent representation an adapter encounters is funneled through
// these functions into one canonical form (meters, unit quaternions with
// non-negative scalar part, parent-relative transforms).
package spatial

import "math"

// Vec3 is a 3-vector in canonical (meter) units.
type Vec3 [3]float64

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Scale returns v scaled by s per component.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Mul returns the component-wise product of v and o.
func (v Vec3) Mul(o Vec3) Vec3 {
	return Vec3{v[0] * o[0], v[1] * o[1], v[2] * o[2]}
}

// Quat is a unit quaternion in (w, x, y, z) order.
type Quat struct {
	W, X, Y, Z float64
}

// IdentityQuat returns the identity rotation.
func IdentityQuat() Quat { return Quat{W: 1} }

// FromRPY converts roll-pitch-yaw Euler angles (radians, extrinsic x-y-z)
// to a canonical unit quaternion.
func FromRPY(roll, pitch, yaw float64) Quat {
	cr, sr := math.Cos(0.5*roll), math.Sin(0.5*roll)
	cp, sp := math.Cos(0.5*pitch), math.Sin(0.5*pitch)
	cy, sy := math.Cos(0.5*yaw), math.Sin(0.5*yaw)

	q := Quat{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
	return q.Canonical()
}

// FromMatrix converts a 3x3 rotation matrix (row-major) to a canonical unit
// quaternion using the largest-diagonal branch for numeric stability.
func FromMatrix(m [3][3]float64) Quat {
	var q Quat
	trace := m[0][0] + m[1][1] + m[2][2]
	switch {
	case trace > 0:
		s := 2 * math.Sqrt(trace+1)
		q = Quat{
			W: 0.25 * s,
			X: (m[2][1] - m[1][2]) / s,
			Y: (m[0][2] - m[2][0]) / s,
			Z: (m[1][0] - m[0][1]) / s,
		}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2 * math.Sqrt(1+m[0][0]-m[1][1]-m[2][2])
		q = Quat{
			W: (m[2][1] - m[1][2]) / s,
			X: 0.25 * s,
			Y: (m[0][1] + m[1][0]) / s,
			Z: (m[0][2] + m[2][0]) / s,
		}
	case m[1][1] > m[2][2]:
		s := 2 * math.Sqrt(1+m[1][1]-m[0][0]-m[2][2])
		q = Quat{
			W: (m[0][2] - m[2][0]) / s,
			X: (m[0][1] + m[1][0]) / s,
			Y: 0.25 * s,
			Z: (m[1][2] + m[2][1]) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m[2][2]-m[0][0]-m[1][1])
		q = Quat{
			W: (m[1][0] - m[0][1]) / s,
			X: (m[0][2] + m[2][0]) / s,
			Y: (m[1][2] + m[2][1]) / s,
			Z: 0.25 * s,
		}
	}
	return q.Canonical()
}

// Normalize returns q scaled to unit length. The zero quaternion
// normalizes to the identity.
func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 {
		return IdentityQuat()
	}
	return Quat{q.W / n, q.X / n, q.Y / n, q.Z / n}
}

// Canonical normalizes q and resolves the double-cover ambiguity: q and -q
// represent the same rotation, so the representative with non-negative
// scalar part is chosen. When w is exactly zero the first non-zero vector
// component is made positive so the choice stays deterministic.
func (q Quat) Canonical() Quat {
	q = q.Normalize()
	if q.W < 0 {
		return Quat{-q.W, -q.X, -q.Y, -q.Z}
	}
	if q.W == 0 {
		for _, c := range []float64{q.X, q.Y, q.Z} {
			if c > 0 {
				return q
			}
			if c < 0 {
				return Quat{-q.W, -q.X, -q.Y, -q.Z}
			}
		}
	}
	return q
}

// Mul returns the Hamilton product q*r (apply r, then q).
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Rotate applies the rotation q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	// v' = v + w*t + u×t with t = 2*(u×v), u = (x,y,z)
	u := Vec3{q.X, q.Y, q.Z}
	t := cross(u, v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(cross(u, t))
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// AngularDistance returns the rotation angle in radians separating two unit
// quaternions. The metric is derived from the dot product, so q and -q are
// zero apart.
func AngularDistance(a, b Quat) float64 {
	dot := a.W*b.W + a.X*b.X + a.Y*b.Y + a.Z*b.Z
	dot = math.Abs(dot)
	if dot > 1 {
		dot = 1
	}
	return 2 * math.Acos(dot)
}

// Pose is a position plus canonical orientation, relative to the immediate
// logical parent frame.
type Pose struct {
	Pos Vec3
	Rot Quat
}

// IdentityPose returns the identity transform.
func IdentityPose() Pose { return Pose{Rot: IdentityQuat()} }

// Compose chains p with a child transform expressed in p's frame, yielding
// a single transform in p's parent frame. Used to flatten a format's nested
// local-transform groupings into one parent-relative pose.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Pos: p.Pos.Add(p.Rot.Rotate(child.Pos)),
		Rot: p.Rot.Mul(child.Rot).Canonical(),
	}
}

// IsIdentity reports whether p is exactly the identity transform.
func (p Pose) IsIdentity() bool {
	return p.Pos == Vec3{} && p.Rot == IdentityQuat()
}

// FullExtents doubles a half-extent box convention into canonical full
// extents per axis.
func FullExtents(half Vec3) Vec3 {
	return half.Scale(2)
}
