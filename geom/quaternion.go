package geom

import "math"

// Quaternion is stored as (X, Y, Z, W).
type Quaternion = Vector4

func NewQuaternion(x, y, z, w float32) *Quaternion {
	return &Vector4{X: x, Y: y, Z: z, W: w}
}

func NewQuaternionFromArray(arr [4]Element) *Quaternion {
	return &Vector4{X: arr[0], Y: arr[1], Z: arr[2], W: arr[3]}
}

func IdentityQuaternion() *Quaternion {
	return &Vector4{W: 1}
}

// NewQuaternionFromMatrix4 extracts the rotation of a pure rotation matrix.
func NewQuaternionFromMatrix4(m *Matrix4) *Quaternion {
	m11, m12, m13 := float64(m[0]), float64(m[4]), float64(m[8])
	m21, m22, m23 := float64(m[1]), float64(m[5]), float64(m[9])
	m31, m32, m33 := float64(m[2]), float64(m[6]), float64(m[10])

	var x, y, z, w float64
	trace := m11 + m22 + m33
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		w = 0.25 / s
		x = (m32 - m23) * s
		y = (m13 - m31) * s
		z = (m21 - m12) * s
	case m11 > m22 && m11 > m33:
		s := 2.0 * math.Sqrt(1.0+m11-m22-m33)
		w = (m32 - m23) / s
		x = 0.25 * s
		y = (m12 + m21) / s
		z = (m13 + m31) / s
	case m22 > m33:
		s := 2.0 * math.Sqrt(1.0+m22-m11-m33)
		w = (m13 - m31) / s
		x = (m12 + m21) / s
		y = 0.25 * s
		z = (m23 + m32) / s
	default:
		s := 2.0 * math.Sqrt(1.0+m33-m11-m22)
		w = (m21 - m12) / s
		x = (m13 + m31) / s
		y = (m23 + m32) / s
		z = 0.25 * s
	}
	q := &Quaternion{X: Element(x), Y: Element(y), Z: Element(z), W: Element(w)}
	if q.W < 0 {
		q = q.Scale(-1)
	}
	return q
}

// Inverse returns the conjugate. q must be normalized.
func (v *Vector4) Inverse() *Vector4 {
	return &Vector4{X: -v.X, Y: -v.Y, Z: -v.Z, W: v.W}
}

// Returns Hamilton product
func (a *Vector4) Mul(b *Vector4) *Vector4 {
	return &Vector4{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z, // 1
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y, // i
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X, // j
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W, // k
	}
}

// ApplyTo rotates v.
func (q *Vector4) ApplyTo(v *Vector3) *Vector3 {
	r := q.Mul(&Vector4{X: v.X, Y: v.Y, Z: v.Z}).Mul(q.Inverse())
	return &Vector3{X: r.X, Y: r.Y, Z: r.Z}
}

func (q *Vector4) IsIdentity() bool {
	return q.X == 0 && q.Y == 0 && q.Z == 0 && q.W == 1
}
