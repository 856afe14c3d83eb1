package geom

import "math"

// RotationOrder names the axes in the order their rotations are composed,
// left to right (intrinsic rotations).
type RotationOrder int

const (
	RotationOrderXYZ RotationOrder = iota
	RotationOrderYXZ
	RotationOrderZXY
	RotationOrderZYX
)

var rotationAxes = map[RotationOrder][3]int{
	RotationOrderXYZ: {0, 1, 2},
	RotationOrderYXZ: {1, 0, 2},
	RotationOrderZXY: {2, 0, 1},
	RotationOrderZYX: {2, 1, 0},
}

// EulerAngles are radians around X, Y and Z.
type EulerAngles struct {
	Vector3
	Order RotationOrder
}

func NewEuler(x, y, z float32, order RotationOrder) *EulerAngles {
	return &EulerAngles{Vector3: Vector3{x, y, z}, Order: order}
}

func axisQuaternion(axis int, angle Element) *Quaternion {
	s, c := math.Sincos(float64(angle) / 2)
	q := &Quaternion{W: Element(c)}
	switch axis {
	case 0:
		q.X = Element(s)
	case 1:
		q.Y = Element(s)
	case 2:
		q.Z = Element(s)
	}
	return q
}

func (v *EulerAngles) ToQuaternion() *Quaternion {
	axes, ok := rotationAxes[v.Order]
	if !ok {
		return IdentityQuaternion()
	}
	angles := v.Array()
	q := IdentityQuaternion()
	for _, a := range axes {
		q = q.Mul(axisQuaternion(a, angles[a]))
	}
	return q
}

func (v *EulerAngles) ToMatrix4() *Matrix4 {
	return NewRotationMatrix4FromQuaternion(v.ToQuaternion())
}
