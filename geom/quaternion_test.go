package geom

import (
	"math"
	"testing"
)

func TestQuaternionApplyTo(t *testing.T) {
	const eps = 0.00001
	v := NewVector3(1, 2, 3)
	half := NewEuler(math.Pi, 0, 0, RotationOrderXYZ).ToQuaternion()
	q := NewEuler(1, 2, 3, RotationOrderXYZ).ToQuaternion()

	for _, c := range []struct {
		name string
		q    *Quaternion
		want *Vector3
	}{
		{"identity", IdentityQuaternion(), v},
		{"full turn", NewEuler(2*math.Pi, 0, 0, RotationOrderXYZ).ToQuaternion(), v},
		{"half turn twice", half.Mul(half), v},
		{"q times inverse", q.Mul(q.Inverse()), v},
		{"half turn", half, NewVector3(1, -2, -3)},
	} {
		t.Run(c.name, func(t *testing.T) {
			if got := c.q.ApplyTo(v); got.Sub(c.want).Len() > eps {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestQuaternionMatchesMatrix(t *testing.T) {
	const eps = 0.0001
	q := NewEuler(0.4, -0.7, 1.9, RotationOrderZXY).ToQuaternion()
	v := NewVector3(-1, 0.5, 2)
	if a, b := q.ApplyTo(v), NewRotationMatrix4FromQuaternion(q).ApplyTo(v); a.Sub(b).Len() > eps {
		t.Error("quaternion and matrix disagree: ", a, b)
	}
}

func TestQuaternionFromMatrix(t *testing.T) {
	const eps = 0.00001
	for _, e := range []*EulerAngles{
		NewEuler(0, 0, 0, RotationOrderXYZ),
		NewEuler(0.1, 0.2, 0.3, RotationOrderXYZ),
		NewEuler(math.Pi*0.9, 0, 0, RotationOrderXYZ),
		NewEuler(0, math.Pi*0.9, 0, RotationOrderXYZ),
		NewEuler(0, 0, math.Pi*0.9, RotationOrderXYZ),
	} {
		q := e.ToQuaternion()
		q2 := NewQuaternionFromMatrix4(NewRotationMatrix4FromQuaternion(q))
		if q.Sub(q2).Len() > eps && q.Add(q2).Len() > eps {
			t.Error("quaternion: ", q, q2)
		}
	}
}
