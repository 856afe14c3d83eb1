package geom

import "testing"

func TestVector3Blend(t *testing.T) {
	a, b := NewVector3(2, 0, 0), NewVector3(0, 4, 0)
	for _, c := range []struct {
		w    Element
		want [3]Element
	}{
		{1, [3]Element{2, 0, 0}},
		{0, [3]Element{0, 4, 0}},
		{0.5, [3]Element{1, 2, 0}},
		{0.25, [3]Element{0.5, 3, 0}},
	} {
		if got := a.Blend(b, c.w).Array(); got != c.want {
			t.Errorf("Blend(%v) = %v, want %v", c.w, got, c.want)
		}
	}
}

func TestVector3Normalize(t *testing.T) {
	v := NewVector3(0, 3, 4)
	if n := v.Normalize(); n != v || v.Array() != [3]Element{0, 0.6, 0.8} {
		t.Error("Normalize must scale in place: ", v)
	}
	if zero := NewVector3(0, 0, 0); zero.Normalize().Array() != [3]Element{1, 0, 0} {
		t.Error("zero vector should normalize to +X: ", zero)
	}

	var out [4]Element
	NewVector3FromArray([3]Element{7, 8, 9}).ToArray(out[1:])
	if out != [4]Element{0, 7, 8, 9} {
		t.Error("ToArray: ", out)
	}
}

func TestVector4(t *testing.T) {
	zero := NewVector4(0, 0, 0, 0)
	if zero.Len() != 0 || zero.LenSqr() != 0 || zero.Dot(zero) != 0 {
		t.Error("len != 0")
	}
	if *zero.Normalize() != *NewVector4(0, 0, 0, 1) {
		t.Error("zero quaternion should normalize to identity: ", zero)
	}
	if *NewVector4(1, 2, 0, 0).Sub(NewVector4(1, 0, 0, 0)).Scale(0.5) != *NewVector4(0, 1, 0, 0) {
		t.Error("Vector4.Sub().Scale()")
	}
}
