package scene

import (
	"fmt"
	"strings"
)

// Axis is a set of coordinate axes.
type Axis uint8

const (
	AxisX Axis = 1 << iota
	AxisY
	AxisZ
)

// ParseAxis parses strings like "x", "xz" or "" (no mirroring).
func ParseAxis(s string) (Axis, error) {
	var a Axis
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'x':
			a |= AxisX
		case 'y':
			a |= AxisY
		case 'z':
			a |= AxisZ
		case ',', ' ':
		default:
			return 0, fmt.Errorf("invalid mirror axis %q", s)
		}
	}
	return a, nil
}

func (a Axis) Count() int {
	n := 0
	for i := 0; i < 3; i++ {
		if a&(1<<i) != 0 {
			n++
		}
	}
	return n
}

func (a Axis) String() string {
	s := ""
	for i, name := range []string{"x", "y", "z"} {
		if a&(1<<i) != 0 {
			s += name
		}
	}
	return s
}

// signs returns -1 for mirrored axes.
func (a Axis) signs() [3]float32 {
	s := [3]float32{1, 1, 1}
	for i := 0; i < 3; i++ {
		if a&(1<<i) != 0 {
			s[i] = -1
		}
	}
	return s
}

func mirrorVec3(v *[3]float32, s [3]float32) {
	v[0] *= s[0]
	v[1] *= s[1]
	v[2] *= s[2]
}

// A reflection conjugates a rotation: the axis part flips sign with the
// determinant, which is the same as flipping the mirrored components.
func mirrorQuat(q []float32, s [3]float32) {
	det := s[0] * s[1] * s[2]
	for i := 0; i < 3; i++ {
		q[i] *= s[i] * det
	}
}

// Mirror reflects g across the given axes and recomputes bounds.
func Mirror(g *Graph, axes Axis) {
	if axes == 0 {
		return
	}
	s := axes.signs()
	for _, m := range g.Meshes {
		for _, p := range m.Primitives {
			for i := range p.Positions {
				mirrorVec3(&p.Positions[i], s)
			}
			for i := range p.Normals {
				mirrorVec3(&p.Normals[i], s)
			}
			if axes.Count()%2 == 1 {
				for i := 0; i+2 < len(p.Indices); i += 3 {
					p.Indices[i+1], p.Indices[i+2] = p.Indices[i+2], p.Indices[i+1]
				}
			}
		}
	}
	for _, n := range g.Nodes {
		if n.Translation != nil {
			mirrorVec3(n.Translation, s)
		}
		if n.Rotation != nil {
			mirrorQuat(n.Rotation[:], s)
		}
	}
	for _, a := range g.Animations {
		for _, c := range a.Channels {
			for _, k := range c.Keys {
				switch c.Path {
				case PathTranslation:
					for i := 0; i < 3 && i < len(k.Value); i++ {
						k.Value[i] *= s[i]
					}
				case PathRotation:
					if len(k.Value) == 4 {
						mirrorQuat(k.Value, s)
					}
				}
			}
		}
	}
	sign := [4]float32{s[0], s[1], s[2], 1}
	for _, skin := range g.Skins {
		for i := range skin.InverseBindMatrices {
			m := &skin.InverseBindMatrices[i]
			for col := 0; col < 4; col++ {
				for row := 0; row < 4; row++ {
					m[col*4+row] *= sign[row] * sign[col]
				}
			}
		}
	}
	g.UpdateBounds()
}
