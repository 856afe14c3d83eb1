package scene

import (
	"reflect"
	"testing"

	"github.com/binzume/rdbconv/geom"
)

func newMirrorFixture() *Graph {
	g := NewGraph("mirror")
	p, _ := NewPrimitive(
		[][3]float32{{1, 2, 3}, {-4, 5, 6}, {7, -8, 9}, {0, 1, 0}},
		[][3]float32{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}, {0.6, 0.8, 0}},
		[][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
		[]uint32{0, 1, 2, 2, 1, 3}, None)
	g.AddMesh(&Mesh{Name: "m", Primitives: []*Primitive{p}})
	n := NewNode("n")
	n.Mesh = 0
	n.SetTRS([3]float32{1, 2, 3}, [4]float32{0.1, 0.2, 0.3, 0.927}, [3]float32{1, 1, 1})
	g.Root = g.AddNode(n)
	g.Skins = append(g.Skins, &Skin{
		Joints:              []int{0},
		InverseBindMatrices: []geom.Matrix4{*geom.NewTranslateMatrix4(-1, -2, -3)},
		Skeleton:            0,
	})
	g.Animations = append(g.Animations, &Animation{Channels: []*Channel{
		{Node: 0, Path: PathTranslation, Keys: []Keyframe{{0, []float32{1, 2, 3}}}},
	}})
	return g
}

func copyIndices(g *Graph) []uint16 {
	return append([]uint16(nil), g.Meshes[0].Primitives[0].Indices...)
}

func TestMirrorTwice(t *testing.T) {
	orig := newMirrorFixture()
	g := newMirrorFixture()
	Mirror(g, AxisX)
	if reflect.DeepEqual(g.Meshes[0].Primitives[0].Positions, orig.Meshes[0].Primitives[0].Positions) {
		t.Fatal("mirror did nothing")
	}
	Mirror(g, AxisX)
	if !reflect.DeepEqual(g.Meshes[0].Primitives[0], orig.Meshes[0].Primitives[0]) {
		t.Error("primitive not restored: ", g.Meshes[0].Primitives[0])
	}
	if !reflect.DeepEqual(g.Nodes, orig.Nodes) {
		t.Error("nodes not restored")
	}
	if !reflect.DeepEqual(g.Skins, orig.Skins) {
		t.Error("skins not restored")
	}
}

func TestMirrorWinding(t *testing.T) {
	orig := copyIndices(newMirrorFixture())

	for _, c := range []struct {
		name     string
		axes     Axis
		reversed bool
	}{
		{"x", AxisX, true},
		{"y", AxisY, true},
		{"xz", AxisX | AxisZ, false},
		{"xyz", AxisX | AxisY | AxisZ, true},
	} {
		t.Run(c.name, func(t *testing.T) {
			g := newMirrorFixture()
			Mirror(g, c.axes)
			got := copyIndices(g)
			for i := 0; i < len(got); i += 3 {
				if got[i] != orig[i] {
					t.Error("first index changed at triangle ", i/3)
				}
				swapped := got[i+1] == orig[i+2] && got[i+2] == orig[i+1]
				same := got[i+1] == orig[i+1] && got[i+2] == orig[i+2]
				if c.reversed && !swapped || !c.reversed && !same {
					t.Error("winding: ", got[i:i+3], orig[i:i+3])
				}
			}
		})
	}
}

func TestMirrorValues(t *testing.T) {
	g := newMirrorFixture()
	Mirror(g, AxisX)
	p := g.Meshes[0].Primitives[0]
	if p.Positions[0] != [3]float32{-1, 2, 3} || p.Normals[1] != [3]float32{-1, 0, 0} {
		t.Error("vertex: ", p.Positions[0], p.Normals[1])
	}
	if p.Bounds.Min[0] != -7 || p.Bounds.Max[0] != 4 {
		t.Error("bounds not recomputed: ", p.Bounds)
	}
	if *g.Nodes[0].Translation != [3]float32{-1, 2, 3} {
		t.Error("translation: ", *g.Nodes[0].Translation)
	}
	if *g.Nodes[0].Rotation != [4]float32{0.1, -0.2, -0.3, 0.927} {
		t.Error("rotation: ", *g.Nodes[0].Rotation)
	}
	if v := g.Animations[0].Channels[0].Keys[0].Value; v[0] != -1 {
		t.Error("key: ", v)
	}
	// inverse of a translation by (-1,2,3)
	if m := g.Skins[0].InverseBindMatrices[0]; m[12] != 1 || m[13] != -2 || m[14] != -3 {
		t.Error("inverse bind matrix: ", m)
	}
}

func TestParseAxis(t *testing.T) {
	a, err := ParseAxis("X,z")
	if err != nil || a != AxisX|AxisZ || a.Count() != 2 || a.String() != "xz" {
		t.Error("ParseAxis: ", a, err)
	}
	if _, err := ParseAxis("w"); err == nil {
		t.Error("invalid axis should fail")
	}
}
