package gltfutil

import (
	"errors"
	"testing"

	"github.com/binzume/rdbconv/geom"
	"github.com/binzume/rdbconv/scene"
	"github.com/qmuntal/gltf"
)

func triangleGraph(t *testing.T) *scene.Graph {
	t.Helper()
	g := scene.NewGraph("tri")
	p, err := scene.NewPrimitive(
		[][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		nil, nil, []uint32{0, 1, 2}, scene.None)
	if err != nil {
		t.Fatal(err)
	}
	n := scene.NewNode("tri")
	n.Mesh = g.AddMesh(&scene.Mesh{Name: "tri", Primitives: []*scene.Primitive{p}})
	g.Root = g.AddNode(n)
	return g
}

func skinnedGraph(t *testing.T) *scene.Graph {
	t.Helper()
	g := scene.NewGraph("actor")
	root := scene.NewNode("root")
	j0 := scene.NewNode("j0")
	j1 := scene.NewNode("j1")
	j1.SetTRS([3]float32{0, 1, 0}, [4]float32{0, 0, 0, 1}, [3]float32{1, 1, 1})
	body := scene.NewNode("body")
	g.Root = g.AddNode(root)
	i0 := g.AddNode(j0)
	i1 := g.AddNode(j1)
	ib := g.AddNode(body)
	root.Children = []int{i0, ib}
	j0.Children = []int{i1}

	p, err := scene.NewPrimitive(
		[][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		[][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		[][2]float32{{0, 0}, {1, 0}, {0, 1}},
		[]uint32{0, 1, 2}, scene.None)
	if err != nil {
		t.Fatal(err)
	}
	p.Joints = [][4]uint16{{0, 1, 0, 0}, {0, 1, 0, 0}, {1, 0, 0, 0}}
	p.Weights = [][4]float32{{1, 0, 0, 0}, {0.5, 0.5, 0, 0}, {1, 0, 0, 0}}
	body.Mesh = g.AddMesh(&scene.Mesh{Name: "body", Primitives: []*scene.Primitive{p}})
	body.Skin = 0
	g.Skins = []*scene.Skin{{
		Name:                "actor",
		Joints:              []int{i0, i1},
		InverseBindMatrices: []geom.Matrix4{*geom.NewMatrix4(), *geom.NewTranslateMatrix4(0, -1, 0)},
		Skeleton:            i0,
	}}
	g.Animations = []*scene.Animation{{
		Name: "walk",
		Channels: []*scene.Channel{
			{Node: i1, Path: scene.PathTranslation, Keys: []scene.Keyframe{
				{Time: 0, Value: []float32{0, 1, 0}},
				{Time: 1.5, Value: []float32{0, 2, 0}},
			}},
			{Node: i1, Path: scene.PathRotation, Keys: []scene.Keyframe{
				{Time: 0, Value: []float32{0, 0, 0, 1}},
				{Time: 1.5, Value: []float32{0, 0.7071068, 0, 0.7071068}},
			}},
		},
	}}
	j1.Animated = true
	return g
}

func TestBuildBufferTriangle(t *testing.T) {
	g := triangleGraph(t)
	buf, layout, err := BuildBuffer(g)
	if err != nil {
		t.Fatal(err)
	}
	pl := layout.Meshes[0][0]
	if pl.Position.DataLength != 36 || pl.Position.Length != 36 {
		t.Errorf("position section: %+v", pl.Position)
	}
	if pl.Indices.DataLength != 6 || pl.Indices.Length != 8 {
		t.Errorf("index section: %+v", pl.Indices)
	}
	if pl.Normal != nil || pl.TexCoord != nil || pl.Joints != nil {
		t.Error("unexpected optional sections")
	}
	if len(buf) != 44 {
		t.Errorf("buffer length %d, want 44", len(buf))
	}
	// padding bytes are zero
	if buf[42] != 0 || buf[43] != 0 {
		t.Error("padding not zeroed")
	}
	if pl.Position.Min[0] != 0 || pl.Position.Max[1] != 1 {
		t.Errorf("bounds %v %v", pl.Position.Min, pl.Position.Max)
	}

	doc := BuildDocument(g, layout, buf, nil)
	if len(doc.Scenes) != 1 || len(doc.Scenes[0].Nodes) != 1 {
		t.Fatalf("scenes: %+v", doc.Scenes)
	}
	if n := doc.Nodes[*doc.Scene]; len(n.Children) != 0 || n.Mesh == nil {
		t.Errorf("root node: %+v", n)
	}
	if doc.Buffers[0].ByteLength != 44 {
		t.Errorf("buffer byteLength %d", doc.Buffers[0].ByteLength)
	}
}

func TestLayoutAlignment(t *testing.T) {
	buf, layout, err := BuildBuffer(skinnedGraph(t))
	if err != nil {
		t.Fatal(err)
	}
	var end uint32
	for i, s := range layout.Sections() {
		if s.Index != i {
			t.Errorf("section %d has index %d", i, s.Index)
		}
		if s.Offset%4 != 0 || (s.Offset+s.Length)%4 != 0 {
			t.Errorf("section %d misaligned: offset %d length %d", i, s.Offset, s.Length)
		}
		if s.Offset != end {
			t.Errorf("section %d starts at %d, previous ended at %d", i, s.Offset, end)
		}
		if s.Length < s.DataLength || s.Length-s.DataLength >= 4 {
			t.Errorf("section %d padding: %d/%d", i, s.DataLength, s.Length)
		}
		end = s.Offset + s.Length
	}
	if int(end) != len(buf) {
		t.Errorf("sections cover %d bytes, buffer has %d", end, len(buf))
	}
}

func TestLayoutOrder(t *testing.T) {
	g := skinnedGraph(t)
	_, layout, err := BuildBuffer(g)
	if err != nil {
		t.Fatal(err)
	}
	pl := layout.Meshes[0][0]
	cl := layout.Animations[0]
	sl := layout.Skins[0]
	if len(cl) != 2 {
		t.Fatalf("channels %d", len(cl))
	}
	if !(pl.Indices.Index < cl[0].Input.Index && cl[1].Output.Index < sl.InverseBindMatrices.Index) {
		t.Error("mesh sections must precede animation sections, which precede skin sections")
	}
	if pl.Joints.ComponentType != gltf.ComponentUshort || pl.Weights.Type != gltf.AccessorVec4 {
		t.Errorf("joints %+v weights %+v", pl.Joints, pl.Weights)
	}
	ibm := sl.InverseBindMatrices
	if ibm.Type != gltf.AccessorMat4 || ibm.Count != 2 || ibm.DataLength != 128 {
		t.Errorf("ibm section %+v", ibm)
	}
	if cl[0].Input.Max[0] != 1.5 {
		t.Errorf("input max %v", cl[0].Input.Max)
	}
	if cl[1].Output.Type != gltf.AccessorVec4 {
		t.Errorf("rotation output type %v", cl[1].Output.Type)
	}
}

func TestDocumentMatchesLayout(t *testing.T) {
	g := skinnedGraph(t)
	buf, layout, err := BuildBuffer(g)
	if err != nil {
		t.Fatal(err)
	}
	doc := BuildDocument(g, layout, buf, &DocumentOptions{Generator: "test"})
	sections := layout.Sections()
	if len(doc.BufferViews) != len(sections) || len(doc.Accessors) != len(sections) {
		t.Fatalf("views %d accessors %d sections %d", len(doc.BufferViews), len(doc.Accessors), len(sections))
	}
	for i, s := range sections {
		v := doc.BufferViews[i]
		if v.ByteOffset != s.Offset || v.ByteLength != s.Length {
			t.Errorf("view %d: %d+%d, section %d+%d", i, v.ByteOffset, v.ByteLength, s.Offset, s.Length)
		}
		if a := doc.Accessors[i]; *a.BufferView != uint32(i) || a.Count != s.Count {
			t.Errorf("accessor %d: %+v", i, a)
		}
	}
	if len(doc.Skins) != 1 || len(doc.Skins[0].Joints) != 2 {
		t.Errorf("skins: %+v", doc.Skins)
	}
	if len(doc.Animations) != 1 || len(doc.Animations[0].Channels) != 2 {
		t.Fatalf("animations: %+v", doc.Animations)
	}
	if doc.Animations[0].Channels[1].Target.Path != gltf.TRSRotation {
		t.Error("second channel should target rotation")
	}
	if doc.Nodes[2].Translation != [3]float32{0, 1, 0} {
		t.Errorf("node translation %v", doc.Nodes[2].Translation)
	}
	if doc.Nodes[1].Rotation != [4]float32{0, 0, 0, 1} {
		t.Errorf("identity rotation expected, got %v", doc.Nodes[1].Rotation)
	}
}

func TestDocumentMaterials(t *testing.T) {
	g := triangleGraph(t)
	m := scene.NewMaterial("glass")
	m.AlphaMode = scene.AlphaMask
	m.Unlit = true
	m.BaseColorTexture = 0
	g.Materials = []*scene.Material{m}
	g.Textures = []*scene.Texture{{Name: "glass", MimeType: "image/png", Data: []byte{1, 2, 3}}}
	g.Meshes[0].Primitives[0].Material = 0

	buf, layout, err := BuildBuffer(g)
	if err != nil {
		t.Fatal(err)
	}
	doc := BuildDocument(g, layout, buf, nil)
	mat := doc.Materials[0]
	if mat.AlphaMode != gltf.AlphaMask || mat.AlphaCutoff == nil || *mat.AlphaCutoff != 0.5 {
		t.Errorf("alpha: %v %v", mat.AlphaMode, mat.AlphaCutoff)
	}
	if _, ok := mat.Extensions[unlitExtension]; !ok {
		t.Error("unlit extension missing")
	}
	if len(doc.ExtensionsUsed) != 1 || doc.ExtensionsUsed[0] != unlitExtension {
		t.Errorf("extensionsUsed %v", doc.ExtensionsUsed)
	}
	if doc.Images[0].URI != "data:image/png;base64,AQID" {
		t.Errorf("image uri %q", doc.Images[0].URI)
	}
	if len(doc.Samplers) != 1 || *doc.Textures[0].Sampler != 0 {
		t.Error("textures share one default sampler")
	}

	doc = BuildDocument(g, layout, buf, &DocumentOptions{ImageURI: func(i int, t *scene.Texture) string { return t.Name + ".png" }})
	if doc.Images[0].URI != "glass.png" {
		t.Errorf("image uri %q", doc.Images[0].URI)
	}
}

func TestBuildBufferErrors(t *testing.T) {
	g := triangleGraph(t)
	g.Animations = []*scene.Animation{{Name: "empty", Channels: []*scene.Channel{{Node: 0, Path: scene.PathTranslation}}}}
	if _, _, err := BuildBuffer(g); !errors.Is(err, scene.ErrMalformedInput) {
		t.Errorf("empty channel: %v", err)
	}

	g = triangleGraph(t)
	g.Skins = []*scene.Skin{{Joints: []int{0}}}
	if _, _, err := BuildBuffer(g); !errors.Is(err, scene.ErrMalformedInput) {
		t.Errorf("skin without matrices: %v", err)
	}

	g = triangleGraph(t)
	g.Meshes[0].Primitives[0].Positions = make([][3]float32, scene.MaxIndex+1)
	if _, _, err := BuildBuffer(g); !errors.Is(err, scene.ErrCapacityExceeded) {
		t.Errorf("oversized primitive: %v", err)
	}
}

func TestNodeTRS(t *testing.T) {
	n := &gltf.Node{Matrix: gltf.DefaultMatrix, Translation: [3]float32{1, 2, 3}}
	tr, r, s := NodeTRS(n)
	if tr != [3]float32{1, 2, 3} || r != [4]float32{0, 0, 0, 1} || s != [3]float32{1, 1, 1} {
		t.Errorf("trs %v %v %v", tr, r, s)
	}

	m := *geom.NewTranslateMatrix4(4, 5, 6)
	n = &gltf.Node{Matrix: m}
	tr, r, _ = NodeTRS(n)
	if tr != [3]float32{4, 5, 6} || r != [4]float32{0, 0, 0, 1} {
		t.Errorf("from matrix: %v %v", tr, r)
	}
}
