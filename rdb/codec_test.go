package rdb

import (
	"errors"
	"reflect"
	"testing"
)

func newTestModel() *Model {
	m := &Model{Name: "Café"}
	m.Add(&ReferenceFrame{Name: "root", Transform: IdentityTransform, Connector: 1, AnimTrack: NoRef, Children: []int{2}})
	m.Add(&Connector{Name: "hardpoint", Offset: [3]float32{0, 1, 0}, Angles: [3]float32{0, 0.5, 0}})
	m.Add(&MeshInstance{Name: "hull", Transform: Transform{Translation: [3]float32{1, 2, 3}, Rotation: [4]float32{0, 0, 0, 1}}, MeshData: 3, Bounds: 5, AnimTrack: 8})
	m.Add(&MeshData{Name: "hull_data", SubMeshes: []int{4}})
	m.Add(&SubMesh{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:   [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		UVs:       [][2]float32{{0, 0}, {1, 0}, {0, 1}},
		Indices:   []uint32{0, 1, 2},
		Material:  6,
	})
	m.Add(&BoundingVolume{Min: [3]float32{0, 0, 0}, Max: [3]float32{1, 1, 0}})
	m.Add(&Material{Name: "steel", Diffuse: [4]float32{0.5, 0.5, 0.5, 1}, Shininess: 64,
		DiffuseTexture: 7, NormalTexture: NoRef, EmissiveTexture: NoRef,
		RenderStates: []RenderState{RenderCullNone, RenderAlphaBlend}})
	m.Add(&Texture{Name: "steel.tga", Image: 42})
	m.Add(&AnimTrack{Name: "spin", Keys: []Keyframe{
		{Time: 0, Rotation: [4]float32{0, 0, 0, 1}},
		{Time: 1, Translation: [3]float32{0, 1, 0}, Rotation: [4]float32{0, 0.7071, 0, 0.7071}},
	}})
	return m
}

func TestModelCodec(t *testing.T) {
	m := newTestModel()
	data, err := EncodeModel(m)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := DecodeModel(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m, m2) {
		t.Errorf("decoded model differs:\n%#v\n%#v", m, m2)
	}
}

func TestModelCodecErrors(t *testing.T) {
	data, _ := EncodeModel(newTestModel())

	if _, err := DecodeModel(data[:len(data)-3]); !errors.Is(err, ErrCorruptRecord) {
		t.Error("truncated data: ", err)
	}
	if _, err := DecodeActor(data); !errors.Is(err, ErrBadMagic) {
		t.Error("wrong kind: ", err)
	}

	bad := append([]byte(nil), data...)
	// first record type follows magic(4) + version(2) + name(2+4) + count(4)
	bad[16] = 99
	if _, err := DecodeModel(bad); !errors.Is(err, ErrCorruptRecord) {
		t.Error("unknown record type: ", err)
	}
}

func TestDecodeOversizedCounts(t *testing.T) {
	header := func(magic string) []byte {
		return append([]byte(magic), 1, 0, 0, 0) // version 1, empty name
	}
	actor := append(header("RDBA"),
		0, 0, 0, 0, // joints
		1, 0, 0, 0, // meshes
		0, 0, // mesh name
		0, 0, 0, 0, // material
		0xf0, 0xff, 0xff, 0xff, // vertices
	)
	if _, err := DecodeActor(actor); !errors.Is(err, ErrCorruptRecord) {
		t.Error("vertex count: ", err)
	}
	if _, err := DecodeModel(append(header("RDBM"), 0xff, 0xff, 0xff, 0x7f)); !errors.Is(err, ErrCorruptRecord) {
		t.Error("record count: ", err)
	}
	if _, err := DecodeAnimation(append(header("RDBN"), 2, 0, 0, 0, 1, 0, 0, 0)); !errors.Is(err, ErrCorruptRecord) {
		t.Error("track count: ", err)
	}
}

func TestActorCodec(t *testing.T) {
	a := &Actor{
		Name: "walker",
		Joints: []Joint{
			{Name: "hip", Transform: IdentityTransform, Children: []int{1}},
			{Name: "knee", Transform: Transform{Translation: [3]float32{0, -1, 0}, Rotation: [4]float32{0, 0, 0, 1}}},
		},
		Meshes: []SkinMesh{{
			Name:     "leg",
			Material: 0,
			Vertices: []SkinVertex{
				{Joints: [2]uint16{0, 1}, Weight: 0.25, Offsets: [2][3]float32{{0, -0.5, 0}, {0, 0.5, 0}}, Normals: [2][3]float32{{1, 0, 0}, {1, 0, 0}}, UV: [2]float32{0.5, 0.5}},
			},
			Indices: []uint32{0, 0, 0},
		}},
		Materials:  []Material{{Name: "skin", Diffuse: [4]float32{1, 0.8, 0.7, 1}, DiffuseTexture: 0, NormalTexture: NoRef, EmissiveTexture: NoRef}},
		Textures:   []Texture{{Name: "skin.bmp", Image: 7}},
		Animations: []ID{100, 101},
	}
	data, err := EncodeActor(a)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := DecodeActor(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, a2) {
		t.Errorf("decoded actor differs:\n%#v\n%#v", a, a2)
	}

	anim := &ActorAnimation{Name: "walk", Tracks: []JointTrack{{Joint: 1, Keys: []Keyframe{{Time: 0, Rotation: [4]float32{0, 0, 0, 1}}}}}}
	data, err = EncodeAnimation(anim)
	if err != nil {
		t.Fatal(err)
	}
	anim2, err := DecodeAnimation(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(anim, anim2) {
		t.Errorf("decoded animation differs:\n%#v\n%#v", anim, anim2)
	}
}
