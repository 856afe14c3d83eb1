// Package rdb models the records of the legacy resource database.
//
// A Model is a flat list of type-tagged records that reference each other by
// index into the same list. An Actor is a joint hierarchy with skinned meshes
// whose animations are stored as separate records.
package rdb

import "fmt"

// Kind selects a record family in a Store.
type Kind uint8

const (
	KindModel Kind = iota + 1
	KindActor
	KindAnimation
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindActor:
		return "actor"
	case KindAnimation:
		return "animation"
	case KindImage:
		return "image"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

type ID uint32

// NoRef marks an absent record reference.
const NoRef = -1

type RecordType uint8

const (
	RecordMeshInstance RecordType = iota + 1
	RecordReferenceFrame
	RecordConnector
	RecordMeshData
	RecordSubMesh
	RecordBoundingVolume
	RecordMaterial
	RecordTexture
	RecordAnimTrack
)

func (t RecordType) String() string {
	switch t {
	case RecordMeshInstance:
		return "MeshInstance"
	case RecordReferenceFrame:
		return "ReferenceFrame"
	case RecordConnector:
		return "Connector"
	case RecordMeshData:
		return "MeshData"
	case RecordSubMesh:
		return "SubMesh"
	case RecordBoundingVolume:
		return "BoundingVolume"
	case RecordMaterial:
		return "Material"
	case RecordTexture:
		return "Texture"
	case RecordAnimTrack:
		return "AnimTrack"
	}
	return fmt.Sprintf("RecordType(%d)", uint8(t))
}

type Record interface {
	RecordType() RecordType
}

type Transform struct {
	Translation [3]float32
	Rotation    [4]float32 // x, y, z, w
}

var IdentityTransform = Transform{Rotation: [4]float32{0, 0, 0, 1}}

type MeshInstance struct {
	Name      string
	Transform Transform
	MeshData  int
	Bounds    int
	AnimTrack int
	Children  []int
}

type ReferenceFrame struct {
	Name      string
	Transform Transform
	Connector int
	AnimTrack int
	Children  []int
}

// Connector is an attachment point. Angles are XYZ euler radians.
type Connector struct {
	Name   string
	Offset [3]float32
	Angles [3]float32
}

type MeshData struct {
	Name      string
	SubMeshes []int
}

type SubMesh struct {
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Indices   []uint32
	Material  int
}

type BoundingVolume struct {
	Min [3]float32
	Max [3]float32
}

type RenderState uint8

const (
	RenderCullNone RenderState = iota + 1
	RenderAlphaBlend
	RenderSpecularOff
	RenderAlphaTest
	RenderLightingOff
)

type Material struct {
	Name      string
	Diffuse   [4]float32
	Emissive  [3]float32
	Shininess float32

	DiffuseTexture  int
	NormalTexture   int
	EmissiveTexture int

	RenderStates []RenderState
}

func (m *Material) HasState(s RenderState) bool {
	for _, v := range m.RenderStates {
		if v == s {
			return true
		}
	}
	return false
}

type Texture struct {
	Name  string
	Image ID
}

type Keyframe struct {
	Time        float32
	Translation [3]float32
	Rotation    [4]float32
}

type AnimTrack struct {
	Name string
	Keys []Keyframe
}

func (*MeshInstance) RecordType() RecordType   { return RecordMeshInstance }
func (*ReferenceFrame) RecordType() RecordType { return RecordReferenceFrame }
func (*Connector) RecordType() RecordType      { return RecordConnector }
func (*MeshData) RecordType() RecordType       { return RecordMeshData }
func (*SubMesh) RecordType() RecordType        { return RecordSubMesh }
func (*BoundingVolume) RecordType() RecordType { return RecordBoundingVolume }
func (*Material) RecordType() RecordType       { return RecordMaterial }
func (*Texture) RecordType() RecordType        { return RecordTexture }
func (*AnimTrack) RecordType() RecordType      { return RecordAnimTrack }

type Model struct {
	Name    string
	Records []Record
}

// Add appends r and returns its index.
func (m *Model) Add(r Record) int {
	m.Records = append(m.Records, r)
	return len(m.Records) - 1
}

type Joint struct {
	Name      string
	Transform Transform
	Children  []int
}

// SkinVertex is influenced by two joints. Weight applies to Joints[0];
// Joints[1] gets 1-Weight. Offsets and Normals are relative to each joint.
type SkinVertex struct {
	Joints  [2]uint16
	Weight  float32
	Offsets [2][3]float32
	Normals [2][3]float32
	UV      [2]float32
}

type SkinMesh struct {
	Name     string
	Vertices []SkinVertex
	Indices  []uint32
	Material int
}

type Actor struct {
	Name       string
	Joints     []Joint
	Meshes     []SkinMesh
	Materials  []Material
	Textures   []Texture
	Animations []ID
}

type JointTrack struct {
	Joint int
	Keys  []Keyframe
}

type ActorAnimation struct {
	Name   string
	Tracks []JointTrack
}
