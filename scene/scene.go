package scene

import (
	"fmt"

	"github.com/binzume/rdbconv/geom"
)

// None marks an absent index reference.
const None = -1

// MaxIndex is the largest 16-bit vertex index. A primitive holds at most
// MaxIndex vertices.
const MaxIndex = 0xffff

type Graph struct {
	Name       string
	Nodes      []*Node
	Root       int
	Meshes     []*Mesh
	Materials  []*Material
	Textures   []*Texture
	Skins      []*Skin
	Animations []*Animation
}

type Node struct {
	Name     string
	Mesh     int
	Skin     int
	Children []int

	// nil means identity.
	Translation *[3]float32
	Rotation    *[4]float32
	Scale       *[3]float32

	// Animated is set when an animation channel drives this node.
	Animated bool
}

type Mesh struct {
	Name       string
	Primitives []*Primitive
}

type Primitive struct {
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Indices   []uint16

	// skeletal primitives only
	Joints  [][4]uint16
	Weights [][4]float32

	Material int
	Bounds   AABB
}

type Skin struct {
	Name                string
	Joints              []int
	InverseBindMatrices []geom.Matrix4
	Skeleton            int
}

type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
)

func (p Path) String() string {
	switch p {
	case PathTranslation:
		return "translation"
	case PathRotation:
		return "rotation"
	case PathScale:
		return "scale"
	}
	return fmt.Sprintf("Path(%d)", int(p))
}

// Components returns the length of a keyframe value.
func (p Path) Components() int {
	if p == PathRotation {
		return 4
	}
	return 3
}

type Keyframe struct {
	Time  float32
	Value []float32
}

type Channel struct {
	Node int
	Path Path
	Keys []Keyframe
}

type Animation struct {
	Name     string
	Channels []*Channel
}

type AlphaMode int

const (
	AlphaOpaque AlphaMode = iota
	AlphaBlend
	AlphaMask
)

type Material struct {
	Name        string
	BaseColor   [4]float32
	Metallic    float32
	Roughness   float32
	Emissive    *[3]float32
	AlphaMode   AlphaMode
	AlphaCutoff float32
	DoubleSided bool
	Unlit       bool

	BaseColorTexture int
	NormalTexture    int
	EmissiveTexture  int
}

func NewMaterial(name string) *Material {
	return &Material{
		Name:             name,
		BaseColor:        [4]float32{1, 1, 1, 1},
		Roughness:        1,
		AlphaCutoff:      0.5,
		BaseColorTexture: None,
		NormalTexture:    None,
		EmissiveTexture:  None,
	}
}

// Texture is an encoded image (PNG or JPEG) with a default sampler.
type Texture struct {
	Name     string
	MimeType string
	Data     []byte
}

func NewGraph(name string) *Graph {
	return &Graph{Name: name, Root: None}
}

func NewNode(name string) *Node {
	return &Node{Name: name, Mesh: None, Skin: None}
}

// AddNode appends n and returns its index.
func (g *Graph) AddNode(n *Node) int {
	g.Nodes = append(g.Nodes, n)
	return len(g.Nodes) - 1
}

func (g *Graph) AddMesh(m *Mesh) int {
	g.Meshes = append(g.Meshes, m)
	return len(g.Meshes) - 1
}

// Parents returns the parent index of every node, None for parentless nodes.
func (g *Graph) Parents() []int {
	parents := make([]int, len(g.Nodes))
	for i := range parents {
		parents[i] = None
	}
	for i, n := range g.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(parents) {
				parents[c] = i
			}
		}
	}
	return parents
}

// LocalMatrix returns the node transform as T * R * S.
func (n *Node) LocalMatrix() *geom.Matrix4 {
	var t, s *geom.Vector3
	var r *geom.Quaternion
	if n.Translation != nil {
		t = geom.NewVector3FromArray(*n.Translation)
	}
	if n.Rotation != nil {
		r = geom.NewQuaternionFromArray(*n.Rotation)
	}
	if n.Scale != nil {
		s = geom.NewVector3FromArray(*n.Scale)
	}
	return geom.NewTRSMatrix4(t, r, s)
}

// SetTRS stores t/r/s, dropping identity components.
func (n *Node) SetTRS(t [3]float32, r [4]float32, s [3]float32) {
	n.Translation, n.Rotation, n.Scale = nil, nil, nil
	if t != [3]float32{} {
		n.Translation = &t
	}
	if r != [4]float32{0, 0, 0, 1} && r != [4]float32{} {
		n.Rotation = &r
	}
	if s != [3]float32{1, 1, 1} && s != [3]float32{} {
		n.Scale = &s
	}
}

// Validate checks index references and the tree invariant.
func (g *Graph) Validate() error {
	if g.Root < 0 || g.Root >= len(g.Nodes) {
		return fmt.Errorf("%w: root %d out of range", ErrMalformedInput, g.Root)
	}
	seen := make([]bool, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.Mesh != None && (n.Mesh < 0 || n.Mesh >= len(g.Meshes)) {
			return fmt.Errorf("%w: node %d: mesh %d out of range", ErrMalformedInput, i, n.Mesh)
		}
		if n.Skin != None && (n.Skin < 0 || n.Skin >= len(g.Skins)) {
			return fmt.Errorf("%w: node %d: skin %d out of range", ErrMalformedInput, i, n.Skin)
		}
		for _, c := range n.Children {
			if c < 0 || c >= len(g.Nodes) {
				return fmt.Errorf("%w: node %d: child %d out of range", ErrMalformedInput, i, c)
			}
			if c == g.Root || seen[c] {
				return fmt.Errorf("%w: node %d has more than one parent", ErrMalformedInput, c)
			}
			seen[c] = true
		}
	}
	// every node must hang below the root, which also rules out cycles.
	reached := 0
	stack := []int{g.Root}
	visited := make([]bool, len(g.Nodes))
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[i] {
			return fmt.Errorf("%w: cycle at node %d", ErrMalformedInput, i)
		}
		visited[i] = true
		reached++
		stack = append(stack, g.Nodes[i].Children...)
	}
	if reached != len(g.Nodes) {
		return fmt.Errorf("%w: %d nodes unreachable from root", ErrMalformedInput, len(g.Nodes)-reached)
	}
	for _, s := range g.Skins {
		if len(s.Joints) != len(s.InverseBindMatrices) {
			return fmt.Errorf("%w: skin %q: %d joints, %d inverse bind matrices", ErrMalformedInput, s.Name, len(s.Joints), len(s.InverseBindMatrices))
		}
	}
	for _, a := range g.Animations {
		for _, c := range a.Channels {
			if c.Node < 0 || c.Node >= len(g.Nodes) {
				return fmt.Errorf("%w: animation %q: target %d out of range", ErrMalformedInput, a.Name, c.Node)
			}
			for k := 1; k < len(c.Keys); k++ {
				if c.Keys[k].Time <= c.Keys[k-1].Time {
					return fmt.Errorf("%w: animation %q: keyframe times not increasing", ErrMalformedInput, a.Name)
				}
			}
		}
	}
	return nil
}

// Duration is the largest keyframe time over all channels.
func (a *Animation) Duration() float32 {
	var d float32
	for _, c := range a.Channels {
		if n := len(c.Keys); n > 0 && c.Keys[n-1].Time > d {
			d = c.Keys[n-1].Time
		}
	}
	return d
}

func (p *Primitive) Skinned() bool {
	return len(p.Joints) > 0
}

// NewPrimitive copies the vertex streams and converts 32-bit indices,
// failing when any vertex is not addressable with 16 bits.
func NewPrimitive(positions, normals [][3]float32, uvs [][2]float32, indices []uint32, material int) (*Primitive, error) {
	if len(positions) > MaxIndex {
		return nil, fmt.Errorf("%w: %d vertices", ErrCapacityExceeded, len(positions))
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: index count %d is not a multiple of 3", ErrMalformedInput, len(indices))
	}
	if len(normals) != 0 && len(normals) != len(positions) {
		return nil, fmt.Errorf("%w: %d normals for %d vertices", ErrMalformedInput, len(normals), len(positions))
	}
	if len(uvs) != 0 && len(uvs) != len(positions) {
		return nil, fmt.Errorf("%w: %d uvs for %d vertices", ErrMalformedInput, len(uvs), len(positions))
	}
	idx := make([]uint16, len(indices))
	for i, v := range indices {
		if v > MaxIndex {
			return nil, fmt.Errorf("%w: index %d", ErrCapacityExceeded, v)
		}
		if int(v) >= len(positions) {
			return nil, fmt.Errorf("%w: index %d out of range (%d vertices)", ErrMalformedInput, v, len(positions))
		}
		idx[i] = uint16(v)
	}
	p := &Primitive{
		Positions: append([][3]float32(nil), positions...),
		Normals:   append([][3]float32(nil), normals...),
		UVs:       append([][2]float32(nil), uvs...),
		Indices:   idx,
		Material:  material,
	}
	p.UpdateBounds()
	return p, nil
}
