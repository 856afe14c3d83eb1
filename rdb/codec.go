package rdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const formatVersion = 1

var (
	magicModel     = [4]byte{'R', 'D', 'B', 'M'}
	magicActor     = [4]byte{'R', 'D', 'B', 'A'}
	magicAnimation = [4]byte{'R', 'D', 'B', 'N'}
)

var (
	ErrCorruptRecord = errors.New("corrupt record")
	ErrBadMagic      = errors.New("bad record magic")
)

// names are stored in the game's code page.
var nameEncoding encoding.Encoding = charmap.Windows1252

type recordReader struct {
	r   *bytes.Reader
	err error
}

func (p *recordReader) read(v interface{}) {
	if p.err != nil {
		return
	}
	if err := binary.Read(p.r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%w: unexpected end of data", ErrCorruptRecord)
		}
		p.err = err
	}
}

func (p *recordReader) readUint8() uint8 {
	var v uint8
	p.read(&v)
	return v
}

func (p *recordReader) readUint16() uint16 {
	var v uint16
	p.read(&v)
	return v
}

func (p *recordReader) readUint32() uint32 {
	var v uint32
	p.read(&v)
	return v
}

func (p *recordReader) readRef() int {
	var v int32
	p.read(&v)
	return int(v)
}

func (p *recordReader) readFloat() float32 {
	var v float32
	p.read(&v)
	return v
}

// readCount reads a list length. Each element takes at least size bytes,
// so a count the remaining data cannot hold is rejected before allocating.
func (p *recordReader) readCount(size int) int {
	n := p.readUint32()
	if p.err == nil && uint64(n)*uint64(size) > uint64(p.r.Len()) {
		p.err = fmt.Errorf("%w: count %d exceeds remaining %d bytes", ErrCorruptRecord, n, p.r.Len())
	}
	if p.err != nil {
		return 0
	}
	return int(n)
}

func (p *recordReader) readString() string {
	n := int(p.readUint16())
	if p.err != nil || n == 0 {
		return ""
	}
	b := make([]byte, n)
	p.read(b)
	s, err := nameEncoding.NewDecoder().Bytes(b)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return string(s)
}

func (p *recordReader) readTransform() Transform {
	var t Transform
	p.read(&t.Translation)
	p.read(&t.Rotation)
	return t
}

func (p *recordReader) readRefs() []int {
	n := p.readCount(4)
	var refs []int
	for i := 0; i < n && p.err == nil; i++ {
		refs = append(refs, p.readRef())
	}
	return refs
}

func (p *recordReader) readVec3List() [][3]float32 {
	n := p.readCount(12)
	if n == 0 {
		return nil
	}
	v := make([][3]float32, n)
	p.read(v)
	return v
}

func (p *recordReader) readVec2List() [][2]float32 {
	n := p.readCount(8)
	if n == 0 {
		return nil
	}
	v := make([][2]float32, n)
	p.read(v)
	return v
}

func (p *recordReader) readIndices() []uint32 {
	n := p.readCount(4)
	if n == 0 {
		return nil
	}
	v := make([]uint32, n)
	p.read(v)
	return v
}

func (p *recordReader) readHeader(magic [4]byte) {
	var m [4]byte
	p.read(&m)
	if p.err == nil && m != magic {
		p.err = fmt.Errorf("%w: %q", ErrBadMagic, m[:])
		return
	}
	if v := p.readUint16(); p.err == nil && v != formatVersion {
		p.err = fmt.Errorf("%w: unsupported version %d", ErrCorruptRecord, v)
	}
}

func (p *recordReader) readMaterial() Material {
	m := Material{Name: p.readString()}
	p.read(&m.Diffuse)
	p.read(&m.Emissive)
	m.Shininess = p.readFloat()
	m.DiffuseTexture = p.readRef()
	m.NormalTexture = p.readRef()
	m.EmissiveTexture = p.readRef()
	n := int(p.readUint8())
	for i := 0; i < n && p.err == nil; i++ {
		m.RenderStates = append(m.RenderStates, RenderState(p.readUint8()))
	}
	return m
}

func (p *recordReader) readKeys() []Keyframe {
	n := p.readCount(32)
	var keys []Keyframe
	for i := 0; i < n && p.err == nil; i++ {
		k := Keyframe{Time: p.readFloat()}
		p.read(&k.Translation)
		p.read(&k.Rotation)
		keys = append(keys, k)
	}
	return keys
}

func (p *recordReader) readRecord() Record {
	t := RecordType(p.readUint8())
	if p.err != nil {
		return nil
	}
	switch t {
	case RecordMeshInstance:
		return &MeshInstance{
			Name:      p.readString(),
			Transform: p.readTransform(),
			MeshData:  p.readRef(),
			Bounds:    p.readRef(),
			AnimTrack: p.readRef(),
			Children:  p.readRefs(),
		}
	case RecordReferenceFrame:
		return &ReferenceFrame{
			Name:      p.readString(),
			Transform: p.readTransform(),
			Connector: p.readRef(),
			AnimTrack: p.readRef(),
			Children:  p.readRefs(),
		}
	case RecordConnector:
		c := &Connector{Name: p.readString()}
		p.read(&c.Offset)
		p.read(&c.Angles)
		return c
	case RecordMeshData:
		return &MeshData{Name: p.readString(), SubMeshes: p.readRefs()}
	case RecordSubMesh:
		return &SubMesh{
			Positions: p.readVec3List(),
			Normals:   p.readVec3List(),
			UVs:       p.readVec2List(),
			Indices:   p.readIndices(),
			Material:  p.readRef(),
		}
	case RecordBoundingVolume:
		b := &BoundingVolume{}
		p.read(&b.Min)
		p.read(&b.Max)
		return b
	case RecordMaterial:
		m := p.readMaterial()
		return &m
	case RecordTexture:
		return &Texture{Name: p.readString(), Image: ID(p.readUint32())}
	case RecordAnimTrack:
		return &AnimTrack{Name: p.readString(), Keys: p.readKeys()}
	}
	p.err = fmt.Errorf("%w: unknown record type %d", ErrCorruptRecord, t)
	return nil
}

func DecodeModel(data []byte) (*Model, error) {
	p := &recordReader{r: bytes.NewReader(data)}
	p.readHeader(magicModel)
	m := &Model{Name: p.readString()}
	n := p.readCount(1)
	for i := 0; i < n && p.err == nil; i++ {
		r := p.readRecord()
		if p.err != nil {
			return nil, fmt.Errorf("record %d: %w", i, p.err)
		}
		m.Records = append(m.Records, r)
	}
	if p.err != nil {
		return nil, p.err
	}
	return m, nil
}

func DecodeActor(data []byte) (*Actor, error) {
	p := &recordReader{r: bytes.NewReader(data)}
	p.readHeader(magicActor)
	a := &Actor{Name: p.readString()}
	n := p.readCount(1)
	for i := 0; i < n && p.err == nil; i++ {
		a.Joints = append(a.Joints, Joint{
			Name:      p.readString(),
			Transform: p.readTransform(),
			Children:  p.readRefs(),
		})
	}
	n = p.readCount(1)
	for i := 0; i < n && p.err == nil; i++ {
		m := SkinMesh{Name: p.readString(), Material: p.readRef()}
		nv := p.readCount(binary.Size(SkinVertex{}))
		if nv > 0 {
			m.Vertices = make([]SkinVertex, nv)
		}
		for j := 0; j < nv && p.err == nil; j++ {
			v := &m.Vertices[j]
			p.read(&v.Joints)
			v.Weight = p.readFloat()
			p.read(&v.Offsets)
			p.read(&v.Normals)
			p.read(&v.UV)
		}
		m.Indices = p.readIndices()
		a.Meshes = append(a.Meshes, m)
	}
	n = p.readCount(1)
	for i := 0; i < n && p.err == nil; i++ {
		a.Materials = append(a.Materials, p.readMaterial())
	}
	n = p.readCount(1)
	for i := 0; i < n && p.err == nil; i++ {
		a.Textures = append(a.Textures, Texture{Name: p.readString(), Image: ID(p.readUint32())})
	}
	n = p.readCount(4)
	for i := 0; i < n && p.err == nil; i++ {
		a.Animations = append(a.Animations, ID(p.readUint32()))
	}
	if p.err != nil {
		return nil, p.err
	}
	return a, nil
}

func DecodeAnimation(data []byte) (*ActorAnimation, error) {
	p := &recordReader{r: bytes.NewReader(data)}
	p.readHeader(magicAnimation)
	a := &ActorAnimation{Name: p.readString()}
	n := p.readCount(1)
	for i := 0; i < n && p.err == nil; i++ {
		a.Tracks = append(a.Tracks, JointTrack{Joint: p.readRef(), Keys: p.readKeys()})
	}
	if p.err != nil {
		return nil, p.err
	}
	return a, nil
}

type recordWriter struct {
	w   io.Writer
	err error
}

func (p *recordWriter) write(v interface{}) {
	if p.err == nil {
		p.err = binary.Write(p.w, binary.LittleEndian, v)
	}
}

func (p *recordWriter) writeUint8(v uint8) {
	p.write(v)
}

func (p *recordWriter) writeUint16(v uint16) {
	p.write(v)
}

func (p *recordWriter) writeUint32(v uint32) {
	p.write(v)
}

func (p *recordWriter) writeRef(v int) {
	p.write(int32(v))
}

func (p *recordWriter) writeFloat(v float32) {
	p.write(v)
}

func (p *recordWriter) writeCount(n int) {
	p.writeUint32(uint32(n))
}

// writeString replaces characters the code page cannot represent.
func (p *recordWriter) writeString(s string) {
	b, err := encoding.ReplaceUnsupported(nameEncoding.NewEncoder()).Bytes([]byte(s))
	if err != nil && p.err == nil {
		p.err = err
		return
	}
	if len(b) > 0xffff {
		b = b[:0xffff]
	}
	p.writeUint16(uint16(len(b)))
	p.write(b)
}

func (p *recordWriter) writeTransform(t Transform) {
	p.write(t.Translation)
	p.write(t.Rotation)
}

func (p *recordWriter) writeRefs(refs []int) {
	p.writeCount(len(refs))
	for _, r := range refs {
		p.writeRef(r)
	}
}

func (p *recordWriter) writeMaterial(m *Material) {
	p.writeString(m.Name)
	p.write(m.Diffuse)
	p.write(m.Emissive)
	p.writeFloat(m.Shininess)
	p.writeRef(m.DiffuseTexture)
	p.writeRef(m.NormalTexture)
	p.writeRef(m.EmissiveTexture)
	p.writeUint8(uint8(len(m.RenderStates)))
	for _, s := range m.RenderStates {
		p.writeUint8(uint8(s))
	}
}

func (p *recordWriter) writeKeys(keys []Keyframe) {
	p.writeCount(len(keys))
	for _, k := range keys {
		p.writeFloat(k.Time)
		p.write(k.Translation)
		p.write(k.Rotation)
	}
}

func (p *recordWriter) writeHeader(magic [4]byte) {
	p.write(magic)
	p.writeUint16(formatVersion)
}

func (p *recordWriter) writeRecord(r Record) {
	p.writeUint8(uint8(r.RecordType()))
	switch r := r.(type) {
	case *MeshInstance:
		p.writeString(r.Name)
		p.writeTransform(r.Transform)
		p.writeRef(r.MeshData)
		p.writeRef(r.Bounds)
		p.writeRef(r.AnimTrack)
		p.writeRefs(r.Children)
	case *ReferenceFrame:
		p.writeString(r.Name)
		p.writeTransform(r.Transform)
		p.writeRef(r.Connector)
		p.writeRef(r.AnimTrack)
		p.writeRefs(r.Children)
	case *Connector:
		p.writeString(r.Name)
		p.write(r.Offset)
		p.write(r.Angles)
	case *MeshData:
		p.writeString(r.Name)
		p.writeRefs(r.SubMeshes)
	case *SubMesh:
		p.writeCount(len(r.Positions))
		p.write(r.Positions)
		p.writeCount(len(r.Normals))
		p.write(r.Normals)
		p.writeCount(len(r.UVs))
		p.write(r.UVs)
		p.writeCount(len(r.Indices))
		p.write(r.Indices)
		p.writeRef(r.Material)
	case *BoundingVolume:
		p.write(r.Min)
		p.write(r.Max)
	case *Material:
		p.writeMaterial(r)
	case *Texture:
		p.writeString(r.Name)
		p.writeUint32(uint32(r.Image))
	case *AnimTrack:
		p.writeString(r.Name)
		p.writeKeys(r.Keys)
	default:
		p.err = fmt.Errorf("unsupported record %T", r)
	}
}

func EncodeModel(m *Model) ([]byte, error) {
	var buf bytes.Buffer
	p := &recordWriter{w: &buf}
	p.writeHeader(magicModel)
	p.writeString(m.Name)
	p.writeCount(len(m.Records))
	for _, r := range m.Records {
		p.writeRecord(r)
	}
	return buf.Bytes(), p.err
}

func EncodeActor(a *Actor) ([]byte, error) {
	var buf bytes.Buffer
	p := &recordWriter{w: &buf}
	p.writeHeader(magicActor)
	p.writeString(a.Name)
	p.writeCount(len(a.Joints))
	for _, j := range a.Joints {
		p.writeString(j.Name)
		p.writeTransform(j.Transform)
		p.writeRefs(j.Children)
	}
	p.writeCount(len(a.Meshes))
	for _, m := range a.Meshes {
		p.writeString(m.Name)
		p.writeRef(m.Material)
		p.writeCount(len(m.Vertices))
		for _, v := range m.Vertices {
			p.write(v.Joints)
			p.writeFloat(v.Weight)
			p.write(v.Offsets)
			p.write(v.Normals)
			p.write(v.UV)
		}
		p.writeCount(len(m.Indices))
		p.write(m.Indices)
	}
	p.writeCount(len(a.Materials))
	for i := range a.Materials {
		p.writeMaterial(&a.Materials[i])
	}
	p.writeCount(len(a.Textures))
	for _, t := range a.Textures {
		p.writeString(t.Name)
		p.writeUint32(uint32(t.Image))
	}
	p.writeCount(len(a.Animations))
	for _, id := range a.Animations {
		p.writeUint32(uint32(id))
	}
	return buf.Bytes(), p.err
}

func EncodeAnimation(a *ActorAnimation) ([]byte, error) {
	var buf bytes.Buffer
	p := &recordWriter{w: &buf}
	p.writeHeader(magicAnimation)
	p.writeString(a.Name)
	p.writeCount(len(a.Tracks))
	for _, t := range a.Tracks {
		p.writeRef(t.Joint)
		p.writeKeys(t.Keys)
	}
	return buf.Bytes(), p.err
}
