package gltfutil

import (
	"fmt"

	"github.com/binzume/rdbconv/scene"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/binary"
)

// Section is one typed array inside the binary buffer.
// Index is both its buffer view index and its accessor index.
type Section struct {
	Index         int
	Offset        uint32
	Length        uint32 // including padding
	DataLength    uint32
	Count         uint32
	ComponentType gltf.ComponentType
	Type          gltf.AccessorType
	Target        gltf.Target
	Min           []float32
	Max           []float32
}

type PrimitiveLayout struct {
	Position *Section
	Normal   *Section
	TexCoord *Section
	Joints   *Section
	Weights  *Section
	Indices  *Section
}

type ChannelLayout struct {
	Input  *Section
	Output *Section
}

type SkinLayout struct {
	InverseBindMatrices *Section
}

// Layout mirrors the buffer write order: mesh primitives, animation
// channels, then skins.
type Layout struct {
	Meshes     [][]PrimitiveLayout
	Animations [][]ChannelLayout
	Skins      []SkinLayout

	sections []*Section
}

// Sections returns all sections in write order.
func (l *Layout) Sections() []*Section {
	return l.sections
}

func componentSize(c gltf.ComponentType) uint32 {
	switch c {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	}
	return 4
}

func componentCount(t gltf.AccessorType) uint32 {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	}
	return 0
}

func padding(n uint32) uint32 {
	return (4 - n%4) % 4
}

type bufferWriter struct {
	buf    []byte
	layout *Layout
}

func (w *bufferWriter) write(data interface{}, count int, ct gltf.ComponentType, at gltf.AccessorType, target gltf.Target) (*Section, error) {
	size := uint32(count) * componentSize(ct) * componentCount(at)
	s := &Section{
		Index:         len(w.layout.sections),
		Offset:        uint32(len(w.buf)),
		DataLength:    size,
		Count:         uint32(count),
		ComponentType: ct,
		Type:          at,
		Target:        target,
	}
	s.Length = size + padding(size)
	w.buf = append(w.buf, make([]byte, s.Length)...)
	if err := binary.Write(w.buf[s.Offset:s.Offset+size], 0, data); err != nil {
		return nil, err
	}
	w.layout.sections = append(w.layout.sections, s)
	return s, nil
}

func (w *bufferWriter) writePrimitive(p *scene.Primitive) (PrimitiveLayout, error) {
	var pl PrimitiveLayout
	var err error
	n := len(p.Positions)
	if n == 0 {
		return pl, fmt.Errorf("%w: primitive without vertices", scene.ErrMalformedInput)
	}
	if n > scene.MaxIndex {
		return pl, fmt.Errorf("%w: %d vertices", scene.ErrCapacityExceeded, n)
	}
	if pl.Position, err = w.write(p.Positions, n, gltf.ComponentFloat, gltf.AccessorVec3, gltf.TargetArrayBuffer); err != nil {
		return pl, err
	}
	if !p.Bounds.IsEmpty() {
		pl.Position.Min = p.Bounds.Min[:]
		pl.Position.Max = p.Bounds.Max[:]
	}
	if len(p.Normals) > 0 {
		if len(p.Normals) != n {
			return pl, fmt.Errorf("%w: %d normals for %d vertices", scene.ErrMalformedInput, len(p.Normals), n)
		}
		if pl.Normal, err = w.write(p.Normals, n, gltf.ComponentFloat, gltf.AccessorVec3, gltf.TargetArrayBuffer); err != nil {
			return pl, err
		}
	}
	if len(p.UVs) > 0 {
		if len(p.UVs) != n {
			return pl, fmt.Errorf("%w: %d uvs for %d vertices", scene.ErrMalformedInput, len(p.UVs), n)
		}
		if pl.TexCoord, err = w.write(p.UVs, n, gltf.ComponentFloat, gltf.AccessorVec2, gltf.TargetArrayBuffer); err != nil {
			return pl, err
		}
	}
	if p.Skinned() {
		if len(p.Joints) != n || len(p.Weights) != n {
			return pl, fmt.Errorf("%w: joint/weight count mismatch", scene.ErrMalformedInput)
		}
		if pl.Joints, err = w.write(p.Joints, n, gltf.ComponentUshort, gltf.AccessorVec4, gltf.TargetArrayBuffer); err != nil {
			return pl, err
		}
		if pl.Weights, err = w.write(p.Weights, n, gltf.ComponentFloat, gltf.AccessorVec4, gltf.TargetArrayBuffer); err != nil {
			return pl, err
		}
	}
	if len(p.Indices) > 0 {
		if pl.Indices, err = w.write(p.Indices, len(p.Indices), gltf.ComponentUshort, gltf.AccessorScalar, gltf.TargetElementArrayBuffer); err != nil {
			return pl, err
		}
	}
	return pl, nil
}

func (w *bufferWriter) writeChannel(c *scene.Channel) (ChannelLayout, error) {
	var cl ChannelLayout
	var err error
	if len(c.Keys) == 0 {
		return cl, fmt.Errorf("%w: channel without keyframes", scene.ErrMalformedInput)
	}
	times := make([]float32, len(c.Keys))
	nc := c.Path.Components()
	values := make([]float32, 0, len(c.Keys)*nc)
	for i, k := range c.Keys {
		if len(k.Value) != nc {
			return cl, fmt.Errorf("%w: %v key with %d components", scene.ErrMalformedInput, c.Path, len(k.Value))
		}
		times[i] = k.Time
		values = append(values, k.Value...)
	}
	if cl.Input, err = w.write(times, len(times), gltf.ComponentFloat, gltf.AccessorScalar, gltf.TargetNone); err != nil {
		return cl, err
	}
	cl.Input.Min = []float32{times[0]}
	cl.Input.Max = []float32{times[len(times)-1]}

	var out interface{}
	at := gltf.AccessorVec3
	if nc == 4 {
		at = gltf.AccessorVec4
		v := make([][4]float32, len(c.Keys))
		for i := range v {
			copy(v[i][:], values[i*4:])
		}
		out = v
	} else {
		v := make([][3]float32, len(c.Keys))
		for i := range v {
			copy(v[i][:], values[i*3:])
		}
		out = v
	}
	if cl.Output, err = w.write(out, len(c.Keys), gltf.ComponentFloat, at, gltf.TargetNone); err != nil {
		return cl, err
	}
	return cl, nil
}

func (w *bufferWriter) writeSkin(s *scene.Skin) (SkinLayout, error) {
	var sl SkinLayout
	if len(s.Joints) != len(s.InverseBindMatrices) {
		return sl, fmt.Errorf("%w: skin %q: %d joints, %d matrices", scene.ErrMalformedInput, s.Name, len(s.Joints), len(s.InverseBindMatrices))
	}
	cols := make([][4]float32, 0, len(s.InverseBindMatrices)*4)
	for _, m := range s.InverseBindMatrices {
		for c := 0; c < 4; c++ {
			cols = append(cols, [4]float32{m[c*4], m[c*4+1], m[c*4+2], m[c*4+3]})
		}
	}
	sec, err := w.write(cols, len(cols), gltf.ComponentFloat, gltf.AccessorVec4, gltf.TargetNone)
	if err != nil {
		return sl, err
	}
	sec.Type = gltf.AccessorMat4
	sec.Count = uint32(len(s.InverseBindMatrices))
	sl.InverseBindMatrices = sec
	return sl, nil
}

// BuildBuffer packs every array of g into one buffer. Each section starts
// on a 4 byte boundary and is zero padded.
func BuildBuffer(g *scene.Graph) ([]byte, *Layout, error) {
	w := &bufferWriter{layout: &Layout{}}
	for mi, m := range g.Meshes {
		var prims []PrimitiveLayout
		for pi, p := range m.Primitives {
			pl, err := w.writePrimitive(p)
			if err != nil {
				return nil, nil, fmt.Errorf("mesh %d (%s) primitive %d: %w", mi, m.Name, pi, err)
			}
			prims = append(prims, pl)
		}
		w.layout.Meshes = append(w.layout.Meshes, prims)
	}
	for _, a := range g.Animations {
		var channels []ChannelLayout
		for ci, c := range a.Channels {
			cl, err := w.writeChannel(c)
			if err != nil {
				return nil, nil, fmt.Errorf("animation %s channel %d: %w", a.Name, ci, err)
			}
			channels = append(channels, cl)
		}
		w.layout.Animations = append(w.layout.Animations, channels)
	}
	for _, s := range g.Skins {
		sl, err := w.writeSkin(s)
		if err != nil {
			return nil, nil, err
		}
		w.layout.Skins = append(w.layout.Skins, sl)
	}
	return w.buf, w.layout, nil
}
