package gltfutil

import (
	"fmt"

	"github.com/binzume/rdbconv/geom"
	"github.com/binzume/rdbconv/scene"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// NodeTRS returns the node transform, decomposing the matrix form if present.
func NodeTRS(n *gltf.Node) (t [3]float32, r [4]float32, s [3]float32) {
	if n.Matrix != gltf.DefaultMatrix && n.Matrix != [16]float32{} {
		pos, rot, scale := geom.NewMatrix4FromSlice(n.Matrix[:]).Decompose()
		return pos.Array(), rot.Array(), scale.Array()
	}
	t, r, s = n.Translation, n.Rotation, n.Scale
	if r == [4]float32{} {
		r = [4]float32{0, 0, 0, 1}
	}
	if s == [3]float32{} {
		s = [3]float32{1, 1, 1}
	}
	return
}

func accessor(doc *gltf.Document, index uint32, types ...gltf.AccessorType) (*gltf.Accessor, error) {
	if int(index) >= len(doc.Accessors) {
		return nil, fmt.Errorf("%w: accessor %d out of range", scene.ErrMalformedInput, index)
	}
	acr := doc.Accessors[index]
	for _, t := range types {
		if acr.Type == t {
			return acr, nil
		}
	}
	return nil, fmt.Errorf("%w: accessor %d has type %v", scene.ErrMalformedInput, index, acr.Type)
}

func requireFloat(acr *gltf.Accessor, index uint32) error {
	if acr.ComponentType != gltf.ComponentFloat {
		return fmt.Errorf("%w: accessor %d: unsupported component type %v", scene.ErrMalformedInput, index, acr.ComponentType)
	}
	return nil
}

func ReadPositions(doc *gltf.Document, index uint32) ([][3]float32, error) {
	acr, err := accessor(doc, index, gltf.AccessorVec3)
	if err != nil {
		return nil, err
	}
	if err := requireFloat(acr, index); err != nil {
		return nil, err
	}
	return modeler.ReadPosition(doc, acr, nil)
}

func ReadNormals(doc *gltf.Document, index uint32) ([][3]float32, error) {
	acr, err := accessor(doc, index, gltf.AccessorVec3)
	if err != nil {
		return nil, err
	}
	if err := requireFloat(acr, index); err != nil {
		return nil, err
	}
	return modeler.ReadNormal(doc, acr, nil)
}

func ReadTexCoords(doc *gltf.Document, index uint32) ([][2]float32, error) {
	acr, err := accessor(doc, index, gltf.AccessorVec2)
	if err != nil {
		return nil, err
	}
	if err := requireFloat(acr, index); err != nil {
		return nil, err
	}
	return modeler.ReadTextureCoord(doc, acr, nil)
}

func ReadIndices(doc *gltf.Document, index uint32) ([]uint32, error) {
	acr, err := accessor(doc, index, gltf.AccessorScalar)
	if err != nil {
		return nil, err
	}
	switch acr.ComponentType {
	case gltf.ComponentUbyte, gltf.ComponentUshort, gltf.ComponentUint:
	default:
		return nil, fmt.Errorf("%w: accessor %d: unsupported index type %v", scene.ErrMalformedInput, index, acr.ComponentType)
	}
	return modeler.ReadIndices(doc, acr, nil)
}

// ReadFloats reads a float scalar accessor such as animation key times.
func ReadFloats(doc *gltf.Document, index uint32) ([]float32, error) {
	acr, err := accessor(doc, index, gltf.AccessorScalar)
	if err != nil {
		return nil, err
	}
	if err := requireFloat(acr, index); err != nil {
		return nil, err
	}
	data, err := modeler.ReadAccessor(doc, acr, nil)
	if err != nil {
		return nil, err
	}
	v, ok := data.([]float32)
	if !ok {
		return nil, fmt.Errorf("%w: accessor %d: unexpected data %T", scene.ErrMalformedInput, index, data)
	}
	return v, nil
}

// ReadVectors reads a float VEC3 or VEC4 accessor as flat rows.
func ReadVectors(doc *gltf.Document, index uint32) ([][]float32, error) {
	acr, err := accessor(doc, index, gltf.AccessorVec3, gltf.AccessorVec4)
	if err != nil {
		return nil, err
	}
	if err := requireFloat(acr, index); err != nil {
		return nil, err
	}
	data, err := modeler.ReadAccessor(doc, acr, nil)
	if err != nil {
		return nil, err
	}
	var rows [][]float32
	switch v := data.(type) {
	case [][3]float32:
		for i := range v {
			rows = append(rows, v[i][:])
		}
	case [][4]float32:
		for i := range v {
			rows = append(rows, v[i][:])
		}
	default:
		return nil, fmt.Errorf("%w: accessor %d: unexpected data %T", scene.ErrMalformedInput, index, data)
	}
	return rows, nil
}
