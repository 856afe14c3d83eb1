package converter

import (
	"fmt"

	"github.com/binzume/rdbconv/geom"
	"github.com/binzume/rdbconv/logger"
	"github.com/binzume/rdbconv/rdb"
	"github.com/binzume/rdbconv/scene"
	"go.uber.org/zap"
)

// parentJoint returns the joint listing j as a child, or -1.
func parentJoint(joints []rdb.Joint, j int) int {
	for i := range joints {
		for _, c := range joints[i].Children {
			if c == j {
				return i
			}
		}
	}
	return -1
}

// globalTransforms composes local joint matrices from the root down.
func globalTransforms(joints []rdb.Joint, locals []*geom.Matrix4) ([]*geom.Matrix4, error) {
	globals := make([]*geom.Matrix4, len(joints))
	var resolve func(j, depth int) (*geom.Matrix4, error)
	resolve = func(j, depth int) (*geom.Matrix4, error) {
		if globals[j] != nil {
			return globals[j], nil
		}
		if depth > len(joints) {
			return nil, fmt.Errorf("%w: joint %d is its own ancestor", scene.ErrMalformedInput, j)
		}
		g := locals[j]
		if p := parentJoint(joints, j); p >= 0 {
			pg, err := resolve(p, depth+1)
			if err != nil {
				return nil, err
			}
			g = pg.Mul(locals[j])
		}
		globals[j] = g
		return g, nil
	}
	for j := range joints {
		if _, err := resolve(j, 0); err != nil {
			return nil, err
		}
	}
	return globals, nil
}

// inverseBindMatrices inverts each global transform. A singular matrix is
// replaced by identity.
func inverseBindMatrices(joints []rdb.Joint, globals []*geom.Matrix4) []geom.Matrix4 {
	ibms := make([]geom.Matrix4, len(globals))
	for j, g := range globals {
		inv, ok := g.TryInverse()
		if !ok {
			logger.Warn("non-invertible joint transform, using identity",
				zap.Int("joint", j), zap.String("name", joints[j].Name))
			inv = geom.NewMatrix4()
		}
		ibms[j] = *inv
	}
	return ibms
}

// bindVertex blends the joint-relative offsets and normals of v into model space.
func bindVertex(v *rdb.SkinVertex, globals []*geom.Matrix4) (pos, normal [3]float32, err error) {
	for _, j := range v.Joints {
		if int(j) >= len(globals) {
			return pos, normal, fmt.Errorf("%w: vertex joint %d out of range (%d joints)", scene.ErrMalformedInput, j, len(globals))
		}
	}
	g0, g1 := globals[v.Joints[0]], globals[v.Joints[1]]
	w := v.Weight
	p0 := g0.ApplyTo(geom.NewVector3FromArray(v.Offsets[0]))
	p1 := g1.ApplyTo(geom.NewVector3FromArray(v.Offsets[1]))
	pos = p0.Blend(p1, w).Array()

	n0 := g0.ApplyToDirection(geom.NewVector3FromArray(v.Normals[0]))
	n1 := g1.ApplyToDirection(geom.NewVector3FromArray(v.Normals[1]))
	normal = n0.Blend(n1, w).Normalize().Array()
	return pos, normal, nil
}

// skinPrimitive converts a two-joint skinned mesh to a primitive in bind pose.
func skinPrimitive(m *rdb.SkinMesh, globals []*geom.Matrix4, material int) (*scene.Primitive, error) {
	n := len(m.Vertices)
	positions := make([][3]float32, n)
	normals := make([][3]float32, n)
	uvs := make([][2]float32, n)
	joints := make([][4]uint16, n)
	weights := make([][4]float32, n)
	for i := range m.Vertices {
		v := &m.Vertices[i]
		var err error
		positions[i], normals[i], err = bindVertex(v, globals)
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		uvs[i] = v.UV
		joints[i] = [4]uint16{v.Joints[0], v.Joints[1], 0, 0}
		weights[i] = [4]float32{v.Weight, 1 - v.Weight, 0, 0}
	}
	p, err := scene.NewPrimitive(positions, normals, uvs, m.Indices, material)
	if err != nil {
		return nil, err
	}
	p.Joints = joints
	p.Weights = weights
	return p, nil
}
