package converter

import (
	"errors"
	"fmt"

	"github.com/binzume/rdbconv/geom"
	"github.com/binzume/rdbconv/logger"
	"github.com/binzume/rdbconv/rdb"
	"github.com/binzume/rdbconv/scene"
	"go.uber.org/zap"
)

// subMeshPrimitive converts sm, transforming vertices by bake when non-nil.
func subMeshPrimitive(sm *rdb.SubMesh, bake *geom.Matrix4, material int) (*scene.Primitive, error) {
	positions := sm.Positions
	normals := sm.Normals
	if bake != nil {
		positions = make([][3]float32, len(sm.Positions))
		for i, p := range sm.Positions {
			positions[i] = bake.ApplyTo(geom.NewVector3FromArray(p)).Array()
		}
		normals = make([][3]float32, len(sm.Normals))
		for i, n := range sm.Normals {
			normals[i] = bake.ApplyToDirection(geom.NewVector3FromArray(n)).Normalize().Array()
		}
	}
	return scene.NewPrimitive(positions, normals, sm.UVs, sm.Indices, material)
}

// buildMesh converts the MeshData record at index ref.
func (b *modelBuilder) buildMesh(ref int, bake *geom.Matrix4) (*scene.Mesh, error) {
	md, err := recordAt[*rdb.MeshData](b.model, ref)
	if err != nil {
		return nil, err
	}
	mesh := &scene.Mesh{Name: md.Name}
	for _, si := range md.SubMeshes {
		sm, err := recordAt[*rdb.SubMesh](b.model, si)
		if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", md.Name, err)
		}
		mat, err := b.materials.resolveMaterial(sm.Material)
		if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", md.Name, err)
		}
		p, err := subMeshPrimitive(sm, bake, mat)
		if err != nil {
			return nil, fmt.Errorf("mesh %q submesh %d: %w", md.Name, si, err)
		}
		mesh.Primitives = append(mesh.Primitives, p)
	}
	return mesh, nil
}

// attachMeshes walks the hierarchy from the root. A static node with a mesh
// has its local transform baked into the vertices, and the baked transform
// is pushed down into its children so world placement is kept.
func (b *modelBuilder) attachMeshes(ni int, pending *geom.Matrix4) error {
	n := b.g.Nodes[ni]
	local := n.LocalMatrix()
	if pending != nil {
		local = pending.Mul(local)
		setNodeMatrix(n, local)
		for _, c := range b.channels[ni] {
			premultiplyKeys(c, pending)
		}
	}

	var childPending *geom.Matrix4
	if ri, ok := b.meshRef[ni]; ok {
		var bake *geom.Matrix4
		if !n.Animated {
			bake = local
		}
		mesh, err := b.buildMesh(ri, bake)
		if errors.Is(err, scene.ErrCapacityExceeded) && b.SkipOversizedMeshes {
			logger.Warn("mesh skipped", zap.String("node", n.Name), zap.Error(err))
		} else if err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		} else {
			n.Mesh = b.g.AddMesh(mesh)
			if bake != nil {
				n.Translation, n.Rotation, n.Scale = nil, nil, nil
				if !bake.IsIdentity() {
					childPending = bake
				}
			}
		}
	}
	for _, c := range n.Children {
		if err := b.attachMeshes(c, childPending); err != nil {
			return err
		}
	}
	return nil
}

// setNodeMatrix stores the rigid transform m on n.
func setNodeMatrix(n *scene.Node, m *geom.Matrix4) {
	t, r, _ := m.Decompose()
	n.SetTRS(t.Array(), r.Array(), [3]float32{1, 1, 1})
}

// premultiplyKeys moves a translation or rotation channel into the frame of m.
func premultiplyKeys(c *scene.Channel, m *geom.Matrix4) {
	_, rot, _ := m.Decompose()
	for i := range c.Keys {
		v := c.Keys[i].Value
		switch c.Path {
		case scene.PathTranslation:
			m.ApplyTo(geom.NewVector3(v[0], v[1], v[2])).ToArray(v)
		case scene.PathRotation:
			q := rot.Mul(geom.NewQuaternion(v[0], v[1], v[2], v[3])).Normalize().Array()
			copy(v, q[:])
		}
	}
}
