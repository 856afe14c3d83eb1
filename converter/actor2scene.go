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

// ActorToScene builds a skinned scene graph from a joint hierarchy and loads
// the actor's animations from store.
func ActorToScene(store rdb.Store, actor *rdb.Actor, opt *ExportOption) (*scene.Graph, error) {
	opt = normalizeExportOption(opt)
	var anims []*rdb.ActorAnimation
	for _, id := range actor.Animations {
		a, err := rdb.LoadAnimation(store, id)
		if err != nil {
			return nil, err
		}
		anims = append(anims, a)
	}

	g := scene.NewGraph(actor.Name)
	for _, j := range actor.Joints {
		g.AddNode(scene.NewNode(j.Name))
	}
	for i, j := range actor.Joints {
		for _, c := range j.Children {
			if c < 0 || c >= len(actor.Joints) {
				return nil, fmt.Errorf("%w: joint %d: child %d out of range", scene.ErrMalformedInput, i, c)
			}
			g.Nodes[i].Children = append(g.Nodes[i].Children, c)
		}
	}
	root := scene.NewNode(actor.Name)
	for i, p := range g.Parents() {
		if p == scene.None {
			root.Children = append(root.Children, i)
		}
	}
	g.Root = g.AddNode(root)

	// rest pose
	locals := make([]*geom.Matrix4, len(actor.Joints))
	for i, j := range actor.Joints {
		t := j.Transform
		if k, ok := firstKey(anims, i); ok {
			t = rdb.Transform{Translation: k.Translation, Rotation: k.Rotation}
		}
		g.Nodes[i].SetTRS(t.Translation, t.Rotation, [3]float32{1, 1, 1})
		locals[i] = transformMatrix(t)
	}
	globals, err := globalTransforms(actor.Joints, locals)
	if err != nil {
		return nil, err
	}

	if len(actor.Joints) > 0 {
		skin := &scene.Skin{
			Name:                actor.Name,
			InverseBindMatrices: inverseBindMatrices(actor.Joints, globals),
			Skeleton:            g.Root,
		}
		for i := range actor.Joints {
			skin.Joints = append(skin.Joints, i)
		}
		g.Skins = append(g.Skins, skin)
	}

	materials := newMaterialResolver(g, store, opt,
		func(i int) (*rdb.Material, error) {
			if i < 0 || i >= len(actor.Materials) {
				return nil, fmt.Errorf("%w: material %d out of range", scene.ErrMalformedInput, i)
			}
			return &actor.Materials[i], nil
		},
		func(i int) (*rdb.Texture, error) {
			if i < 0 || i >= len(actor.Textures) {
				return nil, fmt.Errorf("%w: texture %d out of range", scene.ErrMalformedInput, i)
			}
			return &actor.Textures[i], nil
		})

	for i := range actor.Meshes {
		m := &actor.Meshes[i]
		if len(actor.Joints) == 0 {
			return nil, fmt.Errorf("%w: skinned mesh %q without joints", scene.ErrMalformedInput, m.Name)
		}
		mat, err := materials.resolveMaterial(m.Material)
		if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", m.Name, err)
		}
		p, err := skinPrimitive(m, globals, mat)
		if errors.Is(err, scene.ErrCapacityExceeded) && opt.SkipOversizedMeshes {
			logger.Warn("mesh skipped", zap.String("mesh", m.Name), zap.Error(err))
			continue
		} else if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", m.Name, err)
		}
		n := scene.NewNode(m.Name)
		n.Mesh = g.AddMesh(&scene.Mesh{Name: m.Name, Primitives: []*scene.Primitive{p}})
		n.Skin = 0
		root.Children = append(root.Children, g.AddNode(n))
	}

	for _, a := range anims {
		anim := &scene.Animation{Name: a.Name}
		for _, tr := range a.Tracks {
			if tr.Joint < 0 || tr.Joint >= len(actor.Joints) {
				return nil, fmt.Errorf("%w: animation %q: joint %d out of range", scene.ErrMalformedInput, a.Name, tr.Joint)
			}
			if len(tr.Keys) == 0 {
				continue
			}
			anim.Channels = append(anim.Channels, keyChannels(tr.Joint, tr.Keys)...)
			g.Nodes[tr.Joint].Animated = true
		}
		if len(anim.Channels) > 0 {
			g.Animations = append(g.Animations, anim)
		}
	}
	return g, nil
}

// firstKey returns the first keyframe of joint j in the first animation.
func firstKey(anims []*rdb.ActorAnimation, j int) (rdb.Keyframe, bool) {
	if len(anims) == 0 {
		return rdb.Keyframe{}, false
	}
	for _, tr := range anims[0].Tracks {
		if tr.Joint == j && len(tr.Keys) > 0 {
			return tr.Keys[0], true
		}
	}
	return rdb.Keyframe{}, false
}
