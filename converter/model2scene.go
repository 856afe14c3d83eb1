package converter

import (
	"fmt"

	"github.com/binzume/rdbconv/geom"
	"github.com/binzume/rdbconv/logger"
	"github.com/binzume/rdbconv/rdb"
	"github.com/binzume/rdbconv/scene"
	"go.uber.org/zap"
)

type modelBuilder struct {
	*ExportOption
	model     *rdb.Model
	g         *scene.Graph
	materials *materialResolver

	nodeOf   map[int]int              // record index -> node index
	meshRef  map[int]int              // node index -> MeshData record index
	channels map[int][]*scene.Channel // node index -> its animation channels
}

// recordAt returns record i of m as T, or ErrMalformedInput.
func recordAt[T rdb.Record](m *rdb.Model, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(m.Records) {
		return zero, fmt.Errorf("%w: record %d out of range", scene.ErrMalformedInput, i)
	}
	r, ok := m.Records[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: record %d is %v, want %T", scene.ErrMalformedInput, i, m.Records[i].RecordType(), zero)
	}
	return r, nil
}

func transformMatrix(t rdb.Transform) *geom.Matrix4 {
	return geom.NewTRSMatrix4(geom.NewVector3FromArray(t.Translation), geom.NewQuaternionFromArray(t.Rotation), nil)
}

// ModelToScene builds a scene graph from a flat record list.
func ModelToScene(store rdb.Store, model *rdb.Model, opt *ExportOption) (*scene.Graph, error) {
	opt = normalizeExportOption(opt)
	g := scene.NewGraph(model.Name)
	b := &modelBuilder{
		ExportOption: opt,
		model:        model,
		g:            g,
		nodeOf:       map[int]int{},
		meshRef:      map[int]int{},
		channels:     map[int][]*scene.Channel{},
	}
	b.materials = newMaterialResolver(g, store, opt,
		func(i int) (*rdb.Material, error) { return recordAt[*rdb.Material](model, i) },
		func(i int) (*rdb.Texture, error) { return recordAt[*rdb.Texture](model, i) })

	if err := b.createNodes(); err != nil {
		return nil, err
	}
	if err := b.linkChildren(); err != nil {
		return nil, err
	}
	if err := b.findRoot(); err != nil {
		return nil, err
	}
	if err := b.buildAnimation(); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := b.attachMeshes(g.Root, nil); err != nil {
		return nil, err
	}
	return g, nil
}

// createNodes is the first pass: one node per transform-bearing record.
func (b *modelBuilder) createNodes() error {
	for i, r := range b.model.Records {
		var n *scene.Node
		switch r := r.(type) {
		case *rdb.MeshInstance:
			n = scene.NewNode(r.Name)
			n.SetTRS(r.Transform.Translation, r.Transform.Rotation, [3]float32{1, 1, 1})
			if r.MeshData != rdb.NoRef {
				b.meshRef[len(b.g.Nodes)] = r.MeshData
			}
			if r.Bounds != rdb.NoRef {
				if _, err := recordAt[*rdb.BoundingVolume](b.model, r.Bounds); err != nil {
					return fmt.Errorf("mesh instance %d: %w", i, err)
				}
			}
		case *rdb.ReferenceFrame:
			n = scene.NewNode(r.Name)
			m := transformMatrix(r.Transform)
			if r.Connector != rdb.NoRef {
				c, err := recordAt[*rdb.Connector](b.model, r.Connector)
				if err != nil {
					return fmt.Errorf("reference frame %d connector: %w", i, err)
				}
				cm := geom.NewEuler(c.Angles[0], c.Angles[1], c.Angles[2], geom.RotationOrderXYZ).ToMatrix4()
				cm[12], cm[13], cm[14] = c.Offset[0], c.Offset[1], c.Offset[2]
				m = m.Mul(cm)
			}
			setNodeMatrix(n, m)
		default:
			continue
		}
		b.nodeOf[i] = b.g.AddNode(n)
	}
	if len(b.g.Nodes) == 0 {
		return fmt.Errorf("%w: model %q has no mesh instances or reference frames", scene.ErrMalformedInput, b.model.Name)
	}
	return nil
}

func recordChildren(r rdb.Record) []int {
	switch r := r.(type) {
	case *rdb.MeshInstance:
		return r.Children
	case *rdb.ReferenceFrame:
		return r.Children
	}
	return nil
}

// linkChildren is the second pass, in record order. Forward references are legal.
func (b *modelBuilder) linkChildren() error {
	for ri, r := range b.model.Records {
		ni, ok := b.nodeOf[ri]
		if !ok {
			continue
		}
		for _, c := range recordChildren(r) {
			if c < 0 || c >= len(b.model.Records) {
				return fmt.Errorf("%w: record %d: child %d out of range", scene.ErrMalformedInput, ri, c)
			}
			cn, ok := b.nodeOf[c]
			if !ok {
				return fmt.Errorf("%w: record %d: child %d is a %v", scene.ErrMalformedInput, ri, c, b.model.Records[c].RecordType())
			}
			b.g.Nodes[ni].Children = append(b.g.Nodes[ni].Children, cn)
		}
	}
	return nil
}

func (b *modelBuilder) findRoot() error {
	var roots []int
	for i, p := range b.g.Parents() {
		if p == scene.None {
			roots = append(roots, i)
		}
	}
	switch len(roots) {
	case 0:
		return fmt.Errorf("%w: model %q: every node has a parent", scene.ErrMalformedInput, b.model.Name)
	case 1:
		b.g.Root = roots[0]
	default:
		logger.Warn("multiple top-level nodes, adding synthetic root",
			zap.String("model", b.model.Name), zap.Int("count", len(roots)))
		root := scene.NewNode("Root")
		root.Children = roots
		b.g.Root = b.g.AddNode(root)
	}
	return nil
}

func keyChannels(node int, keys []rdb.Keyframe) []*scene.Channel {
	t := &scene.Channel{Node: node, Path: scene.PathTranslation}
	r := &scene.Channel{Node: node, Path: scene.PathRotation}
	for _, k := range keys {
		tv, rv := k.Translation, k.Rotation
		t.Keys = append(t.Keys, scene.Keyframe{Time: k.Time, Value: tv[:]})
		r.Keys = append(r.Keys, scene.Keyframe{Time: k.Time, Value: rv[:]})
	}
	return []*scene.Channel{t, r}
}

// buildAnimation collects every AnimTrack into one animation named after the model.
func (b *modelBuilder) buildAnimation() error {
	anim := &scene.Animation{Name: b.model.Name}
	for ri := range b.model.Records {
		ni, ok := b.nodeOf[ri]
		if !ok {
			continue
		}
		ref := rdb.NoRef
		switch r := b.model.Records[ri].(type) {
		case *rdb.MeshInstance:
			ref = r.AnimTrack
		case *rdb.ReferenceFrame:
			ref = r.AnimTrack
		}
		if ref == rdb.NoRef {
			continue
		}
		track, err := recordAt[*rdb.AnimTrack](b.model, ref)
		if err != nil {
			return fmt.Errorf("record %d anim track: %w", ri, err)
		}
		if len(track.Keys) == 0 {
			continue
		}
		chs := keyChannels(ni, track.Keys)
		anim.Channels = append(anim.Channels, chs...)
		b.channels[ni] = chs
		b.g.Nodes[ni].Animated = true
	}
	if len(anim.Channels) > 0 {
		b.g.Animations = append(b.g.Animations, anim)
	}
	return nil
}
