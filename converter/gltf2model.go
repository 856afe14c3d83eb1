package converter

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/binzume/rdbconv/container"
	"github.com/binzume/rdbconv/geom"
	"github.com/binzume/rdbconv/gltfutil"
	"github.com/binzume/rdbconv/logger"
	"github.com/binzume/rdbconv/rdb"
	"github.com/binzume/rdbconv/scene"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

type ImportOption struct {
	ImageIDBase rdb.ID
}

// ImportedImage is an image queued for the store under ID.
type ImportedImage struct {
	ID   rdb.ID
	Data []byte
}

type gltfToModel struct {
	*ImportOption
	doc   *gltf.Document
	dir   string
	model *rdb.Model

	nodeRecord map[uint32]int
	materials  map[uint32]int
	textures   map[uint32]int
	images     []ImportedImage
}

// ImportModel reads a GLB or glTF file and stores it as model record id.
// Referenced images are stored after the model.
func ImportModel(store rdb.Store, path string, id rdb.ID, opt *ImportOption) (*rdb.Model, error) {
	doc, err := container.Open(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	name = name[:len(name)-len(filepath.Ext(name))]
	model, images, err := GLTFToModel(doc, filepath.Dir(path), name, opt)
	if err != nil {
		return nil, err
	}
	if err := rdb.SaveModel(store, id, model); err != nil {
		return nil, err
	}
	for _, img := range images {
		if err := store.Put(rdb.KindImage, img.ID, img.Data); err != nil {
			return nil, err
		}
	}
	logger.Info("imported model", zap.Uint32("id", uint32(id)), zap.Int("records", len(model.Records)), zap.Int("images", len(images)))
	return model, nil
}

// GLTFToModel converts doc into a flat record list. dir resolves relative
// image URIs.
func GLTFToModel(doc *gltf.Document, dir, name string, opt *ImportOption) (*rdb.Model, []ImportedImage, error) {
	if opt == nil {
		opt = &ImportOption{}
	}
	c := &gltfToModel{
		ImportOption: opt,
		doc:          doc,
		dir:          dir,
		model:        &rdb.Model{Name: name},
		nodeRecord:   map[uint32]int{},
		materials:    map[uint32]int{},
		textures:     map[uint32]int{},
	}
	for _, root := range c.roots() {
		if _, err := c.convertNode(root, 0); err != nil {
			return nil, nil, err
		}
	}
	for _, a := range doc.Animations {
		if err := c.convertAnimation(a); err != nil {
			return nil, nil, err
		}
	}
	return c.model, c.images, nil
}

func (c *gltfToModel) roots() []uint32 {
	var roots []uint32
	for _, s := range c.doc.Scenes {
		roots = append(roots, s.Nodes...)
	}
	if len(roots) > 0 {
		return roots
	}
	child := make([]bool, len(c.doc.Nodes))
	for _, n := range c.doc.Nodes {
		for _, ch := range n.Children {
			if int(ch) < len(child) {
				child[ch] = true
			}
		}
	}
	for i := range c.doc.Nodes {
		if !child[i] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func (c *gltfToModel) convertNode(ni uint32, depth int) (int, error) {
	if int(ni) >= len(c.doc.Nodes) {
		return 0, fmt.Errorf("%w: node %d out of range", scene.ErrMalformedInput, ni)
	}
	if ri, ok := c.nodeRecord[ni]; ok {
		return ri, nil
	}
	if depth > len(c.doc.Nodes) {
		return 0, fmt.Errorf("%w: node %d is its own ancestor", scene.ErrMalformedInput, ni)
	}
	node := c.doc.Nodes[ni]
	t, r, s := gltfutil.NodeTRS(node)
	if s != [3]float32{1, 1, 1} {
		logger.Debug("node scale dropped", zap.String("node", node.Name), zap.Any("scale", s))
	}
	tr := rdb.Transform{Translation: t, Rotation: r}

	var children *[]int
	var ri int
	if node.Mesh != nil {
		mi := &rdb.MeshInstance{Name: node.Name, Transform: tr, MeshData: rdb.NoRef, Bounds: rdb.NoRef, AnimTrack: rdb.NoRef}
		ri = c.model.Add(mi)
		md, bounds, err := c.convertMesh(*node.Mesh)
		if err != nil {
			return 0, fmt.Errorf("node %q: %w", node.Name, err)
		}
		mi.MeshData = md
		if !bounds.IsEmpty() {
			mi.Bounds = c.model.Add(&rdb.BoundingVolume{Min: bounds.Min, Max: bounds.Max})
		}
		children = &mi.Children
	} else {
		rf := &rdb.ReferenceFrame{Name: node.Name, Transform: tr, Connector: rdb.NoRef, AnimTrack: rdb.NoRef}
		ri = c.model.Add(rf)
		children = &rf.Children
	}
	c.nodeRecord[ni] = ri

	for _, ch := range node.Children {
		cr, err := c.convertNode(ch, depth+1)
		if err != nil {
			return 0, err
		}
		*children = append(*children, cr)
	}
	return ri, nil
}

func (c *gltfToModel) convertMesh(mi uint32) (int, scene.AABB, error) {
	bounds := scene.EmptyAABB()
	if int(mi) >= len(c.doc.Meshes) {
		return 0, bounds, fmt.Errorf("%w: mesh %d out of range", scene.ErrMalformedInput, mi)
	}
	mesh := c.doc.Meshes[mi]
	md := &rdb.MeshData{Name: mesh.Name}
	for pi, p := range mesh.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			logger.Warn("non-triangle primitive skipped", zap.String("mesh", mesh.Name), zap.Int("primitive", pi))
			continue
		}
		sm, err := c.convertPrimitive(p)
		if err != nil {
			return 0, bounds, fmt.Errorf("mesh %q primitive %d: %w", mesh.Name, pi, err)
		}
		for _, v := range sm.Positions {
			bounds.Extend(v)
		}
		md.SubMeshes = append(md.SubMeshes, c.model.Add(sm))
	}
	return c.model.Add(md), bounds, nil
}

func (c *gltfToModel) convertPrimitive(p *gltf.Primitive) (*rdb.SubMesh, error) {
	pos, ok := p.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("%w: primitive without POSITION", scene.ErrMalformedInput)
	}
	sm := &rdb.SubMesh{Material: rdb.NoRef}
	var err error
	if sm.Positions, err = gltfutil.ReadPositions(c.doc, pos); err != nil {
		return nil, err
	}
	if a, ok := p.Attributes["NORMAL"]; ok {
		if sm.Normals, err = gltfutil.ReadNormals(c.doc, a); err != nil {
			return nil, err
		}
	}
	if a, ok := p.Attributes["TEXCOORD_0"]; ok {
		if sm.UVs, err = gltfutil.ReadTexCoords(c.doc, a); err != nil {
			return nil, err
		}
	}
	if p.Indices != nil {
		if sm.Indices, err = gltfutil.ReadIndices(c.doc, *p.Indices); err != nil {
			return nil, err
		}
	} else {
		sm.Indices = make([]uint32, len(sm.Positions))
		for i := range sm.Indices {
			sm.Indices[i] = uint32(i)
		}
	}
	for _, idx := range sm.Indices {
		if int(idx) >= len(sm.Positions) {
			return nil, fmt.Errorf("%w: index %d out of range", scene.ErrMalformedInput, idx)
		}
	}
	if p.Material != nil {
		if sm.Material, err = c.convertMaterial(*p.Material); err != nil {
			return nil, err
		}
	}
	return sm, nil
}

func roughnessToShininess(r float32) float32 {
	if r >= 1 {
		return 0
	}
	return (1 - r) * 128
}

func (c *gltfToModel) convertMaterial(i uint32) (int, error) {
	if ri, ok := c.materials[i]; ok {
		return ri, nil
	}
	if int(i) >= len(c.doc.Materials) {
		return 0, fmt.Errorf("%w: material %d out of range", scene.ErrMalformedInput, i)
	}
	m := c.doc.Materials[i]
	mat := &rdb.Material{
		Name:            m.Name,
		Diffuse:         [4]float32{1, 1, 1, 1},
		Emissive:        m.EmissiveFactor,
		DiffuseTexture:  rdb.NoRef,
		NormalTexture:   rdb.NoRef,
		EmissiveTexture: rdb.NoRef,
	}
	roughness, metallic := float32(1), float32(1)
	if pbr := m.PBRMetallicRoughness; pbr != nil {
		mat.Diffuse = pbr.BaseColorFactorOrDefault()
		roughness = pbr.RoughnessFactorOrDefault()
		metallic = pbr.MetallicFactorOrDefault()
		if pbr.BaseColorTexture != nil {
			mat.DiffuseTexture = c.convertTexture(pbr.BaseColorTexture.Index)
		}
	}
	mat.Shininess = roughnessToShininess(roughness)
	if m.NormalTexture != nil && m.NormalTexture.Index != nil {
		mat.NormalTexture = c.convertTexture(*m.NormalTexture.Index)
	}
	if m.EmissiveTexture != nil {
		mat.EmissiveTexture = c.convertTexture(m.EmissiveTexture.Index)
	}

	if m.DoubleSided {
		mat.RenderStates = append(mat.RenderStates, rdb.RenderCullNone)
	}
	switch m.AlphaMode {
	case gltf.AlphaBlend:
		mat.RenderStates = append(mat.RenderStates, rdb.RenderAlphaBlend)
	case gltf.AlphaMask:
		mat.RenderStates = append(mat.RenderStates, rdb.RenderAlphaTest)
	}
	if roughness == 1 && metallic == 0 {
		mat.RenderStates = append(mat.RenderStates, rdb.RenderSpecularOff)
	}
	if _, ok := m.Extensions[unlitExtension]; ok {
		mat.RenderStates = append(mat.RenderStates, rdb.RenderLightingOff)
	}

	ri := c.model.Add(mat)
	c.materials[i] = ri
	return ri, nil
}

const unlitExtension = "KHR_materials_unlit"

// convertTexture returns the Texture record index or NoRef when the image
// cannot be read.
func (c *gltfToModel) convertTexture(i uint32) int {
	if ri, ok := c.textures[i]; ok {
		return ri
	}
	c.textures[i] = rdb.NoRef
	if int(i) >= len(c.doc.Textures) || c.doc.Textures[i].Source == nil || int(*c.doc.Textures[i].Source) >= len(c.doc.Images) {
		logger.Warn("texture without image", zap.Uint32("texture", i))
		return rdb.NoRef
	}
	img := c.doc.Images[*c.doc.Textures[i].Source]
	data, err := container.ReadResource(c.doc, c.dir, img)
	if err != nil {
		logger.Warn("texture image unreadable", zap.Uint32("texture", i), zap.Error(err))
		return rdb.NoRef
	}
	id := c.ImageIDBase + rdb.ID(len(c.images))
	c.images = append(c.images, ImportedImage{ID: id, Data: data})
	name := img.Name
	if name == "" {
		name = c.doc.Textures[i].Name
	}
	ri := c.model.Add(&rdb.Texture{Name: name, Image: id})
	c.textures[i] = ri
	return ri
}

type sampledChannel struct {
	times  []float32
	values [][]float32
}

// at linearly interpolates the channel at time t, clamping at both ends.
func (s *sampledChannel) at(t float32, rotation bool) []float32 {
	k := sort.Search(len(s.times), func(i int) bool { return s.times[i] >= t })
	if k == 0 {
		return s.values[0]
	}
	if k == len(s.times) {
		return s.values[len(s.values)-1]
	}
	if s.times[k] == t {
		return s.values[k]
	}
	t0, t1 := s.times[k-1], s.times[k]
	f := (t - t0) / (t1 - t0)
	a, b := s.values[k-1], s.values[k]
	if !rotation {
		v := geom.NewVector3(b[0], b[1], b[2]).Blend(geom.NewVector3(a[0], a[1], a[2]), f).Array()
		return v[:]
	}
	qa := geom.NewVector4(a[0], a[1], a[2], a[3])
	qb := geom.NewVector4(b[0], b[1], b[2], b[3])
	if qa.Dot(qb) < 0 {
		qb = qb.Scale(-1)
	}
	q := qa.Scale(1 - f).Add(qb.Scale(f)).Normalize().Array()
	return q[:]
}

func (c *gltfToModel) readChannel(a *gltf.Animation, ch *gltf.Channel) (*sampledChannel, error) {
	if ch.Sampler == nil || int(*ch.Sampler) >= len(a.Samplers) {
		return nil, fmt.Errorf("%w: animation %q: bad sampler", scene.ErrMalformedInput, a.Name)
	}
	smp := a.Samplers[*ch.Sampler]
	if smp.Input == nil || smp.Output == nil {
		return nil, fmt.Errorf("%w: animation %q: sampler without accessors", scene.ErrMalformedInput, a.Name)
	}
	times, err := gltfutil.ReadFloats(c.doc, *smp.Input)
	if err != nil {
		return nil, err
	}
	values, err := gltfutil.ReadVectors(c.doc, *smp.Output)
	if err != nil {
		return nil, err
	}
	if smp.Interpolation == gltf.InterpolationCubicSpline {
		// in-tangent, value, out-tangent
		var v [][]float32
		for i := 1; i < len(values); i += 3 {
			v = append(v, values[i])
		}
		values = v
	}
	if len(times) == 0 || len(times) != len(values) {
		return nil, fmt.Errorf("%w: animation %q: %d times, %d values", scene.ErrMalformedInput, a.Name, len(times), len(values))
	}
	return &sampledChannel{times: times, values: values}, nil
}

// convertAnimation resamples translation and rotation channels at the union
// of their key times and stores one AnimTrack per node.
func (c *gltfToModel) convertAnimation(a *gltf.Animation) error {
	type nodeChannels struct{ t, r *sampledChannel }
	byNode := map[uint32]*nodeChannels{}
	var order []uint32
	for _, ch := range a.Channels {
		if ch.Target.Node == nil {
			continue
		}
		ni := *ch.Target.Node
		if _, ok := c.nodeRecord[ni]; !ok {
			continue
		}
		if ch.Target.Path != gltf.TRSTranslation && ch.Target.Path != gltf.TRSRotation {
			continue
		}
		s, err := c.readChannel(a, ch)
		if err != nil {
			return err
		}
		nc, ok := byNode[ni]
		if !ok {
			nc = &nodeChannels{}
			byNode[ni] = nc
			order = append(order, ni)
		}
		if ch.Target.Path == gltf.TRSTranslation {
			nc.t = s
		} else {
			nc.r = s
		}
	}

	for _, ni := range order {
		nc := byNode[ni]
		ri := c.nodeRecord[ni]
		var tr *rdb.Transform
		var track *int
		switch r := c.model.Records[ri].(type) {
		case *rdb.MeshInstance:
			tr, track = &r.Transform, &r.AnimTrack
		case *rdb.ReferenceFrame:
			tr, track = &r.Transform, &r.AnimTrack
		}
		if *track != rdb.NoRef {
			logger.Warn("node already animated, channel ignored", zap.String("animation", a.Name), zap.Uint32("node", ni))
			continue
		}
		timeSet := map[float32]bool{}
		var times []float32
		for _, s := range []*sampledChannel{nc.t, nc.r} {
			if s == nil {
				continue
			}
			for _, t := range s.times {
				if !timeSet[t] {
					timeSet[t] = true
					times = append(times, t)
				}
			}
		}
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

		at := &rdb.AnimTrack{Name: a.Name}
		for _, t := range times {
			k := rdb.Keyframe{Time: t, Translation: tr.Translation, Rotation: tr.Rotation}
			if nc.t != nil {
				copy(k.Translation[:], nc.t.at(t, false))
			}
			if nc.r != nil {
				copy(k.Rotation[:], nc.r.at(t, true))
			}
			at.Keys = append(at.Keys, k)
		}
		*track = c.model.Add(at)
	}
	return nil
}
