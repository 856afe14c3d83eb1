package gltfutil

import (
	"encoding/base64"

	"github.com/binzume/rdbconv/scene"
	"github.com/qmuntal/gltf"
)

const unlitExtension = "KHR_materials_unlit"

type DocumentOptions struct {
	Generator string

	// ImageURI returns the URI of texture i. nil embeds images as data URIs.
	ImageURI func(i int, t *scene.Texture) string
}

// DataURI encodes data as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// BuildDocument assembles a document whose single buffer holds bin.
// Buffer view and accessor indices follow l.Sections().
func BuildDocument(g *scene.Graph, l *Layout, bin []byte, opts *DocumentOptions) *gltf.Document {
	if opts == nil {
		opts = &DocumentOptions{}
	}
	doc := &gltf.Document{
		Asset: gltf.Asset{Version: "2.0", Generator: opts.Generator},
	}
	if len(bin) > 0 {
		doc.Buffers = []*gltf.Buffer{{ByteLength: uint32(len(bin)), Data: bin}}
	}
	for _, s := range l.Sections() {
		doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
			Buffer:     0,
			ByteOffset: s.Offset,
			ByteLength: s.Length,
			Target:     s.Target,
		})
		doc.Accessors = append(doc.Accessors, &gltf.Accessor{
			BufferView:    gltf.Index(uint32(s.Index)),
			ComponentType: s.ComponentType,
			Count:         s.Count,
			Type:          s.Type,
			Min:           s.Min,
			Max:           s.Max,
		})
	}

	for mi, m := range g.Meshes {
		mesh := &gltf.Mesh{Name: m.Name}
		for pi, p := range m.Primitives {
			pl := l.Meshes[mi][pi]
			prim := &gltf.Primitive{
				Attributes: map[string]uint32{"POSITION": uint32(pl.Position.Index)},
			}
			if pl.Normal != nil {
				prim.Attributes["NORMAL"] = uint32(pl.Normal.Index)
			}
			if pl.TexCoord != nil {
				prim.Attributes["TEXCOORD_0"] = uint32(pl.TexCoord.Index)
			}
			if pl.Joints != nil {
				prim.Attributes["JOINTS_0"] = uint32(pl.Joints.Index)
				prim.Attributes["WEIGHTS_0"] = uint32(pl.Weights.Index)
			}
			if pl.Indices != nil {
				prim.Indices = gltf.Index(uint32(pl.Indices.Index))
			}
			if p.Material != scene.None {
				prim.Material = gltf.Index(uint32(p.Material))
			}
			mesh.Primitives = append(mesh.Primitives, prim)
		}
		doc.Meshes = append(doc.Meshes, mesh)
	}

	for _, n := range g.Nodes {
		node := &gltf.Node{
			Name:     n.Name,
			Matrix:   gltf.DefaultMatrix,
			Rotation: [4]float32{0, 0, 0, 1},
			Scale:    [3]float32{1, 1, 1},
		}
		for _, c := range n.Children {
			node.Children = append(node.Children, uint32(c))
		}
		if n.Mesh != scene.None {
			node.Mesh = gltf.Index(uint32(n.Mesh))
		}
		if n.Skin != scene.None {
			node.Skin = gltf.Index(uint32(n.Skin))
		}
		if n.Translation != nil {
			node.Translation = *n.Translation
		}
		if n.Rotation != nil {
			node.Rotation = *n.Rotation
		}
		if n.Scale != nil {
			node.Scale = *n.Scale
		}
		doc.Nodes = append(doc.Nodes, node)
	}
	if g.Root != scene.None {
		doc.Scenes = []*gltf.Scene{{Name: g.Name, Nodes: []uint32{uint32(g.Root)}}}
		doc.Scene = gltf.Index(0)
	}

	for si, s := range g.Skins {
		skin := &gltf.Skin{
			Name:                s.Name,
			InverseBindMatrices: gltf.Index(uint32(l.Skins[si].InverseBindMatrices.Index)),
		}
		for _, j := range s.Joints {
			skin.Joints = append(skin.Joints, uint32(j))
		}
		if s.Skeleton != scene.None {
			skin.Skeleton = gltf.Index(uint32(s.Skeleton))
		}
		doc.Skins = append(doc.Skins, skin)
	}

	for ai, a := range g.Animations {
		anim := &gltf.Animation{Name: a.Name}
		for ci, c := range a.Channels {
			cl := l.Animations[ai][ci]
			anim.Samplers = append(anim.Samplers, &gltf.AnimationSampler{
				Input:         gltf.Index(uint32(cl.Input.Index)),
				Output:        gltf.Index(uint32(cl.Output.Index)),
				Interpolation: gltf.InterpolationLinear,
			})
			anim.Channels = append(anim.Channels, &gltf.Channel{
				Sampler: gltf.Index(uint32(len(anim.Samplers) - 1)),
				Target:  gltf.ChannelTarget{Node: gltf.Index(uint32(c.Node)), Path: trsPath(c.Path)},
			})
		}
		doc.Animations = append(doc.Animations, anim)
	}

	unlit := false
	for _, m := range g.Materials {
		doc.Materials = append(doc.Materials, convertMaterial(m))
		unlit = unlit || m.Unlit
	}
	if unlit {
		doc.ExtensionsUsed = append(doc.ExtensionsUsed, unlitExtension)
	}

	if len(g.Textures) > 0 {
		doc.Samplers = []*gltf.Sampler{{}}
	}
	for i, t := range g.Textures {
		img := &gltf.Image{Name: t.Name, MimeType: t.MimeType}
		if opts.ImageURI != nil {
			img.URI = opts.ImageURI(i, t)
		} else {
			img.URI = DataURI(t.MimeType, t.Data)
		}
		doc.Images = append(doc.Images, img)
		doc.Textures = append(doc.Textures, &gltf.Texture{
			Name:    t.Name,
			Sampler: gltf.Index(0),
			Source:  gltf.Index(uint32(i)),
		})
	}
	return doc
}

func trsPath(p scene.Path) gltf.TRSProperty {
	switch p {
	case scene.PathRotation:
		return gltf.TRSRotation
	case scene.PathScale:
		return gltf.TRSScale
	}
	return gltf.TRSTranslation
}

func convertMaterial(m *scene.Material) *gltf.Material {
	baseColor := m.BaseColor
	metallic := m.Metallic
	roughness := m.Roughness
	mat := &gltf.Material{
		Name:        m.Name,
		DoubleSided: m.DoubleSided,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &baseColor,
			MetallicFactor:  &metallic,
			RoughnessFactor: &roughness,
		},
	}
	if m.BaseColorTexture != scene.None {
		mat.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: uint32(m.BaseColorTexture)}
	}
	if m.NormalTexture != scene.None {
		mat.NormalTexture = &gltf.NormalTexture{Index: gltf.Index(uint32(m.NormalTexture))}
	}
	if m.EmissiveTexture != scene.None {
		mat.EmissiveTexture = &gltf.TextureInfo{Index: uint32(m.EmissiveTexture)}
		mat.EmissiveFactor = [3]float32{1, 1, 1}
	}
	if m.Emissive != nil {
		mat.EmissiveFactor = *m.Emissive
	}
	switch m.AlphaMode {
	case scene.AlphaBlend:
		mat.AlphaMode = gltf.AlphaBlend
	case scene.AlphaMask:
		mat.AlphaMode = gltf.AlphaMask
		cutoff := m.AlphaCutoff
		mat.AlphaCutoff = &cutoff
	}
	if m.Unlit {
		mat.Extensions = map[string]interface{}{unlitExtension: map[string]string{}}
	}
	return mat
}
