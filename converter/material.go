package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/binzume/rdbconv/logger"
	"github.com/binzume/rdbconv/rdb"
	"github.com/binzume/rdbconv/scene"
	"github.com/blezek/tga"
	_ "github.com/oov/psd"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// renderStateRules maps each legacy render state to its material effect.
var renderStateRules = map[rdb.RenderState]func(m *scene.Material){
	rdb.RenderCullNone: func(m *scene.Material) {
		m.DoubleSided = true
	},
	rdb.RenderAlphaBlend: func(m *scene.Material) {
		m.AlphaMode = scene.AlphaBlend
	},
	rdb.RenderSpecularOff: func(m *scene.Material) {
		m.Roughness = 1
		m.Metallic = 0
	},
	rdb.RenderAlphaTest: func(m *scene.Material) {
		m.AlphaMode = scene.AlphaMask
		m.AlphaCutoff = 0.5
	},
	rdb.RenderLightingOff: func(m *scene.Material) {
		m.Unlit = true
	},
}

// materialResolver converts source materials and textures at most once per
// export. Source indices are record indices for models and list indices for
// actors.
type materialResolver struct {
	*ExportOption
	store rdb.Store
	g     *scene.Graph

	material func(i int) (*rdb.Material, error)
	texture  func(i int) (*rdb.Texture, error)

	materials map[int]int
	textures  map[int]int
}

func newMaterialResolver(g *scene.Graph, store rdb.Store, opt *ExportOption,
	material func(int) (*rdb.Material, error), texture func(int) (*rdb.Texture, error)) *materialResolver {
	return &materialResolver{
		ExportOption: opt,
		store:        store,
		g:            g,
		material:     material,
		texture:      texture,
		materials:    map[int]int{},
		textures:     map[int]int{},
	}
}

func shininessToRoughness(shininess float32) float32 {
	r := 1 - shininess/128
	if r < 0 {
		return 0
	}
	return r
}

// resolveMaterial returns the scene material index for source material i.
func (r *materialResolver) resolveMaterial(i int) (int, error) {
	if i == rdb.NoRef {
		return scene.None, nil
	}
	if idx, ok := r.materials[i]; ok {
		return idx, nil
	}
	src, err := r.material(i)
	if err != nil {
		return scene.None, err
	}
	m := scene.NewMaterial(src.Name)
	m.BaseColor = src.Diffuse
	m.Metallic = 0
	m.Roughness = shininessToRoughness(src.Shininess)
	if src.Emissive != [3]float32{} {
		e := src.Emissive
		m.Emissive = &e
	}
	for _, s := range src.RenderStates {
		if rule, ok := renderStateRules[s]; ok {
			rule(m)
		}
	}
	m.BaseColorTexture = r.resolveTexture(src.DiffuseTexture)
	m.NormalTexture = r.resolveTexture(src.NormalTexture)
	m.EmissiveTexture = r.resolveTexture(src.EmissiveTexture)

	r.g.Materials = append(r.g.Materials, m)
	idx := len(r.g.Materials) - 1
	r.materials[i] = idx
	return idx, nil
}

// resolveTexture returns the scene texture index or None. Failures drop the
// texture with a warning and are remembered.
func (r *materialResolver) resolveTexture(i int) int {
	if i == rdb.NoRef {
		return scene.None
	}
	if idx, ok := r.textures[i]; ok {
		return idx
	}
	r.textures[i] = scene.None
	src, err := r.texture(i)
	if err != nil {
		logger.Warn("texture dropped", zap.Int("texture", i), zap.Error(err))
		return scene.None
	}
	data, err := rdb.LoadImage(r.store, src.Image)
	if err != nil {
		logger.Warn("texture dropped", zap.String("name", src.Name), zap.Uint32("image", uint32(src.Image)), zap.Error(err))
		return scene.None
	}
	mimeType, encoded, err := r.processImage(data)
	if err != nil {
		logger.Warn("texture dropped", zap.String("name", src.Name), zap.Error(err))
		return scene.None
	}
	r.g.Textures = append(r.g.Textures, &scene.Texture{Name: src.Name, MimeType: mimeType, Data: encoded})
	idx := len(r.g.Textures) - 1
	r.textures[i] = idx
	return idx
}

func sniffMimeType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return "image/jpeg"
	}
	return ""
}

// processImage passes PNG and JPEG through unless they need scaling, and
// re-encodes everything else as PNG.
func (r *materialResolver) processImage(data []byte) (string, []byte, error) {
	mimeType := sniffMimeType(data)
	if mimeType != "" && !r.TextureReCompress && r.TextureScale == 1 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return "", nil, err
		}
		if r.TextureResolutionLimit <= 0 || cfg.Width <= r.TextureResolutionLimit {
			return mimeType, data, nil
		}
	}
	img, err := decodeImage(data)
	if err != nil {
		return "", nil, err
	}
	img = scaleImage(img, r.TextureScale, r.TextureResolutionLimit)
	w := new(bytes.Buffer)
	if err := png.Encode(w, img); err != nil {
		return "", nil, err
	}
	return "image/png", w.Bytes(), nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	// TGA has no magic number.
	if img, err2 := tga.Decode(bytes.NewReader(data)); err2 == nil {
		return img, nil
	}
	return nil, fmt.Errorf("undecodable image: %w", err)
}

func scaleImage(img image.Image, scale float32, limit int) image.Image {
	if scale <= 0 {
		scale = 1
	}
	rect := img.Bounds()
	if limit > 0 {
		sz := int(float32(rect.Dx()) * scale)
		if sz > limit {
			scale *= float32(limit) / float32(sz)
		}
	}
	if scale == 1.0 {
		return img
	}
	w, h := int(float32(rect.Dx())*scale), int(float32(rect.Dy())*scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Over, nil)
	return dst
}
