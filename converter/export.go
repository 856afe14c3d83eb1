package converter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/binzume/rdbconv/container"
	"github.com/binzume/rdbconv/gltfutil"
	"github.com/binzume/rdbconv/logger"
	"github.com/binzume/rdbconv/rdb"
	"github.com/binzume/rdbconv/scene"
	"go.uber.org/zap"
)

type ExportOption struct {
	Mirror scene.Axis

	TextureReCompress      bool
	TextureResolutionLimit int // 0: unlimited
	TextureScale           float32
	SkipOversizedMeshes    bool

	Generator string
}

func normalizeExportOption(opt *ExportOption) *ExportOption {
	o := ExportOption{}
	if opt != nil {
		o = *opt
	}
	if o.TextureScale == 0 {
		o.TextureScale = 1.0
	}
	if o.Generator == "" {
		o.Generator = "rdbconv"
	}
	return &o
}

// ExportModel converts the model record id to path. The container follows
// the extension: .gltf writes a document with external buffer, anything
// else GLB.
func ExportModel(store rdb.Store, id rdb.ID, path string, opt *ExportOption) error {
	opt = normalizeExportOption(opt)
	model, err := rdb.LoadModel(store, id)
	if err != nil {
		return err
	}
	g, err := ModelToScene(store, model, opt)
	if err != nil {
		return fmt.Errorf("model %d: %w", id, err)
	}
	scene.Mirror(g, opt.Mirror)
	return WriteScene(g, path, opt)
}

// ExportActor converts the actor record id with its animations to path.
// Actors are mirrored on X before opt.Mirror is applied.
func ExportActor(store rdb.Store, id rdb.ID, path string, opt *ExportOption) error {
	opt = normalizeExportOption(opt)
	actor, err := rdb.LoadActor(store, id)
	if err != nil {
		return err
	}
	g, err := ActorToScene(store, actor, opt)
	if err != nil {
		return fmt.Errorf("actor %d: %w", id, err)
	}
	scene.Mirror(g, scene.AxisX^opt.Mirror)
	return WriteScene(g, path, opt)
}

// WriteScene validates g, lays out its buffer and writes the container.
func WriteScene(g *scene.Graph, path string, opt *ExportOption) error {
	opt = normalizeExportOption(opt)
	if err := g.Validate(); err != nil {
		return err
	}
	bin, layout, err := gltfutil.BuildBuffer(g)
	if err != nil {
		return err
	}
	docOpt := &gltfutil.DocumentOptions{Generator: opt.Generator}

	if strings.ToLower(filepath.Ext(path)) != ".gltf" {
		doc := gltfutil.BuildDocument(g, layout, bin, docOpt)
		logger.Debug("writing GLB", zap.String("path", path), zap.Int("bytes", len(bin)))
		return container.WriteGLB(path, doc)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	files := map[string][]byte{}
	docOpt.ImageURI = func(i int, t *scene.Texture) string {
		ext := ".png"
		if t.MimeType == "image/jpeg" {
			ext = ".jpg"
		}
		name := fmt.Sprintf("%s_%d%s", base, i, ext)
		files[name] = t.Data
		return name
	}
	doc := gltfutil.BuildDocument(g, layout, bin, docOpt)
	logger.Debug("writing glTF", zap.String("path", path), zap.Int("bytes", len(bin)), zap.Int("images", len(files)))
	return container.SaveGLTF(path, doc, files)
}
