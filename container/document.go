package container

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/binzume/rdbconv/scene"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// dirFS is the gltf.CreateFS rooted at a directory.
type dirFS struct {
	fs.FS
	dir string
}

func newDirFS(dir string) dirFS {
	if dir == "" {
		dir = "."
	}
	return dirFS{FS: os.DirFS(dir), dir: dir}
}

func (d dirFS) Create(name string) (io.WriteCloser, error) {
	return os.Create(filepath.Join(d.dir, filepath.FromSlash(name)))
}

func (d dirFS) writeFile(name string, data []byte) error {
	w, err := d.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	if err1 := w.Close(); err == nil {
		err = err1
	}
	return err
}

// SaveGLTF writes doc to path, its first buffer to a sibling .bin file and
// every entry of files next to it.
func SaveGLTF(path string, doc *gltf.Document, files map[string][]byte) error {
	fsys := newDirFS(filepath.Dir(path))
	if len(doc.Buffers) > 0 {
		b := doc.Buffers[0]
		b.URI = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".bin"
		b.ByteLength = uint32(len(b.Data))
	}
	for name, data := range files {
		if err := fsys.writeFile(name, data); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	e := gltf.NewEncoderFS(f, fsys)
	e.AsBinary = false
	if err := e.Encode(doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Open reads a GLB or .gltf file. Buffers are loaded into memory.
func Open(path string) (*gltf.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, filepath.Dir(path))
}

// Decode parses GLB or JSON bytes, resolving relative URIs against dir.
func Decode(data []byte, dir string) (*gltf.Document, error) {
	if IsGLB(data) {
		return DecodeGLB(data, dir)
	}
	if t := bytes.TrimLeft(data, " \t\r\n"); len(t) == 0 || t[0] != '{' {
		return nil, fmt.Errorf("%w: neither GLB nor JSON", ErrUnsupportedContainer)
	}
	return decode(data, dir)
}

// ReadResource returns the bytes of an image from its buffer view, data URI
// or sibling file.
func ReadResource(doc *gltf.Document, dir string, img *gltf.Image) ([]byte, error) {
	switch {
	case img.BufferView != nil:
		if int(*img.BufferView) >= len(doc.BufferViews) {
			return nil, fmt.Errorf("%w: buffer view %d out of range", scene.ErrMalformedInput, *img.BufferView)
		}
		data, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
		if err != nil {
			return nil, fmt.Errorf("%w: image %q: %v", scene.ErrMalformedInput, img.Name, err)
		}
		return data, nil
	case img.IsEmbeddedResource():
		data, err := img.MarshalData()
		if err != nil {
			return nil, fmt.Errorf("%w: image %q: %v", scene.ErrMalformedInput, img.Name, err)
		}
		return data, nil
	case img.URI == "":
		return nil, fmt.Errorf("%w: image %q has no source", scene.ErrMalformedInput, img.Name)
	case strings.HasPrefix(img.URI, "data:"):
		return nil, fmt.Errorf("%w: image %q is not an embedded PNG or JPEG", scene.ErrMalformedInput, img.Name)
	}
	name, err := url.PathUnescape(img.URI)
	if err != nil {
		name = img.URI
	}
	return fs.ReadFile(newDirFS(dir), path.Clean(filepath.ToSlash(name)))
}
