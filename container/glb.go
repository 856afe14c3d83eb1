// Package container reads and writes glTF documents as GLB or as a
// .gltf file with an external buffer.
package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/binzume/rdbconv/scene"
	"github.com/qmuntal/gltf"
)

var ErrUnsupportedContainer = errors.New("unsupported container")

const (
	glbMagic         = 0x46546C67 // "glTF"
	glbVersion       = 2
	glbHeaderLength  = 12
	glbChunkHeadSize = 8
	chunkJSON        = 0x4E4F534A
)

// IsGLB reports whether data starts with the GLB magic.
func IsGLB(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == glbMagic
}

// binaryBuffer makes the first buffer the BIN chunk.
func binaryBuffer(doc *gltf.Document) {
	if len(doc.Buffers) > 0 {
		doc.Buffers[0].URI = ""
		doc.Buffers[0].ByteLength = uint32(len(doc.Buffers[0].Data))
	}
}

// EncodeGLB writes doc as GLB. The first buffer becomes the BIN chunk and
// loses its URI.
func EncodeGLB(w io.Writer, doc *gltf.Document) error {
	binaryBuffer(doc)
	e := gltf.NewEncoder(w)
	e.AsBinary = true
	return e.Encode(doc)
}

func WriteGLB(path string, doc *gltf.Document) error {
	binaryBuffer(doc)
	return gltf.SaveBinary(doc, path)
}

// checkGLBHeader classifies a bad header: a foreign magic or version is
// unsupported, inconsistent lengths are malformed.
func checkGLBHeader(data []byte) error {
	if len(data) < glbHeaderLength+glbChunkHeadSize {
		if IsGLB(data) {
			return fmt.Errorf("%w: truncated GLB header", scene.ErrMalformedInput)
		}
		return fmt.Errorf("%w: not a GLB", ErrUnsupportedContainer)
	}
	if !IsGLB(data) {
		return fmt.Errorf("%w: bad magic %#x", ErrUnsupportedContainer, binary.LittleEndian.Uint32(data))
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != glbVersion {
		return fmt.Errorf("%w: GLB version %d", ErrUnsupportedContainer, v)
	}
	total := int(binary.LittleEndian.Uint32(data[8:12]))
	if total > len(data) || total < glbHeaderLength+glbChunkHeadSize {
		return fmt.Errorf("%w: GLB length %d, have %d bytes", scene.ErrMalformedInput, total, len(data))
	}
	if typ := binary.LittleEndian.Uint32(data[16:20]); typ != chunkJSON {
		return fmt.Errorf("%w: first chunk type %#x is not JSON", scene.ErrMalformedInput, typ)
	}
	if n := int(binary.LittleEndian.Uint32(data[12:16])); n > total-glbHeaderLength-glbChunkHeadSize {
		return fmt.Errorf("%w: JSON chunk length %d exceeds data", scene.ErrMalformedInput, n)
	}
	return nil
}

// DecodeGLB parses GLB bytes. The BIN chunk, when present, is attached to
// the first buffer. Other buffers are resolved against dir.
func DecodeGLB(data []byte, dir string) (*gltf.Document, error) {
	if err := checkGLBHeader(data); err != nil {
		return nil, err
	}
	return decode(data[:binary.LittleEndian.Uint32(data[8:12])], dir)
}

func decode(data []byte, dir string) (*gltf.Document, error) {
	doc := new(gltf.Document)
	dec := gltf.NewDecoderFS(bytes.NewReader(data), newDirFS(dir))
	if err := dec.Decode(doc); err != nil {
		var pe *fs.PathError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("reading buffer: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", scene.ErrMalformedInput, err)
	}
	for i, b := range doc.Buffers {
		if uint32(len(b.Data)) < b.ByteLength {
			return nil, fmt.Errorf("%w: buffer %d has %d bytes, declares %d", scene.ErrMalformedInput, i, len(b.Data), b.ByteLength)
		}
	}
	return doc, nil
}
