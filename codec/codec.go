// Package codec centralizes tile compression.
//
// tilestore treats compressor selection as a per-attribute/per-dimension
// schema property (datatype.Compressor): a tile is compressed with
// whatever codec its schema names, and the schema records that choice on
// disk, so a tile never needs to guess how it was written.
package codec

import (
	"fmt"

	"github.com/hupe1980/tilestore/datatype"
)

// Compressor encodes/decodes tile byte buffers. Implementations must be
// safe for concurrent use.
type Compressor interface {
	// Compress appends the compressed form of src to dst and returns the
	// extended slice.
	Compress(dst, src []byte, level int) ([]byte, error)
	// Decompress appends the decompressed form of src to dst and returns
	// the extended slice.
	Decompress(dst, src []byte) ([]byte, error)
	// Name returns the compressor's stable registry name.
	Name() string
}

// ByName returns a built-in Compressor by its stable name. The schema's
// on-disk format stores compressors by datatype.Compressor id, not by
// name; ByName exists for tooling and tests that address codecs by name.
func ByName(name string) (Compressor, bool) {
	switch name {
	case "none":
		return noneCompressor{}, true
	case "zstd":
		return zstdCompressor{}, true
	case "lz4":
		return lz4Compressor{}, true
	default:
		return nil, false
	}
}

// ForCompressor resolves a schema-level datatype.Compressor to its
// Compressor implementation.
func ForCompressor(c datatype.Compressor) (Compressor, error) {
	switch c {
	case datatype.CompressorNone:
		return noneCompressor{}, nil
	case datatype.CompressorZstd:
		return zstdCompressor{}, nil
	case datatype.CompressorLZ4:
		return lz4Compressor{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown compressor %s", c)
	}
}

type noneCompressor struct{}

func (noneCompressor) Compress(dst, src []byte, _ int) ([]byte, error) {
	return append(dst, src...), nil
}

func (noneCompressor) Decompress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

func (noneCompressor) Name() string { return "none" }
