package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdCompressor implements Compressor over github.com/klauspost/compress/zstd.
type zstdCompressor struct{}

func (zstdCompressor) Name() string { return "zstd" }

func (zstdCompressor) Compress(dst, src []byte, level int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel(level)))
	if err != nil {
		return nil, fmt.Errorf("codec: zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(src, dst), nil
}

func (zstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(src, dst)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decompress: %w", err)
	}
	return out, nil
}

// zstdLevel maps a tile's schema-declared compression level (an
// arbitrary i32, per spec.md S:4.4's on-disk format) onto the library's
// coarse EncoderLevel enum.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 3:
		return zstd.SpeedDefault
	case level <= 6:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
