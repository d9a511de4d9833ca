package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4Compressor implements Compressor over github.com/pierrec/lz4/v4, the
// fast alternate codec alongside zstd.
type lz4Compressor struct{}

func (lz4Compressor) Name() string { return "lz4" }

func (lz4Compressor) Compress(dst, src []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
		return nil, fmt.Errorf("codec: lz4 writer options: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	return append(dst, buf.Bytes()...), nil
}

func (lz4Compressor) Decompress(dst, src []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 decompress: %w", err)
	}
	return append(dst, out...), nil
}

// lz4Level maps a tile's schema-declared compression level onto the
// library's CompressionLevel constants.
func lz4Level(level int) lz4.CompressionLevel {
	switch {
	case level <= 0:
		return lz4.Fast
	case level <= 3:
		return lz4.Level3
	case level <= 6:
		return lz4.Level6
	case level <= 9:
		return lz4.Level9
	default:
		return lz4.Level9
	}
}
