package codec

import (
	"testing"

	"github.com/hupe1980/tilestore/datatype"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	src := []byte("the quick brown fox jumps over the lazy dog, repeated many times. " +
		"the quick brown fox jumps over the lazy dog, repeated many times.")

	for _, name := range []string{"none", "zstd", "lz4"} {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			require.True(t, ok)

			compressed, err := c.Compress(nil, src, 3)
			require.NoError(t, err)

			decompressed, err := c.Decompress(nil, compressed)
			require.NoError(t, err)
			require.Equal(t, src, decompressed)
		})
	}
}

func TestByNameUnknown(t *testing.T) {
	_, ok := ByName("snappy")
	require.False(t, ok)
}

func TestForCompressor(t *testing.T) {
	c, err := ForCompressor(datatype.CompressorZstd)
	require.NoError(t, err)
	require.Equal(t, "zstd", c.Name())

	_, err = ForCompressor(datatype.Compressor(99))
	require.Error(t, err)
}
