package datatype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteWidth(t *testing.T) {
	require.Equal(t, 1, INT8.ByteWidth())
	require.Equal(t, 2, INT16.ByteWidth())
	require.Equal(t, 4, FLOAT32.ByteWidth())
	require.Equal(t, 8, FLOAT64.ByteWidth())
	require.Equal(t, 1, CHAR.ByteWidth())
}

func TestIsIntegral(t *testing.T) {
	require.True(t, INT32.IsIntegral())
	require.True(t, UINT64.IsIntegral())
	require.False(t, FLOAT32.IsIntegral())
	require.False(t, CHAR.IsIntegral())
}

func TestLayoutValidForCellOrTileOrder(t *testing.T) {
	require.True(t, RowMajor.ValidForCellOrTileOrder())
	require.True(t, ColMajor.ValidForCellOrTileOrder())
	require.False(t, GlobalOrder.ValidForCellOrTileOrder())
	require.False(t, Unordered.ValidForCellOrTileOrder())
}

func TestStringers(t *testing.T) {
	require.Equal(t, "INT32", INT32.String())
	require.Equal(t, "DENSE", Dense.String())
	require.Equal(t, "zstd", CompressorZstd.String())
	require.Equal(t, "ROW_MAJOR", RowMajor.String())
}
