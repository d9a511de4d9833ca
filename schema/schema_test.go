package schema_test

import (
	"context"
	"testing"

	"github.com/hupe1980/tilestore/datatype"
	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
	"github.com/hupe1980/tilestore/vfs/memfs"
	"github.com/stretchr/testify/require"
)

func denseSchema(t *testing.T) *schema.ArraySchema {
	t.Helper()
	s := schema.New(uri.MustParse("file:///arrays/a"), datatype.Dense)
	require.NoError(t, s.AddDimension(schema.NewDimension("rows", datatype.INT32, 1, 4, 2)))
	require.NoError(t, s.AddDimension(schema.NewDimension("cols", datatype.INT32, 1, 4, 2)))
	require.NoError(t, s.AddAttribute(schema.NewAttribute("a", datatype.INT32, 1)))
	return s
}

func TestCheckAcceptsValidDenseSchema(t *testing.T) {
	s := denseSchema(t)
	require.NoError(t, s.Check())
	require.Equal(t, int64(4), s.CellsPerTile())
}

func TestCheckRejectsEmptyDimensions(t *testing.T) {
	s := schema.New(uri.MustParse("file:///arrays/a"), datatype.Dense)
	require.Error(t, s.Check())
}

func TestCheckRejectsDuplicateNames(t *testing.T) {
	s := denseSchema(t)
	require.NoError(t, s.AddAttribute(schema.NewAttribute("rows", datatype.INT32, 1)))
	require.Error(t, s.Check())
}

func TestCheckRejectsNonIntegralDenseDimension(t *testing.T) {
	s := schema.New(uri.MustParse("file:///arrays/a"), datatype.Dense)
	require.NoError(t, s.AddDimension(schema.NewDimension("x", datatype.FLOAT64, 0, 9, 2)))
	require.Error(t, s.Check())
}

func TestCheckRejectsMixedDenseDimensionDatatypes(t *testing.T) {
	s := schema.New(uri.MustParse("file:///arrays/a"), datatype.Dense)
	require.NoError(t, s.AddDimension(schema.NewDimension("rows", datatype.INT32, 1, 4, 2)))
	require.NoError(t, s.AddDimension(schema.NewDimension("cols", datatype.INT64, 1, 4, 2)))
	require.Error(t, s.Check())
}

func TestCheckRejectsIndivisibleTileExtent(t *testing.T) {
	s := schema.New(uri.MustParse("file:///arrays/a"), datatype.Dense)
	require.NoError(t, s.AddDimension(schema.NewDimension("x", datatype.INT32, 0, 9, 3)))
	require.Error(t, s.Check())
}

func TestCheckRejectsZeroSparseCapacity(t *testing.T) {
	s := schema.New(uri.MustParse("file:///arrays/a"), datatype.Sparse)
	require.NoError(t, s.AddDimension(schema.NewDimension("x", datatype.INT64, 0, 99, 10)))
	s.SetCapacity(0)
	require.Error(t, s.Check())
}

func TestCheckRejectsGlobalOrderAndUnorderedAsStoredOrder(t *testing.T) {
	s := denseSchema(t)
	s.SetCellOrder(datatype.GlobalOrder)
	require.Error(t, s.Check())

	s2 := denseSchema(t)
	s2.SetTileOrder(datatype.Unordered)
	require.Error(t, s2.Check())
}

func TestAttributeReservedCoordsNameRejected(t *testing.T) {
	s := denseSchema(t)
	err := s.AddAttribute(schema.NewAttribute(schema.ReservedCoordsName, datatype.INT32, 1))
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := denseSchema(t)
	require.NoError(t, s.Check())

	encoded := schema.Encode(s)
	decoded, err := schema.Decode(s.ArrayURI, encoded)
	require.NoError(t, err)

	require.Equal(t, s.ArrayType, decoded.ArrayType)
	require.Equal(t, s.Capacity, decoded.Capacity)
	require.Equal(t, s.CellOrder, decoded.CellOrder)
	require.Equal(t, s.TileOrder, decoded.TileOrder)
	require.Equal(t, s.Dimensions, decoded.Dimensions)
	require.Equal(t, s.Attributes, decoded.Attributes)

	// Byte-exact round trip (spec.md S:8 invariant).
	require.Equal(t, encoded, schema.Encode(decoded))
}

func TestSaveLoadRoundTripThroughVFS(t *testing.T) {
	ctx := context.Background()
	v := vfs.New(2, []vfs.Backend{memfs.New()})
	defer v.Close()

	s := denseSchema(t)
	require.NoError(t, schema.Save(ctx, v, s))

	loaded, err := schema.Load(ctx, v, s.ArrayURI)
	require.NoError(t, err)
	require.Equal(t, s.Dimensions, loaded.Dimensions)
	require.Equal(t, s.Attributes, loaded.Attributes)
}

func TestSaveRejectsInvalidSchema(t *testing.T) {
	ctx := context.Background()
	v := vfs.New(2, []vfs.Backend{memfs.New()})
	defer v.Close()

	s := schema.New(uri.MustParse("file:///arrays/empty"), datatype.Dense)
	require.Error(t, schema.Save(ctx, v, s))
}

func TestDecodeRejectsTruncatedBlob(t *testing.T) {
	_, err := schema.Decode(uri.MustParse("file:///arrays/a"), []byte{1, 2, 3})
	require.Error(t, err)
}
