package tilecoords_test

import (
	"testing"

	"github.com/hupe1980/tilestore/datatype"
	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/tilecoords"
	"github.com/hupe1980/tilestore/uri"
	"github.com/stretchr/testify/require"
)

func twoByTwoSchema(t *testing.T) *schema.ArraySchema {
	t.Helper()
	s := schema.New(uri.MustParse("file:///arrays/a"), datatype.Dense)
	require.NoError(t, s.AddDimension(schema.NewDimension("rows", datatype.INT32, 1, 4, 2)))
	require.NoError(t, s.AddDimension(schema.NewDimension("cols", datatype.INT32, 1, 4, 2)))
	require.NoError(t, s.Check())
	return s
}

func TestTileCountsDense(t *testing.T) {
	tr := tilecoords.New(twoByTwoSchema(t))
	require.Equal(t, []int64{2, 2}, tr.TileCounts())
}

func TestTileCoordsAndCellCoordsInvert(t *testing.T) {
	tr := tilecoords.New(twoByTwoSchema(t))

	for row := int64(1); row <= 4; row++ {
		for col := int64(1); col <= 4; col++ {
			point := []int64{row, col}
			tileCoords, err := tr.TileCoords(point)
			require.NoError(t, err)
			local, err := tr.CellCoordsInTile(point)
			require.NoError(t, err)

			// Invert: domainLow + tileCoord*extent + local == original point.
			require.Equal(t, row, 1+tileCoords[0]*2+local[0])
			require.Equal(t, col, 1+tileCoords[1]*2+local[1])
		}
	}
}

func TestTileCoordsRejectsOutOfDomain(t *testing.T) {
	tr := tilecoords.New(twoByTwoSchema(t))
	_, err := tr.TileCoords([]int64{0, 1})
	require.Error(t, err)
}

func TestInvariantTileCountTimesCellsPerTile(t *testing.T) {
	s := twoByTwoSchema(t)
	tr := tilecoords.New(s)
	counts := tr.TileCounts()
	tileCount := counts[0] * counts[1]
	require.Equal(t, int64(16), tileCount*s.CellsPerTile())
}

func TestIntersectingTilesRowMajorOrder(t *testing.T) {
	s := twoByTwoSchema(t)
	tr := tilecoords.New(s)

	tiles, err := tr.IntersectingTiles([]tilecoords.Range{{Low: 1, High: 4}, {Low: 1, High: 4}})
	require.NoError(t, err)
	// 2x2 tile grid, row-major: (0,0),(0,1),(1,0),(1,1).
	require.Equal(t, [][]int64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, tiles)
}

func TestIntersectingTilesColMajorOrder(t *testing.T) {
	s := twoByTwoSchema(t)
	s.SetTileOrder(datatype.ColMajor)
	tr := tilecoords.New(s)

	tiles, err := tr.IntersectingTiles([]tilecoords.Range{{Low: 1, High: 4}, {Low: 1, High: 4}})
	require.NoError(t, err)
	require.Equal(t, [][]int64{{0, 0}, {1, 0}, {0, 1}, {1, 1}}, tiles)
}

func TestIntersectingTilesClampsToDomain(t *testing.T) {
	s := twoByTwoSchema(t)
	tr := tilecoords.New(s)

	tiles, err := tr.IntersectingTiles([]tilecoords.Range{{Low: 3, High: 10}, {Low: -5, High: 2}})
	require.NoError(t, err)
	require.Equal(t, [][]int64{{1, 0}}, tiles)
}

func TestGlobalTileIDRowMajorDimensionZeroMostSignificant(t *testing.T) {
	s := twoByTwoSchema(t)
	tr := tilecoords.New(s)

	id, err := tr.GlobalTileID([]int64{1, 0}, datatype.RowMajor)
	require.NoError(t, err)
	require.Equal(t, int64(2), id) // tile row 1, col 0 -> 1*2+0
}

func TestCellIndexInTileRowMajor(t *testing.T) {
	tr := tilecoords.New(twoByTwoSchema(t))
	idx, err := tr.CellIndexInTile([]int64{1, 1}, datatype.RowMajor)
	require.NoError(t, err)
	require.Equal(t, int64(3), idx) // 1*2+1 within a 2x2 tile
}

func TestPresenceIndexFiltersAbsentTiles(t *testing.T) {
	p := tilecoords.NewPresenceIndex()
	p.Mark(0)
	p.Mark(3)

	require.True(t, p.Has(0))
	require.False(t, p.Has(1))
	require.Equal(t, []int64{0, 3}, p.FilterCandidates([]int64{0, 1, 2, 3}))
	require.Equal(t, int64(2), p.Cardinality())
}
