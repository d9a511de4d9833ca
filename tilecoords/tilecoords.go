// Package tilecoords implements the coordinate <-> tile <-> cell
// translation math of spec.md S:4.5: tile counting, row/col-major
// linearisation, subarray-to-tile intersection, and cell-within-tile
// indexing.
package tilecoords

import (
	"fmt"

	"github.com/hupe1980/tilestore/datatype"
	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/status"
)

// Range is an inclusive per-dimension bound [Low, High], used both for a
// dimension's full domain and for a query subarray.
type Range struct {
	Low, High int64
}

// Translator performs coordinate math for a single checked ArraySchema.
// It holds no mutable state; all methods are pure functions of the
// schema and their arguments.
type Translator struct {
	schema *schema.ArraySchema
}

// New constructs a Translator bound to s. Callers must have already run
// s.Check(); New does not re-validate.
func New(s *schema.ArraySchema) *Translator {
	return &Translator{schema: s}
}

// TileCounts returns the number of tiles along each dimension (DENSE
// only; spec.md S:4.5's Ti formula).
func (t *Translator) TileCounts() []int64 {
	counts := make([]int64, len(t.schema.Dimensions))
	for i, d := range t.schema.Dimensions {
		counts[i] = d.TileCount()
	}
	return counts
}

// TileCoords maps a point in the domain to its per-dimension tile index.
func (t *Translator) TileCoords(point []int64) ([]int64, error) {
	if err := t.checkPointLen(point); err != nil {
		return nil, err
	}
	coords := make([]int64, len(point))
	for i, d := range t.schema.Dimensions {
		if point[i] < d.DomainLow || point[i] > d.DomainHigh {
			return nil, status.New(status.CategoryQueryError, fmt.Sprintf("tilecoords: point[%d]=%d out of domain [%d,%d]", i, point[i], d.DomainLow, d.DomainHigh))
		}
		coords[i] = (point[i] - d.DomainLow) / d.TileExtent
	}
	return coords, nil
}

// CellCoordsInTile maps a point in the domain to its local coordinates
// within its tile (spec.md S:4.5's c_i formula).
func (t *Translator) CellCoordsInTile(point []int64) ([]int64, error) {
	if err := t.checkPointLen(point); err != nil {
		return nil, err
	}
	local := make([]int64, len(point))
	for i, d := range t.schema.Dimensions {
		if point[i] < d.DomainLow || point[i] > d.DomainHigh {
			return nil, status.New(status.CategoryQueryError, fmt.Sprintf("tilecoords: point[%d]=%d out of domain [%d,%d]", i, point[i], d.DomainLow, d.DomainHigh))
		}
		local[i] = (point[i] - d.DomainLow) % d.TileExtent
	}
	return local, nil
}

// GlobalTileID linearises per-dimension tile coordinates into a single
// tile identifier, using order to pick which dimension is
// most-significant: ROW_MAJOR treats dimension 0 as most-significant,
// COL_MAJOR treats dimension D-1 as most-significant (spec.md S:4.5).
func (t *Translator) GlobalTileID(tileCoords []int64, order datatype.Layout) (int64, error) {
	counts := t.TileCounts()
	return linearize(tileCoords, counts, order)
}

// CellIndexInTile linearises local cell coordinates within a tile using
// order, over the tile's per-dimension extents.
func (t *Translator) CellIndexInTile(localCoords []int64, order datatype.Layout) (int64, error) {
	extents := make([]int64, len(t.schema.Dimensions))
	for i, d := range t.schema.Dimensions {
		extents[i] = d.TileExtent
	}
	return linearize(localCoords, extents, order)
}

// linearize computes the row- or column-major linear index of coords
// within a box of the given per-dimension sizes, via Horner's rule:
// starting from the most-significant dimension's coordinate, repeatedly
// multiply by the next dimension's size and add its coordinate.
func linearize(coords, sizes []int64, order datatype.Layout) (int64, error) {
	if len(coords) != len(sizes) {
		return 0, status.New(status.CategoryQueryError, "tilecoords: coordinate/size dimensionality mismatch")
	}
	if len(coords) == 0 {
		return 0, nil
	}
	switch order {
	case datatype.RowMajor:
		// Dimension 0 is most-significant.
		idx := coords[0]
		for i := 1; i < len(coords); i++ {
			idx = idx*sizes[i] + coords[i]
		}
		return idx, nil
	case datatype.ColMajor:
		// Dimension D-1 is most-significant.
		idx := coords[len(coords)-1]
		for i := len(coords) - 2; i >= 0; i-- {
			idx = idx*sizes[i] + coords[i]
		}
		return idx, nil
	default:
		return 0, status.New(status.CategoryQueryError, fmt.Sprintf("tilecoords: %s is not a valid linearisation order", order))
	}
}

// IntersectingTileRange returns, for each dimension, the inclusive range
// of tile indices whose tiles intersect the query subarray.
func (t *Translator) IntersectingTileRange(subarray []Range) ([]Range, error) {
	if len(subarray) != len(t.schema.Dimensions) {
		return nil, status.New(status.CategoryQueryError, "tilecoords: subarray dimensionality mismatch")
	}
	out := make([]Range, len(subarray))
	for i, d := range t.schema.Dimensions {
		r := subarray[i]
		if r.Low < d.DomainLow {
			r.Low = d.DomainLow
		}
		if r.High > d.DomainHigh {
			r.High = d.DomainHigh
		}
		if r.Low > r.High {
			return nil, status.New(status.CategoryQueryError, fmt.Sprintf("tilecoords: subarray dimension %d is empty after clamping to domain", i))
		}
		out[i] = Range{
			Low:  (r.Low - d.DomainLow) / d.TileExtent,
			High: (r.High - d.DomainLow) / d.TileExtent,
		}
	}
	return out, nil
}

// IntersectingTiles enumerates the rectangular product of
// IntersectingTileRange's per-dimension tile index ranges, in the
// schema's tile order.
func (t *Translator) IntersectingTiles(subarray []Range) ([][]int64, error) {
	return t.IntersectingTilesInOrder(subarray, t.schema.TileOrder)
}

// IntersectingTilesInOrder is IntersectingTiles but lets the caller pick
// the traversal order independently of the schema's stored tile order —
// a query may request its results in a different layout than the
// on-disk one (spec.md S:8 scenario 2's col-major query over a
// row-major-stored array).
func (t *Translator) IntersectingTilesInOrder(subarray []Range, order datatype.Layout) ([][]int64, error) {
	tileRanges, err := t.IntersectingTileRange(subarray)
	if err != nil {
		return nil, err
	}
	return product(tileRanges, order), nil
}

// CellsInTile enumerates every local cell coordinate of one tile (i.e.
// the product of [0, extent_i) for each dimension) in the given order.
func (t *Translator) CellsInTile(order datatype.Layout) [][]int64 {
	ranges := make([]Range, len(t.schema.Dimensions))
	for i, d := range t.schema.Dimensions {
		ranges[i] = Range{Low: 0, High: d.TileExtent - 1}
	}
	return product(ranges, order)
}

// product enumerates every point of the rectangular box described by
// ranges, in the traversal order named by order: ROW_MAJOR varies the
// last dimension fastest (dimension 0 most-significant); COL_MAJOR
// varies the first dimension fastest.
func product(ranges []Range, order datatype.Layout) [][]int64 {
	n := 1
	for _, r := range ranges {
		n *= int(r.High-r.Low) + 1
	}
	out := make([][]int64, 0, n)

	point := make([]int64, len(ranges))
	for i, r := range ranges {
		point[i] = r.Low
	}

	// ROW_MAJOR: dimension 0 is most-significant (slowest-varying),
	// matching linearize's row-major formula where the last dimension
	// has stride 1. COL_MAJOR reverses which end is most-significant.
	// dir is the step from the fastest-varying dimension toward the
	// slowest when the odometer carries.
	fastest, slowest, dir := len(ranges)-1, 0, -1
	if order == datatype.ColMajor {
		fastest, slowest, dir = 0, len(ranges)-1, 1
	}

	for {
		cp := make([]int64, len(point))
		copy(cp, point)
		out = append(out, cp)

		// Increment like an odometer, advancing the fastest-varying
		// dimension first and carrying into slower ones.
		i := fastest
		for {
			point[i]++
			if point[i] <= ranges[i].High {
				break
			}
			point[i] = ranges[i].Low
			if i == slowest {
				return out
			}
			i += dir
		}
	}
}

// PointsInSubarray enumerates every domain coordinate within subarray (after
// clamping each dimension to the schema's domain) in the given order. It is
// the cell-level counterpart of IntersectingTilesInOrder, used by the array
// package to walk a write or read request one coordinate at a time.
func (t *Translator) PointsInSubarray(subarray []Range, order datatype.Layout) ([][]int64, error) {
	if len(subarray) != len(t.schema.Dimensions) {
		return nil, status.New(status.CategoryQueryError, "tilecoords: subarray dimensionality mismatch")
	}
	clamped := make([]Range, len(subarray))
	for i, d := range t.schema.Dimensions {
		r := subarray[i]
		if r.Low < d.DomainLow {
			r.Low = d.DomainLow
		}
		if r.High > d.DomainHigh {
			r.High = d.DomainHigh
		}
		if r.Low > r.High {
			return nil, status.New(status.CategoryQueryError, fmt.Sprintf("tilecoords: subarray dimension %d is empty after clamping to domain", i))
		}
		clamped[i] = r
	}
	return product(clamped, order), nil
}

// GlobalCellID linearises point over the full domain (not a single tile),
// using order to pick the most-significant dimension. SPARSE reads use this
// to sort cells gathered from across tiles/fragments into a single
// coordinate-sorted sequence (spec.md S:8 scenario 3).
func (t *Translator) GlobalCellID(point []int64, order datatype.Layout) (int64, error) {
	if err := t.checkPointLen(point); err != nil {
		return 0, err
	}
	sizes := make([]int64, len(t.schema.Dimensions))
	rel := make([]int64, len(point))
	for i, d := range t.schema.Dimensions {
		if point[i] < d.DomainLow || point[i] > d.DomainHigh {
			return 0, status.New(status.CategoryQueryError, fmt.Sprintf("tilecoords: point[%d]=%d out of domain [%d,%d]", i, point[i], d.DomainLow, d.DomainHigh))
		}
		sizes[i] = d.DomainSize()
		rel[i] = point[i] - d.DomainLow
	}
	return linearize(rel, sizes, order)
}

func (t *Translator) checkPointLen(point []int64) error {
	if len(point) != len(t.schema.Dimensions) {
		return status.New(status.CategoryQueryError, fmt.Sprintf("tilecoords: point has %d coordinates, schema has %d dimensions", len(point), len(t.schema.Dimensions)))
	}
	return nil
}
