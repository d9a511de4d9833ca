// Package schema implements the array schema and dimension/attribute
// descriptors of spec.md S:4.4: the data model every tile read and write
// must agree on, plus its versioned binary on-disk form.
package schema

import (
	"fmt"

	"github.com/hupe1980/tilestore/datatype"
	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
)

// DefaultCapacity is the default sparse tile cell capacity.
const DefaultCapacity = 10000

// ArraySchema composes an array's dimensions, attributes, and tiling
// parameters. ArraySchema exclusively owns its Dimensions and
// Attributes; callers must not mutate a schema an open Array still
// references (spec.md S:5).
type ArraySchema struct {
	ArrayURI   uri.URI
	ArrayType  datatype.ArrayType
	Dimensions []Dimension
	Attributes []Attribute
	Capacity   uint64
	TileOrder  datatype.Layout
	CellOrder  datatype.Layout
}

// New constructs an empty ArraySchema for arrayURI with sensible
// defaults (ROW_MAJOR tile/cell order, DefaultCapacity). Call
// AddDimension/AddAttribute to populate it, then Check before use.
func New(arrayURI uri.URI, arrayType datatype.ArrayType) *ArraySchema {
	return &ArraySchema{
		ArrayURI:  arrayURI,
		ArrayType: arrayType,
		Capacity:  DefaultCapacity,
		TileOrder: datatype.RowMajor,
		CellOrder: datatype.RowMajor,
	}
}

// AddDimension appends d to the schema's ordered dimension list.
// Dimension order is significant: it fixes tile/cell linearisation
// (spec.md S:4.5).
func (s *ArraySchema) AddDimension(d Dimension) error {
	if err := d.validate(); err != nil {
		return err
	}
	s.Dimensions = append(s.Dimensions, d)
	return nil
}

// AddAttribute appends a to the schema's ordered attribute list.
// Insertion order is preserved.
func (s *ArraySchema) AddAttribute(a Attribute) error {
	if err := a.validate(); err != nil {
		return err
	}
	s.Attributes = append(s.Attributes, a)
	return nil
}

// SetCapacity sets the sparse tile cell capacity. Save writes it for every
// schema; DENSE code paths do not use it (callers typically leave it at
// DefaultCapacity for DENSE).
func (s *ArraySchema) SetCapacity(capacity uint64) { s.Capacity = capacity }

// SetCellOrder sets the within-tile cell traversal order.
func (s *ArraySchema) SetCellOrder(l datatype.Layout) { s.CellOrder = l }

// SetTileOrder sets the domain-wide tile traversal order.
func (s *ArraySchema) SetTileOrder(l datatype.Layout) { s.TileOrder = l }

// Dimension looks up a dimension by name.
func (s *ArraySchema) Dimension(name string) (Dimension, bool) {
	for _, d := range s.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Attribute looks up an attribute by name.
func (s *ArraySchema) Attribute(name string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// CellsPerTile returns the number of cells in one tile: the product of
// per-dimension tile extents. Only meaningful for DENSE schemas (sparse
// tiles hold up to Capacity cells, not a fixed count).
func (s *ArraySchema) CellsPerTile() int64 {
	n := int64(1)
	for _, d := range s.Dimensions {
		n *= d.TileExtent
	}
	return n
}

// Check validates every invariant of spec.md S:4.4:
//   - at least one dimension
//   - dimension and attribute names are unique and disjoint
//   - DENSE schemas use a single integral datatype across dimensions and
//     every dimension's domain size divides evenly by its tile extent
//   - sparse schemas have capacity > 0
//   - cell/tile order are valid stored orders (GLOBAL_ORDER and
//     UNORDERED are rejected; GLOBAL_ORDER is a write-time hint only)
func (s *ArraySchema) Check() error {
	if len(s.Dimensions) == 0 {
		return status.New(status.CategorySchemaError, "array schema: at least one dimension is required")
	}

	seen := make(map[string]struct{}, len(s.Dimensions)+len(s.Attributes))
	for _, d := range s.Dimensions {
		if _, dup := seen[d.Name]; dup {
			return status.New(status.CategorySchemaError, fmt.Sprintf("array schema: duplicate dimension/attribute name %q", d.Name))
		}
		seen[d.Name] = struct{}{}
	}
	for _, a := range s.Attributes {
		if _, dup := seen[a.Name]; dup {
			return status.New(status.CategorySchemaError, fmt.Sprintf("array schema: duplicate dimension/attribute name %q", a.Name))
		}
		seen[a.Name] = struct{}{}
	}

	if s.ArrayType == datatype.Dense {
		for i, d := range s.Dimensions {
			if !d.Datatype.IsIntegral() {
				return status.New(status.CategorySchemaError, fmt.Sprintf("array schema: dense dimension %q must have an integral datatype", d.Name))
			}
			if i > 0 && d.Datatype != s.Dimensions[0].Datatype {
				return status.New(status.CategorySchemaError, fmt.Sprintf("array schema: dense dimension %q has datatype %s, want %s like dimension %q", d.Name, d.Datatype, s.Dimensions[0].Datatype, s.Dimensions[0].Name))
			}
			if d.DomainSize()%d.TileExtent != 0 {
				return status.New(status.CategorySchemaError, fmt.Sprintf("array schema: dimension %q domain size %d not divisible by tile extent %d", d.Name, d.DomainSize(), d.TileExtent))
			}
		}
	}

	if s.ArrayType == datatype.Sparse && s.Capacity == 0 {
		return status.New(status.CategorySchemaError, "array schema: sparse capacity must be > 0")
	}

	if !s.CellOrder.ValidForCellOrTileOrder() {
		return status.New(status.CategorySchemaError, fmt.Sprintf("array schema: invalid cell order %s", s.CellOrder))
	}
	if !s.TileOrder.ValidForCellOrTileOrder() {
		return status.New(status.CategorySchemaError, fmt.Sprintf("array schema: invalid tile order %s", s.TileOrder))
	}

	return nil
}
