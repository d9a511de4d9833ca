// Package datatype defines the small, value-typed descriptor enums shared
// by the schema, tile-coordinate, and array layers: cell Datatype,
// Compressor, tile/cell Layout, and ArrayType.
package datatype

import "fmt"

// Datatype is the type of a single attribute or dimension value.
type Datatype uint8

const (
	INT8 Datatype = iota
	UINT8
	INT16
	UINT16
	INT32
	UINT32
	INT64
	UINT64
	FLOAT32
	FLOAT64
	CHAR
)

// String returns the datatype's canonical name.
func (d Datatype) String() string {
	switch d {
	case INT8:
		return "INT8"
	case UINT8:
		return "UINT8"
	case INT16:
		return "INT16"
	case UINT16:
		return "UINT16"
	case INT32:
		return "INT32"
	case UINT32:
		return "UINT32"
	case INT64:
		return "INT64"
	case UINT64:
		return "UINT64"
	case FLOAT32:
		return "FLOAT32"
	case FLOAT64:
		return "FLOAT64"
	case CHAR:
		return "CHAR"
	default:
		return fmt.Sprintf("Datatype(%d)", uint8(d))
	}
}

// ByteWidth returns the fixed on-disk width of a single value of this
// datatype, in bytes. CHAR returns 1; variable-length CHAR cells store
// multiple such bytes per cell via the attribute's cell value count.
func (d Datatype) ByteWidth() int {
	switch d {
	case INT8, UINT8, CHAR:
		return 1
	case INT16, UINT16:
		return 2
	case INT32, UINT32, FLOAT32:
		return 4
	case INT64, UINT64, FLOAT64:
		return 8
	default:
		return 0
	}
}

// IsIntegral reports whether the datatype is a fixed-width signed or
// unsigned integer -- the set DENSE dimensions are restricted to.
func (d Datatype) IsIntegral() bool {
	switch d {
	case INT8, UINT8, INT16, UINT16, INT32, UINT32, INT64, UINT64:
		return true
	default:
		return false
	}
}

// Valid reports whether d is one of the defined datatype constants.
func (d Datatype) Valid() bool {
	return d <= CHAR
}

// Compressor names a tile compression codec. CompressorNone disables
// compression for the tile it's attached to.
type Compressor uint8

const (
	CompressorNone Compressor = iota
	CompressorZstd
	CompressorLZ4
)

// String returns the compressor's registry name (see the codec package).
func (c Compressor) String() string {
	switch c {
	case CompressorNone:
		return "none"
	case CompressorZstd:
		return "zstd"
	case CompressorLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compressor(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the defined compressor constants.
func (c Compressor) Valid() bool {
	return c <= CompressorLZ4
}

// Layout is a traversal order, applied separately to tiles within the
// domain and to cells within a tile.
type Layout uint8

const (
	RowMajor Layout = iota
	ColMajor
	GlobalOrder
	Unordered
)

// String returns the layout's canonical name.
func (l Layout) String() string {
	switch l {
	case RowMajor:
		return "ROW_MAJOR"
	case ColMajor:
		return "COL_MAJOR"
	case GlobalOrder:
		return "GLOBAL_ORDER"
	case Unordered:
		return "UNORDERED"
	default:
		return fmt.Sprintf("Layout(%d)", uint8(l))
	}
}

// ValidForCellOrTileOrder reports whether l may be used as a schema's cell
// or tile order. GLOBAL_ORDER is a write-time hint only (spec.md S:4.5,
// S:9) and UNORDERED is meaningful only for sparse coordinate writes, not
// as a stored traversal order; neither is a legal cell/tile order.
func (l Layout) ValidForCellOrTileOrder() bool {
	return l == RowMajor || l == ColMajor
}

// ArrayType distinguishes the two array storage strategies.
type ArrayType uint8

const (
	Dense ArrayType = iota
	Sparse
)

// String returns the array type's canonical name.
func (a ArrayType) String() string {
	switch a {
	case Dense:
		return "DENSE"
	case Sparse:
		return "SPARSE"
	default:
		return fmt.Sprintf("ArrayType(%d)", uint8(a))
	}
}

// VarLen is the cell value count sentinel marking a variable-length
// attribute (as opposed to a fixed value count >= 1).
const VarLen uint32 = 1<<32 - 1
