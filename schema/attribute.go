package schema

import (
	"fmt"

	"github.com/hupe1980/tilestore/datatype"
	"github.com/hupe1980/tilestore/status"
)

// ReservedCoordsName is the sentinel attribute name reserved for the
// coordinate attribute of sparse arrays; user attributes may not use it.
const ReservedCoordsName = "__coords"

// Attribute is a named per-cell field.
type Attribute struct {
	Name       string
	Datatype   datatype.Datatype
	CellValNum uint32 // >= 1, or datatype.VarLen
	Compressor datatype.Compressor
	Level      int32
}

// NewAttribute constructs a fixed cell-value-count Attribute with no
// compression.
func NewAttribute(name string, dt datatype.Datatype, cellValNum uint32) Attribute {
	return Attribute{
		Name:       name,
		Datatype:   dt,
		CellValNum: cellValNum,
		Compressor: datatype.CompressorNone,
	}
}

// NewVarLenAttribute constructs a variable-length Attribute.
func NewVarLenAttribute(name string, dt datatype.Datatype) Attribute {
	return NewAttribute(name, dt, datatype.VarLen)
}

// WithCompressor returns a copy of a with the given compressor/level.
func (a Attribute) WithCompressor(c datatype.Compressor, level int32) Attribute {
	a.Compressor = c
	a.Level = level
	return a
}

// IsVarLen reports whether a has a variable cell value count.
func (a Attribute) IsVarLen() bool {
	return a.CellValNum == datatype.VarLen
}

func (a Attribute) validate() error {
	if a.Name == "" {
		return status.New(status.CategorySchemaError, "attribute: name must not be empty")
	}
	if a.Name == ReservedCoordsName {
		return status.New(status.CategorySchemaError, fmt.Sprintf("attribute: %q is reserved for coordinate data", ReservedCoordsName))
	}
	if !a.Datatype.Valid() {
		return status.New(status.CategorySchemaError, fmt.Sprintf("attribute %q: invalid datatype", a.Name))
	}
	if a.CellValNum == 0 {
		return status.New(status.CategorySchemaError, fmt.Sprintf("attribute %q: cell value count must be >= 1 or VarLen", a.Name))
	}
	if !a.Compressor.Valid() {
		return status.New(status.CategorySchemaError, fmt.Sprintf("attribute %q: invalid compressor", a.Name))
	}
	return nil
}
