package schema

import (
	"fmt"

	"github.com/hupe1980/tilestore/datatype"
	"github.com/hupe1980/tilestore/status"
)

// Dimension is a named coordinate axis with an inclusive domain and a
// tile extent. Domain bounds and the extent are stored as the raw bit
// pattern of an int64 regardless of Datatype's actual byte width,
// mirroring the on-disk format's "always 8 bytes, exact bit pattern"
// rule (spec.md S:4.4) so encode/decode never needs per-width branches.
type Dimension struct {
	Name       string
	Datatype   datatype.Datatype
	DomainLow  int64
	DomainHigh int64
	TileExtent int64
	Compressor datatype.Compressor
	Level      int32
}

// NewDimension constructs a Dimension. It does not validate domain/extent
// divisibility; that belongs to ArraySchema.Check, which has the
// array-type context (only DENSE enforces divisibility).
func NewDimension(name string, dt datatype.Datatype, low, high, extent int64) Dimension {
	return Dimension{
		Name:       name,
		Datatype:   dt,
		DomainLow:  low,
		DomainHigh: high,
		TileExtent: extent,
		Compressor: datatype.CompressorNone,
	}
}

// WithCompressor returns a copy of d with the given compressor/level,
// used for coordinate tiles of sparse dimensions.
func (d Dimension) WithCompressor(c datatype.Compressor, level int32) Dimension {
	d.Compressor = c
	d.Level = level
	return d
}

// DomainSize returns high - low + 1, the number of distinct coordinate
// values along this dimension.
func (d Dimension) DomainSize() int64 {
	return d.DomainHigh - d.DomainLow + 1
}

// TileCount returns the number of tiles spanning this dimension's
// domain. It is only meaningful once ArraySchema.Check has confirmed
// DomainSize is evenly divisible by TileExtent.
func (d Dimension) TileCount() int64 {
	return d.DomainSize() / d.TileExtent
}

func (d Dimension) validate() error {
	if d.Name == "" {
		return status.New(status.CategorySchemaError, "dimension: name must not be empty")
	}
	if !d.Datatype.Valid() {
		return status.New(status.CategorySchemaError, fmt.Sprintf("dimension %q: invalid datatype", d.Name))
	}
	if d.DomainHigh < d.DomainLow {
		return status.New(status.CategorySchemaError, fmt.Sprintf("dimension %q: domain high < low", d.Name))
	}
	if d.TileExtent <= 0 {
		return status.New(status.CategorySchemaError, fmt.Sprintf("dimension %q: tile extent must be > 0", d.Name))
	}
	if !d.Compressor.Valid() {
		return status.New(status.CategorySchemaError, fmt.Sprintf("dimension %q: invalid compressor", d.Name))
	}
	return nil
}
