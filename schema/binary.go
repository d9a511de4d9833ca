package schema

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/tilestore/datatype"
	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
)

// schemaFileName is the on-disk blob name within an array directory
// (spec.md S:6).
const schemaFileName = "__array_schema"

// schemaVersion is the current on-disk format version (spec.md S:4.4).
const schemaVersion uint32 = 1

// Encode serialises s into its versioned binary form: a fixed header
// followed by each dimension then each attribute, little-endian
// throughout, matching spec.md S:4.4 byte-for-byte.
func Encode(s *ArraySchema) []byte {
	buf := make([]byte, 0, 64+32*(len(s.Dimensions)+len(s.Attributes)))

	buf = binary.LittleEndian.AppendUint32(buf, schemaVersion)
	buf = append(buf, byte(s.ArrayType))
	buf = binary.LittleEndian.AppendUint64(buf, s.Capacity)
	buf = append(buf, byte(s.CellOrder), byte(s.TileOrder))

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.Dimensions)))
	for _, d := range s.Dimensions {
		buf = encodeDimension(buf, d)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.Attributes)))
	for _, a := range s.Attributes {
		buf = encodeAttribute(buf, a)
	}

	return buf
}

func encodeDimension(buf []byte, d Dimension) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(d.Name)))
	buf = append(buf, d.Name...)
	buf = append(buf, byte(d.Datatype))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.DomainLow))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.DomainHigh))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.TileExtent))
	buf = append(buf, byte(d.Compressor))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(d.Level))
	return buf
}

func encodeAttribute(buf []byte, a Attribute) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(a.Name)))
	buf = append(buf, a.Name...)
	buf = append(buf, byte(a.Datatype))
	buf = binary.LittleEndian.AppendUint32(buf, a.CellValNum)
	buf = append(buf, byte(a.Compressor))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(a.Level))
	return buf
}

// Decode parses the binary form produced by Encode. arrayURI is not part
// of the encoded bytes (the schema file's own location supplies it), so
// callers pass it through.
func Decode(arrayURI uri.URI, b []byte) (*ArraySchema, error) {
	r := &reader{buf: b}

	version := r.uint32()
	if version != schemaVersion {
		return nil, status.New(status.CategorySchemaError, fmt.Sprintf("array schema: unsupported on-disk version %d", version))
	}

	s := New(arrayURI, datatype.ArrayType(r.byte()))
	s.Capacity = r.uint64()
	s.CellOrder = datatype.Layout(r.byte())
	s.TileOrder = datatype.Layout(r.byte())

	dimCount := r.uint32()
	s.Dimensions = make([]Dimension, 0, dimCount)
	for i := uint32(0); i < dimCount; i++ {
		s.Dimensions = append(s.Dimensions, r.dimension())
	}

	attrCount := r.uint32()
	s.Attributes = make([]Attribute, 0, attrCount)
	for i := uint32(0); i < attrCount; i++ {
		s.Attributes = append(s.Attributes, r.attribute())
	}

	if r.err != nil {
		return nil, status.Wrap(status.CategorySchemaError, "array schema: decode", r.err)
	}
	return s, nil
}

// reader is a tiny cursor over an encoded schema blob. It records the
// first short-read it hits rather than panicking, so Decode can surface
// a single wrapped status.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("unexpected end of schema blob at offset %d (need %d bytes)", r.pos, n)
		return false
	}
	return true
}

func (r *reader) byte() byte {
	if !r.need(1) {
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *reader) uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) uint64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) dimension() Dimension {
	nameLen := r.uint32()
	name := string(r.bytes(int(nameLen)))
	dt := datatype.Datatype(r.byte())
	low := int64(r.uint64())
	high := int64(r.uint64())
	extent := int64(r.uint64())
	compressor := datatype.Compressor(r.byte())
	level := int32(r.uint32())
	return Dimension{
		Name: name, Datatype: dt,
		DomainLow: low, DomainHigh: high, TileExtent: extent,
		Compressor: compressor, Level: level,
	}
}

func (r *reader) attribute() Attribute {
	nameLen := r.uint32()
	name := string(r.bytes(int(nameLen)))
	dt := datatype.Datatype(r.byte())
	cellValNum := r.uint32()
	compressor := datatype.Compressor(r.byte())
	level := int32(r.uint32())
	return Attribute{
		Name: name, Datatype: dt, CellValNum: cellValNum,
		Compressor: compressor, Level: level,
	}
}

// Save persists s to <arrayURI>/__array_schema, writing to a temporary
// sibling file first and renaming it into place so a crash mid-write
// never leaves a corrupt schema blob readable by a concurrent opener —
// the same atomic write-temp-then-rename discipline the teacher's
// manifest store used for its own metadata file.
func Save(ctx context.Context, v *vfs.VFS, s *ArraySchema) error {
	if err := s.Check(); err != nil {
		return err
	}

	final := s.ArrayURI.Join(schemaFileName)
	tmp := s.ArrayURI.Join(schemaFileName + ".tmp")

	if err := v.WriteAll(ctx, tmp, Encode(s)); err != nil {
		return status.Wrap(status.CategorySchemaError, "array schema: write temp file", err)
	}
	if err := v.Move(ctx, tmp, final, true); err != nil {
		return status.Wrap(status.CategorySchemaError, "array schema: rename into place", err)
	}
	return nil
}

// Load reads and decodes <arrayURI>/__array_schema.
func Load(ctx context.Context, v *vfs.VFS, arrayURI uri.URI) (*ArraySchema, error) {
	data, err := v.ReadAll(ctx, arrayURI.Join(schemaFileName))
	if err != nil {
		return nil, status.Wrap(status.CategorySchemaError, "array schema: read", err)
	}
	return Decode(arrayURI, data)
}
