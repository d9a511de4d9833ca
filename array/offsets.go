package array

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/tilestore/status"
)

// tileEntry locates one (attribute, tile) pair's compressed bytes within
// its attribute's .tdb file, plus the tile's cell count -- fixed
// (schema.CellsPerTile()) for DENSE; for SPARSE, the number of cells
// written into that spatial tile, which schema.Capacity does not bound.
type tileEntry struct {
	TileID    int64
	Offset    uint64
	Length    uint64
	CellCount uint64
}

// fragmentOffsets is the decoded form of a fragment's __offsets file
// (spec.md S:6): per attribute name (coordsAttrName for the coordinate
// tile), the tiles written for it.
type fragmentOffsets struct {
	entries map[string][]tileEntry
}

func newFragmentOffsets() *fragmentOffsets {
	return &fragmentOffsets{entries: make(map[string][]tileEntry)}
}

func (f *fragmentOffsets) add(attr string, e tileEntry) {
	f.entries[attr] = append(f.entries[attr], e)
}

func (f *fragmentOffsets) tiles(attr string) []tileEntry {
	return f.entries[attr]
}

func (f *fragmentOffsets) tile(attr string, tileID int64) (tileEntry, bool) {
	for _, e := range f.entries[attr] {
		if e.TileID == tileID {
			return e, true
		}
	}
	return tileEntry{}, false
}

const offsetsVersion uint32 = 1

// encodeFragmentOffsets serialises f the same manual little-endian way
// schema/binary.go encodes an ArraySchema: a small fixed header then
// length-prefixed repeated records.
func encodeFragmentOffsets(f *fragmentOffsets) []byte {
	buf := make([]byte, 0, 64+32*len(f.entries))
	buf = binary.LittleEndian.AppendUint32(buf, offsetsVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(f.entries)))
	for attr, tiles := range f.entries {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(attr)))
		buf = append(buf, attr...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tiles)))
		for _, e := range tiles {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(e.TileID))
			buf = binary.LittleEndian.AppendUint64(buf, e.Offset)
			buf = binary.LittleEndian.AppendUint64(buf, e.Length)
			buf = binary.LittleEndian.AppendUint64(buf, e.CellCount)
		}
	}
	return buf
}

func decodeFragmentOffsets(b []byte) (*fragmentOffsets, error) {
	r := &offsetsReader{buf: b}

	version := r.uint32()
	if version != offsetsVersion {
		return nil, status.New(status.CategorySchemaError, fmt.Sprintf("fragment offsets: unsupported version %d", version))
	}

	f := newFragmentOffsets()
	attrCount := r.uint32()
	for i := uint32(0); i < attrCount; i++ {
		nameLen := r.uint32()
		name := string(r.bytes(int(nameLen)))
		tileCount := r.uint32()
		tiles := make([]tileEntry, 0, tileCount)
		for j := uint32(0); j < tileCount; j++ {
			tiles = append(tiles, tileEntry{
				TileID:    int64(r.uint64()),
				Offset:    r.uint64(),
				Length:    r.uint64(),
				CellCount: r.uint64(),
			})
		}
		f.entries[name] = tiles
	}

	if r.err != nil {
		return nil, status.Wrap(status.CategorySchemaError, "fragment offsets: decode", r.err)
	}
	return f, nil
}

type offsetsReader struct {
	buf []byte
	pos int
	err error
}

func (r *offsetsReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("unexpected end of offsets blob at offset %d (need %d bytes)", r.pos, n)
		return false
	}
	return true
}

func (r *offsetsReader) uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *offsetsReader) uint64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *offsetsReader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}
