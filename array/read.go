package array

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/tilestore/codec"
	"github.com/hupe1980/tilestore/datatype"
	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/tilecoords"
)

// ReadBuffer is one output buffer a Read call fills: Buf is caller-owned
// capacity, and Read sets Filled to the number of bytes it wrote this
// submission (always a multiple of the attribute's cell size). Name
// coordsAttrName ("__coords") requests the matching cells' coordinates,
// interleaved in dimension order, as raw little-endian int64s -- valid
// only for SPARSE reads.
type ReadBuffer struct {
	Name   string
	Buf    []byte
	Filled int
}

// Read enumerates the tiles intersecting subarray in tile order, range-reads
// and decompresses each one needed to satisfy buffers, and copies the
// subarray's cells into buffers in the requested cell order (spec.md
// S:4.6's read path). If a buffer runs out of room, Read stops, marks q
// INCOMPLETE, and remembers where to resume; calling Read again with the
// same q and subarray continues from that point. Once q is submitted, any
// error other than running out of buffer space marks q FAILED; a mode
// check or submit error is returned with q's status unchanged.
func (a *Array) Read(ctx context.Context, q *Query, subarray []tilecoords.Range, order datatype.Layout, buffers []*ReadBuffer) error {
	if err := a.requireReadMode(); err != nil {
		return err
	}
	if err := q.submit(); err != nil {
		return err
	}
	if subarray == nil {
		subarray = a.subarray
	}
	for _, b := range buffers {
		b.Filled = 0
	}

	var err error
	if a.schema.ArrayType == datatype.Dense {
		err = a.readDense(ctx, q, subarray, order, buffers)
	} else {
		err = a.readSparse(ctx, q, subarray, order, buffers)
	}
	if err != nil {
		q.markFailed()
		return err
	}
	return nil
}

// tileLoader caches decompressed tile bytes per (fragment id, attribute,
// tile id) and each fragment's decoded offsets index, across the calls a
// single Read makes.
type tileLoader struct {
	a       *Array
	offsets map[string]*fragmentOffsets
	tiles   map[string][]byte
}

func newTileLoader(a *Array) *tileLoader {
	return &tileLoader{a: a, offsets: map[string]*fragmentOffsets{}, tiles: map[string][]byte{}}
}

func (l *tileLoader) fragmentOffsets(ctx context.Context, fr fragRef) (*fragmentOffsets, error) {
	if o, ok := l.offsets[fr.id]; ok {
		return o, nil
	}
	data, err := l.a.vfs.ReadAll(ctx, offsetsFile(fr.dir))
	if err != nil {
		return nil, err
	}
	o, err := decodeFragmentOffsets(data)
	if err != nil {
		return nil, err
	}
	l.offsets[fr.id] = o
	return o, nil
}

// tile returns attr's decompressed bytes for tileID, searching frags in
// the order given (DENSE callers pass newest-first so a more recent
// fragment's copy of a tile wins; SPARSE callers never ask for the same
// tile twice from more than one fragment, since sparse cells from every
// fragment are merged instead). ok is false if no fragment in frags holds
// the tile.
func (l *tileLoader) tile(ctx context.Context, frags []fragRef, attr string, tileID int64, compressor datatype.Compressor) ([]byte, bool, error) {
	for _, fr := range frags {
		offs, err := l.fragmentOffsets(ctx, fr)
		if err != nil {
			return nil, false, err
		}
		e, ok := offs.tile(attr, tileID)
		if !ok {
			continue
		}
		key := fr.id + "/" + attr + "/" + fmt.Sprint(tileID)
		if cached, ok := l.tiles[key]; ok {
			return cached, true, nil
		}
		raw := make([]byte, e.Length)
		if e.Length > 0 {
			if err := l.a.vfs.Read(ctx, tileFileFor(fr.dir, attr), int64(e.Offset), raw, int64(e.Length)); err != nil {
				return nil, false, err
			}
		}
		comp, err := codec.ForCompressor(compressor)
		if err != nil {
			return nil, false, err
		}
		dec, err := comp.Decompress(nil, raw)
		if err != nil {
			return nil, false, status.Wrap(status.CategoryIOError, "array: decompress tile", err)
		}
		l.tiles[key] = dec
		return dec, true, nil
	}
	return nil, false, nil
}

// readDense walks subarray's cells in order starting at q's resume
// position, resolving each cell's tile from the newest fragment that
// holds it.
func (a *Array) readDense(ctx context.Context, q *Query, subarray []tilecoords.Range, order datatype.Layout, buffers []*ReadBuffer) error {
	points, err := a.tr.PointsInSubarray(subarray, order)
	if err != nil {
		return err
	}

	frags, err := fragmentsDescending(ctx, a.vfs, a.arrayURI)
	if err != nil {
		return err
	}

	type bufCtx struct {
		buf        *ReadBuffer
		attr       string
		compressor datatype.Compressor
		size       int
	}
	bctxs := make([]bufCtx, 0, len(buffers))
	for _, b := range buffers {
		attrSchema, ok := a.schema.Attribute(b.Name)
		if !ok {
			return status.New(status.CategorySchemaError, fmt.Sprintf("array: unknown attribute %q", b.Name))
		}
		size, err := cellSize(attrSchema)
		if err != nil {
			return err
		}
		bctxs = append(bctxs, bufCtx{buf: b, attr: b.Name, compressor: attrSchema.Compressor, size: size})
	}

	loader := newTileLoader(a)

	for i := q.resumeCellIdx; i < len(points); i++ {
		point := points[i]

		full := false
		for _, bc := range bctxs {
			if bc.buf.Filled+bc.size > len(bc.buf.Buf) {
				full = true
				break
			}
		}
		if full {
			q.markIncomplete(0, i)
			return nil
		}

		tileCoords, err := a.tr.TileCoords(point)
		if err != nil {
			return err
		}
		localCoords, err := a.tr.CellCoordsInTile(point)
		if err != nil {
			return err
		}
		tileID, err := a.tr.GlobalTileID(tileCoords, a.schema.TileOrder)
		if err != nil {
			return err
		}
		cellIdx, err := a.tr.CellIndexInTile(localCoords, a.schema.CellOrder)
		if err != nil {
			return err
		}

		for _, bc := range bctxs {
			data, ok, err := loader.tile(ctx, frags, bc.attr, tileID, bc.compressor)
			if err != nil {
				return err
			}
			if !ok {
				return status.New(status.CategoryQueryError, fmt.Sprintf("array: no fragment holds tile %d of attribute %q", tileID, bc.attr))
			}
			off := cellIdx * int64(bc.size)
			copy(bc.buf.Buf[bc.buf.Filled:bc.buf.Filled+bc.size], data[off:off+int64(bc.size)])
			bc.buf.Filled += bc.size
		}
	}

	q.markCompleted()
	return nil
}

// readSparse gathers every cell from every fragment whose tile intersects
// subarray, sorts the merged set into a single coordinate order, and
// paginates from q's resume position -- duplicates across and within
// fragments are preserved (spec.md S:8 scenario 3).
func (a *Array) readSparse(ctx context.Context, q *Query, subarray []tilecoords.Range, order datatype.Layout, buffers []*ReadBuffer) error {
	tileCoordsList, err := a.tr.IntersectingTiles(subarray)
	if err != nil {
		return err
	}
	tileIDs := make([]int64, len(tileCoordsList))
	for i, tc := range tileCoordsList {
		id, err := a.tr.GlobalTileID(tc, a.schema.TileOrder)
		if err != nil {
			return err
		}
		tileIDs[i] = id
	}

	frags, err := fragments(ctx, a.vfs, a.arrayURI)
	if err != nil {
		return err
	}

	loader := newTileLoader(a)
	coordsComp := a.schema.Dimensions[0].Compressor
	d := len(a.schema.Dimensions)

	type cell struct {
		point []int64
		attrs map[string][]byte
	}
	var cells []cell

	for _, fr := range frags {
		offs, err := loader.fragmentOffsets(ctx, fr)
		if err != nil {
			return err
		}

		// presence prunes tileIDs down to the ones this fragment actually
		// wrote, so no tile read is issued for a tile it does not hold.
		presence := tilecoords.NewPresenceIndex()
		for _, e := range offs.tiles(coordsAttrName) {
			presence.Mark(e.TileID)
		}

		for _, tileID := range presence.FilterCandidates(tileIDs) {
			coordsData, ok, err := loader.tile(ctx, []fragRef{fr}, coordsAttrName, tileID, coordsComp)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			entry, _ := offs.tile(coordsAttrName, tileID)
			count := int(entry.CellCount)

			attrData := make(map[string][]byte, len(a.schema.Attributes))
			attrSize := make(map[string]int, len(a.schema.Attributes))
			for _, attrSchema := range a.schema.Attributes {
				size, err := cellSize(attrSchema)
				if err != nil {
					return err
				}
				attrSize[attrSchema.Name] = size
				data, ok, err := loader.tile(ctx, []fragRef{fr}, attrSchema.Name, tileID, attrSchema.Compressor)
				if err != nil {
					return err
				}
				if ok {
					attrData[attrSchema.Name] = data
				}
			}

			for j := 0; j < count; j++ {
				point := decodeInt64s(coordsData[j*d*8:(j+1)*d*8], d)
				if !withinSubarray(point, subarray) {
					continue
				}
				c := cell{point: point, attrs: make(map[string][]byte, len(attrData))}
				for name, data := range attrData {
					size := attrSize[name]
					c.attrs[name] = data[j*size : (j+1)*size]
				}
				cells = append(cells, c)
			}
		}
	}

	type keyedCell struct {
		key int64
		c   cell
	}
	keyed := make([]keyedCell, len(cells))
	for i, c := range cells {
		key, err := a.tr.GlobalCellID(c.point, order)
		if err != nil {
			return err
		}
		keyed[i] = keyedCell{key: key, c: c}
	}
	sort.SliceStable(keyed, func(i, j int) bool { return keyed[i].key < keyed[j].key })

	type bufCtx struct {
		buf  *ReadBuffer
		name string
		size int
	}
	bctxs := make([]bufCtx, 0, len(buffers))
	for _, b := range buffers {
		if b.Name == coordsAttrName {
			bctxs = append(bctxs, bufCtx{buf: b, name: coordsAttrName, size: d * 8})
			continue
		}
		attrSchema, ok := a.schema.Attribute(b.Name)
		if !ok {
			return status.New(status.CategorySchemaError, fmt.Sprintf("array: unknown attribute %q", b.Name))
		}
		size, err := cellSize(attrSchema)
		if err != nil {
			return err
		}
		bctxs = append(bctxs, bufCtx{buf: b, name: b.Name, size: size})
	}

	for i := q.resumeCellIdx; i < len(keyed); i++ {
		full := false
		for _, bc := range bctxs {
			if bc.buf.Filled+bc.size > len(bc.buf.Buf) {
				full = true
				break
			}
		}
		if full {
			q.markIncomplete(0, i)
			return nil
		}

		c := keyed[i].c
		for _, bc := range bctxs {
			var src []byte
			if bc.name == coordsAttrName {
				src = encodeInt64s(c.point)
			} else {
				src = c.attrs[bc.name]
			}
			copy(bc.buf.Buf[bc.buf.Filled:bc.buf.Filled+bc.size], src)
			bc.buf.Filled += bc.size
		}
	}

	q.markCompleted()
	return nil
}

func withinSubarray(point []int64, subarray []tilecoords.Range) bool {
	for i, r := range subarray {
		if point[i] < r.Low || point[i] > r.High {
			return false
		}
	}
	return true
}

func decodeInt64s(b []byte, n int) []int64 {
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		var u uint64
		for k := 0; k < 8; k++ {
			u |= uint64(b[i*8+k]) << (8 * k)
		}
		out[i] = int64(u)
	}
	return out
}

func encodeInt64s(vals []int64) []byte {
	out := make([]byte, len(vals)*8)
	for i, v := range vals {
		u := uint64(v)
		for k := 0; k < 8; k++ {
			out[i*8+k] = byte(u >> (8 * k))
		}
	}
	return out
}
