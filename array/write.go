package array

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/hupe1980/tilestore/codec"
	"github.com/hupe1980/tilestore/datatype"
	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/tilecoords"
)

// Attr is one attribute's caller-supplied cell data for a Write or
// WriteSparse call: Data holds len(cells)*cellSize raw bytes, where
// cellSize is the attribute's datatype byte width times its cell value
// count. Variable-length attributes are not supported by this
// implementation (see DESIGN.md).
type Attr struct {
	Name string
	Data []byte
}

// writeState accumulates a fragment's tiles in memory across one or more
// Write/WriteSparse calls; Array.Close flushes it via finalize. A later
// call that touches the same DENSE tile overwrites only the cells it
// covers, keeping the tile's other cells; SPARSE cells simply accumulate.
type writeState struct {
	schema *schema.ArraySchema

	// denseTiles[attr][tileID] holds that tile's raw, uncompressed cell
	// bytes in the schema's cell order.
	denseTiles map[string]map[int64][]byte

	// sparseCells[tileID] holds every cell written to that tile across
	// calls, unsorted until finalize.
	sparseCells map[int64][]sparseCell
}

type sparseCell struct {
	point []int64
	attrs map[string][]byte
}

func newWriteState(s *schema.ArraySchema) *writeState {
	return &writeState{
		schema:      s,
		denseTiles:  make(map[string]map[int64][]byte),
		sparseCells: make(map[int64][]sparseCell),
	}
}

func cellSize(a schema.Attribute) (int, error) {
	if a.IsVarLen() {
		return 0, status.New(status.CategoryQueryError, fmt.Sprintf("array: attribute %q is variable-length, which this implementation does not support", a.Name))
	}
	return a.Datatype.ByteWidth() * int(a.CellValNum), nil
}

// Write partitions attrs over subarray (whose buffer is laid out in
// order) into the schema's dense tiles and buffers them for the next
// Close (spec.md S:4.6's write path). Write may be called multiple times
// before Close.
func (a *Array) Write(ctx context.Context, subarray []tilecoords.Range, order datatype.Layout, attrs []Attr) error {
	if err := a.requireWriteMode(); err != nil {
		return err
	}
	if a.schema.ArrayType != datatype.Dense {
		return status.New(status.CategoryQueryError, "array: Write is for DENSE arrays; use WriteSparse for SPARSE")
	}

	points, err := a.tr.PointsInSubarray(subarray, order)
	if err != nil {
		return err
	}

	type attrCtx struct {
		attr schema.Attribute
		data []byte
		size int
	}
	ctxs := make([]attrCtx, 0, len(attrs))
	for _, in := range attrs {
		attrSchema, ok := a.schema.Attribute(in.Name)
		if !ok {
			return status.New(status.CategorySchemaError, fmt.Sprintf("array: unknown attribute %q", in.Name))
		}
		size, err := cellSize(attrSchema)
		if err != nil {
			return err
		}
		if len(in.Data) != len(points)*size {
			return status.New(status.CategoryQueryError, fmt.Sprintf("array: attribute %q buffer has %d bytes, expected %d for %d cells", in.Name, len(in.Data), len(points)*size, len(points)))
		}
		if a.wstate.denseTiles[in.Name] == nil {
			a.wstate.denseTiles[in.Name] = make(map[int64][]byte)
		}
		ctxs = append(ctxs, attrCtx{attr: attrSchema, data: in.Data, size: size})
	}

	cellsPerTile := a.schema.CellsPerTile()

	for i, point := range points {
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

		for _, ac := range ctxs {
			buf := a.wstate.denseTiles[ac.attr.Name][tileID]
			if buf == nil {
				buf = make([]byte, cellsPerTile*int64(ac.size))
				a.wstate.denseTiles[ac.attr.Name][tileID] = buf
			}
			off := cellIdx * int64(ac.size)
			copy(buf[off:off+int64(ac.size)], ac.data[i*ac.size:(i+1)*ac.size])
		}
	}

	return nil
}

// WriteSparse writes cellCount cells, whose coordinates are the flattened
// D-tuples in coords (dimension order, row-major over cells), into the
// current fragment. Cells are grouped into tiles by coordinate; within a
// tile they are sorted into the schema's cell order at Close time, which
// is how an UNORDERED write (spec.md S:4.5, S:8 scenario 3) is realised
// -- duplicates are preserved, not deduplicated.
func (a *Array) WriteSparse(ctx context.Context, coords []int64, attrs []Attr) error {
	if err := a.requireWriteMode(); err != nil {
		return err
	}
	if a.schema.ArrayType != datatype.Sparse {
		return status.New(status.CategoryQueryError, "array: WriteSparse is for SPARSE arrays; use Write for DENSE")
	}

	d := len(a.schema.Dimensions)
	if d == 0 || len(coords)%d != 0 {
		return status.New(status.CategoryQueryError, "array: coords length is not a multiple of the dimension count")
	}
	cellCount := len(coords) / d

	type attrCtx struct {
		name string
		data []byte
		size int
	}
	ctxs := make([]attrCtx, 0, len(attrs))
	for _, in := range attrs {
		attrSchema, ok := a.schema.Attribute(in.Name)
		if !ok {
			return status.New(status.CategorySchemaError, fmt.Sprintf("array: unknown attribute %q", in.Name))
		}
		size, err := cellSize(attrSchema)
		if err != nil {
			return err
		}
		if len(in.Data) != cellCount*size {
			return status.New(status.CategoryQueryError, fmt.Sprintf("array: attribute %q buffer has %d bytes, expected %d for %d cells", in.Name, len(in.Data), cellCount*size, cellCount))
		}
		ctxs = append(ctxs, attrCtx{name: in.Name, data: in.Data, size: size})
	}

	for i := 0; i < cellCount; i++ {
		point := append([]int64(nil), coords[i*d:(i+1)*d]...)
		tileCoords, err := a.tr.TileCoords(point)
		if err != nil {
			return err
		}
		tileID, err := a.tr.GlobalTileID(tileCoords, a.schema.TileOrder)
		if err != nil {
			return err
		}

		cell := sparseCell{point: point, attrs: make(map[string][]byte, len(ctxs))}
		for _, ac := range ctxs {
			cell.attrs[ac.name] = append([]byte(nil), ac.data[i*ac.size:(i+1)*ac.size]...)
		}
		a.wstate.sparseCells[tileID] = append(a.wstate.sparseCells[tileID], cell)
	}

	return nil
}

// finalize compresses every buffered tile, writes each attribute's (and,
// for SPARSE, the coordinate) tile file in one shot, records byte
// offsets, and persists the fragment's __offsets blob. Each attribute's
// .tdb file is written with a single VFS.WriteAll rather than incremental
// appends, since object-store backends reject open(APPEND) and a
// fragment's tiles are all known by the time Close runs anyway.
func (a *Array) finalize(ctx context.Context) error {
	offsets := newFragmentOffsets()

	if a.schema.ArrayType == datatype.Dense {
		if err := a.finalizeDense(ctx, offsets); err != nil {
			return err
		}
	} else {
		if err := a.finalizeSparse(ctx, offsets); err != nil {
			return err
		}
	}

	return a.vfs.WriteAll(ctx, offsetsFile(a.fragmentDir), encodeFragmentOffsets(offsets))
}

func (a *Array) finalizeDense(ctx context.Context, offsets *fragmentOffsets) error {
	for attrName, tiles := range a.wstate.denseTiles {
		attrSchema, _ := a.schema.Attribute(attrName)
		comp, err := codec.ForCompressor(attrSchema.Compressor)
		if err != nil {
			return err
		}

		tileIDs := make([]int64, 0, len(tiles))
		for id := range tiles {
			tileIDs = append(tileIDs, id)
		}
		sort.Slice(tileIDs, func(i, j int) bool { return tileIDs[i] < tileIDs[j] })

		var fileBuf []byte
		for _, id := range tileIDs {
			compressed, err := comp.Compress(nil, tiles[id], int(attrSchema.Level))
			if err != nil {
				return status.Wrap(status.CategoryIOError, "array: compress tile", err)
			}
			offsets.add(attrName, tileEntry{
				TileID:    id,
				Offset:    uint64(len(fileBuf)),
				Length:    uint64(len(compressed)),
				CellCount: uint64(a.schema.CellsPerTile()),
			})
			fileBuf = append(fileBuf, compressed...)
		}

		if err := a.vfs.WriteAll(ctx, attrTileFile(a.fragmentDir, attrName), fileBuf); err != nil {
			return status.Wrap(status.CategoryIOError, "array: write tile file", err)
		}
	}
	return nil
}

func (a *Array) finalizeSparse(ctx context.Context, offsets *fragmentOffsets) error {
	coordsComp, err := codec.ForCompressor(a.schema.Dimensions[0].Compressor)
	if err != nil {
		return err
	}

	tileIDs := make([]int64, 0, len(a.wstate.sparseCells))
	for id := range a.wstate.sparseCells {
		tileIDs = append(tileIDs, id)
	}
	sort.Slice(tileIDs, func(i, j int) bool { return tileIDs[i] < tileIDs[j] })

	var coordsFileBuf []byte
	attrFileBufs := make(map[string][]byte, len(a.schema.Attributes))

	for _, id := range tileIDs {
		cells := a.wstate.sparseCells[id]
		sort.SliceStable(cells, func(i, j int) bool {
			li, _ := a.tr.CellCoordsInTile(cells[i].point)
			lj, _ := a.tr.CellCoordsInTile(cells[j].point)
			ii, _ := a.tr.CellIndexInTile(li, a.schema.CellOrder)
			jj, _ := a.tr.CellIndexInTile(lj, a.schema.CellOrder)
			return ii < jj
		})

		coordBuf := make([]byte, 0, len(cells)*len(a.schema.Dimensions)*8)
		for _, c := range cells {
			for _, v := range c.point {
				coordBuf = binary.LittleEndian.AppendUint64(coordBuf, uint64(v))
			}
		}
		compressedCoords, err := coordsComp.Compress(nil, coordBuf, int(a.schema.Dimensions[0].Level))
		if err != nil {
			return status.Wrap(status.CategoryIOError, "array: compress coords tile", err)
		}
		offsets.add(coordsAttrName, tileEntry{
			TileID: id, Offset: uint64(len(coordsFileBuf)), Length: uint64(len(compressedCoords)), CellCount: uint64(len(cells)),
		})
		coordsFileBuf = append(coordsFileBuf, compressedCoords...)

		for _, attrSchema := range a.schema.Attributes {
			comp, err := codec.ForCompressor(attrSchema.Compressor)
			if err != nil {
				return err
			}
			attrBuf := make([]byte, 0, len(cells)*32)
			for _, c := range cells {
				attrBuf = append(attrBuf, c.attrs[attrSchema.Name]...)
			}
			compressed, err := comp.Compress(nil, attrBuf, int(attrSchema.Level))
			if err != nil {
				return status.Wrap(status.CategoryIOError, "array: compress tile", err)
			}
			offsets.add(attrSchema.Name, tileEntry{
				TileID: id, Offset: uint64(len(attrFileBufs[attrSchema.Name])), Length: uint64(len(compressed)), CellCount: uint64(len(cells)),
			})
			attrFileBufs[attrSchema.Name] = append(attrFileBufs[attrSchema.Name], compressed...)
		}
	}

	if err := a.vfs.WriteAll(ctx, coordsTileFile(a.fragmentDir), coordsFileBuf); err != nil {
		return status.Wrap(status.CategoryIOError, "array: write coords tile file", err)
	}
	for _, attrSchema := range a.schema.Attributes {
		if err := a.vfs.WriteAll(ctx, attrTileFile(a.fragmentDir, attrSchema.Name), attrFileBufs[attrSchema.Name]); err != nil {
			return status.Wrap(status.CategoryIOError, "array: write tile file", err)
		}
	}
	return nil
}
