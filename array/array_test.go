package array_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/hupe1980/tilestore/array"
	"github.com/hupe1980/tilestore/datatype"
	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/tilecoords"
	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
	"github.com/hupe1980/tilestore/vfs/memfs"
	"github.com/stretchr/testify/require"
)

func int32Bytes(vals ...int32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func readInt32s(buf []byte) []int32 {
	out := make([]int32, len(buf)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func newTestVFS() *vfs.VFS {
	return vfs.New(2, []vfs.Backend{memfs.New()})
}

// TestDenseWriteFullRead is spec.md S:8 scenario 1: a 2x2-tiled 4x4 DENSE
// array, write 1..16 row-major, full row-major read yields 1..16 and the
// query completes in one submission.
func TestDenseWriteFullRead(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS()
	defer v.Close()

	arrayURI := uri.MustParse("file:///arrays/dense")
	s := schema.New(arrayURI, datatype.Dense)
	require.NoError(t, s.AddDimension(schema.NewDimension("rows", datatype.INT32, 1, 4, 2)))
	require.NoError(t, s.AddDimension(schema.NewDimension("cols", datatype.INT32, 1, 4, 2)))
	require.NoError(t, s.AddAttribute(schema.NewAttribute("a", datatype.INT32, 1)))
	require.NoError(t, s.Check())
	require.NoError(t, schema.Save(ctx, v, s))

	w, err := array.Open(ctx, v, arrayURI, array.ModeWrite)
	require.NoError(t, err)

	full := []tilecoords.Range{{Low: 1, High: 4}, {Low: 1, High: 4}}
	vals := make([]int32, 16)
	for i := range vals {
		vals[i] = int32(i + 1)
	}
	require.NoError(t, w.Write(ctx, full, datatype.RowMajor, []array.Attr{
		{Name: "a", Data: int32Bytes(vals...)},
	}))
	require.NoError(t, w.Close(ctx))

	r, err := array.Open(ctx, v, arrayURI, array.ModeRead)
	require.NoError(t, err)

	q := array.NewQuery()
	buf := make([]byte, 16*4)
	rb := &array.ReadBuffer{Name: "a", Buf: buf}
	require.NoError(t, r.Read(ctx, q, full, datatype.RowMajor, []*array.ReadBuffer{rb}))
	require.Equal(t, array.Completed, q.Status())
	require.Equal(t, len(buf), rb.Filled)

	got := readInt32s(buf)
	want := make([]int32, 16)
	for i := range want {
		want[i] = int32(i + 1)
	}
	require.Equal(t, want, got)
}

// TestDenseIncompleteReadResumption is spec.md S:8 scenario 2: the same
// array, reading subarray rows:[3,4] cols:[2,4] col-major into a 2-cell
// buffer across three submissions. rows is the schema's slower-varying
// (dimension 0) axis, so with ROW_MAJOR fill and a COL_MAJOR query the
// values come back as [10,14],[11,15],[12,16].
func TestDenseIncompleteReadResumption(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS()
	defer v.Close()

	arrayURI := uri.MustParse("file:///arrays/dense2")
	s := schema.New(arrayURI, datatype.Dense)
	require.NoError(t, s.AddDimension(schema.NewDimension("rows", datatype.INT32, 1, 4, 2)))
	require.NoError(t, s.AddDimension(schema.NewDimension("cols", datatype.INT32, 1, 4, 2)))
	require.NoError(t, s.AddAttribute(schema.NewAttribute("a", datatype.INT32, 1)))
	require.NoError(t, s.Check())
	require.NoError(t, schema.Save(ctx, v, s))

	w, err := array.Open(ctx, v, arrayURI, array.ModeWrite)
	require.NoError(t, err)
	full := []tilecoords.Range{{Low: 1, High: 4}, {Low: 1, High: 4}}
	vals := make([]int32, 16)
	for i := range vals {
		vals[i] = int32(i + 1)
	}
	require.NoError(t, w.Write(ctx, full, datatype.RowMajor, []array.Attr{
		{Name: "a", Data: int32Bytes(vals...)},
	}))
	require.NoError(t, w.Close(ctx))

	r, err := array.Open(ctx, v, arrayURI, array.ModeRead)
	require.NoError(t, err)

	sub := []tilecoords.Range{{Low: 3, High: 4}, {Low: 2, High: 4}}
	q := array.NewQuery()

	expected := [][]int32{{10, 14}, {11, 15}, {12, 16}}
	expectedStatus := []array.Status{array.Incomplete, array.Incomplete, array.Completed}

	for i, want := range expected {
		buf := make([]byte, 2*4)
		rb := &array.ReadBuffer{Name: "a", Buf: buf}
		require.NoError(t, r.Read(ctx, q, sub, datatype.ColMajor, []*array.ReadBuffer{rb}))
		require.Equal(t, expectedStatus[i], q.Status())
		require.Equal(t, want, readInt32s(buf))
	}
}

// TestSparseUnorderedWrite is spec.md S:8 scenario 3: a sparse 1-D int64
// dimension [0,99] extent 10 capacity 4; write unordered coordinates
// 37,5,5,88 with attribute values 1,2,3,4; a full row-major read yields
// coordinate-sorted cells, duplicates preserved.
func TestSparseUnorderedWrite(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS()
	defer v.Close()

	arrayURI := uri.MustParse("file:///arrays/sparse")
	s := schema.New(arrayURI, datatype.Sparse)
	require.NoError(t, s.AddDimension(schema.NewDimension("x", datatype.INT64, 0, 99, 10)))
	require.NoError(t, s.AddAttribute(schema.NewAttribute("a", datatype.INT32, 1)))
	s.SetCapacity(4)
	require.NoError(t, s.Check())
	require.NoError(t, schema.Save(ctx, v, s))

	w, err := array.Open(ctx, v, arrayURI, array.ModeWrite)
	require.NoError(t, err)

	coords := []int64{37, 5, 5, 88}
	require.NoError(t, w.WriteSparse(ctx, coords, []array.Attr{
		{Name: "a", Data: int32Bytes(1, 2, 3, 4)},
	}))
	require.NoError(t, w.Close(ctx))

	r, err := array.Open(ctx, v, arrayURI, array.ModeRead)
	require.NoError(t, err)

	q := array.NewQuery()
	coordBuf := make([]byte, 4*8)
	attrBuf := make([]byte, 4*4)
	sub := []tilecoords.Range{{Low: 0, High: 99}}
	require.NoError(t, r.Read(ctx, q, sub, datatype.RowMajor, []*array.ReadBuffer{
		{Name: "__coords", Buf: coordBuf},
		{Name: "a", Buf: attrBuf},
	}))
	require.Equal(t, array.Completed, q.Status())

	gotCoords := make([]int64, 4)
	for i := range gotCoords {
		gotCoords[i] = int64(binary.LittleEndian.Uint64(coordBuf[i*8:]))
	}
	require.Equal(t, []int64{5, 5, 37, 88}, gotCoords)
	require.Equal(t, []int32{2, 3, 1, 4}, readInt32s(attrBuf))
}

// TestSparseMultiFragmentMerge writes two separate fragments touching
// different tiles and checks that a read merges cells from both, sorted
// into one coordinate-ordered sequence -- exercising readSparse's
// PresenceIndex-based per-fragment tile pruning.
func TestSparseMultiFragmentMerge(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS()
	defer v.Close()

	arrayURI := uri.MustParse("file:///arrays/sparse-multi")
	s := schema.New(arrayURI, datatype.Sparse)
	require.NoError(t, s.AddDimension(schema.NewDimension("x", datatype.INT64, 0, 99, 10)))
	require.NoError(t, s.AddAttribute(schema.NewAttribute("a", datatype.INT32, 1)))
	s.SetCapacity(4)
	require.NoError(t, s.Check())
	require.NoError(t, schema.Save(ctx, v, s))

	w1, err := array.Open(ctx, v, arrayURI, array.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w1.WriteSparse(ctx, []int64{5, 15}, []array.Attr{
		{Name: "a", Data: int32Bytes(100, 200)},
	}))
	require.NoError(t, w1.Close(ctx))

	w2, err := array.Open(ctx, v, arrayURI, array.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w2.WriteSparse(ctx, []int64{25, 8}, []array.Attr{
		{Name: "a", Data: int32Bytes(300, 400)},
	}))
	require.NoError(t, w2.Close(ctx))

	r, err := array.Open(ctx, v, arrayURI, array.ModeRead)
	require.NoError(t, err)

	q := array.NewQuery()
	coordBuf := make([]byte, 4*8)
	attrBuf := make([]byte, 4*4)
	sub := []tilecoords.Range{{Low: 0, High: 99}}
	require.NoError(t, r.Read(ctx, q, sub, datatype.RowMajor, []*array.ReadBuffer{
		{Name: "__coords", Buf: coordBuf},
		{Name: "a", Buf: attrBuf},
	}))
	require.Equal(t, array.Completed, q.Status())

	gotCoords := make([]int64, 4)
	for i := range gotCoords {
		gotCoords[i] = int64(binary.LittleEndian.Uint64(coordBuf[i*8:]))
	}
	require.Equal(t, []int64{5, 8, 15, 25}, gotCoords)
	require.Equal(t, []int32{100, 400, 200, 300}, readInt32s(attrBuf))
}
