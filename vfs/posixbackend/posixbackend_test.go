package posixbackend_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/tilestore/internal/fs"
	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
	"github.com/hupe1980/tilestore/vfs/posixbackend"
	"github.com/stretchr/testify/require"
)

func TestOpenWriteThenReadAt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v := vfs.New(4, []vfs.Backend{posixbackend.New()})
	defer v.Close()

	u := uri.MustParse("file://" + dir + "/tile-0.tdb")
	data := []byte("0123456789")
	require.NoError(t, v.WriteAll(ctx, u, data))

	buf := make([]byte, 4)
	require.NoError(t, v.Read(ctx, u, 3, buf, 4))
	require.Equal(t, []byte("3456"), buf)
}

func TestOpenWriteRemovesExistingFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v := vfs.New(2, []vfs.Backend{posixbackend.New()})
	defer v.Close()

	u := uri.MustParse("file://" + dir + "/a.bin")
	require.NoError(t, v.WriteAll(ctx, u, []byte("first version, much longer")))
	require.NoError(t, v.WriteAll(ctx, u, []byte("second")))

	got, err := v.ReadAll(ctx, u)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestAppendAccumulates(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v := vfs.New(2, []vfs.Backend{posixbackend.New()})
	defer v.Close()

	u := uri.MustParse("file://" + dir + "/a.bin")
	f, err := v.Open(ctx, u, vfs.OpenAppend)
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2, err := v.Open(ctx, u, vfs.OpenAppend)
	require.NoError(t, err)
	_, err = f2.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, f2.Close())

	got, err := v.ReadAll(ctx, u)
	require.NoError(t, err)
	require.Equal(t, []byte("abcdef"), got)
}

func TestMoveWithinLocalBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v := vfs.New(2, []vfs.Backend{posixbackend.New()})
	defer v.Close()

	src := uri.MustParse("file://" + dir + "/src.bin")
	dst := uri.MustParse("file://" + dir + "/dst.bin")
	require.NoError(t, v.WriteAll(ctx, src, []byte("payload")))

	require.NoError(t, v.Move(ctx, src, dst, false))

	isFile, err := v.IsFile(ctx, src)
	require.NoError(t, err)
	require.False(t, isFile)

	got, err := v.ReadAll(ctx, dst)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}

func TestMoveWithForceOverwritesDestination(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v := vfs.New(2, []vfs.Backend{posixbackend.New()})
	defer v.Close()

	src := uri.MustParse("file://" + dir + "/src.bin")
	dst := uri.MustParse("file://" + dir + "/dst.bin")
	require.NoError(t, v.WriteAll(ctx, src, []byte("new")))
	require.NoError(t, v.WriteAll(ctx, dst, []byte("old, much longer content")))

	require.NoError(t, v.Move(ctx, src, dst, true))

	got, err := v.ReadAll(ctx, dst)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
}

func TestMoveWithoutForceFailsWhenDestinationExists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v := vfs.New(2, []vfs.Backend{posixbackend.New()})
	defer v.Close()

	src := uri.MustParse("file://" + dir + "/src.bin")
	dst := uri.MustParse("file://" + dir + "/dst.bin")
	require.NoError(t, v.WriteAll(ctx, src, []byte("new")))
	require.NoError(t, v.WriteAll(ctx, dst, []byte("old")))

	err := v.Move(ctx, src, dst, false)
	require.Error(t, err)

	// Both sides untouched.
	gotSrc, err := v.ReadAll(ctx, src)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), gotSrc)
	gotDst, err := v.ReadAll(ctx, dst)
	require.NoError(t, err)
	require.Equal(t, []byte("old"), gotDst)
}

func TestExclusiveFilelockAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v := vfs.New(2, []vfs.Backend{posixbackend.New()})
	defer v.Close()

	u := uri.MustParse("file://" + dir + "/__lock")
	release, err := v.Lock(ctx, u, true)
	require.NoError(t, err)
	require.NoError(t, release())
}

func TestWriteFailsOnInjectedFault(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	faulty := fs.NewFaultyFS(nil)
	faulty.AddRule("bad.bin", fs.Fault{FailAfterBytes: 2})

	v := vfs.New(2, []vfs.Backend{posixbackend.NewWithFileSystem(faulty)})
	defer v.Close()

	u := uri.MustParse("file://" + dir + "/bad.bin")
	err := v.WriteAll(ctx, u, []byte("this write exceeds the fault's byte limit"))
	require.Error(t, err)

	other := uri.MustParse("file://" + dir + "/good.bin")
	require.NoError(t, v.WriteAll(ctx, other, []byte("fine")))
}

func TestCreateDirAndLS(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v := vfs.New(2, []vfs.Backend{posixbackend.New()})
	defer v.Close()

	root := uri.MustParse("file://" + dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("y"), 0o644))

	entries, err := v.LS(ctx, root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
