package vfs_test

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
	"github.com/hupe1980/tilestore/vfs/memfs"
	"github.com/stretchr/testify/require"
)

func TestWriteAllReadAllRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := vfs.New(4, []vfs.Backend{memfs.New()})
	defer v.Close()

	u := uri.MustParse("file:///array/__array_schema")
	data := []byte("hello tilestore")

	require.NoError(t, v.WriteAll(ctx, u, data))

	got, err := v.ReadAll(ctx, u)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestParallelReadMatchesSerialRead(t *testing.T) {
	ctx := context.Background()
	backend := memfs.New()
	v := vfs.New(8, []vfs.Backend{backend}, vfs.WithParallelReadThreshold(64*1024))
	defer v.Close()

	u := uri.MustParse("file:///data.bin")
	data := make([]byte, 1<<20)
	_, err := rand.Read(data)
	require.NoError(t, err)
	require.NoError(t, v.WriteAll(ctx, u, data))

	buf := make([]byte, len(data))
	require.NoError(t, v.Read(ctx, u, 0, buf, int64(len(buf))))
	require.Equal(t, data, buf)
}

func TestReadBelowThresholdIsSerial(t *testing.T) {
	ctx := context.Background()
	v := vfs.New(8, []vfs.Backend{memfs.New()}, vfs.WithParallelReadThreshold(1<<20))
	defer v.Close()

	u := uri.MustParse("file:///small.bin")
	data := []byte("small file, single-threaded read")
	require.NoError(t, v.WriteAll(ctx, u, data))

	buf := make([]byte, len(data))
	require.NoError(t, v.Read(ctx, u, 0, buf, int64(len(buf))))
	require.Equal(t, data, buf)
}

func TestReadRejectsNonFile(t *testing.T) {
	ctx := context.Background()
	v := vfs.New(2, []vfs.Backend{memfs.New()})
	defer v.Close()

	u := uri.MustParse("file:///some/dir")
	require.NoError(t, v.CreateDir(ctx, u))

	buf := make([]byte, 4)
	err := v.Read(ctx, u, 0, buf, 4)
	require.Error(t, err)
}

func TestUnsupportedSchemeFails(t *testing.T) {
	ctx := context.Background()
	v := vfs.New(2, []vfs.Backend{memfs.New()})
	defer v.Close()

	_, err := v.IsFile(ctx, uri.MustParse("gs://bucket/obj"))
	require.ErrorIs(t, err, status.ErrUnsupportedScheme)
}

func TestBackendDisabledWhenSchemeNotRegistered(t *testing.T) {
	ctx := context.Background()
	v := vfs.New(2, nil)
	defer v.Close()

	_, err := v.IsFile(ctx, uri.MustParse("file:///a"))
	require.Error(t, err)
}

func TestMoveCrossBackendRejected(t *testing.T) {
	ctx := context.Background()
	v := vfs.New(2, []vfs.Backend{memfs.New()})
	defer v.Close()

	err := v.Move(ctx, uri.MustParse("file:///a"), uri.MustParse("s3://bucket/c"), false)
	require.Error(t, err)
}

func TestLockIsNoopReleaseOnMemBackend(t *testing.T) {
	ctx := context.Background()
	v := vfs.New(2, []vfs.Backend{memfs.New()})
	defer v.Close()

	release, err := v.Lock(ctx, uri.MustParse("file:///array"), true)
	require.NoError(t, err)
	require.NoError(t, release())
}
