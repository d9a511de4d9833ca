package hdfsbackend_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
	"github.com/hupe1980/tilestore/vfs/hdfsbackend"
	"github.com/stretchr/testify/require"
)

// fakeNameNode is a minimal in-memory WebHDFS server: enough of the REST
// contract to exercise hdfsbackend's request/response shape without a
// real HDFS cluster.
func fakeNameNode(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	files := map[string][]byte{}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhdfs/v1/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path[len("/webhdfs/v1"):]
		op := r.URL.Query().Get("op")

		switch op {
		case "GETFILESTATUS":
			data, ok := files[path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"RemoteException": map[string]any{
						"exception": "FileNotFoundException",
						"message":   fmt.Sprintf("File %s not found", path),
					},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"FileStatus": map[string]any{"type": "FILE", "length": len(data), "pathSuffix": ""},
			})
		case "CREATE":
			body, _ := io.ReadAll(r.Body)
			files[path] = body
			w.WriteHeader(http.StatusCreated)
		case "APPEND":
			body, _ := io.ReadAll(r.Body)
			files[path] = append(files[path], body...)
			w.WriteHeader(http.StatusOK)
		case "OPEN":
			data := files[path]
			var off, n int
			if _, err := fmt.Sscan(r.URL.Query().Get("offset"), &off); err == nil && off >= 0 && off <= len(data) {
				data = data[off:]
			}
			if _, err := fmt.Sscan(r.URL.Query().Get("length"), &n); err == nil && n >= 0 && n < len(data) {
				data = data[:n]
			}
			w.Write(data)
		case "DELETE":
			delete(files, path)
			_ = json.NewEncoder(w).Encode(map[string]bool{"boolean": true})
		case "RENAME":
			dst := r.URL.Query().Get("destination")
			files[dst] = files[path]
			delete(files, path)
			_ = json.NewEncoder(w).Encode(map[string]bool{"boolean": true})
		case "MKDIRS":
			_ = json.NewEncoder(w).Encode(map[string]bool{"boolean": true})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	return httptest.NewServer(mux), files
}

func TestCreateThenReadAt(t *testing.T) {
	srv, _ := fakeNameNode(t)
	defer srv.Close()
	ctx := context.Background()

	b := hdfsbackend.New(srv.URL, "tester", 0)
	u := uri.MustParse("hdfs:///tmp/fragment-0.tdb")

	fh, err := b.Open(ctx, u, vfs.OpenWrite)
	require.NoError(t, err)
	_, err = fh.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	buf := make([]byte, 4)
	require.NoError(t, b.ReadAt(ctx, u, 3, buf))
	require.Equal(t, []byte("3456"), buf)

	isFile, err := b.IsFile(ctx, u)
	require.NoError(t, err)
	require.True(t, isFile)

	size, err := b.FileSize(ctx, u)
	require.NoError(t, err)
	require.Equal(t, int64(10), size)
}

func TestAppendAccumulates(t *testing.T) {
	srv, _ := fakeNameNode(t)
	defer srv.Close()
	ctx := context.Background()

	b := hdfsbackend.New(srv.URL, "tester", 0)
	u := uri.MustParse("hdfs:///tmp/log.bin")

	fh, err := b.Open(ctx, u, vfs.OpenAppend)
	require.NoError(t, err)
	_, _ = fh.Write([]byte("abc"))
	require.NoError(t, fh.Close())

	fh2, err := b.Open(ctx, u, vfs.OpenAppend)
	require.NoError(t, err)
	_, _ = fh2.Write([]byte("def"))
	require.NoError(t, fh2.Close())

	buf := make([]byte, 6)
	require.NoError(t, b.ReadAt(ctx, u, 0, buf))
	require.Equal(t, []byte("abcdef"), buf)
}

func TestIsFileFalseWhenMissing(t *testing.T) {
	srv, _ := fakeNameNode(t)
	defer srv.Close()
	ctx := context.Background()

	b := hdfsbackend.New(srv.URL, "tester", 0)
	isFile, err := b.IsFile(ctx, uri.MustParse("hdfs:///missing"))
	require.NoError(t, err)
	require.False(t, isFile)
}

func TestRemoveFile(t *testing.T) {
	srv, files := fakeNameNode(t)
	defer srv.Close()
	ctx := context.Background()

	b := hdfsbackend.New(srv.URL, "tester", 0)
	u := uri.MustParse("hdfs:///tmp/x.bin")
	fh, err := b.Open(ctx, u, vfs.OpenWrite)
	require.NoError(t, err)
	_, _ = fh.Write([]byte("x"))
	require.NoError(t, fh.Close())
	require.Len(t, files, 1)

	require.NoError(t, b.RemoveFile(ctx, u))
	isFile, err := b.IsFile(ctx, u)
	require.NoError(t, err)
	require.False(t, isFile)
}

func TestMoveRenamesKey(t *testing.T) {
	srv, _ := fakeNameNode(t)
	defer srv.Close()
	ctx := context.Background()

	b := hdfsbackend.New(srv.URL, "tester", 0)
	src := uri.MustParse("hdfs:///tmp/src.bin")
	dst := uri.MustParse("hdfs:///tmp/dst.bin")

	fh, err := b.Open(ctx, src, vfs.OpenWrite)
	require.NoError(t, err)
	_, _ = fh.Write([]byte("payload"))
	require.NoError(t, fh.Close())

	require.NoError(t, b.Move(ctx, src, dst))

	isFile, err := b.IsFile(ctx, src)
	require.NoError(t, err)
	require.False(t, isFile)

	buf := make([]byte, 7)
	require.NoError(t, b.ReadAt(ctx, dst, 0, buf))
	require.Equal(t, []byte("payload"), buf)
}
