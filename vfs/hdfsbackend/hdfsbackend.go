// Package hdfsbackend implements vfs.Backend over WebHDFS, the HTTP REST
// contract exposed by the HDFS NameNode and DataNodes. No third-party HDFS
// client exists in the examples this module was grounded on, so this
// backend speaks the wire protocol directly with net/http; see DESIGN.md
// for why that is the one ambient-stack component built on the standard
// library rather than an ecosystem dependency.
package hdfsbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
)

// Backend talks WebHDFS against a single NameNode. It does not implement
// vfs.ObjectStoreBackend: HDFS has real directories and no bucket
// concept.
type Backend struct {
	namenode string // e.g. "http://namenode:9870"
	user     string
	client   *http.Client
}

// New constructs a Backend. namenode is the NameNode's base URL
// (scheme://host:port, no trailing slash); user is the WebHDFS
// "user.name" query parameter used for simple (non-Kerberos)
// authentication.
func New(namenode, user string, timeout time.Duration) *Backend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Backend{
		namenode: strings.TrimSuffix(namenode, "/"),
		user:     user,
		client:   &http.Client{Timeout: timeout},
	}
}

func (b *Backend) Scheme() uri.Scheme { return uri.SchemeHDFS }

func (b *Backend) hdfsPath(u uri.URI) (string, error) {
	raw := u.ToString()
	const prefix = "hdfs://"
	if !strings.HasPrefix(raw, prefix) {
		return "", status.New(status.CategoryVFSError, fmt.Sprintf("hdfsbackend: %q is not an hdfs uri", raw))
	}
	rest := raw[len(prefix):]
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[i:], nil
	}
	return "/", nil
}

func (b *Backend) endpoint(path string, op string, extra url.Values) string {
	q := url.Values{}
	q.Set("op", op)
	if b.user != "" {
		q.Set("user.name", b.user)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return fmt.Sprintf("%s/webhdfs/v1%s?%s", b.namenode, path, q.Encode())
}

type fileStatusResponse struct {
	FileStatus struct {
		Type        string `json:"type"`
		Length      int64  `json:"length"`
		PathSuffix  string `json:"pathSuffix"`
	} `json:"FileStatus"`
}

type listStatusResponse struct {
	FileStatuses struct {
		FileStatus []struct {
			Type       string `json:"type"`
			Length     int64  `json:"length"`
			PathSuffix string `json:"pathSuffix"`
		} `json:"FileStatus"`
	} `json:"FileStatuses"`
}

type remoteExceptionResponse struct {
	RemoteException struct {
		Exception string `json:"exception"`
		Message   string `json:"message"`
	} `json:"RemoteException"`
}

// do issues method against endpoint, following WebHDFS's two-step
// redirect-to-datanode protocol automatically (net/http's default
// client re-issues the PUT/POST with body to the Location header for a
// 307, provided the request carries a GetBody).
func (b *Backend) do(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, status.Wrap(status.CategoryHDFSError, "hdfsbackend: build request", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, status.Wrap(status.CategoryHDFSError, "hdfsbackend: "+method+" "+endpoint, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, remoteError(resp)
	}
	return resp, nil
}

func remoteError(resp *http.Response) error {
	var re remoteExceptionResponse
	_ = json.NewDecoder(resp.Body).Decode(&re)
	if re.RemoteException.Message != "" {
		return status.New(status.CategoryHDFSError,
			fmt.Sprintf("hdfsbackend: %s (%d): %s", re.RemoteException.Exception, resp.StatusCode, re.RemoteException.Message))
	}
	return status.New(status.CategoryHDFSError, fmt.Sprintf("hdfsbackend: unexpected status %d", resp.StatusCode))
}

func (b *Backend) fileStatus(ctx context.Context, path string) (*fileStatusResponse, error) {
	resp, err := b.do(ctx, http.MethodGet, b.endpoint(path, "GETFILESTATUS", nil), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var fs fileStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&fs); err != nil {
		return nil, status.Wrap(status.CategoryHDFSError, "hdfsbackend: decode file status", err)
	}
	return &fs, nil
}

func (b *Backend) CreateDir(ctx context.Context, u uri.URI) error {
	path, err := b.hdfsPath(u)
	if err != nil {
		return err
	}
	resp, err := b.do(ctx, http.MethodPut, b.endpoint(path, "MKDIRS", nil), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (b *Backend) IsDir(ctx context.Context, u uri.URI) (bool, error) {
	path, err := b.hdfsPath(u)
	if err != nil {
		return false, err
	}
	fs, err := b.fileStatus(ctx, path)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return fs.FileStatus.Type == "DIRECTORY", nil
}

func (b *Backend) RemoveDir(ctx context.Context, u uri.URI) error {
	path, err := b.hdfsPath(u)
	if err != nil {
		return err
	}
	extra := url.Values{}
	extra.Set("recursive", "true")
	resp, err := b.do(ctx, http.MethodDelete, b.endpoint(path, "DELETE", extra), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (b *Backend) CreateFile(ctx context.Context, u uri.URI) error {
	path, err := b.hdfsPath(u)
	if err != nil {
		return err
	}
	extra := url.Values{}
	extra.Set("overwrite", "true")
	resp, err := b.do(ctx, http.MethodPut, b.endpoint(path, "CREATE", extra), bytes.NewReader(nil))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (b *Backend) IsFile(ctx context.Context, u uri.URI) (bool, error) {
	path, err := b.hdfsPath(u)
	if err != nil {
		return false, err
	}
	fs, err := b.fileStatus(ctx, path)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return fs.FileStatus.Type == "FILE", nil
}

func (b *Backend) RemoveFile(ctx context.Context, u uri.URI) error {
	path, err := b.hdfsPath(u)
	if err != nil {
		return err
	}
	resp, err := b.do(ctx, http.MethodDelete, b.endpoint(path, "DELETE", nil), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (b *Backend) FileSize(ctx context.Context, u uri.URI) (int64, error) {
	path, err := b.hdfsPath(u)
	if err != nil {
		return 0, err
	}
	fs, err := b.fileStatus(ctx, path)
	if err != nil {
		return 0, err
	}
	return fs.FileStatus.Length, nil
}

func (b *Backend) LS(ctx context.Context, u uri.URI) ([]uri.URI, error) {
	path, err := b.hdfsPath(u)
	if err != nil {
		return nil, err
	}
	resp, err := b.do(ctx, http.MethodGet, b.endpoint(path, "LISTSTATUS", nil), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var ls listStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&ls); err != nil {
		return nil, status.Wrap(status.CategoryHDFSError, "hdfsbackend: decode list status", err)
	}
	out := make([]uri.URI, 0, len(ls.FileStatuses.FileStatus))
	for _, fs := range ls.FileStatuses.FileStatus {
		out = append(out, u.Join(fs.PathSuffix))
	}
	return out, nil
}

// ReadAt issues GET ...?op=OPEN&offset=&length=, WebHDFS's ranged-read
// primitive, mirroring how vfs/s3backend.Backend.ReadAt uses an HTTP
// Range header for the same purpose.
func (b *Backend) ReadAt(ctx context.Context, u uri.URI, off int64, buf []byte) error {
	path, err := b.hdfsPath(u)
	if err != nil {
		return err
	}
	extra := url.Values{}
	extra.Set("offset", strconv.FormatInt(off, 10))
	extra.Set("length", strconv.FormatInt(int64(len(buf)), 10))
	resp, err := b.do(ctx, http.MethodGet, b.endpoint(path, "OPEN", extra), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return status.Wrap(status.CategoryHDFSError, "hdfsbackend: read response body", err)
	}
	if n < len(buf) {
		return status.New(status.CategoryHDFSError, fmt.Sprintf("hdfsbackend: short read of %q (%d/%d bytes)", u.ToString(), n, len(buf)))
	}
	return nil
}

// Open returns a FileHandle streaming writes via CREATE (truncating) or
// APPEND, matching HDFS's own write-once-then-append-only file model.
func (b *Backend) Open(ctx context.Context, u uri.URI, mode vfs.OpenMode) (vfs.FileHandle, error) {
	path, err := b.hdfsPath(u)
	if err != nil {
		return nil, err
	}
	switch mode {
	case vfs.OpenWrite:
		return &writeHandle{ctx: ctx, backend: b, path: path, op: "CREATE"}, nil
	case vfs.OpenAppend:
		return &writeHandle{ctx: ctx, backend: b, path: path, op: "APPEND"}, nil
	default:
		return nil, status.New(status.CategoryVFSError, fmt.Sprintf("hdfsbackend: open: unsupported mode %v", mode))
	}
}

func (b *Backend) Move(ctx context.Context, src, dst uri.URI) error {
	srcPath, err := b.hdfsPath(src)
	if err != nil {
		return err
	}
	dstPath, err := b.hdfsPath(dst)
	if err != nil {
		return err
	}
	extra := url.Values{}
	extra.Set("destination", dstPath)
	resp, err := b.do(ctx, http.MethodPut, b.endpoint(srcPath, "RENAME", extra), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Sync is a no-op: WebHDFS has no separate flush primitive beyond a
// successful write response.
func (b *Backend) Sync(context.Context, vfs.FileHandle) error { return nil }

// FilelockLock is a no-op success: HDFS has no advisory-lock primitive,
// per spec.md S:4.3.
func (b *Backend) FilelockLock(context.Context, uri.URI, bool) (func() error, error) {
	return func() error { return nil }, nil
}

// writeHandle buffers writes and flushes the whole buffer to WebHDFS's
// CREATE or APPEND endpoint on Close, since WebHDFS has no notion of an
// incrementally streamed write within a single HTTP request beyond the
// redirect-to-datanode dance net/http already follows transparently.
type writeHandle struct {
	ctx     context.Context
	backend *Backend
	path    string
	op      string
	buf     bytes.Buffer
}

func (h *writeHandle) Write(p []byte) (int, error) { return h.buf.Write(p) }

func (h *writeHandle) Close() error {
	method := http.MethodPut
	extra := url.Values{}
	if h.op == "CREATE" {
		extra.Set("overwrite", "true")
	} else {
		// WebHDFS's APPEND operation is issued as POST, unlike CREATE's PUT.
		method = http.MethodPost
	}
	resp, err := h.backend.do(h.ctx, method, h.backend.endpoint(h.path, h.op, extra), bytes.NewReader(h.buf.Bytes()))
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (h *writeHandle) Sync() error { return nil }

func isNotFound(err error) bool {
	s, ok := err.(*status.Status)
	return ok && s.Category == status.CategoryHDFSError && strings.Contains(s.Message, "FileNotFoundException")
}

var _ vfs.Backend = (*Backend)(nil)
