// Package posixbackend implements vfs.Backend over the local filesystem.
// Reads are served by mmap (internal/mmap) for zero-copy random access;
// writes go through internal/fs's os-backed FileSystem abstraction so
// tests can substitute a faulty filesystem double.
package posixbackend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/hupe1980/tilestore/internal/fs"
	"github.com/hupe1980/tilestore/internal/mmap"
	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
)

// Backend is the local-filesystem vfs.Backend.
type Backend struct {
	fs fs.FileSystem
}

// New constructs a posix Backend over the real OS filesystem.
func New() *Backend { return &Backend{fs: fs.Default} }

// NewWithFileSystem constructs a posix Backend over a caller-supplied
// fs.FileSystem, e.g. internal/fs's fault-injecting double in tests.
func NewWithFileSystem(fsys fs.FileSystem) *Backend { return &Backend{fs: fsys} }

func (b *Backend) Scheme() uri.Scheme { return uri.SchemeFile }

func localPath(u uri.URI) (string, error) {
	p, ok := u.ToPath()
	if !ok {
		return "", status.New(status.CategoryIOError, fmt.Sprintf("posixbackend: %q is not a local uri", u.ToString()))
	}
	return p, nil
}

func (b *Backend) CreateDir(_ context.Context, u uri.URI) error {
	p, err := localPath(u)
	if err != nil {
		return err
	}
	if err := b.fs.MkdirAll(p, 0o755); err != nil {
		return status.Wrap(status.CategoryIOError, "posixbackend: create dir", err)
	}
	return nil
}

func (b *Backend) IsDir(_ context.Context, u uri.URI) (bool, error) {
	p, err := localPath(u)
	if err != nil {
		return false, err
	}
	fi, err := b.fs.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, status.Wrap(status.CategoryIOError, "posixbackend: stat", err)
	}
	return fi.IsDir(), nil
}

func (b *Backend) RemoveDir(_ context.Context, u uri.URI) error {
	p, err := localPath(u)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return status.Wrap(status.CategoryIOError, "posixbackend: remove dir", err)
	}
	return nil
}

func (b *Backend) CreateFile(_ context.Context, u uri.URI) error {
	p, err := localPath(u)
	if err != nil {
		return err
	}
	if err := b.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return status.Wrap(status.CategoryIOError, "posixbackend: create file", err)
	}
	f, err := b.fs.OpenFile(p, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return status.Wrap(status.CategoryIOError, "posixbackend: create file", err)
	}
	return f.Close()
}

func (b *Backend) IsFile(_ context.Context, u uri.URI) (bool, error) {
	p, err := localPath(u)
	if err != nil {
		return false, err
	}
	fi, err := b.fs.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, status.Wrap(status.CategoryIOError, "posixbackend: stat", err)
	}
	return !fi.IsDir(), nil
}

func (b *Backend) RemoveFile(_ context.Context, u uri.URI) error {
	p, err := localPath(u)
	if err != nil {
		return err
	}
	if err := b.fs.Remove(p); err != nil && !os.IsNotExist(err) {
		return status.Wrap(status.CategoryIOError, "posixbackend: remove file", err)
	}
	return nil
}

func (b *Backend) FileSize(_ context.Context, u uri.URI) (int64, error) {
	p, err := localPath(u)
	if err != nil {
		return 0, err
	}
	fi, err := b.fs.Stat(p)
	if err != nil {
		return 0, status.Wrap(status.CategoryIOError, "posixbackend: stat", err)
	}
	return fi.Size(), nil
}

func (b *Backend) LS(_ context.Context, u uri.URI) ([]uri.URI, error) {
	p, err := localPath(u)
	if err != nil {
		return nil, err
	}
	entries, err := b.fs.ReadDir(p)
	if err != nil {
		return nil, status.Wrap(status.CategoryIOError, "posixbackend: ls", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	out := make([]uri.URI, 0, len(names))
	for _, n := range names {
		out = append(out, u.Join(n))
	}
	return out, nil
}

// ReadAt reads len(buf) bytes at offset off via an mmap of the file.
// mmap gives zero-copy random access, the right shape for the
// concurrent disjoint-shard reads VFS.Read issues.
func (b *Backend) ReadAt(_ context.Context, u uri.URI, off int64, buf []byte) error {
	p, err := localPath(u)
	if err != nil {
		return err
	}
	m, err := mmap.Open(p)
	if err != nil {
		return status.Wrap(status.CategoryIOError, "posixbackend: mmap open", err)
	}
	defer m.Close()

	// VFS.Read issues disjoint concurrent shard reads against this mapping,
	// not a sequential scan, so hint the kernel accordingly. Best-effort:
	// a failed advise never fails the read.
	_ = m.Advise(mmap.AccessRandom)

	n, err := m.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return status.Wrap(status.CategoryIOError, "posixbackend: read", err)
	}
	if n < len(buf) {
		return status.New(status.CategoryIOError, fmt.Sprintf("posixbackend: short read of %q (%d/%d bytes)", u.ToString(), n, len(buf)))
	}
	return nil
}

func (b *Backend) Open(_ context.Context, u uri.URI, mode vfs.OpenMode) (vfs.FileHandle, error) {
	p, err := localPath(u)
	if err != nil {
		return nil, err
	}
	if err := b.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, status.Wrap(status.CategoryIOError, "posixbackend: open", err)
	}

	var flag int
	switch mode {
	case vfs.OpenWrite:
		flag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	case vfs.OpenAppend:
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	default:
		return nil, status.New(status.CategoryVFSError, fmt.Sprintf("posixbackend: open: unsupported mode %v", mode))
	}

	f, err := b.fs.OpenFile(p, flag, 0o644)
	if err != nil {
		return nil, status.Wrap(status.CategoryIOError, "posixbackend: open", err)
	}
	return &fileHandle{f: f}, nil
}

func (b *Backend) Move(_ context.Context, src, dst uri.URI) error {
	sp, err := localPath(src)
	if err != nil {
		return err
	}
	dp, err := localPath(dst)
	if err != nil {
		return err
	}
	if err := b.fs.MkdirAll(filepath.Dir(dp), 0o755); err != nil {
		return status.Wrap(status.CategoryIOError, "posixbackend: move", err)
	}
	if err := b.fs.Rename(sp, dp); err != nil {
		return status.Wrap(status.CategoryIOError, "posixbackend: move", err)
	}
	return nil
}

func (b *Backend) Sync(_ context.Context, fh vfs.FileHandle) error {
	return fh.Sync()
}

// FilelockLock acquires a real OS advisory lock on the array directory's
// lock sentinel: shared for read, exclusive for write/consolidate. The
// release closure unlocks and closes the lock file descriptor; it is
// safe to call exactly once. Platform-specific locking lives in
// filelock_unix.go / filelock_windows.go.
func (b *Backend) FilelockLock(_ context.Context, u uri.URI, exclusive bool) (func() error, error) {
	p, err := localPath(u)
	if err != nil {
		return nil, err
	}
	if err := b.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, status.Wrap(status.CategoryIOError, "posixbackend: filelock", err)
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, status.Wrap(status.CategoryIOError, "posixbackend: filelock open", err)
	}

	if err := osFlock(f, exclusive); err != nil {
		f.Close()
		return nil, status.Wrap(status.CategoryIOError, "posixbackend: flock", err)
	}

	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		_ = osFunlock(f)
		return f.Close()
	}, nil
}

type fileHandle struct {
	f fs.File
}

func (h *fileHandle) Write(p []byte) (int, error) { return h.f.Write(p) }
func (h *fileHandle) Close() error                { return h.f.Close() }
func (h *fileHandle) Sync() error                 { return h.f.Sync() }

var _ vfs.Backend = (*Backend)(nil)
