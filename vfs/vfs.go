// Package vfs implements the URI-dispatched virtual filesystem: a single
// entry point that routes every operation to the backend registered for
// the URI's scheme, and that parallelises large reads across a
// threadpool.ThreadPool.
package vfs

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/threadpool"
	"github.com/hupe1980/tilestore/uri"
)

// DefaultParallelReadThreshold is the read size below which VFS.Read
// always runs a single synchronous backend read (config key
// vfs.parallel_read_threshold_bytes).
const DefaultParallelReadThreshold = 1 << 20 // 1 MiB

// VFS multiplexes registered Backends behind a uniform, URI-keyed
// interface and owns the thread pool used to parallelise range reads.
// VFS exclusively owns its backend handles and the thread pool; no
// cyclic ownership exists with any array/schema type.
type VFS struct {
	mu                     sync.RWMutex
	backends               map[uri.Scheme]Backend
	pool                   *threadpool.ThreadPool
	ownsPool               bool
	parallelReadThreshold  int64
}

// Option configures a VFS at construction.
type Option func(*VFS)

// WithThreadPool installs a caller-owned thread pool instead of letting
// VFS create and own its own. The caller remains responsible for
// closing it.
func WithThreadPool(pool *threadpool.ThreadPool) Option {
	return func(v *VFS) {
		v.pool = pool
		v.ownsPool = false
	}
}

// WithParallelReadThreshold overrides DefaultParallelReadThreshold.
func WithParallelReadThreshold(bytes int64) Option {
	return func(v *VFS) {
		v.parallelReadThreshold = bytes
	}
}

// New constructs a VFS with the given backends registered by scheme and
// numThreads worker goroutines (vfs.num_parallel_operations). Passing no
// backends is valid; every operation then fails with BackendDisabled.
func New(numThreads int, backends []Backend, opts ...Option) *VFS {
	v := &VFS{
		backends:              make(map[uri.Scheme]Backend, len(backends)),
		parallelReadThreshold: DefaultParallelReadThreshold,
	}
	for _, b := range backends {
		v.backends[b.Scheme()] = b
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.pool == nil {
		v.pool = threadpool.New(numThreads)
		v.ownsPool = true
	}
	return v
}

// Close joins the thread pool if VFS owns it.
func (v *VFS) Close() error {
	if v.ownsPool {
		return v.pool.Close()
	}
	return nil
}

// Pool returns the underlying thread pool, e.g. for Array to submit its
// own tile-level work alongside VFS reads.
func (v *VFS) Pool() *threadpool.ThreadPool { return v.pool }

func (v *VFS) backendFor(u uri.URI) (Backend, error) {
	if u.Scheme() == uri.SchemeUnsupported {
		return nil, status.New(status.CategoryUnsupportedScheme,
			fmt.Sprintf("unsupported scheme in uri %q", u.ToString()))
	}
	v.mu.RLock()
	b, ok := v.backends[u.Scheme()]
	v.mu.RUnlock()
	if !ok {
		return nil, status.New(status.CategoryBackendDisabled,
			fmt.Sprintf("no backend registered for scheme %q", u.Scheme()))
	}
	return b, nil
}

// CreateDir creates a directory (or, for object stores, is a no-op since
// "directories" there are just key prefixes).
func (v *VFS) CreateDir(ctx context.Context, u uri.URI) error {
	b, err := v.backendFor(u)
	if err != nil {
		return err
	}
	return b.CreateDir(ctx, u)
}

// IsDir reports whether u addresses an existing directory.
func (v *VFS) IsDir(ctx context.Context, u uri.URI) (bool, error) {
	b, err := v.backendFor(u)
	if err != nil {
		return false, err
	}
	return b.IsDir(ctx, u)
}

// RemoveDir recursively removes a directory and everything under it.
func (v *VFS) RemoveDir(ctx context.Context, u uri.URI) error {
	b, err := v.backendFor(u)
	if err != nil {
		return err
	}
	return b.RemoveDir(ctx, u)
}

// CreateFile creates an empty file at u.
func (v *VFS) CreateFile(ctx context.Context, u uri.URI) error {
	b, err := v.backendFor(u)
	if err != nil {
		return err
	}
	return b.CreateFile(ctx, u)
}

// IsFile reports whether u addresses an existing file.
func (v *VFS) IsFile(ctx context.Context, u uri.URI) (bool, error) {
	b, err := v.backendFor(u)
	if err != nil {
		return false, err
	}
	return b.IsFile(ctx, u)
}

// RemoveFile removes a single file.
func (v *VFS) RemoveFile(ctx context.Context, u uri.URI) error {
	b, err := v.backendFor(u)
	if err != nil {
		return err
	}
	return b.RemoveFile(ctx, u)
}

// FileSize returns the size in bytes of the file addressed by u.
func (v *VFS) FileSize(ctx context.Context, u uri.URI) (int64, error) {
	b, err := v.backendFor(u)
	if err != nil {
		return 0, err
	}
	return b.FileSize(ctx, u)
}

// LS lists the immediate children of the directory/prefix addressed by u.
func (v *VFS) LS(ctx context.Context, u uri.URI) ([]uri.URI, error) {
	b, err := v.backendFor(u)
	if err != nil {
		return nil, err
	}
	return b.LS(ctx, u)
}

// ReadAll reads an entire file into memory. It is a convenience built on
// FileSize + Read, used by ArraySchema.Load for the (typically small)
// __array_schema blob.
func (v *VFS) ReadAll(ctx context.Context, u uri.URI) ([]byte, error) {
	size, err := v.FileSize(ctx, u)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}
	if err := v.Read(ctx, u, 0, buf, size); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteAll writes data to u in a single WRITE-mode open/write/close
// sequence, replacing any existing file. It is a convenience built on
// Open, used by ArraySchema.Save.
func (v *VFS) WriteAll(ctx context.Context, u uri.URI, data []byte) error {
	fh, err := v.Open(ctx, u, OpenWrite)
	if err != nil {
		return err
	}
	if _, err := fh.Write(data); err != nil {
		_ = fh.Close()
		return status.Wrap(status.CategoryIOError, "vfs: write", err)
	}
	return fh.Close()
}
