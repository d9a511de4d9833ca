// Package memfs is an in-memory vfs.Backend used as a fast, deterministic
// double for posixbackend in unit tests, grounded on the teacher's
// blobstore.MemoryStore.
package memfs

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
)

// Backend is an in-memory vfs.Backend. It tracks files and directories
// as plain maps; there is no real concurrency or durability story here,
// only the minimum needed to exercise VFS/array logic without touching
// disk.
type Backend struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// New constructs an empty in-memory backend.
func New() *Backend {
	return &Backend{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

func (b *Backend) Scheme() uri.Scheme { return uri.SchemeFile }

func key(u uri.URI) string {
	p, _ := u.ToPath()
	if p == "" {
		p = u.ToString()
	}
	return strings.TrimSuffix(p, "/")
}

func (b *Backend) CreateDir(_ context.Context, u uri.URI) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirs[key(u)] = true
	return nil
}

func (b *Backend) IsDir(_ context.Context, u uri.URI) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dirs[key(u)], nil
}

func (b *Backend) RemoveDir(_ context.Context, u uri.URI) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := key(u) + "/"
	for name := range b.files {
		if strings.HasPrefix(name, prefix) {
			delete(b.files, name)
		}
	}
	for name := range b.dirs {
		if name == key(u) || strings.HasPrefix(name, prefix) {
			delete(b.dirs, name)
		}
	}
	return nil
}

func (b *Backend) CreateFile(_ context.Context, u uri.URI) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key(u)
	if _, ok := b.files[k]; !ok {
		b.files[k] = []byte{}
	}
	return nil
}

func (b *Backend) IsFile(_ context.Context, u uri.URI) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.files[key(u)]
	return ok, nil
}

func (b *Backend) RemoveFile(_ context.Context, u uri.URI) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, key(u))
	return nil
}

func (b *Backend) FileSize(_ context.Context, u uri.URI) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.files[key(u)]
	if !ok {
		return 0, status.New(status.CategoryIOError, fmt.Sprintf("memfs: %q does not exist", u.ToString()))
	}
	return int64(len(data)), nil
}

func (b *Backend) LS(_ context.Context, u uri.URI) ([]uri.URI, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	prefix := key(u) + "/"
	seen := make(map[string]bool)
	for name := range b.files {
		if strings.HasPrefix(name, prefix) {
			rest := strings.TrimPrefix(name, prefix)
			if i := strings.Index(rest, "/"); i >= 0 {
				rest = rest[:i]
			}
			seen[rest] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]uri.URI, 0, len(names))
	for _, n := range names {
		out = append(out, u.Join(n))
	}
	return out, nil
}

func (b *Backend) ReadAt(_ context.Context, u uri.URI, off int64, buf []byte) error {
	b.mu.RLock()
	data, ok := b.files[key(u)]
	b.mu.RUnlock()
	if !ok {
		return status.New(status.CategoryIOError, fmt.Sprintf("memfs: %q does not exist", u.ToString()))
	}
	if off < 0 || off > int64(len(data)) {
		return status.New(status.CategoryIOError, "memfs: offset out of range")
	}
	n := copy(buf, data[off:])
	if n < len(buf) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (b *Backend) Open(_ context.Context, u uri.URI, mode vfs.OpenMode) (vfs.FileHandle, error) {
	k := key(u)
	b.mu.Lock()
	if _, ok := b.files[k]; !ok {
		b.files[k] = []byte{}
	}
	b.mu.Unlock()
	return &handle{backend: b, key: k}, nil
}

func (b *Backend) Move(_ context.Context, src, dst uri.URI) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[key(src)]
	if !ok {
		return status.New(status.CategoryIOError, fmt.Sprintf("memfs: move: %q does not exist", src.ToString()))
	}
	delete(b.files, key(src))
	b.files[key(dst)] = data
	return nil
}

func (b *Backend) Sync(_ context.Context, _ vfs.FileHandle) error { return nil }

func (b *Backend) FilelockLock(_ context.Context, _ uri.URI, _ bool) (func() error, error) {
	return func() error { return nil }, nil
}

// handle is the append-only FileHandle memfs hands back from Open.
type handle struct {
	backend *Backend
	key     string
}

func (h *handle) Write(p []byte) (int, error) {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	h.backend.files[h.key] = append(h.backend.files[h.key], p...)
	return len(p), nil
}

func (h *handle) Close() error { return nil }

func (h *handle) Sync() error { return nil }

var _ vfs.Backend = (*Backend)(nil)
