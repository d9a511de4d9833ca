package vfs

import (
	"context"
	"io"

	"github.com/hupe1980/tilestore/uri"
)

// OpenMode is the I/O mode a backend file is opened in.
type OpenMode uint8

const (
	OpenRead OpenMode = iota
	OpenWrite
	OpenAppend
)

func (m OpenMode) String() string {
	switch m {
	case OpenRead:
		return "READ"
	case OpenWrite:
		return "WRITE"
	case OpenAppend:
		return "APPEND"
	default:
		return "UNKNOWN"
	}
}

// FileHandle is an open backend file. Write appends (backends are
// append-oriented, matching the array engine's fragment files); Close
// flushes and releases any backend-side resources.
type FileHandle interface {
	io.Writer
	io.Closer
	Sync() error
}

// Backend is the capability set every URI scheme implementation must
// provide. Any operation a backend doesn't support may return
// status.ErrUnsupportedScheme-class errors; VFS itself maps unregistered
// schemes to BackendDisabled before ever reaching a Backend method.
type Backend interface {
	Scheme() uri.Scheme

	CreateDir(ctx context.Context, u uri.URI) error
	IsDir(ctx context.Context, u uri.URI) (bool, error)
	RemoveDir(ctx context.Context, u uri.URI) error

	CreateFile(ctx context.Context, u uri.URI) error
	IsFile(ctx context.Context, u uri.URI) (bool, error)
	RemoveFile(ctx context.Context, u uri.URI) error
	FileSize(ctx context.Context, u uri.URI) (int64, error)

	LS(ctx context.Context, u uri.URI) ([]uri.URI, error)

	// ReadAt reads exactly len(buf) bytes at offset off. It is the
	// backend-local primitive VFS.Read shards across the thread pool.
	ReadAt(ctx context.Context, u uri.URI, off int64, buf []byte) error

	// Open returns a FileHandle for sequential writes. mode is one of
	// OpenWrite or OpenAppend; OpenRead is served by ReadAt and has no
	// open-file state. A backend that does not support a mode (object
	// stores reject OpenAppend) returns a VFSError status; VFS.Open checks
	// for ObjectStoreBackend before calling it with OpenAppend.
	Open(ctx context.Context, u uri.URI, mode OpenMode) (FileHandle, error)

	// Move performs an intra-backend rename/move. VFS rejects
	// cross-scheme moves before ever calling this.
	Move(ctx context.Context, src, dst uri.URI) error

	Sync(ctx context.Context, fh FileHandle) error

	// FilelockLock acquires an advisory lock (shared if !exclusive) and
	// returns a release closure. Backends without real locking (HDFS,
	// object stores) return a no-op release and a nil error.
	FilelockLock(ctx context.Context, u uri.URI, exclusive bool) (release func() error, err error)
}

// ObjectStoreBackend is the extended capability set object-store
// backends additionally expose. A Backend that is also an
// ObjectStoreBackend unlocks VFS's bucket operations for its scheme.
type ObjectStoreBackend interface {
	Backend

	CreateBucket(ctx context.Context, u uri.URI) error
	RemoveBucket(ctx context.Context, u uri.URI) error
	EmptyBucket(ctx context.Context, u uri.URI) error
	IsBucket(ctx context.Context, u uri.URI) (bool, error)
	IsEmptyBucket(ctx context.Context, u uri.URI) (bool, error)
}
