package vfs

import (
	"context"
	"fmt"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
)

// FileState is a file handle's position in the open/close state machine
// (spec.md S:4.3): CLOSED -> {READING, WRITING, APPENDING} -> CLOSED.
type FileState uint8

const (
	StateClosed FileState = iota
	StateReading
	StateWriting
	StateAppending
)

func (s FileState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateReading:
		return "READING"
	case StateWriting:
		return "WRITING"
	case StateAppending:
		return "APPENDING"
	default:
		return "UNKNOWN"
	}
}

// File is a stateful VFS-level file handle layered over a backend
// FileHandle. It exists so callers get a single object whose Close always
// transitions back to CLOSED regardless of which mode it was opened in.
type File struct {
	vfs   *VFS
	u     uri.URI
	state FileState
	fh    FileHandle
}

// Open transitions a file from CLOSED into READING, WRITING, or
// APPENDING.
//
//   - OpenRead requires the file to already exist.
//   - OpenWrite always starts from an empty file: any existing file at u
//     is removed first.
//   - OpenAppend is rejected on object-store backends (they have no
//     server-side append primitive); it is accepted on local and HDFS
//     backends.
func (v *VFS) Open(ctx context.Context, u uri.URI, mode OpenMode) (*File, error) {
	b, err := v.backendFor(u)
	if err != nil {
		return nil, err
	}

	switch mode {
	case OpenRead:
		ok, err := b.IsFile(ctx, u)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, status.New(status.CategoryIOError,
				fmt.Sprintf("open(READ): %q does not exist", u.ToString()))
		}
		return &File{vfs: v, u: u, state: StateReading}, nil

	case OpenWrite:
		exists, err := b.IsFile(ctx, u)
		if err != nil {
			return nil, err
		}
		if exists {
			if err := b.RemoveFile(ctx, u); err != nil {
				return nil, err
			}
		}
		fh, err := b.Open(ctx, u, OpenWrite)
		if err != nil {
			return nil, err
		}
		return &File{vfs: v, u: u, state: StateWriting, fh: fh}, nil

	case OpenAppend:
		if _, isObjectStore := b.(ObjectStoreBackend); isObjectStore {
			return nil, status.New(status.CategoryVFSError,
				fmt.Sprintf("open(APPEND): append is not supported on object-store uri %q", u.ToString()))
		}
		fh, err := b.Open(ctx, u, OpenAppend)
		if err != nil {
			return nil, err
		}
		return &File{vfs: v, u: u, state: StateAppending, fh: fh}, nil

	default:
		return nil, status.New(status.CategoryVFSError, fmt.Sprintf("open: unknown mode %v", mode))
	}
}

// State reports the file's current position in the open/close state
// machine.
func (f *File) State() FileState { return f.state }

// Write appends p to a file opened OpenWrite or OpenAppend. It is an
// error to call Write on a file opened OpenRead.
func (f *File) Write(p []byte) (int, error) {
	if f.state != StateWriting && f.state != StateAppending {
		return 0, status.New(status.CategoryVFSError, "write: file is not open for writing")
	}
	return f.fh.Write(p)
}

// ReadAt reads len(p) bytes at offset off. It is valid only on a file
// opened OpenRead, and dispatches through VFS.Read so large reads are
// parallelised the same way a caller reading directly through VFS.Read
// would be.
func (f *File) ReadAt(ctx context.Context, off int64, p []byte) error {
	if f.state != StateReading {
		return status.New(status.CategoryVFSError, "read: file is not open for reading")
	}
	return f.vfs.Read(ctx, f.u, off, p, int64(len(p)))
}

// Sync flushes buffered writes to the backend without closing the file.
func (f *File) Sync(ctx context.Context) error {
	if f.fh == nil {
		return nil
	}
	return f.vfs.syncHandle(ctx, f.u, f.fh)
}

// Close flushes buffered writes (for writing/appending files) and
// transitions the file back to CLOSED. Close is idempotent.
func (f *File) Close() error {
	if f.state == StateClosed {
		return nil
	}
	f.state = StateClosed
	if f.fh == nil {
		return nil
	}
	fh := f.fh
	f.fh = nil
	return fh.Close()
}

func (v *VFS) syncHandle(ctx context.Context, u uri.URI, fh FileHandle) error {
	b, err := v.backendFor(u)
	if err != nil {
		return err
	}
	return b.Sync(ctx, fh)
}
