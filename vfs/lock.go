package vfs

import (
	"context"

	"github.com/hupe1980/tilestore/uri"
)

// Lock acquires an advisory filelock on u -- shared for read, exclusive
// for write/consolidate -- and returns a release closure. Callers
// acquire-then-defer:
//
//	release, err := vfs.Lock(ctx, arrayURI, true)
//	if err != nil { return err }
//	defer release()
//
// so the lock is guaranteed released on every exit path, the Go idiom
// for the original's scoped-acquisition RAII guard.
//
// Local backends take a real OS-level advisory lock (unix.Flock).
// HDFS and object-store backends treat this as a no-op that always
// succeeds, per spec.md S:4.3.
func (v *VFS) Lock(ctx context.Context, u uri.URI, exclusive bool) (func() error, error) {
	b, err := v.backendFor(u)
	if err != nil {
		return nil, err
	}
	return b.FilelockLock(ctx, u, exclusive)
}
