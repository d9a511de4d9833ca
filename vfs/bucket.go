package vfs

import (
	"context"
	"fmt"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
)

// objectStoreBackendFor resolves u's backend and asserts it also
// implements ObjectStoreBackend; bucket operations are only valid for
// object-store URIs (spec.md S:4.3).
func (v *VFS) objectStoreBackendFor(u uri.URI) (ObjectStoreBackend, error) {
	b, err := v.backendFor(u)
	if err != nil {
		return nil, err
	}
	ob, ok := b.(ObjectStoreBackend)
	if !ok {
		return nil, status.New(status.CategoryVFSError,
			fmt.Sprintf("bucket operation on non-object-store uri %q", u.ToString()))
	}
	return ob, nil
}

// CreateBucket creates the bucket addressed by u.
func (v *VFS) CreateBucket(ctx context.Context, u uri.URI) error {
	b, err := v.objectStoreBackendFor(u)
	if err != nil {
		return err
	}
	return b.CreateBucket(ctx, u)
}

// RemoveBucket removes the bucket addressed by u.
func (v *VFS) RemoveBucket(ctx context.Context, u uri.URI) error {
	b, err := v.objectStoreBackendFor(u)
	if err != nil {
		return err
	}
	return b.RemoveBucket(ctx, u)
}

// EmptyBucket deletes every object in the bucket addressed by u without
// removing the bucket itself.
func (v *VFS) EmptyBucket(ctx context.Context, u uri.URI) error {
	b, err := v.objectStoreBackendFor(u)
	if err != nil {
		return err
	}
	return b.EmptyBucket(ctx, u)
}

// IsBucket reports whether the bucket addressed by u exists.
func (v *VFS) IsBucket(ctx context.Context, u uri.URI) (bool, error) {
	b, err := v.objectStoreBackendFor(u)
	if err != nil {
		return false, err
	}
	return b.IsBucket(ctx, u)
}

// IsEmptyBucket reports whether the bucket addressed by u exists and
// contains no objects.
func (v *VFS) IsEmptyBucket(ctx context.Context, u uri.URI) (bool, error) {
	b, err := v.objectStoreBackendFor(u)
	if err != nil {
		return false, err
	}
	return b.IsEmptyBucket(ctx, u)
}
