package vfs

import (
	"context"
	"fmt"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
)

// Move renames/moves src to dst. Only intra-backend moves are permitted;
// a move whose endpoints resolve to different schemes fails with
// CrossBackendMove and leaves both sides untouched.
//
// If force is set and dst already exists, it is removed first; then the
// move is performed. If dst exists and force is not set, both sides are
// left untouched and an error is returned.
func (v *VFS) Move(ctx context.Context, src, dst uri.URI, force bool) error {
	if src.Scheme() != dst.Scheme() {
		return status.New(status.CategoryCrossBackendMove,
			fmt.Sprintf("move: cannot move %q (%s) to %q (%s): cross-backend move",
				src.ToString(), src.Scheme(), dst.ToString(), dst.Scheme()))
	}

	b, err := v.backendFor(src)
	if err != nil {
		return err
	}

	dstExists, err := b.IsFile(ctx, dst)
	if err != nil {
		return err
	}
	if !dstExists {
		dstExists, err = b.IsDir(ctx, dst)
		if err != nil {
			return err
		}
	}

	if dstExists {
		if !force {
			return status.New(status.CategoryVFSError,
				fmt.Sprintf("move: destination %q already exists (force not set)", dst.ToString()))
		}
		if err := b.RemoveFile(ctx, dst); err != nil {
			// dst may be a directory; RemoveDir covers that case.
			if err2 := b.RemoveDir(ctx, dst); err2 != nil {
				return err
			}
		}
	}

	return b.Move(ctx, src, dst)
}
