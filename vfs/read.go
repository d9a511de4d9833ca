package vfs

import (
	"context"
	"fmt"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/threadpool"
	"github.com/hupe1980/tilestore/uri"
)

// Read fills buf[:n] with the n bytes of u starting at offset. It is an
// error if !IsFile(u).
//
// When n is below the configured parallel-read threshold, or the VFS's
// thread pool has a single worker, Read performs one synchronous backend
// read. Otherwise it splits [0, n) into NumThreads() contiguous,
// disjoint shards (the last possibly shorter), enqueues one backend read
// per shard against a private slice of buf, and waits for all of them.
// If any shard fails, Read returns a ParallelReadError carrying the
// first failure's category.
func (v *VFS) Read(ctx context.Context, u uri.URI, offset int64, buf []byte, n int64) error {
	isFile, err := v.IsFile(ctx, u)
	if err != nil {
		return err
	}
	if !isFile {
		return status.New(status.CategoryIOError, fmt.Sprintf("read: %q is not a file", u.ToString()))
	}
	if n < 0 || int64(len(buf)) < n {
		return status.New(status.CategoryVFSError, "read: buffer shorter than requested length")
	}

	b, err := v.backendFor(u)
	if err != nil {
		return err
	}

	numThreads := v.pool.NumThreads()
	if n < v.parallelReadThreshold || numThreads == 1 {
		return b.ReadAt(ctx, u, offset, buf[:n])
	}

	shards := planShards(n, numThreads)
	handles := make([]*threadpool.Handle, 0, len(shards))
	for _, s := range shards {
		s := s
		handles = append(handles, v.pool.Enqueue(func() (any, error) {
			return nil, b.ReadAt(ctx, u, offset+s.begin, buf[s.begin:s.begin+s.length])
		}))
	}

	var firstErr error
	for _, h := range handles {
		if _, err := h.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		cat := status.CategoryIOError
		var st *status.Status
		if ok := castStatus(firstErr, &st); ok {
			cat = st.Category
		}
		return status.Wrapf(status.CategoryParallelReadError, firstErr,
			"vfs: parallel read of %q failed (first failure category %s)", u.ToString(), cat)
	}
	return nil
}

func castStatus(err error, out **status.Status) bool {
	s, ok := err.(*status.Status)
	if !ok {
		return false
	}
	*out = s
	return true
}

type shard struct {
	begin, length int64
}

// planShards splits [0, n) into numThreads contiguous, disjoint shards
// of size ceil(n/numThreads); the last shard may be shorter. It always
// covers [0, n) exactly. numThreads must be >= 1.
func planShards(n int64, numThreads int) []shard {
	if numThreads < 1 {
		numThreads = 1
	}
	shardLen := (n + int64(numThreads) - 1) / int64(numThreads)
	if shardLen == 0 {
		return nil
	}
	shards := make([]shard, 0, numThreads)
	for begin := int64(0); begin < n; begin += shardLen {
		length := shardLen
		if begin+length > n {
			length = n - begin
		}
		shards = append(shards, shard{begin: begin, length: length})
	}
	return shards
}
