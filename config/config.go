// Package config collects the vfs.* configuration keys of spec.md S:6 into
// a Config struct built through functional Options, grounded on the
// teacher's options.go Option func(*options) / With* pattern.
package config

import (
	"time"

	"github.com/hupe1980/tilestore/vfs/s3backend"
)

// Config holds every vfs.* setting a VFS and its backends are constructed
// from. The zero value is not directly usable; call New to get defaults.
type Config struct {
	// NumParallelOperations sizes the ThreadPool VFS uses to shard large
	// reads (vfs.num_parallel_operations).
	NumParallelOperations int

	// ParallelReadThresholdBytes is the read size below which VFS.Read
	// skips sharding (vfs.parallel_read_threshold_bytes).
	ParallelReadThresholdBytes int64

	// S3 mirrors the vfs.s3.* namespace, passed through to s3backend.New.
	S3 s3backend.Config

	// HDFSNamenode, HDFSUser, HDFSTimeout mirror the vfs.hdfs.* namespace,
	// passed through to hdfsbackend.New.
	HDFSNamenode string
	HDFSUser     string
	HDFSTimeout  time.Duration
}

// Option configures a Config at construction.
type Option func(*Config)

// WithNumParallelOperations sets vfs.num_parallel_operations.
func WithNumParallelOperations(n int) Option {
	return func(c *Config) { c.NumParallelOperations = n }
}

// WithParallelReadThresholdBytes sets vfs.parallel_read_threshold_bytes.
func WithParallelReadThresholdBytes(n int64) Option {
	return func(c *Config) { c.ParallelReadThresholdBytes = n }
}

// WithS3 sets the vfs.s3.* namespace wholesale.
func WithS3(s3 s3backend.Config) Option {
	return func(c *Config) { c.S3 = s3 }
}

// WithHDFS sets the vfs.hdfs.* namespace.
func WithHDFS(namenode, user string, timeout time.Duration) Option {
	return func(c *Config) {
		c.HDFSNamenode = namenode
		c.HDFSUser = user
		c.HDFSTimeout = timeout
	}
}

// New builds a Config from defaults (matching vfs.DefaultParallelReadThreshold
// and s3backend.DefaultConfig) plus the given Options, applied in order.
func New(opts ...Option) Config {
	c := Config{
		NumParallelOperations:      4,
		ParallelReadThresholdBytes: 1 << 20,
		S3:                         s3backend.DefaultConfig(),
		HDFSTimeout:                30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}
