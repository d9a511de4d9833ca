// Package s3backend implements vfs.ObjectStoreBackend over S3-compatible
// object storage: github.com/aws/aws-sdk-go-v2 for real AWS S3, and
// github.com/minio/minio-go/v7 as an alternate client for
// vfs.s3.endpoint_override (MinIO and other S3-compatible stores),
// grounded on the teacher's blobstore/s3 and blobstore/minio packages.
package s3backend

import "time"

// Scheme is http or https for an S3-compatible endpoint (vfs.s3.scheme).
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// Config mirrors the vfs.s3.* configuration keys of spec.md S:6.
type Config struct {
	Scheme                Scheme
	Region                string
	EndpointOverride      string
	UseVirtualAddressing  bool
	FileBufferSize        int
	ConnectTimeout        time.Duration
	RequestTimeout        time.Duration
}

// DefaultConfig returns the zero-value-safe defaults: https, no region
// override (resolved from the default AWS credential chain), no
// endpoint override (real AWS S3, not a MinIO-compatible store),
// virtual-host addressing, and generous timeouts.
func DefaultConfig() Config {
	return Config{
		Scheme:               SchemeHTTPS,
		UseVirtualAddressing: true,
		FileBufferSize:       5 * 1024 * 1024,
		ConnectTimeout:       10 * time.Second,
		RequestTimeout:       60 * time.Second,
	}
}

// UsesEndpointOverride reports whether cfg names an S3-compatible
// endpoint (MinIO, etc.) rather than real AWS S3. Neither New nor
// NewMinioBackend calls it; callers use it to choose between them.
func (c Config) UsesEndpointOverride() bool {
	return c.EndpointOverride != ""
}
