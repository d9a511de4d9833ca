package s3backend

import (
	"fmt"
	"strings"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
)

// bucketKey splits an s3://bucket/key URI into its bucket and key parts.
func bucketKey(u uri.URI) (bucket, key string, err error) {
	raw := u.ToString()
	const prefix = "s3://"
	if !strings.HasPrefix(raw, prefix) {
		return "", "", status.New(status.CategoryVFSError, fmt.Sprintf("s3backend: %q is not an s3 uri", raw))
	}
	rest := raw[len(prefix):]
	i := strings.Index(rest, "/")
	if i < 0 {
		return rest, "", nil
	}
	return rest[:i], strings.TrimPrefix(rest[i+1:], "/"), nil
}
