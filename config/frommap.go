package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/vfs/s3backend"
)

// FromMap builds a Config from a flat vfs.*-namespaced key/value map, the
// form a TOML/JSON/env-var config loader would hand off after flattening
// (spec.md S:6 lists every key below). Unknown keys are ignored; parse
// failures return a status.CategoryConfigError.
func FromMap(m map[string]string) (Config, error) {
	c := New()

	if v, ok := m["vfs.num_parallel_operations"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, configParseErr("vfs.num_parallel_operations", v, err)
		}
		c.NumParallelOperations = n
	}
	if v, ok := m["vfs.parallel_read_threshold_bytes"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, configParseErr("vfs.parallel_read_threshold_bytes", v, err)
		}
		c.ParallelReadThresholdBytes = n
	}

	if v, ok := m["vfs.s3.scheme"]; ok {
		c.S3.Scheme = schemeFromString(v)
	}
	if v, ok := m["vfs.s3.region"]; ok {
		c.S3.Region = v
	}
	if v, ok := m["vfs.s3.endpoint_override"]; ok {
		c.S3.EndpointOverride = v
	}
	if v, ok := m["vfs.s3.use_virtual_addressing"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, configParseErr("vfs.s3.use_virtual_addressing", v, err)
		}
		c.S3.UseVirtualAddressing = b
	}
	if v, ok := m["vfs.s3.file_buffer_size"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, configParseErr("vfs.s3.file_buffer_size", v, err)
		}
		c.S3.FileBufferSize = n
	}
	if v, ok := m["vfs.s3.connect_timeout_ms"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, configParseErr("vfs.s3.connect_timeout_ms", v, err)
		}
		c.S3.ConnectTimeout = time.Duration(n) * time.Millisecond
	}
	if v, ok := m["vfs.s3.request_timeout_ms"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, configParseErr("vfs.s3.request_timeout_ms", v, err)
		}
		c.S3.RequestTimeout = time.Duration(n) * time.Millisecond
	}

	if v, ok := m["vfs.hdfs.namenode"]; ok {
		c.HDFSNamenode = v
	}
	if v, ok := m["vfs.hdfs.user"]; ok {
		c.HDFSUser = v
	}
	if v, ok := m["vfs.hdfs.timeout_ms"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, configParseErr("vfs.hdfs.timeout_ms", v, err)
		}
		c.HDFSTimeout = time.Duration(n) * time.Millisecond
	}

	return c, nil
}

func schemeFromString(s string) s3backend.Scheme {
	if s == "http" {
		return s3backend.SchemeHTTP
	}
	return s3backend.SchemeHTTPS
}

func configParseErr(key, value string, cause error) error {
	return status.Wrap(status.CategoryConfigError, fmt.Sprintf("config: invalid value %q for %s", value, key), cause)
}
