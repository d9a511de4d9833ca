package s3backend

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBackend is the vfs.ObjectStoreBackend implementation used when
// Config.UsesEndpointOverride is set: a self-hosted or otherwise
// S3-compatible store reachable only via an explicit endpoint, grounded
// on blobstore/minio/minio_store.go's StatObject/GetObject-with-Range/
// PutObject usage.
type MinioBackend struct {
	client *minio.Client
}

// NewMinioBackend dials an S3-compatible endpoint with static or
// environment-chain credentials via minio-go/v7.
func NewMinioBackend(cfg Config, accessKey, secretKey string) (*MinioBackend, error) {
	if cfg.EndpointOverride == "" {
		return nil, status.New(status.CategoryConfigError, "s3backend: minio backend requires vfs.s3.endpoint_override")
	}

	var creds *credentials.Credentials
	if accessKey != "" || secretKey != "" {
		creds = credentials.NewStaticV4(accessKey, secretKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(cfg.EndpointOverride, &minio.Options{
		Creds:  creds,
		Secure: cfg.Scheme == SchemeHTTPS,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, status.Wrap(status.CategoryS3Error, "s3backend: dial minio endpoint", err)
	}
	return &MinioBackend{client: client}, nil
}

func (b *MinioBackend) Scheme() uri.Scheme { return uri.SchemeObjectStore }

func (b *MinioBackend) CreateDir(context.Context, uri.URI) error { return nil }

func (b *MinioBackend) IsDir(ctx context.Context, u uri.URI) (bool, error) {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return false, err
	}
	prefix := key
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	ch := b.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, MaxKeys: 1})
	for obj := range ch {
		if obj.Err != nil {
			return false, status.Wrap(status.CategoryS3Error, "s3backend: minio list", obj.Err)
		}
		return true, nil
	}
	return false, nil
}

func (b *MinioBackend) RemoveDir(ctx context.Context, u uri.URI) error {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return err
	}
	prefix := key
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	objCh := b.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for obj := range objCh {
		if obj.Err != nil {
			return status.Wrap(status.CategoryS3Error, "s3backend: minio list for remove dir", obj.Err)
		}
		if err := b.client.RemoveObject(ctx, bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return status.Wrap(status.CategoryS3Error, "s3backend: minio remove dir", err)
		}
	}
	return nil
}

func (b *MinioBackend) CreateFile(ctx context.Context, u uri.URI) error {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return err
	}
	_, err = b.client.PutObject(ctx, bucket, key, emptyReader{}, 0, minio.PutObjectOptions{})
	if err != nil {
		return status.Wrap(status.CategoryS3Error, "s3backend: minio create file", err)
	}
	return nil
}

func (b *MinioBackend) IsFile(ctx context.Context, u uri.URI) (bool, error) {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return false, err
	}
	_, err = b.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, status.Wrap(status.CategoryS3Error, "s3backend: minio stat", err)
	}
	return true, nil
}

func (b *MinioBackend) RemoveFile(ctx context.Context, u uri.URI) error {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return err
	}
	if err := b.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return status.Wrap(status.CategoryS3Error, "s3backend: minio remove file", err)
	}
	return nil
}

func (b *MinioBackend) FileSize(ctx context.Context, u uri.URI) (int64, error) {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return 0, err
	}
	info, err := b.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, status.Wrap(status.CategoryS3Error, "s3backend: minio stat", err)
	}
	return info.Size, nil
}

func (b *MinioBackend) LS(ctx context.Context, u uri.URI) ([]uri.URI, error) {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return nil, err
	}
	prefix := key
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	var out []uri.URI
	ch := b.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix})
	for obj := range ch {
		if obj.Err != nil {
			return nil, status.Wrap(status.CategoryS3Error, "s3backend: minio ls", obj.Err)
		}
		name := trimPrefix(obj.Key, prefix)
		if name == "" {
			continue
		}
		out = append(out, u.Join(name))
	}
	return out, nil
}

// ReadAt issues a ranged GetObject, mirroring the Backend (AWS SDK)
// implementation's use of an HTTP Range request.
func (b *MinioBackend) ReadAt(ctx context.Context, u uri.URI, off int64, buf []byte) error {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return err
	}
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, off+int64(len(buf))-1); err != nil {
		return status.Wrap(status.CategoryS3Error, "s3backend: minio set range", err)
	}
	obj, err := b.client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return status.Wrap(status.CategoryS3Error, "s3backend: minio get object", err)
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return status.Wrap(status.CategoryS3Error, "s3backend: minio read object body", err)
	}
	if n < len(buf) {
		return status.New(status.CategoryS3Error, fmt.Sprintf("s3backend: minio short read of %q (%d/%d bytes)", u.ToString(), n, len(buf)))
	}
	return nil
}

func (b *MinioBackend) Open(ctx context.Context, u uri.URI, mode vfs.OpenMode) (vfs.FileHandle, error) {
	if mode != vfs.OpenWrite {
		return nil, status.New(status.CategoryVFSError, fmt.Sprintf("s3backend: minio open: unsupported mode %v", mode))
	}
	bucket, key, err := bucketKey(u)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	h := &minioWritableHandle{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := b.client.PutObject(ctx, bucket, key, pr, -1, minio.PutObjectOptions{})
		_ = pr.CloseWithError(err)
		h.done <- err
	}()
	return h, nil
}

func (b *MinioBackend) Move(ctx context.Context, src, dst uri.URI) error {
	srcBucket, srcKey, err := bucketKey(src)
	if err != nil {
		return err
	}
	dstBucket, dstKey, err := bucketKey(dst)
	if err != nil {
		return err
	}
	_, err = b.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey},
	)
	if err != nil {
		return status.Wrap(status.CategoryS3Error, "s3backend: minio move (copy)", err)
	}
	if err := b.client.RemoveObject(ctx, srcBucket, srcKey, minio.RemoveObjectOptions{}); err != nil {
		return status.Wrap(status.CategoryS3Error, "s3backend: minio move (remove source)", err)
	}
	return nil
}

func (b *MinioBackend) Sync(context.Context, vfs.FileHandle) error { return nil }

func (b *MinioBackend) FilelockLock(context.Context, uri.URI, bool) (func() error, error) {
	return func() error { return nil }, nil
}

func (b *MinioBackend) CreateBucket(ctx context.Context, u uri.URI) error {
	bucket, _, err := bucketKey(u)
	if err != nil {
		return err
	}
	if err := b.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return status.Wrap(status.CategoryS3Error, "s3backend: minio create bucket", err)
	}
	return nil
}

func (b *MinioBackend) RemoveBucket(ctx context.Context, u uri.URI) error {
	bucket, _, err := bucketKey(u)
	if err != nil {
		return err
	}
	if err := b.client.RemoveBucket(ctx, bucket); err != nil {
		return status.Wrap(status.CategoryS3Error, "s3backend: minio remove bucket", err)
	}
	return nil
}

func (b *MinioBackend) EmptyBucket(ctx context.Context, u uri.URI) error {
	return b.RemoveDir(ctx, u.Join(""))
}

func (b *MinioBackend) IsBucket(ctx context.Context, u uri.URI) (bool, error) {
	bucket, _, err := bucketKey(u)
	if err != nil {
		return false, err
	}
	ok, err := b.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, status.Wrap(status.CategoryS3Error, "s3backend: minio bucket exists", err)
	}
	return ok, nil
}

func (b *MinioBackend) IsEmptyBucket(ctx context.Context, u uri.URI) (bool, error) {
	bucket, _, err := bucketKey(u)
	if err != nil {
		return false, err
	}
	ch := b.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{MaxKeys: 1})
	for obj := range ch {
		if obj.Err != nil {
			return false, status.Wrap(status.CategoryS3Error, "s3backend: minio list for empty check", obj.Err)
		}
		return false, nil
	}
	return true, nil
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }

type minioWritableHandle struct {
	pw   *io.PipeWriter
	done chan error
}

func (h *minioWritableHandle) Write(p []byte) (int, error) { return h.pw.Write(p) }

func (h *minioWritableHandle) Close() error {
	if err := h.pw.Close(); err != nil {
		return err
	}
	return <-h.done
}

func (h *minioWritableHandle) Sync() error { return nil }

var (
	_ vfs.Backend            = (*MinioBackend)(nil)
	_ vfs.ObjectStoreBackend = (*MinioBackend)(nil)
)
