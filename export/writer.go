package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Writer stores one named export file. Writing an existing name replaces it.
type Writer interface {
	Write(ctx context.Context, name string, data []byte) error
}

// DirWriter writes files into a local directory. Each file is written to a
// temporary name and renamed into place, so a file is either complete or absent.
type DirWriter struct {
	dir string
}

var _ Writer = (*DirWriter)(nil)

// NewDirWriter creates dir if needed and returns a writer for it.
func NewDirWriter(dir string) (*DirWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &DirWriter{dir: dir}, nil
}

// Write implements Writer.
func (w *DirWriter) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(w.dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// MinioConfig holds connection settings for an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string // host:port, without scheme
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // Prepended to every object key
	Region    string
	Secure    bool
}

// MinioWriter uploads files to an S3-compatible bucket.
type MinioWriter struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ Writer = (*MinioWriter)(nil)

// NewMinioWriter connects to the endpoint in cfg.
func NewMinioWriter(cfg MinioConfig) (*MinioWriter, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return NewMinioWriterWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewMinioWriterWithClient wraps an existing client.
func NewMinioWriterWithClient(client *minio.Client, bucket, prefix string) *MinioWriter {
	return &MinioWriter{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// EnsureBucket creates the bucket if it does not exist.
func (w *MinioWriter) EnsureBucket(ctx context.Context) error {
	exists, err := w.client.BucketExists(ctx, w.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", w.bucket, err)
	}
	if exists {
		return nil
	}
	if err := w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", w.bucket, err)
	}
	return nil
}

// Write implements Writer. S3 puts are atomic per object.
func (w *MinioWriter) Write(ctx context.Context, name string, data []byte) error {
	key := path.Join(w.prefix, name)
	_, err := w.client.PutObject(ctx, w.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func contentType(name string) string {
	if path.Ext(name) == ".zst" {
		return "application/zstd"
	}
	return "text/csv"
}
