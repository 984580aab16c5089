// Package objectstore publishes files to an S3-compatible bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the bucket connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// putter is the slice of the minio client used for publishing.
type putter interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// Destination is a transport.Destination over a MinIO/S3 bucket. Destination paths map
// to object keys with the leading slash removed.
type Destination struct {
	client putter
	bucket string
}

// NewDestination connects a minio client for cfg.
func NewDestination(cfg Config) (*Destination, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return &Destination{client: client, bucket: cfg.Bucket}, nil
}

func (d *Destination) Kind() string { return "s3" }

// ErrObjectExists is returned when overwrite is false and the key is already taken.
var ErrObjectExists = errors.New("object already exists")

// Publish uploads localPath to the object key derived from destinationPath.
func (d *Destination) Publish(ctx context.Context, localPath, destinationPath string, overwrite bool) error {
	key := ObjectKey(destinationPath)
	if key == "" {
		return fmt.Errorf("invalid destination path %q", destinationPath)
	}

	if !overwrite {
		_, err := d.client.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return fmt.Errorf("%w: %s/%s", ErrObjectExists, d.bucket, key)
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return fmt.Errorf("failed to stat %s/%s: %w", d.bucket, key, err)
		}
	}

	if _, err := d.client.FPutObject(ctx, d.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "text/csv",
	}); err != nil {
		return fmt.Errorf("failed to upload %s to %s/%s: %w", localPath, d.bucket, key, err)
	}
	return nil
}

// ObjectKey converts a partition path into an object key.
func ObjectKey(destinationPath string) string {
	return strings.TrimLeft(destinationPath, "/")
}
