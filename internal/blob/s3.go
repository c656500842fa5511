package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docsearch-platform/internal/config"
)

const minioSetupTimeout = 10 * time.Second

// S3Store persists blobs to an S3-compatible endpoint (MinIO, AWS S3).
// Objects are stored as {purpose}/{key} within one bucket.
type S3Store struct {
	client *minio.Client
	bucket string
}

func NewS3Store(cfg *config.Config) (*S3Store, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), minioSetupTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.S3Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.S3Bucket, err)
		}
	}

	return &S3Store{client: client, bucket: cfg.S3Bucket}, nil
}

func (s *S3Store) objectName(key, purpose string) string {
	return purpose + "/" + key
}

func (s *S3Store) Upload(ctx context.Context, key, purpose string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(key, purpose),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return &StorageError{Op: "upload", Key: key, Err: err}
	}
	return nil
}

func (s *S3Store) Download(ctx context.Context, key, purpose string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(key, purpose), minio.GetObjectOptions{})
	if err != nil {
		return nil, &StorageError{Op: "download", Key: key, Err: err}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, &StorageError{Op: "download", Key: key, Err: err}
	}
	return data, nil
}
