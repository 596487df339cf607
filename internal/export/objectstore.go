package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore receives snapshot uploads.
type ObjectStore interface {
	Bucket() string
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// MinioStore writes snapshots to an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
}

type MinioConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, ErrObjectStoreDisabled
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *MinioStore) Bucket() string {
	return m.bucket
}

func (m *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}
