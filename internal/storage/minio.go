package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection settings for an S3-compatible store
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// MinioSink uploads blobs to MinIO or any S3-compatible storage
type MinioSink struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioClient connects to the endpoint in cfg
func NewMinioClient(cfg MinioConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return client, nil
}

// OpenMinioSink connects to cfg.Endpoint and returns a sink writing below
// cfg.Prefix in cfg.Bucket
func OpenMinioSink(cfg MinioConfig) (*MinioSink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	client, err := NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewMinioSink(client, cfg.Bucket, cfg.Prefix), nil
}

// NewMinioSink creates a sink writing below prefix in bucket
func NewMinioSink(client *minio.Client, bucket, prefix string) *MinioSink {
	return &MinioSink{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Key returns the object key a blob name is stored under
func (s *MinioSink) Key(name string) string {
	return path.Join(s.prefix, name)
}

// Write uploads data as a single object
func (s *MinioSink) Write(ctx context.Context, name string, data []byte) error {
	key := s.Key(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("%w: s3://%s/%s: %w", ErrWriteFailed, s.bucket, key, err)
	}
	return nil
}

// EnsureBucket creates the bucket when it does not exist
func (s *MinioSink) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}
