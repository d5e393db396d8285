// Package minio provides a blobstore.Store backed by MinIO or any S3-compatible server
// reachable through the MinIO client.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pdfrag/internal/blobstore"
)

// Config holds connection details.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
	Secure    bool
}

// Store implements blobstore.Store for MinIO.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

// New connects to the server described by cfg.
func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return NewStore(client, cfg.Bucket, cfg.Prefix, cfg.Region), nil
}

// NewStore wraps an existing client. prefix is prepended to all keys.
func NewStore(client *minio.Client, bucket, prefix, region string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix, region: region}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Location returns the bucket URL of the store.
func (s *Store) Location() string {
	return fmt.Sprintf("minio://%s/%s", s.bucket, s.prefix)
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
}

// Get downloads a blob.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, mapErr(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapErr(err)
	}
	return data, nil
}

// Put uploads a blob in a single request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func mapErr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		return blobstore.ErrNotFound
	}
	return err
}
