// Package miniostorage keeps uploads and removal results in a MinIO bucket
package miniostorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/segmentio/ksuid"
)

const (
	// ResultPrefix - object-key prefix for removal results
	ResultPrefix  = "results/"
	DefaultBucket = "removals"
)

// Options - where the bucket lives and how to reach it
type Options struct {
	Endpoint string
	User     string
	Pass     string
	Bucket   string
	Secure   bool
}

type MinioImageStorage struct {
	bucket string
	client *minio.Client
}

// New connects to MinIO and creates the bucket on first use
func New(ctx context.Context, opts Options) (*MinioImageStorage, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("empty MinIO endpoint")
	}
	if opts.Bucket == "" {
		opts.Bucket = DefaultBucket
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.User, opts.Pass, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", opts.Bucket, err)
		}
	}

	return &MinioImageStorage{bucket: opts.Bucket, client: client}, nil
}

// SaveResult uploads a result PNG under a fresh key and returns that key
func (s *MinioImageStorage) SaveResult(ctx context.Context, png []byte) (string, error) {
	if len(png) == 0 {
		return "", errors.New("empty result passed to SaveResult")
	}

	key := ResultPrefix + ksuid.New().String() + model.GetImageFileExt[model.PNG]
	if err := s.Put(ctx, key, int64(len(png)), model.PNG, bytes.NewReader(png)); err != nil {
		return "", err
	}
	return key, nil
}

func (s *MinioImageStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *MinioImageStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// Get streams an object; a missing key is model.ErrResultNotReady
func (s *MinioImageStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}

	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", model.ErrResultNotReady
		}
		return nil, "", err
	}

	return obj, st.ContentType, nil
}
