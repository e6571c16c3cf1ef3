// Package storage picks where removal results are kept
package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/storage/localstorage"
	"github.com/UnendingLoop/BgRemover/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
)

const (
	KindLocal = "local"
	KindMinio = "minio"
)

// ResultStore - contract shared by the local and MinIO stores
type ResultStore interface {
	SaveResult(ctx context.Context, png []byte) (string, error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// NewResultStore builds the store named by RESULT_STORE; MinIO is retried every delay until ctx is done
func NewResultStore(ctx context.Context, cfg *config.Config, delay time.Duration) (ResultStore, error) {
	switch kind := cfg.GetString("RESULT_STORE"); kind {
	case "", KindLocal:
		return localstorage.New(cfg.GetString("RESULT_DIR"))
	case KindMinio:
		return connectMinio(ctx, cfg, delay)
	default:
		return nil, fmt.Errorf("unknown RESULT_STORE %q", kind)
	}
}

func connectMinio(ctx context.Context, cfg *config.Config, delay time.Duration) (*miniostorage.MinioImageStorage, error) {
	for {
		log.Println("Connecting to result storage...")
		client, err := miniostorage.New(ctx, minioOptions(cfg))
		if err == nil {
			log.Println("Successfully connected result storage!")
			return client, nil
		}

		log.Printf("Failed to init connection to result storage: %v\nNext retry in %v...", err, delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func minioOptions(cfg *config.Config) miniostorage.Options {
	endpoint := cfg.GetString("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = cfg.GetString("MINIO_CONTAINER_NAME") + ":9000"
	}
	return miniostorage.Options{
		Endpoint: endpoint,
		User:     cfg.GetString("MINIO_USER"),
		Pass:     cfg.GetString("MINIO_PASS"),
		Bucket:   cfg.GetString("BUCKET_NAME"),
		Secure:   cfg.GetBool("MINIO_SECURE"),
	}
}
