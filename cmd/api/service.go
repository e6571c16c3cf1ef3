package main

import (
	"context"

	"github.com/UnendingLoop/BgRemover/internal/transport"
)

// RemovalAPIService - всё, что нужно API от сервиса: хендлеры и периодическая чистка
type RemovalAPIService interface {
	transport.RemovalService
	FailStale(ctx context.Context, limit int)
}
