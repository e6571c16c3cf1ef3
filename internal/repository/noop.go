package repository

import (
	"context"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/model"
)

// NoopRemovalRepo - ЗАГЛУШКА для запусков без базы (CLI): история не ведется
type NoopRemovalRepo struct{}

func (NoopRemovalRepo) Create(context.Context, *model.Removal) error { return nil }

func (NoopRemovalRepo) Delete(context.Context, string) error { return model.ErrRemovalNotFound }

func (NoopRemovalRepo) Get(context.Context, string) (*model.Removal, error) {
	return nil, model.ErrRemovalNotFound
}

func (NoopRemovalRepo) GetList(context.Context, *model.ListRequest) ([]model.Removal, error) {
	return []model.Removal{}, nil
}

func (NoopRemovalRepo) SaveResult(context.Context, *model.Removal) error { return nil }

func (NoopRemovalRepo) UpdateStatus(context.Context, string, model.Status) error { return nil }

func (NoopRemovalRepo) FailStale(context.Context, time.Duration, string, int) ([]string, error) {
	return nil, nil
}
