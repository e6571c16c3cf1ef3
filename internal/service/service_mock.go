package service

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/bridge"
	"github.com/UnendingLoop/BgRemover/internal/model"
)

// MOCK REPOSITORY

type mockRepo struct {
	createFn       func(ctx context.Context, r *model.Removal) error
	getFn          func(ctx context.Context, id string) (*model.Removal, error)
	getListFn      func(ctx context.Context, req *model.ListRequest) ([]model.Removal, error)
	deleteFn       func(ctx context.Context, id string) error
	updateStatusFn func(ctx context.Context, id string, st model.Status) error
	saveResultFn   func(ctx context.Context, r *model.Removal) error
	failStaleFn    func(ctx context.Context, olderThan time.Duration, reason string, limit int) ([]string, error)
}

func (m *mockRepo) Create(ctx context.Context, r *model.Removal) error {
	return m.createFn(ctx, r)
}

func (m *mockRepo) Get(ctx context.Context, id string) (*model.Removal, error) {
	return m.getFn(ctx, id)
}

func (m *mockRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Removal, error) {
	return m.getListFn(ctx, req)
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id string, st model.Status) error {
	return m.updateStatusFn(ctx, id, st)
}

func (m *mockRepo) SaveResult(ctx context.Context, r *model.Removal) error {
	return m.saveResultFn(ctx, r)
}

func (m *mockRepo) FailStale(ctx context.Context, olderThan time.Duration, reason string, limit int) ([]string, error) {
	return m.failStaleFn(ctx, olderThan, reason, limit)
}

// MOCK REMOVER

type mockRemover struct {
	submitFn func(ctx context.Context, ref string, tolerance float64) (bridge.Outcome, error)
}

func (m *mockRemover) Submit(ctx context.Context, ref string, tolerance float64) (bridge.Outcome, error) {
	return m.submitFn(ctx, ref, tolerance)
}

// MOCK STORAGE

type mockStorage struct {
	putFn    func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	getFn    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	deleteFn func(ctx context.Context, key string) error
	pathFn   func(key string) (string, error)
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.deleteFn(ctx, key)
}

func (m *mockStorage) Path(key string) (string, error) {
	return m.pathFn(key)
}

// MOCK для multipart.File
type fakeMultipartFile struct {
	*bytes.Reader
}

func (f *fakeMultipartFile) Close() error {
	return nil
}
