package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/gin-gonic/gin"
)

type mockRemovalService struct {
	createFn        func(ctx context.Context, req *model.RemovalRequest) (*model.Removal, error)
	uploadFn        func(ctx context.Context, d *model.UploadData) (*model.Removal, error)
	getFn           func(ctx context.Context, id string) (*model.Removal, error)
	getListFn       func(ctx context.Context, req *model.ListRequest) ([]model.Removal, error)
	loadResultFn    func(ctx context.Context, id string) (io.ReadCloser, string, error)
	loadThumbnailFn func(ctx context.Context, id string, size int) ([]byte, error)
	deleteFn        func(ctx context.Context, id string) error
}

func (m *mockRemovalService) Create(ctx context.Context, req *model.RemovalRequest) (*model.Removal, error) {
	return m.createFn(ctx, req)
}

func (m *mockRemovalService) Upload(ctx context.Context, d *model.UploadData) (*model.Removal, error) {
	return m.uploadFn(ctx, d)
}

func (m *mockRemovalService) Get(ctx context.Context, id string) (*model.Removal, error) {
	return m.getFn(ctx, id)
}

func (m *mockRemovalService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Removal, error) {
	return m.getListFn(ctx, req)
}

func (m *mockRemovalService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadResultFn(ctx, id)
}

func (m *mockRemovalService) LoadThumbnail(ctx context.Context, id string, size int) ([]byte, error) {
	return m.loadThumbnailFn(ctx, id, size)
}

func (m *mockRemovalService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func init() {
	gin.SetMode(gin.TestMode)
}
