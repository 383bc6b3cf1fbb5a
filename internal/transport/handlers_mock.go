package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/UnendingLoop/ScanDesk/internal/operation"
	"github.com/gin-gonic/gin"
)

type mockDeskService struct {
	listFn             func(ctx context.Context) []model.RecordInfo
	thumbnailFn        func(ctx context.Context, id string) (io.Reader, int64, error)
	uploadFn           func(ctx context.Context, session string, files []model.Upload) (operation.Info, error)
	moveFn             func(ctx context.Context, req *model.MoveRequest) ([]int, error)
	transformFn        func(ctx context.Context, req *model.TransformRequest) (int, error)
	resetFn            func(ctx context.Context, req *model.SelectionRequest) (int, error)
	deleteFn           func(ctx context.Context, req *model.SelectionRequest) (int, error)
	setThumbnailSizeFn func(ctx context.Context, req *model.ThumbnailSizeRequest) error
	setSelectionFn     func(ctx context.Context, req *model.SelectionRequest)
	startOperationFn   func(ctx context.Context, req *model.OperationRequest) (operation.Info, error)
	operationFn        func(ctx context.Context, id string) (operation.Info, error)
	operationsFn       func(ctx context.Context) []operation.Info
	cancelOperationFn  func(ctx context.Context, id string) error
	exportFn           func(ctx context.Context, req *model.ExportRequest) (*model.ExportResult, error)
}

func (m *mockDeskService) List(ctx context.Context) []model.RecordInfo {
	return m.listFn(ctx)
}

func (m *mockDeskService) Thumbnail(ctx context.Context, id string) (io.Reader, int64, error) {
	return m.thumbnailFn(ctx, id)
}

func (m *mockDeskService) Upload(ctx context.Context, session string, files []model.Upload) (operation.Info, error) {
	return m.uploadFn(ctx, session, files)
}

func (m *mockDeskService) Move(ctx context.Context, req *model.MoveRequest) ([]int, error) {
	return m.moveFn(ctx, req)
}

func (m *mockDeskService) Transform(ctx context.Context, req *model.TransformRequest) (int, error) {
	return m.transformFn(ctx, req)
}

func (m *mockDeskService) Reset(ctx context.Context, req *model.SelectionRequest) (int, error) {
	return m.resetFn(ctx, req)
}

func (m *mockDeskService) Delete(ctx context.Context, req *model.SelectionRequest) (int, error) {
	return m.deleteFn(ctx, req)
}

func (m *mockDeskService) SetThumbnailSize(ctx context.Context, req *model.ThumbnailSizeRequest) error {
	return m.setThumbnailSizeFn(ctx, req)
}

func (m *mockDeskService) SetSelection(ctx context.Context, req *model.SelectionRequest) {
	m.setSelectionFn(ctx, req)
}

func (m *mockDeskService) StartOperation(ctx context.Context, req *model.OperationRequest) (operation.Info, error) {
	return m.startOperationFn(ctx, req)
}

func (m *mockDeskService) Operation(ctx context.Context, id string) (operation.Info, error) {
	return m.operationFn(ctx, id)
}

func (m *mockDeskService) Operations(ctx context.Context) []operation.Info {
	return m.operationsFn(ctx)
}

func (m *mockDeskService) CancelOperation(ctx context.Context, id string) error {
	return m.cancelOperationFn(ctx, id)
}

func (m *mockDeskService) Export(ctx context.Context, req *model.ExportRequest) (*model.ExportResult, error) {
	return m.exportFn(ctx, req)
}

func init() {
	gin.SetMode(gin.TestMode)
}
