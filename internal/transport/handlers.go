// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/UnendingLoop/ScanDesk/internal/operation"
	"github.com/wb-go/wbf/ginext"
)

type DeskHandler struct {
	service DeskService
}

type DeskService interface {
	List(ctx context.Context) []model.RecordInfo
	Thumbnail(ctx context.Context, id string) (io.Reader, int64, error)
	Upload(ctx context.Context, session string, files []model.Upload) (operation.Info, error)
	Move(ctx context.Context, req *model.MoveRequest) ([]int, error)
	Transform(ctx context.Context, req *model.TransformRequest) (int, error)
	Reset(ctx context.Context, req *model.SelectionRequest) (int, error)
	Delete(ctx context.Context, req *model.SelectionRequest) (int, error)
	SetThumbnailSize(ctx context.Context, req *model.ThumbnailSizeRequest) error
	SetSelection(ctx context.Context, req *model.SelectionRequest)
	StartOperation(ctx context.Context, req *model.OperationRequest) (operation.Info, error)
	Operation(ctx context.Context, id string) (operation.Info, error)
	Operations(ctx context.Context) []operation.Info
	CancelOperation(ctx context.Context, id string) error
	Export(ctx context.Context, req *model.ExportRequest) (*model.ExportResult, error)
}

func NewDeskHandler(svc DeskService) *DeskHandler {
	return &DeskHandler{
		service: svc,
	}
}

func (h DeskHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h DeskHandler) List(ctx *ginext.Context) {
	ctx.JSON(200, h.service.List(ctx.Request.Context()))
}

func (h DeskHandler) Thumbnail(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, size, err := h.service.Thumbnail(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.DataFromReader(200, size, model.PNG, res, nil)
}

func (h DeskHandler) Upload(ctx *ginext.Context) {
	form, err := ctx.MultipartForm()
	if err != nil || len(form.File["images"]) == 0 {
		ctx.JSON(400, map[string]string{"error": "at least one image is required"})
		return
	}

	// парсинг загруженных страниц
	uploads := make([]model.Upload, 0, len(form.File["images"]))
	for _, fh := range form.File["images"] {
		file, err := fh.Open()
		if err != nil {
			ctx.JSON(400, map[string]string{"error": "failed to read uploaded image " + fh.Filename})
			return
		}
		defer closeFileFlow(file)

		uploads = append(uploads, model.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			File:        file,
		})
	}

	res, err := h.service.Upload(ctx.Request.Context(), ctx.PostForm("session"), uploads)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(202, res)
}

func (h DeskHandler) Move(ctx *ginext.Context) {
	var req model.MoveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	res, err := h.service.Move(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, map[string][]int{"indices": res})
}

func (h DeskHandler) Transform(ctx *ginext.Context) {
	var req model.TransformRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	n, err := h.service.Transform(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, map[string]int{"changed": n})
}

func (h DeskHandler) Reset(ctx *ginext.Context) {
	h.selection(ctx, h.service.Reset, "changed")
}

func (h DeskHandler) Delete(ctx *ginext.Context) {
	h.selection(ctx, h.service.Delete, "deleted")
}

func (h DeskHandler) selection(ctx *ginext.Context, fn func(context.Context, *model.SelectionRequest) (int, error), field string) {
	var req model.SelectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	n, err := fn(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, map[string]int{field: n})
}

func (h DeskHandler) SetThumbnailSize(ctx *ginext.Context) {
	var req model.ThumbnailSizeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	if err := h.service.SetThumbnailSize(ctx.Request.Context(), &req); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}

func (h DeskHandler) SetSelection(ctx *ginext.Context) {
	var req model.SelectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	h.service.SetSelection(ctx.Request.Context(), &req)
	ctx.Status(204)
}

func (h DeskHandler) StartOperation(ctx *ginext.Context) {
	var req model.OperationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	res, err := h.service.StartOperation(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(202, res)
}

func (h DeskHandler) Operation(ctx *ginext.Context) {
	res, err := h.service.Operation(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h DeskHandler) Operations(ctx *ginext.Context) {
	ctx.JSON(200, h.service.Operations(ctx.Request.Context()))
}

func (h DeskHandler) CancelOperation(ctx *ginext.Context) {
	if err := h.service.CancelOperation(ctx.Request.Context(), ctx.Param("id")); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(202)
}

func (h DeskHandler) Export(ctx *ginext.Context) {
	var req model.ExportRequest
	// пустое тело - экспорт всей коллекции
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
			return
		}
	}

	res, err := h.service.Export(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}
