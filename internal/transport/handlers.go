// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"log"
	"strconv"

	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/wb-go/wbf/ginext"
)

const defaultThumbSize = 128

type RemovalHandler struct {
	service RemovalService
}

type RemovalService interface {
	Create(ctx context.Context, req *model.RemovalRequest) (*model.Removal, error)
	Upload(ctx context.Context, data *model.UploadData) (*model.Removal, error)
	Get(ctx context.Context, id string) (*model.Removal, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Removal, error)
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) // прям скачать результат
	LoadThumbnail(ctx context.Context, id string, size int) ([]byte, error)
	Delete(ctx context.Context, id string) error // удалить запись, результат и загруженный исходник
}

func NewRemovalHandler(svc RemovalService) *RemovalHandler {
	return &RemovalHandler{service: svc}
}

func (h RemovalHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

// Create - JSON body {"image": "<url or path>", "tolerance": 50}
func (h RemovalHandler) Create(ctx *ginext.Context) {
	var req model.RemovalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	res, err := h.service.Create(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(outcomeCode(res), res)
}

// Upload - multipart form with "image" file and optional "tolerance"
func (h RemovalHandler) Upload(ctx *ginext.Context) {
	var tolerance *float64
	if tStr := ctx.PostForm("tolerance"); tStr != "" {
		val, err := strconv.ParseFloat(tStr, 64)
		if err != nil {
			ctx.JSON(400, map[string]string{"error": model.ErrIncorrectTolerance.Error()})
			return
		}
		tolerance = &val
	}

	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	defer closeFileFlow(imageFile)

	res, err := h.service.Upload(ctx.Request.Context(), &model.UploadData{
		File:        imageFile,
		ContentType: imageHeader.Header.Get("Content-Type"),
		Size:        imageHeader.Size,
		Tolerance:   tolerance,
	})
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(outcomeCode(res), res)
}

func (h RemovalHandler) GetAll(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": model.ErrIncorrectQuery.Error()})
		return
	}

	res, err := h.service.GetList(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h RemovalHandler) Get(ctx *ginext.Context) {
	res, err := h.service.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h RemovalHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		log.Printf("Failed to write response at byte %d for removal %q: %v", n, id, err)
	}
}

func (h RemovalHandler) LoadThumbnail(ctx *ginext.Context) {
	size := defaultThumbSize
	if sStr := ctx.Query("size"); sStr != "" {
		val, err := strconv.Atoi(sStr)
		if err != nil {
			ctx.JSON(400, map[string]string{"error": model.ErrIncorrectSize.Error()})
			return
		}
		size = val
	}

	thumb, err := h.service.LoadThumbnail(ctx.Request.Context(), ctx.Param("id"), size)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Data(200, model.PNG, thumb)
}

func (h RemovalHandler) Delete(ctx *ginext.Context) {
	if err := h.service.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}
