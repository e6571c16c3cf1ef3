package service

import (
	"fmt"
	"io"
	"log"
	"math"
	"strings"

	"github.com/UnendingLoop/BgRemover/internal/model"
)

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}

	req.Sort = strings.TrimSpace(strings.ToLower(req.Sort))
	switch {
	case strings.Contains(req.Sort, model.ByUUID):
		req.Sort = "uid"
	default:
		req.Sort = "created_at" // по дефолту сортировка по времени создания
	}

	req.Order = strings.TrimSpace(strings.ToLower(req.Order))
	switch {
	case strings.Contains(req.Order, model.OrderASC):
		req.Order = "ASC"
	default:
		req.Order = "DESC" // по дефолту "новое-выше"
	}
}

func validateNormalizeRequest(raw *model.RemovalRequest, clean *model.Removal, defaultTolerance float64) error {
	if raw == nil {
		return model.ErrEmptySource
	}

	clean.SourceRef = strings.TrimSpace(raw.Image)
	if clean.SourceRef == "" {
		return model.ErrEmptySource
	}

	if raw.Tolerance == nil {
		clean.Tolerance = defaultTolerance
		clean.Notes = append(clean.Notes, fmt.Sprintf("tolerance not provided: using default %g", defaultTolerance))
		return nil
	}

	tol := *raw.Tolerance
	if tol < 0 || math.IsNaN(tol) || math.IsInf(tol, 0) {
		return model.ErrIncorrectTolerance
	}
	clean.Tolerance = tol
	return nil
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Service failed to close fileflow:", err)
	}
}
