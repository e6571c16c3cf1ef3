// Package service provides business-logic for the app
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/bridge"
	"github.com/UnendingLoop/BgRemover/internal/imageproc"
	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/UnendingLoop/BgRemover/internal/mwlogger"
	"github.com/UnendingLoop/BgRemover/internal/repository"
	"github.com/UnendingLoop/BgRemover/internal/storage/localstorage"
	"github.com/google/uuid"
)

const staleReason = "abandoned: no outcome was recorded in time"

type RemovalService struct {
	repo             repository.RemovalRepo
	remover          Remover
	results          ResultStorage
	uploads          UploadStorage
	sources          SourcePolicy
	defaultTolerance float64
	staleAfter       time.Duration
}

// Remover - контракт оркестратора (bridge)
type Remover interface {
	Submit(ctx context.Context, ref string, tolerance float64) (bridge.Outcome, error)
}

// ResultStorage - контракт для чтения/удаления результатов
type ResultStorage interface {
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// UploadStorage - контракт для хранения загруженных исходников
type UploadStorage interface {
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
	Path(key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// SourcePolicy - which image refs callers may name (source.Loader); nil allows any
type SourcePolicy interface {
	Check(ref string) error
}

func NewRemovalService(repo repository.RemovalRepo, remover Remover, results ResultStorage, uploads UploadStorage, sources SourcePolicy, defaultTolerance float64, staleAfter time.Duration) *RemovalService {
	if defaultTolerance < 0 {
		defaultTolerance = model.DefaultTolerance
	}
	if staleAfter <= 0 {
		staleAfter = 2 * bridge.DefaultTimeout
	}
	return &RemovalService{
		repo:             repo,
		remover:          remover,
		results:          results,
		uploads:          uploads,
		sources:          sources,
		defaultTolerance: defaultTolerance,
		staleAfter:       staleAfter,
	}
}

// RemoveBackground returns a reference to the transparent PNG, or false when there is no result
func (s RemovalService) RemoveBackground(ctx context.Context, ref string, tolerance float64) (string, bool) {
	res, err := s.Create(ctx, &model.RemovalRequest{Image: ref, Tolerance: &tolerance})
	if err != nil || res.Status != model.StatusDone {
		return "", false
	}
	return res.ResultRef, true
}

// Create runs one removal and returns its history record: done with a result or failed with a reason
func (s RemovalService) Create(ctx context.Context, req *model.RemovalRequest) (*model.Removal, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	removal := &model.Removal{}

	if err := validateNormalizeRequest(req, removal, s.defaultTolerance); err != nil {
		return nil, err
	}
	if s.sources != nil {
		if err := s.sources.Check(removal.SourceRef); err != nil {
			logger.Warn().Err(err).Str("source", removal.SourceRef).Msg("Source ref refused")
			if errors.Is(err, model.ErrEmptySource) {
				return nil, model.ErrEmptySource
			}
			return nil, model.ErrSourceNotAllowed
		}
	}

	removal.UID = uuid.New()
	removal.Status = model.StatusCreated
	now := time.Now().UTC()
	removal.CreatedAt = &now

	if err := s.repo.Create(ctx, removal); err != nil {
		logger.Error().Err(err).Msg("Failed to create removal in DB")
		return nil, model.ErrCommon500
	}

	id := removal.UID.String()
	if err := s.repo.UpdateStatus(ctx, id, model.StatusInProgress); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to set removal %q in progress", id))
		return nil, model.ErrCommon500
	}
	removal.Status = model.StatusInProgress

	outcome, err := s.remover.Submit(ctx, removal.SourceRef, removal.Tolerance)
	if err != nil {
		removal.Status = model.StatusFailed
		removal.FailReason = err.Error()
		logger.Warn().Err(err).Str("removal", id).Msg("Background removal produced no result")
	} else {
		removal.Status = model.StatusDone
		removal.ResultRef = outcome.Ref
		removal.Background = outcome.Background
		removal.Erased = outcome.Erased
		logger.Info().Str("removal", id).Str("result", outcome.Ref).Int("erased", outcome.Erased).Msg("Background removed")
	}

	// исход фиксируем даже если запрос уже отменен
	t := time.Now().UTC()
	removal.UpdatedAt = &t
	if err := s.repo.SaveResult(context.WithoutCancel(ctx), removal); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to save outcome of removal %q in DB", id))
		return nil, model.ErrCommon500
	}

	return removal, nil
}

// Upload keeps an uploaded source photo and runs a removal on it
func (s RemovalService) Upload(ctx context.Context, data *model.UploadData) (*model.Removal, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if data == nil || data.File == nil || data.Size <= 0 {
		return nil, model.ErrEmptySource
	}
	if !model.InImageTypeMap[data.ContentType] {
		return nil, model.ErrUnsupportedFormat
	}

	key := uuid.NewString() + model.GetImageFileExt[data.ContentType]
	if err := s.uploads.Put(ctx, key, data.Size, data.ContentType, data.File); err != nil {
		logger.Error().Err(err).Msg("Failed to save uploaded source in storage")
		return nil, model.ErrCommon500
	}
	path, err := s.uploads.Path(key)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve uploaded source path")
		return nil, model.ErrCommon500
	}

	return s.Create(ctx, &model.RemovalRequest{Image: path, Tolerance: data.Tolerance})
}

func (s RemovalService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Removal, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	validateQueryParams(req)

	res, err := s.repo.GetList(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch removals list from DB")
		return nil, model.ErrCommon500
	}
	return res, nil
}

func (s RemovalService) Get(ctx context.Context, id string) (*model.Removal, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrRemovalNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch removal %q from DB", id))
		return nil, model.ErrCommon500
	}
	return res, nil
}

func (s RemovalService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if res.Status != model.StatusDone || res.ResultRef == "" {
		return nil, "", model.ErrResultNotReady
	}

	data, cType, err := s.results.Get(ctx, res.ResultRef)
	if err != nil {
		if errors.Is(err, model.ErrResultNotReady) {
			return nil, "", err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch result of removal %q from storage", id))
		return nil, "", model.ErrCommon500
	}
	return data, cType, nil
}

// LoadThumbnail returns a square PNG preview of the result
func (s RemovalService) LoadThumbnail(ctx context.Context, id string, size int) ([]byte, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if size <= 0 || size > imageproc.DefaultMaxSide {
		return nil, model.ErrIncorrectSize
	}

	rc, _, err := s.LoadResult(ctx, id)
	if err != nil {
		return nil, err
	}
	defer closeFileFlow(rc)

	data, err := io.ReadAll(rc)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to read result of removal %q", id))
		return nil, model.ErrCommon500
	}

	thumb, err := imageproc.Thumbnail(data, size)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to build thumbnail of removal %q", id))
		return nil, model.ErrCommon500
	}
	return thumb, nil
}

func (s RemovalService) Delete(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrRemovalNotFound) {
			return err
		}
		logger.Error().Err(err).Msg("Failed to delete removal from DB")
		return model.ErrCommon500
	}

	if res.ResultRef != "" {
		if err := s.results.Delete(ctx, res.ResultRef); err != nil {
			logger.Error().Err(err).Msg("Failed to delete result image from storage")
			return model.ErrCommon500
		}
	}

	// исходник удаляем только если он был загружен к нам
	if err := s.uploads.Delete(ctx, res.SourceRef); err != nil && !errors.Is(err, localstorage.ErrOutsideDir) {
		logger.Error().Err(err).Msg("Failed to delete uploaded source from storage")
		return model.ErrCommon500
	}

	return nil
}

// FailStale closes removals that never got an outcome, e.g. after a crash mid-request
func (s RemovalService) FailStale(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	failed, err := s.repo.FailStale(ctx, s.staleAfter, staleReason, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fail stale removals in DB")
		return
	}
	if len(failed) > 0 {
		logger.Warn().Strs("removals", failed).Msg("Stale removals marked as failed")
	}
}
