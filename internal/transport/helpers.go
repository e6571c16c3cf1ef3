package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/BgRemover/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrRemovalNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrIncorrectTolerance),
		errors.Is(err, model.ErrIncorrectSize),
		errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, model.ErrSourceNotAllowed):
		return 400
	default:
		return 500
	}
}

// outcomeCode - 201 when the removal produced a result, 422 when it was recorded as failed
func outcomeCode(r *model.Removal) int {
	if r.Status == model.StatusDone {
		return 201
	}
	return 422
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
