// Package processor is the isolated raster processor: it owns the pixel buffer of one request at a time
// and is reachable only through serialized model.Message payloads.
package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/imageproc"
	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/UnendingLoop/BgRemover/internal/segment"
	"github.com/wb-go/wbf/zlog"
)

type Processor struct {
	maxSide int
	logger  zlog.Zerolog
}

func New(maxSide int, logger zlog.Zerolog) *Processor {
	if maxSide <= 0 {
		maxSide = imageproc.DefaultMaxSide
	}
	return &Processor{maxSide: maxSide, logger: logger}
}

// Handle answers one request payload with exactly one reply payload
func (p *Processor) Handle(ctx context.Context, payload []byte) []byte {
	msg, err := model.ParseMessage(payload)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Processor received malformed request")
		return errorReply(0, fmt.Errorf("malformed request: %w", err))
	}

	switch msg.Type {
	case model.MsgPing:
		return model.Message{Type: model.MsgReady}.Marshal()
	case model.MsgProcess:
		res, err := p.process(ctx, msg)
		if err != nil {
			p.logger.Error().Err(err).Uint64("op", msg.ID).Msg("Processor failed to remove background")
			return errorReply(msg.ID, err)
		}
		return res.Marshal()
	default:
		return errorReply(msg.ID, fmt.Errorf("unsupported message type %q", msg.Type))
	}
}

func (p *Processor) process(ctx context.Context, msg model.Message) (model.Message, error) {
	// cooperative: a request already abandoned is not started, a started one runs to the end
	if err := ctx.Err(); err != nil {
		return model.Message{}, err
	}

	tolerance := model.DefaultTolerance
	if msg.Tolerance != nil {
		tolerance = *msg.Tolerance
	}
	if tolerance < 0 || math.IsNaN(tolerance) || math.IsInf(tolerance, 0) {
		return model.Message{}, model.ErrIncorrectTolerance
	}

	_, data, err := imageproc.DecodeDataURL(msg.Data)
	if err != nil {
		return model.Message{}, err
	}

	start := time.Now()
	raster, err := imageproc.Decode(data, p.maxSide)
	if err != nil {
		return model.Message{}, err
	}

	stats := segment.Remove(raster, tolerance)

	out, err := imageproc.EncodePNG(raster)
	if err != nil {
		return model.Message{}, err
	}

	p.logger.Debug().
		Uint64("op", msg.ID).
		Int("width", raster.Bounds().Dx()).
		Int("height", raster.Bounds().Dy()).
		Int("erased", stats.Erased).
		Str("background", stats.Background.Hex()).
		Dur("took", time.Since(start)).
		Msg("Background removed")

	return model.Message{
		Type:       model.MsgResult,
		ID:         msg.ID,
		Data:       imageproc.EncodeDataURL(model.PNG, out),
		Width:      raster.Bounds().Dx(),
		Height:     raster.Bounds().Dy(),
		Erased:     stats.Erased,
		Background: stats.Background.Hex(),
	}, nil
}

// Serve runs the processor as an actor: announces readiness, then answers requests one by one
// until ctx is done or requests is closed.
func (p *Processor) Serve(ctx context.Context, requests <-chan []byte, reply func([]byte) error) error {
	if reply == nil {
		return errors.New("nil reply func provided to Serve")
	}
	if err := reply(model.Message{Type: model.MsgReady}.Marshal()); err != nil {
		return fmt.Errorf("failed to announce readiness: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-requests:
			if !ok {
				p.logger.Info().Msg("Request channel closed, stopping processor...")
				return nil
			}
			if err := reply(p.Handle(ctx, req)); err != nil {
				p.logger.Error().Err(err).Msg("Processor failed to send reply")
			}
		}
	}
}

func errorReply(id uint64, err error) []byte {
	return model.Message{Type: model.MsgError, ID: id, Message: err.Error()}.Marshal()
}
