// Package bridge is the request orchestrator between callers and the raster processor.
// It keeps at most one operation in flight: a new request supersedes the previous one,
// every operation carries a deadline, and replies are matched to the live operation by id.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/imageproc"
	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/wb-go/wbf/zlog"
)

const DefaultTimeout = 30 * time.Second

var (
	ErrUnavailable = errors.New("raster processor is not connected")
	ErrInput       = errors.New("source image could not be prepared")
	ErrProcessing  = errors.New("raster processor failed")
	ErrTimeout     = errors.New("background removal timed out")
	ErrSuperseded  = errors.New("superseded by a newer request")
	ErrCanceled    = errors.New("background removal canceled")
)

// Conn - the registered connection to a processor
type Conn interface {
	Send(ctx context.Context, payload []byte) error
}

// SourceLoader turns an image reference into a data url
type SourceLoader interface {
	Load(ctx context.Context, ref string) (string, error)
}

// ResultSaver persists a result PNG and returns a reference to it
type ResultSaver interface {
	SaveResult(ctx context.Context, png []byte) (string, error)
}

// Outcome of a successful removal
type Outcome struct {
	Ref        string
	Width      int
	Height     int
	Erased     int
	Background string
}

type resolution struct {
	out Outcome
	err error
}

type operation struct {
	id       uint64
	ctx      context.Context
	deadline time.Time
	timer    *time.Timer
	once     sync.Once
	done     chan resolution
}

func (op *operation) resolve(out Outcome, err error) {
	op.once.Do(func() {
		op.done <- resolution{out: out, err: err}
	})
}

type Option func(*Bridge)

// WithTimeout overrides the per-operation deadline
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func WithLogger(l zlog.Zerolog) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

type Bridge struct {
	loader  SourceLoader
	saver   ResultSaver
	timeout time.Duration
	logger  zlog.Zerolog

	// mu guards conn, pending and lastID. Whoever takes an operation out of pending resolves it.
	mu      sync.Mutex
	conn    Conn
	pending *operation
	lastID  uint64
}

func New(loader SourceLoader, saver ResultSaver, opts ...Option) *Bridge {
	b := &Bridge{
		loader:  loader,
		saver:   saver,
		timeout: DefaultTimeout,
		logger:  zlog.Logger,
		// ids start from the clock so a reply left on a shared queue by an earlier run never matches
		lastID: uint64(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register makes conn the processor connection; a previous one is replaced
func (b *Bridge) Register(conn Conn) {
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	b.logger.Info().Msg("Raster processor registered")
}

// Unregister forgets the connection. A pending operation is left to its deadline.
func (b *Bridge) Unregister() {
	b.mu.Lock()
	b.conn = nil
	b.mu.Unlock()
	b.logger.Info().Msg("Raster processor unregistered")
}

// Available reports whether a processor is registered
func (b *Bridge) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Submit runs one removal and blocks until it resolves. A pending operation is superseded.
func (b *Bridge) Submit(ctx context.Context, ref string, tolerance float64) (Outcome, error) {
	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return Outcome{}, ErrUnavailable
	}
	if tolerance < 0 || math.IsNaN(tolerance) || math.IsInf(tolerance, 0) {
		b.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %v", ErrInput, model.ErrIncorrectTolerance)
	}

	if prev := b.takeLocked(); prev != nil {
		prev.resolve(Outcome{}, ErrSuperseded)
		b.logger.Debug().Uint64("op", prev.id).Msg("Pending removal superseded")
	}

	b.lastID++
	op := &operation{id: b.lastID, ctx: ctx, deadline: time.Now().Add(b.timeout), done: make(chan resolution, 1)}
	op.timer = time.AfterFunc(b.timeout, func() { b.finish(op, Outcome{}, ErrTimeout) })
	b.pending = op
	b.mu.Unlock()

	opCtx, cancel := context.WithDeadline(ctx, op.deadline)
	defer cancel()

	go b.dispatch(opCtx, conn, op, ref, tolerance)
	return b.wait(ctx, op)
}

func (b *Bridge) dispatch(ctx context.Context, conn Conn, op *operation, ref string, tolerance float64) {
	data, err := b.loader.Load(ctx, ref)
	if err != nil {
		b.finish(op, Outcome{}, fmt.Errorf("%w: %v", ErrInput, err))
		return
	}

	req, err := model.Message{Type: model.MsgProcess, ID: op.id, Data: data, Tolerance: &tolerance}.Encode()
	if err != nil {
		b.finish(op, Outcome{}, fmt.Errorf("%w: %v", ErrInput, err))
		return
	}
	if err := conn.Send(ctx, req); err != nil {
		b.finish(op, Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
}

func (b *Bridge) wait(ctx context.Context, op *operation) (Outcome, error) {
	select {
	case r := <-op.done:
		return r.out, r.err
	case <-ctx.Done():
		b.finish(op, Outcome{}, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err()))
		// someone else may have claimed it first; their resolution wins
		r := <-op.done
		return r.out, r.err
	}
}

// finish resolves op only if it is still the pending one
func (b *Bridge) finish(op *operation, out Outcome, err error) {
	b.mu.Lock()
	if b.pending != op {
		b.mu.Unlock()
		return
	}
	b.takeLocked()
	b.mu.Unlock()
	op.resolve(out, err)
}

// claim takes the pending operation if its id matches
func (b *Bridge) claim(id uint64) *operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil || b.pending.id != id {
		return nil
	}
	return b.takeLocked()
}

func (b *Bridge) takeLocked() *operation {
	op := b.pending
	if op == nil {
		return nil
	}
	b.pending = nil
	op.timer.Stop()
	return op
}

// OnMessage handles one reply payload from the processor
func (b *Bridge) OnMessage(payload []byte) {
	msg, err := model.ParseMessage(payload)
	if err != nil {
		b.mu.Lock()
		op := b.takeLocked()
		b.mu.Unlock()
		if op != nil {
			b.logger.Warn().Err(err).Uint64("op", op.id).Msg("Malformed processor reply, failing pending removal")
			op.resolve(Outcome{}, fmt.Errorf("%w: %v", ErrProcessing, err))
		}
		return
	}

	switch msg.Type {
	case model.MsgReady:
		return
	case model.MsgResult, model.MsgError:
	default:
		b.logger.Warn().Str("type", string(msg.Type)).Msg("Unexpected processor message dropped")
		return
	}

	op := b.claim(msg.ID)
	if op == nil {
		b.logger.Debug().Uint64("op", msg.ID).Str("type", string(msg.Type)).Msg("Stale processor reply dropped")
		return
	}

	if msg.Type == model.MsgError {
		op.resolve(Outcome{}, fmt.Errorf("%w: %s", ErrProcessing, msg.Message))
		return
	}

	out, err := b.persist(op, msg)
	op.resolve(out, err)
}

// persist saves the result within what is left of the operation deadline
func (b *Bridge) persist(op *operation, msg model.Message) (Outcome, error) {
	_, png, err := imageproc.DecodeDataURL(msg.Data)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	ctx, cancel := context.WithDeadline(op.ctx, op.deadline)
	defer cancel()

	ref, err := b.saver.SaveResult(ctx, png)
	if err != nil {
		if op.ctx.Err() != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrCanceled, op.ctx.Err())
		}
		if ctx.Err() != nil {
			return Outcome{}, fmt.Errorf("%w: result not saved in time", ErrTimeout)
		}
		return Outcome{}, fmt.Errorf("%w: failed to save result: %v", ErrProcessing, err)
	}

	return Outcome{
		Ref:        ref,
		Width:      msg.Width,
		Height:     msg.Height,
		Erased:     msg.Erased,
		Background: msg.Background,
	}, nil
}
