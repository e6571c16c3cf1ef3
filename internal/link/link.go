// Package link contains the conduits between the bridge and a raster processor.
// Every conduit carries opaque serialized payloads and hands replies to a Deliver callback
// from a single goroutine, so replies are never delivered concurrently.
package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/model"
)

var ErrClosed = errors.New("link is closed")

// Deliver receives every reply payload coming back from the processor
type Deliver func(payload []byte)

// Handler is the processor side of a link
type Handler interface {
	Serve(ctx context.Context, requests <-chan []byte, reply func([]byte) error) error
}

// Endpoint - anything a ping can be sent through and that reports readiness
type Endpoint interface {
	Send(ctx context.Context, payload []byte) error
	Ready() <-chan struct{}
}

// Latch is closed once the first "ready" reply passes through it
type Latch struct {
	once sync.Once
	ch   chan struct{}
}

func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Observe checks the payload and trips the latch on "ready"
func (l *Latch) Observe(payload []byte) bool {
	msg, err := model.ParseMessage(payload)
	if err != nil || msg.Type != model.MsgReady {
		return false
	}
	l.once.Do(func() { close(l.ch) })
	return true
}

func (l *Latch) Ready() <-chan struct{} {
	return l.ch
}

// AwaitReady pings the endpoint every period until it reports readiness or ctx is done
func AwaitReady(ctx context.Context, ep Endpoint, every time.Duration) error {
	if every <= 0 {
		every = time.Second
	}
	ping := model.Message{Type: model.MsgPing}.Marshal()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ep.Ready():
			return nil
		default:
		}

		if err := ep.Send(ctx, ping); err != nil && errors.Is(err, ErrClosed) {
			return err
		}

		select {
		case <-ep.Ready():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
