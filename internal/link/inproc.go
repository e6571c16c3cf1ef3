package link

import (
	"context"
	"sync"

	"github.com/wb-go/wbf/zlog"
)

const inprocQueue = 8

// InProc runs the processor in its own goroutine of the current process
type InProc struct {
	requests  chan []byte
	latch     *Latch
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewInProc starts proc and returns a link to it. Replies go to deliver in arrival order.
func NewInProc(ctx context.Context, proc Handler, deliver Deliver, logger zlog.Zerolog) *InProc {
	ctx, cancel := context.WithCancel(ctx)
	l := &InProc{
		requests: make(chan []byte, inprocQueue),
		latch:    NewLatch(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	replies := make(chan []byte, inprocQueue)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(replies)
		err := proc.Serve(ctx, l.requests, func(b []byte) error {
			select {
			case replies <- clone(b):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			logger.Error().Err(err).Msg("In-process raster processor stopped")
		}
	}()

	go func() {
		defer wg.Done()
		for p := range replies {
			l.latch.Observe(p)
			if deliver != nil {
				deliver(p)
			}
		}
	}()

	go func() {
		wg.Wait()
		close(l.done)
	}()

	return l
}

// Send copies payload into the processor queue
func (l *InProc) Send(ctx context.Context, payload []byte) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	select {
	case l.requests <- clone(payload):
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *InProc) Ready() <-chan struct{} {
	return l.latch.Ready()
}

// Close stops the processor goroutine and waits for the reply pump to drain
func (l *InProc) Close() error {
	l.closeOnce.Do(l.cancel)
	<-l.done
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
