package link

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/wb-go/wbf/zlog"
)

// MaxFrameSize bounds a single frame; a 1024px RGBA PNG as base64 stays far below it
const MaxFrameSize = 64 << 20

var ErrFrameTooLarge = errors.New("frame exceeds MaxFrameSize")

// WriteFrame writes [uint32 big-endian length][payload]
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one frame written by WriteFrame. A clean EOF before the header is returned as io.EOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header)
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}
	return body, nil
}

// Pipe is a framed link over a reader/writer pair
type Pipe struct {
	mu    sync.Mutex
	w     io.Writer
	latch *Latch
	done  chan struct{}
	err   error
}

// NewPipe starts reading frames from r and delivering them; requests are written to w
func NewPipe(r io.Reader, w io.Writer, deliver Deliver, logger zlog.Zerolog) *Pipe {
	p := &Pipe{w: w, latch: NewLatch(), done: make(chan struct{})}

	go func() {
		defer close(p.done)
		br := bufio.NewReader(r)
		for {
			frame, err := ReadFrame(br)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					logger.Error().Err(err).Msg("Pipe link failed to read frame")
				}
				p.err = err
				return
			}
			p.latch.Observe(frame)
			if deliver != nil {
				deliver(frame)
			}
		}
	}()

	return p
}

func (p *Pipe) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return WriteFrame(p.w, payload)
}

func (p *Pipe) Ready() <-chan struct{} {
	return p.latch.Ready()
}

// Done is closed when the read side stops
func (p *Pipe) Done() <-chan struct{} {
	return p.done
}

// Err is the reason the read side stopped; valid after Done is closed
func (p *Pipe) Err() error {
	<-p.done
	return p.err
}

// ServeFrames is the child side of a Pipe: frames read from r are fed to proc, replies are framed to w.
// Returns when r reaches EOF or ctx is done.
func ServeFrames(ctx context.Context, r io.Reader, w io.Writer, proc Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	requests := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(requests)
		br := bufio.NewReader(r)
		for {
			frame, err := ReadFrame(br)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				readErr <- err
				return
			}
			select {
			case requests <- frame:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
	}()

	bw := bufio.NewWriter(w)
	err := proc.Serve(ctx, requests, func(b []byte) error {
		if err := WriteFrame(bw, b); err != nil {
			return err
		}
		return bw.Flush()
	})
	if err != nil {
		return err
	}

	cancel()
	select {
	case err := <-readErr:
		return err
	default:
		return nil
	}
}
