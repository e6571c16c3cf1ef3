package bridge

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/imageproc"
	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 1, 2, 3}

type harness struct {
	b     *Bridge
	sent  chan model.Message
	saved atomic.Int32
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{sent: make(chan model.Message, 8)}

	loader := &mockLoader{loadFn: func(ctx context.Context, ref string) (string, error) {
		return imageproc.EncodeDataURL(model.JPEG, []byte(ref)), nil
	}}
	saver := &mockSaver{saveFn: func(ctx context.Context, png []byte) (string, error) {
		h.saved.Add(1)
		return "/results/out.png", nil
	}}

	h.b = New(loader, saver, opts...)
	h.b.Register(&mockConn{sendFn: func(ctx context.Context, payload []byte) error {
		msg, err := model.ParseMessage(payload)
		require.NoError(t, err)
		h.sent <- msg
		return nil
	}})
	return h
}

func (h *harness) nextSent(t *testing.T) model.Message {
	t.Helper()
	select {
	case m := <-h.sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("nothing was sent to the processor")
		return model.Message{}
	}
}

type submitResult struct {
	out Outcome
	err error
	at  time.Time
}

func (h *harness) submitAsync(ctx context.Context, ref string, tol float64) <-chan submitResult {
	ch := make(chan submitResult, 1)
	go func() {
		out, err := h.b.Submit(ctx, ref, tol)
		ch <- submitResult{out, err, time.Now()}
	}()
	return ch
}

func awaitResult(t *testing.T, ch <-chan submitResult) submitResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("submission never resolved")
		return submitResult{}
	}
}

func resultFor(id uint64) []byte {
	return model.Message{
		Type:       model.MsgResult,
		ID:         id,
		Data:       imageproc.EncodeDataURL(model.PNG, pngBytes),
		Width:      683,
		Height:     1024,
		Erased:     1200,
		Background: "#f0f0f0",
	}.Marshal()
}

func TestSubmit_Unavailable(t *testing.T) {
	called := false
	b := New(&mockLoader{loadFn: func(context.Context, string) (string, error) {
		called = true
		return "", nil
	}}, &mockSaver{})

	_, err := b.Submit(context.Background(), "/tmp/a.jpg", 50)
	require.ErrorIs(t, err, ErrUnavailable)
	require.False(t, called)
	require.False(t, b.Available())
}

func TestSubmit_InvalidTolerance(t *testing.T) {
	for _, tol := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		h := newHarness(t)
		_, err := h.b.Submit(context.Background(), "/tmp/a.jpg", tol)
		require.ErrorIs(t, err, ErrInput)
		require.Empty(t, h.sent)
	}
}

func TestSubmit_Success(t *testing.T) {
	h := newHarness(t)
	res := h.submitAsync(context.Background(), "/tmp/shirt.jpg", 42)

	req := h.nextSent(t)
	require.Equal(t, model.MsgProcess, req.Type)
	require.NotZero(t, req.ID)
	require.NotNil(t, req.Tolerance)
	require.Equal(t, 42.0, *req.Tolerance)
	require.Equal(t, imageproc.EncodeDataURL(model.JPEG, []byte("/tmp/shirt.jpg")), req.Data)

	h.b.OnMessage(model.Message{Type: model.MsgReady}.Marshal())
	h.b.OnMessage(resultFor(req.ID))

	r := awaitResult(t, res)
	require.NoError(t, r.err)
	require.Equal(t, Outcome{Ref: "/results/out.png", Width: 683, Height: 1024, Erased: 1200, Background: "#f0f0f0"}, r.out)
	require.Equal(t, int32(1), h.saved.Load())
}

func TestSubmit_SavesThePNGBytes(t *testing.T) {
	var got []byte
	b := New(&mockLoader{loadFn: func(context.Context, string) (string, error) {
		return "data:image/png;base64,AA==", nil
	}}, &mockSaver{saveFn: func(_ context.Context, png []byte) (string, error) {
		got = png
		return "ref", nil
	}})
	b.Register(&mockConn{sendFn: func(_ context.Context, payload []byte) error {
		msg, _ := model.ParseMessage(payload)
		go b.OnMessage(resultFor(msg.ID))
		return nil
	}})

	out, err := b.Submit(context.Background(), "x", 10)
	require.NoError(t, err)
	require.Equal(t, "ref", out.Ref)
	require.Equal(t, pngBytes, got)
}

func TestSubmit_ReplyFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply func(id uint64) []byte
	}{
		{"processor error", func(id uint64) []byte {
			return model.Message{Type: model.MsgError, ID: id, Message: "decode failed"}.Marshal()
		}},
		{"malformed payload", func(uint64) []byte { return []byte("{{{") }},
		{"payload without type", func(id uint64) []byte { return []byte(`{"id":1}`) }},
		{"result without data url", func(id uint64) []byte {
			return model.Message{Type: model.MsgResult, ID: id, Data: "nope"}.Marshal()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			res := h.submitAsync(context.Background(), "/tmp/a.png", 50)
			req := h.nextSent(t)

			h.b.OnMessage(tt.reply(req.ID))

			r := awaitResult(t, res)
			require.ErrorIs(t, r.err, ErrProcessing)
			require.Empty(t, r.out.Ref)
			require.Equal(t, int32(0), h.saved.Load())
		})
	}
}

func TestSubmit_SaveFailure(t *testing.T) {
	b := New(&mockLoader{loadFn: func(context.Context, string) (string, error) {
		return "data:image/png;base64,AA==", nil
	}}, &mockSaver{saveFn: func(context.Context, []byte) (string, error) {
		return "", errors.New("disk full")
	}})
	b.Register(&mockConn{sendFn: func(_ context.Context, payload []byte) error {
		msg, _ := model.ParseMessage(payload)
		go b.OnMessage(resultFor(msg.ID))
		return nil
	}})

	_, err := b.Submit(context.Background(), "x", 10)
	require.ErrorIs(t, err, ErrProcessing)
}

func TestSubmit_StaleReplyDropped(t *testing.T) {
	h := newHarness(t)
	res := h.submitAsync(context.Background(), "/tmp/a.png", 50)
	req := h.nextSent(t)

	h.b.OnMessage(model.Message{Type: model.MsgError, ID: req.ID + 100, Message: "old"}.Marshal())
	h.b.OnMessage(resultFor(req.ID - 1))

	select {
	case <-res:
		t.Fatal("stale reply resolved the live operation")
	case <-time.After(30 * time.Millisecond):
	}

	h.b.OnMessage(resultFor(req.ID))
	r := awaitResult(t, res)
	require.NoError(t, r.err)
	require.Equal(t, int32(1), h.saved.Load())
}

func TestSubmit_Timeout(t *testing.T) {
	h := newHarness(t, WithTimeout(40*time.Millisecond))

	start := time.Now()
	res := h.submitAsync(context.Background(), "/tmp/a.png", 50)
	req := h.nextSent(t)

	r := awaitResult(t, res)
	require.ErrorIs(t, r.err, ErrTimeout)
	took := r.at.Sub(start)
	require.GreaterOrEqual(t, took, 40*time.Millisecond)
	require.Less(t, took, 140*time.Millisecond)

	// a late reply must not touch the next operation
	next := h.submitAsync(context.Background(), "/tmp/b.png", 50)
	nextReq := h.nextSent(t)
	require.Greater(t, nextReq.ID, req.ID)

	h.b.OnMessage(resultFor(req.ID))
	select {
	case <-next:
		t.Fatal("late reply resolved a newer operation")
	case <-time.After(10 * time.Millisecond):
	}

	h.b.OnMessage(resultFor(nextReq.ID))
	require.NoError(t, awaitResult(t, next).err)
}

func TestSubmit_SingleFlight(t *testing.T) {
	h := newHarness(t)

	first := h.submitAsync(context.Background(), "/tmp/first.png", 50)
	firstReq := h.nextSent(t)

	second := h.submitAsync(context.Background(), "/tmp/second.png", 50)
	r := awaitResult(t, first)
	require.ErrorIs(t, r.err, ErrSuperseded)

	secondReq := h.nextSent(t)
	require.Greater(t, secondReq.ID, firstReq.ID)

	h.b.OnMessage(resultFor(firstReq.ID))
	h.b.OnMessage(resultFor(secondReq.ID))

	r = awaitResult(t, second)
	require.NoError(t, r.err)
	require.Equal(t, "/results/out.png", r.out.Ref)
	require.Equal(t, int32(1), h.saved.Load())
}

func TestSubmit_LoaderFailure(t *testing.T) {
	sent := false
	b := New(&mockLoader{loadFn: func(context.Context, string) (string, error) {
		return "", errors.New("no such file")
	}}, &mockSaver{})
	b.Register(&mockConn{sendFn: func(context.Context, []byte) error {
		sent = true
		return nil
	}})

	_, err := b.Submit(context.Background(), "/nope.jpg", 50)
	require.ErrorIs(t, err, ErrInput)
	require.False(t, sent)
}

func TestSubmit_SendFailure(t *testing.T) {
	b := New(&mockLoader{loadFn: func(context.Context, string) (string, error) {
		return "data:image/png;base64,AA==", nil
	}}, &mockSaver{})
	b.Register(&mockConn{sendFn: func(context.Context, []byte) error {
		return errors.New("broken pipe")
	}})

	_, err := b.Submit(context.Background(), "x", 50)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSubmit_Canceled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	res := h.submitAsync(ctx, "/tmp/a.png", 50)
	req := h.nextSent(t)
	cancel()

	r := awaitResult(t, res)
	require.ErrorIs(t, r.err, ErrCanceled)

	// the slot is free again, the old reply is dropped
	h.b.OnMessage(resultFor(req.ID))
	require.Equal(t, int32(0), h.saved.Load())
}

func TestUnregister(t *testing.T) {
	h := newHarness(t, WithTimeout(30*time.Millisecond))
	require.True(t, h.b.Available())

	res := h.submitAsync(context.Background(), "/tmp/a.png", 50)
	h.nextSent(t)
	h.b.Unregister()
	require.False(t, h.b.Available())

	select {
	case <-res:
		t.Fatal("unregister must not resolve the pending operation")
	case <-time.After(5 * time.Millisecond):
	}
	require.ErrorIs(t, awaitResult(t, res).err, ErrTimeout)

	_, err := h.b.Submit(context.Background(), "/tmp/b.png", 50)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSubmit_SlowSaveBoundedByDeadline(t *testing.T) {
	var saveDeadline time.Time
	b := New(&mockLoader{loadFn: func(context.Context, string) (string, error) {
		return "data:image/png;base64,AA==", nil
	}}, &mockSaver{saveFn: func(ctx context.Context, _ []byte) (string, error) {
		saveDeadline, _ = ctx.Deadline()
		<-ctx.Done()
		return "", ctx.Err()
	}}, WithTimeout(50*time.Millisecond))
	b.Register(&mockConn{sendFn: func(_ context.Context, payload []byte) error {
		msg, _ := model.ParseMessage(payload)
		go b.OnMessage(resultFor(msg.ID))
		return nil
	}})

	start := time.Now()
	_, err := b.Submit(context.Background(), "x", 10)
	took := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	require.False(t, saveDeadline.IsZero())
	require.Less(t, took, 150*time.Millisecond)
}
