package processor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/imageproc"
	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func photo(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 250, G: 250, B: 250, A: 255}
			if x >= w/4 && x < 3*w/4 && y >= h/4 && y < 3*h/4 {
				c = color.NRGBA{R: 20, G: 30, B: 140, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func processRequest(id uint64, data string, tol *float64) []byte {
	return model.Message{Type: model.MsgProcess, ID: id, Data: data, Tolerance: tol}.Marshal()
}

func ptr[T any](v T) *T { return &v }

func TestProcessor_Handle(t *testing.T) {
	p := New(0, zlog.Logger)
	pngURL := imageproc.EncodeDataURL(model.PNG, photo(t, 40, 40, imaging.PNG))

	tests := []struct {
		name     string
		payload  []byte
		wantType model.MessageType
		wantID   uint64
	}{
		{"ping", model.Message{Type: model.MsgPing}.Marshal(), model.MsgReady, 0},
		{"process png", processRequest(7, pngURL, ptr(50.0)), model.MsgResult, 7},
		{"default tolerance", processRequest(8, pngURL, nil), model.MsgResult, 8},
		{"negative tolerance", processRequest(9, pngURL, ptr(-1.0)), model.MsgError, 9},
		{"corrupt image", processRequest(10, imageproc.EncodeDataURL(model.PNG, []byte("garbage")), nil), model.MsgError, 10},
		{"not a data url", processRequest(11, "/tmp/file.png", nil), model.MsgError, 11},
		{"unknown type", model.Message{Type: "resize", ID: 12}.Marshal(), model.MsgError, 12},
		{"malformed json", []byte("{not json"), model.MsgError, 0},
		{"missing type", []byte(`{"id":5}`), model.MsgError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := model.ParseMessage(p.Handle(context.Background(), tt.payload))
			require.NoError(t, err)
			require.Equal(t, tt.wantType, reply.Type)
			require.Equal(t, tt.wantID, reply.ID)
			if reply.Type == model.MsgError {
				require.NotEmpty(t, reply.Message)
			}
		})
	}
}

func TestProcessor_ResultIsTransparentPNG(t *testing.T) {
	p := New(0, zlog.Logger)
	req := processRequest(1, imageproc.EncodeDataURL(model.PNG, photo(t, 64, 48, imaging.PNG)), ptr(60.0))

	reply, err := model.ParseMessage(p.Handle(context.Background(), req))
	require.NoError(t, err)
	require.Equal(t, model.MsgResult, reply.Type)

	mime, data, err := imageproc.DecodeDataURL(reply.Data)
	require.NoError(t, err)
	require.Equal(t, model.PNG, mime)

	img, err := imageproc.Decode(data, 0)
	require.NoError(t, err)
	require.Equal(t, 64, img.Bounds().Dx())
	require.Equal(t, 48, img.Bounds().Dy())
	require.Equal(t, 64, reply.Width)
	require.Equal(t, 48, reply.Height)

	require.Equal(t, uint8(0), img.NRGBAAt(0, 0).A)
	require.Equal(t, uint8(0), img.NRGBAAt(63, 47).A)
	require.Equal(t, uint8(255), img.NRGBAAt(32, 24).A)
	require.Equal(t, 64*48-32*24, reply.Erased)
	require.Len(t, reply.Background, 7)
}

func TestProcessor_LargeSourceDownscaledBeforeProcessing(t *testing.T) {
	p := New(imageproc.DefaultMaxSide, zlog.Logger)
	req := processRequest(3, imageproc.EncodeDataURL(model.JPEG, photo(t, 2000, 3000, imaging.JPEG)), nil)

	reply, err := model.ParseMessage(p.Handle(context.Background(), req))
	require.NoError(t, err)
	require.Equal(t, model.MsgResult, reply.Type)
	require.Equal(t, 683, reply.Width)
	require.Equal(t, 1024, reply.Height)

	_, data, err := imageproc.DecodeDataURL(reply.Data)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 683, cfg.Width)
	require.Equal(t, 1024, cfg.Height)
}

func TestProcessor_InfiniteTolerance(t *testing.T) {
	p := New(0, zlog.Logger)
	pngURL := imageproc.EncodeDataURL(model.PNG, photo(t, 8, 8, imaging.PNG))

	for _, tol := range []float64{math.Inf(1), math.Inf(-1)} {
		_, err := p.process(context.Background(), model.Message{Type: model.MsgProcess, ID: 3, Data: pngURL, Tolerance: ptr(tol)})
		require.ErrorIs(t, err, model.ErrIncorrectTolerance)
	}
}

func TestProcessor_CanceledBeforeStart(t *testing.T) {
	p := New(0, zlog.Logger)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := processRequest(4, imageproc.EncodeDataURL(model.PNG, photo(t, 8, 8, imaging.PNG)), nil)
	reply, err := model.ParseMessage(p.Handle(ctx, req))
	require.NoError(t, err)
	require.Equal(t, model.MsgError, reply.Type)
	require.Equal(t, uint64(4), reply.ID)
}

func TestProcessor_Serve(t *testing.T) {
	p := New(0, zlog.Logger)
	requests := make(chan []byte)
	replies := make(chan []byte, 4)

	done := make(chan error, 1)
	go func() {
		done <- p.Serve(context.Background(), requests, func(b []byte) error {
			replies <- b
			return nil
		})
	}()

	first, err := model.ParseMessage(<-replies)
	require.NoError(t, err)
	require.Equal(t, model.MsgReady, first.Type)

	requests <- model.Message{Type: model.MsgPing}.Marshal()
	second, err := model.ParseMessage(<-replies)
	require.NoError(t, err)
	require.Equal(t, model.MsgReady, second.Type)

	close(requests)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after requests were closed")
	}
}

func TestProcessor_ServeNilReply(t *testing.T) {
	p := New(0, zlog.Logger)
	require.Error(t, p.Serve(context.Background(), nil, nil))
}
