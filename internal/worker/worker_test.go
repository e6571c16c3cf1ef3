package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/UnendingLoop/BgRemover/internal/imageproc"
	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/UnendingLoop/BgRemover/internal/processor"
	"github.com/disintegration/imaging"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func TestWorker_StartWorker(t *testing.T) {
	tests := []struct {
		name      string
		requests  [][]byte
		sendErr   error
		commitErr error
		wantSent  int
	}{
		{
			name:     "ready only",
			wantSent: 1,
		},
		{
			name:     "two requests",
			requests: [][]byte{[]byte("a"), []byte("b")},
			wantSent: 3,
		},
		{
			name:      "publish and commit errors do not stop the worker",
			requests:  [][]byte{[]byte("a"), []byte("b")},
			sendErr:   errors.New("broker down"),
			commitErr: errors.New("rebalance"),
			wantSent:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := make(chan kafkago.Message, len(tt.requests))
			for _, r := range tt.requests {
				queue <- kafkago.Message{Value: r}
			}
			close(queue)

			handled, commits := 0, 0
			pub := &mockPublisher{sendFn: func(context.Context, retry.Strategy, []byte, []byte) error {
				return tt.sendErr
			}}

			w := NewWorkerInstance(
				&mockHandler{handleFn: func(ctx context.Context, p []byte) []byte {
					handled++
					return model.Message{Type: model.MsgError, ID: uint64(handled), Message: string(p)}.Marshal()
				}},
				queue,
				&mockCommitter{commitFn: func(context.Context, kafkago.Message) error {
					commits++
					return tt.commitErr
				}},
				pub,
			)

			w.StartWorker(context.Background())

			require.Equal(t, len(tt.requests), handled)
			require.Equal(t, len(tt.requests), commits)
			require.Len(t, pub.sent, tt.wantSent)

			first, err := model.ParseMessage(pub.sent[0].value)
			require.NoError(t, err)
			require.Equal(t, model.MsgReady, first.Type)
			require.Nil(t, pub.sent[0].key)

			for i := 1; i < len(pub.sent); i++ {
				require.Equal(t, []byte{byte('0' + i)}, pub.sent[i].key)
			}
		})
	}
}

func TestWorker_WithProcessor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 12, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	img.SetNRGBA(6, 6, color.NRGBA{A: 255})

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))

	queue := make(chan kafkago.Message, 1)
	queue <- kafkago.Message{Value: model.Message{
		Type: model.MsgProcess,
		ID:   5,
		Data: imageproc.EncodeDataURL(model.PNG, buf.Bytes()),
	}.Marshal()}
	close(queue)

	pub := &mockPublisher{}
	w := NewWorkerInstance(processor.New(0, zlog.Logger), queue, &mockCommitter{commitFn: func(context.Context, kafkago.Message) error {
		return nil
	}}, pub)
	w.StartWorker(context.Background())

	require.Len(t, pub.sent, 2)
	require.Equal(t, []byte("5"), pub.sent[1].key)

	reply, err := model.ParseMessage(pub.sent[1].value)
	require.NoError(t, err)
	require.Equal(t, model.MsgResult, reply.Type)
	require.Equal(t, 12*12-1, reply.Erased)
	require.Equal(t, "#f8f8f8", reply.Background)
}
