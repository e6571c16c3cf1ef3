package worker

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
)

type mockHandler struct {
	handleFn func(ctx context.Context, payload []byte) []byte
}

func (m *mockHandler) Handle(ctx context.Context, payload []byte) []byte {
	return m.handleFn(ctx, payload)
}

type mockCommitter struct {
	commitFn func(ctx context.Context, msg kafkago.Message) error
}

func (m *mockCommitter) Commit(ctx context.Context, msg kafkago.Message) error {
	return m.commitFn(ctx, msg)
}

type sent struct {
	key   []byte
	value []byte
}

type mockPublisher struct {
	sent   []sent
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	m.sent = append(m.sent, sent{key: key, value: v})
	if m.sendFn == nil {
		return nil
	}
	return m.sendFn(ctx, s, key, v)
}
