package bridge

import (
	"context"
)

type mockConn struct {
	sendFn func(ctx context.Context, payload []byte) error
}

func (m *mockConn) Send(ctx context.Context, payload []byte) error {
	return m.sendFn(ctx, payload)
}

type mockLoader struct {
	loadFn func(ctx context.Context, ref string) (string, error)
}

func (m *mockLoader) Load(ctx context.Context, ref string) (string, error) {
	return m.loadFn(ctx, ref)
}

type mockSaver struct {
	saveFn func(ctx context.Context, png []byte) (string, error)
}

func (m *mockSaver) SaveResult(ctx context.Context, png []byte) (string, error) {
	return m.saveFn(ctx, png)
}
