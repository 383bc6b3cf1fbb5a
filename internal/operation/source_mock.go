package operation

import (
	"context"
	"io"
)

// MOCK SOURCE

type mockSource struct {
	getFn func(ctx context.Context, key string) (io.ReadCloser, string, error)
}

func (m *mockSource) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}
