package worker

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
)

type mockStorage struct {
	putContentFn func(ctx context.Context, prefix string, data []byte, ct string) (string, error)
}

func (m *mockStorage) PutContent(ctx context.Context, prefix string, data []byte, ct string) (string, error) {
	return m.putContentFn(ctx, prefix, data, ct)
}

//----------------------------------

type mockCommitter struct {
	commitFn func(ctx context.Context, msg kafkago.Message) error
}

func (m *mockCommitter) Commit(ctx context.Context, msg kafkago.Message) error {
	return m.commitFn(ctx, msg)
}
