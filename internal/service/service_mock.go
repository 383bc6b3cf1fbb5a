package service

import (
	"context"
	"io"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/wb-go/wbf/retry"
)

// MOCK RESPOSITORY

type mockRepo struct {
	replaceAllFn  func(ctx context.Context, states []model.RecordState) error
	listFn        func(ctx context.Context) ([]model.RecordState, error)
	saveSummaryFn func(ctx context.Context, s model.Summary) error
	getSummaryFn  func(ctx context.Context, id string) (*model.Summary, error)
}

func (m *mockRepo) ReplaceAll(ctx context.Context, states []model.RecordState) error {
	return m.replaceAllFn(ctx, states)
}

func (m *mockRepo) List(ctx context.Context) ([]model.RecordState, error) {
	return m.listFn(ctx)
}

func (m *mockRepo) SaveSummary(ctx context.Context, s model.Summary) error {
	if m.saveSummaryFn == nil {
		return nil
	}
	return m.saveSummaryFn(ctx, s)
}

func (m *mockRepo) GetSummary(ctx context.Context, id string) (*model.Summary, error) {
	return m.getSummaryFn(ctx, id)
}

// MOCK STORAGE

type mockStorage struct {
	getFn          func(ctx context.Context, key string) (io.ReadCloser, string, error)
	putFn          func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	storeContentFn func(ctx context.Context, prefix string, data []byte, ct string) (string, bool, error)
	deleteFn       func(ctx context.Context, key string) error
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) StoreContent(ctx context.Context, prefix string, data []byte, ct string) (string, bool, error) {
	return m.storeContentFn(ctx, prefix, data, ct)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, key)
}

// MOCK PUBLISHER

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	if m.sendFn == nil {
		return nil
	}
	return m.sendFn(ctx, s, key, v)
}
