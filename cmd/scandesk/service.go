package main

import (
	"context"

	"github.com/UnendingLoop/ScanDesk/internal/operation"
	"github.com/UnendingLoop/ScanDesk/internal/transport"
)

// DeskAPIService - всё что нужно main от сервиса: HTTP-контракт плюс фоновые задачи
type DeskAPIService interface {
	transport.DeskService
	Checkpoint(ctx context.Context) error
	Restore(ctx context.Context) (*operation.Operation, error)
}
