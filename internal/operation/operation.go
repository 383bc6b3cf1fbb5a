package operation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/google/uuid"
)

// Operation is one running or finished job. Progress and state are readable from any goroutine;
// the summary is available once Done is closed.
type Operation struct {
	ID   uuid.UUID
	Kind model.Kind

	total     int
	completed atomic.Int64
	state     atomic.Value // model.State
	cancelled chan struct{}
	once      sync.Once
	done      chan struct{}
	startedAt time.Time
	summary   model.Summary
}

func newOperation(kind model.Kind, total int) *Operation {
	op := &Operation{
		ID:        uuid.New(),
		Kind:      kind,
		total:     total,
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: time.Now().UTC(),
	}
	op.state.Store(model.StatePending)
	return op
}

// Cancel asks the operation to stop before its next unit. The unit in flight completes.
func (op *Operation) Cancel() {
	op.once.Do(func() { close(op.cancelled) })
}

func (op *Operation) cancelRequested() bool {
	select {
	case <-op.cancelled:
		return true
	default:
		return false
	}
}

func (op *Operation) State() model.State {
	return op.state.Load().(model.State)
}

func (op *Operation) Progress() model.Progress {
	return model.Progress{Completed: int(op.completed.Load()), Total: op.total}
}

// Done is closed after the completion callback has returned.
func (op *Operation) Done() <-chan struct{} {
	return op.done
}

// Wait blocks until the operation has finished and returns its summary.
func (op *Operation) Wait() model.Summary {
	<-op.done
	return op.summary
}

// Summary returns the terminal summary, or false while the operation is still running.
func (op *Operation) Summary() (model.Summary, bool) {
	select {
	case <-op.done:
		return op.summary, true
	default:
		return model.Summary{}, false
	}
}

// Info is a point-in-time description of an operation for status queries.
type Info struct {
	ID       uuid.UUID      `json:"id"`
	Kind     model.Kind     `json:"kind"`
	State    model.State    `json:"state"`
	Progress model.Progress `json:"progress"`
	Summary  *model.Summary `json:"summary,omitempty"`
}

func (op *Operation) Info() Info {
	info := Info{
		ID:       op.ID,
		Kind:     op.Kind,
		State:    op.State(),
		Progress: op.Progress(),
	}
	if s, ok := op.Summary(); ok {
		info.Summary = &s
	}
	return info
}
