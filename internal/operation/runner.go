// Package operation runs long jobs over the collection in the background, one unit at a time,
// with progress reporting, cooperative cancellation and a terminal summary.
package operation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/UnendingLoop/ScanDesk/internal/collection"
	"github.com/UnendingLoop/ScanDesk/internal/imageproc"
	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/UnendingLoop/ScanDesk/internal/mwlogger"
	"github.com/UnendingLoop/ScanDesk/internal/receiver"
	"github.com/google/uuid"
)

// retention is how long finished operations stay queryable.
const retention = 15 * time.Minute

// Source provides encoded images for ImportJob.
type Source interface {
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Callbacks are invoked from the operation goroutine. OnProgress fires after every unit;
// OnComplete fires exactly once, after the state became terminal.
type Callbacks struct {
	OnProgress func(op *Operation, p model.Progress)
	OnComplete func(s model.Summary)
}

type unit func(ctx context.Context) (model.Outcome, error)

type Runner struct {
	coll      *collection.Collection
	receivers *receiver.Factory
	source    Source
	slots     chan struct{}
	ops       sync.Map // uuid.UUID -> *Operation
}

// NewRunner creates a runner that executes at most workers operations at the same time.
// source may be nil, in which case ImportJob is rejected.
func NewRunner(coll *collection.Collection, receivers *receiver.Factory, source Source, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		coll:      coll,
		receivers: receivers,
		source:    source,
		slots:     make(chan struct{}, workers),
	}
}

// Start validates job synchronously and launches it in the background. Validation errors are
// returned before any unit runs.
func (r *Runner) Start(ctx context.Context, job Job, cb Callbacks) (*Operation, error) {
	if job == nil {
		return nil, model.ErrIncorrectJob
	}

	units, err := r.plan(job)
	if err != nil {
		return nil, err
	}

	r.prune()

	op := newOperation(job.Kind(), len(units))
	r.ops.Store(op.ID, op)

	go r.run(ctx, op, units, cb)
	return op, nil
}

// Get returns a running or recently finished operation.
func (r *Runner) Get(id uuid.UUID) (*Operation, error) {
	v, ok := r.ops.Load(id)
	if !ok {
		return nil, model.ErrOperationNotFound
	}
	return v.(*Operation), nil
}

func (r *Runner) Cancel(id uuid.UUID) error {
	op, err := r.Get(id)
	if err != nil {
		return err
	}
	op.Cancel()
	return nil
}

// List returns all known operations, oldest first.
func (r *Runner) List() []*Operation {
	var res []*Operation
	r.ops.Range(func(_, v any) bool {
		res = append(res, v.(*Operation))
		return true
	})
	sort.Slice(res, func(i, j int) bool { return res[i].startedAt.Before(res[j].startedAt) })
	return res
}

// CancelAll requests cancellation of every operation still running.
func (r *Runner) CancelAll() {
	r.ops.Range(func(_, v any) bool {
		v.(*Operation).Cancel()
		return true
	})
}

func (r *Runner) prune() {
	cutoff := time.Now().UTC().Add(-retention)
	r.ops.Range(func(k, v any) bool {
		if s, ok := v.(*Operation).Summary(); ok && s.FinishedAt != nil && s.FinishedAt.Before(cutoff) {
			r.ops.Delete(k)
		}
		return true
	})
}

func (r *Runner) plan(job Job) ([]unit, error) {
	switch j := job.(type) {
	case ImportJob:
		return r.planImport(j)
	case DirectImportJob:
		return r.planDirectImport(j)
	case DeskewJob:
		return r.planDeskew(j)
	case TransformJob:
		return r.planTransform(j)
	default:
		return nil, model.ErrIncorrectJob
	}
}

func (r *Runner) planImport(j ImportJob) ([]unit, error) {
	if r.source == nil {
		return nil, model.ErrIncorrectJob
	}
	if len(j.Items) == 0 {
		return nil, model.ErrEmptySelection
	}
	for _, item := range j.Items {
		if item.Key == "" {
			return nil, model.ErrUnresolvedRecord
		}
	}

	insert := r.receivers.Session(sessionTag(j.Session, model.KindImport))
	units := make([]unit, 0, len(j.Items))
	for _, item := range j.Items {
		units = append(units, func(ctx context.Context) (model.Outcome, error) {
			body, _, err := r.source.Get(ctx, item.Key)
			if err != nil {
				return model.OutcomeFailed, err
			}
			defer body.Close()

			img, _, err := imageproc.Decode(body)
			if err != nil {
				return model.OutcomeFailed, err
			}
			if _, err := insert(collection.NewRecord(img, item.Key).WithTransform(item.Transform)); err != nil {
				return model.OutcomeFailed, err
			}
			return model.OutcomeSucceeded, nil
		})
	}
	return units, nil
}

func (r *Runner) planDirectImport(j DirectImportJob) ([]unit, error) {
	if len(j.Images) == 0 {
		return nil, model.ErrEmptySelection
	}
	for _, d := range j.Images {
		if d.Image == nil {
			return nil, model.ErrNilImage
		}
	}

	insert := r.receivers.Session(sessionTag(j.Session, model.KindDirectImport))
	units := make([]unit, 0, len(j.Images))
	for _, d := range j.Images {
		units = append(units, func(context.Context) (model.Outcome, error) {
			if _, err := insert(collection.NewRecord(d.Image, d.SourceKey).WithTransform(d.Transform)); err != nil {
				return model.OutcomeFailed, err
			}
			return model.OutcomeSucceeded, nil
		})
	}
	return units, nil
}

func (r *Runner) planDeskew(j DeskewJob) ([]unit, error) {
	if err := r.resolve(j.IDs); err != nil {
		return nil, err
	}

	units := make([]unit, 0, len(j.IDs))
	for _, id := range j.IDs {
		units = append(units, func(context.Context) (model.Outcome, error) {
			v, ok := r.coll.Get(id)
			if !ok {
				return model.OutcomeSkipped, nil
			}

			// detection works on the upright image; any previous skew is replaced
			upright, err := imageproc.Render(v.Image, model.Transform{QuarterTurns: v.Transform.QuarterTurns}, 0)
			if err != nil {
				return model.OutcomeFailed, err
			}
			return recordOutcome(r.coll.SetSkew(id, imageproc.DetectSkew(upright)))
		})
	}
	return units, nil
}

func (r *Runner) planTransform(j TransformJob) ([]unit, error) {
	if _, ok := model.TransformOpsMap[j.Op]; !ok {
		return nil, model.ErrIncorrectOp
	}
	if err := r.resolve(j.IDs); err != nil {
		return nil, err
	}

	units := make([]unit, 0, len(j.IDs))
	for _, id := range j.IDs {
		units = append(units, func(context.Context) (model.Outcome, error) {
			return recordOutcome(r.coll.ApplyTransformID(id, j.Op))
		})
	}
	return units, nil
}

func (r *Runner) resolve(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return model.ErrEmptySelection
	}
	if !r.coll.Contains(ids...) {
		return model.ErrUnresolvedRecord
	}
	return nil
}

// recordOutcome maps the result of a per-record mutation: a record deleted while the operation
// was running is skipped, not failed.
func recordOutcome(err error) (model.Outcome, error) {
	switch {
	case err == nil:
		return model.OutcomeSucceeded, nil
	case errors.Is(err, model.ErrRecordNotFound):
		return model.OutcomeSkipped, nil
	default:
		return model.OutcomeFailed, err
	}
}

func sessionTag(session string, kind model.Kind) string {
	if session != "" {
		return session
	}
	return string(kind) + "-" + uuid.NewString()
}

func (r *Runner) run(ctx context.Context, op *Operation, units []unit, cb Callbacks) {
	logger := mwlogger.LoggerFromContext(ctx).With().
		Str("operation", op.ID.String()).
		Str("kind", string(op.Kind)).
		Logger()

	summary := model.Summary{
		OperationID: op.ID,
		Kind:        op.Kind,
		Total:       len(units),
	}
	started := op.startedAt
	summary.StartedAt = &started

	ran := 0
	select {
	case r.slots <- struct{}{}:
		op.state.Store(model.StateRunning)
		logger.Info().Int("units", len(units)).Msg("operation started")

		// units are never interrupted halfway
		unitCtx := context.WithoutCancel(ctx)
		for i, u := range units {
			if op.cancelRequested() || ctx.Err() != nil {
				break
			}

			outcome, err := runUnit(unitCtx, u)
			switch outcome {
			case model.OutcomeSucceeded:
				summary.Succeeded++
			case model.OutcomeSkipped:
				summary.Skipped++
			default:
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("unit %d: %v", i, err))
				logger.Warn().Err(err).Int("unit", i).Msg("operation unit failed")
			}
			ran++

			p := op.completed.Add(1)
			if cb.OnProgress != nil {
				cb.OnProgress(op, model.Progress{Completed: int(p), Total: len(units)})
			}
		}
		<-r.slots
	case <-op.cancelled:
	case <-ctx.Done():
	}

	summary.Applied = summary.Succeeded
	switch {
	case ran < len(units):
		summary.State = model.StateCancelled
	case summary.Succeeded == 0 && summary.Failed > 0:
		summary.State = model.StateFailed
	default:
		summary.State = model.StateCompleted
	}
	finished := time.Now().UTC()
	summary.FinishedAt = &finished

	op.summary = summary
	op.state.Store(summary.State)

	logger.Info().
		Str("state", string(summary.State)).
		Int("succeeded", summary.Succeeded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("operation finished")

	if cb.OnComplete != nil {
		cb.OnComplete(summary)
	}
	close(op.done)
}

func runUnit(ctx context.Context, u unit) (outcome model.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome, err = model.OutcomeFailed, fmt.Errorf("unit panicked: %v", rec)
		}
	}()
	return u(ctx)
}
