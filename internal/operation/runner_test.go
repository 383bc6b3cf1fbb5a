package operation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UnendingLoop/ScanDesk/internal/collection"
	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/UnendingLoop/ScanDesk/internal/receiver"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T, n int, src Source, workers int) (*Runner, *collection.Collection, []uuid.UUID) {
	t.Helper()

	coll := collection.New()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		rec := collection.NewRecord(image.NewGray(image.Rect(0, 0, 4, 4)), "")
		require.NoError(t, coll.Insert(i, rec))
		ids = append(ids, rec.ID)
	}
	return NewRunner(coll, receiver.New(coll), src, workers), coll, ids
}

func pngBody(t *testing.T) io.ReadCloser {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(8, 6, color.White), imaging.PNG))
	return io.NopCloser(&buf)
}

func waitSummary(t *testing.T, op *Operation) model.Summary {
	t.Helper()

	select {
	case <-op.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("operation did not finish")
	}
	return op.Wait()
}

// START - VALIDATION
func TestRunner_StartValidation(t *testing.T) {
	r, _, ids := newRunner(t, 2, nil, 1)

	tests := []struct {
		name    string
		job     Job
		wantErr error
	}{
		{"nil job", nil, model.ErrIncorrectJob},
		{"empty transform selection", TransformJob{Op: model.OpFlip}, model.ErrEmptySelection},
		{"unknown op", TransformJob{IDs: ids, Op: "mirror"}, model.ErrIncorrectOp},
		{"missing record", TransformJob{IDs: []uuid.UUID{ids[0], uuid.New()}, Op: model.OpFlip}, model.ErrUnresolvedRecord},
		{"empty deskew", DeskewJob{}, model.ErrEmptySelection},
		{"direct import without images", DirectImportJob{}, model.ErrEmptySelection},
		{"direct import nil image", DirectImportJob{Images: []DirectImage{{}}}, model.ErrNilImage},
		{"import without source", ImportJob{Items: []ImportItem{{Key: "a"}}}, model.ErrIncorrectJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := r.Start(context.Background(), tt.job, Callbacks{})
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, op)
		})
	}

	require.Empty(t, r.List())
}

func TestRunner_ImportRejectsEmptyKey(t *testing.T) {
	r, _, _ := newRunner(t, 0, &mockSource{}, 1)

	_, err := r.Start(context.Background(), ImportJob{Items: []ImportItem{{Key: "a"}, {}}}, Callbacks{})
	require.ErrorIs(t, err, model.ErrUnresolvedRecord)
}

// TRANSFORM - SUCCESS
func TestRunner_Transform(t *testing.T) {
	r, coll, ids := newRunner(t, 3, nil, 2)

	var progress []model.Progress
	var completions atomic.Int32
	op, err := r.Start(context.Background(), TransformJob{IDs: ids[:2], Op: model.OpRotateLeft}, Callbacks{
		OnProgress: func(_ *Operation, p model.Progress) { progress = append(progress, p) },
		OnComplete: func(s model.Summary) {
			completions.Add(1)
			require.Equal(t, model.StateCompleted, s.State)
		},
	})
	require.NoError(t, err)

	s := waitSummary(t, op)
	require.Equal(t, model.StateCompleted, s.State)
	require.Equal(t, 2, s.Total)
	require.Equal(t, 2, s.Applied)
	require.Equal(t, int32(1), completions.Load())
	require.Equal(t, []model.Progress{{Completed: 1, Total: 2}, {Completed: 2, Total: 2}}, progress)
	require.Equal(t, model.StateCompleted, op.State())
	require.Equal(t, model.Progress{Completed: 2, Total: 2}, op.Progress())

	for i, want := range []int{1, 1, 0} {
		v, ok := coll.Get(ids[i])
		require.True(t, ok)
		require.Equal(t, want, v.Transform.QuarterTurns)
	}
}

// TRANSFORM - RECORD DELETED MID-RUN
func TestRunner_RecordDeletedWhileRunning(t *testing.T) {
	r, coll, ids := newRunner(t, 5, nil, 1)

	op, err := r.Start(context.Background(), TransformJob{IDs: ids, Op: model.OpFlip}, Callbacks{
		OnProgress: func(_ *Operation, p model.Progress) {
			if p.Completed == 2 {
				coll.DeleteIDs([]uuid.UUID{ids[2]})
			}
		},
	})
	require.NoError(t, err)

	s := waitSummary(t, op)
	require.Equal(t, model.StateCompleted, s.State)
	require.Equal(t, 5, s.Total)
	require.Equal(t, 4, s.Applied)
	require.Equal(t, 1, s.Skipped)
	require.Equal(t, 0, s.Failed)
	require.Equal(t, 4, coll.Len())
}

// IMPORT - SUCCESS
func TestRunner_ImportAppendsAsOneSession(t *testing.T) {
	src := &mockSource{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return pngBody(t), model.PNG, nil
		},
	}
	r, coll, _ := newRunner(t, 2, src, 1)

	op, err := r.Start(context.Background(), ImportJob{
		Session: "import-1",
		Items: []ImportItem{
			{Key: "captures/a.png"},
			{Key: "captures/b.png", Transform: model.Transform{QuarterTurns: 2}},
		},
	}, Callbacks{})
	require.NoError(t, err)

	s := waitSummary(t, op)
	require.Equal(t, model.StateCompleted, s.State)
	require.Equal(t, 2, s.Succeeded)

	snap := coll.Snapshot()
	require.Len(t, snap, 4)
	require.Equal(t, "captures/a.png", snap[2].SourceKey)
	require.Equal(t, "captures/b.png", snap[3].SourceKey)
	require.Equal(t, 2, snap[3].Transform.QuarterTurns)
	require.Equal(t, 8, snap[2].Image.Bounds().Dx())
}

// IMPORT - ALL UNITS FAIL
func TestRunner_ImportFailures(t *testing.T) {
	tests := []struct {
		name       string
		getFn      func(ctx context.Context, key string) (io.ReadCloser, string, error)
		wantState  model.State
		wantFailed int
	}{
		{
			name: "storage is down",
			getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
				return nil, "", errors.New("storage is down")
			},
			wantState:  model.StateFailed,
			wantFailed: 2,
		},
		{
			name: "broken image",
			getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
				return io.NopCloser(bytes.NewReader([]byte("junk"))), model.PNG, nil
			},
			wantState:  model.StateFailed,
			wantFailed: 2,
		},
		{
			name: "one bad item",
			getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
				if key == "bad" {
					return nil, "", errors.New("not found")
				}
				return pngBody(t), model.PNG, nil
			},
			wantState:  model.StateCompleted,
			wantFailed: 1,
		},
		{
			name: "source panics",
			getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
				panic("boom")
			},
			wantState:  model.StateFailed,
			wantFailed: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newRunner(t, 0, &mockSource{getFn: tt.getFn}, 1)

			op, err := r.Start(context.Background(), ImportJob{Items: []ImportItem{{Key: "good"}, {Key: "bad"}}}, Callbacks{})
			require.NoError(t, err)

			s := waitSummary(t, op)
			require.Equal(t, tt.wantState, s.State)
			require.Equal(t, tt.wantFailed, s.Failed)
			require.Len(t, s.Errors, tt.wantFailed)
		})
	}
}

// CANCEL - BETWEEN UNITS
func TestRunner_CancelStopsBeforeNextUnit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	src := &mockSource{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			if key == "first" {
				close(entered)
				<-release
			}
			return pngBody(t), model.PNG, nil
		},
	}
	r, coll, _ := newRunner(t, 0, src, 1)

	op, err := r.Start(context.Background(), ImportJob{
		Items: []ImportItem{{Key: "first"}, {Key: "second"}, {Key: "third"}},
	}, Callbacks{})
	require.NoError(t, err)

	<-entered
	require.Equal(t, model.StateRunning, op.State())
	require.NoError(t, r.Cancel(op.ID))
	close(release)

	s := waitSummary(t, op)
	require.Equal(t, model.StateCancelled, s.State)
	require.Equal(t, 1, s.Succeeded)
	require.Equal(t, 3, s.Total)
	require.Equal(t, 1, coll.Len())

	require.ErrorIs(t, r.Cancel(uuid.New()), model.ErrOperationNotFound)
}

// CANCEL - WAITING FOR A WORKER SLOT
func TestRunner_CancelWhileQueued(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	src := &mockSource{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			close(entered)
			<-release
			return pngBody(t), model.PNG, nil
		},
	}
	r, _, ids := newRunner(t, 2, src, 1)

	first, err := r.Start(context.Background(), ImportJob{Items: []ImportItem{{Key: "slow"}}}, Callbacks{})
	require.NoError(t, err)
	<-entered

	second, err := r.Start(context.Background(), TransformJob{IDs: ids, Op: model.OpFlip}, Callbacks{})
	require.NoError(t, err)
	require.Equal(t, model.StatePending, second.State())

	second.Cancel()
	s := waitSummary(t, second)
	require.Equal(t, model.StateCancelled, s.State)
	require.Equal(t, 0, second.Progress().Completed)

	close(release)
	require.Equal(t, model.StateCompleted, waitSummary(t, first).State)
}

func TestRunner_ContextCancelled(t *testing.T) {
	r, _, ids := newRunner(t, 2, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op, err := r.Start(ctx, TransformJob{IDs: ids, Op: model.OpFlip}, Callbacks{})
	require.NoError(t, err)
	require.Equal(t, model.StateCancelled, waitSummary(t, op).State)
}

// DESKEW - SUCCESS
func TestRunner_Deskew(t *testing.T) {
	page := imaging.New(400, 300, color.White)
	for y := 30; y < 280; y += 40 {
		for dy := 0; dy < 3; dy++ {
			for x := 20; x < 380; x++ {
				page.Set(x, y+dy, color.Black)
			}
		}
	}

	coll := collection.New()
	rec := collection.NewRecord(imaging.Rotate(page, -5, color.White), "")
	require.NoError(t, coll.Insert(0, rec))
	r := NewRunner(coll, receiver.New(coll), nil, 1)

	op, err := r.Start(context.Background(), DeskewJob{IDs: []uuid.UUID{rec.ID}}, Callbacks{})
	require.NoError(t, err)
	require.Equal(t, model.StateCompleted, waitSummary(t, op).State)

	v, ok := coll.Get(rec.ID)
	require.True(t, ok)
	require.InDelta(t, 5, v.Transform.Skew, 1)
	require.Equal(t, 0, v.Transform.QuarterTurns)
}

func TestRunner_DirectImportAndRegistry(t *testing.T) {
	r, coll, _ := newRunner(t, 1, nil, 1)

	op, err := r.Start(context.Background(), DirectImportJob{Images: []DirectImage{
		{Image: image.NewGray(image.Rect(0, 0, 2, 2)), SourceKey: "direct"},
	}}, Callbacks{})
	require.NoError(t, err)
	waitSummary(t, op)

	got, err := r.Get(op.ID)
	require.NoError(t, err)
	require.Same(t, op, got)

	info := got.Info()
	require.Equal(t, model.KindDirectImport, info.Kind)
	require.NotNil(t, info.Summary)
	require.Equal(t, 1, info.Summary.Applied)
	require.Equal(t, 2, coll.Len())

	_, err = r.Get(uuid.New())
	require.ErrorIs(t, err, model.ErrOperationNotFound)
}
