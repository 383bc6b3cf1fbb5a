// Package thumbnail keeps the cached thumbnails of the collection in sync with the records'
// transforms and the current target size, rendering one record at a time in the background.
package thumbnail

import (
	"context"
	"sync/atomic"

	"github.com/UnendingLoop/ScanDesk/internal/collection"
	"github.com/UnendingLoop/ScanDesk/internal/imageproc"
	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

type attempt struct {
	version uint64
	size    int
}

// Synchronizer is a single background worker. Wake signals coalesce: any number of wakes while a
// pass is running result in at most one further pass.
type Synchronizer struct {
	coll      *collection.Collection
	size      atomic.Int64
	selection atomic.Pointer[[]uuid.UUID]
	wake      chan struct{}

	// owned by the Run goroutine
	failed map[uuid.UUID]attempt
}

// New creates a synchronizer rendering thumbnails into a size x size box. It subscribes to every
// change of the collection.
func New(coll *collection.Collection, size int) (*Synchronizer, error) {
	if size <= 0 {
		return nil, model.ErrIncorrectSize
	}

	s := &Synchronizer{
		coll:   coll,
		wake:   make(chan struct{}, 1),
		failed: make(map[uuid.UUID]attempt),
	}
	s.size.Store(int64(size))
	coll.OnChange(s.Wake)
	return s, nil
}

// Wake requests a pass. It never blocks.
func (s *Synchronizer) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) TargetSize() int {
	return int(s.size.Load())
}

// SetTargetSize changes the thumbnail size; every cached thumbnail of another size becomes stale.
func (s *Synchronizer) SetTargetSize(size int) error {
	if size <= 0 {
		return model.ErrIncorrectSize
	}
	if int(s.size.Swap(int64(size))) != size {
		s.Wake()
	}
	return nil
}

// SetSelection marks records to be rendered before all others.
func (s *Synchronizer) SetSelection(ids []uuid.UUID) {
	sel := append([]uuid.UUID(nil), ids...)
	s.selection.Store(&sel)
	s.Wake()
}

// Pending returns how many records currently need a thumbnail at the target size.
func (s *Synchronizer) Pending() int {
	size := s.TargetSize()
	n := 0
	for _, v := range s.coll.Snapshot() {
		if v.NeedsThumbnail(size) {
			n++
		}
	}
	return n
}

// Run processes wake signals until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.Wake()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
			s.pass(ctx)
		}
	}
}

// pass renders stale thumbnails until none is left. Each scan works from one snapshot; a wake
// arriving mid-scan (change, size or selection) restarts it from the top.
func (s *Synchronizer) pass(ctx context.Context) {
	for ctx.Err() == nil {
		size := s.TargetSize()
		queue := s.plan(size)
		if len(queue) == 0 {
			return
		}
		s.drain(ctx, queue, size)
	}
}

// drain renders queue in order. It returns true when the whole queue was processed.
func (s *Synchronizer) drain(ctx context.Context, queue []collection.View, size int) bool {
	for _, v := range queue {
		if ctx.Err() != nil {
			return false
		}
		select {
		case <-s.wake:
			return false
		default:
		}

		thumb, err := imageproc.Render(v.Image, v.Transform, size)
		if err != nil {
			s.failed[v.ID] = attempt{version: v.Version, size: size}
			zlog.Logger.Error().Err(err).Str("record", v.ID.String()).Msg("failed to render thumbnail")
			continue
		}
		delete(s.failed, v.ID)

		// a concurrent transform change bumps the version and keeps the record dirty
		s.coll.SetThumbnail(v.ID, thumb, size, v.Version)
	}
	return true
}

// plan returns the records needing a thumbnail at size, selected ones first, from a single snapshot.
// Failure memos of records no longer in the collection are dropped.
func (s *Synchronizer) plan(size int) []collection.View {
	snap := s.coll.Snapshot()
	byID := make(map[uuid.UUID]int, len(snap))
	for i, v := range snap {
		byID[v.ID] = i
	}
	for id := range s.failed {
		if _, ok := byID[id]; !ok {
			delete(s.failed, id)
		}
	}

	queue := make([]collection.View, 0, len(snap))
	taken := make(map[uuid.UUID]bool)
	if sel := s.selection.Load(); sel != nil {
		for _, id := range *sel {
			i, ok := byID[id]
			if ok && !taken[id] && s.wanted(snap[i], size) {
				queue = append(queue, snap[i])
				taken[id] = true
			}
		}
	}
	for _, v := range snap {
		if !taken[v.ID] && s.wanted(v, size) {
			queue = append(queue, v)
		}
	}
	return queue
}

func (s *Synchronizer) wanted(v collection.View, size int) bool {
	if !v.NeedsThumbnail(size) {
		return false
	}
	a, failed := s.failed[v.ID]
	return !failed || a != attempt{version: v.Version, size: size}
}
