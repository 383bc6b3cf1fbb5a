// Package collection provides the ordered, lock-protected store of image records
package collection

import (
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/google/uuid"
)

// Collection keeps records in display/export order. A single mutex guards the order, every
// record's mutable state and the observer registry; notifications are delivered after unlock.
type Collection struct {
	mu        sync.Mutex
	records   []*Record
	byID      map[uuid.UUID]*Record
	observers map[uuid.UUID]map[uint64]Observer
	nextObs   uint64
	listeners []func()
}

func New() *Collection {
	return &Collection{
		byID:      make(map[uuid.UUID]*Record),
		observers: make(map[uuid.UUID]map[uint64]Observer),
	}
}

// Len returns the current number of records.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Insert puts rec at index, shifting later records up by one.
func (c *Collection) Insert(index int, rec *Record) error {
	return c.Update(func(tx *Tx) error {
		return tx.Insert(index, rec)
	})
}

// Update runs fn with the collection lock held, so index lookups and the insertion they lead to
// happen as one step. Change listeners fire after the lock is released.
func (c *Collection) Update(fn func(tx *Tx) error) error {
	c.mu.Lock()
	tx := &Tx{c: c}
	err := fn(tx)
	c.unlockAndNotify(nil, tx.changed)
	return err
}

// MoveUp swaps every selected record with its nearest unselected neighbour above it.
// Records already packed against the top stay where they are. It returns the new positions of
// the selected records in ascending order.
func (c *Collection) MoveUp(indices []int) ([]int, error) {
	c.mu.Lock()
	sel, err := c.selectionLocked(indices)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	moved := false
	out := make([]int, 0, len(sel))
	lower := 0
	for _, i := range sel {
		if i != lower {
			c.records[i], c.records[i-1] = c.records[i-1], c.records[i]
			out = append(out, i-1)
			moved = true
		} else {
			out = append(out, i)
		}
		lower++
	}

	c.unlockAndNotify(nil, moved)
	return out, nil
}

// MoveDown is the mirror of MoveUp, processing the selection from the bottom.
func (c *Collection) MoveDown(indices []int) ([]int, error) {
	c.mu.Lock()
	sel, err := c.selectionLocked(indices)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	moved := false
	out := make([]int, len(sel))
	upper := len(c.records) - 1
	for k := len(sel) - 1; k >= 0; k-- {
		i := sel[k]
		if i != upper {
			c.records[i], c.records[i+1] = c.records[i+1], c.records[i]
			out[k] = i + 1
			moved = true
		} else {
			out[k] = i
		}
		upper--
	}

	c.unlockAndNotify(nil, moved)
	return out, nil
}

// Delete removes the records found at indices right now. Out-of-range and repeated indices are
// ignored. It returns the number of removed records.
func (c *Collection) Delete(indices []int) int {
	c.mu.Lock()
	victims := make(map[uuid.UUID]bool, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(c.records) {
			victims[c.records[i].ID] = true
		}
	}
	events := c.removeLocked(victims)
	c.unlockAndNotify(events, len(events) > 0)
	return len(events)
}

// DeleteIDs removes records by identity, ignoring identities that are no longer present.
func (c *Collection) DeleteIDs(ids []uuid.UUID) int {
	c.mu.Lock()
	victims := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := c.byID[id]; ok {
			victims[id] = true
		}
	}
	events := c.removeLocked(victims)
	c.unlockAndNotify(events, len(events) > 0)
	return len(events)
}

// Clear removes every record.
func (c *Collection) Clear() int {
	c.mu.Lock()
	victims := make(map[uuid.UUID]bool, len(c.records))
	for _, r := range c.records {
		victims[r.ID] = true
	}
	events := c.removeLocked(victims)
	c.unlockAndNotify(events, len(events) > 0)
	return len(events)
}

// ResetTransforms restores the identity transform on the selected records and marks their
// thumbnails dirty. Out-of-range indices are ignored.
func (c *Collection) ResetTransforms(indices []int) int {
	c.mu.Lock()
	var events []Event
	for _, i := range uniqueInRange(indices, len(c.records)) {
		r := c.records[i]
		r.setTransform(model.Transform{})
		events = append(events, Event{Type: EventTransformChanged, ID: r.ID})
	}
	c.unlockAndNotify(events, len(events) > 0)
	return len(events)
}

// ApplyTransform composes op onto the transform of every selected record.
func (c *Collection) ApplyTransform(indices []int, op model.TransformOp) (int, error) {
	if !model.TransformOpsMap[op] {
		return 0, model.ErrIncorrectOp
	}

	c.mu.Lock()
	var events []Event
	for _, i := range uniqueInRange(indices, len(c.records)) {
		r := c.records[i]
		r.setTransform(r.transform.Compose(op))
		events = append(events, Event{Type: EventTransformChanged, ID: r.ID})
	}
	c.unlockAndNotify(events, len(events) > 0)
	return len(events), nil
}

// ApplyTransformID is ApplyTransform for a single record addressed by identity.
func (c *Collection) ApplyTransformID(id uuid.UUID, op model.TransformOp) error {
	if !model.TransformOpsMap[op] {
		return model.ErrIncorrectOp
	}
	return c.mutateRecord(id, func(r *Record) {
		r.setTransform(r.transform.Compose(op))
	})
}

// SetSkew replaces the fine rotation of the record, keeping its quarter turns.
func (c *Collection) SetSkew(id uuid.UUID, angle float64) error {
	return c.mutateRecord(id, func(r *Record) {
		t := r.transform
		t.Skew = 0
		r.setTransform(t.WithSkew(angle))
	})
}

func (c *Collection) mutateRecord(id uuid.UUID, fn func(r *Record)) error {
	c.mu.Lock()
	r, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("record %s: %w", id, model.ErrRecordNotFound)
	}
	fn(r)
	c.unlockAndNotify([]Event{{Type: EventTransformChanged, ID: id}}, true)
	return nil
}

// SetThumbnail stores a rendered thumbnail. The dirty flag is cleared only when the record's
// transform has not changed since version was observed. It returns false if the record is gone.
func (c *Collection) SetThumbnail(id uuid.UUID, thumb image.Image, size int, version uint64) bool {
	c.mu.Lock()
	r, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	r.thumbnail = thumb
	r.thumbSize = size
	if r.version == version {
		r.dirty = false
	}
	c.unlockAndNotify([]Event{{Type: EventThumbnailUpdated, ID: id}}, false)
	return true
}

// Snapshot copies the state of the records at indices (all records when none are given) at a
// single point in time, in collection order.
func (c *Collection) Snapshot(indices ...int) []View {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(indices) == 0 {
		out := make([]View, len(c.records))
		for i, r := range c.records {
			out[i] = r.view(i)
		}
		return out
	}

	sel := uniqueInRange(indices, len(c.records))
	out := make([]View, 0, len(sel))
	for _, i := range sel {
		out = append(out, c.records[i].view(i))
	}
	return out
}

// Get returns a view of the record with the given identity.
func (c *Collection) Get(id uuid.UUID) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return View{}, false
	}
	return c.records[i].view(i), true
}

// IndexOf returns the current position of the record.
func (c *Collection) IndexOf(id uuid.UUID) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	return i, i >= 0
}

// IDs translates a selection of indices into identities, skipping invalid indices.
func (c *Collection) IDs(indices []int) []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()

	sel := uniqueInRange(indices, len(c.records))
	out := make([]uuid.UUID, 0, len(sel))
	for _, i := range sel {
		out = append(out, c.records[i].ID)
	}
	return out
}

// Indices translates identities into current indices (ascending), skipping missing records.
func (c *Collection) Indices(ids []uuid.UUID) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]int, 0, len(ids))
	for i, r := range c.records {
		if want[r.ID] {
			out = append(out, i)
		}
	}
	return out
}

// Contains reports whether every identity is currently present.
func (c *Collection) Contains(ids ...uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if _, ok := c.byID[id]; !ok {
			return false
		}
	}
	return true
}

//---------------------

func (c *Collection) indexLocked(id uuid.UUID) int {
	if _, ok := c.byID[id]; !ok {
		return -1
	}
	return slices.IndexFunc(c.records, func(r *Record) bool { return r.ID == id })
}

func (c *Collection) insertLocked(index int, rec *Record) error {
	if rec == nil || rec.image == nil {
		return model.ErrNilImage
	}
	if index < 0 || index > len(c.records) {
		return fmt.Errorf("insert at %d of %d: %w", index, len(c.records), model.ErrIndexOutOfRange)
	}
	if _, ok := c.byID[rec.ID]; ok {
		return fmt.Errorf("record %s: %w", rec.ID, model.ErrDuplicateRecord)
	}
	c.records = slices.Insert(c.records, index, rec)
	c.byID[rec.ID] = rec
	return nil
}

// removeLocked drops the victims, keeps indices dense and detaches their observers after
// queueing the removal events for them.
func (c *Collection) removeLocked(victims map[uuid.UUID]bool) []Event {
	if len(victims) == 0 {
		return nil
	}
	events := make([]Event, 0, len(victims))
	c.records = slices.DeleteFunc(c.records, func(r *Record) bool {
		if !victims[r.ID] {
			return false
		}
		delete(c.byID, r.ID)
		events = append(events, Event{Type: EventRemoved, ID: r.ID})
		return true
	})
	return events
}

// selectionLocked validates indices for a move and returns them sorted and de-duplicated.
func (c *Collection) selectionLocked(indices []int) ([]int, error) {
	for _, i := range indices {
		if i < 0 || i >= len(c.records) {
			return nil, fmt.Errorf("move index %d of %d: %w", i, len(c.records), model.ErrIndexOutOfRange)
		}
	}
	return uniqueInRange(indices, len(c.records)), nil
}

func uniqueInRange(indices []int, n int) []int {
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < n {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
