package collection

import (
	"slices"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/google/uuid"
)

type EventType string

const (
	EventTransformChanged EventType = "transform_changed"
	EventThumbnailUpdated EventType = "thumbnail_updated"
	EventRemoved          EventType = "removed"
)

type Event struct {
	Type EventType
	ID   uuid.UUID
}

// Observer receives per-record events. It is called without the collection lock held and may
// call back into the collection.
type Observer func(Event)

// Subscribe registers fn for events of the record with the given identity. The registration is
// dropped automatically once the record is removed; the returned cancel func is idempotent.
func (c *Collection) Subscribe(id uuid.UUID, fn Observer) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[id]; !ok {
		return nil, model.ErrRecordNotFound
	}

	c.nextObs++
	key := c.nextObs
	if c.observers[id] == nil {
		c.observers[id] = make(map[uint64]Observer)
	}
	c.observers[id][key] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if subs, ok := c.observers[id]; ok {
			delete(subs, key)
			if len(subs) == 0 {
				delete(c.observers, id)
			}
		}
	}, nil
}

// Observed returns the number of live observer registrations for the record.
func (c *Collection) Observed(id uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observers[id])
}

// OnChange registers fn to be called after every mutation of the order or of a transform.
func (c *Collection) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

type delivery struct {
	fn Observer
	ev Event
}

// unlockAndNotify releases the lock taken by the caller and then delivers events and change
// signals. Observers of removed records get the removal event and are detached before unlock.
func (c *Collection) unlockAndNotify(events []Event, changed bool) {
	var out []delivery
	for _, ev := range events {
		for _, fn := range c.observers[ev.ID] {
			out = append(out, delivery{fn: fn, ev: ev})
		}
		if ev.Type == EventRemoved {
			delete(c.observers, ev.ID)
		}
	}
	var listeners []func()
	if changed {
		listeners = slices.Clone(c.listeners)
	}
	c.mu.Unlock()

	for _, d := range out {
		d.fn(d.ev)
	}
	for _, fn := range listeners {
		fn()
	}
}

//---------------------

// Tx exposes index computations and insertion while the collection lock is held.
// It must not be used after the Update callback returns.
type Tx struct {
	c       *Collection
	changed bool
}

func (tx *Tx) Len() int {
	return len(tx.c.records)
}

// IndexOf returns the position of the record or -1.
func (tx *Tx) IndexOf(id uuid.UUID) int {
	return tx.c.indexLocked(id)
}

func (tx *Tx) Insert(index int, rec *Record) error {
	if err := tx.c.insertLocked(index, rec); err != nil {
		return err
	}
	tx.changed = true
	return nil
}
