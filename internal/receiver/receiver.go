// Package receiver builds per-session insertion funcs that keep each capture session's images
// together in the collection, even when several sessions deliver images at the same time.
package receiver

import (
	"fmt"

	"github.com/UnendingLoop/ScanDesk/internal/collection"
	"github.com/google/uuid"
)

// Func inserts one record produced by a session and returns the index it landed at.
type Func func(rec *collection.Record) (int, error)

type Factory struct {
	coll *collection.Collection
}

func New(coll *collection.Collection) *Factory {
	return &Factory{coll: coll}
}

// Session returns a fresh insertion func for one session. Every record goes right after the
// previous record of the same session if that one is still in the collection, otherwise at the
// end. The func may be called from several goroutines: its state only changes under the
// collection lock. The tag only labels returned errors.
func (f *Factory) Session(tag string) Func {
	var last uuid.UUID

	return func(rec *collection.Record) (int, error) {
		var index int
		err := f.coll.Update(func(tx *collection.Tx) error {
			index = tx.Len()
			if last != uuid.Nil {
				if i := tx.IndexOf(last); i >= 0 {
					index = i + 1
				}
			}

			if err := tx.Insert(index, rec); err != nil {
				return err
			}
			last = rec.ID
			return nil
		})
		if err != nil {
			return -1, fmt.Errorf("session %q: %w", tag, err)
		}
		return index, nil
	}
}
