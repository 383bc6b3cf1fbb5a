package collection

import (
	"image"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/google/uuid"
)

// Record is one image of the collection. ID and SourceKey are set once by NewRecord and must not
// be changed afterwards; pixel data is owned by the record and only exposed through a View. The
// remaining state is owned by the Collection and only touched under its lock.
type Record struct {
	ID        uuid.UUID
	SourceKey string // content-addressed key in object storage, empty for unstored images

	image     image.Image
	transform model.Transform
	thumbnail image.Image
	thumbSize int
	dirty     bool
	version   uint64
}

// NewRecord creates a record with a fresh identity and a dirty (absent) thumbnail.
func NewRecord(img image.Image, sourceKey string) *Record {
	return &Record{
		ID:        uuid.New(),
		SourceKey: sourceKey,
		image:     img,
		dirty:     true,
	}
}

// WithTransform sets the initial transform. Only valid before the record is inserted.
func (r *Record) WithTransform(t model.Transform) *Record {
	r.transform = t
	return r
}

// View is a copy of a record's state taken under the collection lock.
type View struct {
	ID            uuid.UUID
	Index         int
	Image         image.Image
	SourceKey     string
	Transform     model.Transform
	Thumbnail     image.Image
	ThumbnailSize int
	Dirty         bool
	Version       uint64
}

// NeedsThumbnail reports whether the cached thumbnail is absent, stale or rendered for another size.
func (v View) NeedsThumbnail(size int) bool {
	return v.Thumbnail == nil || v.Dirty || v.ThumbnailSize != size
}

func (r *Record) view(index int) View {
	return View{
		ID:            r.ID,
		Index:         index,
		Image:         r.image,
		SourceKey:     r.SourceKey,
		Transform:     r.transform,
		Thumbnail:     r.thumbnail,
		ThumbnailSize: r.thumbSize,
		Dirty:         r.dirty,
		Version:       r.version,
	}
}

func (r *Record) setTransform(t model.Transform) {
	r.transform = t
	r.dirty = true
	r.version++
}
