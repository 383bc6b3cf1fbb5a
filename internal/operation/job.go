package operation

import (
	"image"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/google/uuid"
)

// Job is one of the closed set of operation inputs below; Runner.Start dispatches on the
// concrete type.
type Job interface {
	Kind() model.Kind
}

// ImportItem names an encoded image in the Source and the transform it should start with.
type ImportItem struct {
	Key       string          `json:"key"`
	Transform model.Transform `json:"transform"`
}

// ImportJob decodes images from the Source and inserts them as one session, so an import stays
// contiguous even while captures are running.
type ImportJob struct {
	Session string
	Items   []ImportItem
}

// DirectImage is an already decoded image handed over with its transform.
type DirectImage struct {
	Image     image.Image
	Transform model.Transform
	SourceKey string
}

// DirectImportJob inserts already decoded images without touching a codec.
type DirectImportJob struct {
	Session string
	Images  []DirectImage
}

// DeskewJob detects the skew of each record and stores the correcting angle in its transform.
type DeskewJob struct {
	IDs []uuid.UUID
}

// TransformJob composes Op onto every record, one record per unit.
type TransformJob struct {
	IDs []uuid.UUID
	Op  model.TransformOp
}

func (ImportJob) Kind() model.Kind       { return model.KindImport }
func (DirectImportJob) Kind() model.Kind { return model.KindDirectImport }
func (DeskewJob) Kind() model.Kind       { return model.KindDeskew }
func (TransformJob) Kind() model.Kind    { return model.KindTransform }
