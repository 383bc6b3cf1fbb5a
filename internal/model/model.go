// Package model provides data-structs and sentinel errors shared across the app
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

type (
	TransformOp string
	Kind        string
	State       string
	Outcome     string
)

const (
	OpRotateLeft  TransformOp = "rotate_left"
	OpRotateRight TransformOp = "rotate_right"
	OpFlip        TransformOp = "flip" // horizontal + vertical
)

var TransformOpsMap = map[TransformOp]bool{
	OpRotateLeft:  true,
	OpRotateRight: true,
	OpFlip:        true,
}

const (
	KindImport       Kind = "import"
	KindDirectImport Kind = "direct_import"
	KindDeskew       Kind = "deskew"
	KindTransform    Kind = "transform"
)

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

//---------------------

// Transform is the normalized composition of every rotation/flip applied to a record
// plus the fine deskew angle. The zero value is the identity.
type Transform struct {
	QuarterTurns int     `json:"quarter_turns"`  // counter-clockwise, 0..3
	Skew         float64 `json:"skew,omitempty"` // degrees, counter-clockwise
}

func (t Transform) IsIdentity() bool {
	return t.QuarterTurns == 0 && t.Skew == 0
}

// Compose applies op on top of t. Unknown ops leave t unchanged.
func (t Transform) Compose(op TransformOp) Transform {
	switch op {
	case OpRotateLeft:
		t.QuarterTurns++
	case OpRotateRight:
		t.QuarterTurns--
	case OpFlip:
		t.QuarterTurns += 2
	}
	t.QuarterTurns = normalizeTurns(t.QuarterTurns)
	return t
}

// WithSkew composes an additional fine rotation, keeping the skew inside (-45, 45].
func (t Transform) WithSkew(angle float64) Transform {
	skew := t.Skew + angle
	for skew > 45 {
		skew -= 90
		t.QuarterTurns++
	}
	for skew <= -45 {
		skew += 90
		t.QuarterTurns--
	}
	if math.Abs(skew) < 1e-9 {
		skew = 0
	}
	t.Skew = skew
	t.QuarterTurns = normalizeTurns(t.QuarterTurns)
	return t
}

func normalizeTurns(n int) int {
	n %= 4
	if n < 0 {
		n += 4
	}
	return n
}

//---------------------

type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Summary is the terminal report of an operation.
type Summary struct {
	OperationID uuid.UUID   `json:"operation_id"`
	Kind        Kind        `json:"kind"`
	State       State       `json:"state"`
	Total       int         `json:"total"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	Skipped     int         `json:"skipped"`
	Applied     int         `json:"applied"`
	Errors      StringSlice `json:"errors,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
}

// RecordState is the persisted part of a record used for recovery checkpoints.
type RecordState struct {
	UID       uuid.UUID `json:"uid"`
	Position  int       `json:"position"`
	SourceKey string    `json:"source_key"`
	Transform Transform `json:"transform"`
}

// RecordInfo describes one record of the collection for listing.
type RecordInfo struct {
	UID            uuid.UUID `json:"uid"`
	Index          int       `json:"index"`
	SourceKey      string    `json:"source_key,omitempty"`
	Transform      Transform `json:"transform"`
	ThumbnailReady bool      `json:"thumbnail_ready"`
}

const (
	DirUp   = "up"
	DirDown = "down"
)

type SelectionRequest struct {
	Indices []int `json:"indices"`
}

type MoveRequest struct {
	Indices   []int  `json:"indices"`
	Direction string `json:"direction"`
}

type TransformRequest struct {
	Indices []int  `json:"indices"`
	Op      string `json:"op"`
}

type ThumbnailSizeRequest struct {
	Size int `json:"size"`
}

type ImportRequestItem struct {
	Key       string    `json:"key"`
	Transform Transform `json:"transform"`
}

// OperationRequest starts a background operation. Indices select records for deskew and
// transform, Items name stored pages for import.
type OperationRequest struct {
	Kind    string              `json:"kind"`
	Indices []int               `json:"indices"`
	Op      string              `json:"op"`
	Session string              `json:"session"`
	Items   []ImportRequestItem `json:"items"`
}

// Upload is one uploaded file handed to the service.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	File        io.Reader
}

type ExportRequest struct {
	Indices []int `json:"indices"`
}

type ExportResult struct {
	Keys    []string `json:"keys"`
	Deleted int      `json:"deleted"`
}

// ------------------

var (
	ErrCommon500         error = errors.New("something went wrong. Try again later")             // 500
	ErrIndexOutOfRange   error = errors.New("index is out of collection range")                  // 400
	ErrDuplicateRecord   error = errors.New("record is already in the collection")               // 409
	ErrRecordNotFound    error = errors.New("specified record doesn't exist")                    // 404
	ErrEmptySelection    error = errors.New("empty selection provided")                          // 400
	ErrUnresolvedRecord  error = errors.New("selection refers to a missing record")              // 400
	ErrIncorrectOp       error = errors.New("transform operation is not supported")              // 400
	ErrIncorrectJob      error = errors.New("operation kind is not supported")                   // 400
	ErrIncorrectSize     error = errors.New("incorrect thumbnail size provided")                 // 400
	ErrIncorrectID       error = errors.New("incorrect UUID provided")                           // 400
	ErrOperationNotFound error = errors.New("specified operation doesn't exist")                 // 404
	ErrIncorrectDir      error = errors.New("move direction must be 'up' or 'down'")             // 400
	ErrEmptySource       error = errors.New("no images provided")                                // 400
	ErrNilImage          error = errors.New("nil image provided")                                // 400
	ErrUnsupportedFormat error = errors.New("unsupported image format")                          // 400
	ErrRestoreIncomplete error = errors.New("collection is not fully restored, checkpoint kept") // 500
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
}

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.GIF:  GIF,
	imaging.PNG:  PNG,
}

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for StringSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to []StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 || s == nil {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal []StringSlice to JSONB: %w", err)
	}

	return res, nil
}
