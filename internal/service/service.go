// Package service provides business-logic for the app
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/UnendingLoop/ScanDesk/internal/collection"
	"github.com/UnendingLoop/ScanDesk/internal/imageproc"
	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/UnendingLoop/ScanDesk/internal/mwlogger"
	"github.com/UnendingLoop/ScanDesk/internal/operation"
	"github.com/UnendingLoop/ScanDesk/internal/repository"
	"github.com/UnendingLoop/ScanDesk/internal/settings"
	"github.com/UnendingLoop/ScanDesk/internal/thumbnail"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

type DeskService struct {
	coll              *collection.Collection
	runner            *operation.Runner
	thumbs            *thumbnail.Synchronizer
	repo              repository.DeskRepo
	publisher         SummaryPublisher
	storage           PageStorage
	uploadPrefix      string
	exportPrefix      string
	deleteAfterExport bool

	// false while a restore is running or after one that left checkpointed records behind
	checkpointsAllowed *atomic.Bool
}

func NewDeskService(s settings.Settings, coll *collection.Collection, runner *operation.Runner, thumbs *thumbnail.Synchronizer,
	repo repository.DeskRepo, pub SummaryPublisher, strg PageStorage,
) *DeskService {
	allowed := &atomic.Bool{}
	allowed.Store(true)

	return &DeskService{
		checkpointsAllowed: allowed,
		coll:               coll,
		runner:             runner,
		thumbs:             thumbs,
		repo:               repo,
		publisher:          pub,
		storage:            strg,
		uploadPrefix:       s.CapturePrefix,
		exportPrefix:       s.ExportPrefix,
		deleteAfterExport:  s.DeleteAfterExport,
	}
}

// SummaryPublisher - контракт для работы с очередью
type SummaryPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// PageStorage - контракт для работы с хранилищем
type PageStorage interface {
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
	StoreContent(ctx context.Context, prefix string, data []byte, contentType string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// Стратегия ретрая отправки в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

func (c DeskService) List(ctx context.Context) []model.RecordInfo {
	size := c.thumbs.TargetSize()
	views := c.coll.Snapshot()

	res := make([]model.RecordInfo, 0, len(views))
	for _, v := range views {
		res = append(res, model.RecordInfo{
			UID:            v.ID,
			Index:          v.Index,
			SourceKey:      v.SourceKey,
			Transform:      v.Transform,
			ThumbnailReady: !v.NeedsThumbnail(size),
		})
	}
	return res
}

// Thumbnail returns the cached thumbnail as PNG, rendering it on the spot when the cache is stale.
func (c DeskService) Thumbnail(ctx context.Context, id string) (io.Reader, int64, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, 0, model.ErrIncorrectID
	}

	v, ok := c.coll.Get(uid)
	if !ok {
		return nil, 0, model.ErrRecordNotFound
	}

	var (
		r    io.Reader
		size int64
	)
	if !v.NeedsThumbnail(c.thumbs.TargetSize()) {
		r, size, err = imageproc.Encode(v.Thumbnail, imaging.PNG)
	} else {
		c.thumbs.Wake()
		r, size, err = imageproc.Thumbnailer(v.Image, v.Transform, c.thumbs.TargetSize(), imaging.PNG)
	}
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to encode thumbnail of record %q", id))
		return nil, 0, model.ErrCommon500
	}
	return r, size, nil
}

func (c DeskService) Move(ctx context.Context, req *model.MoveRequest) ([]int, error) {
	if len(req.Indices) == 0 {
		return nil, model.ErrEmptySelection
	}

	switch req.Direction {
	case model.DirUp:
		return c.coll.MoveUp(req.Indices)
	case model.DirDown:
		return c.coll.MoveDown(req.Indices)
	default:
		return nil, model.ErrIncorrectDir
	}
}

// Transform applies op to the selection right away. Large selections should go through an operation.
func (c DeskService) Transform(ctx context.Context, req *model.TransformRequest) (int, error) {
	op, err := validateTransformRequest(req)
	if err != nil {
		return 0, err
	}
	return c.coll.ApplyTransform(req.Indices, op)
}

func (c DeskService) Reset(ctx context.Context, req *model.SelectionRequest) (int, error) {
	if len(req.Indices) == 0 {
		return 0, model.ErrEmptySelection
	}
	return c.coll.ResetTransforms(req.Indices), nil
}

func (c DeskService) Delete(ctx context.Context, req *model.SelectionRequest) (int, error) {
	if len(req.Indices) == 0 {
		return 0, model.ErrEmptySelection
	}
	return c.coll.Delete(req.Indices), nil
}

func (c DeskService) SetThumbnailSize(ctx context.Context, req *model.ThumbnailSizeRequest) error {
	return c.thumbs.SetTargetSize(req.Size)
}

func (c DeskService) SetSelection(ctx context.Context, req *model.SelectionRequest) {
	c.thumbs.SetSelection(c.coll.IDs(req.Indices))
}

//---------------------

func (c DeskService) StartOperation(ctx context.Context, req *model.OperationRequest) (operation.Info, error) {
	var job operation.Job

	switch model.Kind(req.Kind) {
	case model.KindImport:
		items := make([]operation.ImportItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, operation.ImportItem{Key: it.Key, Transform: it.Transform})
		}
		job = operation.ImportJob{Session: req.Session, Items: items}
	case model.KindDeskew:
		ids, err := c.resolve(req.Indices)
		if err != nil {
			return operation.Info{}, err
		}
		job = operation.DeskewJob{IDs: ids}
	case model.KindTransform:
		ids, err := c.resolve(req.Indices)
		if err != nil {
			return operation.Info{}, err
		}
		job = operation.TransformJob{IDs: ids, Op: normalizeOp(req.Op)}
	default:
		return operation.Info{}, model.ErrIncorrectJob
	}

	op, err := c.start(ctx, job)
	if err != nil {
		return operation.Info{}, err
	}
	return op.Info(), nil
}

// Upload decodes and stores the uploaded pages, then inserts them as one session. Pages stored by
// a failed upload are removed again, unless they were in the storage before.
func (c DeskService) Upload(ctx context.Context, session string, files []model.Upload) (operation.Info, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if len(files) == 0 {
		return operation.Info{}, model.ErrEmptySource
	}

	var created []string
	fail := func(err error) (operation.Info, error) {
		c.dropStored(ctx, created)
		return operation.Info{}, err
	}

	images := make([]operation.DirectImage, 0, len(files))
	for _, f := range files {
		if f.File == nil {
			return fail(model.ErrEmptySource)
		}
		data, err := io.ReadAll(f.File)
		if err != nil {
			return fail(model.ErrEmptySource)
		}

		img, format, err := imageproc.Decode(bytes.NewReader(data))
		if err != nil {
			return fail(fmt.Errorf("%q: %w", f.Name, model.ErrUnsupportedFormat))
		}

		key, isNew, err := c.storage.StoreContent(ctx, c.uploadPrefix, data, model.GetCType[format])
		if err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to save uploaded page %q in Storage", f.Name))
			return fail(model.ErrCommon500)
		}
		if isNew {
			created = append(created, key)
		}
		images = append(images, operation.DirectImage{Image: img, SourceKey: key})
	}

	op, err := c.start(ctx, operation.DirectImportJob{Session: session, Images: images})
	if err != nil {
		return fail(err)
	}
	return op.Info(), nil
}

func (c DeskService) Operation(ctx context.Context, id string) (operation.Info, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	uid, err := uuid.Parse(id)
	if err != nil {
		return operation.Info{}, model.ErrIncorrectID
	}

	if op, err := c.runner.Get(uid); err == nil {
		return op.Info(), nil
	}

	// finished operations leave the registry after a while
	s, err := c.repo.GetSummary(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrOperationNotFound) {
			return operation.Info{}, model.ErrOperationNotFound
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch operation summary %q from DB", id))
		return operation.Info{}, model.ErrCommon500
	}
	return operation.Info{
		ID:       s.OperationID,
		Kind:     s.Kind,
		State:    s.State,
		Progress: model.Progress{Completed: s.Succeeded + s.Failed + s.Skipped, Total: s.Total},
		Summary:  s,
	}, nil
}

func (c DeskService) Operations(ctx context.Context) []operation.Info {
	ops := c.runner.List()
	res := make([]operation.Info, 0, len(ops))
	for _, op := range ops {
		res = append(res, op.Info())
	}
	return res
}

func (c DeskService) CancelOperation(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return model.ErrIncorrectID
	}
	return c.runner.Cancel(uid)
}

// start launches job detached from the request lifetime and reports its summary when it ends.
// then runs after the report, before the operation counts as done.
func (c DeskService) start(ctx context.Context, job operation.Job, then ...func(model.Summary)) (*operation.Operation, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	opCtx := mwlogger.WithLogger(context.WithoutCancel(ctx), logger)

	return c.runner.Start(opCtx, job, operation.Callbacks{
		OnComplete: func(s model.Summary) {
			c.reportSummary(opCtx, s)
			for _, fn := range then {
				fn(s)
			}
		},
	})
}

func (c DeskService) reportSummary(ctx context.Context, s model.Summary) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.repo.SaveSummary(ctx, s); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to save summary of operation %q in DB", s.OperationID))
	}

	payload, err := json.Marshal(s)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal operation summary")
		return
	}
	if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(s.OperationID.String()), payload); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish summary of operation %q to queue", s.OperationID))
	}
}
