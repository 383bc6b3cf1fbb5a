package service

import (
	"context"
	"fmt"

	"github.com/UnendingLoop/ScanDesk/internal/imageproc"
	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/UnendingLoop/ScanDesk/internal/mwlogger"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Export renders the selected records (all when none are selected) with their transforms and
// stores them as numbered PNG pages. Records are removed afterwards when delete-after-export is on.
func (c DeskService) Export(ctx context.Context, req *model.ExportRequest) (*model.ExportResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	views := c.coll.Snapshot(req.Indices...)
	if len(views) == 0 {
		return nil, model.ErrEmptySelection
	}

	batch := c.exportPrefix + uuid.NewString() + "/"
	res := &model.ExportResult{Keys: make([]string, 0, len(views))}
	ids := make([]uuid.UUID, 0, len(views))

	for i, v := range views {
		page, err := imageproc.Render(v.Image, v.Transform, 0)
		if err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to render record %q for export", v.ID))
			c.dropStored(ctx, res.Keys)
			return nil, model.ErrCommon500
		}

		r, size, err := imageproc.Encode(page, imaging.PNG)
		if err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to encode record %q for export", v.ID))
			c.dropStored(ctx, res.Keys)
			return nil, model.ErrCommon500
		}

		key := fmt.Sprintf("%s%04d%s", batch, i+1, model.GetImageFileExt[model.PNG])
		if err := c.storage.Put(ctx, key, size, model.PNG, r); err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to save exported page %q in Storage", key))
			c.dropStored(ctx, res.Keys)
			return nil, model.ErrCommon500
		}

		res.Keys = append(res.Keys, key)
		ids = append(ids, v.ID)
	}

	if c.deleteAfterExport {
		// records are removed by identity: the order may have changed while exporting
		res.Deleted = c.coll.DeleteIDs(ids)
	}
	return res, nil
}

// dropStored removes the objects written by a failed request so nothing partial is left behind.
func (c DeskService) dropStored(ctx context.Context, keys []string) {
	logger := mwlogger.LoggerFromContext(ctx)
	for _, key := range keys {
		if err := c.storage.Delete(ctx, key); err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to delete page %q from Storage", key))
		}
	}
}
