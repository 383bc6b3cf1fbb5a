package service

import (
	"context"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/UnendingLoop/ScanDesk/internal/mwlogger"
	"github.com/UnendingLoop/ScanDesk/internal/operation"
)

const restoreSession = "restore"

// Checkpoint saves order and transforms of every record backed by object storage. It refuses to
// overwrite the stored checkpoint until that checkpoint has been restored completely.
func (c DeskService) Checkpoint(ctx context.Context) error {
	logger := mwlogger.LoggerFromContext(ctx)

	if !c.checkpointsAllowed.Load() {
		logger.Warn().Msg("Checkpoint skipped: stored checkpoint is not fully restored")
		return model.ErrRestoreIncomplete
	}

	views := c.coll.Snapshot()
	states := make([]model.RecordState, 0, len(views))
	for _, v := range views {
		if v.SourceKey == "" {
			continue
		}
		states = append(states, model.RecordState{
			UID:       v.ID,
			Position:  len(states),
			SourceKey: v.SourceKey,
			Transform: v.Transform,
		})
	}

	if err := c.repo.ReplaceAll(ctx, states); err != nil {
		logger.Error().Err(err).Msg("Failed to save collection checkpoint in DB")
		return model.ErrCommon500
	}
	return nil
}

// Restore re-imports the last checkpoint. It returns nil when there is nothing to restore.
// Restored records get new identities. Checkpoints stay disabled until every record came back.
func (c DeskService) Restore(ctx context.Context) (*operation.Operation, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	c.checkpointsAllowed.Store(false)

	states, err := c.repo.List(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load collection checkpoint from DB")
		return nil, model.ErrCommon500
	}
	if len(states) == 0 {
		c.checkpointsAllowed.Store(true)
		return nil, nil
	}

	items := make([]operation.ImportItem, 0, len(states))
	for _, s := range states {
		items = append(items, operation.ImportItem{Key: s.SourceKey, Transform: s.Transform})
	}

	logger.Info().Int("records", len(items)).Msg("restoring collection from checkpoint")
	return c.start(ctx, operation.ImportJob{Session: restoreSession, Items: items}, func(s model.Summary) {
		if s.State != model.StateCompleted || s.Failed > 0 || s.Skipped > 0 {
			logger.Error().Str("state", string(s.State)).Int("failed", s.Failed).
				Msg("collection restored partially, stored checkpoint is kept until restart")
			return
		}
		c.checkpointsAllowed.Store(true)
	})
}
