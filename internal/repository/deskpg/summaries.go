package deskpg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/UnendingLoop/ScanDesk/internal/model"
)

func (p PostgresRepo) SaveSummary(ctx context.Context, s model.Summary) error {
	query := `INSERT INTO operation_summaries (operation_uid, kind, state, total, succeeded, failed, skipped, errors, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (operation_uid) DO NOTHING`
	_, err := p.DB.Master.ExecContext(ctx, query, s.OperationID, s.Kind, s.State, s.Total, s.Succeeded, s.Failed, s.Skipped, s.Errors, s.StartedAt, s.FinishedAt)
	return err
}

func (p PostgresRepo) GetSummary(ctx context.Context, id string) (*model.Summary, error) {
	query := `SELECT operation_uid, kind, state, total, succeeded, failed, skipped, errors, started_at, finished_at
	FROM operation_summaries
	WHERE operation_uid = $1`
	var s model.Summary

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&s.OperationID,
		&s.Kind,
		&s.State,
		&s.Total,
		&s.Succeeded,
		&s.Failed,
		&s.Skipped,
		&s.Errors,
		&s.StartedAt,
		&s.FinishedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrOperationNotFound
		default:
			return nil, err // 500
		}
	}
	s.Applied = s.Succeeded
	return &s, nil
}
