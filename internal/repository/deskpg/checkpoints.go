package deskpg

import (
	"context"
	"fmt"
	"log"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

// ReplaceAll swaps the stored checkpoint for states in one transaction.
func (p PostgresRepo) ReplaceAll(ctx context.Context, states []model.RecordState) error {
	tx, err := p.DB.Master.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_records`); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}

	query := `INSERT INTO checkpoint_records (record_uid, position, source_key, quarter_turns, skew, saved_at)
	VALUES ($1, $2, $3, $4, $5, now())`
	for _, s := range states {
		if _, err := tx.ExecContext(ctx, query, s.UID, s.Position, s.SourceKey, s.Transform.QuarterTurns, s.Transform.Skew); err != nil {
			return fmt.Errorf("save record %s: %w", s.UID, err)
		}
	}

	return tx.Commit()
}

func (p PostgresRepo) List(ctx context.Context) ([]model.RecordState, error) {
	query := `SELECT record_uid, position, source_key, quarter_turns, skew
	FROM checkpoint_records
	ORDER BY position`

	rows, err := p.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	var states []model.RecordState
	for rows.Next() {
		var s model.RecordState
		if err := rows.Scan(&s.UID,
			&s.Position,
			&s.SourceKey,
			&s.Transform.QuarterTurns,
			&s.Transform.Skew); err != nil {
			return nil, err
		}
		states = append(states, s)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return states, nil
}
