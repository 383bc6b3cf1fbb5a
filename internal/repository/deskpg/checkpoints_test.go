package deskpg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"
)

func newRepoWithMock(t *testing.T) (PostgresRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	pg := &dbpg.DB{Master: db}

	repo := PostgresRepo{DB: pg}

	return repo, mock
}

// REPLACE ALL - SUCCESS
func TestPostgresRepo_ReplaceAll_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	states := []model.RecordState{
		{UID: uuid.New(), Position: 0, SourceKey: "captures/a.png"},
		{UID: uuid.New(), Position: 1, SourceKey: "captures/b.png", Transform: model.Transform{QuarterTurns: 1, Skew: 2.5}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM checkpoint_records`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	for _, s := range states {
		mock.ExpectExec(`INSERT INTO checkpoint_records`).
			WithArgs(s.UID, s.Position, s.SourceKey, s.Transform.QuarterTurns, s.Transform.Skew).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := repo.ReplaceAll(context.Background(), states)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// REPLACE ALL - EMPTY COLLECTION
func TestPostgresRepo_ReplaceAll_Empty(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM checkpoint_records`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceAll(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

// REPLACE ALL - INSERT FAIL ROLLS BACK
func TestPostgresRepo_ReplaceAll_InsertError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	state := model.RecordState{UID: uuid.New(), SourceKey: "captures/a.png"}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM checkpoint_records`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO checkpoint_records`).
		WillReturnError(errors.New("db is down"))
	mock.ExpectRollback()

	err := repo.ReplaceAll(context.Background(), []model.RecordState{state})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// REPLACE ALL - BEGIN FAIL
func TestPostgresRepo_ReplaceAll_BeginError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	require.Error(t, repo.ReplaceAll(context.Background(), nil))
}

// LIST - SUCCESS
func TestPostgresRepo_List_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	a, b := uuid.New(), uuid.New()
	rows := sqlmock.NewRows([]string{"record_uid", "position", "source_key", "quarter_turns", "skew"}).
		AddRow(a.String(), 0, "captures/a.png", 0, 0.0).
		AddRow(b.String(), 1, "captures/b.png", 3, -1.5)

	mock.ExpectQuery(`SELECT record_uid`).
		WillReturnRows(rows)

	states, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)
	require.Equal(t, a, states[0].UID)
	require.Equal(t, "captures/b.png", states[1].SourceKey)
	require.Equal(t, model.Transform{QuarterTurns: 3, Skew: -1.5}, states[1].Transform)
}

// LIST - QUERY FAIL
func TestPostgresRepo_List_Error(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT record_uid`).
		WillReturnError(errors.New("db is down"))

	_, err := repo.List(context.Background())
	require.Error(t, err)
}
