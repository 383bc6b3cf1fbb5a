// Package repository provides methods to work with DB
package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/UnendingLoop/ScanDesk/internal/repository/deskpg"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wb-go/wbf/dbpg"
)

// DeskRepo persists the recovery checkpoint of the collection and the summaries of finished operations.
type DeskRepo interface {
	ReplaceAll(ctx context.Context, states []model.RecordState) error
	List(ctx context.Context) ([]model.RecordState, error)
	SaveSummary(ctx context.Context, s model.Summary) error
	GetSummary(ctx context.Context, id string) (*model.Summary, error)
}

func NewPostgresDeskRepo(dbconn *dbpg.DB) DeskRepo {
	return deskpg.PostgresRepo{DB: dbconn}
}

// ConnectWithRetries exits the app when every try failed or ctx was cancelled while waiting.
func ConnectWithRetries(ctx context.Context, dsn string, retryCount int, idleTime time.Duration) *dbpg.DB {
	dbOptions := dbpg.Options{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}
	var dbConn *dbpg.DB
	var err error

	for range retryCount {
		dbConn, err = dbpg.New(dsn, nil, &dbOptions)
		if err == nil {
			break
		}
		log.Printf("Failed to connect to PGDB: %s\nWaiting %v before next retry...", err, idleTime)
		if !wait(ctx, idleTime) {
			break
		}
	}

	if err != nil {
		log.Fatal("Failed to connect to DB. Exiting the app...")
	}

	return dbConn
}

func MigrateWithRetries(ctx context.Context, db *sql.DB, migrationsPath string, retries int, idle time.Duration) {
	for i := range retries {
		log.Printf("Migration try #%d...", i+1)
		err := runMigrate(db, migrationsPath)
		if err == nil {
			return
		}
		log.Printf("Migration try #%d was unsuccessful: %v. Waiting %v before next try...", i+1, err, idle)
		if !wait(ctx, idle) {
			log.Fatalln("Interrupted while migrating. Exiting...")
		}
	}
	log.Fatalln("Out of retries. Exiting...")
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func runMigrate(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	sourceURL := "file://" + absPath
	log.Println("Running migrations from:", sourceURL)

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	log.Println("Database migrations applied successfully")
	return nil
}
