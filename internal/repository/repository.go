// Package repository provides methods to work with the removal history DB
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/UnendingLoop/BgRemover/internal/repository/removalpg"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wb-go/wbf/dbpg"
)

type RemovalRepo interface {
	Create(ctx context.Context, r *model.Removal) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Removal, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Removal, error)
	SaveResult(ctx context.Context, r *model.Removal) error
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	FailStale(ctx context.Context, olderThan time.Duration, reason string, limit int) ([]string, error)
}

func NewPostgresRemovalRepo(dbconn *dbpg.DB) RemovalRepo {
	return removalpg.PostgresRepo{DB: dbconn}
}

// ConnectWithRetries opens the history DB, trying retryCount times with idle pauses
func ConnectWithRetries(ctx context.Context, dsn string, retryCount int, idle time.Duration) (*dbpg.DB, error) {
	opts := dbpg.Options{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}

	var lastErr error
	for i := range retryCount {
		dbConn, err := dbpg.New(dsn, nil, &opts)
		if err == nil {
			return dbConn, nil
		}
		lastErr = err
		log.Printf("DB connection try #%d failed: %v", i+1, err)

		if i < retryCount-1 {
			if err := pause(ctx, idle); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("out of DB connection retries: %w", lastErr)
}

// MigrateWithRetries applies migrations from migrationsPath; a DB that is still starting gets more tries
func MigrateWithRetries(ctx context.Context, db *sql.DB, migrationsPath string, retries int, idle time.Duration) error {
	var lastErr error
	for i := range retries {
		lastErr = runMigrate(db, migrationsPath)
		if lastErr == nil {
			return nil
		}
		log.Printf("Migration try #%d was unsuccessful: %v", i+1, lastErr)

		if i < retries-1 {
			if err := pause(ctx, idle); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("out of migration retries: %w", lastErr)
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
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

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	log.Println("Database migrations applied successfully")
	return nil
}
