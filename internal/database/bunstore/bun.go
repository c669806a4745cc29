package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cubegraph/cubegraph/internal/database"
	"github.com/cubegraph/cubegraph/internal/database/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// Ensure BunStore implements RunRepository
var _ database.RunRepository = (*BunStore)(nil)

type BunStore struct {
	db *bun.DB
}

// OpenSQLite opens (or creates) the ledger database at path.
func OpenSQLite(ctx context.Context, path string) (*BunStore, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	// sqlite allows a single writer; loads record steps sequentially anyway.
	sqldb.SetMaxOpenConns(1)

	store, err := NewBunStore(ctx, sqldb, sqlitedialect.New())
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return store, nil
}

func NewBunStore(ctx context.Context, db *sql.DB, dialect schema.Dialect) (*BunStore, error) {
	bunDB := bun.NewDB(db, dialect)

	store := &BunStore{db: bunDB}

	// Create tables if they don't exist
	if _, err := bunDB.NewCreateTable().Model((*models.LoadRun)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create load_runs table: %w", err)
	}
	if _, err := bunDB.NewCreateTable().Model((*models.RunStep)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create run_steps table: %w", err)
	}
	if _, err := bunDB.NewCreateIndex().Model((*models.LoadRun)(nil)).Index("idx_load_runs_dataset_uri").Column("dataset_uri").IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create load_runs index: %w", err)
	}

	return store, nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return database.ErrNotFound
	}
	return err
}

func (s *BunStore) CreateRun(ctx context.Context, run *models.LoadRun) (int64, error) {
	if _, err := s.db.NewInsert().Model(run).Exec(ctx); err != nil {
		return 0, err
	}
	return run.ID, nil
}

func (s *BunStore) GetRunByID(ctx context.Context, id int64) (*models.LoadRun, error) {
	run := new(models.LoadRun)
	if err := s.db.NewSelect().Model(run).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return run, nil
}

func (s *BunStore) GetLatestRunByDataset(ctx context.Context, datasetURI string) (*models.LoadRun, error) {
	run := new(models.LoadRun)
	if err := s.db.NewSelect().Model(run).Where("dataset_uri = ?", datasetURI).Order("id DESC").Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return run, nil
}

func (s *BunStore) ListRuns(ctx context.Context, limit int) ([]*models.LoadRun, error) {
	var runs []*models.LoadRun
	q := s.db.NewSelect().Model(&runs).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *BunStore) UpdateRunStatus(ctx context.Context, runID int64, currentVersion int, status models.RunStatus, currentStep models.LoadStep, errorMsg string) error {
	res, err := s.db.NewUpdate().Model((*models.LoadRun)(nil)).
		Set("status = ?", status).
		Set("current_step = ?", currentStep).
		Set("error_message = ?", errorMsg).
		Set("version = version + 1").
		Set("updated_at = current_timestamp").
		Where("id = ? AND version = ?", runID, currentVersion).
		Exec(ctx)

	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return database.ErrConcurrentUpdate
	}
	return nil
}

func (s *BunStore) UpdateRunStats(ctx context.Context, runID int64, datasetName string, dimensions, rows int) error {
	_, err := s.db.NewUpdate().Model((*models.LoadRun)(nil)).
		Set("dataset_name = ?", datasetName).
		Set("dimension_count = ?", dimensions).
		Set("row_count = ?", rows).
		Set("updated_at = current_timestamp").
		Where("id = ?", runID).
		Exec(ctx)
	return err
}

func (s *BunStore) UpsertRunStep(ctx context.Context, step *models.RunStep) (int64, error) {
	if step.ID == 0 {
		if _, err := s.db.NewInsert().Model(step).Exec(ctx); err != nil {
			return 0, err
		}
	} else {
		step.UpdatedAt = time.Now()
		if _, err := s.db.NewUpdate().Model(step).ExcludeColumn("created_at").WherePK().Exec(ctx); err != nil {
			return 0, err
		}
	}
	return step.ID, nil
}

func (s *BunStore) GetRunSteps(ctx context.Context, runID int64) ([]*models.RunStep, error) {
	var steps []*models.RunStep
	if err := s.db.NewSelect().Model(&steps).Where("load_run_id = ?", runID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return steps, nil
}
