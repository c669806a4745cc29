package database

import (
	"context"
	"errors"

	"github.com/cubegraph/cubegraph/internal/database/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConcurrentUpdate = errors.New("concurrent update detected: version mismatch")
)

// RunRepository persists the load-run ledger
type RunRepository interface {
	CreateRun(ctx context.Context, run *models.LoadRun) (int64, error)
	GetRunByID(ctx context.Context, id int64) (*models.LoadRun, error)
	GetLatestRunByDataset(ctx context.Context, datasetURI string) (*models.LoadRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.LoadRun, error)
	UpdateRunStatus(ctx context.Context, runID int64, currentVersion int, status models.RunStatus, currentStep models.LoadStep, errorMsg string) error
	UpdateRunStats(ctx context.Context, runID int64, datasetName string, dimensions, rows int) error

	UpsertRunStep(ctx context.Context, step *models.RunStep) (int64, error)
	GetRunSteps(ctx context.Context, runID int64) ([]*models.RunStep, error)
}
