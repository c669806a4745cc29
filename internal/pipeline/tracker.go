package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cubegraph/cubegraph/internal/database"
	"github.com/cubegraph/cubegraph/internal/database/models"
)

// tracker mirrors run progress into the ledger. A nil repository turns it into a pass-through.
type tracker struct {
	runs database.RunRepository
	run  *models.LoadRun
}

func (t *tracker) step(ctx context.Context, name models.LoadStep, fn func() (any, error)) error {
	if t.runs == nil {
		_, err := fn()
		return err
	}

	if err := t.runs.UpdateRunStatus(ctx, t.run.ID, t.run.Version, models.RunStatusProcessing, name, ""); err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	t.run.Version++
	t.run.Status = models.RunStatusProcessing
	t.run.CurrentStep = name

	step := &models.RunStep{LoadRunID: t.run.ID, Name: name, Status: models.RunStatusProcessing}
	stepID, err := t.runs.UpsertRunStep(ctx, step)
	if err != nil {
		log.Printf("[Pipeline] Failed to upsert run step: %v", err)
	}
	step.ID = stepID

	meta, err := fn()
	// The ledger must record failures even when ctx is what failed.
	rctx := context.WithoutCancel(ctx)
	if err != nil {
		if statusErr := t.runs.UpdateRunStatus(rctx, t.run.ID, t.run.Version, models.RunStatusFailed, name, err.Error()); statusErr != nil {
			log.Printf("[Pipeline] Failed to update run status: %v", statusErr)
		} else {
			t.run.Version++
			t.run.Status = models.RunStatusFailed
		}
		step.Status = models.RunStatusFailed
		step.ErrorLog = err.Error()
		if _, stepErr := t.runs.UpsertRunStep(rctx, step); stepErr != nil {
			log.Printf("[Pipeline] Failed to upsert run step: %v", stepErr)
		}
		return err
	}

	step.Status = models.RunStatusCompleted
	if meta != nil {
		if b, jsonErr := json.Marshal(meta); jsonErr == nil {
			step.Metadata = string(b)
		}
	}
	if _, stepErr := t.runs.UpsertRunStep(rctx, step); stepErr != nil {
		log.Printf("[Pipeline] Failed to upsert run step: %v", stepErr)
	}
	return nil
}

func (t *tracker) stats(ctx context.Context, datasetName string, dimensions, rows int) {
	if t.runs == nil {
		return
	}
	if err := t.runs.UpdateRunStats(ctx, t.run.ID, datasetName, dimensions, rows); err != nil {
		log.Printf("[Pipeline] Failed to update run stats: %v", err)
	}
}

func (t *tracker) complete(ctx context.Context) error {
	if t.runs == nil {
		return nil
	}
	if err := t.runs.UpdateRunStatus(ctx, t.run.ID, t.run.Version, models.RunStatusCompleted, models.StepLoadRelationships, ""); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	t.run.Version++
	t.run.Status = models.RunStatusCompleted
	return nil
}
