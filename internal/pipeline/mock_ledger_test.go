package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/cubegraph/cubegraph/internal/database"
	"github.com/cubegraph/cubegraph/internal/database/models"
)

// mockLedger is an in-memory RunRepository for pipeline tests.
type mockLedger struct {
	mu    sync.Mutex
	runs  map[int64]*models.LoadRun
	steps map[int64]*models.RunStep
}

func newMockLedger() *mockLedger {
	return &mockLedger{runs: make(map[int64]*models.LoadRun), steps: make(map[int64]*models.RunStep)}
}

var _ database.RunRepository = (*mockLedger)(nil)

func (m *mockLedger) CreateRun(ctx context.Context, run *models.LoadRun) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = int64(len(m.runs) + 1)
	cp := *run
	m.runs[run.ID] = &cp
	return run.ID, nil
}

func (m *mockLedger) GetRunByID(ctx context.Context, id int64) (*models.LoadRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (m *mockLedger) GetLatestRunByDataset(ctx context.Context, datasetURI string) (*models.LoadRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.LoadRun
	for _, run := range m.runs {
		if run.DatasetURI == datasetURI && (latest == nil || run.ID > latest.ID) {
			latest = run
		}
	}
	if latest == nil {
		return nil, database.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockLedger) ListRuns(ctx context.Context, limit int) ([]*models.LoadRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.LoadRun, 0, len(m.runs))
	for _, run := range m.runs {
		cp := *run
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockLedger) UpdateRunStatus(ctx context.Context, runID int64, currentVersion int, status models.RunStatus, currentStep models.LoadStep, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok || run.Version != currentVersion {
		return database.ErrConcurrentUpdate
	}
	run.Status = status
	run.CurrentStep = currentStep
	run.ErrorMessage = errorMsg
	run.Version++
	return nil
}

func (m *mockLedger) UpdateRunStats(ctx context.Context, runID int64, datasetName string, dimensions, rows int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return database.ErrNotFound
	}
	run.DatasetName = datasetName
	run.Dimensions = dimensions
	run.Rows = rows
	return nil
}

func (m *mockLedger) UpsertRunStep(ctx context.Context, step *models.RunStep) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if step.ID == 0 {
		step.ID = int64(len(m.steps) + 1)
	}
	cp := *step
	m.steps[step.ID] = &cp
	return step.ID, nil
}

func (m *mockLedger) GetRunSteps(ctx context.Context, runID int64) ([]*models.RunStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RunStep
	for _, step := range m.steps {
		if step.LoadRunID == runID {
			cp := *step
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
