package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cubegraph/cubegraph/internal/cube"
	"github.com/cubegraph/cubegraph/internal/database"
	"github.com/cubegraph/cubegraph/internal/database/models"
	"github.com/cubegraph/cubegraph/internal/graphstore/memgraph"
	"github.com/cubegraph/cubegraph/internal/loader"
	"github.com/cubegraph/cubegraph/internal/metrics"
	"github.com/google/uuid"
)

// Options parameterizes a pipeline run.
type Options struct {
	// Timeout bounds a whole run. Zero means no deadline beyond the caller's context.
	Timeout time.Duration
	// RowLimit caps the number of observations fetched and loaded. Zero loads everything.
	RowLimit int
	// DatasetName replaces the dataset's clean label as graph identity and index prefix.
	DatasetName string
	// ExportDir, when set, receives <cleanLabel>.csv of the reshaped table.
	ExportDir string
	// DryRun loads into an in-memory graph instead of the configured store and leaves the run
	// ledger untouched.
	DryRun bool

	Loader loader.Options
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Resumed    bool
	Dataset    cube.DatasetRef
	Dimensions int
	Rows       int
	ExportPath string
	Duration   time.Duration
	// Graph holds the loaded projection of a dry run.
	Graph *memgraph.Graph
}

// QueryPlan is what a run would fetch, without fetching it.
type QueryPlan struct {
	Dataset    cube.DatasetRef
	Dimensions []cube.Dimension
	Query      cube.ObservationQuery
}

// Pipeline runs discover, fetch, reshape and load for one dataset at a time.
type Pipeline struct {
	triples    cube.TripleStore
	discoverer *cube.Discoverer
	graph      loader.Store
	runs       database.RunRepository
	metrics    *metrics.Metrics
	opts       Options
}

// New creates a Pipeline. graph may be nil for dry runs and planning, runs may be nil to skip
// the ledger, m may be nil.
func New(triples cube.TripleStore, graph loader.Store, runs database.RunRepository, m *metrics.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		triples:    triples,
		discoverer: cube.NewDiscoverer(triples),
		graph:      graph,
		runs:       runs,
		metrics:    m,
		opts:       opts,
	}
}

// Plan resolves the dataset and its dimensions and builds the observation query.
func (p *Pipeline) Plan(ctx context.Context, datasetURI string) (*QueryPlan, error) {
	ds, dims, err := p.discoverer.Discover(ctx, datasetURI)
	if err != nil {
		return nil, err
	}
	ds = p.rename(ds)
	q, err := cube.BuildObservationQuery(ds, dims, cube.QueryOptions{Limit: p.opts.RowLimit})
	if err != nil {
		return nil, err
	}
	return &QueryPlan{Dataset: ds, Dimensions: dims, Query: q}, nil
}

// Run loads datasetURI into the graph store. A previous run of the same dataset that did not
// complete is resumed rather than recorded anew; every write is a merge, so replaying its steps
// is safe.
func (p *Pipeline) Run(ctx context.Context, datasetURI string) (res *Result, err error) {
	start := time.Now()
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	uri := cube.NormalizeURI(datasetURI)
	if _, err := cube.IRI(uri); err != nil {
		return nil, err
	}

	graph, runs := p.graph, p.runs
	var dry *memgraph.Graph
	if p.opts.DryRun {
		// A dry run must never resume or complete a real run.
		dry = memgraph.New()
		graph, runs = dry, nil
	}
	if graph == nil {
		return nil, errors.New("no graph store configured")
	}

	run, resumed, err := startOrResume(ctx, runs, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	tr := &tracker{runs: runs, run: run}
	res = &Result{RunID: run.RunID, Resumed: resumed, Graph: dry}

	defer func() {
		res.Duration = time.Since(start)
		p.metrics.ObserveRun(res.Rows, start, err)
		if err != nil {
			log.Printf("[Pipeline] Run %s for %s failed after %s: %v", run.RunID, uri, res.Duration, err)
		}
	}()

	log.Printf("[Pipeline] Starting run %s for %s (resumed: %v, dry run: %v)", run.RunID, uri, resumed, p.opts.DryRun)

	var (
		ds    cube.DatasetRef
		dims  []cube.Dimension
		q     cube.ObservationQuery
		text  string
		table *cube.Table
	)

	if err := tr.step(ctx, models.StepDiscover, func() (any, error) {
		var err error
		ds, dims, err = p.discoverer.Discover(ctx, uri)
		if err != nil {
			return nil, err
		}
		ds = p.rename(ds)
		return map[string]any{"dataset": ds.Label, "cleanLabel": ds.CleanLabel, "dimensions": len(dims)}, nil
	}); err != nil {
		return res, err
	}
	res.Dataset = ds
	res.Dimensions = len(dims)

	if err := tr.step(ctx, models.StepFetch, func() (any, error) {
		var err error
		q, err = cube.BuildObservationQuery(ds, dims, cube.QueryOptions{Limit: p.opts.RowLimit})
		if err != nil {
			return nil, err
		}
		text, err = p.triples.Select(ctx, q.Text)
		if err != nil {
			if errors.Is(err, cube.ErrFetch) {
				return nil, fmt.Errorf("observations of %s: %w", uri, err)
			}
			return nil, fmt.Errorf("%w: observations of %s: %w", cube.ErrFetch, uri, err)
		}
		return map[string]any{"bytes": len(text), "limit": p.opts.RowLimit}, nil
	}); err != nil {
		return res, err
	}

	if err := tr.step(ctx, models.StepReshape, func() (any, error) {
		var err error
		table, err = cube.Reshape(text, q, ds.CleanLabel)
		if err != nil {
			return nil, err
		}
		table.Dataset = ds
		// Endpoints are free to ignore LIMIT.
		table.Limit(p.opts.RowLimit)

		if p.opts.ExportDir != "" {
			path, err := ExportCSV(p.opts.ExportDir, table)
			if err != nil {
				return nil, err
			}
			res.ExportPath = path
			log.Printf("[Pipeline] Exported %d rows to %s", len(table.Rows), path)
		}
		return map[string]any{"rows": len(table.Rows), "columns": table.Columns(), "export": res.ExportPath}, nil
	}); err != nil {
		return res, err
	}
	res.Rows = len(table.Rows)
	tr.stats(ctx, ds.CleanLabel, len(dims), len(table.Rows))

	ld := loader.New(graph, p.opts.Loader)
	if err := tr.step(ctx, models.StepLoadNodes, func() (any, error) {
		return nil, ld.LoadNodes(ctx, table)
	}); err != nil {
		return res, err
	}
	if err := tr.step(ctx, models.StepLoadRelationships, func() (any, error) {
		return nil, ld.LoadRelationships(ctx, table)
	}); err != nil {
		return res, err
	}

	if err := tr.complete(ctx); err != nil {
		return res, err
	}
	log.Printf("[Pipeline] Run %s loaded %d observations of %s (%d dimensions)", run.RunID, res.Rows, ds.CleanLabel, res.Dimensions)
	return res, nil
}

func (p *Pipeline) rename(ds cube.DatasetRef) cube.DatasetRef {
	if p.opts.DatasetName == "" {
		return ds
	}
	if name := cube.CleanLabel(p.opts.DatasetName); name != "" {
		ds.CleanLabel = name
	}
	return ds
}

// startOrResume returns the latest unfinished run of uri, or records a new one.
func startOrResume(ctx context.Context, runs database.RunRepository, uri string) (*models.LoadRun, bool, error) {
	if runs == nil {
		return &models.LoadRun{RunID: uuid.NewString(), DatasetURI: uri, Version: 1}, false, nil
	}

	latest, err := runs.GetLatestRunByDataset(ctx, uri)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, false, err
	}
	if latest != nil && latest.Status != models.RunStatusCompleted {
		log.Printf("[Pipeline] Resuming run %s (%s at step %s)", latest.RunID, latest.Status, latest.CurrentStep)
		return latest, true, nil
	}

	run := &models.LoadRun{
		RunID:       uuid.NewString(),
		DatasetURI:  uri,
		Status:      models.RunStatusPending,
		Version:     1,
		CurrentStep: models.StepDiscover,
	}
	id, err := runs.CreateRun(ctx, run)
	if err != nil {
		return nil, false, err
	}
	run.ID = id
	return run, false, nil
}
