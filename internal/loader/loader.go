package loader

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cubegraph/cubegraph/internal/cube"
	"golang.org/x/sync/errgroup"
)

// Load steps reported in LoadError.Step.
const (
	StepDataset       = "dataset"
	StepNodes         = "nodes"
	StepObservations  = "observations"
	StepRelationships = "relationships"
	StepMeasures      = "measures"
)

// Options tunes how a load is spread over the store.
type Options struct {
	// BatchSize is the number of names or links per upsert statement.
	BatchSize int
	// Concurrency bounds the number of in-flight upserts within one phase.
	Concurrency int
}

// Loader writes a reshaped observation table into a graph store.
type Loader struct {
	store Store
	opts  Options
}

// New creates a Loader. Non-positive options fall back to one statement per item, one at a time.
func New(store Store, opts Options) *Loader {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Loader{store: store, opts: opts}
}

// Load upserts the full graph projection of table: nodes first, then relationships.
func (l *Loader) Load(ctx context.Context, table *cube.Table) error {
	if err := l.LoadNodes(ctx, table); err != nil {
		return err
	}
	return l.LoadRelationships(ctx, table)
}

// LoadNodes upserts the dataset node, then every dimension-value node and every observation node
// (with its member edge). It returns only once all of them are written.
func (l *Loader) LoadNodes(ctx context.Context, table *cube.Table) error {
	start := time.Now()
	dataset := table.Dataset.CleanLabel

	if err := l.store.MergeDataset(ctx, dataset); err != nil {
		return &cube.LoadError{Step: StepDataset, Label: dataset, Err: err}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)

	for col, label := range table.Dimensions {
		values := table.Distinct(col)
		log.Printf("[Loader] Upserting %d %s nodes", len(values), label)
		for _, batch := range chunk(values, l.opts.BatchSize) {
			g.Go(func() error {
				if err := l.store.MergeNodes(gctx, label, batch); err != nil {
					return &cube.LoadError{Step: StepNodes, Label: label, Err: err}
				}
				return nil
			})
		}
	}

	indexes := make([]string, len(table.Rows))
	for i, row := range table.Rows {
		indexes[i] = row.Index
	}
	log.Printf("[Loader] Upserting %d observation nodes into %s", len(indexes), dataset)
	for _, batch := range chunk(indexes, l.opts.BatchSize) {
		g.Go(func() error {
			if err := l.store.MergeObservations(gctx, dataset, batch); err != nil {
				return &cube.LoadError{Step: StepObservations, Label: LabelObservation, Err: err}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Printf("[Loader] Nodes for %s written in %s", dataset, time.Since(start).Round(time.Millisecond))
	return nil
}

// LoadRelationships upserts one relationship per (row, dimension) and one measure relationship
// per row. Every node it references must already exist.
func (l *Loader) LoadRelationships(ctx context.Context, table *cube.Table) error {
	start := time.Now()

	measureTypes, byType := groupByMeasure(table.Rows)
	if links, ok := byType[""]; ok {
		return &cube.LoadError{Step: StepMeasures, Err: fmt.Errorf("observation %s has no measure type", links[0].Observation)}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)

	for col, relType := range table.Dimensions {
		links := make([]Link, len(table.Rows))
		for i, row := range table.Rows {
			links[i] = Link{Observation: row.Index, Target: row.Values[col]}
		}
		for _, batch := range chunk(links, l.opts.BatchSize) {
			g.Go(func() error {
				if err := l.store.MergeLinks(gctx, relType, batch); err != nil {
					return &cube.LoadError{Step: StepRelationships, Label: relType, Err: err}
				}
				return nil
			})
		}
	}

	for _, mt := range measureTypes {
		for _, batch := range chunk(byType[mt], l.opts.BatchSize) {
			g.Go(func() error {
				if err := l.store.MergeMeasures(gctx, mt, batch); err != nil {
					return &cube.LoadError{Step: StepMeasures, Label: mt, Err: err}
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Printf("[Loader] Relationships for %d rows written in %s", len(table.Rows), time.Since(start).Round(time.Millisecond))
	return nil
}

// groupByMeasure groups value links by measure type, keeping first-seen order. Relationship types
// cannot be parameterized, so each measure type gets its own statements.
func groupByMeasure(rows []cube.ObservationRow) ([]string, map[string][]Link) {
	var order []string
	groups := make(map[string][]Link)
	for _, row := range rows {
		if _, ok := groups[row.MeasureType]; !ok {
			order = append(order, row.MeasureType)
		}
		groups[row.MeasureType] = append(groups[row.MeasureType], Link{Observation: row.Index, Target: row.Value})
	}
	return order, groups
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
