package cube

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// measureTypeMarker identifies the measure-type dimension by substring of its predicate URI.
const measureTypeMarker = "measureType"

// TripleStore runs a SPARQL SELECT and returns the result as CSV text.
type TripleStore interface {
	Select(ctx context.Context, query string) (string, error)
}

// Discoverer resolves a dataset's label and structural dimensions from the triple store.
type Discoverer struct {
	store TripleStore
}

// NewDiscoverer creates a Discoverer backed by store.
func NewDiscoverer(store TripleStore) *Discoverer {
	return &Discoverer{store: store}
}

// Discover normalizes uri and resolves both the dataset reference and its dimensions.
func (d *Discoverer) Discover(ctx context.Context, uri string) (DatasetRef, []Dimension, error) {
	uri = NormalizeURI(uri)

	ds, err := d.ResolveDataset(ctx, uri)
	if err != nil {
		return DatasetRef{}, nil, err
	}
	dims, err := d.Dimensions(ctx, uri)
	if err != nil {
		return DatasetRef{}, nil, err
	}
	return ds, dims, nil
}

// ResolveDataset looks up the human-readable label of a dataset.
func (d *Discoverer) ResolveDataset(ctx context.Context, uri string) (DatasetRef, error) {
	q, err := DatasetLabelQuery(uri)
	if err != nil {
		return DatasetRef{}, err
	}

	header, rows, err := d.selectRows(ctx, q, "dataset label of "+uri)
	if err != nil {
		return DatasetRef{}, err
	}
	col := columnIndex(header, "dsl")
	if col < 0 {
		return DatasetRef{}, fmt.Errorf("%w: dataset label of %s: %w: no dsl column", ErrFetch, uri, ErrParse)
	}
	if len(rows) == 0 {
		return DatasetRef{}, fmt.Errorf("%w: no label for dataset %s", ErrEmptyResult, uri)
	}

	label := rows[0][col]
	clean := CleanLabel(label)
	if clean == "" {
		clean = CleanLabel(LocalName(uri))
	}
	return DatasetRef{URI: uri, Label: label, CleanLabel: clean}, nil
}

// Dimensions returns the dataset's dimensions in discovery order, without the measure-type
// dimension. A structure that declares nothing at all is an ErrEmptyResult; a structure whose only
// dimension is the measure type yields an empty slice.
func (d *Discoverer) Dimensions(ctx context.Context, uri string) ([]Dimension, error) {
	q, err := DimensionsQuery(uri)
	if err != nil {
		return nil, err
	}

	header, rows, err := d.selectRows(ctx, q, "dimensions of "+uri)
	if err != nil {
		return nil, err
	}
	dimCol := columnIndex(header, "dim")
	if dimCol < 0 {
		return nil, fmt.Errorf("%w: dimensions of %s: %w: no dim column", ErrFetch, uri, ErrParse)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no structure found for dataset %s", ErrEmptyResult, uri)
	}
	labelCol := columnIndex(header, "label")

	seen := make(map[string]bool)
	dims := make([]Dimension, 0, len(rows))
	for _, row := range rows {
		pred := row[dimCol]
		if strings.Contains(pred, measureTypeMarker) || seen[pred] {
			continue
		}
		seen[pred] = true

		label := ""
		if labelCol >= 0 {
			label = row[labelCol]
		}
		if label == "" {
			label = LocalName(pred)
		}
		clean := CleanLabel(label)
		if clean == "" {
			clean = fmt.Sprintf("dimension%d", len(dims))
		}
		dims = append(dims, Dimension{PredicateURI: pred, Label: label, CleanLabel: clean})
	}

	if len(dims) == 0 {
		log.Printf("[Discovery] Dataset %s declares no dimensions besides the measure type", uri)
	}
	return dims, nil
}

func (d *Discoverer) selectRows(ctx context.Context, query, what string) ([]string, [][]string, error) {
	text, err := d.store.Select(ctx, query)
	if err != nil {
		if errors.Is(err, ErrFetch) {
			return nil, nil, fmt.Errorf("%s: %w", what, err)
		}
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrFetch, what, err)
	}
	header, rows, err := readCSV(text)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrFetch, what, err)
	}
	return header, rows, nil
}
