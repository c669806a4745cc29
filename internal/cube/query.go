package cube

import (
	"fmt"
	"strings"
	"unicode"
)

const prefixes = `PREFIX qb: <http://purl.org/linked-data/cube#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
`

// QueryOptions tunes the generated observation query.
type QueryOptions struct {
	// Limit caps the number of observations fetched. Zero means no limit.
	Limit int
}

// IRI renders uri as a SPARQL IRIREF, refusing anything that could escape the angle brackets.
func IRI(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIRI)
	}
	for _, r := range uri {
		if r <= 0x20 || unicode.IsSpace(r) || strings.ContainsRune("<>\"{}|^`\\", r) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidIRI, uri, r)
		}
	}
	return "<" + uri + ">", nil
}

// DatasetLabelQuery selects the human-readable label of a dataset.
func DatasetLabelQuery(datasetURI string) (string, error) {
	ds, err := IRI(datasetURI)
	if err != nil {
		return "", err
	}
	return prefixes + `
SELECT DISTINCT ?dsl
WHERE {
  ` + ds + ` rdfs:label ?dsl .
}
LIMIT 1
`, nil
}

// DimensionsQuery selects the structural dimensions of a dataset and their optional labels.
func DimensionsQuery(datasetURI string) (string, error) {
	ds, err := IRI(datasetURI)
	if err != nil {
		return "", err
	}
	return prefixes + `
SELECT DISTINCT ?dim ?label
WHERE {
  ` + ds + ` qb:structure/qb:component/qb:dimension ?dim .
  OPTIONAL { ?dim rdfs:label ?label . }
}
`, nil
}

// BuildObservationQuery generates the observation SELECT for a dataset with the given dimensions.
// Each dimension gets one positional variable ?x<i>, bound in declaration order; the measure
// predicate is resolved per row through a variable-predicate pattern. Zero dimensions yield a
// query projecting only ?obs, ?measureType and ?value.
func BuildObservationQuery(dataset DatasetRef, dims []Dimension, opts QueryOptions) (ObservationQuery, error) {
	ds, err := IRI(dataset.URI)
	if err != nil {
		return ObservationQuery{}, err
	}

	bindings := make([]Binding, len(dims))
	vars := make([]string, 0, len(dims)+3)
	vars = append(vars, "?"+columnObs)
	for i, d := range dims {
		bindings[i] = Binding{Dimension: d, Variable: fmt.Sprintf("x%d", i)}
		vars = append(vars, "?"+bindings[i].Variable)
	}
	vars = append(vars, "?"+ColumnMeasureType, "?"+ColumnValue)

	var b strings.Builder
	b.WriteString(prefixes)
	b.WriteString("\nSELECT DISTINCT ")
	b.WriteString(strings.Join(vars, " "))
	b.WriteString("\nWHERE {\n  ?obs qb:dataSet ")
	b.WriteString(ds)
	b.WriteString(" ;\n")
	for _, bd := range bindings {
		pred, err := IRI(bd.Dimension.PredicateURI)
		if err != nil {
			return ObservationQuery{}, fmt.Errorf("dimension %q: %w", bd.Dimension.Label, err)
		}
		fmt.Fprintf(&b, "    %s/rdfs:label ?%s ;\n", pred, bd.Variable)
	}
	b.WriteString("    qb:measureType/rdfs:label ?measureType ;\n")
	b.WriteString("    qb:measureType ?measureTypev ;\n")
	b.WriteString("    ?measureTypev ?value .\n}\nORDER BY ?obs\n")
	if opts.Limit > 0 {
		fmt.Fprintf(&b, "LIMIT %d\n", opts.Limit)
	}

	return ObservationQuery{Text: b.String(), Bindings: bindings}, nil
}
