package cube

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dimVar = regexp.MustCompile(`/rdfs:label \?x\d+ ;`)

func sampleDims(n int) []Dimension {
	dims := make([]Dimension, n)
	for i := range dims {
		dims[i] = Dimension{
			PredicateURI: fmt.Sprintf("http://example.org/dim/d%d", i),
			Label:        fmt.Sprintf("Dim %d", i),
			CleanLabel:   fmt.Sprintf("Dim%d", i),
		}
	}
	return dims
}

func TestBuildObservationQuery_DimensionCount(t *testing.T) {
	ds := DatasetRef{URI: "http://statistics.gov.scot/data/council-tax", CleanLabel: "CouncilTax"}

	for n := 0; n <= 5; n++ {
		q, err := BuildObservationQuery(ds, sampleDims(n), QueryOptions{})
		require.NoError(t, err)

		assert.Len(t, dimVar.FindAllString(q.Text, -1), n, "n=%d", n)
		assert.Len(t, q.Bindings, n)
		assert.Equal(t, 1, strings.Count(q.Text, "qb:measureType/rdfs:label ?measureType"))
		assert.Equal(t, 1, strings.Count(q.Text, "?measureTypev ?value"))

		selectLine := q.Text[strings.Index(q.Text, "SELECT"):]
		selectLine = selectLine[:strings.Index(selectLine, "\n")]
		assert.Equal(t, 3+n, len(strings.Fields(selectLine))-2, "projection for n=%d: %s", n, selectLine)
		assert.True(t, strings.HasSuffix(selectLine, "?measureType ?value"))
	}
}

func TestBuildObservationQuery_BindingsPreserveOrder(t *testing.T) {
	ds := DatasetRef{URI: "http://example.org/ds"}
	dims := sampleDims(3)

	q, err := BuildObservationQuery(ds, dims, QueryOptions{})
	require.NoError(t, err)

	for i, b := range q.Bindings {
		assert.Equal(t, dims[i], b.Dimension)
		assert.Equal(t, fmt.Sprintf("x%d", i), b.Variable)
		assert.Contains(t, q.Text, fmt.Sprintf("<%s>/rdfs:label ?x%d ;", dims[i].PredicateURI, i))
	}
	assert.Less(t, strings.Index(q.Text, "?x0"), strings.Index(q.Text, "?x2"))
	assert.Contains(t, q.Text, "?obs qb:dataSet <http://example.org/ds> ;")
	assert.Contains(t, q.Text, "ORDER BY ?obs")
	assert.NotContains(t, q.Text, "LIMIT")
}

func TestBuildObservationQuery_Limit(t *testing.T) {
	q, err := BuildObservationQuery(DatasetRef{URI: "http://example.org/ds"}, nil, QueryOptions{Limit: 10})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(q.Text, "LIMIT 10\n"))
}

func TestBuildObservationQuery_RejectsInjection(t *testing.T) {
	_, err := BuildObservationQuery(DatasetRef{URI: "http://example.org/ds> . ?s ?p ?o . <x"}, nil, QueryOptions{})
	assert.ErrorIs(t, err, ErrInvalidIRI)

	dims := []Dimension{{PredicateURI: "http://example.org/d}", Label: "Bad"}}
	_, err = BuildObservationQuery(DatasetRef{URI: "http://example.org/ds"}, dims, QueryOptions{})
	assert.ErrorIs(t, err, ErrInvalidIRI)
}

func TestIRI(t *testing.T) {
	got, err := IRI("http://statistics.gov.scot/data/council-tax")
	require.NoError(t, err)
	assert.Equal(t, "<http://statistics.gov.scot/data/council-tax>", got)

	for _, bad := range []string{"", "http://a b", "http://a>b", "http://a\"b", "http://a\\b", "http://a\nb"} {
		_, err := IRI(bad)
		assert.ErrorIs(t, err, ErrInvalidIRI, "%q", bad)
	}
}

func TestDiscoveryQueries(t *testing.T) {
	q, err := DatasetLabelQuery("http://example.org/ds")
	require.NoError(t, err)
	assert.Contains(t, q, "<http://example.org/ds> rdfs:label ?dsl")

	q, err = DimensionsQuery("http://example.org/ds")
	require.NoError(t, err)
	assert.Contains(t, q, "<http://example.org/ds> qb:structure/qb:component/qb:dimension ?dim")
	assert.Contains(t, q, "OPTIONAL { ?dim rdfs:label ?label . }")

	_, err = DimensionsQuery("bad uri")
	assert.ErrorIs(t, err, ErrInvalidIRI)
}
