package neo4j

import (
	"errors"
	"strings"

	"github.com/cubegraph/cubegraph/internal/loader"
)

// Statement is one parameterized Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

var errEmptyIdentifier = errors.New("empty label or relationship type")

// quoteIdent renders a label or relationship type as a backtick-quoted identifier. Labels and
// relationship types cannot be bound as parameters, so this is the only place names from the data
// reach the statement text.
func quoteIdent(name string) (string, error) {
	if name == "" {
		return "", errEmptyIdentifier
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`", nil
}

func mergeDatasetStatement(name string) Statement {
	return Statement{
		Cypher: "MERGE (d:" + loader.LabelDataset + " {name: $name})",
		Params: map[string]any{"name": name},
	}
}

func mergeNodesStatement(label string, names []string) (Statement, error) {
	l, err := quoteIdent(label)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Cypher: "UNWIND $names AS name\nMERGE (n:" + l + " {name: name})",
		Params: map[string]any{"names": names},
	}, nil
}

func mergeObservationsStatement(dataset string, names []string) Statement {
	return Statement{
		Cypher: "MATCH (d:" + loader.LabelDataset + " {name: $dataset})\n" +
			"UNWIND $names AS name\n" +
			"MERGE (o:" + loader.LabelObservation + " {name: name})\n" +
			"MERGE (o)-[:" + loader.RelMember + "]->(d)",
		Params: map[string]any{"dataset": dataset, "names": names},
	}
}

func mergeLinksStatement(relType string, links []loader.Link) (Statement, error) {
	t, err := quoteIdent(relType)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Cypher: "UNWIND $links AS link\n" +
			"MATCH (o:" + loader.LabelObservation + " {name: link.observation})\n" +
			"MATCH (t:" + t + " {name: link.target})\n" +
			"MERGE (o)-[:" + t + "]->(t)",
		Params: map[string]any{"links": linkParams(links)},
	}, nil
}

func mergeMeasuresStatement(relType string, links []loader.Link) (Statement, error) {
	t, err := quoteIdent(relType)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Cypher: "UNWIND $links AS link\n" +
			"MATCH (o:" + loader.LabelObservation + " {name: link.observation})\n" +
			"MERGE (o)-[:" + t + "]->(:" + loader.LabelValue + " {name: link.target})",
		Params: map[string]any{"links": linkParams(links)},
	}, nil
}

func linkParams(links []loader.Link) []map[string]any {
	out := make([]map[string]any, len(links))
	for i, l := range links {
		out[i] = map[string]any{"observation": l.Observation, "target": l.Target}
	}
	return out
}
