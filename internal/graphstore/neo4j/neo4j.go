package neo4j

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cubegraph/cubegraph/internal/loader"
	"github.com/cubegraph/cubegraph/internal/metrics"
	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
)

// Ensure Client implements loader.Store
var _ loader.Store = (*Client)(nil)

// Client executes graph upserts against Neo4j using the official Go driver.
type Client struct {
	driver   neo4j.Driver
	database string
	metrics  *metrics.Metrics
	exec     func(ctx context.Context, st Statement) (neo4j.ResultSummary, error)

	nodesCreated atomic.Int64
	relsCreated  atomic.Int64
}

// NewClient creates a Neo4j client for database and verifies connectivity. An empty database
// selects the server default.
func NewClient(ctx context.Context, uri, user, password, database string, m *metrics.Metrics) (*Client, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver for %s: %w", uri, err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		if closeErr := driver.Close(ctx); closeErr != nil {
			log.Printf("[Neo4j] Warning: failed to close driver after connectivity check: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to verify Neo4j connectivity at %s: %w", uri, err)
	}

	log.Printf("[Neo4j] Connected to %s as %s (database %q)", uri, user, database)
	c := &Client{driver: driver, database: database, metrics: m}
	c.exec = c.run
	return c, nil
}

func (c *Client) run(ctx context.Context, st Statement) (neo4j.ResultSummary, error) {
	res, err := neo4j.ExecuteQuery(ctx, c.driver, st.Cypher, st.Params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
	)
	if err != nil {
		return nil, err
	}
	return res.Summary, nil
}

// Execute runs one statement and tallies what it created.
func (c *Client) Execute(ctx context.Context, op string, st Statement) error {
	start := time.Now()
	summary, err := c.exec(ctx, st)
	c.metrics.ObserveGraph(op, start, err)
	if err != nil {
		return fmt.Errorf("neo4j %s failed: %w", op, err)
	}
	if summary != nil {
		counters := summary.Counters()
		c.nodesCreated.Add(int64(counters.NodesCreated()))
		c.relsCreated.Add(int64(counters.RelationshipsCreated()))
	}
	return nil
}

// Created reports how many nodes and relationships this client's statements created.
func (c *Client) Created() (nodes, relationships int64) {
	return c.nodesCreated.Load(), c.relsCreated.Load()
}

// MergeDataset upserts the dataset node.
func (c *Client) MergeDataset(ctx context.Context, name string) error {
	return c.Execute(ctx, "merge_dataset", mergeDatasetStatement(name))
}

// MergeNodes upserts one node per name under label.
func (c *Client) MergeNodes(ctx context.Context, label string, names []string) error {
	st, err := mergeNodesStatement(label, names)
	if err != nil {
		return err
	}
	return c.Execute(ctx, "merge_nodes", st)
}

// MergeObservations upserts observation nodes and their member edges into the dataset.
func (c *Client) MergeObservations(ctx context.Context, dataset string, names []string) error {
	return c.Execute(ctx, "merge_observations", mergeObservationsStatement(dataset, names))
}

// MergeLinks upserts observation→dimension-value relationships.
func (c *Client) MergeLinks(ctx context.Context, relType string, links []loader.Link) error {
	st, err := mergeLinksStatement(relType, links)
	if err != nil {
		return err
	}
	return c.Execute(ctx, "merge_links", st)
}

// MergeMeasures upserts measure-typed relationships into value nodes.
func (c *Client) MergeMeasures(ctx context.Context, relType string, links []loader.Link) error {
	st, err := mergeMeasuresStatement(relType, links)
	if err != nil {
		return err
	}
	return c.Execute(ctx, "merge_measures", st)
}

// ImportRDF bulk-loads a local RDF/XML file through the neosemantics (n10s) plugin. The uniqueness
// constraint on Resource.uri is created best-effort; an existing one is not an error.
func (c *Client) ImportRDF(ctx context.Context, path string) (int64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return 0, fmt.Errorf("rdf file: %w", err)
	}

	if err := c.Execute(ctx, "rdf_config", Statement{Cypher: "CALL n10s.graphconfig.init()"}); err != nil {
		return 0, err
	}

	constraint := Statement{Cypher: "CREATE CONSTRAINT n10s_unique_uri IF NOT EXISTS FOR (r:Resource) REQUIRE r.uri IS UNIQUE"}
	if err := c.Execute(ctx, "rdf_constraint", constraint); err != nil {
		if !isClientError(err) {
			return 0, err
		}
		log.Printf("[Neo4j] Constraint n10s_unique_uri not created (continuing): %v", err)
	}

	res, err := neo4j.ExecuteQuery(ctx, c.driver,
		"CALL n10s.rdf.import.fetch($url, $format)",
		map[string]any{"url": "file://" + filepath.ToSlash(abs), "format": "RDF/XML"},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
	)
	if err != nil {
		return 0, fmt.Errorf("neo4j rdf import of %s failed: %w", abs, err)
	}

	var triples int64
	if len(res.Records) > 0 {
		triples, _, _ = neo4j.GetRecordValue[int64](res.Records[0], "triplesLoaded")
	}
	log.Printf("[Neo4j] Imported %d triples from %s", triples, abs)
	return triples, nil
}

func isClientError(err error) bool {
	var neoErr *neo4j.Neo4jError
	return errors.As(err, &neoErr) && strings.HasPrefix(neoErr.Code, "Neo.ClientError.")
}

// Close closes the underlying Neo4j driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
