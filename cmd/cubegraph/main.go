// Package main provides the cubegraph binary entry point.
// cubegraph loads RDF Data Cube datasets from a SPARQL endpoint into a Neo4j property graph.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cubegraph/cubegraph/internal/config"
	"github.com/cubegraph/cubegraph/internal/database/bunstore"
	"github.com/cubegraph/cubegraph/internal/graphstore/neo4j"
	"github.com/cubegraph/cubegraph/internal/loader"
	"github.com/cubegraph/cubegraph/internal/metrics"
	"github.com/cubegraph/cubegraph/internal/pipeline"
	"github.com/cubegraph/cubegraph/internal/sparql"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "cubegraph"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// overrides carries command-line flags that take precedence over the environment.
type overrides struct {
	endpoint    string
	neo4jURI    string
	neo4jDB     string
	ledgerPath  string
	logLevel    string
	timeout     time.Duration
	concurrency int
	batchSize   int
	rowLimit    int
	datasetName string
	exportDir   string
}

func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.SPARQLEndpoint = o.endpoint
	}
	if flags.Changed("neo4j-uri") {
		cfg.Neo4jURI = o.neo4jURI
	}
	if flags.Changed("neo4j-database") {
		cfg.Neo4jDatabase = o.neo4jDB
	}
	if flags.Changed("ledger") {
		cfg.LedgerPath = o.ledgerPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = o.concurrency
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = o.batchSize
	}
	if flags.Changed("row-limit") {
		cfg.RowLimit = o.rowLimit
	}
	if flags.Changed("dataset-name") {
		cfg.DatasetName = o.datasetName
	}
	if flags.Changed("export-dir") {
		cfg.ExportDir = o.exportDir
	}
}

func rootCmd() *cobra.Command {
	var (
		o   overrides
		cfg *config.Config
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Load RDF Data Cube datasets into a Neo4j property graph",
		Long: `cubegraph discovers the dimensions of a statistical dataset published as an
RDF Data Cube, fetches its observations from a SPARQL endpoint as CSV and
loads them into Neo4j as dataset, observation, dimension-value and value nodes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			o.apply(cmd, loaded)
			if err := loaded.Validate(); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}
			cfg = loaded
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.endpoint, "endpoint", "", "SPARQL endpoint answering SELECT queries as CSV")
	pf.StringVar(&o.neo4jURI, "neo4j-uri", "", "Neo4j bolt URI")
	pf.StringVar(&o.neo4jDB, "neo4j-database", "", "Neo4j database name")
	pf.StringVar(&o.ledgerPath, "ledger", "", "Run ledger sqlite file")
	pf.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.DurationVar(&o.timeout, "timeout", 0, "Overall deadline of one run")

	cfgFn := func() *config.Config { return cfg }
	cmd.AddCommand(
		loadCmd(&o, cfgFn),
		planCmd(&o, cfgFn),
		importRDFCmd(cfgFn),
		runsCmd(cfgFn),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			// Version needs no configuration.
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func newSPARQLClient(cfg *config.Config, m *metrics.Metrics) *sparql.Client {
	return sparql.NewClient(sparql.Options{
		Endpoint:         cfg.SPARQLEndpoint,
		Timeout:          cfg.SPARQLTimeout,
		Debug:            cfg.Debug(),
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerTimeout,
	}, m)
}

func pipelineOptions(cfg *config.Config, dryRun bool) pipeline.Options {
	return pipeline.Options{
		Timeout:     cfg.Timeout,
		RowLimit:    cfg.RowLimit,
		DatasetName: cfg.DatasetName,
		ExportDir:   cfg.ExportDir,
		DryRun:      dryRun,
		Loader: loader.Options{
			BatchSize:   cfg.BatchSize,
			Concurrency: cfg.Concurrency,
		},
	}
}

func loadCmd(o *overrides, cfgFn func() *config.Config) *cobra.Command {
	var (
		dryRun      bool
		metricsAddr string
		noLedger    bool
	)

	cmd := &cobra.Command{
		Use:   "load <dataset-uri>",
		Short: "Load one dataset into the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			ctx := cmd.Context()
			m := metrics.New()

			if metricsAddr != "" {
				metricsCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				go func() {
					if err := m.Serve(metricsCtx, metricsAddr); err != nil {
						log.Printf("[Metrics] Server stopped: %v", err)
					}
				}()
			}

			var (
				graph   loader.Store
				counter creationCounter
			)
			if !dryRun {
				client, err := neo4j.NewClient(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, m)
				if err != nil {
					return err
				}
				defer func() {
					if err := client.Close(context.WithoutCancel(ctx)); err != nil {
						log.Printf("[Neo4j] Warning: failed to close driver: %v", err)
					}
				}()
				graph, counter = client, client
			}

			var p *pipeline.Pipeline
			triples := newSPARQLClient(cfg, m)
			// Dry runs never touch the ledger.
			if noLedger || dryRun {
				p = pipeline.New(triples, graph, nil, m, pipelineOptions(cfg, dryRun))
			} else {
				ledger, err := bunstore.OpenSQLite(ctx, cfg.LedgerPath)
				if err != nil {
					return err
				}
				defer ledger.Close()
				p = pipeline.New(triples, graph, ledger, m, pipelineOptions(cfg, dryRun))
			}

			res, err := p.Run(ctx, args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res, counter)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&dryRun, "dry-run", false, "Load into an in-memory graph and print its shape, without recording a run")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while loading")
	f.BoolVar(&noLedger, "no-ledger", false, "Do not record the run in the ledger")
	f.IntVar(&o.rowLimit, "row-limit", 0, "Fetch at most this many observations")
	f.StringVar(&o.datasetName, "dataset-name", "", "Graph name of the dataset, replacing its label")
	f.StringVar(&o.exportDir, "export-dir", "", "Write the reshaped table as <dataset>.csv into this directory")
	f.IntVar(&o.concurrency, "concurrency", 0, "Concurrent graph upserts per phase")
	f.IntVar(&o.batchSize, "batch-size", 0, "Items per graph upsert statement")
	return cmd
}

// creationCounter reports what a graph store's statements actually created.
type creationCounter interface {
	Created() (nodes, relationships int64)
}

func printResult(w io.Writer, res *pipeline.Result, counter creationCounter) {
	fmt.Fprintf(w, "run:        %s\n", res.RunID)
	fmt.Fprintf(w, "dataset:    %s (%s)\n", res.Dataset.CleanLabel, res.Dataset.URI)
	fmt.Fprintf(w, "dimensions: %d\n", res.Dimensions)
	fmt.Fprintf(w, "rows:       %d\n", res.Rows)
	if res.ExportPath != "" {
		fmt.Fprintf(w, "export:     %s\n", res.ExportPath)
	}
	fmt.Fprintf(w, "duration:   %s\n", res.Duration.Round(time.Millisecond))
	if counter != nil {
		nodes, rels := counter.Created()
		fmt.Fprintf(w, "created:    %d nodes, %d relationships\n", nodes, rels)
	}
	if res.Graph == nil {
		return
	}
	nodes, edges := res.Graph.Summary()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tCOUNT")
	for _, c := range nodes {
		fmt.Fprintf(tw, "node\t%s\t%d\n", c.Name, c.N)
	}
	for _, c := range edges {
		fmt.Fprintf(tw, "relationship\t%s\t%d\n", c.Name, c.N)
	}
	_ = tw.Flush()
}

func planCmd(o *overrides, cfgFn func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <dataset-uri>",
		Short: "Discover a dataset and print the observation query without loading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			p := pipeline.New(newSPARQLClient(cfg, nil), nil, nil, nil, pipelineOptions(cfg, true))
			plan, err := p.Plan(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "dataset: %s (%s)\n", plan.Dataset.CleanLabel, plan.Dataset.Label)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIABLE\tCOLUMN\tPREDICATE")
			for _, b := range plan.Query.Bindings {
				fmt.Fprintf(tw, "?%s\t%s\t%s\n", b.Variable, b.Dimension.CleanLabel, b.Dimension.PredicateURI)
			}
			_ = tw.Flush()
			fmt.Fprintln(w)
			fmt.Fprint(w, plan.Query.Text)
			return nil
		},
	}
	cmd.Flags().IntVar(&o.rowLimit, "row-limit", 0, "Add a LIMIT to the observation query")
	cmd.Flags().StringVar(&o.datasetName, "dataset-name", "", "Graph name of the dataset, replacing its label")
	return cmd
}

func importRDFCmd(cfgFn func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import-rdf <file>",
		Short: "Bulk-import a local RDF/XML file through neosemantics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			ctx := cmd.Context()
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}

			client, err := neo4j.NewClient(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(context.WithoutCancel(ctx)); err != nil {
					log.Printf("[Neo4j] Warning: failed to close driver: %v", err)
				}
			}()

			triples, err := client.ImportRDF(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d triples from %s\n", triples, args[0])
			return nil
		},
	}
}

func runsCmd(cfgFn func() *config.Config) *cobra.Command {
	var (
		limit int
		steps bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded load runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			ctx := cmd.Context()
			if _, err := os.Stat(cfg.LedgerPath); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			ledger, err := bunstore.OpenSQLite(ctx, cfg.LedgerPath)
			if err != nil {
				return err
			}
			defer ledger.Close()

			runs, err := ledger.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tDATASET\tSTATUS\tSTEP\tROWS\tUPDATED\tERROR")
			for _, r := range runs {
				name := r.DatasetName
				if name == "" {
					name = r.DatasetURI
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.RunID, name, r.Status, r.CurrentStep, r.Rows, r.UpdatedAt.Format(time.RFC3339), r.ErrorMessage)
				if !steps {
					continue
				}
				runSteps, err := ledger.GetRunSteps(ctx, r.ID)
				if err != nil {
					return err
				}
				for _, s := range runSteps {
					fmt.Fprintf(tw, "\t  %s\t%s\t\t\t%s\t%s\n", s.Name, s.Status, s.UpdatedAt.Format(time.RFC3339), s.ErrorLog)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&steps, "steps", false, "Show the steps of every run")
	return cmd
}
