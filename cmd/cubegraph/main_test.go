package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cubegraph/cubegraph/internal/cube"
	"github.com/cubegraph/cubegraph/internal/database/bunstore"
	"github.com/cubegraph/cubegraph/internal/database/models"
	"github.com/cubegraph/cubegraph/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "text/csv")
		switch {
		case strings.Contains(q, "rdfs:label ?dsl"):
			_, _ = w.Write([]byte("dsl\r\nCouncil Tax\r\n"))
		case strings.Contains(q, "qb:dimension ?dim"):
			_, _ = w.Write([]byte("dim,label\r\n" +
				"http://purl.org/linked-data/sdmx/2009/dimension#refArea,Council Area\r\n" +
				"http://purl.org/linked-data/cube#measureType,Measure Type\r\n"))
		case strings.Contains(q, "?obs qb:dataSet"):
			_, _ = w.Write([]byte("obs,x0,measureType,value\r\n" +
				"http://o/1,Aberdeen City,Count,10\r\n" +
				"http://o/2,Dundee City,Count,12\r\n"))
		default:
			http.Error(w, "unexpected query", http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "cubegraph version "+Version+"\n", out)
}

func TestPlan(t *testing.T) {
	srv := newEndpoint(t)

	out, err := execute(t, "plan", "--endpoint", srv.URL, "--row-limit", "1", "https://statistics.gov.scot/data/council-tax")
	require.NoError(t, err)
	assert.Contains(t, out, "dataset: CouncilTax (Council Tax)")
	assert.Contains(t, out, "?x0")
	assert.Contains(t, out, "CouncilArea")
	assert.Contains(t, out, "LIMIT 1")
}

func TestLoadDryRunLeavesLedgerUntouched(t *testing.T) {
	srv := newEndpoint(t)
	ledger := filepath.Join(t.TempDir(), "ledger.db")
	exportDir := t.TempDir()

	out, err := execute(t, "load", "--dry-run", "--endpoint", srv.URL, "--ledger", ledger,
		"--export-dir", exportDir, "https://statistics.gov.scot/data/council-tax")
	require.NoError(t, err)
	assert.Contains(t, out, "rows:       2")
	assert.Contains(t, out, filepath.Join(exportDir, "CouncilTax.csv"))
	assert.Contains(t, out, "observation")
	assert.NotContains(t, out, "created:")

	_, err = os.Stat(ledger)
	assert.True(t, errors.Is(err, os.ErrNotExist), "dry run must not open the ledger")

	out, err = execute(t, "runs", "--ledger", ledger)
	require.NoError(t, err)
	assert.Equal(t, "no runs recorded\n", out)
}

type fixedCounter struct{ nodes, rels int64 }

func (c fixedCounter) Created() (int64, int64) { return c.nodes, c.rels }

func TestPrintResultReportsCreatedCounts(t *testing.T) {
	res := &pipeline.Result{
		RunID:      "run-1",
		Dataset:    cube.DatasetRef{URI: "http://statistics.gov.scot/data/council-tax", CleanLabel: "CouncilTax"},
		Dimensions: 1,
		Rows:       2,
	}

	var out bytes.Buffer
	printResult(&out, res, fixedCounter{nodes: 7, rels: 6})
	assert.Contains(t, out.String(), "dataset:    CouncilTax (http://statistics.gov.scot/data/council-tax)")
	assert.Contains(t, out.String(), "created:    7 nodes, 6 relationships")

	out.Reset()
	printResult(&out, res, nil)
	assert.NotContains(t, out.String(), "created:")
}

func TestRunsListsLedger(t *testing.T) {
	ledger := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := bunstore.OpenSQLite(ctx, ledger)
	require.NoError(t, err)
	id, err := store.CreateRun(ctx, &models.LoadRun{
		RunID:      "run-1",
		DatasetURI: "http://statistics.gov.scot/data/council-tax",
		Status:     models.RunStatusPending,
		Version:    1,
	})
	require.NoError(t, err)
	require.NoError(t, store.UpdateRunStats(ctx, id, "CouncilTax", 1, 2))
	_, err = store.UpsertRunStep(ctx, &models.RunStep{LoadRunID: id, Name: models.StepLoadRelationships, Status: models.RunStatusFailed, ErrorLog: "connection reset"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateRunStatus(ctx, id, 1, models.RunStatusFailed, models.StepLoadRelationships, "connection reset"))
	require.NoError(t, store.Close())

	out, err := execute(t, "runs", "--ledger", ledger, "--steps")
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "CouncilTax")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "load-relationships")
	assert.Contains(t, out, "connection reset")
}

func TestRunsWithoutLedger(t *testing.T) {
	out, err := execute(t, "runs", "--ledger", filepath.Join(t.TempDir(), "missing.db"))
	require.NoError(t, err)
	assert.Equal(t, "no runs recorded\n", out)
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("CG_CONCURRENCY", "0")

	_, err := execute(t, "plan", "http://o/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CG_CONCURRENCY")
}

func TestLoadRequiresURI(t *testing.T) {
	_, err := execute(t, "load", "--dry-run")
	assert.Error(t, err)
}
