package sparql

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cubegraph/cubegraph/internal/cube"
	"github.com/cubegraph/cubegraph/internal/httputil"
	"github.com/cubegraph/cubegraph/internal/metrics"
	"github.com/cubegraph/cubegraph/internal/resilience"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Select(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "text/csv", r.Header.Get("Accept"))
		assert.Equal(t, "SELECT ?dsl WHERE { <http://o/ds> rdfs:label ?dsl }", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, "dsl\r\nCouncil Tax\r\n")
	}))
	defer srv.Close()

	m := metrics.New()
	c := NewClient(Options{Endpoint: srv.URL + "/sparql.csv", BreakerThreshold: 3, BreakerCooldown: time.Minute}, m)

	body, err := c.Select(context.Background(), "SELECT ?dsl WHERE { <http://o/ds> rdfs:label ?dsl }")
	require.NoError(t, err)
	assert.Equal(t, "dsl\r\nCouncil Tax\r\n", body)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SPARQLRequests.WithLabelValues("ok")))
}

func TestClient_ServerErrorTripsBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	m := metrics.New()
	c := NewClient(Options{Endpoint: srv.URL, BreakerThreshold: 2, BreakerCooldown: time.Minute}, m)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Select(ctx, "SELECT * WHERE { ?s ?p ?o }")
		assert.ErrorIs(t, err, cube.ErrFetch)
		assert.ErrorContains(t, err, "status 502")
	}

	_, err := c.Select(ctx, "SELECT * WHERE { ?s ?p ?o }")
	assert.ErrorIs(t, err, cube.ErrFetch)
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SPARQLRequests.WithLabelValues("rejected")))
}

func TestClient_BadQueryDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Parse error: line 1", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, BreakerThreshold: 1, BreakerCooldown: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		_, err := c.Select(context.Background(), "SELEC")
		assert.ErrorIs(t, err, cube.ErrFetch)

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusBadRequest, se.Code)
		assert.Equal(t, "Parse error: line 1", se.Body)
	}
	assert.Equal(t, resilience.StateClosed, c.breaker.CurrentState())
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, BreakerThreshold: 1, BreakerCooldown: time.Minute}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Select(ctx, "SELECT * WHERE { ?s ?p ?o }")
	assert.ErrorIs(t, err, cube.ErrFetch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_TimeoutAndDebug(t *testing.T) {
	c := NewClient(Options{Endpoint: "http://x/sparql", BreakerThreshold: 1, BreakerCooldown: time.Minute}, nil)
	assert.Zero(t, c.client.Timeout, "without a request timeout only the context deadline applies")
	transport, ok := c.client.Transport.(*httputil.LoggingTransport)
	require.True(t, ok)
	assert.Equal(t, "info", transport.LogLevel)

	c = NewClient(Options{Endpoint: "http://x/sparql", Timeout: 45 * time.Minute, Debug: true, BreakerThreshold: 1, BreakerCooldown: time.Minute}, nil)
	assert.Equal(t, 45*time.Minute, c.client.Timeout)
	transport, ok = c.client.Transport.(*httputil.LoggingTransport)
	require.True(t, ok)
	assert.Equal(t, "debug", transport.LogLevel)
}
