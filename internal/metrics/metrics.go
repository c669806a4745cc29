package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cubegraph"

// Metrics holds the pipeline's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	SPARQLRequests  *prometheus.CounterVec
	SPARQLDuration  prometheus.Histogram
	GraphStatements *prometheus.CounterVec
	GraphDuration   *prometheus.HistogramVec
	RowsLoaded      prometheus.Counter
	Runs            *prometheus.CounterVec
	RunDuration     prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		SPARQLRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sparql",
				Name:      "requests_total",
				Help:      "SPARQL requests by outcome (ok, error, rejected)",
			},
			[]string{"outcome"},
		),
		SPARQLDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sparql",
				Name:      "request_duration_seconds",
				Help:      "SPARQL request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		GraphStatements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "statements_total",
				Help:      "Graph upsert statements by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		GraphDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "statement_duration_seconds",
				Help:      "Graph upsert statement duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		RowsLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "rows_loaded_total",
				Help:      "Observation rows written to the graph",
			},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Pipeline run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}

	m.Registry.MustRegister(
		m.SPARQLRequests, m.SPARQLDuration,
		m.GraphStatements, m.GraphDuration,
		m.RowsLoaded, m.Runs, m.RunDuration,
	)
	return m
}

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

// ObserveGraph records one graph statement. Safe on a nil receiver.
func (m *Metrics) ObserveGraph(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.GraphStatements.WithLabelValues(op, Outcome(err)).Inc()
	m.GraphDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveSPARQL records one SPARQL request. Safe on a nil receiver.
func (m *Metrics) ObserveSPARQL(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.SPARQLRequests.WithLabelValues(outcome).Inc()
	m.SPARQLDuration.Observe(time.Since(start).Seconds())
}

// ObserveRun records a finished pipeline run. Safe on a nil receiver.
func (m *Metrics) ObserveRun(rows int, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(Outcome(err)).Inc()
	m.RunDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		m.RowsLoaded.Add(float64(rows))
	}
}

// Serve exposes the registry on addr under /metrics until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Metrics] Warning: shutdown failed: %v", err)
		}
	}()

	log.Printf("[Metrics] Serving on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
