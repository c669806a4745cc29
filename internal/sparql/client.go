package sparql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cubegraph/cubegraph/internal/cube"
	"github.com/cubegraph/cubegraph/internal/httputil"
	"github.com/cubegraph/cubegraph/internal/metrics"
	"github.com/cubegraph/cubegraph/internal/resilience"
)

// Ensure Client satisfies the discoverer's triple-store capability.
var _ cube.TripleStore = (*Client)(nil)

// Options configures a Client.
type Options struct {
	Endpoint string
	// Timeout caps one request including its body. Zero leaves the caller's context as the only
	// deadline.
	Timeout time.Duration
	// Debug logs every request and response through the LoggingTransport.
	Debug            bool
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Client queries a SPARQL endpoint that answers SELECT queries as CSV.
type Client struct {
	endpoint string
	client   *http.Client
	breaker  *resilience.Breaker
	metrics  *metrics.Metrics
}

// StatusError is a non-2xx answer from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("endpoint returned status %d", e.Code)
	}
	return fmt.Sprintf("endpoint returned status %d: %s", e.Code, e.Body)
}

// NewClient creates a client for opts.Endpoint. m may be nil.
func NewClient(opts Options, m *metrics.Metrics) *Client {
	timeout := opts.Timeout
	if timeout < 0 {
		timeout = 0
	}
	level := "info"
	if opts.Debug {
		level = "debug"
	}
	return &Client{
		endpoint: opts.Endpoint,
		client: &http.Client{
			Transport: &httputil.LoggingTransport{LogLevel: level},
			Timeout:   timeout,
		},
		breaker: resilience.NewBreaker(opts.BreakerThreshold, opts.BreakerCooldown),
		metrics: m,
	}
}

// Select sends query and returns the CSV body. Every failure matches cube.ErrFetch.
func (c *Client) Select(ctx context.Context, query string) (string, error) {
	start := time.Now()

	var body string
	var clientErr error
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		b, err := c.do(ctx, query)
		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			// A rejected query says nothing about endpoint health.
			clientErr = err
			return nil
		}
		body = b
		return err
	})
	if err == nil {
		err = clientErr
	}

	switch {
	case errors.Is(err, resilience.ErrOpen):
		c.metrics.ObserveSPARQL("rejected", start)
	default:
		c.metrics.ObserveSPARQL(metrics.Outcome(err), start)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", cube.ErrFetch, c.endpoint, err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, query string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", c.endpoint, err)
	}
	params := u.Query()
	params.Set("query", query)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/csv")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	log.Printf("[SPARQL] %d bytes from %s in %s", len(b), c.endpoint, time.Since(start).Round(time.Millisecond))
	return string(b), nil
}
