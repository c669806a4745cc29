package httputil

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strings"
)

// maxLoggedBody bounds how much of a response body is echoed in debug mode; SPARQL CSV results
// can run to megabytes.
const maxLoggedBody = 2048

// LoggingTransport is an http.RoundTripper that logs outbound requests and responses when
// LogLevel is "debug".
type LoggingTransport struct {
	Base     http.RoundTripper
	LogLevel string
}

func (t *LoggingTransport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !strings.EqualFold(t.LogLevel, "debug") {
		return t.base().RoundTrip(req)
	}

	log.Printf("[HTTP] DEBUG outbound request: [%s] %s", req.Method, req.URL.Redacted())
	if q := req.URL.Query().Get("query"); q != "" {
		log.Printf("[HTTP] DEBUG query:\n%s", q)
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		log.Printf("[HTTP] DEBUG outbound request failed: %v", err)
		return resp, err
	}

	log.Printf("[HTTP] DEBUG outbound response: %d %s", resp.StatusCode, req.URL.Redacted())

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if readErr != nil {
		return resp, readErr
	}
	if len(body) > 0 {
		shown := body
		if len(shown) > maxLoggedBody {
			shown = shown[:maxLoggedBody]
		}
		log.Printf("[HTTP] DEBUG response body (%d bytes): %s", len(body), shown)
	}
	return resp, nil
}
