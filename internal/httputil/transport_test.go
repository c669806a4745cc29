package httputil

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestLoggingTransport_DebugPreservesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "dsl\nCouncil Tax\n")
	}))
	defer srv.Close()

	logs := captureLog(t)
	client := &http.Client{Transport: &LoggingTransport{LogLevel: "DEBUG"}}

	resp, err := client.Get(srv.URL + "?query=SELECT+*")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "dsl\nCouncil Tax\n", string(body))
	assert.Contains(t, logs.String(), "DEBUG query:\nSELECT *")
	assert.Contains(t, logs.String(), "Council Tax")
}

func TestLoggingTransport_QuietByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	logs := captureLog(t)
	client := &http.Client{Transport: &LoggingTransport{LogLevel: "info"}}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Empty(t, logs.String())
}
