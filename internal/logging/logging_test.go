package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleToken = "eyJleHAiOjE3MDAwMDAwMDAwMDB9.c2lnbmF0dXJlLWJ5dGVzLWhlcmUtMTIzNDU2"

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestRedactSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	logger.Info("test", "token", "abc", "EVENTGATE_SECRET", "xyz", "path", "/directory")

	m := decodeLine(t, &buf)
	assert.Equal(t, Redacted, m["token"])
	assert.Equal(t, Redacted, m["EVENTGATE_SECRET"])
	assert.Equal(t, "/directory", m["path"])
}

func TestRedactTokenShapedValue(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	logger.Info("test", "value", sampleToken, "host", "example.com")

	m := decodeLine(t, &buf)
	assert.Equal(t, Redacted, m["value"])
	assert.Equal(t, "example.com", m["host"])
}

func TestRedactGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	logger.LogAttrs(t.Context(), slog.LevelInfo, "test",
		slog.Group("req", slog.String("cookie", "event_auth=x"), slog.String("method", "GET")))

	m := decodeLine(t, &buf)
	group, ok := m["req"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, Redacted, group["cookie"])
	assert.Equal(t, "GET", group["method"])
}

func TestEmptyValueNotRedacted(t *testing.T) {
	a := Redact(slog.String("token", ""))
	assert.Equal(t, "", a.Value.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Format: "text"})
	logger.Info("hello", "secret", "s3")

	line := buf.String()
	assert.Contains(t, line, "msg=hello")
	assert.NotContains(t, line, "s3")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: "warn"})
	logger.Info("dropped")
	assert.Empty(t, buf.String())
	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestRequestLoggerOmitsQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hi"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/directory?t="+sampleToken, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, strings.Contains(buf.String(), sampleToken), "token leaked into request log")
	m := decodeLine(t, &buf)
	assert.Equal(t, "/directory", m["path"])
	assert.Equal(t, float64(http.StatusTeapot), m["status"])
	assert.Equal(t, float64(2), m["bytes"])
}
