package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupWriter(&buf, level, "json")
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestSetupWriter_Level(t *testing.T) {
	buf := captureJSON(t, "warn")

	slog.Info("hidden")
	assert.Zero(t, buf.Len())

	slog.Warn("shown")
	assert.Equal(t, "shown", decodeLine(t, buf)["msg"])
}

func TestFromContext_RequestID(t *testing.T) {
	buf := captureJSON(t, "info")

	var ctx context.Context
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	FromContext(ctx).Info("request")
	line := decodeLine(t, buf)
	assert.NotEmpty(t, line["request_id"])
}

func TestContextWith(t *testing.T) {
	buf := captureJSON(t, "info")

	ctx := ContextWith(context.Background(), "project_id", "p1")
	WithFields(ctx, "job_id", "j1").Info("job")

	line := decodeLine(t, buf)
	assert.Equal(t, "p1", line["project_id"])
	assert.Equal(t, "j1", line["job_id"])

	same := context.Background()
	assert.Equal(t, same, ContextWith(same))
}
