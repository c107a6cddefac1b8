package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandlerWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "pretty").With("component", "session")

	log.WithGroup("req").Debug("refreshing", "path", "/api/x", "error", errors.New("boom"), "note", "two words")

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "refreshing")
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "req.path")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, `"two words"`)
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "")

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "JSON").Info("hello", "context_id", "abc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "abc", line["context_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}
