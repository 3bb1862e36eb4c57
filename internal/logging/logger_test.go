package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestOptionsForMode(t *testing.T) {
	assert.Equal(t, FormatJSON, OptionsForMode("prod", "info").Format)
	assert.Equal(t, FormatText, OptionsForMode("dev", "info").Format)
	assert.Equal(t, slog.LevelDebug, OptionsForMode("demo", "debug").Level)
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Options{Format: FormatJSON, Level: slog.LevelInfo, Output: &buf})

	logger.Debug("hidden")
	logger.Info("classified", "category", "file_reference")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "classified", entry["msg"])
	assert.Equal(t, "file_reference", entry["category"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(Options{Format: FormatText, Level: slog.LevelDebug, Output: &buf}).Debug("visible", "k", "v")
	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "k=v")
}

func TestSetup_EnableDebug(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	Setup(Options{Format: FormatText, Level: slog.LevelInfo, Output: &buf})

	slog.Debug("first")
	assert.NotContains(t, buf.String(), "first")

	EnableDebug(true)
	slog.Debug("second")
	assert.Contains(t, buf.String(), "second")

	EnableDebug(false)
	slog.Debug("third")
	assert.NotContains(t, buf.String(), "third")
}
