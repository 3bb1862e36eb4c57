package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/studynotes/ai"
	"github.com/hrygo/studynotes/ai/intent"
	"github.com/hrygo/studynotes/internal/logging"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestCollectNotes(t *testing.T) {
	root := filepath.Join(t.TempDir(), "semester")
	writeTestFile(t, filepath.Join(root, "algorithms", "sorting.md"), "# Sorting\nquick sort")
	writeTestFile(t, filepath.Join(root, "algorithms", "graphs", "bfs.txt"), "breadth first")
	writeTestFile(t, filepath.Join(root, "todo.md"), "read chapter 3")
	writeTestFile(t, filepath.Join(root, "empty.md"), "  \n")
	writeTestFile(t, filepath.Join(root, "main.go"), "package main")
	writeTestFile(t, filepath.Join(root, ".obsidian", "config.md"), "hidden")

	docs, err := collectNotes(root)
	require.NoError(t, err)

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	assert.ElementsMatch(t, []string{
		"algorithms/graphs/bfs.txt",
		"algorithms/sorting.md",
		"semester/todo.md",
	}, ids)

	for _, doc := range docs {
		if doc.ID == "algorithms/graphs/bfs.txt" {
			assert.Equal(t, "algorithms", doc.Notebook)
			assert.Equal(t, "graphs/bfs.txt", doc.Path)
			assert.Equal(t, "breadth first", doc.Content)
		}
	}

	_, err = collectNotes(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	writeTestFile(t, path, "# regression set\nExplain this file: app.js\n\n  What is a for loop?  \n")

	queries, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Explain this file: app.js", "What is a for loop?"}, queries)

	_, err = readQueries(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestWriteClassifications(t *testing.T) {
	queries := []string{"Explain this file: app.js", "What is a for loop?"}
	results := []*intent.Result{
		intent.Analyze(queries[0], intent.DefaultConfig()),
		intent.Analyze(queries[1], intent.DefaultConfig()),
	}

	var buf bytes.Buffer
	require.NoError(t, writeClassifications(&buf, queries, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first classification
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, queries[0], first.Query)
	assert.Equal(t, intent.CategoryFileReference, first.Result.Category)
}

func TestNewConfigStore(t *testing.T) {
	dir := t.TempDir()
	presetFile := filepath.Join(dir, "presets.yaml")
	writeTestFile(t, presetFile, "presets:\n  lecture:\n    base: accuracy\n    context_threshold: 0.45\n")

	configs, err := newConfigStore(ai.ClassifierConfig{Preset: "lecture", PresetFile: presetFile})
	require.NoError(t, err)
	assert.Equal(t, "lecture", configs.PresetName())
	assert.Equal(t, 0.45, configs.Snapshot().ContextThreshold)
	assert.True(t, configs.Snapshot().StrictMode)

	_, err = newConfigStore(ai.ClassifierConfig{Preset: "turbo"})
	assert.Error(t, err)

	_, err = newConfigStore(ai.ClassifierConfig{PresetFile: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

func TestPrintPresets(t *testing.T) {
	configs := intent.NewConfigStore(intent.DefaultConfig())
	require.NoError(t, configs.ApplyPreset(intent.PresetPerformance))

	var buf bytes.Buffer
	require.NoError(t, printPresets(&buf, configs))

	out := buf.String()
	for _, name := range intent.PresetNames() {
		assert.Contains(t, out, name)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, intent.PresetPerformance) {
			assert.True(t, strings.HasPrefix(line, "*"), "active preset is marked")
			assert.Contains(t, line, "0.80")
		}
	}
}

func TestReadClassifierConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifier.yaml")
	writeTestFile(t, path, "preset: accuracy\ncontext_threshold: 0.5\ndebug: true\n")

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := readClassifierConfig(v, intent.NewConfigStore(intent.DefaultConfig()))
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.ContextThreshold)
	assert.True(t, cfg.StrictMode, "unset keys come from the preset")
	assert.True(t, cfg.Debug)

	writeTestFile(t, path, "context_threshold: 1.5\n")
	require.NoError(t, v.ReadInConfig())
	_, err = readClassifierConfig(v, intent.NewConfigStore(intent.DefaultConfig()))
	assert.Error(t, err)

	writeTestFile(t, path, "preset: turbo\n")
	require.NoError(t, v.ReadInConfig())
	_, err = readClassifierConfig(v, intent.NewConfigStore(intent.DefaultConfig()))
	assert.Error(t, err)
}

func TestWatchClassifierConfig_AppliesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifier.yaml")
	writeTestFile(t, path, "context_threshold: 0.7\nlog_decisions: true\n")

	configs := intent.NewConfigStore(intent.DefaultConfig())
	require.NoError(t, watchClassifierConfig(path, configs))
	assert.Equal(t, 0.7, configs.Snapshot().ContextThreshold)
	assert.True(t, configs.Snapshot().LogDecisions)

	assert.Error(t, watchClassifierConfig(filepath.Join(t.TempDir(), "missing.yaml"), configs))
}

func TestFollowDebugToggle(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() {
		logging.EnableDebug(false)
		slog.SetDefault(previous)
	})

	var buf bytes.Buffer
	logging.Setup(logging.Options{Format: logging.FormatText, Level: slog.LevelInfo, Output: &buf})

	configs := intent.NewConfigStore(intent.DefaultConfig())
	followDebugToggle(configs)
	slog.Debug("before")
	assert.NotContains(t, buf.String(), "before")

	debug := intent.DefaultConfig()
	debug.Debug = true
	require.NoError(t, configs.Update(debug))
	slog.Debug("after update")
	assert.Contains(t, buf.String(), "after update")

	require.NoError(t, configs.ApplyPreset(intent.PresetBalanced))
	slog.Debug("after preset")
	assert.NotContains(t, buf.String(), "after preset")
}

func TestEmbeddingConfigured(t *testing.T) {
	assert.False(t, embeddingConfigured(&ai.EmbeddingConfig{Model: "bge"}))
	assert.True(t, embeddingConfigured(&ai.EmbeddingConfig{Model: "bge", APIKey: "k"}))
	assert.True(t, embeddingConfigured(&ai.EmbeddingConfig{Model: "nomic", Provider: "ollama"}))
	assert.False(t, embeddingConfigured(&ai.EmbeddingConfig{APIKey: "k"}))
}
