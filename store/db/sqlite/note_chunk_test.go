package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/studynotes/internal/profile"
	"github.com/hrygo/studynotes/store"
)

func newTestDB(t *testing.T) store.Driver {
	t.Helper()
	driver, err := NewDB(&profile.Profile{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })
	require.NoError(t, driver.Migrate(context.Background()))
	return driver
}

func TestNewDB_RequiresDSN(t *testing.T) {
	_, err := NewDB(&profile.Profile{})
	assert.Error(t, err)
}

func TestBLOBRoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 3}
	blob, err := float32ArrayToBLOB(vec)
	require.NoError(t, err)
	assert.Len(t, blob, 12)

	back, err := blobToFloat32Array(blob)
	require.NoError(t, err)
	assert.Equal(t, vec, back)

	_, err = float32ArrayToBLOB(nil)
	assert.Error(t, err)
	_, err = blobToFloat32Array([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestNoteChunk_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	chunks := []*store.NoteChunk{
		{ID: "a", Notebook: "cs101", Path: "loops.md", FileType: "md", Content: "for loops", Embedding: []float32{1, 0, 0}},
		{ID: "b", Notebook: "cs101", Path: "main.py", FileType: "py", Content: "def main()", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "c", Notebook: "bio", Path: "cells.md", FileType: "md", Content: "mitochondria", Embedding: []float32{0, 0, 1}},
	}
	for _, c := range chunks {
		_, err := db.UpsertNoteChunk(ctx, c)
		require.NoError(t, err)
	}

	count, err := db.CountNoteChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := db.SearchNoteChunks(ctx, &store.SearchNoteChunks{Vector: []float32{1, 0, 0}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.Equal(t, "b", results[1].Chunk.ID)
	assert.Equal(t, []float32{1, 0, 0}, results[0].Chunk.Embedding)

	results, err = db.SearchNoteChunks(ctx, &store.SearchNoteChunks{Vector: []float32{1, 0, 0}, FileTypes: []string{"py"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "main.py", results[0].Chunk.Path)

	results, err = db.SearchNoteChunks(ctx, &store.SearchNoteChunks{Vector: []float32{1, 0, 0}, Notebook: "bio", MinScore: 0.5})
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = db.SearchNoteChunks(ctx, &store.SearchNoteChunks{})
	assert.Error(t, err)
}

func TestNoteChunk_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	first, err := db.UpsertNoteChunk(ctx, &store.NoteChunk{ID: "a", Content: "old", Embedding: []float32{1, 0}})
	require.NoError(t, err)
	created := first.CreatedTs

	_, err = db.UpsertNoteChunk(ctx, &store.NoteChunk{ID: "a", Content: "new", Embedding: []float32{0, 1}})
	require.NoError(t, err)

	count, err := db.CountNoteChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := db.SearchNoteChunks(ctx, &store.SearchNoteChunks{Vector: []float32{0, 1}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Chunk.Content)
	assert.LessOrEqual(t, created, results[0].Chunk.CreatedTs)

	_, err = db.UpsertNoteChunk(ctx, &store.NoteChunk{Content: "x", Embedding: []float32{1}})
	assert.Error(t, err)
}
