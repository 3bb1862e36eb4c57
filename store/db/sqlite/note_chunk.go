package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/studynotes/store"
)

// float32ArrayToBLOB encodes a vector as little-endian float32s.
func float32ArrayToBLOB(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, errors.New("empty embedding vector")
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf, nil
}

// blobToFloat32Array is the inverse of float32ArrayToBLOB.
func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid BLOB length: %d", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vec, nil
}

// cosineSimilarity returns 0 for mismatched or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// UpsertNoteChunk inserts or replaces a chunk keyed by its ID.
func (d *DB) UpsertNoteChunk(ctx context.Context, chunk *store.NoteChunk) (*store.NoteChunk, error) {
	if chunk.ID == "" {
		return nil, errors.New("note chunk id required")
	}
	vectorBLOB, err := float32ArrayToBLOB(chunk.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert embedding vector to BLOB")
	}

	now := time.Now().Unix()
	if chunk.CreatedTs == 0 {
		chunk.CreatedTs = now
	}
	chunk.UpdatedTs = now

	stmt := `INSERT INTO note_chunk (id, notebook, path, file_type, content, model, embedding, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			notebook = excluded.notebook,
			path = excluded.path,
			file_type = excluded.file_type,
			content = excluded.content,
			model = excluded.model,
			embedding = excluded.embedding,
			updated_ts = excluded.updated_ts
		RETURNING created_ts, updated_ts`

	err = d.db.QueryRowContext(ctx, stmt,
		chunk.ID,
		chunk.Notebook,
		chunk.Path,
		chunk.FileType,
		chunk.Content,
		chunk.Model,
		vectorBLOB,
		chunk.CreatedTs,
		chunk.UpdatedTs,
	).Scan(&chunk.CreatedTs, &chunk.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert note chunk")
	}
	return chunk, nil
}

// SearchNoteChunks filters in SQL and ranks by cosine similarity in Go.
func (d *DB) SearchNoteChunks(ctx context.Context, search *store.SearchNoteChunks) ([]*store.NoteChunkResult, error) {
	if len(search.Vector) == 0 {
		return nil, errors.New("search vector required")
	}

	where, args := []string{"1 = 1"}, []any{}
	if search.Notebook != "" {
		where, args = append(where, "notebook = ?"), append(args, search.Notebook)
	}
	if len(search.FileTypes) > 0 {
		marks := make([]string, len(search.FileTypes))
		for i, ft := range search.FileTypes {
			marks[i] = "?"
			args = append(args, ft)
		}
		where = append(where, "file_type IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT id, notebook, path, file_type, content, model, embedding, created_ts, updated_ts
		FROM note_chunk
		WHERE ` + strings.Join(where, " AND ")

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search note chunks")
	}
	defer rows.Close()

	results := []*store.NoteChunkResult{}
	for rows.Next() {
		var chunk store.NoteChunk
		var blob []byte
		if err := rows.Scan(
			&chunk.ID,
			&chunk.Notebook,
			&chunk.Path,
			&chunk.FileType,
			&chunk.Content,
			&chunk.Model,
			&blob,
			&chunk.CreatedTs,
			&chunk.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan note chunk")
		}
		if chunk.Embedding, err = blobToFloat32Array(blob); err != nil {
			return nil, errors.Wrapf(err, "corrupt embedding for chunk %s", chunk.ID)
		}

		score := cosineSimilarity(search.Vector, chunk.Embedding)
		if score < search.MinScore {
			continue
		}
		results = append(results, &store.NoteChunkResult{Chunk: &chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if search.Limit > 0 && len(results) > search.Limit {
		results = results[:search.Limit]
	}
	return results, nil
}

func (d *DB) CountNoteChunks(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM note_chunk").Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count note chunks")
	}
	return count, nil
}
