package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/studynotes/store"
)

// UpsertNoteChunk inserts or replaces a chunk keyed by its ID.
func (d *DB) UpsertNoteChunk(ctx context.Context, chunk *store.NoteChunk) (*store.NoteChunk, error) {
	if chunk.ID == "" {
		return nil, errors.New("note chunk id required")
	}
	if len(chunk.Embedding) == 0 {
		return nil, errors.New("empty embedding vector")
	}

	now := time.Now().Unix()
	if chunk.CreatedTs == 0 {
		chunk.CreatedTs = now
	}
	chunk.UpdatedTs = now

	stmt := `
		INSERT INTO note_chunk (id, notebook, path, file_type, content, model, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(9) + `)
		ON CONFLICT (id)
		DO UPDATE SET
			notebook = EXCLUDED.notebook,
			path = EXCLUDED.path,
			file_type = EXCLUDED.file_type,
			content = EXCLUDED.content,
			model = EXCLUDED.model,
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING created_ts, updated_ts
	`

	err := d.db.QueryRowContext(ctx, stmt,
		chunk.ID,
		chunk.Notebook,
		chunk.Path,
		chunk.FileType,
		chunk.Content,
		chunk.Model,
		pgvector.NewVector(chunk.Embedding),
		chunk.CreatedTs,
		chunk.UpdatedTs,
	).Scan(&chunk.CreatedTs, &chunk.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert note chunk")
	}
	return chunk, nil
}

// SearchNoteChunks ranks chunks by cosine distance using pgvector.
func (d *DB) SearchNoteChunks(ctx context.Context, search *store.SearchNoteChunks) ([]*store.NoteChunkResult, error) {
	query, args, err := buildSearchQuery(search)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search note chunks")
	}
	defer rows.Close()

	results := []*store.NoteChunkResult{}
	for rows.Next() {
		var chunk store.NoteChunk
		var vector pgvector.Vector
		var score float64
		if err := rows.Scan(
			&chunk.ID,
			&chunk.Notebook,
			&chunk.Path,
			&chunk.FileType,
			&chunk.Content,
			&chunk.Model,
			&vector,
			&chunk.CreatedTs,
			&chunk.UpdatedTs,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan note chunk")
		}
		chunk.Embedding = vector.Slice()
		results = append(results, &store.NoteChunkResult{Chunk: &chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func buildSearchQuery(search *store.SearchNoteChunks) (string, []any, error) {
	if len(search.Vector) == 0 {
		return "", nil, errors.New("search vector required")
	}
	limit := search.Limit
	if limit <= 0 {
		limit = store.DefaultSearchLimit
	}

	args := []any{pgvector.NewVector(search.Vector)}
	where := []string{"1 - (embedding <=> $1) >= " + placeholder(2)}
	args = append(args, search.MinScore)

	if search.Notebook != "" {
		args = append(args, search.Notebook)
		where = append(where, "notebook = "+placeholder(len(args)))
	}
	if len(search.FileTypes) > 0 {
		args = append(args, pq.Array(search.FileTypes))
		where = append(where, "file_type = ANY("+placeholder(len(args))+")")
	}
	args = append(args, limit)

	query := `
		SELECT id, notebook, path, file_type, content, model, embedding, created_ts, updated_ts,
			1 - (embedding <=> $1) AS score
		FROM note_chunk
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY embedding <=> $1
		LIMIT ` + placeholder(len(args))
	return query, args, nil
}

func (d *DB) CountNoteChunks(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM note_chunk").Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count note chunks")
	}
	return count, nil
}
