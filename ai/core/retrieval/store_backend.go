package retrieval

import (
	"context"
	"fmt"

	"github.com/hrygo/studynotes/ai"
	"github.com/hrygo/studynotes/ai/internal/strutil"
	"github.com/hrygo/studynotes/store"
)

// StoreBackend searches the SQL note index.
type StoreBackend struct {
	store       *store.Store
	embedder    ai.EmbeddingService
	chunkTokens int
	countTokens strutil.TokenCounter
}

// NewStoreBackend creates a backend over st.
func NewStoreBackend(st *store.Store, embedder ai.EmbeddingService, chunkTokens int) *StoreBackend {
	return &StoreBackend{store: st, embedder: embedder, chunkTokens: chunkTokens, countTokens: strutil.CountTokens}
}

func (b *StoreBackend) Index(ctx context.Context, docs []NoteDocument) (int, error) {
	indexed := 0
	for _, doc := range docs {
		chunks := chunkDocument(doc, b.chunkTokens, b.countTokens)
		if len(chunks) == 0 {
			continue
		}
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("embed %s: %w", doc.Path, err)
		}
		for i, c := range chunks {
			_, err := b.store.UpsertNoteChunk(ctx, &store.NoteChunk{
				ID:        c.ID,
				Notebook:  c.Notebook,
				Path:      c.Path,
				FileType:  c.FileType,
				Content:   c.Content,
				Model:     b.embedder.Model(),
				Embedding: vectors[i],
			})
			if err != nil {
				return indexed, fmt.Errorf("store chunk %s: %w", c.ID, err)
			}
			indexed++
		}
	}
	return indexed, nil
}

func (b *StoreBackend) Search(ctx context.Context, req *SearchRequest) ([]*Snippet, error) {
	vector, err := b.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := b.store.SearchNoteChunks(ctx, &store.SearchNoteChunks{
		Vector:    vector,
		Notebook:  req.Filters.Notebook,
		FileTypes: req.Filters.fileTypes(),
		Limit:     req.Limit,
		MinScore:  float64(req.MinScore),
	})
	if err != nil {
		return nil, err
	}

	snippets := make([]*Snippet, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, &Snippet{
			ID:       r.Chunk.ID,
			Notebook: r.Chunk.Notebook,
			Path:     r.Chunk.Path,
			FileType: r.Chunk.FileType,
			Content:  r.Chunk.Content,
			Score:    float32(r.Score),
		})
	}
	return snippets, nil
}

func (b *StoreBackend) Count(ctx context.Context) (int, error) {
	return b.store.CountNoteChunks(ctx)
}
