package retrieval

import (
	"context"
	"fmt"
	"sort"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hrygo/studynotes/ai"
	"github.com/hrygo/studynotes/ai/internal/strutil"
)

// ChromemConfig configures the embedded vector index.
type ChromemConfig struct {
	PersistPath string // directory of gob files; empty keeps the index in memory
	Collection  string
	ChunkTokens int
}

// ChromemBackend is an embedded chromem-go index.
type ChromemBackend struct {
	db          *chromem.DB
	collection  *chromem.Collection
	chunkTokens int
	countTokens strutil.TokenCounter
}

// NewChromemBackend opens or creates the collection.
func NewChromemBackend(cfg ChromemConfig, embedder ai.EmbeddingService) (*ChromemBackend, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedding service is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = "notes"
	}

	var db *chromem.DB
	if cfg.PersistPath != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemBackend{
		db:          db,
		collection:  collection,
		chunkTokens: cfg.ChunkTokens,
		countTokens: strutil.CountTokens,
	}, nil
}

// Index chunks and embeds documents; re-indexing a chunk ID replaces it.
func (b *ChromemBackend) Index(ctx context.Context, docs []NoteDocument) (int, error) {
	indexed := 0
	for _, doc := range docs {
		for _, chunk := range chunkDocument(doc, b.chunkTokens, b.countTokens) {
			err := b.collection.AddDocument(ctx, chromem.Document{
				ID:      chunk.ID,
				Content: chunk.Content,
				Metadata: map[string]string{
					"notebook":  chunk.Notebook,
					"path":      chunk.Path,
					"file_type": chunk.FileType,
				},
			})
			if err != nil {
				return indexed, fmt.Errorf("add document %s: %w", chunk.ID, err)
			}
			indexed++
		}
	}
	return indexed, nil
}

// Search ranks all chunks and applies filters after scoring.
func (b *ChromemBackend) Search(ctx context.Context, req *SearchRequest) ([]*Snippet, error) {
	total := b.collection.Count()
	if total == 0 {
		return []*Snippet{}, nil
	}

	n := req.Limit
	if n <= 0 {
		n = 5
	}
	// chromem rejects nResults above the collection size.
	fetch := n
	if len(req.Filters.FileTypes) > 0 || req.Filters.Notebook != "" {
		fetch = total
	}
	if fetch > total {
		fetch = total
	}

	results, err := b.collection.Query(ctx, req.Query, fetch, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	snippets := []*Snippet{}
	for _, r := range results {
		if r.Similarity < req.MinScore {
			continue
		}
		if !req.Filters.Matches(r.Metadata["notebook"], r.Metadata["file_type"]) {
			continue
		}
		snippets = append(snippets, &Snippet{
			ID:       r.ID,
			Notebook: r.Metadata["notebook"],
			Path:     r.Metadata["path"],
			FileType: r.Metadata["file_type"],
			Content:  r.Content,
			Score:    r.Similarity,
		})
	}
	sort.SliceStable(snippets, func(i, j int) bool { return snippets[i].Score > snippets[j].Score })
	if len(snippets) > n {
		snippets = snippets[:n]
	}
	return snippets, nil
}

func (b *ChromemBackend) Count(context.Context) (int, error) {
	return b.collection.Count(), nil
}
