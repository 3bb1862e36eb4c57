// Package retrieval finds study-note snippets relevant to a query.
package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hrygo/studynotes/ai/internal/strutil"
)

// Snippet is one retrieved piece of a note.
type Snippet struct {
	ID       string  `json:"id"`
	Notebook string  `json:"notebook,omitempty"`
	Path     string  `json:"path,omitempty"`
	FileType string  `json:"file_type,omitempty"`
	Content  string  `json:"content"`
	Score    float32 `json:"score"`
}

// Filters narrows a search.
type Filters struct {
	Notebook  string   `json:"notebook,omitempty"`
	FileTypes []string `json:"file_types,omitempty"`
}

// Matches reports whether a snippet passes the filters.
func (f Filters) Matches(notebook, fileType string) bool {
	if f.Notebook != "" && f.Notebook != notebook {
		return false
	}
	if len(f.FileTypes) == 0 {
		return true
	}
	for _, ft := range f.fileTypes() {
		if ft == strings.ToLower(fileType) {
			return true
		}
	}
	return false
}

// fileTypes returns the file-type filter lowercased, the form FileTypeOf stores.
func (f Filters) fileTypes() []string {
	if len(f.FileTypes) == 0 {
		return nil
	}
	out := make([]string, len(f.FileTypes))
	for i, ft := range f.FileTypes {
		out[i] = strings.ToLower(strings.TrimPrefix(ft, "."))
	}
	return out
}

// NoteDocument is a whole note handed to Index.
type NoteDocument struct {
	ID       string // defaults to Path
	Notebook string
	Path     string
	Content  string
}

// SearchRequest is a backend query.
type SearchRequest struct {
	Query    string
	Filters  Filters
	Limit    int
	MinScore float32
}

// Backend is a vector index over note chunks.
type Backend interface {
	Search(ctx context.Context, req *SearchRequest) ([]*Snippet, error)
	Index(ctx context.Context, docs []NoteDocument) (int, error)
	Count(ctx context.Context) (int, error)
}

// DefaultChunkTokens bounds the size of an indexed chunk.
const DefaultChunkTokens = 256

// noteChunk is the unit stored by backends.
type noteChunk struct {
	ID       string
	Notebook string
	Path     string
	FileType string
	Content  string
}

// FileTypeOf returns the lowercased extension of path without the dot.
func FileTypeOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// chunkDocument splits a note on blank lines and packs paragraphs up to maxTokens.
func chunkDocument(doc NoteDocument, maxTokens int, count strutil.TokenCounter) []noteChunk {
	if maxTokens <= 0 {
		maxTokens = DefaultChunkTokens
	}
	if count == nil {
		count = strutil.CountTokens
	}
	id := doc.ID
	if id == "" {
		id = doc.Path
	}
	fileType := FileTypeOf(doc.Path)

	var chunks []noteChunk
	var current []string
	currentTokens := 0
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, noteChunk{
			ID:       fmt.Sprintf("%s#%d", id, len(chunks)),
			Notebook: doc.Notebook,
			Path:     doc.Path,
			FileType: fileType,
			Content:  strings.Join(current, "\n\n"),
		})
		current, currentTokens = nil, 0
	}

	for _, para := range strings.Split(doc.Content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		tokens := count(para)
		if tokens > maxTokens {
			flush()
			para = strutil.TruncateToTokens(para, maxTokens, count)
			tokens = maxTokens
		}
		if currentTokens+tokens > maxTokens {
			flush()
		}
		current = append(current, para)
		currentTokens += tokens
	}
	flush()
	return chunks
}
