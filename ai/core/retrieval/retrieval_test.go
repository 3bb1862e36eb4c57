package retrieval

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/studynotes/ai/internal/strutil"
	"github.com/hrygo/studynotes/ai/intent"
)

const fakeDims = 64

// fakeEmbedder hashes words into a bag-of-words vector.
type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, fakeDims)
	vec[0] = 0.01
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) })
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[1+h.Sum32()%(fakeDims-1)]++
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return fakeDims }
func (f *fakeEmbedder) Model() string   { return "fake-bow" }

var testNotes = []NoteDocument{
	{Notebook: "cs101", Path: "notes/loops.md", Content: "For loops repeat a block a fixed number of times.\n\nWhile loops check a condition first."},
	{Notebook: "cs101", Path: "src/main.py", Content: "def main():\n    print('hello world')"},
	{Notebook: "bio", Path: "bio/cells.md", Content: "Mitochondria produce energy for the cell."},
}

// fakeBackend records the last request and returns canned results per file-type scope.
type fakeBackend struct {
	requests []*SearchRequest
	results  func(req *SearchRequest) []*Snippet
	err      error
}

func (f *fakeBackend) Search(_ context.Context, req *SearchRequest) ([]*Snippet, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.results == nil {
		return []*Snippet{}, nil
	}
	return f.results(req), nil
}

func (f *fakeBackend) Index(context.Context, []NoteDocument) (int, error) { return 0, nil }
func (f *fakeBackend) Count(context.Context) (int, error)                { return 0, nil }

func TestFilters_Matches(t *testing.T) {
	assert.True(t, Filters{}.Matches("any", "md"))
	assert.True(t, Filters{Notebook: "cs"}.Matches("cs", "md"))
	assert.False(t, Filters{Notebook: "cs"}.Matches("bio", "md"))
	assert.True(t, Filters{FileTypes: []string{"PY", "md"}}.Matches("", "py"))
	assert.False(t, Filters{FileTypes: []string{"md"}}.Matches("", "py"))
	assert.True(t, Filters{FileTypes: []string{".py"}}.Matches("", "PY"))
}

func TestFileTypeOf(t *testing.T) {
	assert.Equal(t, "py", FileTypeOf("src/Main.PY"))
	assert.Equal(t, "", FileTypeOf("Makefile"))
}

func TestChunkDocument(t *testing.T) {
	doc := NoteDocument{
		Path:    "notes/a.md",
		Content: "one two three\n\nfour five six\n\n\n\nseven eight nine ten eleven",
	}

	chunks := chunkDocument(doc, 6, strutil.EstimateTokens)
	require.Len(t, chunks, 2)
	assert.Equal(t, "notes/a.md#0", chunks[0].ID)
	assert.Equal(t, "one two three\n\nfour five six", chunks[0].Content)
	assert.Equal(t, "seven eight nine ten eleven", chunks[1].Content)
	assert.Equal(t, "md", chunks[1].FileType)

	tiny := chunkDocument(NoteDocument{ID: "x", Content: "a b c d e f g h"}, 3, strutil.EstimateTokens)
	require.Len(t, tiny, 1)
	assert.Equal(t, "a b c...", tiny[0].Content)

	assert.Empty(t, chunkDocument(NoteDocument{ID: "empty", Content: "\n\n  \n"}, 10, strutil.EstimateTokens))
}

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		category intent.Category
		expected string
	}{
		{intent.CategoryFileReference, StrategyFileScoped},
		{intent.CategoryCodeExplanation, StrategyCodeScoped},
		{intent.CategoryDocumentationQuery, StrategyDocsScoped},
		{intent.CategoryProjectSpecific, StrategyBroad},
		{intent.CategoryGeneralProgramming, StrategyBroad},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, StrategyFor(&intent.Result{Category: tt.category}), tt.category)
	}
	assert.Equal(t, StrategyBroad, StrategyFor(nil))

	debugging := &intent.Result{Category: intent.CategoryUnclassified, Tags: []intent.Tag{intent.TagDebuggingRequest}}
	assert.Equal(t, StrategyCodeScoped, StrategyFor(debugging))
}

func TestReferencedFileTypes(t *testing.T) {
	assert.Equal(t, []string{"js", "py"}, referencedFileTypes("compare App.JS with utils.py and app.js"))
	assert.Empty(t, referencedFileTypes("e.g. nothing here"))
}

func TestAdaptiveRetriever_Validation(t *testing.T) {
	r := NewAdaptiveRetriever(&fakeBackend{})

	_, err := r.Retrieve(context.Background(), nil)
	assert.Error(t, err)

}

func TestAdaptiveRetriever_LongQueryTruncated(t *testing.T) {
	backend := &fakeBackend{results: func(req *SearchRequest) []*Snippet {
		return []*Snippet{{ID: "scoped", FileType: "py"}}
	}}
	r := NewAdaptiveRetriever(backend)

	query := "explain main.py " + strings.Repeat("x", 1000) + " and helpers.go"
	snippets, err := r.Retrieve(context.Background(), &Options{Query: query, Strategy: StrategyFileScoped})
	require.NoError(t, err)
	require.Len(t, snippets, 1)

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	assert.True(t, strings.HasPrefix(req.Query, "explain main.py "))
	assert.Equal(t, maxQueryLength+len("..."), len([]rune(req.Query)))
	assert.Equal(t, []string{"py", "go"}, req.Filters.FileTypes, "file types come from the whole query")
}

func TestAdaptiveRetriever_LeavesOptionsUntouched(t *testing.T) {
	r := NewAdaptiveRetriever(&fakeBackend{})
	opts := &Options{Query: strings.Repeat("y", 1200)}

	_, err := r.Retrieve(context.Background(), opts)
	require.NoError(t, err)
	assert.Nil(t, opts.Logger)
	assert.Zero(t, opts.Limit)
	assert.Len(t, opts.Query, 1200)
}

func TestAdaptiveRetriever_ScopedThenWidened(t *testing.T) {
	backend := &fakeBackend{results: func(req *SearchRequest) []*Snippet {
		if len(req.Filters.FileTypes) > 0 {
			return []*Snippet{}
		}
		return []*Snippet{{ID: "wide"}}
	}}
	r := NewAdaptiveRetriever(backend)

	snippets, err := r.Retrieve(context.Background(), &Options{Query: "explain app.js", Strategy: StrategyFileScoped})
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "wide", snippets[0].ID)

	require.Len(t, backend.requests, 2)
	assert.Equal(t, []string{"js"}, backend.requests[0].Filters.FileTypes)
	assert.Empty(t, backend.requests[1].Filters.FileTypes)
	assert.Equal(t, 5, backend.requests[0].Limit)
}

func TestAdaptiveRetriever_CallerFiltersWin(t *testing.T) {
	backend := &fakeBackend{}
	r := NewAdaptiveRetriever(backend)

	_, err := r.Retrieve(context.Background(), &Options{
		Query:    "what does the documentation say",
		Strategy: StrategyDocsScoped,
		Filters:  Filters{FileTypes: []string{"pdf"}},
	})
	require.NoError(t, err)
	require.Len(t, backend.requests, 1)
	assert.Equal(t, []string{"pdf"}, backend.requests[0].Filters.FileTypes)
}

func TestAdaptiveRetriever_BackendError(t *testing.T) {
	r := NewAdaptiveRetriever(&fakeBackend{err: errors.New("boom")})
	_, err := r.Retrieve(context.Background(), &Options{Query: "q", Strategy: StrategyCodeScoped})
	assert.ErrorContains(t, err, "boom")
}
