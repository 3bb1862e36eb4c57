package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hrygo/studynotes/ai/internal/strutil"
	"github.com/hrygo/studynotes/ai/intent"
)

// Retrieval strategies.
const (
	StrategyBroad      = "broad"
	StrategyFileScoped = "file_scoped"
	StrategyCodeScoped = "code_scoped"
	StrategyDocsScoped = "docs_scoped"
)

// maxQueryLength bounds the text sent to the embedder, in runes.
const maxQueryLength = 1000

var (
	codeFileTypes = []string{"go", "py", "ipynb", "js", "jsx", "ts", "tsx", "java", "kt", "c", "cc", "cpp", "h", "hpp", "cs", "rs", "rb", "php", "swift", "sql", "sh"}
	docFileTypes  = []string{"md", "txt", "rst"}

	fileRefPattern = regexp.MustCompile(`\b[\w\-]+\.([a-z0-9]{1,6})\b`)
)

// Options configures one retrieval.
type Options struct {
	Logger    *slog.Logger
	Query     string
	Strategy  string
	RequestID string
	Filters   Filters
	Limit     int
	MinScore  float32
}

// AdaptiveRetriever picks a search scope from the query's intent category.
type AdaptiveRetriever struct {
	backend Backend
}

// NewAdaptiveRetriever creates an adaptive retriever over backend.
func NewAdaptiveRetriever(backend Backend) *AdaptiveRetriever {
	return &AdaptiveRetriever{backend: backend}
}

// StrategyFor maps a classification to a retrieval strategy.
func StrategyFor(result *intent.Result) string {
	if result == nil {
		return StrategyBroad
	}
	switch result.Category {
	case intent.CategoryFileReference:
		return StrategyFileScoped
	case intent.CategoryCodeExplanation:
		return StrategyCodeScoped
	case intent.CategoryDocumentationQuery:
		return StrategyDocsScoped
	}
	// Debugging requests are about the student's own code even when no category fired.
	if result.HasTag(intent.TagDebuggingRequest) {
		return StrategyCodeScoped
	}
	return StrategyBroad
}

// Retrieve runs the selected strategy. Long queries are searched by their
// leading text; file references are still read from the whole query.
func (r *AdaptiveRetriever) Retrieve(ctx context.Context, in *Options) ([]*Snippet, error) {
	if in == nil {
		return nil, fmt.Errorf("retrieval options are required")
	}
	opts := *in
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	fileTypes := referencedFileTypes(opts.Query)
	if utf8.RuneCountInString(opts.Query) > maxQueryLength {
		opts.Logger.DebugContext(ctx, "Truncating long retrieval query",
			"request_id", opts.RequestID,
			"length", utf8.RuneCountInString(opts.Query),
		)
		opts.Query = strutil.Truncate(opts.Query, maxQueryLength)
	}

	return r.retrieve(ctx, &opts, fileTypes)
}

func (r *AdaptiveRetriever) retrieve(ctx context.Context, opts *Options, referenced []string) ([]*Snippet, error) {
	switch opts.Strategy {
	case StrategyFileScoped:
		return r.scoped(ctx, opts, StrategyFileScoped, referenced)
	case StrategyCodeScoped:
		return r.scoped(ctx, opts, StrategyCodeScoped, codeFileTypes)
	case StrategyDocsScoped:
		return r.scoped(ctx, opts, StrategyDocsScoped, docFileTypes)
	default:
		return r.broad(ctx, opts)
	}
}

// broad searches every note within the caller's filters.
func (r *AdaptiveRetriever) broad(ctx context.Context, opts *Options) ([]*Snippet, error) {
	opts.Logger.DebugContext(ctx, "Using retrieval strategy",
		"request_id", opts.RequestID,
		"strategy", StrategyBroad,
	)
	return r.search(ctx, opts, opts.Filters)
}

// scoped narrows to fileTypes and widens again when the scope is empty.
func (r *AdaptiveRetriever) scoped(ctx context.Context, opts *Options, strategy string, fileTypes []string) ([]*Snippet, error) {
	// Caller-supplied file types take precedence over the inferred scope.
	if len(opts.Filters.FileTypes) > 0 || len(fileTypes) == 0 {
		return r.broad(ctx, opts)
	}

	opts.Logger.DebugContext(ctx, "Using retrieval strategy",
		"request_id", opts.RequestID,
		"strategy", strategy,
		"file_types", fileTypes,
	)
	filters := opts.Filters
	filters.FileTypes = fileTypes

	snippets, err := r.search(ctx, opts, filters)
	if err != nil {
		return nil, err
	}
	if len(snippets) > 0 {
		return snippets, nil
	}

	opts.Logger.DebugContext(ctx, "Scoped retrieval empty, widening",
		"request_id", opts.RequestID,
		"strategy", strategy,
	)
	return r.broad(ctx, opts)
}

func (r *AdaptiveRetriever) search(ctx context.Context, opts *Options, filters Filters) ([]*Snippet, error) {
	snippets, err := r.backend.Search(ctx, &SearchRequest{
		Query:    opts.Query,
		Filters:  filters,
		Limit:    opts.Limit,
		MinScore: opts.MinScore,
	})
	if err != nil {
		opts.Logger.ErrorContext(ctx, "Note search failed",
			"request_id", opts.RequestID,
			"error", err,
		)
		return nil, fmt.Errorf("note search failed: %w", err)
	}
	return snippets, nil
}

// referencedFileTypes extracts file extensions named in query.
func referencedFileTypes(query string) []string {
	var types []string
	seen := map[string]bool{}
	for _, m := range fileRefPattern.FindAllStringSubmatch(strings.ToLower(query), -1) {
		ext := m[1]
		if seen[ext] || !isKnownFileType(ext) {
			continue
		}
		seen[ext] = true
		types = append(types, ext)
	}
	return types
}

func isKnownFileType(ext string) bool {
	for _, list := range [][]string{codeFileTypes, docFileTypes, {"json", "yaml", "yml", "toml", "html", "css", "scss"}} {
		for _, ft := range list {
			if ft == ext {
				return true
			}
		}
	}
	return false
}
