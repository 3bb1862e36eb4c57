// Package rag answers study questions, retrieving note context only when the
// intent classifier says the query needs it.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/studynotes/ai/core/llm"
	"github.com/hrygo/studynotes/ai/core/retrieval"
	"github.com/hrygo/studynotes/ai/intent"
	"github.com/hrygo/studynotes/ai/internal/strutil"
)

// ErrEmptyQuery is returned for blank chat queries.
var ErrEmptyQuery = errors.New("query is empty")

const disabledReasoning = "Classifier disabled: context use follows fallback_to_context"

const defaultSystemPrompt = `You are a study assistant. Answer the student's question clearly and concisely.
When notes are provided, ground the answer in them and cite the note path in brackets.
If the notes do not cover the question, say so and answer from general knowledge.`

// minSnippetTokens is the smallest remainder worth filling with a truncated snippet.
const minSnippetTokens = 32

// Retriever finds note snippets.
type Retriever interface {
	Retrieve(ctx context.Context, opts *retrieval.Options) ([]*retrieval.Snippet, error)
}

// Generator produces the answer text.
type Generator interface {
	Chat(ctx context.Context, messages []llm.Message) (string, *llm.CallStats, error)
}

// Redactor masks sensitive values in note text before it is sent to the generator.
type Redactor interface {
	Redact(text string) (string, int)
}

// Observer receives pipeline outcomes, e.g. for metrics.
type Observer interface {
	RecordChatRequest(strategy string, usedContext bool, snippets int, latency time.Duration, success bool)
	RecordRetrievalError()
	RecordLLMCall(model string, promptTokens, completionTokens int, latency time.Duration)
}

// Config tunes retrieval and prompt assembly.
type Config struct {
	TopK              int
	MinScore          float32
	PromptTokenBudget int // tokens reserved for note context; 0 means unlimited
	Model             string
	SystemPrompt      string
}

// Request is one chat turn.
type Request struct {
	Query   string            `json:"query"`
	Filters retrieval.Filters `json:"filters,omitempty"`
}

// Answer is the pipeline result.
type Answer struct {
	RequestID      string               `json:"request_id"`
	Text           string               `json:"text"`
	Classification *intent.Result       `json:"classification"`
	Strategy       string               `json:"strategy,omitempty"`
	Snippets       []*retrieval.Snippet `json:"snippets"`
	UsedContext    bool                 `json:"used_context"`
	Stats          *llm.CallStats       `json:"stats,omitempty"`
}

// Pipeline wires classifier, retriever and generator.
type Pipeline struct {
	classifier  *intent.Classifier
	configs     *intent.ConfigStore
	retriever   Retriever
	generator   Generator
	redactor    Redactor
	observer    Observer
	logger      *slog.Logger
	cfg         Config
	countTokens strutil.TokenCounter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGenerator sets the answer generator; without one, answers carry only snippets.
func WithGenerator(g Generator) Option {
	return func(p *Pipeline) { p.generator = g }
}

// WithRedactor masks snippet content in prompts; returned snippets are unchanged.
func WithRedactor(r Redactor) Option {
	return func(p *Pipeline) { p.redactor = r }
}

// WithObserver attaches a pipeline observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a chat pipeline.
func NewPipeline(classifier *intent.Classifier, configs *intent.ConfigStore, retriever Retriever, cfg Config, opts ...Option) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	p := &Pipeline{
		classifier:  classifier,
		configs:     configs,
		retriever:   retriever,
		logger:      slog.Default(),
		cfg:         cfg,
		countTokens: strutil.CountTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Classify runs the classifier under the current configuration.
func (p *Pipeline) Classify(query string) *intent.Result {
	cfg := p.configs.Snapshot()
	if !cfg.Enabled {
		return &intent.Result{
			Category:        intent.CategoryUnclassified,
			Confidence:      0.5,
			RequiresContext: cfg.FallbackToContext,
			Reasoning:       disabledReasoning,
		}
	}

	var result *intent.Result
	if cfg.EnhancedAnalysis {
		result = p.classifier.AnalyzeEnhanced(query, cfg)
	} else {
		result = p.classifier.Analyze(query, cfg)
	}
	if result.Fallback {
		result.RequiresContext = cfg.FallbackToContext
	}
	return result
}

// Answer classifies, optionally retrieves, and generates a reply.
func (p *Pipeline) Answer(ctx context.Context, req Request) (answer *Answer, err error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	answer = &Answer{
		RequestID: uuid.NewString(),
		Snippets:  []*retrieval.Snippet{},
	}
	logger := p.logger.With("request_id", answer.RequestID)

	defer func() {
		if p.observer != nil {
			p.observer.RecordChatRequest(answer.Strategy, answer.UsedContext, len(answer.Snippets), time.Since(start), err == nil)
		}
	}()

	answer.Classification = p.Classify(query)
	if answer.Classification.RequiresContext {
		answer.Strategy = retrieval.StrategyFor(answer.Classification)
		snippets, rerr := p.retriever.Retrieve(ctx, &retrieval.Options{
			Logger:    logger,
			Query:     query,
			Strategy:  answer.Strategy,
			RequestID: answer.RequestID,
			Filters:   req.Filters,
			Limit:     p.cfg.TopK,
			MinScore:  p.cfg.MinScore,
		})
		if rerr != nil {
			if ctx.Err() != nil {
				return answer, ctx.Err()
			}
			logger.WarnContext(ctx, "Retrieval failed, answering without context", "error", rerr)
			if p.observer != nil {
				p.observer.RecordRetrievalError()
			}
		} else {
			answer.Snippets = p.fitBudget(snippets)
			answer.UsedContext = len(answer.Snippets) > 0
		}
	}

	logger.InfoContext(ctx, "Chat context decided",
		"category", answer.Classification.Category,
		"requires_context", answer.Classification.RequiresContext,
		"strategy", answer.Strategy,
		"snippets", len(answer.Snippets),
	)

	if p.generator == nil {
		return answer, nil
	}

	messages, redacted := p.buildMessages(query, answer.Snippets)
	if redacted > 0 {
		logger.DebugContext(ctx, "Redacted sensitive values from prompt", "count", redacted)
	}
	text, stats, gerr := p.generator.Chat(ctx, messages)
	if gerr != nil {
		logger.ErrorContext(ctx, "Generation failed", "error", gerr)
		return answer, fmt.Errorf("generate answer: %w", gerr)
	}
	answer.Text = text
	answer.Stats = stats
	if p.observer != nil && stats != nil {
		p.observer.RecordLLMCall(p.cfg.Model, stats.PromptTokens, stats.CompletionTokens, time.Duration(stats.TotalDurationMs)*time.Millisecond)
	}
	return answer, nil
}

// fitBudget keeps snippets in rank order until the token budget is spent,
// truncating the last one when enough room remains.
func (p *Pipeline) fitBudget(snippets []*retrieval.Snippet) []*retrieval.Snippet {
	budget := p.cfg.PromptTokenBudget
	if budget <= 0 {
		return snippets
	}

	kept := make([]*retrieval.Snippet, 0, len(snippets))
	remaining := budget
	for _, s := range snippets {
		tokens := p.countTokens(s.Content)
		if tokens <= remaining {
			kept = append(kept, s)
			remaining -= tokens
			continue
		}
		if remaining >= minSnippetTokens {
			trimmed := *s
			trimmed.Content = strutil.TruncateToTokens(s.Content, remaining, p.countTokens)
			if trimmed.Content != "" {
				kept = append(kept, &trimmed)
			}
		}
		break
	}
	return kept
}

// buildMessages renders the prompt and reports how many values were redacted.
func (p *Pipeline) buildMessages(query string, snippets []*retrieval.Snippet) ([]llm.Message, int) {
	if len(snippets) == 0 {
		return llm.FormatMessages(p.cfg.SystemPrompt, query), 0
	}

	redacted := 0
	var sb strings.Builder
	sb.WriteString("Relevant notes:\n")
	for i, s := range snippets {
		source := s.Path
		if source == "" {
			source = s.ID
		}
		if s.Notebook != "" {
			source = s.Notebook + "/" + source
		}
		content := s.Content
		if p.redactor != nil {
			var n int
			content, n = p.redactor.Redact(content)
			redacted += n
		}
		fmt.Fprintf(&sb, "\n[%d] %s\n%s\n", i+1, source, content)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)
	return llm.FormatMessages(p.cfg.SystemPrompt, sb.String()), redacted
}
