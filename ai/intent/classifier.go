package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/studynotes/ai/internal/strutil"
)

// fallbackReasoning is reported whenever analysis faults.
const fallbackReasoning = "analysis failed, defaulting to context for safety"

// AnalysisError is the single fault class of the classifier. It never reaches
// callers of Analyze; it is turned into the fail-safe result at the boundary.
type AnalysisError struct {
	Query string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze query %q: %v", strutil.Truncate(e.Query, 80), e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Observer receives classification outcomes, e.g. for metrics.
type Observer interface {
	ObserveClassification(result *Result, elapsed time.Duration)
	ObserveFallback(err error)
	ObserveBudgetExceeded(elapsed, budget time.Duration)
	ObserveCache(hit bool)
}

// analysis is the config-independent part of a classification. It is what
// the cache stores, so it must never depend on Config.
type analysis struct {
	category       Category
	confidence     float64
	tags           []Tag
	wordCount      int
	technicalTerms int
	complexity     Complexity
	specificity    float64
	enhanced       bool
}

func (a *analysis) clone() *analysis {
	c := *a
	c.tags = append([]Tag(nil), a.tags...)
	return &c
}

// Classifier is a stateless query intent classifier. The optional cache is a
// pure performance optimization. Safe for concurrent use.
type Classifier struct {
	cache    *ResultCache
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCache enables the bounded result cache.
func WithCache(cache *ResultCache) Option {
	return func(c *Classifier) { c.cache = cache }
}

// WithObserver attaches an outcome observer.
func WithObserver(o Observer) Option {
	return func(c *Classifier) { c.observer = o }
}

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// NewClassifier creates a classifier.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Cache returns the result cache, or nil when caching is off.
func (c *Classifier) Cache() *ResultCache {
	return c.cache
}

var defaultClassifier = NewClassifier()

// Analyze classifies query with a cache-less classifier.
func Analyze(query string, cfg Config) *Result {
	return defaultClassifier.Analyze(query, cfg)
}

// AnalyzeEnhanced runs the enhanced pass with a cache-less classifier.
func AnalyzeEnhanced(query string, cfg Config) *Result {
	return defaultClassifier.AnalyzeEnhanced(query, cfg)
}

// Analyze classifies query. It always returns a result; faults produce the
// fail-safe verdict.
func (c *Classifier) Analyze(query string, cfg Config) *Result {
	return c.run(query, cfg, false)
}

// AnalyzeEnhanced classifies query with the second pattern battery and the
// complexity/specificity descriptors.
func (c *Classifier) AnalyzeEnhanced(query string, cfg Config) *Result {
	return c.run(query, cfg, true)
}

// AnalyzeBatch classifies queries in parallel, preserving input order.
// concurrency <= 0 means one worker per query.
func (c *Classifier) AnalyzeBatch(ctx context.Context, queries []string, cfg Config, enhanced bool, concurrency int) ([]*Result, error) {
	results := make([]*Result, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = c.run(q, cfg, enhanced)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Classifier) run(query string, cfg Config, enhanced bool) (result *Result) {
	start := c.now()

	defer func() {
		if r := recover(); r != nil {
			result = c.fallback(&AnalysisError{Query: query, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	a, cached, err := c.analyze(query, cfg, enhanced)
	if err != nil {
		return c.fallback(err)
	}

	requiresContext := decide(a.category, a.confidence, cfg)
	result = &Result{
		Category:        a.category,
		Confidence:      a.confidence,
		RequiresContext: requiresContext,
		Reasoning:       buildReasoning(a, requiresContext),
		Tags:            a.tags,
		Complexity:      a.complexity,
		Specificity:     a.specificity,
		WordCount:       a.wordCount,
		TechnicalTerms:  a.technicalTerms,
		Enhanced:        a.enhanced,
		Cached:          cached,
	}

	elapsed := c.now().Sub(start)
	if budget := cfg.Budget(); budget > 0 && elapsed > budget {
		c.logger.Warn("query analysis exceeded budget",
			"elapsed", elapsed,
			"budget", budget,
			"category", result.Category,
		)
		if c.observer != nil {
			c.observer.ObserveBudgetExceeded(elapsed, budget)
		}
	}
	if cfg.LogDecisions {
		c.logger.Info("query intent classified",
			"category", result.Category,
			"confidence", result.Confidence,
			"requires_context", result.RequiresContext,
			"tags", result.Tags,
			"cached", cached,
		)
	} else if cfg.Debug {
		c.logger.Debug("query intent classified",
			"category", result.Category,
			"confidence", result.Confidence,
			"requires_context", result.RequiresContext,
			"reasoning", result.Reasoning,
		)
	}
	if c.observer != nil {
		c.observer.ObserveClassification(result, elapsed)
	}
	return result
}

// analyze produces the config-independent analysis, consulting the cache.
func (c *Classifier) analyze(query string, cfg Config, enhanced bool) (*analysis, bool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, false, &AnalysisError{Query: query, Err: err}
	}

	normalized := normalize(query)

	if c.cache != nil {
		a, ok := c.cache.get(normalized, enhanced)
		if c.observer != nil {
			c.observer.ObserveCache(ok)
		}
		if ok {
			return a, true, nil
		}
	}

	tags := detect(primaryGroups, normalized)
	words := len(strings.Fields(normalized))
	a := &analysis{
		category:   categorize(tags),
		confidence: primaryConfidence(tags, words),
		tags:       tags,
		wordCount:  words,
	}
	if enhanced {
		enhance(a, normalized)
	}

	if c.cache != nil {
		c.cache.set(normalized, enhanced, a)
	}
	return a, false, nil
}

func (c *Classifier) fallback(err error) *Result {
	c.logger.Warn("query analysis failed, defaulting to context", "error", err)
	if c.observer != nil {
		c.observer.ObserveFallback(err)
	}
	return FallbackResult()
}

// FallbackResult returns the fail-safe verdict reported when analysis faults.
func FallbackResult() *Result {
	return &Result{
		Category:        CategoryProjectSpecific,
		Confidence:      0.5,
		RequiresContext: true,
		Reasoning:       fallbackReasoning,
		Fallback:        true,
	}
}
