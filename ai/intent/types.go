// Package intent decides whether a chat query needs retrieval-augmented context
// from the user's indexed notes before it is sent to the language model.
package intent

// Category is the single highest-priority classification assigned to a query.
type Category string

const (
	CategoryFileReference      Category = "file_reference"
	CategoryCodeExplanation    Category = "code_explanation"
	CategoryDocumentationQuery Category = "documentation_query"
	CategoryProjectSpecific    Category = "project_specific"
	CategoryGeneralProgramming Category = "general_programming"
	// CategoryUnclassified falls back to the generic semantic-search path.
	CategoryUnclassified Category = "unclassified"
)

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// forcesContext reports whether the category always needs retrieval,
// regardless of confidence.
func (c Category) forcesContext() bool {
	switch c {
	case CategoryFileReference, CategoryCodeExplanation, CategoryDocumentationQuery, CategoryProjectSpecific:
		return true
	default:
		return false
	}
}

// Tag labels a lexical signal that fired during analysis.
type Tag string

const (
	TagFileReference      Tag = "file_reference"
	TagCodeReference      Tag = "code_reference"
	TagProjectSpecific    Tag = "project_specific"
	TagDocumentationQuery Tag = "documentation_query"
	TagGeneralProgramming Tag = "general_programming"

	// Extended tags, only produced by AnalyzeEnhanced.
	TagContextualReference Tag = "contextual_reference"
	TagComparisonRequest   Tag = "comparison_request"
	TagLearningRequest     Tag = "learning_request"
	TagDebuggingRequest    Tag = "debugging_request"
)

// Complexity is an informational descriptor from the enhanced pass.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Result is the verdict handed to the retrieval/generation pipeline.
// A Result is created per call and never shared between calls.
type Result struct {
	Category        Category `json:"category"`
	Confidence      float64  `json:"confidence"`
	RequiresContext bool     `json:"requires_context"`
	Reasoning       string   `json:"reasoning"`
	Tags            []Tag    `json:"tags"`

	// Enhanced descriptors; zero unless AnalyzeEnhanced produced the result.
	Complexity     Complexity `json:"complexity,omitempty"`
	Specificity    float64    `json:"specificity,omitempty"`
	WordCount      int        `json:"word_count"`
	TechnicalTerms int        `json:"technical_terms,omitempty"`
	Enhanced       bool       `json:"enhanced"`

	// Fallback is set when the result is the fail-safe verdict.
	Fallback bool `json:"fallback,omitempty"`
	// Cached is set when the analysis was served from the result cache.
	Cached bool `json:"cached,omitempty"`
}

// HasTag reports whether tag fired.
func (r *Result) HasTag(tag Tag) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
