package intent

import (
	"fmt"
	"math"
	"strings"
)

// baseConfidence is the neutral starting point; tag weights move away from it.
const baseConfidence = 0.5

// Length buckets.
const (
	shortQueryWords  = 3
	longQueryWords   = 10
	lengthAdjustment = 0.10
)

// tagWeights is the signed contribution of each fired tag.
// General programming and learning requests are the only negative evidence.
var tagWeights = map[Tag]float64{
	TagFileReference:      0.30,
	TagCodeReference:      0.25,
	TagProjectSpecific:    0.20,
	TagDocumentationQuery: 0.25,
	TagGeneralProgramming: -0.30,

	TagContextualReference: 0.20,
	TagComparisonRequest:   0.15,
	TagLearningRequest:     -0.30,
	TagDebuggingRequest:    0.20,
}

// lengthAdjust returns the word-count bucket adjustment.
func lengthAdjust(words int) float64 {
	switch {
	case words < shortQueryWords:
		return -lengthAdjustment
	case words > longQueryWords:
		return lengthAdjustment
	default:
		return 0
	}
}

// scoreTags sums weights over tags on top of start and clamps once.
func scoreTags(start float64, tags []Tag) float64 {
	total := start
	for _, tag := range tags {
		total += tagWeights[tag]
	}
	return clamp01(total)
}

// primaryConfidence applies the primary tag weights and the length buckets.
func primaryConfidence(tags []Tag, words int) float64 {
	return scoreTags(baseConfidence+lengthAdjust(words), tags)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// categorize picks the first category in priority order whose tag fired.
func categorize(tags []Tag) Category {
	for _, p := range categoryPriority {
		for _, t := range tags {
			if t == p.tag {
				return p.category
			}
		}
	}
	return CategoryUnclassified
}

// decide computes the context verdict. Strong categories are policy-forced;
// general programming is suppressed unless strict mode asks for the threshold rule.
func decide(category Category, confidence float64, cfg Config) bool {
	if category.forcesContext() {
		return true
	}
	if category == CategoryGeneralProgramming && !cfg.StrictMode {
		return false
	}
	return confidence >= cfg.ContextThreshold
}

// buildReasoning renders the human-readable justification.
func buildReasoning(a *analysis, requiresContext bool) string {
	verb := "Skipping"
	if requiresContext {
		verb = "Using"
	}

	var clauses []string
	for _, tag := range a.tags {
		clauses = append(clauses, clauseFor(tag))
	}
	if len(clauses) == 0 {
		clauses = append(clauses, "category "+a.category.String())
	}

	reasoning := fmt.Sprintf("%s context: %s (confidence %d%%)",
		verb, strings.Join(clauses, ", "), int(math.Round(a.confidence*100)))
	if a.enhanced {
		reasoning += fmt.Sprintf("; complexity %s, specificity %.2f", a.complexity, a.specificity)
	}
	return reasoning
}
