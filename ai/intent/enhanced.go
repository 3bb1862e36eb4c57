package intent

import "strings"

const (
	lowComplexityMaxWords  = 8
	lowComplexityMaxTerms  = 1
	highComplexityMinWords = 15
	highComplexityMinTerms = 3
	specificityLengthCap   = 20
)

// enhance runs the extended battery over an existing primary analysis.
// Descriptors never feed back into the category.
func enhance(a *analysis, normalized string) {
	extra := detect(extendedGroups, normalized)
	a.confidence = scoreTags(a.confidence, extra)
	a.tags = append(a.tags, extra...)

	a.technicalTerms = countTechnicalTerms(normalized)
	a.complexity = complexityOf(a.wordCount, a.technicalTerms)
	a.specificity = specificityOf(normalized, a.wordCount, a.technicalTerms)
	a.enhanced = true
}

func complexityOf(words, terms int) Complexity {
	switch {
	case words > highComplexityMinWords || terms > highComplexityMinTerms:
		return ComplexityHigh
	case words < lowComplexityMaxWords && terms <= lowComplexityMaxTerms:
		return ComplexityLow
	default:
		return ComplexityMedium
	}
}

// specificityOf averages four normalized factors: term density, capped length,
// a trailing question mark and explicit precision words.
func specificityOf(normalized string, words, terms int) float64 {
	var density float64
	if words > 0 {
		density = float64(terms) / float64(words)
	}
	density = clamp01(density)

	length := words
	if length > specificityLengthCap {
		length = specificityLengthCap
	}
	lengthFactor := float64(length) / specificityLengthCap

	var question float64
	if strings.HasSuffix(normalized, "?") {
		question = 0.1
	}

	var precision float64
	for _, marker := range specificityMarkers {
		if strings.Contains(normalized, marker) {
			precision = 0.2
			break
		}
	}

	return clamp01((density + lengthFactor + question + precision) / 4)
}
