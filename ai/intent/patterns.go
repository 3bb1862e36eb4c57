package intent

import (
	"regexp"
	"strings"
	"unicode"
)

// patternGroup is one lexical signal: it fires when any matcher matches.
type patternGroup struct {
	tag      Tag
	clause   string
	matchers []*regexp.Regexp
}

func (g patternGroup) matches(normalized string) bool {
	for _, re := range g.matchers {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

// compilePatterns compiles patterns that run against lowercased input.
func compilePatterns(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// primaryGroups is evaluated in full for every query; no group short-circuits another.
var primaryGroups = []patternGroup{
	{
		tag:    TagFileReference,
		clause: "detected file or path references",
		matchers: compilePatterns(
			`\b[\w\-]+\.(?:js|jsx|ts|tsx|py|ipynb|java|kt|swift|c|cc|cpp|h|hpp|cs|go|rs|rb|php|html|css|scss|sql|sh|json|ya?ml|toml|md|txt)\b`,
			`\bthis file\b`,
			`\bmy (?:file|project|notebook)s?\b`,
			`\bin my (?:project|codebase|repository|repo)\b`,
		),
	},
	{
		tag:    TagCodeReference,
		clause: "detected references to specific code",
		matchers: compilePatterns(
			`\bthis (?:function|class|method|variable|component)\b`,
			`\bexplain (?:this|the|my) code\b`,
			`\bwhat does (?:this|my|the) (?:function|method|class|code) do\b`,
			`\bhow does my (?:implementation|code|function) work\b`,
			`\bfind similar (?:functions|methods|classes|code)\b`,
		),
	},
	{
		tag:    TagProjectSpecific,
		clause: "detected project-specific phrasing",
		matchers: compilePatterns(
			`\b(?:in|from) (?:my|this|our) project\b`,
			`\bfrom my (?:codebase|files|notes)\b`,
			`\bshow me examples from\b`,
			`\bsearch for (?:my|our)\b`,
			`\bfind in (?:my|our|the)\b`,
		),
	},
	{
		tag:    TagDocumentationQuery,
		clause: "detected documentation lookups",
		matchers: compilePatterns(
			`\bwhat does the documentation say\b`,
			`\baccording to (?:the |my |our )?(?:docs|documentation|readme)\b`,
			`\bin the (?:readme|documentation|docs|notes)\b`,
		),
	},
	{
		tag:    TagGeneralProgramming,
		clause: "detected general programming concepts",
		matchers: compilePatterns(
			`\bwhat is an? (?:for loop|while loop|loop|function|class|variable|array|object|closure|promise|callback|pointer)\b`,
			`\bhow to (?:create|make|write|implement|build)\b`,
			`\bexplain the concept of\b`,
			`\b(?:javascript|typescript|python|java|golang|go|rust|ruby|php|kotlin|swift|c\+\+|c#) (?:syntax|tutorial|basics)\b`,
			`\bwhat are (?:rest apis?|promises|async[/ -]?await|closures|callbacks|generators|decorators)\b`,
		),
	},
}

// extendedGroups is the independent second battery used by AnalyzeEnhanced.
var extendedGroups = []patternGroup{
	{
		tag:    TagContextualReference,
		clause: "detected contextual references",
		matchers: compilePatterns(
			`\b(?:this|that|these|those) (?:code|function|functions|implementation|snippet|class|method)\b`,
		),
	},
	{
		tag:    TagComparisonRequest,
		clause: "detected a comparison request",
		matchers: compilePatterns(
			`\bcompare (?:this|that|it) (?:with|to)\b`,
			`\bsimilar to (?:my|our)\b`,
		),
	},
	{
		tag:    TagLearningRequest,
		clause: "detected a learning request",
		matchers: compilePatterns(
			`\b(?:learn|learning|tutorial|guide)\b`,
			`\bintroduction to\b`,
			`\bbest practices?\b`,
			`\bdesign patterns?\b`,
		),
	},
	{
		tag:    TagDebuggingRequest,
		clause: "detected a debugging request",
		matchers: compilePatterns(
			`\b(?:debug|fix|error|bug)\b.*\bin\b`,
			`\bwhy (?:is|does)\b.*\bnot working\b`,
		),
	},
}

// categoryPriority maps fired tags to a category; first match wins.
var categoryPriority = []struct {
	tag      Tag
	category Category
}{
	{TagFileReference, CategoryFileReference},
	{TagCodeReference, CategoryCodeExplanation},
	{TagDocumentationQuery, CategoryDocumentationQuery},
	{TagProjectSpecific, CategoryProjectSpecific},
	{TagGeneralProgramming, CategoryGeneralProgramming},
}

// technicalTerms is the vocabulary counted by the complexity descriptor.
var technicalTerms = map[string]struct{}{
	"function": {}, "class": {}, "method": {}, "variable": {}, "algorithm": {},
	"closure": {}, "interface": {}, "array": {}, "object": {}, "loop": {},
	"recursion": {}, "pointer": {}, "async": {}, "await": {}, "promise": {},
	"api": {}, "database": {}, "query": {}, "module": {}, "component": {},
	"compiler": {}, "thread": {}, "struct": {}, "generic": {}, "callback": {},
	"exception": {}, "inheritance": {}, "polymorphism": {}, "iterator": {}, "hash": {},
}

// specificityMarkers add to specificity when present.
var specificityMarkers = []string{"specific", "exactly", "precisely", "particular"}

// clauseFor returns the reasoning clause of a tag.
func clauseFor(tag Tag) string {
	for _, g := range primaryGroups {
		if g.tag == tag {
			return g.clause
		}
	}
	for _, g := range extendedGroups {
		if g.tag == tag {
			return g.clause
		}
	}
	return string(tag)
}

// normalize lowercases and trims the query.
func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// detect runs every group against normalized and returns fired tags in group order.
func detect(groups []patternGroup, normalized string) []Tag {
	tags := make([]Tag, 0, len(groups))
	for _, g := range groups {
		if g.matches(normalized) {
			tags = append(tags, g.tag)
		}
	}
	return tags
}

// countTechnicalTerms counts vocabulary hits, tolerating plurals and punctuation.
func countTechnicalTerms(normalized string) int {
	count := 0
	for _, word := range strings.Fields(normalized) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" {
			continue
		}
		if _, ok := technicalTerms[word]; ok {
			count++
			continue
		}
		if _, ok := technicalTerms[strings.TrimSuffix(word, "s")]; ok {
			count++
		}
	}
	return count
}
