// Package strutil provides string and token utilities for the ai packages.
package strutil

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Truncate truncates a string to a maximum number of runes.
// Returns empty string if maxLen <= 0.
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// TokenCounter counts tokens in text.
type TokenCounter func(text string) int

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// loadEncoding lazily loads cl100k_base; the BPE file may have to be fetched,
// so it is never loaded at import time.
func loadEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
	return encoding
}

// CountTokens counts tokens with cl100k_base, falling back to EstimateTokens
// when the encoding is unavailable.
func CountTokens(text string) int {
	if enc := loadEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// EstimateTokens is a heuristic count: max(runes/4, words).
func EstimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}

// TruncateToTokens keeps at most maxTokens tokens of text as measured by count,
// cutting on word boundaries.
func TruncateToTokens(text string, maxTokens int, count TokenCounter) string {
	if maxTokens <= 0 {
		return ""
	}
	if count == nil {
		count = CountTokens
	}
	if count(text) <= maxTokens {
		return text
	}

	words := strings.Fields(text)
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if count(strings.Join(words[:mid], " ")) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return ""
	}
	return strings.Join(words[:lo], " ") + "..."
}
