package analysis

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/elelem/visibility/pkg/model"
)

const (
	maxKeywords         = 5
	minKeywordRunes     = 4
	brandFreqMultiplier = 10.0

	correctnessMatched   = 1.0
	correctnessUnmatched = 0.3
)

// ExtractKeywords picks up to five keywords from text. A keyword is a whitespace-separated
// token of more than three letters, lower-cased. Duplicates are dropped and the order of
// first occurrence is kept, so the result is deterministic.
func ExtractKeywords(text string) []string {
	seen := make(map[string]struct{})
	keywords := make([]string, 0, maxKeywords)

	for _, token := range strings.Fields(text) {
		if utf8.RuneCountInString(token) < minKeywordRunes || !isAlpha(token) {
			continue
		}
		kw := strings.ToLower(token)
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
		if len(keywords) == maxKeywords {
			break
		}
	}

	return keywords
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

// KeywordMatch returns the fraction of keywords found in text (case-insensitive substring)
func KeywordMatch(keywords []string, text string) float64 {
	if len(keywords) == 0 {
		return 0.0
	}

	lower := strings.ToLower(text)
	var hit int
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hit++
		}
	}
	return model.Clamp01(float64(hit) / float64(len(keywords)))
}

// BrandFrequency counts brand mentions among whitespace tokens. The ratio is multiplied by
// 10 and capped at 1.0. Tokens are compared case-insensitively with surrounding punctuation
// removed, and a multi-word brand matches a run of consecutive tokens.
func BrandFrequency(brand, text string) float64 {
	tokens := normalizeTokens(strings.Fields(text))
	if len(tokens) == 0 {
		return 0.0
	}

	brandTokens := brandPattern(brand)
	if len(brandTokens) == 0 {
		return 0.0
	}

	var occurrences int
	for i := 0; i+len(brandTokens) <= len(tokens); i++ {
		if matchAt(tokens, brandTokens, i) {
			occurrences++
		}
	}

	freq := float64(occurrences) * brandFreqMultiplier / float64(len(tokens))
	return math.Min(freq, 1.0)
}

func normalizeTokens(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		out = append(out, strings.ToLower(trimPunct(t)))
	}
	return out
}

// brandPattern drops brand tokens that are only punctuation, so they never match the
// punctuation tokens of the text
func brandPattern(brand string) []string {
	out := make([]string, 0, 1)
	for _, t := range normalizeTokens(strings.Fields(brand)) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matchAt(tokens, pattern []string, at int) bool {
	for j, p := range pattern {
		if tokens[at+j] != p {
			return false
		}
	}
	return true
}

// SemanticSimilarity returns the cosine similarity of two vectors mapped from [-1, 1] onto
// [0, 1]. Degenerate input (empty, zero norm, dimension mismatch) yields 0.0.
func SemanticSimilarity(a, b []float32) float64 {
	sim, ok := cosine(a, b)
	if !ok {
		return 0.0
	}
	return RemapCosine(sim)
}

// RemapCosine maps a cosine similarity onto [0, 1]
func RemapCosine(sim float64) float64 {
	return model.Clamp01((sim + 1) / 2)
}

func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// Correctness is a placeholder for grounded fact checking: 1.0 if the brand is mentioned
// anywhere in text (case-insensitive), otherwise 0.3.
func Correctness(brand, text string) float64 {
	if brand != "" && strings.Contains(strings.ToLower(text), strings.ToLower(brand)) {
		return correctnessMatched
	}
	return correctnessUnmatched
}

// Consistency scores how close the current sentiment is to prior observations.
// No history means no evidence of instability, so it returns 1.0.
func Consistency(history []float64, current float64) float64 {
	if len(history) == 0 {
		return 1.0
	}

	var total float64
	for _, prior := range history {
		total += math.Abs(current - prior)
	}
	return model.Clamp01(1 - total/float64(len(history)))
}
