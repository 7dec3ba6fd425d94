// Copyright 2025 Smarter
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package textmatch decides whether a free-text chat prompt "refers to" a
// candidate phrase. It is the selection primitive behind search-term plugin
// selectors: three escalating strategies are tried in order (exact substring,
// whole-token overlap, per-token edit distance) and the first hit wins.
//
// All functions are pure and never return an error; malformed input yields
// a non-match.
package textmatch

import (
	"strings"
	"unicode"
)

// DefaultMaxEditDistance is the Levenshtein threshold used by RefersTo when
// no explicit threshold is supplied.
const DefaultMaxEditDistance = 3

// Strategy identifies which matching strategy produced a positive match.
type Strategy string

// Matching strategies, in escalation order.
const (
	StrategyNone         Strategy = ""
	StrategySubstring    Strategy = "substring"
	StrategyTokenOverlap Strategy = "tokenOverlap"
	StrategyFuzzyName    Strategy = "fuzzyName"
)

// Normalize strips punctuation and splits camelCase/PascalCase boundaries
// into separate words, producing space-separated tokens.
//
// A capital following "Mc" is kept attached, so "McDaniel" survives as a
// single token rather than splitting into "Mc Daniel".
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// Strip punctuation first so boundary detection only sees letters,
	// digits and spaces.
	var stripped []rune
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			stripped = append(stripped, r)
		case unicode.IsSpace(r):
			stripped = append(stripped, ' ')
		default:
			stripped = append(stripped, ' ')
		}
	}

	var b strings.Builder
	for i, r := range stripped {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(stripped[i-1]) && !precededByMc(stripped, i) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// precededByMc reports whether the two runes before index i spell "Mc".
func precededByMc(runes []rune, i int) bool {
	return i >= 2 && runes[i-2] == 'M' && runes[i-1] == 'c'
}

// ContainsSubstring reports whether candidate occurs as a case-insensitive
// substring of the normalized prompt.
func ContainsSubstring(promptNormalized, candidate string) bool {
	if candidate == "" {
		return false
	}
	return strings.Contains(strings.ToLower(promptNormalized), strings.ToLower(candidate))
}

// TokenOverlap reports whether every token of the candidate phrase appears
// somewhere among the prompt's tokens. Matching is case-insensitive,
// order-independent and non-contiguous.
func TokenOverlap(promptNormalized, candidate string) bool {
	candidateTokens := strings.Fields(strings.ToLower(candidate))
	if len(candidateTokens) == 0 {
		return false
	}

	promptTokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(promptNormalized)) {
		promptTokens[tok] = true
	}

	for _, tok := range candidateTokens {
		if !promptTokens[tok] {
			return false
		}
	}
	return true
}

// FuzzyNameMatch reports whether any Title-Case token of the normalized
// prompt is within maxEditDistance Levenshtein distance of the candidate.
// Intended to catch misspelled proper names ("Lawrance" vs "Lawrence").
func FuzzyNameMatch(promptNormalized, candidate string, maxEditDistance int) bool {
	if candidate == "" || maxEditDistance < 0 {
		return false
	}

	target := strings.ToLower(candidate)
	for _, tok := range strings.Fields(promptNormalized) {
		if !isTitleCase(tok) {
			continue
		}
		if levenshtein(strings.ToLower(tok), target) <= maxEditDistance {
			return true
		}
	}
	return false
}

// RefersTo normalizes the prompt and applies the three matching strategies
// in escalation order: substring, token overlap, fuzzy name match. The first
// strategy that fires wins.
//
// An empty or whitespace-only candidate phrase never matches: a blank search
// term must not behave like an "always select" directive.
func RefersTo(promptText, candidatePhrase string, maxEditDistance int) bool {
	_, ok := Match(promptText, candidatePhrase, maxEditDistance)
	return ok
}

// Match is RefersTo with attribution: it additionally reports which strategy
// produced the match, for selection-decision logging.
func Match(promptText, candidatePhrase string, maxEditDistance int) (Strategy, bool) {
	if strings.TrimSpace(candidatePhrase) == "" {
		return StrategyNone, false
	}

	normalized := Normalize(promptText)
	if normalized == "" {
		return StrategyNone, false
	}

	if ContainsSubstring(promptText, candidatePhrase) || ContainsSubstring(normalized, candidatePhrase) {
		return StrategySubstring, true
	}
	if TokenOverlap(normalized, candidatePhrase) {
		return StrategyTokenOverlap, true
	}
	if FuzzyNameMatch(normalized, candidatePhrase, maxEditDistance) {
		return StrategyFuzzyName, true
	}
	return StrategyNone, false
}

// isTitleCase reports whether a token starts with an uppercase letter.
func isTitleCase(token string) bool {
	for _, r := range token {
		return unicode.IsUpper(r)
	}
	return false
}

// levenshtein computes the edit distance between two strings using the
// two-row dynamic programming formulation.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
