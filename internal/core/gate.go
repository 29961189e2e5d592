package core

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultMinKeywordMatches is the number of distinct message keywords that
// make a text look like a message when no header token is present
const DefaultMinKeywordMatches = 4

// DefaultHeaderTokens are e-mail header prefixes
var DefaultHeaderTokens = []string{"subject:", "from:", "to:", "sent:", "cc:"}

// DefaultMessageKeywords are greeting, call-to-action and marketing words
var DefaultMessageKeywords = []string{
	"hi", "hello", "dear", "thanks", "regards", "sincerely",
	"call", "text", "txt", "reply", "stop", "urgent", "free",
	"winner", "click", "offer", "subscription", "customer",
}

// GateRules holds the token sets used by IsValidCommunication
type GateRules struct {
	HeaderTokens      []string
	MessageKeywords   []string
	MinKeywordMatches int
}

// DefaultGateRules returns the built-in header and keyword sets
func DefaultGateRules() GateRules {
	return NewGateRules(DefaultHeaderTokens, DefaultMessageKeywords, DefaultMinKeywordMatches)
}

// NewGateRules lowercases, trims and de-duplicates the token sets. A
// non-positive minimum falls back to DefaultMinKeywordMatches.
func NewGateRules(headers, keywords []string, minKeywordMatches int) GateRules {
	if minKeywordMatches <= 0 {
		minKeywordMatches = DefaultMinKeywordMatches
	}
	return GateRules{
		HeaderTokens:      normalizeTokens(headers),
		MessageKeywords:   normalizeTokens(keywords),
		MinKeywordMatches: minKeywordMatches,
	}
}

func normalizeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// Normalize lowercases text, replaces everything that is not an ASCII letter
// with a space, collapses runs of spaces and trims the result.
func Normalize(text string) NormalizedText {
	lowered := cases.Lower(language.Und).String(text)

	var b strings.Builder
	b.Grow(len(lowered))

	space := false
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
		default:
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}

	return NormalizedText(b.String())
}

// IsValidCommunication reports whether text looks like a message: either a
// header token occurs anywhere in it, or enough distinct message keywords do.
// Matching is by substring, so "regards" also matches inside "disregards".
func IsValidCommunication(text string, rules GateRules) ValidityVerdict {
	lowered := cases.Lower(language.Und).String(text)

	min := rules.MinKeywordMatches
	if min <= 0 {
		min = DefaultMinKeywordMatches
	}

	var verdict ValidityVerdict
	for _, header := range rules.HeaderTokens {
		if header != "" && strings.Contains(lowered, header) {
			verdict.HeaderFound = true
			verdict.MatchedHeaders = append(verdict.MatchedHeaders, header)
		}
	}

	seen := make(map[string]struct{}, len(rules.MessageKeywords))
	for _, keyword := range rules.MessageKeywords {
		if keyword == "" {
			continue
		}
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		if strings.Contains(lowered, keyword) {
			verdict.MatchedKeywords = append(verdict.MatchedKeywords, keyword)
		}
	}
	verdict.KeywordMatches = len(verdict.MatchedKeywords)

	verdict.Valid = verdict.HeaderFound || verdict.KeywordMatches >= min
	return verdict
}
