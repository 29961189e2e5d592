// Package render draws word frequency visualisations of scanned text.
package render

import (
	"sort"
	"strings"
)

// WordCount is a word and the number of times it occurs
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// DefaultStopWords are common English words left out of word clouds
var DefaultStopWords = NewStopWords(
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an",
	"and", "any", "are", "as", "at", "be", "because", "been", "before", "being",
	"below", "between", "both", "but", "by", "can", "cannot", "com", "could", "did",
	"do", "does", "doing", "down", "during", "each", "else", "ever", "few", "for",
	"from", "further", "get", "had", "has", "have", "having", "he", "hence", "her",
	"here", "hers", "herself", "him", "himself", "his", "how", "however", "http", "i",
	"if", "in", "into", "is", "it", "its", "itself", "just", "k", "like",
	"me", "more", "most", "my", "myself", "no", "nor", "not", "of", "off",
	"on", "once", "only", "or", "other", "otherwise", "ought", "our", "ours", "ourselves",
	"out", "over", "own", "r", "same", "shall", "she", "should", "since", "so",
	"some", "such", "than", "that", "the", "their", "theirs", "them", "themselves", "then",
	"there", "therefore", "these", "they", "this", "those", "through", "to", "too", "under",
	"until", "up", "very", "was", "we", "were", "what", "when", "where", "which",
	"while", "who", "whom", "why", "with", "would", "www", "you", "your", "yours",
	"yourself", "yourselves", "s", "t", "ll", "re", "ve", "d", "m", "don", "won",
)

// NewStopWords builds a stop word set
func NewStopWords(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// Frequencies counts the words of normalized text, skipping stop words and
// single letters. The result is ordered by descending count, then word, and
// holds at most maxWords entries when maxWords > 0.
func Frequencies(text string, stopWords map[string]struct{}, maxWords int) []WordCount {
	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		counts[w]++
	}

	freqs := make([]WordCount, 0, len(counts))
	for w, n := range counts {
		freqs = append(freqs, WordCount{Word: w, Count: n})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].Word < freqs[j].Word
	})

	if maxWords > 0 && len(freqs) > maxWords {
		freqs = freqs[:maxWords]
	}
	return freqs
}
