package localmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
)

// DefaultTokenPattern matches words of two or more word characters
const DefaultTokenPattern = `(?u)\b\w\w+\b`

// Vectorizer kinds
const (
	KindCount = "count"
	KindTFIDF = "tfidf"
)

// ErrInvalidArtifact is returned when a model artifact is malformed
var ErrInvalidArtifact = errors.New("invalid model artifact")

// VectorizerArtifact is the on-disk form of a fitted text vectorizer
type VectorizerArtifact struct {
	Kind         string         `json:"kind"`
	Vocabulary   map[string]int `json:"vocabulary"`
	TokenPattern string         `json:"token_pattern,omitempty"`
	NgramRange   []int          `json:"ngram_range,omitempty"`
	StopWords    []string       `json:"stop_words,omitempty"`
	Binary       bool           `json:"binary,omitempty"`
	Lowercase    *bool          `json:"lowercase,omitempty"`
	IDF          []float64      `json:"idf,omitempty"`
	Norm         string         `json:"norm,omitempty"`
	SublinearTF  bool           `json:"sublinear_tf,omitempty"`
}

// SparseVector is a feature vector holding only its non-zero entries.
// Indices are sorted ascending.
type SparseVector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// Dot returns the dot product with a dense weight row
func (v SparseVector) Dot(weights []float64) float64 {
	var sum float64
	for i, idx := range v.Indices {
		sum += v.Values[i] * weights[idx]
	}
	return sum
}

// Vectorizer turns text into term-count or tf-idf feature vectors
type Vectorizer struct {
	kind        string
	vocabulary  map[string]int
	tokenizer   *regexp.Regexp
	minN, maxN  int
	stopWords   map[string]struct{}
	binary      bool
	lowercase   bool
	idf         []float64
	norm        string
	sublinearTF bool
}

// LoadVectorizer reads a vectorizer artifact from a JSON file
func LoadVectorizer(path string) (*Vectorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vectorizer artifact: %w", err)
	}

	var artifact VectorizerArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse vectorizer artifact %s: %w", path, err)
	}

	v, err := NewVectorizer(artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to load vectorizer %s: %w", path, err)
	}
	return v, nil
}

// NewVectorizer validates an artifact and builds a Vectorizer from it
func NewVectorizer(a VectorizerArtifact) (*Vectorizer, error) {
	kind := strings.ToLower(a.Kind)
	if kind == "" {
		kind = KindCount
	}
	if kind != KindCount && kind != KindTFIDF {
		return nil, fmt.Errorf("%w: unknown vectorizer kind %q", ErrInvalidArtifact, a.Kind)
	}

	n := len(a.Vocabulary)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", ErrInvalidArtifact)
	}
	seen := make([]bool, n)
	for term, col := range a.Vocabulary {
		if col < 0 || col >= n {
			return nil, fmt.Errorf("%w: column %d of %q outside [0, %d)", ErrInvalidArtifact, col, term, n)
		}
		if seen[col] {
			return nil, fmt.Errorf("%w: column %d assigned twice", ErrInvalidArtifact, col)
		}
		seen[col] = true
	}

	pattern := a.TokenPattern
	if pattern == "" {
		pattern = DefaultTokenPattern
	}
	// RE2 has no (?u) flag, \w is always ASCII which matches normalized text
	pattern = strings.ReplaceAll(pattern, "(?u)", "")
	tokenizer, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad token pattern: %v", ErrInvalidArtifact, err)
	}

	minN, maxN := 1, 1
	switch len(a.NgramRange) {
	case 0:
	case 2:
		minN, maxN = a.NgramRange[0], a.NgramRange[1]
	default:
		return nil, fmt.Errorf("%w: ngram_range needs two values", ErrInvalidArtifact)
	}
	if minN < 1 || maxN < minN {
		return nil, fmt.Errorf("%w: bad ngram_range [%d, %d]", ErrInvalidArtifact, minN, maxN)
	}

	v := &Vectorizer{
		kind:        kind,
		vocabulary:  a.Vocabulary,
		tokenizer:   tokenizer,
		minN:        minN,
		maxN:        maxN,
		stopWords:   make(map[string]struct{}, len(a.StopWords)),
		binary:      a.Binary,
		lowercase:   a.Lowercase == nil || *a.Lowercase,
		sublinearTF: a.SublinearTF,
	}
	for _, w := range a.StopWords {
		v.stopWords[w] = struct{}{}
	}

	if kind == KindTFIDF {
		if len(a.IDF) != n {
			return nil, fmt.Errorf("%w: idf has %d weights for %d terms", ErrInvalidArtifact, len(a.IDF), n)
		}
		v.idf = a.IDF
		v.norm = strings.ToLower(a.Norm)
		switch v.norm {
		case "l1", "l2", "none":
		case "":
			v.norm = "l2"
		default:
			return nil, fmt.Errorf("%w: unknown norm %q", ErrInvalidArtifact, a.Norm)
		}
	}

	return v, nil
}

// NFeatures returns the length of the vectors produced by Transform
func (v *Vectorizer) NFeatures() int {
	return len(v.vocabulary)
}

// Tokens splits text into the terms looked up in the vocabulary
func (v *Vectorizer) Tokens(text string) []string {
	if v.lowercase {
		text = strings.ToLower(text)
	}

	words := v.tokenizer.FindAllString(text, -1)
	if len(v.stopWords) > 0 {
		kept := words[:0]
		for _, w := range words {
			if _, stop := v.stopWords[w]; !stop {
				kept = append(kept, w)
			}
		}
		words = kept
	}

	if v.minN == 1 && v.maxN == 1 {
		return words
	}

	var terms []string
	for n := v.minN; n <= v.maxN; n++ {
		for i := 0; i+n <= len(words); i++ {
			terms = append(terms, strings.Join(words[i:i+n], " "))
		}
	}
	return terms
}

// Transform maps text onto the fitted vocabulary. Terms outside the
// vocabulary are ignored.
func (v *Vectorizer) Transform(text string) SparseVector {
	counts := make(map[int]float64)
	for _, term := range v.Tokens(text) {
		if col, ok := v.vocabulary[term]; ok {
			counts[col]++
		}
	}

	vec := SparseVector{
		Dim:     len(v.vocabulary),
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for col := range counts {
		vec.Indices = append(vec.Indices, col)
	}
	sort.Ints(vec.Indices)

	for _, col := range vec.Indices {
		value := counts[col]
		switch {
		case v.binary:
			value = 1
		case v.kind == KindTFIDF && v.sublinearTF:
			value = 1 + math.Log(value)
		}
		if v.kind == KindTFIDF {
			value *= v.idf[col]
		}
		vec.Values = append(vec.Values, value)
	}

	if v.kind == KindTFIDF {
		normalize(vec.Values, v.norm)
	}
	return vec
}

func normalize(values []float64, norm string) {
	var total float64
	switch norm {
	case "l2":
		for _, x := range values {
			total += x * x
		}
		total = math.Sqrt(total)
	case "l1":
		for _, x := range values {
			total += math.Abs(x)
		}
	default:
		return
	}
	if total == 0 {
		return
	}
	for i := range values {
		values[i] /= total
	}
}
