package core

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Source identifies where the text of a scan request came from
type Source string

const (
	// SourceManual is text typed or pasted by the user
	SourceManual Source = "manual"
	// SourceDocument is text extracted from an uploaded document
	SourceDocument Source = "document"
)

// Input is the raw text of a single scan request
type Input struct {
	Text     string
	Source   Source
	FileName string
}

// NormalizedText is text that went through Normalize. It only contains
// lowercase ASCII letters separated by single spaces.
type NormalizedText string

// String returns the text as a plain string
func (t NormalizedText) String() string {
	return string(t)
}

// Digest returns the hex encoded SHA-256 of the text
func (t NormalizedText) Digest() string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}

// DigestIn returns the cache key of the text within a namespace, usually the
// identity of the classifier. An empty namespace gives Digest.
func (t NormalizedText) DigestIn(namespace string) string {
	if namespace == "" {
		return t.Digest()
	}
	sum := sha256.Sum256([]byte(namespace + "\x00" + string(t)))
	return hex.EncodeToString(sum[:])
}

// ValidityVerdict is the outcome of the message validity gate
type ValidityVerdict struct {
	Valid           bool     `json:"valid"`
	HeaderFound     bool     `json:"header_found"`
	MatchedHeaders  []string `json:"matched_headers,omitempty"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	KeywordMatches  int      `json:"keyword_matches"`
}

// Prediction is the raw output of a classifier. Label is whatever the model
// uses for its classes (a string such as "spam" or a numeric code such as 1).
// Probabilities is aligned with Classes when Classes is set.
type Prediction struct {
	Label         any
	Classes       []any
	Probabilities []float64
	Model         string
}

// ClassificationResult is a prediction translated into MailGuard terms
type ClassificationResult struct {
	Label         Label             `json:"label"`
	Confidence    float64           `json:"confidence"`
	Probabilities map[Label]float64 `json:"probabilities,omitempty"`
	ModelUsed     string            `json:"model"`
	ClassifiedAt  time.Time         `json:"classified_at"`
}

// ConfidencePercent returns the confidence on a 0-100 scale
func (r *ClassificationResult) ConfidencePercent() float64 {
	return r.Confidence * 100
}

// ScanReport is everything a frontend needs to render a scan
type ScanReport struct {
	Source     Source                `json:"source"`
	FileName   string                `json:"file_name,omitempty"`
	Verdict    *ValidityVerdict      `json:"verdict,omitempty"`
	Normalized NormalizedText        `json:"normalized_text,omitempty"`
	Result     *ClassificationResult `json:"result,omitempty"`
	Cached     bool                  `json:"cached"`
}

// CacheEntry is a stored verdict. Only the digest of the normalized text is
// kept, never the text itself.
type CacheEntry struct {
	Digest     string
	Label      Label
	Confidence float64
	ModelUsed  string
	StoredAt   time.Time
	ExpiresAt  time.Time
}
