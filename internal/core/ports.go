package core

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by a CacheRepository when no live entry exists
var ErrCacheMiss = errors.New("cache entry not found")

// Classifier defines the interface for spam classifiers
type Classifier interface {
	// Predict classifies normalized text
	Predict(ctx context.Context, text NormalizedText) (*Prediction, error)
}

// CacheRepository defines the interface for caching classification verdicts
type CacheRepository interface {
	// Get retrieves a live entry by digest, or ErrCacheMiss
	Get(ctx context.Context, digest string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, digest string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
