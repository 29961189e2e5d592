package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoInput is returned when the submitted text is empty or whitespace
	ErrNoInput = errors.New("no input provided")
	// ErrIrrelevantContent is returned when a document fails the validity gate
	ErrIrrelevantContent = errors.New("content does not look like a message")
	// ErrClassifierFailed wraps any failure to obtain or interpret a prediction
	ErrClassifierFailed = errors.New("classifier failed")
)

// ScanOptions configures a ScanService
type ScanOptions struct {
	Rules        GateRules
	GateManual   bool
	CacheEnabled bool
	CacheTTL     time.Duration

	// CacheNamespace identifies the classifier so verdicts of another
	// provider or model revision are not served from a persistent cache
	CacheNamespace string

	Delay time.Duration
}

// ScanService is the core service for spam scanning
type ScanService struct {
	classifier Classifier
	cache      CacheRepository
	logger     *zap.Logger
	opts       ScanOptions
}

// NewScanService creates a new scan service. cache may be nil.
func NewScanService(
	classifier Classifier,
	cache CacheRepository,
	logger *zap.Logger,
	opts ScanOptions,
) *ScanService {
	if len(opts.Rules.HeaderTokens) == 0 && len(opts.Rules.MessageKeywords) == 0 {
		opts.Rules = DefaultGateRules()
	}
	if cache == nil {
		opts.CacheEnabled = false
	}
	return &ScanService{
		classifier: classifier,
		cache:      cache,
		logger:     logger,
		opts:       opts,
	}
}

// Screen runs the validity gate on raw text
func (s *ScanService) Screen(text string) ValidityVerdict {
	return IsValidCommunication(text, s.opts.Rules)
}

// Scan runs one request through gate, normalization and classification.
// When the gate rejects the input the partial report is returned together
// with ErrIrrelevantContent.
func (s *ScanService) Scan(ctx context.Context, in *Input) (*ScanReport, error) {
	if in == nil || strings.TrimSpace(in.Text) == "" {
		return nil, ErrNoInput
	}

	source := in.Source
	if source == "" {
		source = SourceManual
	}
	report := &ScanReport{Source: source, FileName: in.FileName}

	if source == SourceDocument || s.opts.GateManual {
		verdict := s.Screen(in.Text)
		report.Verdict = &verdict
		if !verdict.Valid {
			s.logger.Info("Rejected input that does not look like a message",
				zap.String("source", string(source)),
				zap.String("file", in.FileName),
				zap.Int("keyword_matches", verdict.KeywordMatches))
			return report, ErrIrrelevantContent
		}
	}

	normalized := Normalize(in.Text)
	report.Normalized = normalized

	if result, ok := s.lookup(ctx, normalized); ok {
		report.Result = result
		report.Cached = true
		return report, nil
	}

	pred, err := s.classifier.Predict(ctx, normalized)
	if err != nil {
		return report, fmt.Errorf("%w: failed to classify text: %w", ErrClassifierFailed, err)
	}

	result, err := NewClassificationResult(pred)
	if err != nil {
		return report, fmt.Errorf("%w: failed to interpret classifier output: %w", ErrClassifierFailed, err)
	}
	report.Result = result

	s.store(ctx, normalized, result)

	if err := s.pause(ctx); err != nil {
		return report, err
	}

	s.logger.Info("Scanned text",
		zap.String("source", string(source)),
		zap.String("label", result.Label.String()),
		zap.Float64("confidence", result.Confidence),
		zap.String("model", result.ModelUsed))

	return report, nil
}

// lookup returns a cached verdict for the text if caching is enabled
func (s *ScanService) lookup(ctx context.Context, text NormalizedText) (*ClassificationResult, bool) {
	if !s.opts.CacheEnabled {
		return nil, false
	}

	entry, err := s.cache.Get(ctx, text.DigestIn(s.opts.CacheNamespace))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("Failed to read verdict cache", zap.Error(err))
		}
		return nil, false
	}

	s.logger.Debug("Cache hit", zap.String("digest", entry.Digest))
	return &ClassificationResult{
		Label:        entry.Label,
		Confidence:   entry.Confidence,
		ModelUsed:    entry.ModelUsed,
		ClassifiedAt: entry.StoredAt,
	}, true
}

// store saves a verdict; failures are logged and never fail the scan
func (s *ScanService) store(ctx context.Context, text NormalizedText, result *ClassificationResult) {
	if !s.opts.CacheEnabled {
		return
	}

	now := time.Now()
	entry := &CacheEntry{
		Digest:     text.DigestIn(s.opts.CacheNamespace),
		Label:      result.Label,
		Confidence: result.Confidence,
		ModelUsed:  result.ModelUsed,
		StoredAt:   now,
		ExpiresAt:  now.Add(s.opts.CacheTTL),
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Error("Failed to update verdict cache", zap.Error(err))
	}
}

// pause waits for the configured presentation delay
func (s *ScanService) pause(ctx context.Context) error {
	if s.opts.Delay <= 0 {
		return nil
	}

	timer := time.NewTimer(s.opts.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
