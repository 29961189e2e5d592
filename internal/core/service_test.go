package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClassifier struct {
	mu    sync.Mutex
	calls []NormalizedText
	pred  *Prediction
	err   error
}

func (f *fakeClassifier) Predict(_ context.Context, text NormalizedText) (*Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.pred, nil
}

type fakeCache struct {
	entries map[string]*CacheEntry
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*CacheEntry)}
}

func (c *fakeCache) Get(_ context.Context, digest string) (*CacheEntry, error) {
	entry, ok := c.entries[digest]
	if !ok {
		return nil, ErrCacheMiss
	}
	return entry, nil
}

func (c *fakeCache) Set(_ context.Context, entry *CacheEntry) error {
	c.sets++
	c.entries[entry.Digest] = entry
	return nil
}

func (c *fakeCache) Delete(_ context.Context, digest string) error {
	delete(c.entries, digest)
	return nil
}

func (c *fakeCache) Cleanup(context.Context) error { return nil }

func spamPrediction() *Prediction {
	return &Prediction{
		Label:         "spam",
		Classes:       []any{"ham", "spam"},
		Probabilities: []float64{0.1, 0.9},
		Model:         "fake",
	}
}

func TestScanRejectsEmptyInput(t *testing.T) {
	classifier := &fakeClassifier{pred: spamPrediction()}
	svc := NewScanService(classifier, nil, zaptest.NewLogger(t), ScanOptions{})

	for _, text := range []string{"", "   ", "\n\t "} {
		report, err := svc.Scan(context.Background(), &Input{Text: text})
		if !errors.Is(err, ErrNoInput) {
			t.Errorf("Scan(%q) error = %v, want ErrNoInput", text, err)
		}
		if report != nil {
			t.Errorf("Scan(%q) returned a report", text)
		}
	}
	if _, err := svc.Scan(context.Background(), nil); !errors.Is(err, ErrNoInput) {
		t.Errorf("Scan(nil) error = %v, want ErrNoInput", err)
	}
	if len(classifier.calls) != 0 {
		t.Errorf("classifier called %d times", len(classifier.calls))
	}
}

func TestScanRejectsIrrelevantDocument(t *testing.T) {
	obsCore, logs := observer.New(zap.InfoLevel)
	classifier := &fakeClassifier{pred: spamPrediction()}
	svc := NewScanService(classifier, nil, zap.New(obsCore), ScanOptions{})

	report, err := svc.Scan(context.Background(), &Input{
		Text:     "The quarterly revenue report shows growth",
		Source:   SourceDocument,
		FileName: "report.pdf",
	})
	if !errors.Is(err, ErrIrrelevantContent) {
		t.Fatalf("expected ErrIrrelevantContent, got %v", err)
	}
	if report == nil || report.Verdict == nil || report.Verdict.Valid {
		t.Fatalf("expected a failed verdict in the report, got %+v", report)
	}
	if report.Result != nil || report.Normalized != "" {
		t.Errorf("rejected text must not be normalized or classified: %+v", report)
	}
	if len(classifier.calls) != 0 {
		t.Errorf("classifier called %d times", len(classifier.calls))
	}
	if logs.FilterMessage("Rejected input that does not look like a message").Len() != 1 {
		t.Errorf("expected one rejection log entry, got %v", logs.All())
	}
}

func TestScanPassesNormalizedTextUnchanged(t *testing.T) {
	classifier := &fakeClassifier{pred: spamPrediction()}
	svc := NewScanService(classifier, nil, zaptest.NewLogger(t), ScanOptions{})

	text := "Subject: WINNER!!\nClick here to claim your FREE prize, call 0800-123."
	report, err := svc.Scan(context.Background(), &Input{Text: text, Source: SourceDocument})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Normalize(text)
	if len(classifier.calls) != 1 || classifier.calls[0] != want {
		t.Fatalf("classifier got %v, want [%q]", classifier.calls, want)
	}
	if report.Normalized != want {
		t.Errorf("report.Normalized = %q, want %q", report.Normalized, want)
	}
	if !report.Verdict.Valid || !report.Verdict.HeaderFound {
		t.Errorf("expected a passing verdict, got %+v", report.Verdict)
	}
	if report.Result.Label != LabelSpam || report.Result.Confidence != 0.9 {
		t.Errorf("unexpected result %+v", report.Result)
	}
}

func TestScanManualTextSkipsGate(t *testing.T) {
	classifier := &fakeClassifier{pred: spamPrediction()}
	svc := NewScanService(classifier, nil, zaptest.NewLogger(t), ScanOptions{})

	report, err := svc.Scan(context.Background(), &Input{Text: "quarterly revenue report"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Verdict != nil {
		t.Errorf("manual text should not be screened by default")
	}
	if report.Source != SourceManual {
		t.Errorf("Source = %q, want manual", report.Source)
	}

	gated := NewScanService(classifier, nil, zaptest.NewLogger(t), ScanOptions{GateManual: true})
	if _, err := gated.Scan(context.Background(), &Input{Text: "quarterly revenue report"}); !errors.Is(err, ErrIrrelevantContent) {
		t.Errorf("expected gate to apply to manual text, got %v", err)
	}
}

func TestScanClassifierErrors(t *testing.T) {
	boom := errors.New("model exploded")
	svc := NewScanService(&fakeClassifier{err: boom}, nil, zaptest.NewLogger(t), ScanOptions{})

	report, err := svc.Scan(context.Background(), &Input{Text: "hello"})
	if !errors.Is(err, boom) || !errors.Is(err, ErrClassifierFailed) {
		t.Fatalf("expected wrapped classifier error, got %v", err)
	}
	if report == nil || report.Normalized != "hello" {
		t.Errorf("expected partial report, got %+v", report)
	}

	svc = NewScanService(&fakeClassifier{pred: &Prediction{Label: "maybe", Probabilities: []float64{1}}},
		nil, zaptest.NewLogger(t), ScanOptions{})
	if _, err := svc.Scan(context.Background(), &Input{Text: "hello"}); !errors.Is(err, ErrUnknownLabel) || !errors.Is(err, ErrClassifierFailed) {
		t.Errorf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestScanUsesCache(t *testing.T) {
	classifier := &fakeClassifier{pred: spamPrediction()}
	cache := newFakeCache()
	svc := NewScanService(classifier, cache, zaptest.NewLogger(t), ScanOptions{
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	})

	first, err := svc.Scan(context.Background(), &Input{Text: "Free entry, text WIN now"})
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if first.Cached {
		t.Errorf("first scan should not be cached")
	}

	second, err := svc.Scan(context.Background(), &Input{Text: "FREE ENTRY!! text win now"})
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if !second.Cached {
		t.Errorf("second scan of the same normalized text should hit the cache")
	}
	if second.Result.Label != LabelSpam || second.Result.Confidence != 0.9 {
		t.Errorf("unexpected cached result %+v", second.Result)
	}
	if len(classifier.calls) != 1 || cache.sets != 1 {
		t.Errorf("classifier calls = %d, cache sets = %d, want 1 and 1", len(classifier.calls), cache.sets)
	}

	entry := cache.entries[Normalize("free entry text win now").Digest()]
	if entry == nil {
		t.Fatalf("cache entry not stored under the normalized digest")
	}
	if entry.ExpiresAt.Sub(entry.StoredAt) != time.Hour {
		t.Errorf("entry TTL = %v, want 1h", entry.ExpiresAt.Sub(entry.StoredAt))
	}
}

func TestScanDelayHonoursContext(t *testing.T) {
	svc := NewScanService(&fakeClassifier{pred: spamPrediction()}, nil, zaptest.NewLogger(t), ScanOptions{
		Delay: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Scan(ctx, &Input{Text: "hello"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScreen(t *testing.T) {
	svc := NewScanService(&fakeClassifier{}, nil, zaptest.NewLogger(t), ScanOptions{})
	if !svc.Screen("Subject: hello").Valid {
		t.Errorf("expected default rules to accept a subject header")
	}
	if svc.Screen("nothing to see").Valid {
		t.Errorf("expected default rules to reject plain prose")
	}
}

func TestScanCacheScopedToClassifier(t *testing.T) {
	cache := newFakeCache()
	text := "Free entry, text WIN now"

	oldModel := &fakeClassifier{pred: spamPrediction()}
	svc := NewScanService(oldModel, cache, zaptest.NewLogger(t), ScanOptions{
		CacheEnabled:   true,
		CacheTTL:       time.Hour,
		CacheNamespace: "local:aaaa",
	})
	if _, err := svc.Scan(context.Background(), &Input{Text: text}); err != nil {
		t.Fatalf("scan with the old model: %v", err)
	}

	newModel := &fakeClassifier{pred: &Prediction{
		Label:         "ham",
		Classes:       []any{"ham", "spam"},
		Probabilities: []float64{0.7, 0.3},
		Model:         "retrained",
	}}
	svc = NewScanService(newModel, cache, zaptest.NewLogger(t), ScanOptions{
		CacheEnabled:   true,
		CacheTTL:       time.Hour,
		CacheNamespace: "local:bbbb",
	})
	report, err := svc.Scan(context.Background(), &Input{Text: text})
	if err != nil {
		t.Fatalf("scan with the new model: %v", err)
	}
	if report.Cached || len(newModel.calls) != 1 {
		t.Fatalf("cached = %v, calls = %d; want a fresh classification", report.Cached, len(newModel.calls))
	}
	if report.Result.Label != LabelHam {
		t.Errorf("label = %v, want ham from the new model", report.Result.Label)
	}
	if len(cache.entries) != 2 {
		t.Errorf("cache holds %d entries, want one per classifier", len(cache.entries))
	}
}

func TestDigestIn(t *testing.T) {
	text := Normalize("hello there")
	if text.DigestIn("") != text.Digest() {
		t.Error("an empty namespace should give the plain digest")
	}
	if text.DigestIn("openai:gpt-4o-mini") == text.DigestIn("gemini:gemini-1.5-flash") {
		t.Error("namespaces should give distinct keys")
	}
	if text.DigestIn("local:x") != text.DigestIn("local:x") {
		t.Error("keys should be deterministic")
	}
}
