package factory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mikey/mailguard/internal/adapters/cache"
	"github.com/mikey/mailguard/internal/adapters/frontend"
	"github.com/mikey/mailguard/internal/adapters/localmodel"
	"github.com/mikey/mailguard/internal/config"
	"github.com/mikey/mailguard/internal/core"
	"github.com/mikey/mailguard/internal/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const (
	testVectorizer = `{"kind": "count", "vocabulary": {"free": 0, "lunch": 1}}`
	testClassifier = `{
		"kind": "multinomial_nb",
		"classes": ["ham", "spam"],
		"class_log_prior": [-0.6931, -0.6931],
		"feature_log_prob": [[-2.3, -0.1], [-0.1, -2.3]]
	}`
)

func newTestConfig(t *testing.T, settings map[string]any) *config.Config {
	t.Helper()
	v := config.NewEmptyViper()
	for k, val := range settings {
		v.Set(k, val)
	}
	return config.NewFromViper(v)
}

func writeModel(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	vec := filepath.Join(dir, "vectorizer.json")
	clf := filepath.Join(dir, "spam_model.json")
	if err := os.WriteFile(vec, []byte(testVectorizer), 0o600); err != nil {
		t.Fatalf("write vectorizer: %v", err)
	}
	if err := os.WriteFile(clf, []byte(testClassifier), 0o600); err != nil {
		t.Fatalf("write classifier: %v", err)
	}
	return vec, clf
}

func TestCreateClassifierLocal(t *testing.T) {
	vec, clf := writeModel(t)
	cfg := newTestConfig(t, map[string]any{
		"model.vectorizer_path": vec,
		"model.classifier_path": clf,
	})
	logger := zaptest.NewLogger(t)

	classifier, err := NewClassifierFactory(cfg, logger, utils.NewTextProcessor(logger)).CreateClassifier(context.Background())
	if err != nil {
		t.Fatalf("CreateClassifier: %v", err)
	}
	pipeline, ok := classifier.(*localmodel.Pipeline)
	if !ok {
		t.Fatalf("expected a local pipeline, got %T", classifier)
	}
	if pipeline.Name() != "local:spam_model" {
		t.Errorf("name = %q", pipeline.Name())
	}

	pred, err := pipeline.Predict(context.Background(), core.Normalize("FREE FREE"))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Label != "spam" {
		t.Errorf("label = %v, want spam", pred.Label)
	}
}

func TestCreateClassifierErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
	}{
		{"missing model", map[string]any{"model.vectorizer_path": filepath.Join(t.TempDir(), "nope.json")}},
		{"openai without key", map[string]any{"classifier.provider": ProviderOpenAI}},
		{"gemini without key", map[string]any{"classifier.provider": ProviderGemini}},
		{"unknown provider", map[string]any{"classifier.provider": "oracle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zaptest.NewLogger(t)
			f := NewClassifierFactory(newTestConfig(t, tt.settings), logger, utils.NewTextProcessor(logger))
			if _, err := f.CreateClassifier(context.Background()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCreateClassifierOpenAI(t *testing.T) {
	cfg := newTestConfig(t, map[string]any{
		"classifier.provider": ProviderOpenAI,
		"openai.api_key":      "sk-test",
		"openai.base_url":     "http://127.0.0.1:1/v1",
	})
	logger := zaptest.NewLogger(t)

	classifier, err := NewClassifierFactory(cfg, logger, utils.NewTextProcessor(logger)).CreateClassifier(context.Background())
	if err != nil || classifier == nil {
		t.Fatalf("CreateClassifier: %v", err)
	}
}

func TestCreateCacheRepository(t *testing.T) {
	ctx := context.Background()

	disabled := NewCacheFactory(newTestConfig(t, nil), zaptest.NewLogger(t))
	repo, err := disabled.CreateCacheRepository(ctx)
	if err != nil || repo != nil {
		t.Fatalf("disabled cache = %v, %v; want nil, nil", repo, err)
	}

	memory := NewCacheFactory(newTestConfig(t, map[string]any{
		"cache.enabled":           true,
		"cache.cleanup_frequency": "0s",
	}), zap.NewNop())
	repo, err = memory.CreateCacheRepository(ctx)
	if err != nil {
		t.Fatalf("memory cache: %v", err)
	}
	mc, ok := repo.(*cache.MemoryCache)
	if !ok {
		t.Fatalf("expected *cache.MemoryCache, got %T", repo)
	}
	mc.Stop()

	unknown := NewCacheFactory(newTestConfig(t, map[string]any{
		"cache.enabled": true,
		"cache.type":    "memcached",
	}), zaptest.NewLogger(t))
	if _, err := unknown.CreateCacheRepository(ctx); err == nil {
		t.Error("expected an error for an unknown cache type")
	}
}

func TestCreateCacheRepositorySQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	f := NewCacheFactory(newTestConfig(t, map[string]any{
		"cache.enabled":           true,
		"cache.type":              "sqlite",
		"cache.sqlite_path":       path,
		"cache.cleanup_frequency": "0s",
	}), zap.NewNop())

	repo, err := f.CreateCacheRepository(context.Background())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer repo.(*cache.SQLiteCache).Stop()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("expected the cache directory to be created: %v", err)
	}
}

func TestCreateScanOptions(t *testing.T) {
	cfg := newTestConfig(t, map[string]any{
		"gate.header_tokens":       []string{" Subject: ", "FROM:"},
		"gate.message_keywords":    []string{"prize", "prize", "claim"},
		"gate.min_keyword_matches": 2,
		"gate.apply_to_manual":     true,
		"cache.enabled":            true,
		"cache.ttl":                "30m",
		"scan.delay":               "1200ms",
	})

	opts, err := NewPipelineFactory(cfg, zaptest.NewLogger(t)).CreateScanOptions()
	if err != nil {
		t.Fatalf("CreateScanOptions: %v", err)
	}

	want := core.NewGateRules([]string{"subject:", "from:"}, []string{"prize", "claim"}, 2)
	if len(opts.Rules.HeaderTokens) != len(want.HeaderTokens) || opts.Rules.HeaderTokens[0] != "subject:" {
		t.Errorf("header tokens = %v", opts.Rules.HeaderTokens)
	}
	if len(opts.Rules.MessageKeywords) != 2 || opts.Rules.MinKeywordMatches != 2 {
		t.Errorf("keyword rules = %+v", opts.Rules)
	}
	if !opts.GateManual || !opts.CacheEnabled || opts.CacheTTL != 30*time.Minute || opts.Delay != 1200*time.Millisecond {
		t.Errorf("unexpected options %+v", opts)
	}

	bad := newTestConfig(t, map[string]any{"scan.delay": "soon"})
	if _, err := NewPipelineFactory(bad, zaptest.NewLogger(t)).CreateScanOptions(); err == nil {
		t.Error("expected an error for an invalid delay")
	}
}

func TestCreateRenderer(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
	}{
		{"disabled", map[string]any{"wordcloud.enabled": false}},
		{"missing font", map[string]any{"wordcloud.font_path": filepath.Join(t.TempDir(), "none.ttf")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewPipelineFactory(newTestConfig(t, tt.settings), zaptest.NewLogger(t)).CreateRenderer()
			if err != nil || r != nil {
				t.Errorf("CreateRenderer = %v, %v; want nil, nil", r, err)
			}
		})
	}
}

func TestCreateFrontend(t *testing.T) {
	tests := []struct {
		frontend string
		check    func(t *testing.T, v any)
		wantErr  bool
	}{
		{"web", func(t *testing.T, v any) {
			if _, ok := v.(*frontend.WebFrontend); !ok {
				t.Errorf("expected *frontend.WebFrontend, got %T", v)
			}
		}, false},
		{"cli", func(t *testing.T, v any) {
			if _, ok := v.(*frontend.CliFrontend); !ok {
				t.Errorf("expected *frontend.CliFrontend, got %T", v)
			}
		}, false},
		{"milter", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.frontend, func(t *testing.T) {
			logger := zaptest.NewLogger(t)
			cfg := newTestConfig(t, map[string]any{"server.frontend": tt.frontend})

			pf := NewPipelineFactory(cfg, logger)
			extractor, err := pf.CreateExtractor(pf.CreateTextProcessor())
			if err != nil {
				t.Fatalf("CreateExtractor: %v", err)
			}
			svc := core.NewScanService(nil, nil, logger, core.ScanOptions{})
			analyzer := pf.CreateAnalyzer(svc, extractor, nil)

			fe, err := NewFrontendFactory(cfg, logger, analyzer).CreateFrontend()
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateFrontend: %v", err)
			}
			tt.check(t, fe)
		})
	}
}

func TestCreateScanOptionsCacheNamespace(t *testing.T) {
	vec, clf := writeModel(t)
	namespace := func(settings map[string]any) string {
		t.Helper()
		opts, err := NewPipelineFactory(newTestConfig(t, settings), zaptest.NewLogger(t)).CreateScanOptions()
		if err != nil {
			t.Fatalf("CreateScanOptions: %v", err)
		}
		return opts.CacheNamespace
	}

	local := map[string]any{"model.vectorizer_path": vec, "model.classifier_path": clf}
	before := namespace(local)
	if before != namespace(local) {
		t.Error("namespace should be stable for unchanged artifacts")
	}

	retrained := strings.Replace(testClassifier, "-0.6931, -0.6931", "-0.5108, -0.9163", 1)
	if err := os.WriteFile(clf, []byte(retrained), 0o600); err != nil {
		t.Fatalf("rewrite classifier: %v", err)
	}
	if after := namespace(local); after == before {
		t.Error("retrained artifacts should change the namespace")
	}

	openaiMini := namespace(map[string]any{"classifier.provider": ProviderOpenAI, "openai.model_name": "gpt-4o-mini"})
	openaiFull := namespace(map[string]any{"classifier.provider": ProviderOpenAI, "openai.model_name": "gpt-4o"})
	gemini := namespace(map[string]any{"classifier.provider": ProviderGemini})
	if openaiMini == openaiFull || openaiMini == gemini || openaiMini == before {
		t.Errorf("namespaces should differ per provider and model: %q %q %q", openaiMini, openaiFull, gemini)
	}
}
