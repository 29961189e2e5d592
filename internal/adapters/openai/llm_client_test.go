package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mikey/mailguard/internal/config"
	"github.com/mikey/mailguard/internal/core"
	"github.com/mikey/mailguard/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, content string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-test",
			Model: "gpt-test",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, maxBodySize int) *OpenAIClient {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = baseURL + "/v1"
	logger := zaptest.NewLogger(t)
	return NewOpenAIClient(openai.NewClientWithConfig(cfg), "gpt-test", 100, 0.1, 0.9, maxBodySize, logger, utils.NewTextProcessor(logger))
}

func TestPredict(t *testing.T) {
	var seen openai.ChatCompletionRequest
	srv := newTestServer(t, `{"is_spam": true, "score": 0.95, "explanation": "prize"}`, &seen)
	client := newTestClient(t, srv.URL, 0)

	pred, err := client.Predict(context.Background(), core.Normalize("WINNER! Claim your FREE prize now"))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	result, err := core.NewClassificationResult(pred)
	if err != nil {
		t.Fatalf("NewClassificationResult: %v", err)
	}
	if result.Label != core.LabelSpam || result.Confidence != 0.95 || result.ModelUsed != "gpt-test" {
		t.Errorf("unexpected result %+v", result)
	}

	if seen.Model != "gpt-test" || len(seen.Messages) != 2 {
		t.Fatalf("unexpected request %+v", seen)
	}
	if !strings.Contains(seen.Messages[1].Content, "winner claim your free prize now") {
		t.Errorf("prompt does not carry normalized text: %q", seen.Messages[1].Content)
	}
	if seen.ResponseFormat == nil || seen.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Errorf("response format = %+v", seen.ResponseFormat)
	}
}

func TestPredictTruncatesBody(t *testing.T) {
	var seen openai.ChatCompletionRequest
	srv := newTestServer(t, `{"is_spam": false, "score": 0.1}`, &seen)
	client := newTestClient(t, srv.URL, 10)

	if _, err := client.Predict(context.Background(), core.NormalizedText(strings.Repeat("hello ", 50))); err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !strings.Contains(seen.Messages[1].Content, utils.TruncationMarker) {
		t.Error("expected the prompt to be truncated")
	}
}

func TestPredictMalformedReply(t *testing.T) {
	var seen openai.ChatCompletionRequest
	srv := newTestServer(t, "I cannot tell", &seen)
	client := newTestClient(t, srv.URL, 0)

	if _, err := client.Predict(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error for a reply without JSON")
	}
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	if _, err := NewFactory(cfg, zaptest.NewLogger(t), utils.NewTextProcessor(nil)).CreateClassifier(); err == nil {
		t.Fatal("expected an error without an API key")
	}
}
