package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/mailguard/internal/adapters/llm"
	"github.com/mikey/mailguard/internal/core"
	"github.com/mikey/mailguard/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var _ core.Classifier = (*GeminiClient)(nil)

// ContentGenerator is the part of genai.GenerativeModel used by GeminiClient
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiClient is an implementation of the Classifier interface using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         ContentGenerator
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(llm.SystemPrompt)}}

	c := NewGeminiClientWithModel(model, modelName, maxBodySize, logger, textProcessor)
	c.client = client
	return c, nil
}

// NewGeminiClientWithModel wraps an already configured content generator
func NewGeminiClientWithModel(
	model ContentGenerator,
	modelName string,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *GeminiClient {
	return &GeminiClient{
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Predict asks Gemini whether the text is spam
func (c *GeminiClient) Predict(ctx context.Context, text core.NormalizedText) (*core.Prediction, error) {
	prompt := llm.BuildPrompt(c.textProcessor.ProcessText(text.String(), c.maxBodySize))

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	reply := responseText(resp)
	if reply == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	pred, err := llm.ParsePrediction(reply, c.modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Gemini response: %w", err)
	}

	c.logger.Debug("Gemini verdict", zap.String("model", c.modelName))
	return pred, nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
