package openai

import (
	"context"
	"fmt"

	"github.com/mikey/mailguard/internal/adapters/llm"
	"github.com/mikey/mailguard/internal/core"
	"github.com/mikey/mailguard/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var _ core.Classifier = (*OpenAIClient)(nil)

// OpenAIClient is an implementation of the Classifier interface using OpenAI
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Predict asks the chat model whether the text is spam
func (c *OpenAIClient) Predict(ctx context.Context, text core.NormalizedText) (*core.Prediction, error) {
	prompt := llm.BuildPrompt(c.textProcessor.ProcessText(text.String(), c.maxBodySize))

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: llm.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	pred, err := llm.ParsePrediction(resp.Choices[0].Message.Content, c.modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAI response: %w", err)
	}

	c.logger.Debug("OpenAI verdict",
		zap.String("completion_id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return pred, nil
}
