// Package llm holds the prompt and reply handling shared by the hosted
// language model classifiers.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mikey/mailguard/internal/core"
)

// ErrMalformedReply is returned when a model reply carries no usable verdict
var ErrMalformedReply = errors.New("malformed model reply")

// SystemPrompt is sent as the system role where the API supports one
const SystemPrompt = "You are a spam detection system. Respond only with JSON."

const promptFormat = `You are a spam detection system. Analyze the following message and determine if it's spam.
The message has been lowercased and stripped of punctuation and digits.
Respond with a JSON object containing:
- is_spam: boolean (true if spam, false if not)
- score: number between 0 and 1 (higher means more likely to be spam)
- explanation: string (brief explanation of why you think it's spam or not)

Message:
%s

Respond only with the JSON object and nothing else.`

// Classes is the class order of every Prediction built from a reply
var Classes = []any{core.LabelHam, core.LabelSpam}

// Reply is the structured answer requested from the model
type Reply struct {
	IsSpam      bool     `json:"is_spam"`
	Score       *float64 `json:"score"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Explanation string   `json:"explanation"`
}

// BuildPrompt formats the user prompt for already truncated text
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptFormat, text)
}

// ParseReply decodes a reply, tolerating prose or code fences around the
// JSON object
func ParseReply(text string) (*Reply, error) {
	var reply Reply
	if err := json.Unmarshal([]byte(text), &reply); err == nil {
		return &reply, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedReply, abbreviate(text))
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return &reply, nil
}

// SpamProbability returns the reply's spam score clamped to [0, 1]. A reply
// without a score falls back to its confidence in the verdict.
func (r *Reply) SpamProbability() float64 {
	var p float64
	switch {
	case r.Score != nil:
		p = *r.Score
	case r.Confidence != nil && r.IsSpam:
		p = *r.Confidence
	case r.Confidence != nil:
		p = 1 - *r.Confidence
	case r.IsSpam:
		p = 1
	}
	if math.IsNaN(p) {
		p = 0
	}
	return math.Max(0, math.Min(1, p))
}

// ToPrediction converts a parsed reply into a two-class prediction. The
// label is the more probable class; is_spam only breaks a 0.5 tie.
func ToPrediction(reply *Reply, model string) *core.Prediction {
	spam := reply.SpamProbability()
	label := spam > 0.5 || (spam == 0.5 && reply.IsSpam)
	return &core.Prediction{
		Label:         label,
		Classes:       Classes,
		Probabilities: []float64{1 - spam, spam},
		Model:         model,
	}
}

// ParsePrediction parses a raw reply straight into a prediction
func ParsePrediction(text, model string) (*core.Prediction, error) {
	reply, err := ParseReply(text)
	if err != nil {
		return nil, err
	}
	return ToPrediction(reply, model), nil
}

func abbreviate(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
