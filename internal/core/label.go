package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrUnknownLabel is returned when a classifier label is neither spam nor ham
	ErrUnknownLabel = errors.New("unknown classifier label")
	// ErrInvalidPrediction is returned when a probability distribution is unusable
	ErrInvalidPrediction = errors.New("invalid classifier prediction")
)

// Label is the tagged outcome of a classification
type Label int

const (
	// LabelHam is legitimate correspondence
	LabelHam Label = iota
	// LabelSpam is unwanted solicitation
	LabelSpam
)

// String returns "spam" or "ham"
func (l Label) String() string {
	if l == LabelSpam {
		return "spam"
	}
	return "ham"
}

// IsSpam reports whether the label is spam
func (l Label) IsSpam() bool {
	return l == LabelSpam
}

// MarshalText implements encoding.TextMarshaler
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ResolveLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ResolveLabel translates a classifier's raw label into a Label. Models
// trained on text labels report "spam"/"ham", models trained on encoded
// targets report 1/0; both forms are accepted here and nowhere else.
func ResolveLabel(raw any) (Label, error) {
	switch v := raw.(type) {
	case Label:
		return v, nil
	case string:
		return resolveLabelString(v)
	case bool:
		if v {
			return LabelSpam, nil
		}
		return LabelHam, nil
	case json.Number:
		return resolveLabelString(v.String())
	case int:
		return resolveLabelCode(float64(v), raw)
	case int8:
		return resolveLabelCode(float64(v), raw)
	case int16:
		return resolveLabelCode(float64(v), raw)
	case int32:
		return resolveLabelCode(float64(v), raw)
	case int64:
		return resolveLabelCode(float64(v), raw)
	case uint:
		return resolveLabelCode(float64(v), raw)
	case uint8:
		return resolveLabelCode(float64(v), raw)
	case uint16:
		return resolveLabelCode(float64(v), raw)
	case uint32:
		return resolveLabelCode(float64(v), raw)
	case uint64:
		return resolveLabelCode(float64(v), raw)
	case float32:
		return resolveLabelCode(float64(v), raw)
	case float64:
		return resolveLabelCode(v, raw)
	default:
		return LabelHam, fmt.Errorf("%w: %v (%T)", ErrUnknownLabel, raw, raw)
	}
}

func resolveLabelString(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spam", "1", "1.0", "true":
		return LabelSpam, nil
	case "ham", "0", "0.0", "false":
		return LabelHam, nil
	}
	return LabelHam, fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

func resolveLabelCode(code float64, raw any) (Label, error) {
	switch code {
	case 1:
		return LabelSpam, nil
	case 0:
		return LabelHam, nil
	}
	return LabelHam, fmt.Errorf("%w: %v (%T)", ErrUnknownLabel, raw, raw)
}

// NewClassificationResult resolves the prediction label and reports the
// largest class probability as the confidence.
func NewClassificationResult(pred *Prediction) (*ClassificationResult, error) {
	if pred == nil {
		return nil, fmt.Errorf("%w: no prediction", ErrInvalidPrediction)
	}

	label, err := ResolveLabel(pred.Label)
	if err != nil {
		return nil, err
	}

	if len(pred.Probabilities) == 0 {
		return nil, fmt.Errorf("%w: empty probability distribution", ErrInvalidPrediction)
	}
	if len(pred.Classes) > 0 && len(pred.Classes) != len(pred.Probabilities) {
		return nil, fmt.Errorf("%w: %d classes but %d probabilities",
			ErrInvalidPrediction, len(pred.Classes), len(pred.Probabilities))
	}

	confidence := 0.0
	for _, p := range pred.Probabilities {
		if math.IsNaN(p) || p < 0 || p > 1+1e-9 {
			return nil, fmt.Errorf("%w: probability %v out of range", ErrInvalidPrediction, p)
		}
		if p > confidence {
			confidence = p
		}
	}

	result := &ClassificationResult{
		Label:        label,
		Confidence:   math.Min(confidence, 1),
		ModelUsed:    pred.Model,
		ClassifiedAt: time.Now(),
	}

	if len(pred.Classes) > 0 {
		result.Probabilities = make(map[Label]float64, len(pred.Classes))
		for i, class := range pred.Classes {
			if l, err := ResolveLabel(class); err == nil {
				result.Probabilities[l] += pred.Probabilities[i]
			}
		}
	}

	return result, nil
}
