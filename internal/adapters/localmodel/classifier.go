package localmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// Classifier kinds
const (
	KindMultinomialNB      = "multinomial_nb"
	KindLogisticRegression = "logistic_regression"
)

// ClassifierArtifact is the on-disk form of a fitted linear classifier
type ClassifierArtifact struct {
	Kind    string `json:"kind"`
	Classes []any  `json:"classes"`

	// Multinomial naive Bayes
	ClassLogPrior  []float64   `json:"class_log_prior,omitempty"`
	FeatureLogProb [][]float64 `json:"feature_log_prob,omitempty"`

	// Logistic regression
	Coef      [][]float64 `json:"coef,omitempty"`
	Intercept []float64   `json:"intercept,omitempty"`
}

// Model is a fitted classifier over SparseVector features
type Model struct {
	kind      string
	classes   []any
	weights   [][]float64
	bias      []float64
	nFeatures int
}

// LoadModel reads a classifier artifact from a JSON file
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier artifact: %w", err)
	}

	// Keep numeric class codes as json.Number so 1 and 1.0 both survive
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var artifact ClassifierArtifact
	if err := dec.Decode(&artifact); err != nil {
		return nil, fmt.Errorf("failed to parse classifier artifact %s: %w", path, err)
	}

	m, err := NewModel(artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier %s: %w", path, err)
	}
	return m, nil
}

// NewModel validates an artifact and builds a Model from it
func NewModel(a ClassifierArtifact) (*Model, error) {
	k := len(a.Classes)
	if k < 2 {
		return nil, fmt.Errorf("%w: need at least two classes, got %d", ErrInvalidArtifact, k)
	}

	m := &Model{kind: strings.ToLower(a.Kind), classes: a.Classes}

	switch m.kind {
	case KindMultinomialNB:
		if len(a.ClassLogPrior) != k || len(a.FeatureLogProb) != k {
			return nil, fmt.Errorf("%w: naive Bayes needs %d priors and %d feature rows, got %d and %d",
				ErrInvalidArtifact, k, k, len(a.ClassLogPrior), len(a.FeatureLogProb))
		}
		m.weights = a.FeatureLogProb
		m.bias = a.ClassLogPrior
	case KindLogisticRegression:
		rows := k
		if k == 2 {
			rows = 1
		}
		if len(a.Coef) != rows || len(a.Intercept) != rows {
			return nil, fmt.Errorf("%w: logistic regression over %d classes needs %d coefficient rows and intercepts, got %d and %d",
				ErrInvalidArtifact, k, rows, len(a.Coef), len(a.Intercept))
		}
		m.weights = a.Coef
		m.bias = a.Intercept
	default:
		return nil, fmt.Errorf("%w: unknown classifier kind %q", ErrInvalidArtifact, a.Kind)
	}

	m.nFeatures = len(m.weights[0])
	if m.nFeatures == 0 {
		return nil, fmt.Errorf("%w: empty weight rows", ErrInvalidArtifact)
	}
	for i, row := range m.weights {
		if len(row) != m.nFeatures {
			return nil, fmt.Errorf("%w: weight row %d has %d features, want %d", ErrInvalidArtifact, i, len(row), m.nFeatures)
		}
	}

	return m, nil
}

// Kind returns the classifier kind
func (m *Model) Kind() string {
	return m.kind
}

// Classes returns the class labels in probability order
func (m *Model) Classes() []any {
	return m.classes
}

// NFeatures returns the expected feature vector length
func (m *Model) NFeatures() int {
	return m.nFeatures
}

// PredictProba returns the class distribution for x, aligned with Classes
func (m *Model) PredictProba(x SparseVector) []float64 {
	scores := make([]float64, len(m.weights))
	for i, row := range m.weights {
		scores[i] = x.Dot(row) + m.bias[i]
	}

	if m.kind == KindLogisticRegression && len(m.classes) == 2 {
		p := sigmoid(scores[0])
		return []float64{1 - p, p}
	}
	return softmax(scores)
}

// Predict returns the most probable class for x. Ties go to the first class.
func (m *Model) Predict(x SparseVector) any {
	return m.classes[argmax(m.PredictProba(x))]
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softmax normalises log-space scores using the log-sum-exp shift
func softmax(scores []float64) []float64 {
	highest := scores[argmax(scores)]

	var sum float64
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = math.Exp(s - highest)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
