package localmodel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mikey/mailguard/internal/core"
)

var _ core.Classifier = (*Pipeline)(nil)

// Pipeline chains a Vectorizer and a Model into a core.Classifier.
// It is immutable once built and safe for concurrent use.
type Pipeline struct {
	vectorizer *Vectorizer
	model      *Model
	name       string
}

// NewPipeline checks that the vectorizer output fits the model input
func NewPipeline(vectorizer *Vectorizer, model *Model, name string) (*Pipeline, error) {
	if vectorizer.NFeatures() != model.NFeatures() {
		return nil, fmt.Errorf("%w: vectorizer yields %d features but classifier expects %d",
			ErrInvalidArtifact, vectorizer.NFeatures(), model.NFeatures())
	}
	if name == "" {
		name = "local:" + model.Kind()
	}
	return &Pipeline{vectorizer: vectorizer, model: model, name: name}, nil
}

// Load reads both artifacts from disk and builds a Pipeline
func Load(vectorizerPath, classifierPath, name string) (*Pipeline, error) {
	vectorizer, err := LoadVectorizer(vectorizerPath)
	if err != nil {
		return nil, err
	}
	model, err := LoadModel(classifierPath)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "local:" + strings.TrimSuffix(filepath.Base(classifierPath), filepath.Ext(classifierPath))
	}
	return NewPipeline(vectorizer, model, name)
}

// Name returns the model name reported in results
func (p *Pipeline) Name() string {
	return p.name
}

// Predict classifies normalized text
func (p *Pipeline) Predict(ctx context.Context, text core.NormalizedText) (*core.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x := p.vectorizer.Transform(text.String())
	probs := p.model.PredictProba(x)

	return &core.Prediction{
		Label:         p.model.Classes()[argmax(probs)],
		Classes:       p.model.Classes(),
		Probabilities: probs,
		Model:         p.name,
	}, nil
}
