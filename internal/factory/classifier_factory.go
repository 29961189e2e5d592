package factory

import (
	"context"
	"fmt"

	"github.com/mikey/mailguard/internal/adapters/bedrock"
	"github.com/mikey/mailguard/internal/adapters/gemini"
	"github.com/mikey/mailguard/internal/adapters/localmodel"
	"github.com/mikey/mailguard/internal/adapters/openai"
	"github.com/mikey/mailguard/internal/config"
	"github.com/mikey/mailguard/internal/core"
	"github.com/mikey/mailguard/internal/utils"
	"go.uber.org/zap"
)

// Classifier providers
const (
	ProviderLocal   = "local"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// ClassifierFactory creates classifiers
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a classifier based on the configured provider.
// Some classifiers hold network clients; callers close those that
// implement io.Closer.
func (f *ClassifierFactory) CreateClassifier(ctx context.Context) (core.Classifier, error) {
	provider := f.cfg.GetClassifier().Provider

	switch provider {
	case ProviderLocal, "":
		modelCfg := f.cfg.GetModel()
		pipeline, err := localmodel.Load(modelCfg.VectorizerPath, modelCfg.ClassifierPath, modelCfg.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load local model: %w", err)
		}
		f.logger.Info("Loaded local model",
			zap.String("model", pipeline.Name()),
			zap.String("vectorizer", modelCfg.VectorizerPath),
			zap.String("classifier", modelCfg.ClassifierPath))
		return pipeline, nil
	case ProviderOpenAI:
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case ProviderGemini:
		client, err := gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderBedrock:
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier(ctx)
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", provider)
	}
}
