package factory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/mikey/mailguard/internal/adapters/extract"
	"github.com/mikey/mailguard/internal/adapters/frontend"
	"github.com/mikey/mailguard/internal/adapters/render"
	"github.com/mikey/mailguard/internal/config"
	"github.com/mikey/mailguard/internal/core"
	"github.com/mikey/mailguard/internal/utils"
	"go.uber.org/zap"
)

// PipelineFactory creates the scan pipeline pieces shared by every frontend
type PipelineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewPipelineFactory creates a new PipelineFactory
func NewPipelineFactory(cfg *config.Config, logger *zap.Logger) *PipelineFactory {
	return &PipelineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *PipelineFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateScanOptions builds the scan service options from the gate, cache
// and scan sections
func (f *PipelineFactory) CreateScanOptions() (core.ScanOptions, error) {
	gate := f.cfg.GetGate()

	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return core.ScanOptions{}, fmt.Errorf("invalid cache configuration: %w", err)
	}

	delay, err := f.cfg.GetDuration("scan.delay")
	if err != nil {
		return core.ScanOptions{}, fmt.Errorf("invalid scan delay: %w", err)
	}

	return core.ScanOptions{
		Rules:          core.NewGateRules(gate.HeaderTokens, gate.MessageKeywords, gate.MinKeywordMatches),
		GateManual:     gate.ApplyToManual,
		CacheEnabled:   cacheCfg.Enabled,
		CacheTTL:       cacheCfg.TTL,
		CacheNamespace: f.cacheNamespace(),
		Delay:          delay,
	}, nil
}

// cacheNamespace identifies the configured classifier. The local model is
// identified by the content of its artifacts, so retraining in place starts
// a fresh namespace.
func (f *PipelineFactory) cacheNamespace() string {
	provider := f.cfg.GetClassifier().Provider

	switch provider {
	case ProviderLocal, "":
		model := f.cfg.GetModel()
		h := sha256.New()
		for _, path := range []string{model.VectorizerPath, model.ClassifierPath} {
			data, err := os.ReadFile(path)
			if err != nil {
				// Loading the model reports the error
				data = []byte(path)
			}
			h.Write(data)
		}
		return ProviderLocal + ":" + hex.EncodeToString(h.Sum(nil))[:16]
	case ProviderOpenAI:
		openaiCfg := f.cfg.GetOpenAI()
		return provider + ":" + openaiCfg.ModelName + "@" + openaiCfg.BaseURL
	case ProviderGemini:
		return provider + ":" + f.cfg.GetGemini().ModelName
	case ProviderBedrock:
		bedrockCfg := f.cfg.GetBedrock()
		return provider + ":" + bedrockCfg.ModelID + "@" + bedrockCfg.Region
	default:
		return provider
	}
}

// CreateExtractor creates a document extractor limited to the upload size
func (f *PipelineFactory) CreateExtractor(textProcessor *utils.TextProcessor) (*extract.Extractor, error) {
	server, err := f.cfg.GetServer()
	if err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	return extract.NewExtractor(textProcessor, f.logger, server.MaxUploadBytes), nil
}

// CreateRenderer creates the word cloud renderer. It returns nil when word
// clouds are disabled or the font is missing, leaving the frequency table.
func (f *PipelineFactory) CreateRenderer() (*render.Renderer, error) {
	wc := f.cfg.GetWordCloud()
	if !wc.Enabled {
		return nil, nil
	}
	if _, err := os.Stat(wc.FontPath); err != nil {
		f.logger.Warn("Word cloud font not found, showing word frequencies only",
			zap.String("font_path", wc.FontPath),
			zap.Error(err))
		return nil, nil
	}

	return render.NewRenderer(render.Options{
		Width:       wc.Width,
		Height:      wc.Height,
		FontPath:    wc.FontPath,
		FontMaxSize: wc.FontMaxSize,
		FontMinSize: wc.FontMinSize,
		Background:  wc.Background,
		Colors:      wc.Colors,
	}, f.logger)
}

// CreateAnalyzer ties the scan service to extraction and rendering
func (f *PipelineFactory) CreateAnalyzer(
	service *core.ScanService,
	extractor *extract.Extractor,
	renderer *render.Renderer,
) *frontend.Analyzer {
	return frontend.NewAnalyzer(service, extractor, renderer, f.cfg.GetWordCloud().MaxWords, f.logger)
}
