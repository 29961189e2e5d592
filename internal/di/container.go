package di

import (
	"context"

	"go.uber.org/dig"

	"github.com/mikey/mailguard/internal/adapters/extract"
	"github.com/mikey/mailguard/internal/adapters/frontend"
	"github.com/mikey/mailguard/internal/adapters/render"
	"github.com/mikey/mailguard/internal/config"
	"github.com/mikey/mailguard/internal/core"
	"github.com/mikey/mailguard/internal/factory"
	"github.com/mikey/mailguard/internal/logging"
	"github.com/mikey/mailguard/internal/ports"
	"github.com/mikey/mailguard/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
// for the web application
func BuildContainer(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	// Register context
	if err := container.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register frontend
	if err := container.Provide(func(f *factory.FrontendFactory) (ports.Frontend, error) {
		return f.CreateFrontend()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// providePipeline registers everything between the configuration and the
// frontends. It expects a context, a config and a logger to be provided.
func providePipeline(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewPipelineFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewFrontendFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.PipelineFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register classifier
	if err := container.Provide(func(ctx context.Context, f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier(ctx)
	}); err != nil {
		return err
	}

	// Register cache repository, nil when caching is disabled
	if err := container.Provide(func(ctx context.Context, f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository(ctx)
	}); err != nil {
		return err
	}

	// Register scan options and service
	if err := container.Provide(func(f *factory.PipelineFactory) (core.ScanOptions, error) {
		return f.CreateScanOptions()
	}); err != nil {
		return err
	}
	if err := container.Provide(core.NewScanService); err != nil {
		return err
	}

	// Register extraction, rendering and the analyzer tying them together
	if err := container.Provide(func(f *factory.PipelineFactory, tp *utils.TextProcessor) (*extract.Extractor, error) {
		return f.CreateExtractor(tp)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.PipelineFactory) (*render.Renderer, error) {
		return f.CreateRenderer()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(
		f *factory.PipelineFactory,
		service *core.ScanService,
		extractor *extract.Extractor,
		renderer *render.Renderer,
	) *frontend.Analyzer {
		return f.CreateAnalyzer(service, extractor, renderer)
	}); err != nil {
		return err
	}

	return nil
}
