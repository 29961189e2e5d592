package factory

import (
	"fmt"
	"io"

	"github.com/mikey/mailguard/internal/adapters/frontend"
	"github.com/mikey/mailguard/internal/config"
	"github.com/mikey/mailguard/internal/ports"
	"go.uber.org/zap"
)

// FrontendFactory creates frontends based on configuration
type FrontendFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	analyzer *frontend.Analyzer
}

// NewFrontendFactory creates a new frontend factory
func NewFrontendFactory(cfg *config.Config, logger *zap.Logger, analyzer *frontend.Analyzer) *FrontendFactory {
	return &FrontendFactory{
		cfg:      cfg,
		logger:   logger,
		analyzer: analyzer,
	}
}

// CreateFrontend creates the frontend named by server.frontend
func (f *FrontendFactory) CreateFrontend() (ports.Frontend, error) {
	server, err := f.cfg.GetServer()
	if err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	switch server.Frontend {
	case "web":
		return f.CreateWebFrontend()
	case "cli":
		return f.CreateCliFrontend(nil, ""), nil
	default:
		return nil, fmt.Errorf("unsupported frontend: %s", server.Frontend)
	}
}

// CreateWebFrontend creates the HTTP frontend
func (f *FrontendFactory) CreateWebFrontend() (*frontend.WebFrontend, error) {
	server, err := f.cfg.GetServer()
	if err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	return frontend.NewWebFrontend(f.analyzer, f.logger, frontend.WebOptions{
		ListenAddress:   server.ListenAddress,
		MaxUploadBytes:  server.MaxUploadBytes,
		ReadTimeout:     server.ReadTimeout,
		WriteTimeout:    server.WriteTimeout,
		ShutdownTimeout: server.ShutdownTimeout,
	})
}

// CreateCliFrontend creates the command-line frontend. A nil out writes to
// stdout.
func (f *FrontendFactory) CreateCliFrontend(out io.Writer, wordCloudPath string) *frontend.CliFrontend {
	return frontend.NewCliFrontend(f.analyzer, f.logger, out, frontend.CLIOptions{
		Verbose:       f.cfg.GetBool("cli.verbose"),
		JSON:          f.cfg.GetBool("cli.json"),
		WordCloudPath: wordCloudPath,
	})
}
