// Package frontend holds the user-facing surfaces of MailGuard: the web UI
// with its JSON API, and the command-line scanner. Both drive the same
// Analyzer.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey/mailguard/internal/adapters/extract"
	"github.com/mikey/mailguard/internal/adapters/render"
	"github.com/mikey/mailguard/internal/core"
	"go.uber.org/zap"
)

// ErrUnreadableDocument marks an upload whose text could not be extracted
var ErrUnreadableDocument = errors.New("document could not be read")

// Submission is one user request: pasted text, or an uploaded document
type Submission struct {
	Text     string
	Document *extract.Document
}

// Outcome is a scan report plus the word frequencies drawn from it
type Outcome struct {
	Report    *core.ScanReport
	Words     []render.WordCount
	WordCloud []byte
}

// Analyzer turns submissions into outcomes: extraction, scanning, word cloud
type Analyzer struct {
	service   *core.ScanService
	extractor *extract.Extractor
	renderer  *render.Renderer
	stopWords map[string]struct{}
	maxWords  int
	logger    *zap.Logger
}

// NewAnalyzer creates an Analyzer. A nil renderer disables the word cloud
// image; the frequency table is still computed.
func NewAnalyzer(
	service *core.ScanService,
	extractor *extract.Extractor,
	renderer *render.Renderer,
	maxWords int,
	logger *zap.Logger,
) *Analyzer {
	return &Analyzer{
		service:   service,
		extractor: extractor,
		renderer:  renderer,
		stopWords: render.DefaultStopWords,
		maxWords:  maxWords,
		logger:    logger,
	}
}

// Analyze scans a submission. On gate rejection or classifier failure the
// partial report is returned together with the error.
func (a *Analyzer) Analyze(ctx context.Context, sub Submission) (*Outcome, error) {
	in, err := a.input(ctx, sub)
	if err != nil {
		return nil, err
	}

	report, err := a.service.Scan(ctx, in)
	out := &Outcome{Report: report}
	if err != nil {
		return out, err
	}

	out.Words = render.Frequencies(report.Normalized.String(), a.stopWords, a.maxWords)
	if a.renderer != nil && len(out.Words) > 0 {
		png, err := a.renderer.RenderPNG(out.Words)
		if err != nil {
			a.logger.Warn("Failed to render word cloud", zap.Error(err))
		} else {
			out.WordCloud = png
		}
	}

	return out, nil
}

// Screen runs only the validity gate over a submission
func (a *Analyzer) Screen(ctx context.Context, sub Submission) (*core.ValidityVerdict, error) {
	in, err := a.input(ctx, sub)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, core.ErrNoInput
	}

	verdict := a.service.Screen(in.Text)
	return &verdict, nil
}

// input resolves a submission to raw text, extracting documents as needed
func (a *Analyzer) input(ctx context.Context, sub Submission) (*core.Input, error) {
	if sub.Document == nil {
		return &core.Input{Text: sub.Text, Source: core.SourceManual}, nil
	}

	text, err := a.extractor.Extract(ctx, *sub.Document)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) ||
			errors.Is(err, extract.ErrDocumentTooLarge) ||
			ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}

	return &core.Input{Text: text, Source: core.SourceDocument, FileName: sub.Document.Name}, nil
}
