package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mikey/mailguard/internal/adapters/extract"
	"github.com/mikey/mailguard/internal/adapters/render"
	"github.com/mikey/mailguard/internal/core"
	"github.com/mikey/mailguard/internal/ports"
	"go.uber.org/zap"
)

var _ ports.Frontend = (*CliFrontend)(nil)

// Exit codes of the command-line scanner
const (
	ExitOK       = 0
	ExitError    = 1
	ExitRejected = 2
)

const (
	previewLength = 500
	topWords      = 10
)

// CLIOptions configures the command-line output
type CLIOptions struct {
	Verbose       bool
	JSON          bool
	WordCloudPath string
}

// CliFrontend scans one submission and prints the outcome
type CliFrontend struct {
	analyzer *Analyzer
	logger   *zap.Logger
	out      io.Writer
	opts     CLIOptions
}

// cliReport is the -json output
type cliReport struct {
	Report        *core.ScanReport   `json:"report,omitempty"`
	Words         []render.WordCount `json:"words,omitempty"`
	WordCloudFile string             `json:"wordcloud_file,omitempty"`
	Message       string             `json:"message,omitempty"`
	Error         string             `json:"error,omitempty"`
	ElapsedMillis int64              `json:"elapsed_ms"`
}

// NewCliFrontend creates a new CLI frontend writing to out
func NewCliFrontend(analyzer *Analyzer, logger *zap.Logger, out io.Writer, opts CLIOptions) *CliFrontend {
	if out == nil {
		out = os.Stdout
	}
	return &CliFrontend{
		analyzer: analyzer,
		logger:   logger,
		out:      out,
		opts:     opts,
	}
}

// Run scans the submission, prints the outcome and returns the exit code
func (f *CliFrontend) Run(ctx context.Context, sub Submission) int {
	if !f.opts.JSON {
		f.printSummary(sub)
		fmt.Fprintf(f.out, "=== Analysis ===\n")
		fmt.Fprintf(f.out, "Analyzing text...\n")
	}

	startTime := time.Now()
	outcome, err := f.analyzer.Analyze(ctx, sub)
	duration := time.Since(startTime)

	var wordCloudFile string
	if err == nil && f.opts.WordCloudPath != "" {
		wordCloudFile, err = f.saveWordCloud(outcome)
		if err != nil {
			f.logger.Warn("Failed to save word cloud", zap.Error(err))
			err = nil
		}
	}

	if f.opts.JSON {
		f.printJSON(outcome, wordCloudFile, err, duration)
	} else {
		f.printResults(outcome, wordCloudFile, err, duration)
	}

	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, core.ErrIrrelevantContent):
		return ExitRejected
	default:
		f.logger.Debug("Scan failed", zap.Error(err))
		return ExitError
	}
}

func (f *CliFrontend) printSummary(sub Submission) {
	fmt.Fprintf(f.out, "\n=== Input Summary ===\n")
	if sub.Document != nil {
		fmt.Fprintf(f.out, "Source: %s\n", core.SourceDocument)
		fmt.Fprintf(f.out, "File: %s\n", sub.Document.Name)
		fmt.Fprintf(f.out, "Format: %s\n", extract.DetectFormat(sub.Document.ContentType, sub.Document.Name))
		fmt.Fprintf(f.out, "Size: %d bytes\n", len(sub.Document.Data))
		fmt.Fprintf(f.out, "\n")
		return
	}

	fmt.Fprintf(f.out, "Source: %s\n", core.SourceManual)
	fmt.Fprintf(f.out, "Text length: %d bytes\n", len(sub.Text))
	if f.opts.Verbose {
		preview := sub.Text
		if len(preview) > previewLength {
			preview = preview[:previewLength] + "..."
		}
		fmt.Fprintf(f.out, "\nText preview:\n%s\n", preview)
	}
	fmt.Fprintf(f.out, "\n")
}

func (f *CliFrontend) printResults(outcome *Outcome, wordCloudFile string, err error, duration time.Duration) {
	fmt.Fprintf(f.out, "\n=== Results ===\n")

	var report *core.ScanReport
	if outcome != nil {
		report = outcome.Report
	}
	if report != nil && report.Verdict != nil {
		if report.Verdict.Valid {
			fmt.Fprintf(f.out, "Format check: %s\n", MsgVerified)
		} else {
			fmt.Fprintf(f.out, "Format check: %s\n", MsgRejected)
			fmt.Fprintf(f.out, "Keyword matches: %d\n", report.Verdict.KeywordMatches)
		}
	}

	if err != nil {
		if !errors.Is(err, core.ErrIrrelevantContent) {
			fmt.Fprintf(f.out, "Error: %s\n", MessageFor(err))
			if f.opts.Verbose {
				fmt.Fprintf(f.out, "Detail: %v\n", err)
			}
		}
		return
	}

	result := report.Result
	if result.Label.IsSpam() {
		fmt.Fprintf(f.out, "Verdict: THREAT DETECTED: SPAM\n")
		fmt.Fprintf(f.out, "Risk level: %.2f%%\n", result.ConfidencePercent())
	} else {
		fmt.Fprintf(f.out, "Verdict: STATUS: SECURE (HAM)\n")
		fmt.Fprintf(f.out, "Safety score: %.2f%%\n", result.ConfidencePercent())
	}
	fmt.Fprintf(f.out, "Model used: %s\n", result.ModelUsed)
	if report.Cached {
		fmt.Fprintf(f.out, "Cached: true\n")
	}
	fmt.Fprintf(f.out, "Processing time: %v\n", duration)

	if len(outcome.Words) > 0 {
		n := len(outcome.Words)
		if n > topWords {
			n = topWords
		}
		parts := make([]string, 0, n)
		for _, wc := range outcome.Words[:n] {
			parts = append(parts, fmt.Sprintf("%s (%d)", wc.Word, wc.Count))
		}
		fmt.Fprintf(f.out, "Top words: %s\n", strings.Join(parts, ", "))
	}
	if wordCloudFile != "" {
		fmt.Fprintf(f.out, "Word cloud: %s\n", wordCloudFile)
	}
}

func (f *CliFrontend) printJSON(outcome *Outcome, wordCloudFile string, err error, duration time.Duration) {
	rep := cliReport{
		WordCloudFile: wordCloudFile,
		ElapsedMillis: duration.Milliseconds(),
	}
	if outcome != nil {
		rep.Report = outcome.Report
		rep.Words = outcome.Words
	}
	if err != nil {
		rep.Error = err.Error()
		rep.Message = MessageFor(err)
	} else if rep.Report != nil && rep.Report.Verdict != nil {
		rep.Message = MsgVerified
	}

	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		f.logger.Error("Failed to write JSON report", zap.Error(err))
	}
}

// saveWordCloud writes the PNG next to the requested path
func (f *CliFrontend) saveWordCloud(outcome *Outcome) (string, error) {
	if outcome == nil || len(outcome.WordCloud) == 0 {
		return "", render.ErrNothingToDraw
	}
	if dir := filepath.Dir(f.opts.WordCloudPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create word cloud directory: %w", err)
		}
	}
	if err := os.WriteFile(f.opts.WordCloudPath, outcome.WordCloud, 0o644); err != nil {
		return "", fmt.Errorf("failed to write word cloud: %w", err)
	}
	return f.opts.WordCloudPath, nil
}

// Start is a no-op for the CLI frontend
func (f *CliFrontend) Start() error {
	return nil
}

// Stop is a no-op for the CLI frontend
func (f *CliFrontend) Stop() error {
	return nil
}

// SubmissionFromFile reads a document from disk. contentType may be empty,
// in which case the format is taken from the file extension.
func SubmissionFromFile(path, contentType string) (Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Submission{Document: &extract.Document{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}}, nil
}

// SubmissionFromReader reads manual text, typically from stdin
func SubmissionFromReader(r io.Reader) (Submission, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to read input: %w", err)
	}
	return Submission{Text: string(data)}, nil
}
