package di

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mailguard/internal/adapters/extract"
	"github.com/mikey/mailguard/internal/adapters/frontend"
	"github.com/mikey/mailguard/internal/config"
	"github.com/mikey/mailguard/internal/factory"
	"github.com/mikey/mailguard/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Input flags
	Text     string
	File     string
	FileType string

	// Output flags
	WordCloud string
	JSON      bool
	Verbose   bool
	JSONLog   bool

	// Configuration
	ConfigFile string

	// overrides maps config keys to the values of flags set on the command line
	overrides map[string]string
}

// flagConfigKeys lists the config keys each override flag writes to
var flagConfigKeys = map[string][]string{
	"provider":        {"classifier.provider"},
	"vectorizer":      {"model.vectorizer_path"},
	"model":           {"model.classifier_path"},
	"model-name":      {"model.name"},
	"openai-api-key":  {"openai.api_key"},
	"openai-model":    {"openai.model_name"},
	"openai-base-url": {"openai.base_url"},
	"gemini-api-key":  {"gemini.api_key"},
	"gemini-model":    {"gemini.model_name"},
	"bedrock-region":  {"bedrock.region"},
	"bedrock-model":   {"bedrock.model_id"},
	"max-tokens":      {"openai.max_tokens", "gemini.max_tokens", "bedrock.max_tokens"},
	"temperature":     {"openai.temperature", "gemini.temperature", "bedrock.temperature"},
	"top-p":           {"openai.top_p", "gemini.top_p", "bedrock.top_p"},
	"max-body-size":   {"openai.max_body_size", "gemini.max_body_size", "bedrock.max_body_size"},
	"gate-manual":     {"gate.apply_to_manual"},
	"delay":           {"scan.delay"},
	"verbose":         {"cli.verbose"},
	"json":            {"cli.json"},
}

// ParseFlags parses command line arguments (without the program name)
func ParseFlags(args []string) (*CLIFlags, error) {
	flags := &CLIFlags{}
	fs := flag.NewFlagSet("mailguard-scan", flag.ContinueOnError)

	// Input flags
	fs.StringVar(&flags.Text, "text", "", "Text to scan (use -file or stdin otherwise)")
	fs.StringVar(&flags.File, "file", "", "Document to scan: PDF, DOCX, TXT or EML")
	fs.StringVar(&flags.FileType, "type", "", "Document type (pdf, docx, txt, eml or a MIME type), guessed from the extension if empty")

	// Output flags
	fs.StringVar(&flags.WordCloud, "wordcloud", "", "Write the word cloud PNG to this path")
	fs.BoolVar(&flags.JSON, "json", false, "Print the report as JSON")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose output and logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (flags given on the command line take precedence)")

	// Classifier flags
	fs.String("provider", "local", "Classifier provider (local, openai, gemini, bedrock)")
	fs.String("vectorizer", "./models/vectorizer.json", "Local vectorizer artifact")
	fs.String("model", "./models/spam_model.json", "Local classifier artifact")
	fs.String("model-name", "", "Model name reported in results")
	fs.Int("max-tokens", 300, "Maximum tokens for LLM responses")
	fs.Float64("temperature", 0.1, "Temperature for LLM generation")
	fs.Float64("top-p", 0.9, "Top-p for LLM generation")
	fs.Int("max-body-size", 4096, "Maximum text size sent to an LLM")

	// Provider flags
	fs.String("openai-api-key", "", "API key for OpenAI")
	fs.String("openai-model", "gpt-4o-mini", "OpenAI model name")
	fs.String("openai-base-url", "", "OpenAI compatible API base URL")
	fs.String("gemini-api-key", "", "API key for Google Gemini")
	fs.String("gemini-model", "gemini-1.5-flash", "Gemini model name")
	fs.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	fs.String("bedrock-model", "anthropic.claude-3-haiku-20240307-v1:0", "Bedrock model ID")

	// Scan flags
	fs.Bool("gate-manual", false, "Run the message format check on -text and stdin input too")
	fs.Duration("delay", 0, "Pause after each classification")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.New("unexpected arguments: use -text or -file")
	}

	flags.overrides = make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		for _, key := range flagConfigKeys[f.Name] {
			flags.overrides[key] = f.Value.String()
		}
	})

	return flags, nil
}

// Submission resolves the input flags, reading stdin when neither -text
// nor -file is given
func (f *CLIFlags) Submission(stdin io.Reader) (frontend.Submission, error) {
	switch {
	case f.File != "":
		return frontend.SubmissionFromFile(f.File, extract.ContentType(f.FileType))
	case f.Text != "":
		return frontend.Submission{Text: f.Text}, nil
	default:
		return frontend.SubmissionFromReader(stdin)
	}
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(ctx context.Context, flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register context and flags
	if err := container.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		return createConfigFromFlags(flags, logger)
	}); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register CLI frontend
	if err := container.Provide(func(f *factory.FrontendFactory, flags *CLIFlags) *frontend.CliFrontend {
		return f.CreateCliFrontend(os.Stdout, flags.WordCloud)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags loads the config file (or the standard search
// paths) and applies the flags set on the command line on top
func createConfigFromFlags(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.ConfigFile != "" {
		cfg, err = config.NewFromFile(flags.ConfigFile)
	} else {
		cfg, err = config.New()
	}
	if err != nil {
		return nil, err
	}
	if used := cfg.GetViper().ConfigFileUsed(); used != "" {
		logger.Info("Loaded configuration from file", zap.String("file", used))
	}

	v := cfg.GetViper()
	for key, value := range flags.overrides {
		v.Set(key, value)
	}
	v.Set("server.frontend", "cli")

	return cfg, nil
}
