package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. MAILGUARD_CLASSIFIER_PROVIDER for classifier.provider
const EnvPrefix = "MAILGUARD"

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance from the first config.yaml found
// in the standard search paths, the environment and an optional .env file
func New() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mailguard/")
	v.AddConfigPath("$HOME/.mailguard")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit file
func NewFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func newViper() *viper.Viper {
	// Best effort: a missing .env is not an error
	_ = godotenv.Load()

	v := NewEmptyViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Classifier defaults
	v.SetDefault("classifier.provider", "local")

	// Local model artifacts
	v.SetDefault("model.vectorizer_path", "./models/vectorizer.json")
	v.SetDefault("model.classifier_path", "./models/spam_model.json")
	v.SetDefault("model.name", "")

	// Server defaults
	v.SetDefault("server.frontend", "web")
	v.SetDefault("server.listen_address", "0.0.0.0:8501")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "5s")

	// Validity gate defaults
	v.SetDefault("gate.header_tokens", []string{"subject:", "from:", "to:", "sent:", "cc:"})
	v.SetDefault("gate.message_keywords", []string{
		"hi", "hello", "dear", "thanks", "regards", "sincerely",
		"call", "text", "txt", "reply", "stop", "urgent", "free",
		"winner", "click", "offer", "subscription", "customer",
	})
	v.SetDefault("gate.min_keyword_matches", 4)
	v.SetDefault("gate.apply_to_manual", false)

	// Scan defaults
	v.SetDefault("scan.delay", "0s")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 300)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 300)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/mailguard_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/mailguard")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	// Word cloud defaults
	v.SetDefault("wordcloud.enabled", true)
	v.SetDefault("wordcloud.width", 600)
	v.SetDefault("wordcloud.height", 350)
	v.SetDefault("wordcloud.max_words", 200)
	v.SetDefault("wordcloud.font_path", "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf")
	v.SetDefault("wordcloud.font_max_size", 72)
	v.SetDefault("wordcloud.font_min_size", 10)
	v.SetDefault("wordcloud.background", "#00000000")
	v.SetDefault("wordcloud.colors", []string{"#fcfdbf", "#fc8961", "#b73779", "#51127c", "#000004"})

	// CLI defaults
	v.SetDefault("cli.verbose", false)
	v.SetDefault("cli.json", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
