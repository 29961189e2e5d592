package config

import "time"

// ClassifierConfig selects the classifier backend
type ClassifierConfig struct {
	Provider string
}

// ModelConfig locates the local model artifacts
type ModelConfig struct {
	VectorizerPath string
	ClassifierPath string
	Name           string
}

// GateConfig represents the validity gate token sets
type GateConfig struct {
	HeaderTokens      []string
	MessageKeywords   []string
	MinKeywordMatches int
	ApplyToManual     bool
}

// ServerConfig represents the web frontend configuration
type ServerConfig struct {
	Frontend        string
	ListenAddress   string
	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// CacheConfig represents the verdict cache configuration
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
}

// WordCloudConfig represents the word cloud renderer configuration
type WordCloudConfig struct {
	Enabled     bool
	Width       int
	Height      int
	MaxWords    int
	FontPath    string
	FontMaxSize int
	FontMinSize int
	Background  string
	Colors      []string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		Provider: c.GetString("classifier.provider"),
	}
}

// GetModel returns the local model configuration
func (c *Config) GetModel() ModelConfig {
	return ModelConfig{
		VectorizerPath: c.GetString("model.vectorizer_path"),
		ClassifierPath: c.GetString("model.classifier_path"),
		Name:           c.GetString("model.name"),
	}
}

// GetGate returns the validity gate configuration
func (c *Config) GetGate() GateConfig {
	return GateConfig{
		HeaderTokens:      c.GetStringSlice("gate.header_tokens"),
		MessageKeywords:   c.GetStringSlice("gate.message_keywords"),
		MinKeywordMatches: c.GetInt("gate.min_keyword_matches"),
		ApplyToManual:     c.GetBool("gate.apply_to_manual"),
	}
}

// GetServer returns the web frontend configuration
func (c *Config) GetServer() (ServerConfig, error) {
	cfg := ServerConfig{
		Frontend:       c.GetString("server.frontend"),
		ListenAddress:  c.GetString("server.listen_address"),
		MaxUploadBytes: c.GetInt64("server.max_upload_bytes"),
	}

	var err error
	if cfg.ReadTimeout, err = c.GetDuration("server.read_timeout"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = c.GetDuration("server.write_timeout"); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = c.GetDuration("server.shutdown_timeout"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	cfg := CacheConfig{
		Type:          c.GetString("cache.type"),
		Enabled:       c.GetBool("cache.enabled"),
		SQLitePath:    c.GetString("cache.sqlite_path"),
		MySQLDSN:      c.GetString("cache.mysql_dsn"),
		RedisAddr:     c.GetString("cache.redis_addr"),
		RedisPassword: c.GetString("cache.redis_password"),
		RedisDB:       c.GetInt("cache.redis_db"),
	}

	var err error
	if cfg.TTL, err = c.GetDuration("cache.ttl"); err != nil {
		return cfg, err
	}
	if cfg.CleanupFrequency, err = c.GetDuration("cache.cleanup_frequency"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetWordCloud returns the word cloud configuration
func (c *Config) GetWordCloud() WordCloudConfig {
	return WordCloudConfig{
		Enabled:     c.GetBool("wordcloud.enabled"),
		Width:       c.GetInt("wordcloud.width"),
		Height:      c.GetInt("wordcloud.height"),
		MaxWords:    c.GetInt("wordcloud.max_words"),
		FontPath:    c.GetString("wordcloud.font_path"),
		FontMaxSize: c.GetInt("wordcloud.font_max_size"),
		FontMinSize: c.GetInt("wordcloud.font_min_size"),
		Background:  c.GetString("wordcloud.background"),
		Colors:      c.GetStringSlice("wordcloud.colors"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
