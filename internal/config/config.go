// Package config loads layered configuration: defaults, an optional file and
// CLARITY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CLARITY_"
	delimiter = "."
)

// Config holds runtime settings.
type Config struct {
	// DatabaseURL selects PostgreSQL. When empty, badger at DataDir is used.
	DatabaseURL string `mapstructure:"database_url"`
	DataDir     string `mapstructure:"data_dir"`
	RedisAddr   string `mapstructure:"redis_addr"`

	EmbeddingProvider   string `mapstructure:"embedding_provider" validate:"oneof=genai openai hash"`
	EmbeddingModel      string `mapstructure:"embedding_model"`
	EmbeddingDimensions int    `mapstructure:"embedding_dimensions" validate:"gte=0,lte=8192"`

	GoogleAPIKey  string `mapstructure:"google_api_key"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url" validate:"omitempty,url"`

	// SignalProvider is empty when no classifier should be built.
	SignalProvider string `mapstructure:"signal_provider" validate:"omitempty,oneof=gemini openai openrouter grok"`
	SignalModel    string `mapstructure:"signal_model" validate:"required_with=SignalProvider"`
	SignalAPIKey   string `mapstructure:"signal_api_key"`
	// CompanionModel overrides SignalModel for the chat companion.
	CompanionModel string `mapstructure:"companion_model"`

	TopN       int `mapstructure:"top_n" validate:"min=1,max=50"`
	MaxRetries int `mapstructure:"max_retries" validate:"min=1,max=100"`

	ListenAddr string `mapstructure:"listen_addr" validate:"required"`
	LogLevel   string `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat  string `mapstructure:"log_format" validate:"oneof=json text"`
	QuizPath   string `mapstructure:"quiz_path"`
}

// Defaults returns the lowest-priority layer.
func Defaults() map[string]any {
	return map[string]any{
		"data_dir":             "data",
		"embedding_provider":   "genai",
		"embedding_dimensions": 0,
		"signal_model":         "",
		"top_n":                3,
		"max_retries":          5,
		"listen_addr":          ":8080",
		"log_level":            "info",
		"log_format":           "text",
	}
}

// Load reads defaults, then path (if non-empty), then the environment, and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(delimiter)

	if err := k.Load(confmap.Provider(Defaults(), delimiter), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, delimiter, func(s string) string {
		// CLARITY_DATABASE_URL -> database_url
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyFallbacks(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", path)
	}
	return k.Load(file.Provider(path), parser)
}

// applyFallbacks honours the provider SDKs' conventional variables.
func applyFallbacks(cfg *Config) {
	if cfg.GoogleAPIKey == "" {
		cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.SignalAPIKey == "" {
		switch cfg.SignalProvider {
		case "gemini":
			cfg.SignalAPIKey = cfg.GoogleAPIKey
		case "openai":
			cfg.SignalAPIKey = cfg.OpenAIAPIKey
		}
	}
}

// ChatModel is the model name used by the chat companion.
func (c *Config) ChatModel() string {
	if c.CompanionModel != "" {
		return c.CompanionModel
	}
	return c.SignalModel
}

// EmbeddingAPIKey returns the key for the configured embedding provider.
func (c *Config) EmbeddingAPIKey() string {
	switch c.EmbeddingProvider {
	case "genai":
		return c.GoogleAPIKey
	case "openai":
		return c.OpenAIAPIKey
	default:
		return ""
	}
}

// ConfigError represents a validation error for a specific field.
type ConfigError struct {
	Field   string
	Message string
	Value   any
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of config errors.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var validate = validator.New()

// Validate checks field constraints and provider credentials.
func Validate(cfg *Config) error {
	var details ValidationErrors
	if err := validate.Struct(cfg); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return err
		}
		for _, fe := range fieldErrors {
			details = append(details, ConfigError{
				Field:   fe.Namespace(),
				Message: formatValidationError(fe),
				Value:   fe.Value(),
			})
		}
	}
	if cfg.EmbeddingProvider != "hash" && cfg.EmbeddingAPIKey() == "" {
		details = append(details, ConfigError{
			Field:   "Config.EmbeddingAPIKey",
			Message: fmt.Sprintf("an API key is required for embedding provider %s", cfg.EmbeddingProvider),
			Value:   "",
		})
	}
	if cfg.SignalProvider != "" && cfg.SignalAPIKey == "" {
		details = append(details, ConfigError{
			Field:   "Config.SignalAPIKey",
			Message: fmt.Sprintf("an API key is required for signal provider %s", cfg.SignalProvider),
			Value:   "",
		})
	}
	if len(details) > 0 {
		return details
	}
	return nil
}

// formatValidationError converts validator.FieldError to a human-readable message.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed on %s validation", fe.Tag())
	}
}
