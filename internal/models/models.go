package models

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// Providers accepted by New.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGrok       = "grok"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	grokBaseURL       = "https://api.x.ai/v1"
)

// Config selects and authenticates a model.
type Config struct {
	Provider string
	Name     string
	APIKey   string
	// BaseURL overrides the endpoint of OpenAI compatible providers.
	BaseURL string
}

// New returns the model.LLM for cfg.Provider.
func New(ctx context.Context, cfg Config) (model.LLM, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini, "":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("API key is required")
		}
		llm, err := gemini.NewModel(ctx, cfg.Name, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini model: %w", err)
		}
		return llm, nil
	case ProviderOpenAI:
		return newOpenAICompatible(cfg.Name, cfg.APIKey, cfg.BaseURL, "openai-go")
	case ProviderOpenRouter:
		return newOpenAICompatible(cfg.Name, cfg.APIKey, orDefault(cfg.BaseURL, openRouterBaseURL), "openrouter-go")
	case ProviderGrok:
		return newOpenAICompatible(cfg.Name, cfg.APIKey, orDefault(cfg.BaseURL, grokBaseURL), "grok-go")
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
