// Package memory stores user text with embeddings and ranks it against new text.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// Embedder turns text into vectors. Query and document embeddings may differ
// for providers with task-specific models.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	ProviderGenAI  = "genai"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"

	defaultGenAIModel     = "text-embedding-004"
	defaultGenAIDims      = 768
	defaultOpenAIModel    = "text-embedding-3-small"
	defaultOpenAIDims     = 1536
	defaultHashDims       = 256
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// EmbedderConfig selects and configures an embedding provider.
type EmbedderConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewEmbedder builds the configured provider.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGenAI, "":
		return NewGenAIEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Dimensions)
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// GenAIEmbedder embeds text with the Gemini embedding API.
type GenAIEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewGenAIEmbedder creates a Gemini embedder.
func NewGenAIEmbedder(ctx context.Context, apiKey, modelName string, dimensions int) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is required for embeddings")
	}
	if modelName == "" {
		modelName = defaultGenAIModel
	}
	if dimensions <= 0 {
		dimensions = defaultGenAIDims
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAIEmbedder{
		client:     client,
		model:      modelName,
		dimensions: dimensions,
	}, nil
}

func (e *GenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, taskRetrievalQuery)
}

func (e *GenAIEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, taskRetrievalDocument)
}

func (e *GenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.EmbedDocument)
}

func (e *GenAIEmbedder) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	dims := int32(e.dimensions)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("empty embedding response")
	}
	return fitDimensions(resp.Embeddings[0].Values, e.dimensions, e.model)
}

// fitDimensions truncates oversized vectors and rejects short ones.
func fitDimensions(values []float32, want int, model string) ([]float32, error) {
	if len(values) == want {
		return values, nil
	}
	if len(values) > want {
		slog.Warn("embedding dimensions exceed target, truncating", "actual", len(values), "target", want, "model", model)
		return values[:want], nil
	}
	return nil, fmt.Errorf("embedding dimensions mismatch: got %d want %d", len(values), want)
}

func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	results := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results = append(results, vec)
	}
	return results, nil
}
