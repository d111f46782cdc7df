// Package models builds model.LLM instances for the signal classifier and
// the chat companion.
package models

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// openaiModel adapts an OpenAI compatible chat endpoint to model.LLM.
type openaiModel struct {
	client             *openai.Client
	name               string
	versionHeaderValue string
}

func newOpenAICompatible(modelName, apiKey, baseURL, agent string) (*openaiModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &openaiModel{
		name:   modelName,
		client: &client,
		versionHeaderValue: fmt.Sprintf("%s/%s go/%s",
			agent, "1.0.0", strings.TrimPrefix(runtime.Version(), "go")),
	}, nil
}

func (m *openaiModel) Name() string {
	return m.name
}

// GenerateContent always answers with one complete response. Tool calls are
// not mapped; neither caller registers function tools.
func (m *openaiModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	m.maybeAppendUserContent(req)

	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		if resp != nil && stream {
			resp.TurnComplete = true
		}
		yield(resp, err)
	}
}

func (m *openaiModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	params := buildOpenAIParams(req, m.name)

	resp, err := m.client.Chat.Completions.New(ctx, params,
		option.WithHeader("user-agent", m.versionHeaderValue))
	if err != nil {
		slog.Error("failed to call llm API", "model", m.name, "error", err.Error())
		return nil, fmt.Errorf("failed to call %s: %w", m.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", m.name)
	}

	choice := resp.Choices[0]
	slog.Debug("llm call done", "model", m.name, "finish_reason", choice.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)

	out := &model.LLMResponse{
		Content: genai.NewContentFromText(choice.Message.Content, genai.RoleModel),
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(resp.Usage.PromptTokens),
			CandidatesTokenCount: int32(resp.Usage.CompletionTokens),
			TotalTokenCount:      int32(resp.Usage.TotalTokens),
		},
	}
	if choice.FinishReason == "length" {
		out.FinishReason = genai.FinishReasonMaxTokens
	} else {
		out.FinishReason = genai.FinishReasonStop
	}
	return out, nil
}

func (m *openaiModel) maybeAppendUserContent(req *model.LLMRequest) {
	if len(req.Contents) == 0 {
		req.Contents = append(req.Contents, genai.NewContentFromText("Handle the requests as specified in the System Instruction.", "user"))
	}

	if last := req.Contents[len(req.Contents)-1]; last != nil && last.Role != "user" {
		req.Contents = append(req.Contents, genai.NewContentFromText("Continue processing previous requests as instructed.", "user"))
	}
}
