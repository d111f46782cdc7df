package models

import (
	"context"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestBuildOpenAIParams(t *testing.T) {
	temp := float32(0.2)
	req := &model.LLMRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText("I finally told her how I felt.", "user"),
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("Classify the entry.", "system"),
			Temperature:       &temp,
			MaxOutputTokens:   256,
			ResponseMIMEType:  "application/json",
		},
	}

	params := buildOpenAIParams(req, "gpt-4o-mini")
	if params.Model != "gpt-4o-mini" {
		t.Fatalf("expected default model, got %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil || params.Messages[1].OfUser == nil {
		t.Fatalf("unexpected message order: %+v", params.Messages)
	}
	if params.ResponseFormat.OfJSONObject == nil {
		t.Fatalf("expected json response format")
	}
	if !params.MaxTokens.Valid() || params.MaxTokens.Value != 256 {
		t.Fatalf("unexpected max tokens: %+v", params.MaxTokens)
	}
}

func TestBuildOpenAIParamsKeepsRequestModel(t *testing.T) {
	req := &model.LLMRequest{Model: "override"}
	params := buildOpenAIParams(req, "fallback")
	if params.Model != "override" {
		t.Fatalf("expected request model, got %q", params.Model)
	}
	if params.ResponseFormat.OfJSONObject != nil {
		t.Fatalf("did not expect json mode without mime type")
	}
}

func TestMaybeAppendUserContent(t *testing.T) {
	m := &openaiModel{name: "test"}
	req := &model.LLMRequest{}
	m.maybeAppendUserContent(req)
	if len(req.Contents) != 1 || req.Contents[0].Role != "user" {
		t.Fatalf("expected synthetic user turn, got %+v", req.Contents)
	}

	req.Contents = append(req.Contents, genai.NewContentFromText("ok", "model"))
	m.maybeAppendUserContent(req)
	if last := req.Contents[len(req.Contents)-1]; last.Role != "user" {
		t.Fatalf("expected trailing user turn, got %q", last.Role)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, Config{Provider: "nope", Name: "x", APIKey: "k"}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	if _, err := New(ctx, Config{Provider: ProviderOpenAI, Name: "gpt-4o-mini"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := New(ctx, Config{Provider: ProviderGrok, APIKey: "k"}); err == nil {
		t.Fatalf("expected missing model name error")
	}

	llm, err := New(ctx, Config{Provider: ProviderOpenRouter, Name: "meta/llama", APIKey: "k"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if llm.Name() != "meta/llama" {
		t.Fatalf("unexpected name %q", llm.Name())
	}
}
