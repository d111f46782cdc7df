// Package signal turns free text into a clarity.Signal with an LLM.
package signal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/mirror-clarity/internal/clarity"
	"github.com/easeaico/mirror-clarity/internal/types"
	"github.com/easeaico/mirror-clarity/internal/utils"
)

const systemInstruction = `You read one journal entry or chat message and describe what it reveals about the writer.
Return only a JSON object with these fields:
- "category": one of journal, dm, rant, philosophy, flirt, tag_feedback, rate_reply, or "" if unsure.
- "negative": true only if the writer is rejecting or complaining about a previous reply.
- "issues": short phrases naming what was wrong with that reply, empty otherwise.
- "adjustments": trait deltas between -1 and 1 for traits the text clearly shows. Allowed traits:
  humor, empathy, ambition, flirtiness, logic, boldness, memory, depth, adaptability.
- "reflection": one or two sentences reflecting the entry back to the writer.
Do not include any other text.`

// output is the wire shape requested from the model.
type output struct {
	Category    string             `json:"category,omitempty" jsonschema:"input category"`
	Negative    bool               `json:"negative" jsonschema:"whether the text rejects the previous reply"`
	Issues      []string           `json:"issues,omitempty"`
	Adjustments map[string]float64 `json:"adjustments,omitempty" jsonschema:"trait deltas in [-1,1]"`
	Reflection  string             `json:"reflection,omitempty"`
}

// Analyzer classifies text into a Signal.
type Analyzer struct {
	model     model.LLM
	validator *jsonschema.Resolved
}

// NewAnalyzer returns an Analyzer backed by m.
func NewAnalyzer(m model.LLM) (*Analyzer, error) {
	if m == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	resolved, err := outputSchema()
	if err != nil {
		return nil, err
	}
	return &Analyzer{model: m, validator: resolved}, nil
}

// Analyze returns the Signal for text. Empty text yields a zero Signal without
// calling the model.
func (a *Analyzer) Analyze(ctx context.Context, text string) (clarity.Signal, error) {
	if a == nil || a.model == nil {
		return clarity.Signal{}, fmt.Errorf("signal analyzer not configured")
	}
	if strings.TrimSpace(text) == "" {
		return clarity.Signal{}, nil
	}

	req := &model.LLMRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText(text, "user"),
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, "system"),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    responseSchema(),
			Temperature:       genai.Ptr[float32](0),
		},
	}

	seq := a.model.GenerateContent(ctx, req, false)
	var resp *model.LLMResponse
	var err error
	seq(func(r *model.LLMResponse, e error) bool {
		resp = r
		err = e
		return false
	})
	if err != nil {
		return clarity.Signal{}, fmt.Errorf("failed to generate signal: %w", err)
	}
	if resp == nil || resp.Content == nil {
		return clarity.Signal{}, fmt.Errorf("empty model response")
	}

	sig, err := a.parse(utils.ExtractContentText(resp.Content))
	if err != nil {
		slog.Warn("discarding model signal", "model", a.model.Name(), "error", err.Error())
		return clarity.Signal{}, err
	}
	return sig, nil
}

func (a *Analyzer) parse(raw string) (clarity.Signal, error) {
	decoded, err := utils.DecodeJSONObject(raw)
	if err != nil {
		return clarity.Signal{}, err
	}
	if err := a.validator.Validate(decoded); err != nil {
		return clarity.Signal{}, fmt.Errorf("%w: model output does not match schema: %w", types.ErrInvalidArgument, err)
	}

	sig := clarity.Signal{Negative: boolField(decoded, "negative")}
	if category, _ := decoded["category"].(string); category != "" {
		sig.Category = clarity.ParseInputCategory(category)
	}
	if issues, ok := decoded["issues"].([]any); ok {
		for _, issue := range issues {
			if s, ok := issue.(string); ok && strings.TrimSpace(s) != "" {
				sig.Issues = append(sig.Issues, strings.TrimSpace(s))
			}
		}
	}
	if adjustments, ok := decoded["adjustments"].(map[string]any); ok && len(adjustments) > 0 {
		sig.Adjustments = make(map[types.TraitName]float64, len(adjustments))
		for key, value := range adjustments {
			name, ok := types.ParseTraitName(strings.ToLower(strings.TrimSpace(key)))
			if !ok {
				return clarity.Signal{}, fmt.Errorf("%w: unknown trait %q", types.ErrInvalidArgument, key)
			}
			delta, ok := value.(float64)
			if !ok {
				return clarity.Signal{}, fmt.Errorf("%w: adjustment for %q is not a number", types.ErrInvalidArgument, key)
			}
			sig.Adjustments[name] = delta
		}
	}
	sig.Reflection, _ = decoded["reflection"].(string)
	sig.Reflection = strings.TrimSpace(sig.Reflection)

	if err := sig.Validate(); err != nil {
		return clarity.Signal{}, err
	}
	return sig, nil
}

func boolField(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func outputSchema() (*jsonschema.Resolved, error) {
	schema, err := jsonschema.For[output](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build signal schema: %w", err)
	}
	if prop := schema.Properties["category"]; prop != nil {
		enum := []any{""}
		for _, c := range clarity.InputCategories {
			enum = append(enum, string(c))
		}
		prop.Enum = enum
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve signal schema: %w", err)
	}
	return resolved, nil
}

// responseSchema mirrors output for providers that enforce a response schema.
func responseSchema() *genai.Schema {
	adjustments := make(map[string]*genai.Schema, len(types.TraitNames))
	for _, name := range types.TraitNames {
		adjustments[string(name)] = &genai.Schema{
			Type:    genai.TypeNumber,
			Minimum: genai.Ptr(-1.0),
			Maximum: genai.Ptr(1.0),
		}
	}
	categories := []string{""}
	for _, c := range clarity.InputCategories {
		categories = append(categories, string(c))
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category":    {Type: genai.TypeString, Enum: categories},
			"negative":    {Type: genai.TypeBoolean},
			"issues":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"adjustments": {Type: genai.TypeObject, Properties: adjustments},
			"reflection":  {Type: genai.TypeString},
		},
		Required: []string{"negative"},
	}
}
