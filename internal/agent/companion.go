// Package agent runs the chat companion: an ADK llm agent whose tone follows
// the user's clarity profile and whose turns feed back into it.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/memory"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/easeaico/mirror-clarity/internal/callback"
	"github.com/easeaico/mirror-clarity/internal/clarity"
	claritytool "github.com/easeaico/mirror-clarity/internal/tool"
	"github.com/easeaico/mirror-clarity/internal/types"
	"github.com/easeaico/mirror-clarity/internal/utils"
)

const companionAppName = "mirror_clarity"

const companionInstruction = `You are Mirror, a conversational companion that reflects the user back to themselves.

Guidelines:
- Match the tone listed under USER_PROFILE when it is present. Without a profile, stay warm and neutral.
- Lean on USER_MEMORIES only when they are relevant to what the user just said; never recite them.
- Keep replies short and conversational. Ask at most one question per reply.
- Never mention archetypes, levels or scores unless the user asks about them.`

// CompanionConfig wires the companion to the engine.
type CompanionConfig struct {
	Model   model.LLM
	Service *clarity.Service
	// Memory backs ctx.SearchMemory inside tools; nil disables recall.
	Memory     memory.Service
	MaxEntries int
}

// Companion is a runner over the companion agent with in-memory sessions.
type Companion struct {
	runner   *runner.Runner
	sessions session.Service
}

// NewCompanion builds the companion agent and its runner.
func NewCompanion(cfg CompanionConfig) (*Companion, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("llm model is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("clarity service is required")
	}

	llmAgent, err := llmagent.New(llmagent.Config{
		Name:        "mirror_companion",
		Description: "Companion whose tone follows the user's clarity profile",
		Model:       cfg.Model,
		Instruction: companionInstruction,
		Tools:       []tool.Tool{claritytool.NewClarityContextTool(cfg.Service, cfg.MaxEntries)},
		AfterAgentCallbacks: []agent.AfterAgentCallback{
			callback.WrapAfterCallback("observe", callback.NewObserveCallback(observeTurn(cfg.Service))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create companion agent: %w", err)
	}

	sessions := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        companionAppName,
		Agent:          llmAgent,
		SessionService: sessions,
		MemoryService:  cfg.Memory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create companion runner: %w", err)
	}
	return &Companion{runner: r, sessions: sessions}, nil
}

// Reply runs one turn and returns the final model text.
func (c *Companion) Reply(ctx context.Context, userID, sessionID, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty message", types.ErrInvalidArgument)
	}
	if err := c.ensureSession(ctx, userID, sessionID); err != nil {
		return "", err
	}

	msg := genai.NewContentFromText(trimmed, genai.RoleUser)
	events := c.runner.Run(ctx, userID, sessionID, msg, agent.RunConfig{
		StreamingMode: agent.StreamingModeNone,
	})

	var last string
	for event, err := range events {
		if err != nil {
			return "", err
		}
		if event == nil || event.Content == nil || event.Author == string(genai.RoleUser) {
			continue
		}
		if reply := strings.TrimSpace(utils.ExtractContentText(event.Content)); reply != "" {
			last = reply
		}
		if event.IsFinalResponse() {
			break
		}
	}
	if last == "" {
		return "", fmt.Errorf("empty companion response")
	}
	return last, nil
}

func (c *Companion) ensureSession(ctx context.Context, userID, sessionID string) error {
	get := &session.GetRequest{AppName: companionAppName, UserID: userID, SessionID: sessionID}
	if _, err := c.sessions.Get(ctx, get); err == nil {
		return nil
	}
	if _, err := c.sessions.Create(ctx, &session.CreateRequest{
		AppName:   companionAppName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return fmt.Errorf("failed to create companion session: %w", err)
	}
	return nil
}

// observeTurn classifies the message when a classifier is configured and
// otherwise applies the plain chat bias. Users without an archetype are
// skipped until they take the quiz.
func observeTurn(svc *clarity.Service) callback.ObserveFunc {
	return func(ctx context.Context, userID, text string) error {
		var err error
		if svc.HasClassifier() {
			_, err = svc.Reflect(ctx, userID, text, types.MemorySourceChat)
		} else {
			_, err = svc.Observe(ctx, userID, text, types.MemorySourceChat)
		}
		if errors.Is(err, types.ErrProfileNotInitialized) {
			slog.Debug("skipping observation before quiz", "user_id", userID)
			return nil
		}
		return err
	}
}
