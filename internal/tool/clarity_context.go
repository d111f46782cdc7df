// Package tool provides ADK tools that surface clarity state to agents.
package tool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/adk/memory"
	"google.golang.org/adk/model"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/easeaico/mirror-clarity/internal/clarity"
	"github.com/easeaico/mirror-clarity/internal/types"
	"github.com/easeaico/mirror-clarity/internal/utils"
)

const (
	clarityContextToolName        = "clarity_context"
	clarityContextToolDescription = "Injects the user's personality archetype, tone tags and related memories before each turn."
)

// ProfileSource loads a clarity profile.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (*types.ClarityProfile, error)
}

// ClarityContextTool appends the user's tone profile and recalled memories
// to the system instruction of every request.
type ClarityContextTool struct {
	profiles   ProfileSource
	maxEntries int
}

// NewClarityContextTool creates the tool. maxEntries <= 0 keeps every memory returned.
func NewClarityContextTool(profiles ProfileSource, maxEntries int) *ClarityContextTool {
	return &ClarityContextTool{profiles: profiles, maxEntries: maxEntries}
}

// Name implements tool.Tool.
func (t *ClarityContextTool) Name() string {
	return clarityContextToolName
}

// Description implements tool.Tool.
func (t *ClarityContextTool) Description() string {
	return clarityContextToolDescription
}

// IsLongRunning implements tool.Tool.
func (t *ClarityContextTool) IsLongRunning() bool {
	return false
}

// ProcessRequest injects the profile and memories into the system instruction.
func (t *ClarityContextTool) ProcessRequest(ctx tool.Context, req *model.LLMRequest) error {
	if ctx == nil || req == nil {
		return nil
	}

	if t.profiles != nil {
		p, err := t.profiles.Profile(ctx, ctx.UserID())
		if err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		appendInstruction(req, buildProfileInstruction(p))
	}

	query := strings.TrimSpace(utils.ExtractContentText(ctx.UserContent()))
	if query == "" {
		return nil
	}

	resp, err := ctx.SearchMemory(ctx, query)
	if err != nil {
		slog.Error("failed to search memory", "error", err.Error())
		return fmt.Errorf("failed to search memory: %w", err)
	}
	if resp == nil {
		return nil
	}
	appendInstruction(req, buildMemoryInstruction(resp.Memories, t.maxEntries))
	return nil
}

// buildProfileInstruction returns "" until the user has an archetype.
func buildProfileInstruction(p *types.ClarityProfile) string {
	if p == nil || p.Archetype == "" {
		return ""
	}
	pc := clarity.NewPromptContext(p, nil)

	var b strings.Builder
	b.WriteString("<USER_PROFILE>\n")
	fmt.Fprintf(&b, "Archetype: %s %s\n", pc.Archetype, pc.Emoji)
	if pc.Description != "" {
		fmt.Fprintf(&b, "Summary: %s\n", pc.Description)
	}
	fmt.Fprintf(&b, "Clarity level: %d (%s, %.0f%% to next)\n", pc.Level, pc.Stage, pc.Progress*100)
	if len(pc.ToneTags) > 0 {
		fmt.Fprintf(&b, "Preferred tone: %s\n", strings.Join(pc.ToneTags, ", "))
	}
	b.WriteString("</USER_PROFILE>\n")
	return b.String()
}

func buildMemoryInstruction(memories []memory.Entry, maxEntries int) string {
	if len(memories) == 0 {
		return ""
	}
	if maxEntries > 0 && len(memories) > maxEntries {
		memories = memories[:maxEntries]
	}

	var b strings.Builder
	written := 0
	b.WriteString("Things the user has shared before that relate to this message:\n<USER_MEMORIES>\n")
	for _, entry := range memories {
		text := strings.TrimSpace(utils.ExtractContentText(entry.Content))
		if text == "" {
			continue
		}
		stamp := ""
		if !entry.Timestamp.IsZero() {
			stamp = entry.Timestamp.UTC().Format(time.RFC3339)
		}
		b.WriteString(formatMemoryLine(stamp, text))
		b.WriteString("\n")
		written++
	}
	if written == 0 {
		return ""
	}
	b.WriteString("</USER_MEMORIES>\n")
	return b.String()
}

func formatMemoryLine(stamp, text string) string {
	if stamp == "" {
		return "- " + text
	}
	return "- [" + stamp + "] " + text
}

func appendInstruction(req *model.LLMRequest, instruction string) {
	if strings.TrimSpace(instruction) == "" {
		return
	}
	if req.Config == nil {
		req.Config = &genai.GenerateContentConfig{}
	}
	if req.Config.SystemInstruction == nil {
		req.Config.SystemInstruction = genai.NewContentFromText(instruction, genai.RoleUser)
		return
	}
	req.Config.SystemInstruction.Parts = append(req.Config.SystemInstruction.Parts, genai.NewPartFromText(instruction))
}
