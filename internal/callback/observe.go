package callback

import (
	"context"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/genai"

	"github.com/easeaico/mirror-clarity/internal/utils"
)

// ObserveFunc records one user message against the clarity profile.
type ObserveFunc func(ctx context.Context, userID, text string) error

// NewObserveCallback returns an after-agent callback that hands the turn's
// user message to observe. It runs after the reply so the message is not
// recalled as a memory of itself.
func NewObserveCallback(observe ObserveFunc) agent.AfterAgentCallback {
	return func(ctx agent.CallbackContext) (*genai.Content, error) {
		text := strings.TrimSpace(utils.ExtractContentText(ctx.UserContent()))
		if text == "" {
			return nil, nil
		}
		if err := observe(ctx, ctx.UserID(), text); err != nil {
			return nil, err
		}
		return nil, nil
	}
}
