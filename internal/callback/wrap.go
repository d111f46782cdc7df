// Package callback holds ADK agent callbacks that feed chat turns back into
// the clarity engine.
package callback

import (
	"fmt"
	"log/slog"

	"google.golang.org/adk/agent"
	"google.golang.org/genai"
)

// WrapAfterCallback logs cb and turns a panic into an error so one bad turn
// does not take down the runner.
func WrapAfterCallback(name string, cb agent.AfterAgentCallback) agent.AfterAgentCallback {
	return func(ctx agent.CallbackContext) (content *genai.Content, err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("after callback panic", "name", name, "panic", r)
				content, err = nil, fmt.Errorf("callback %s panicked: %v", name, r)
			}
		}()

		slog.Debug("after callback start", "name", name, "user_id", ctx.UserID())
		content, err = cb(ctx)
		if err != nil {
			slog.Error("after callback error", "name", name, "error", err.Error())
			return content, err
		}
		slog.Debug("after callback done", "name", name, "has_content", content != nil)
		return content, nil
	}
}
