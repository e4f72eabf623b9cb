package llm

import (
	"context"
	"fmt"

	"charm.land/fantasy"
)

// PingPrompt is the message sent to check that a model answers.
const PingPrompt = "Checking connectivity"

// Ping performs one small generation against model.
func Ping(ctx context.Context, model fantasy.LanguageModel) error {
	_, err := model.Generate(ctx, fantasy.Call{
		Prompt: fantasy.Prompt{{
			Role:    fantasy.MessageRoleUser,
			Content: []fantasy.MessagePart{fantasy.TextPart{Text: PingPrompt}},
		}},
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return nil
}
