package app

import (
	"context"
	"fmt"

	"aligncall/internal/ai"
)

// Completer is a chat completion endpoint.
type Completer interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

// groundedSystemPrompt keeps the phone agent inside the retrieved context and
// in a register that text-to-speech can read out.
const groundedSystemPrompt = `You are the knowledge assistant behind a phone agent for a clear-aligner company. The agent reads your reply aloud to a customer on a live call.

Rules:
1. Use only the information in the Context. Never use outside knowledge and never guess.
2. If the Context does not contain the answer, reply exactly: I don't know.
3. Answer in one to three short spoken sentences. No lists, no markdown, no emojis, no URLs. Write numbers the way they should be read out.
4. Keep phone numbers, prices and timelines exactly as they appear in the Context.

Location questions:
- If a pincode matches several cities or areas, ask the customer which city they are in.
- If the customer gives only a city, mention up to three clinic or area names from the Context for that city and ask for their pincode.
- If nothing in the Context matches the location, say you are sorry, that you could not find a clinic for that location right now, and offer a home scan or a callback from the team.`

type AnswerComposer struct {
	completer Completer
}

func NewAnswerComposer(completer Completer) *AnswerComposer {
	return &AnswerComposer{completer: completer}
}

// Compose asks the model to answer query from the retrieved passages and
// returns the reply verbatim.
func (c *AnswerComposer) Compose(ctx context.Context, query, passages string) (string, error) {
	reply, err := c.completer.Complete(ctx, []ai.ChatMessage{
		{Role: "system", Content: groundedSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context: %s\n\nQuery: %s", passages, query)},
	})
	if err != nil {
		return "", fmt.Errorf("compose answer failed: %w", err)
	}
	return reply, nil
}
