// Package completion calls the remote chat-completion endpoint that
// produces the assistant's next storytelling question.
package completion

import (
	"context"
	"fmt"

	"github.com/haeun/whatif/pkg/session"
	"github.com/haeun/whatif/pkg/story"
)

// maxHistoryTurns bounds the conversation context sent with a request.
const maxHistoryTurns = 6

// Request is one chat-completion call.
type Request struct {
	Message string
	Story   *story.Story
	History []session.Turn
}

// Response is the assistant's reply.
type Response struct {
	Reply string
}

// Provider is an LLM API backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Provider() string
}

// Config selects and configures a provider.
type Config struct {
	Provider    string // openai, anthropic
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewProvider creates a provider from config.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// trimHistory keeps only the most recent turns.
func trimHistory(turns []session.Turn) []session.Turn {
	if len(turns) <= maxHistoryTurns {
		return turns
	}
	return turns[len(turns)-maxHistoryTurns:]
}

// systemPrompt frames the assistant as a "what if" storyteller for the
// given story.
func systemPrompt(st *story.Story) string {
	prompt := `You are a storyteller helping children reimagine folktales together.

Rules:
1. If no folktale has been chosen, suggest one or ask which the child wants.
2. Once a folktale is chosen, introduce it in two or three short sentences.
3. Then ask a first question in the form "What if ... had happened instead?"
4. After every answer, weave the answer into a new "what if" question.
5. Ask exactly one question per reply, in one sentence.
6. Speak warmly and simply, as to a young child.
7. Never repeat a phrasing; build on what was just said.
8. If the child signals they are done, summarize the new story in three
or four sentences and close with its lesson in one sentence.
9. Reply in at most two sentences: one reaction, one question.`

	if st != nil && st.Title != "" {
		prompt += "\n\nCurrent story: " + st.Title
		if st.Summary != "" {
			prompt += "\nStory summary: " + st.Summary
		}
	}
	return prompt
}
