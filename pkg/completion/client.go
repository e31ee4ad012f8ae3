package completion

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/haeun/whatif/pkg/story"
)

// fallbackReplies keep the conversation going when the provider fails.
var fallbackReplies = []string{
	"What a fun thought! What do you think happened next?",
	"What a creative idea! How did the story go on from there?",
	"Great imagination! How did the other characters feel about that?",
}

// Client wraps a provider with moderation and graceful degradation. A
// provider failure never surfaces to the caller; conversation continues
// with a fallback reply.
type Client struct {
	provider  Provider
	moderator *Moderator
	logger    zerolog.Logger
	fallbacks int
}

// NewClient creates a completion client.
func NewClient(provider Provider, moderator *Moderator, logger zerolog.Logger) *Client {
	if moderator == nil {
		moderator = NewModerator()
	}
	return &Client{
		provider:  provider,
		moderator: moderator,
		logger:    logger,
	}
}

// Complete produces the assistant's reply for one user message.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	if c.moderator.Flagged(req.Message) {
		c.logger.Debug().Msg("Message flagged by moderation, returning redirect")
		return &Response{Reply: RedirectReply}, nil
	}

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		reply := fallbackReplies[c.fallbacks%len(fallbackReplies)]
		c.fallbacks++
		c.logger.Warn().
			Err(err).
			Str("provider", c.provider.Provider()).
			Msg("Completion failed, using fallback reply")
		return &Response{Reply: reply}, nil
	}

	return resp, nil
}

// OpeningQuestion produces the assistant-authored first message for a
// fresh session about the given story. Falls back to a generic opener
// when the provider is unavailable.
func (c *Client) OpeningQuestion(ctx context.Context, st *story.Story) string {
	message := "Please start our conversation: introduce the story briefly and ask the first what-if question."
	if st == nil {
		message = "Please start our conversation: ask me which folktale I want to reimagine."
	}

	resp, err := c.provider.Complete(ctx, Request{Message: message, Story: st})
	if err != nil || resp.Reply == "" {
		c.logger.Warn().Err(err).Msg("Opening question generation failed, using default")
		if st != nil && st.Title != "" {
			return fmt.Sprintf("Let's imagine %s together. What if the story had started differently?", st.Title)
		}
		return "Which folktale would you like to talk about?"
	}
	return resp.Reply
}
