package completion

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haeun/whatif/pkg/session"
)

// AnthropicProvider implements Provider for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &AnthropicProvider{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

// Provider returns the provider name.
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Complete makes an API call to Anthropic Claude.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := []anthropic.MessageParam{}

	for _, turn := range trimHistory(req.History) {
		switch turn.Role {
		case session.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(turn.Content),
			))
		case session.RoleAssistant:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(turn.Content),
				},
			})
		}
	}

	messages = append(messages, anthropic.NewUserMessage(
		anthropic.NewTextBlock(req.Message),
	))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  messages,
		MaxTokens: int64(p.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(req.Story)},
		},
	}
	if p.temperature > 0 {
		params.Temperature = anthropic.Float(p.temperature)
	}

	response, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	for _, block := range response.Content {
		if block.Type == "text" {
			return &Response{Reply: block.Text}, nil
		}
	}
	return nil, fmt.Errorf("no text content in completion response")
}
