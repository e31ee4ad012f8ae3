package completion

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/haeun/whatif/pkg/session"
)

// OpenAIProvider implements Provider for OpenAI.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Provider returns the provider name.
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Complete makes an API call to OpenAI.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(req.Story)),
	}

	for _, turn := range trimHistory(req.History) {
		switch turn.Role {
		case session.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case session.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}

	messages = append(messages, openai.UserMessage(req.Message))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: messages,
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxTokens))
	}
	if p.temperature > 0 {
		params.Temperature = openai.Float(p.temperature)
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no completion choices returned")
	}

	return &Response{Reply: response.Choices[0].Message.Content}, nil
}
