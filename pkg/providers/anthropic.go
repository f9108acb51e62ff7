package providers

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hagglekit/hagglekit/pkg/errdefs"
)

// AnthropicProvider speaks the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey, apiBase, defaultModel string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  defaultModel,
	}
}

func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*Response, error) {
	if model == "" {
		model = p.model
	}

	maxTokens := 1024
	if m, ok := options["max_tokens"].(int); ok && m > 0 {
		maxTokens = m
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}
	if t, ok := options["temperature"].(float64); ok {
		params.Temperature = anthropic.Float(t)
	}

	// Anthropic takes the system turn out of band.
	var turns []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	params.Messages = turns

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errdefs.Transport("anthropic", err)
	}

	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, errdefs.Parse("anthropic message", fmt.Errorf("no text blocks in response"))
	}

	return &Response{Content: text, Model: string(resp.Model)}, nil
}

func (p *AnthropicProvider) GetDefaultModel() string {
	return p.model
}
