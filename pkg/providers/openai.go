package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hagglekit/hagglekit/pkg/errdefs"
)

// OpenAIProvider speaks the OpenAI chat-completion API. With a custom
// base URL it also covers OpenAI-compatible gateways.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, apiBase, defaultModel string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  defaultModel,
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*Response, error) {
	if model == "" {
		model = p.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if t, ok := options["temperature"].(float64); ok {
		params.Temperature = openai.Float(t)
	}
	if m, ok := options["max_tokens"].(int); ok {
		params.MaxTokens = openai.Int(int64(m))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errdefs.Transport("openai", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errdefs.Parse("chat completion", fmt.Errorf("no choices in response"))
	}

	return &Response{
		Content: completion.Choices[0].Message.Content,
		Model:   completion.Model,
	}, nil
}

func (p *OpenAIProvider) GetDefaultModel() string {
	return p.model
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
