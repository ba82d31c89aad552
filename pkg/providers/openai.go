package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI calls the chat completions API. Pointing APIBase at any
// OpenAI-compatible endpoint works as well.
type OpenAI struct {
	client openai.Client
}

func NewOpenAI(apiKey, apiBase string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, model string, maxTokens int, system string, messages []Message) (string, error) {
	var turns []openai.ChatCompletionMessageParamUnion
	if system != "" {
		turns = append(turns, openai.SystemMessage(system))
	}
	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			turns = append(turns, openai.AssistantMessage(msg.Content))
		default:
			turns = append(turns, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: turns,
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai API returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
