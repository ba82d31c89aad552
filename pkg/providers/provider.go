// Package providers wraps the LLM backends the reference agent can talk
// to.
package providers

import (
	"context"
	"fmt"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
)

// Message is one conversation turn sent to a provider.
type Message struct {
	Role    string // "user" | "assistant"
	Content string
}

// Provider generates a completion for a conversation.
type Provider interface {
	Name() string
	Complete(ctx context.Context, model string, maxTokens int, system string, messages []Message) (string, error)
}

// New builds the provider selected by the agent config.
func New(cfg config.AgentConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic", "":
		return NewAnthropic(cfg.APIKey, cfg.APIBase), nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.APIBase), nil
	}
	return nil, fmt.Errorf("unknown agent provider: %s", cfg.Provider)
}
