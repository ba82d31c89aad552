// Package agent is the reference reply loop: it consumes gated inbound
// contexts from the bus, asks the configured LLM provider for a
// completion, and publishes the reply for delivery.
package agent

import (
	"context"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/bus"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/logger"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/providers"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/router"
)

const historyWindow = 40

const defaultSystemPrompt = "You are a helpful assistant replying inside a chat conversation. Keep answers concise and conversational."

type Loop struct {
	cfg      *config.Config
	bus      *bus.MessageBus
	provider providers.Provider
	sessions router.Sessions
}

func NewLoop(cfg *config.Config, b *bus.MessageBus, provider providers.Provider, sessions router.Sessions) *Loop {
	return &Loop{cfg: cfg, bus: b, provider: provider, sessions: sessions}
}

// Run processes inbound contexts until the context or bus closes. Events
// are handled one at a time in arrival order.
func (l *Loop) Run(ctx context.Context) {
	for {
		inbound, ok := l.bus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		l.handle(ctx, inbound)
	}
}

func (l *Loop) handle(ctx context.Context, inbound bus.InboundContext) {
	storePath := l.sessions.StorePath(inbound.AgentID)
	history, err := l.sessions.History(storePath, inbound.SessionKey, historyWindow)
	if err != nil {
		logger.WarnCF("agent", "History read failed", map[string]any{
			"session": inbound.SessionKey,
			"error":   err.Error(),
		})
	}

	messages := make([]providers.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, providers.Message{Role: turn.Role, Content: turn.Text})
	}
	messages = append(messages, providers.Message{Role: "user", Content: inbound.Body})

	system := l.cfg.Agent.System
	if system == "" {
		system = defaultSystemPrompt
	}

	text, err := l.provider.Complete(ctx, l.cfg.Agent.Model, l.cfg.Agent.MaxTokens, system, messages)
	if err != nil {
		logger.ErrorCF("agent", "Completion failed", map[string]any{
			"provider": l.provider.Name(),
			"session":  inbound.SessionKey,
			"error":    err.Error(),
		})
		return
	}
	if text == "" {
		return
	}

	if err := l.sessions.AppendHistory(storePath, inbound.SessionKey, "user", inbound.Body); err != nil {
		logger.WarnCF("agent", "History write failed", map[string]any{
			"session": inbound.SessionKey,
			"error":   err.Error(),
		})
	} else if err := l.sessions.AppendHistory(storePath, inbound.SessionKey, "assistant", text); err != nil {
		logger.WarnCF("agent", "History write failed", map[string]any{
			"session": inbound.SessionKey,
			"error":   err.Error(),
		})
	}

	reply := bus.Reply{
		Channel:   inbound.Channel,
		AccountID: inbound.AccountID,
		To:        inbound.To,
		Text:      text,
	}
	if inbound.ChatType == "group" {
		reply.ReplyToID = inbound.MessageID
	}
	if err := l.bus.PublishReply(ctx, reply); err != nil {
		logger.ErrorCF("agent", "Reply publish failed", map[string]any{
			"session": inbound.SessionKey,
			"error":   err.Error(),
		})
	}
}
