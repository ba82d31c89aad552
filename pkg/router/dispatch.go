package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/bus"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/logger"
)

type dispatchHooks struct {
	deliver func(bus.Reply) error
	onError func(error)
}

// Dispatcher bridges the gate and the agent loop over the message bus.
// Dispatch publishes the inbound context and registers delivery hooks for
// the conversation; Run pumps agent replies back through those hooks.
// Delivery failures go to onError and never propagate.
type Dispatcher struct {
	bus *bus.MessageBus

	mu      sync.Mutex
	waiters map[string]dispatchHooks
}

func NewDispatcher(b *bus.MessageBus) *Dispatcher {
	return &Dispatcher{bus: b, waiters: map[string]dispatchHooks{}}
}

func conversationKey(channelID, accountID, to string) string {
	return fmt.Sprintf("%s|%s|%s", channelID, accountID, to)
}

// Dispatch hands one gated inbound context to the agent loop. The hooks
// replace any prior hooks for the same conversation.
func (d *Dispatcher) Dispatch(ctx context.Context, inbound bus.InboundContext, deliver func(bus.Reply) error, onError func(error)) {
	key := conversationKey(inbound.Channel, inbound.AccountID, inbound.To)
	d.mu.Lock()
	d.waiters[key] = dispatchHooks{deliver: deliver, onError: onError}
	d.mu.Unlock()

	if err := d.bus.PublishInbound(ctx, inbound); err != nil {
		d.mu.Lock()
		delete(d.waiters, key)
		d.mu.Unlock()
		if onError != nil {
			onError(err)
		}
	}
}

// Run consumes agent replies until the context or bus closes.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		reply, ok := d.bus.ConsumeReply(ctx)
		if !ok {
			return
		}
		d.mu.Lock()
		hooks, found := d.waiters[conversationKey(reply.Channel, reply.AccountID, reply.To)]
		d.mu.Unlock()
		if !found {
			logger.WarnCF("router", "Reply with no live conversation", map[string]any{
				"channel": reply.Channel,
				"to":      reply.To,
			})
			continue
		}
		if err := hooks.deliver(reply); err != nil && hooks.onError != nil {
			hooks.onError(err)
		}
	}
}
