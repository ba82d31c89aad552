// Package router implements the conversation-side collaborators consumed
// by the channel gate: pairing, command detection, route resolution,
// session persistence, envelope formatting, and reply dispatch.
package router

import (
	"context"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/bus"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/channel"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
)

// Router bundles the collaborator implementations around one config and
// one message bus.
type Router struct {
	Pairing    *Pairing
	Commands   Commands
	Routing    Routing
	Sessions   Sessions
	Envelope   Envelope
	Dispatcher *Dispatcher
}

func New(cfg *config.Config, b *bus.MessageBus, pairingPath string) *Router {
	return &Router{
		Pairing:    NewPairing(pairingPath),
		Commands:   NewCommands(cfg),
		Routing:    NewRouting(cfg),
		Sessions:   NewSessions(cfg),
		Envelope:   Envelope{},
		Dispatcher: NewDispatcher(b),
	}
}

// replyService joins envelope formatting and dispatch into the single
// reply-side contract the gate consumes.
type replyService struct {
	Envelope
	dispatcher *Dispatcher
}

func (r replyService) Dispatch(ctx context.Context, inbound bus.InboundContext, deliver func(bus.Reply) error, onError func(error)) {
	r.dispatcher.Dispatch(ctx, inbound, deliver, onError)
}

// Services adapts the router into the channel gate's collaborator set.
func (r *Router) Services() channel.Services {
	return channel.Services{
		Pairing:  r.Pairing,
		Commands: r.Commands,
		Routing:  r.Routing,
		Session:  r.Sessions,
		Reply:    replyService{Envelope: r.Envelope, dispatcher: r.Dispatcher},
	}
}

// Run starts the reply pump; it returns when ctx is cancelled or the bus
// closes.
func (r *Router) Run(ctx context.Context) {
	r.Dispatcher.Run(ctx)
}
