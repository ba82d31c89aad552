package router

import (
	"fmt"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/bus"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/channel"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
)

// DefaultAgentID is used when no per-group agent override applies.
const DefaultAgentID = "default"

// Routing maps a peer to an agent and a stable session key.
type Routing struct {
	cfg *config.Config
}

func NewRouting(cfg *config.Config) Routing {
	return Routing{cfg: cfg}
}

// ResolveRoute keys conversations by channel, account, and peer: every
// direct peer and every group gets its own session.
func (r Routing) ResolveRoute(channelID, accountID string, peer bus.Peer) channel.Route {
	kind := peer.Kind
	if kind == "" {
		kind = "dm"
	}
	return channel.Route{
		AgentID:    DefaultAgentID,
		AccountID:  accountID,
		SessionKey: fmt.Sprintf("%s:%s:%s:%s", channelID, accountID, kind, peer.ID),
	}
}
