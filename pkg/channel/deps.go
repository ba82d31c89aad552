package channel

import (
	"context"
	"time"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/bus"
)

// ChannelID is the surface identifier this adapter registers under.
const ChannelID = "qq"

// Route is a resolved conversation route.
type Route struct {
	AgentID    string
	AccountID  string
	SessionKey string
}

// EnvelopeParams describes one inbound message for display formatting.
type EnvelopeParams struct {
	Channel           string
	From              string
	Timestamp         time.Time
	PreviousTimestamp time.Time
	Body              string
}

// PairingService manages pairing codes for unlisted direct senders.
type PairingService interface {
	// ReadAllowStore returns sender ids approved through pairing.
	ReadAllowStore(channel string) ([]string, error)
	// UpsertRequest records a pairing request, returning the code and
	// whether this call created it (false for an already pending one).
	UpsertRequest(channel, id, name string) (code string, created bool, err error)
	// BuildReply renders the pairing instructions sent to the peer.
	BuildReply(channel, idLine, code string) string
}

// CommandService detects control commands in message text.
type CommandService interface {
	HandleTextCommands(surface string) bool
	HasCommand(text string) bool
}

// RouteService resolves which agent and session a peer maps to.
type RouteService interface {
	ResolveRoute(channel, accountID string, peer bus.Peer) Route
}

// SessionService persists per-session metadata.
type SessionService interface {
	StorePath(agentID string) string
	UpdatedAt(storePath, sessionKey string) time.Time
	RecordInbound(storePath, sessionKey string, ctx bus.InboundContext) error
}

// ReplyService formats envelopes and runs the reply pipeline. Dispatch
// must call deliver for each produced payload and route every delivery
// failure through onError instead of returning it.
type ReplyService interface {
	FormatEnvelope(p EnvelopeParams) string
	Dispatch(ctx context.Context, inbound bus.InboundContext, deliver func(bus.Reply) error, onError func(err error))
}

// Services bundles the external collaborators the gate depends on.
type Services struct {
	Pairing  PairingService
	Commands CommandService
	Routing  RouteService
	Session  SessionService
	Reply    ReplyService
}
