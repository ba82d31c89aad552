package channel

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

// Target resolution modes. Implicit and heartbeat deliveries carry low
// confidence in the requested destination and may be redirected to the
// allow-list.
const (
	ModeExplicit  = "explicit"
	ModeImplicit  = "implicit"
	ModeHeartbeat = "heartbeat"
)

// TargetResolutionError reports an unusable outbound destination.
type TargetResolutionError struct {
	Reason string
}

func (e *TargetResolutionError) Error() string { return e.Reason }

// ResolveTarget picks the destination for an outbound message. An empty
// rawTo falls back to the allow-list's first entry. In implicit or
// heartbeat mode a parsed target absent from a non-empty, non-wildcard
// allow-list is replaced by the list's first entry.
func ResolveTarget(rawTo string, allowFrom []string, mode string) (Target, error) {
	allow := NormalizeAllowList(allowFrom)

	if rawTo != "" {
		target, ok := ParseTarget(rawTo)
		if !ok {
			return Target{}, &TargetResolutionError{Reason: "invalid QQ target: " + rawTo}
		}
		if (mode == ModeImplicit || mode == ModeHeartbeat) &&
			len(allow.Entries) > 0 && !allow.HasWildcard &&
			!allow.Allows(FormatTarget(target)) {
			if fallback, ok := ParseTarget(allow.Entries[0]); ok {
				return fallback, nil
			}
		}
		return target, nil
	}

	if len(allow.Entries) > 0 {
		if fallback, ok := ParseTarget(allow.Entries[0]); ok {
			return fallback, nil
		}
	}
	return Target{}, &TargetResolutionError{
		Reason: "QQ outbound target is missing; set --to or channel.allow_from",
	}
}

// Delivery describes one completed outbound send.
type Delivery struct {
	Channel   string
	MessageID string
	To        string
	Timestamp time.Time
}

// Outbound is the send path used when the router originates a message
// rather than replying to an inbound one.
type Outbound struct {
	cfg      *config.Config
	registry *onebot.Registry
	selfSent *SelfSentStore
}

func NewOutbound(cfg *config.Config, registry *onebot.Registry, selfSent *SelfSentStore) *Outbound {
	return &Outbound{cfg: cfg, registry: registry, selfSent: selfSent}
}

// Send resolves the account and target, delivers the message, and records
// it in the echo store.
func (o *Outbound) Send(ctx context.Context, accountID, rawTo, text, replyToID, mediaURL, mode string) (*Delivery, error) {
	account := o.cfg.ResolveAccount(accountID)
	if !account.Enabled {
		return nil, &ConfigurationError{AccountID: account.AccountID, Reason: "account disabled"}
	}

	allowFrom := append([]string{}, account.Config.AllowFrom...)
	allowFrom = append(allowFrom, account.Config.GroupAllowFrom...)
	target, err := ResolveTarget(rawTo, allowFrom, mode)
	if err != nil {
		return nil, err
	}

	client, ok := o.registry.Get(account.AccountID)
	if !ok {
		return nil, fmt.Errorf("QQ client not running for account %s", account.AccountID)
	}

	resp, err := SendMessage(ctx, client, target, text, replyToID, mediaURL)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &onebot.DeliveryError{Action: "send message", Reason: resp.ErrorText()}
	}
	o.selfSent.RecordResponse(account.AccountID, resp, FormatTarget(target), text)

	messageID := resp.MessageID()
	if messageID == "" {
		messageID = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	return &Delivery{
		Channel:   ChannelID,
		MessageID: messageID,
		To:        FormatTarget(target),
		Timestamp: time.Now(),
	}, nil
}
