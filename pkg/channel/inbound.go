package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/bus"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/logger"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/message"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

// gate evaluates the inbound pipeline for one account: normalize the
// event, apply every drop rule in order, and hand survivors to the reply
// pipeline. Events are processed one at a time per account.
type gate struct {
	account  config.ResolvedAccount
	client   onebot.Client
	selfSent *SelfSentStore
	services Services
	commands config.CommandsConfig

	noteInbound  func(time.Time)
	noteOutbound func(time.Time)
	noteError    func(string)
}

// HandleEvent runs one event through the gate sequence. A failure in any
// step is contained here; one bad event never stops the loop.
func (g *gate) HandleEvent(ctx context.Context, event *onebot.Event) {
	defer func() {
		if r := recover(); r != nil {
			if g.noteError != nil {
				g.noteError(fmt.Sprintf("event handler panic: %v", r))
			}
			logger.ErrorCF("qq", "Event handler panic", map[string]any{
				"account": g.account.AccountID,
				"panic":   fmt.Sprintf("%v", r),
			})
		}
	}()
	if reason := g.process(ctx, event); reason != "" {
		logger.InfoCF("qq", "Dropped event", map[string]any{
			"account": g.account.AccountID,
			"reason":  reason,
		})
	}
}

// process returns a drop reason, or "" when the event was dispatched.
func (g *gate) process(ctx context.Context, event *onebot.Event) string {
	if event.PostType != onebot.PostMessage && event.PostType != onebot.PostMessageSent {
		return "post_type " + event.PostType
	}
	if event.PostType == onebot.PostMessageSent && !g.client.ReportSelfMessage() {
		return "self message reporting disabled"
	}

	isGroup := event.IsGroup()
	senderID := event.UserID.String()
	if senderID == "" {
		return "missing sender"
	}
	groupID := event.GroupID.String()
	if isGroup && groupID == "" {
		return "group message without group id"
	}
	target := Target{Kind: TargetPrivate, ID: senderID}
	if isGroup {
		target = Target{Kind: TargetGroup, ID: groupID}
	}

	if !isGroup && event.SubType == onebot.SubTypeOffline && !g.client.ReportOfflineMessage() {
		return "offline message reporting disabled"
	}

	parsed := message.Parse(event.Message, event.RawMessage)
	rawBody := parsed.Text
	if rawBody == "" && len(parsed.Media) == 0 {
		return "empty message"
	}

	messageID := event.MessageID.String()
	if event.PostType == onebot.PostMessageSent &&
		g.selfSent.WasSelfSent(g.account.AccountID, messageID, FormatTarget(target), rawBody) {
		return "self-sent echo"
	}

	wasMentioned := false
	if isGroup {
		wasMentioned = message.HasSelfMention(parsed.Mentions, event.SelfID.String())
	}
	timestamp := time.Now()
	if event.Time > 0 {
		timestamp = time.Unix(event.Time, 0)
	}
	if g.noteInbound != nil {
		g.noteInbound(timestamp)
	}

	acct := g.account.Config
	dmPolicy := acct.DMPolicy
	if dmPolicy == "" {
		dmPolicy = config.DMPolicyPairing
	}
	groupPolicy := acct.GroupPolicy
	if groupPolicy == "" {
		groupPolicy = config.GroupPolicyAllowlist
	}

	groupAllow := NormalizeAllowList(acct.GroupAllowFrom)
	storeAllow, err := g.services.Pairing.ReadAllowStore(ChannelID)
	if err != nil {
		storeAllow = nil
	}
	dmAllow := MergeAllowLists(acct.AllowFrom, storeAllow)

	allowTextCommands := g.services.Commands.HandleTextCommands(ChannelID)
	hasCommand := g.services.Commands.HasCommand(rawBody)
	commandAllow := dmAllow
	commandKey := senderID
	if isGroup {
		commandAllow = groupAllow
		commandKey = "group:" + groupID
	}
	commandAuthorized := !g.commands.UseAccessGroups() ||
		!commandAllow.Configured() || commandAllow.Allows(commandKey)

	var groupOverride *config.GroupConfig
	if isGroup {
		if override, ok := acct.Groups[groupID]; ok {
			groupOverride = &override
		}
	}

	if isGroup {
		if groupOverride != nil && groupOverride.Enabled != nil && !*groupOverride.Enabled {
			return "group disabled"
		}
		if groupPolicy == config.GroupPolicyDisabled {
			return "group policy disabled"
		}
		if groupPolicy == config.GroupPolicyAllowlist && !groupAllow.Allows("group:"+groupID) {
			return "group not allowlisted"
		}
		if hasCommand && !commandAuthorized {
			return "unauthorized command"
		}

		requireMention := acct.RequireMention == nil || *acct.RequireMention
		if groupOverride != nil && groupOverride.RequireMention != nil {
			requireMention = *groupOverride.RequireMention
		}
		commandBypass := commandAuthorized && hasCommand ||
			allowTextCommands && hasCommand
		if requireMention && !wasMentioned && !commandBypass {
			return "mention required"
		}
	} else {
		if dmPolicy == config.DMPolicyDisabled {
			return "dm policy disabled"
		}
		if dmPolicy != config.DMPolicyOpen && !dmAllow.Allows(senderID) {
			if dmPolicy == config.DMPolicyPairing {
				g.sendPairingReply(ctx, event, target, senderID)
			}
			return fmt.Sprintf("sender not allowlisted (dmPolicy=%s)", dmPolicy)
		}
	}

	g.dispatch(ctx, event, parsed, target, wasMentioned, commandAuthorized, groupOverride, timestamp)
	return ""
}

// sendPairingReply issues pairing instructions to an unlisted direct
// sender, at most once per pending request. The event is dropped
// afterwards whether or not the reply went out.
func (g *gate) sendPairingReply(ctx context.Context, event *onebot.Event, target Target, senderID string) {
	name := ""
	if event.Sender != nil {
		name = event.Sender.Nickname
	}
	code, created, err := g.services.Pairing.UpsertRequest(ChannelID, senderID, name)
	if err != nil {
		logger.ErrorCF("qq", "Pairing request failed", map[string]any{
			"account": g.account.AccountID,
			"sender":  senderID,
			"error":   err.Error(),
		})
		return
	}
	if !created {
		return
	}

	text := g.services.Pairing.BuildReply(ChannelID, "Your QQ user id: "+senderID, code)
	resp, err := SendMessage(ctx, g.client, target, text, "", "")
	if err != nil {
		logger.ErrorCF("qq", "Pairing reply failed", map[string]any{
			"account": g.account.AccountID,
			"sender":  senderID,
			"error":   err.Error(),
		})
		return
	}
	g.selfSent.RecordResponse(g.account.AccountID, resp, FormatTarget(target), text)
	if g.noteOutbound != nil {
		g.noteOutbound(time.Now())
	}
}

// dispatch routes a surviving event: resolve the conversation, format the
// envelope, persist session metadata, and run the reply pipeline with a
// delivery callback that sends through the client.
func (g *gate) dispatch(ctx context.Context, event *onebot.Event, parsed message.Parsed, target Target, wasMentioned, commandAuthorized bool, groupOverride *config.GroupConfig, timestamp time.Time) {
	isGroup := target.Kind == TargetGroup
	senderID := event.UserID.String()
	groupID := event.GroupID.String()

	peer := bus.Peer{Kind: "dm", ID: senderID}
	if isGroup {
		peer = bus.Peer{Kind: "group", ID: groupID}
	}
	route := g.services.Routing.ResolveRoute(ChannelID, g.account.AccountID, peer)
	if groupOverride != nil && groupOverride.AgentID != "" {
		route.AgentID = groupOverride.AgentID
	}

	senderName := event.SenderName()
	fromLabel := "user:" + senderID
	if senderName != "" {
		fromLabel = senderName
	}
	if isGroup {
		fromLabel = "group:" + groupID
	}

	storePath := g.services.Session.StorePath(route.AgentID)
	previous := g.services.Session.UpdatedAt(storePath, route.SessionKey)
	body := g.services.Reply.FormatEnvelope(EnvelopeParams{
		Channel:           "QQ",
		From:              fromLabel,
		Timestamp:         timestamp,
		PreviousTimestamp: previous,
		Body:              parsed.Text,
	})

	from := "qq:" + senderID
	if isGroup {
		from = "qq:group:" + groupID
	}
	chatType := "direct"
	if isGroup {
		chatType = "group"
	}
	var mediaURLs []string
	for _, ref := range parsed.Media {
		mediaURLs = append(mediaURLs, ref.URL)
	}

	inbound := bus.InboundContext{
		Channel:           ChannelID,
		AccountID:         route.AccountID,
		Body:              body,
		RawBody:           parsed.Text,
		CommandBody:       parsed.Text,
		From:              from,
		To:                "qq:" + FormatTarget(target),
		SessionKey:        route.SessionKey,
		AgentID:           route.AgentID,
		ChatType:          chatType,
		ConversationLabel: fromLabel,
		SenderName:        senderName,
		SenderID:          senderID,
		GroupSubject:      groupID,
		WasMentioned:      isGroup && wasMentioned,
		MessageID:         event.MessageID.String(),
		Timestamp:         timestamp.UnixMilli(),
		CommandAuthorized: commandAuthorized,
		MediaURLs:         mediaURLs,
	}
	if !isGroup {
		inbound.GroupSubject = ""
	}

	if err := g.services.Session.RecordInbound(storePath, route.SessionKey, inbound); err != nil {
		logger.ErrorCF("qq", "Session meta update failed", map[string]any{
			"account": g.account.AccountID,
			"error":   err.Error(),
		})
	}

	g.services.Reply.Dispatch(ctx, inbound,
		func(reply bus.Reply) error {
			resp, err := SendMessage(ctx, g.client, target, reply.Text, reply.ReplyToID, reply.MediaURL)
			if err != nil {
				return err
			}
			if !resp.OK() {
				return &onebot.DeliveryError{Action: "send message", Reason: resp.ErrorText()}
			}
			g.selfSent.RecordResponse(g.account.AccountID, resp, FormatTarget(target), reply.Text)
			if g.noteOutbound != nil {
				g.noteOutbound(time.Now())
			}
			return nil
		},
		func(err error) {
			if g.noteError != nil {
				g.noteError("reply delivery: " + err.Error())
			}
			logger.ErrorCF("qq", "Reply delivery failed", map[string]any{
				"account": g.account.AccountID,
				"target":  FormatTarget(target),
				"error":   err.Error(),
			})
		})
}
