// Package heartbeat dispatches scheduled check-in prompts through the
// agent loop; the generated reply is delivered over the outbound adapter
// in heartbeat target-resolution mode.
package heartbeat

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/bus"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/channel"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/logger"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/router"
)

const defaultPrompt = "Heartbeat check-in."

type Scheduler struct {
	cfg      *config.Config
	outbound *channel.Outbound
	router   *router.Router
}

func NewScheduler(cfg *config.Config, outbound *channel.Outbound, rt *router.Router) *Scheduler {
	return &Scheduler{cfg: cfg, outbound: outbound, router: rt}
}

// Run evaluates the cron schedule once per minute until ctx is cancelled.
// Returns immediately when the heartbeat is disabled.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.cfg.Heartbeat.Enabled {
		return
	}
	schedule := s.cfg.Heartbeat.Schedule
	if schedule == "" {
		schedule = "*/30 * * * *"
	}
	gron := gronx.New()
	if !gron.IsValid(schedule) {
		logger.ErrorCF("heartbeat", "Invalid schedule", map[string]any{"schedule": schedule})
		return
	}
	logger.InfoCF("heartbeat", "Scheduler started", map[string]any{"schedule": schedule})

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			due, err := gron.IsDue(schedule, tick.Truncate(time.Minute))
			if err != nil || !due {
				continue
			}
			s.beat(ctx)
		}
	}
}

// beat resolves the heartbeat target per account and dispatches the
// prompt through the agent loop; the agent's reply comes back through
// the delivery hook.
func (s *Scheduler) beat(ctx context.Context) {
	prompt := s.cfg.Heartbeat.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	for _, account := range s.cfg.ListEnabledAccounts() {
		allowFrom := append([]string{}, account.Config.AllowFrom...)
		allowFrom = append(allowFrom, account.Config.GroupAllowFrom...)
		target, err := channel.ResolveTarget(s.cfg.Heartbeat.To, allowFrom, channel.ModeHeartbeat)
		if err != nil {
			logger.WarnCF("heartbeat", "No heartbeat target", map[string]any{
				"account": account.AccountID,
				"error":   err.Error(),
			})
			continue
		}

		peer := bus.Peer{Kind: "dm", ID: target.ID}
		chatType := "direct"
		if target.Kind == channel.TargetGroup {
			peer.Kind = "group"
			chatType = "group"
		}
		route := s.router.Routing.ResolveRoute(channel.ChannelID, account.AccountID, peer)

		accountID := account.AccountID
		to := channel.FormatTarget(target)
		inbound := bus.InboundContext{
			Channel:    channel.ChannelID,
			AccountID:  accountID,
			Body:       prompt,
			RawBody:    prompt,
			From:       channel.ChannelID + ":heartbeat",
			To:         to,
			SessionKey: route.SessionKey,
			AgentID:    route.AgentID,
			ChatType:   chatType,
			SenderName: "heartbeat",
			Timestamp:  time.Now().UnixMilli(),
		}

		s.router.Dispatcher.Dispatch(ctx, inbound,
			func(reply bus.Reply) error {
				delivery, err := s.outbound.Send(ctx, reply.AccountID, reply.To, reply.Text,
					reply.ReplyToID, reply.MediaURL, channel.ModeExplicit)
				if err != nil {
					return err
				}
				logger.InfoCF("heartbeat", "Heartbeat reply delivered", map[string]any{
					"account": reply.AccountID,
					"to":      delivery.To,
				})
				return nil
			},
			func(err error) {
				logger.WarnCF("heartbeat", "Heartbeat failed", map[string]any{
					"account": accountID,
					"error":   err.Error(),
				})
			})
		logger.InfoCF("heartbeat", "Heartbeat dispatched", map[string]any{
			"account": accountID,
			"to":      to,
		})
	}
}
