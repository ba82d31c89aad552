package heartbeat

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/bus"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/channel"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/router"
)

// stubClient answers every action with a canned ok response.
type stubClient struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubClient) Invoke(_ context.Context, action string, _ map[string]any) (*onebot.ActionResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, action)
	s.mu.Unlock()
	data, _ := json.Marshal(map[string]any{"message_id": 77})
	return &onebot.ActionResponse{Status: "ok", Data: data}, nil
}

func (s *stubClient) Stop() {}

func (s *stubClient) LastError() string { return "" }

func (s *stubClient) Format() string { return config.FormatArray }

func (s *stubClient) ReportSelfMessage() bool { return false }

func (s *stubClient) ReportOfflineMessage() bool { return false }

func (s *stubClient) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func schedulerFixture(t *testing.T, cfg *config.Config) (*Scheduler, *bus.MessageBus, *router.Router, *stubClient) {
	t.Helper()
	msgBus := bus.NewMessageBus()
	t.Cleanup(msgBus.Close)
	rt := router.New(cfg, msgBus, filepath.Join(t.TempDir(), "pairing.json"))

	client := &stubClient{}
	registry := onebot.NewRegistry()
	registry.Put(config.DefaultAccountID, client)
	outbound := channel.NewOutbound(cfg, registry, channel.NewSelfSentStore())
	return NewScheduler(cfg, outbound, rt), msgBus, rt, client
}

func heartbeatConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Channel.Connection = &config.ConnectionConfig{Type: config.ConnectionWS, Host: "h", Port: 1}
	cfg.Channel.AllowFrom = config.FlexibleStringSlice{"42"}
	cfg.Heartbeat = config.HeartbeatConfig{Enabled: true, Schedule: "* * * * *", Prompt: "Morning check-in."}
	return cfg
}

func TestBeatDispatchesPromptThroughAgent(t *testing.T) {
	scheduler, msgBus, _, _ := schedulerFixture(t, heartbeatConfig())

	scheduler.beat(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	inbound, ok := msgBus.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "Morning check-in.", inbound.Body)
	assert.Equal(t, "42", inbound.To)
	assert.Equal(t, "direct", inbound.ChatType)
	assert.Equal(t, "qq:heartbeat", inbound.From)
	assert.Equal(t, router.DefaultAgentID, inbound.AgentID)
	assert.Equal(t, "qq:"+config.DefaultAccountID+":dm:42", inbound.SessionKey)
}

func TestBeatGroupTarget(t *testing.T) {
	cfg := heartbeatConfig()
	cfg.Channel.AllowFrom = nil
	cfg.Channel.GroupAllowFrom = config.FlexibleStringSlice{"group:9"}
	cfg.Heartbeat.To = "group:9"
	scheduler, msgBus, _, _ := schedulerFixture(t, cfg)

	scheduler.beat(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	inbound, ok := msgBus.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "group:9", inbound.To)
	assert.Equal(t, "group", inbound.ChatType)
}

func TestBeatDeliversAgentReply(t *testing.T) {
	scheduler, msgBus, rt, client := schedulerFixture(t, heartbeatConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)

	scheduler.beat(ctx)
	_, ok := msgBus.ConsumeInbound(ctx)
	require.True(t, ok)

	require.NoError(t, msgBus.PublishReply(ctx, bus.Reply{
		Channel:   channel.ChannelID,
		AccountID: config.DefaultAccountID,
		To:        "42",
		Text:      "All good.",
	}))

	require.Eventually(t, func() bool {
		calls := client.recorded()
		return len(calls) == 1 && calls[0] == "send_private_msg"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBeatWithoutTargetSkips(t *testing.T) {
	cfg := heartbeatConfig()
	cfg.Channel.AllowFrom = nil
	scheduler, msgBus, _, _ := schedulerFixture(t, cfg)

	scheduler.beat(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, ok := msgBus.ConsumeInbound(ctx)
	assert.False(t, ok)
}
