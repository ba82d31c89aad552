package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/agent"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/bus"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/channel"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/heartbeat"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/logger"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/providers"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/router"
)

func gatewayCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	provider, err := providers.New(cfg.Agent)
	if err != nil {
		return fmt.Errorf("error creating provider: %w", err)
	}
	fmt.Printf("✓ Agent provider: %s (%s)\n", provider.Name(), cfg.Agent.Model)

	msgBus := bus.NewMessageBus()
	rt := router.New(cfg, msgBus, internal.GetPairingPath())

	registry := onebot.NewRegistry()
	selfSent := channel.NewSelfSentStore()
	manager := channel.NewManager(cfg, registry, selfSent, rt.Services())
	outbound := channel.NewOutbound(cfg, registry, selfSent)
	agentLoop := agent.NewLoop(cfg, msgBus, provider, rt.Sessions)
	beat := heartbeat.NewScheduler(cfg, outbound, rt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go agentLoop.Run(ctx)
	go rt.Run(ctx)
	go beat.Run(ctx)

	started := manager.StartEnabledAccounts(ctx)
	if started == 0 {
		fmt.Println("⚠ Warning: no QQ accounts started; run `moltbot onboard` first")
	} else {
		fmt.Printf("✓ QQ accounts started: %d\n", started)
	}
	if cfg.Heartbeat.Enabled {
		fmt.Printf("✓ Heartbeat scheduled: %s\n", cfg.Heartbeat.Schedule)
	}
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	manager.StopAll()
	msgBus.Close()
	fmt.Println("✓ Gateway stopped")

	return nil
}
