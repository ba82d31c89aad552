package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal"
	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal/admin"
	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal/gateway"
	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal/onboard"
	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal/pairing"
	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal/send"
	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal/status"
	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal/version"
)

func NewMoltbotCommand() *cobra.Command {
	short := fmt.Sprintf("%s moltbot - QQ chat-bot gateway v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "moltbot",
		Short:   short,
		Example: "moltbot gateway",
	}

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		gateway.NewGatewayCommand(),
		status.NewStatusCommand(),
		send.NewSendCommand(),
		admin.NewAdminCommand(),
		pairing.NewPairingCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewMoltbotCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
