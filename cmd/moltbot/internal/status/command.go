package status

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/channel"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/router"
)

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured accounts and pending pairing requests",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return statusCmd()
		},
	}
}

func statusCmd() error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	fmt.Printf("%s moltbot %s\n\n", internal.Logo, internal.FormatVersion())

	fmt.Println("Accounts:")
	for _, accountID := range cfg.ListAccountIDs() {
		account := cfg.ResolveAccount(accountID)
		state := "ready"
		if !account.Enabled {
			state = "disabled"
		} else if !account.Configured {
			issue := config.ConnectionIssue(account.Connection)
			if issue == "" {
				issue = "no connection configured"
			}
			state = "not configured (" + issue + ")"
		}
		endpoint := account.Connection.BaseURL()
		if endpoint == "" {
			endpoint = "-"
		}
		fmt.Printf("  %-12s %-10s %s\n", account.AccountID, state, endpoint)
	}

	pairing := router.NewPairing(internal.GetPairingPath())
	requests, err := pairing.ListRequests(channel.ChannelID)
	if err != nil {
		return fmt.Errorf("error reading pairing store: %w", err)
	}
	if len(requests) > 0 {
		fmt.Println("\nPending pairing requests:")
		for _, r := range requests {
			name := r.Name
			if name == "" {
				name = "-"
			}
			fmt.Printf("  %-12s code=%s name=%s since=%s\n",
				r.ID, r.Code, name, r.CreatedAt.Format("2006-01-02 15:04"))
		}
	}

	approved, err := pairing.ReadAllowStore(channel.ChannelID)
	if err == nil && len(approved) > 0 {
		fmt.Printf("\nApproved via pairing: %v\n", approved)
	}
	return nil
}
