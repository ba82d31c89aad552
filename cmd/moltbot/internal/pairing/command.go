package pairing

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/channel"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/router"
)

func NewPairingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairing",
		Short: "Manage direct-message pairing requests",
	}

	cmd.AddCommand(newListCommand(), newApproveCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending pairing requests",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			store := router.NewPairing(internal.GetPairingPath())
			requests, err := store.ListRequests(channel.ChannelID)
			if err != nil {
				return err
			}
			if len(requests) == 0 {
				fmt.Println("No pending pairing requests.")
				return nil
			}
			for _, r := range requests {
				name := r.Name
				if name == "" {
					name = "-"
				}
				fmt.Printf("%-12s code=%s name=%s since=%s\n",
					r.ID, r.Code, name, r.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newApproveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <channel> <code>",
		Short: "Approve a pairing code and allow-list the sender",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			store := router.NewPairing(internal.GetPairingPath())
			id, err := store.Approve(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("✓ Approved %s on %s\n", id, args[0])
			notifyApproved(id)
			return nil
		},
	}
}

// notifyApproved tells the approved sender their messages now go through.
// Best effort: approval already succeeded, so a delivery failure only warns.
func notifyApproved(id string) {
	cfg, err := internal.LoadConfig()
	if err != nil {
		fmt.Printf("⚠ Could not notify %s: %v\n", id, err)
		return
	}
	account := cfg.ResolveAccount(cfg.DefaultAccountID())
	if !account.Enabled || !account.Configured {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := onebot.Dial(ctx, account.AccountID, account.Connection, nil)
	if err != nil {
		fmt.Printf("⚠ Could not notify %s: %v\n", id, err)
		return
	}
	defer client.Stop()

	target := channel.Target{Kind: channel.TargetPrivate, ID: id}
	text := "Pairing approved. Your messages will now be handled."
	if resp, err := channel.SendMessage(ctx, client, target, text, "", ""); err != nil || !resp.OK() {
		fmt.Printf("⚠ Could not notify %s\n", id)
		return
	}
	fmt.Printf("✓ Notified %s\n", id)
}
