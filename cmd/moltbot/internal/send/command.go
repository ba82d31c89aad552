package send

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/channel"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

func NewSendCommand() *cobra.Command {
	var to string
	var accountID string
	var mediaURL string
	var replyToID string
	var listTargets bool

	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send a one-off message through the configured QQ account",
		Args:  cobra.MinimumNArgs(0),
		RunE: func(_ *cobra.Command, args []string) error {
			if listTargets {
				return targetsCmd(accountID, strings.Join(args, " "))
			}
			return sendCmd(accountID, to, strings.Join(args, " "), replyToID, mediaURL)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Target: group:<id>, user:<id>, or a bare user id")
	cmd.Flags().StringVar(&accountID, "account", "", "Account id (defaults to the default account)")
	cmd.Flags().StringVar(&mediaURL, "media", "", "Media URL or local path to attach")
	cmd.Flags().StringVar(&replyToID, "reply-to", "", "Message id to reply to")
	cmd.Flags().BoolVar(&listTargets, "targets", false, "List reachable peers and groups instead of sending")

	return cmd
}

// targetsCmd lists the friends and groups the account can send to; the
// trailing arguments filter by id or name.
func targetsCmd(accountID, query string) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if accountID == "" {
		accountID = cfg.DefaultAccountID()
	}
	account := cfg.ResolveAccount(accountID)
	if !account.Enabled {
		return fmt.Errorf("account %s is disabled", account.AccountID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := onebot.Dial(ctx, account.AccountID, account.Connection, nil)
	if err != nil {
		return err
	}
	defer client.Stop()

	registry := onebot.NewRegistry()
	registry.Put(account.AccountID, client)
	directory := channel.NewDirectory(registry)

	if self, err := directory.Self(ctx, account.AccountID); err == nil && self != nil {
		fmt.Printf("Logged in as %s (%s)\n\n", self.Name, self.ID)
	}

	groups, err := directory.ListGroups(ctx, account.AccountID, query, 0)
	if err != nil {
		return err
	}
	peers, err := directory.ListPeers(ctx, account.AccountID, query, 0)
	if err != nil {
		return err
	}

	if len(groups) == 0 && len(peers) == 0 {
		fmt.Println("No matching targets.")
		return nil
	}
	for _, g := range groups {
		fmt.Printf("group:%-12s %s\n", g.ID, g.Name)
	}
	for _, p := range peers {
		fmt.Printf("user:%-13s %s\n", p.ID, p.Name)
	}
	return nil
}

func sendCmd(accountID, to, text, replyToID, mediaURL string) error {
	if text == "" && mediaURL == "" {
		return fmt.Errorf("nothing to send; pass text or --media")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if accountID == "" {
		accountID = cfg.DefaultAccountID()
	}
	account := cfg.ResolveAccount(accountID)
	if !account.Enabled {
		return fmt.Errorf("account %s is disabled", account.AccountID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := onebot.Dial(ctx, account.AccountID, account.Connection, nil)
	if err != nil {
		return err
	}
	defer client.Stop()

	registry := onebot.NewRegistry()
	registry.Put(account.AccountID, client)
	selfSent := channel.NewSelfSentStore()
	outbound := channel.NewOutbound(cfg, registry, selfSent)

	delivery, err := outbound.Send(ctx, account.AccountID, to, text, replyToID, mediaURL, channel.ModeExplicit)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Sent to %s (message id %s)\n", delivery.To, delivery.MessageID)
	return nil
}
