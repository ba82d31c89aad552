package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/channel"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

func NewAdminCommand() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Moderate groups and messages through the configured QQ account",
	}
	cmd.PersistentFlags().StringVar(&accountID, "account", "", "Account id (defaults to the default account)")

	cmd.AddCommand(
		newRecallCommand(&accountID),
		newMuteCommand(&accountID),
		newUnmuteCommand(&accountID),
		newKickCommand(&accountID),
		newCardCommand(&accountID),
		newGroupNameCommand(&accountID),
		newBanAllCommand(&accountID),
		newReactCommand(&accountID),
	)
	return cmd
}

// withActions dials the account and runs fn against its moderation surface.
func withActions(accountID string, fn func(ctx context.Context, actions *channel.Actions, accountID string) error) error {
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
	return fn(ctx, channel.NewActions(registry), account.AccountID)
}

// parseSeconds accepts a bare number of seconds or a Go duration string.
func parseSeconds(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration: %s", s)
		}
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return int(d / time.Second), nil
}

func parseToggle(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %s", s)
}

func newRecallCommand(accountID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recall <message-id>",
		Short: "Recall a previously sent message",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withActions(*accountID, func(ctx context.Context, actions *channel.Actions, id string) error {
				if err := actions.DeleteMessage(ctx, id, args[0]); err != nil {
					return err
				}
				fmt.Printf("✓ Recalled message %s\n", args[0])
				return nil
			})
		},
	}
}

func newMuteCommand(accountID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mute <group> <user> [duration]",
		Short: "Silence a group member (default 10m)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(_ *cobra.Command, args []string) error {
			seconds := 600
			if len(args) == 3 {
				var err error
				if seconds, err = parseSeconds(args[2]); err != nil {
					return err
				}
			}
			return withActions(*accountID, func(ctx context.Context, actions *channel.Actions, id string) error {
				if err := actions.MuteUser(ctx, id, args[0], args[1], seconds); err != nil {
					return err
				}
				fmt.Printf("✓ Muted %s in group %s for %ds\n", args[1], args[0], seconds)
				return nil
			})
		},
	}
}

func newUnmuteCommand(accountID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unmute <group> <user>",
		Short: "Lift a group member's mute",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withActions(*accountID, func(ctx context.Context, actions *channel.Actions, id string) error {
				if err := actions.MuteUser(ctx, id, args[0], args[1], 0); err != nil {
					return err
				}
				fmt.Printf("✓ Unmuted %s in group %s\n", args[1], args[0])
				return nil
			})
		},
	}
}

func newKickCommand(accountID *string) *cobra.Command {
	var ban bool
	cmd := &cobra.Command{
		Use:   "kick <group> <user>",
		Short: "Remove a group member",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withActions(*accountID, func(ctx context.Context, actions *channel.Actions, id string) error {
				if err := actions.KickUser(ctx, id, args[0], args[1], ban); err != nil {
					return err
				}
				fmt.Printf("✓ Kicked %s from group %s\n", args[1], args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&ban, "ban", false, "Also reject future join requests")
	return cmd
}

func newCardCommand(accountID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "card <group> <user> [card...]",
		Short: "Set a member's in-group display name (empty clears it)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			card := strings.Join(args[2:], " ")
			return withActions(*accountID, func(ctx context.Context, actions *channel.Actions, id string) error {
				if err := actions.SetGroupCard(ctx, id, args[0], args[1], card); err != nil {
					return err
				}
				fmt.Printf("✓ Card updated for %s in group %s\n", args[1], args[0])
				return nil
			})
		},
	}
}

func newGroupNameCommand(accountID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "group-name <group> <name...>",
		Short: "Rename a group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			name := strings.Join(args[1:], " ")
			return withActions(*accountID, func(ctx context.Context, actions *channel.Actions, id string) error {
				if err := actions.SetGroupName(ctx, id, args[0], name); err != nil {
					return err
				}
				fmt.Printf("✓ Group %s renamed to %s\n", args[0], name)
				return nil
			})
		},
	}
}

func newBanAllCommand(accountID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ban-all <group> <on|off>",
		Short: "Toggle the whole-group mute",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			enable, err := parseToggle(args[1])
			if err != nil {
				return err
			}
			return withActions(*accountID, func(ctx context.Context, actions *channel.Actions, id string) error {
				if err := actions.SetGroupWholeBan(ctx, id, args[0], enable); err != nil {
					return err
				}
				fmt.Printf("✓ Whole-group mute %s for group %s\n", args[1], args[0])
				return nil
			})
		},
	}
}

func newReactCommand(accountID *string) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "react <message-id> <emoji-id>",
		Short: "Attach an emoji reaction to a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withActions(*accountID, func(ctx context.Context, actions *channel.Actions, id string) error {
				if remove {
					if err := actions.RemoveReaction(ctx, id, args[0], args[1]); err != nil {
						return err
					}
					fmt.Printf("✓ Reaction removed from %s\n", args[0])
					return nil
				}
				if err := actions.AddReaction(ctx, id, args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("✓ Reaction added to %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "Remove the reaction instead of adding it")
	return cmd
}
