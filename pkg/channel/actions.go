package channel

import (
	"context"
	"fmt"
	"strconv"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

// Actions exposes the moderation and reaction operations backed by the
// OneBot action set. Reactions need the extended set_msg_emoji_like API
// (napcat / LLOneBot).
type Actions struct {
	registry *onebot.Registry
}

func NewActions(registry *onebot.Registry) *Actions {
	return &Actions{registry: registry}
}

func (a *Actions) client(accountID string) (onebot.Client, error) {
	client, ok := a.registry.Get(accountID)
	if !ok {
		return nil, fmt.Errorf("QQ client not running for account %s", accountID)
	}
	return client, nil
}

func (a *Actions) invoke(ctx context.Context, accountID, action string, params map[string]any) error {
	client, err := a.client(accountID)
	if err != nil {
		return err
	}
	resp, err := client.Invoke(ctx, action, params)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &onebot.DeliveryError{Action: action, Reason: resp.ErrorText()}
	}
	return nil
}

func asNumber(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// DeleteMessage recalls a previously sent message.
func (a *Actions) DeleteMessage(ctx context.Context, accountID, messageID string) error {
	return a.invoke(ctx, accountID, "delete_msg", map[string]any{
		"message_id": asNumber(messageID),
	})
}

// MuteUser silences a group member for duration seconds; 0 unmutes.
func (a *Actions) MuteUser(ctx context.Context, accountID, groupID, userID string, durationSeconds int) error {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return a.invoke(ctx, accountID, "set_group_ban", map[string]any{
		"group_id": asNumber(groupID),
		"user_id":  asNumber(userID),
		"duration": durationSeconds,
	})
}

// KickUser removes a group member. rejectAdd blocks rejoin requests.
func (a *Actions) KickUser(ctx context.Context, accountID, groupID, userID string, rejectAdd bool) error {
	return a.invoke(ctx, accountID, "set_group_kick", map[string]any{
		"group_id":           asNumber(groupID),
		"user_id":            asNumber(userID),
		"reject_add_request": rejectAdd,
	})
}

// SetGroupCard sets a member's in-group display name.
func (a *Actions) SetGroupCard(ctx context.Context, accountID, groupID, userID, card string) error {
	return a.invoke(ctx, accountID, "set_group_card", map[string]any{
		"group_id": asNumber(groupID),
		"user_id":  asNumber(userID),
		"card":     card,
	})
}

// SetGroupName renames a group.
func (a *Actions) SetGroupName(ctx context.Context, accountID, groupID, name string) error {
	return a.invoke(ctx, accountID, "set_group_name", map[string]any{
		"group_id":   asNumber(groupID),
		"group_name": name,
	})
}

// SetGroupWholeBan toggles the whole-group mute.
func (a *Actions) SetGroupWholeBan(ctx context.Context, accountID, groupID string, enable bool) error {
	return a.invoke(ctx, accountID, "set_group_whole_ban", map[string]any{
		"group_id": asNumber(groupID),
		"enable":   enable,
	})
}

// AddReaction attaches an emoji reaction to a message.
func (a *Actions) AddReaction(ctx context.Context, accountID, messageID, emojiID string) error {
	return a.invoke(ctx, accountID, "set_msg_emoji_like", map[string]any{
		"message_id": asNumber(messageID),
		"emoji_id":   emojiID,
	})
}

// RemoveReaction detaches an emoji reaction from a message.
func (a *Actions) RemoveReaction(ctx context.Context, accountID, messageID, emojiID string) error {
	return a.invoke(ctx, accountID, "set_msg_emoji_like", map[string]any{
		"message_id": asNumber(messageID),
		"emoji_id":   emojiID,
		"set":        false,
	})
}
