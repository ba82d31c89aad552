package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

func actionsFixture() (*Actions, *fakeClient) {
	client := newFakeClient()
	registry := onebot.NewRegistry()
	registry.Put("main", client)
	return NewActions(registry), client
}

func TestDeleteMessage(t *testing.T) {
	actions, client := actionsFixture()
	require.NoError(t, actions.DeleteMessage(context.Background(), "main", "900"))

	call, ok := client.lastCall()
	require.True(t, ok)
	assert.Equal(t, "delete_msg", call.Action)
	assert.Equal(t, int64(900), call.Params["message_id"])
}

func TestMuteUserClampsDuration(t *testing.T) {
	actions, client := actionsFixture()
	require.NoError(t, actions.MuteUser(context.Background(), "main", "9", "42", -5))

	call, ok := client.lastCall()
	require.True(t, ok)
	assert.Equal(t, "set_group_ban", call.Action)
	assert.Equal(t, int64(9), call.Params["group_id"])
	assert.Equal(t, int64(42), call.Params["user_id"])
	assert.Equal(t, 0, call.Params["duration"])
}

func TestKickUser(t *testing.T) {
	actions, client := actionsFixture()
	require.NoError(t, actions.KickUser(context.Background(), "main", "9", "42", true))

	call, ok := client.lastCall()
	require.True(t, ok)
	assert.Equal(t, "set_group_kick", call.Action)
	assert.Equal(t, true, call.Params["reject_add_request"])
}

func TestSetGroupCardAndName(t *testing.T) {
	actions, client := actionsFixture()
	require.NoError(t, actions.SetGroupCard(context.Background(), "main", "9", "42", "Helper"))
	call, _ := client.lastCall()
	assert.Equal(t, "set_group_card", call.Action)
	assert.Equal(t, "Helper", call.Params["card"])

	require.NoError(t, actions.SetGroupName(context.Background(), "main", "9", "Ops"))
	call, _ = client.lastCall()
	assert.Equal(t, "set_group_name", call.Action)
	assert.Equal(t, "Ops", call.Params["group_name"])
}

func TestSetGroupWholeBan(t *testing.T) {
	actions, client := actionsFixture()
	require.NoError(t, actions.SetGroupWholeBan(context.Background(), "main", "9", true))

	call, _ := client.lastCall()
	assert.Equal(t, "set_group_whole_ban", call.Action)
	assert.Equal(t, true, call.Params["enable"])
}

func TestReactions(t *testing.T) {
	actions, client := actionsFixture()
	require.NoError(t, actions.AddReaction(context.Background(), "main", "900", "128077"))
	call, _ := client.lastCall()
	assert.Equal(t, "set_msg_emoji_like", call.Action)
	assert.Equal(t, "128077", call.Params["emoji_id"])
	assert.NotContains(t, call.Params, "set")

	require.NoError(t, actions.RemoveReaction(context.Background(), "main", "900", "128077"))
	call, _ = client.lastCall()
	assert.Equal(t, false, call.Params["set"])
}

func TestActionsNonNumericIDsPassThrough(t *testing.T) {
	actions, client := actionsFixture()
	require.NoError(t, actions.DeleteMessage(context.Background(), "main", "abc-123"))

	call, _ := client.lastCall()
	assert.Equal(t, "abc-123", call.Params["message_id"])
}

func TestActionsBackendRejection(t *testing.T) {
	actions, client := actionsFixture()
	client.respond = func(string, map[string]any) (*onebot.ActionResponse, error) {
		return &onebot.ActionResponse{Status: "failed", Msg: "no permission"}, nil
	}

	err := actions.DeleteMessage(context.Background(), "main", "900")
	var derr *onebot.DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Error(), "no permission")
}

func TestActionsMissingClient(t *testing.T) {
	actions := NewActions(onebot.NewRegistry())
	err := actions.DeleteMessage(context.Background(), "gone", "900")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}
