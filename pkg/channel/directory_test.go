package channel

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

func directoryFixture(respond func(action string, params map[string]any) (*onebot.ActionResponse, error)) *Directory {
	client := newFakeClient()
	client.respond = respond
	registry := onebot.NewRegistry()
	registry.Put("main", client)
	return NewDirectory(registry)
}

func dataResponse(v any) (*onebot.ActionResponse, error) {
	data, _ := json.Marshal(v)
	return &onebot.ActionResponse{Status: "ok", Data: data}, nil
}

func TestDirectorySelf(t *testing.T) {
	dir := directoryFixture(func(action string, _ map[string]any) (*onebot.ActionResponse, error) {
		return dataResponse(map[string]any{"user_id": 777, "nickname": " Bot "})
	})

	entry, err := dir.Self(context.Background(), "main")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, DirectoryEntry{Kind: "user", ID: "777", Name: "Bot"}, *entry)
}

func TestDirectorySelfMissingIdentity(t *testing.T) {
	dir := directoryFixture(func(string, map[string]any) (*onebot.ActionResponse, error) {
		return dataResponse(map[string]any{"nickname": "Bot"})
	})

	entry, err := dir.Self(context.Background(), "main")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestDirectoryListPeers(t *testing.T) {
	dir := directoryFixture(func(string, map[string]any) (*onebot.ActionResponse, error) {
		return dataResponse([]map[string]any{
			{"user_id": 1, "nickname": "Alice", "remark": "Work Alice"},
			{"user_id": 2, "nickname": "Bob"},
			{"user_id": 3, "nickname": "Carol"},
		})
	})

	entries, err := dir.ListPeers(context.Background(), "main", "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Remark takes precedence over nickname.
	assert.Equal(t, "Work Alice", entries[0].Name)
	assert.Equal(t, "Bob", entries[1].Name)
}

func TestDirectoryListPeersQueryAndLimit(t *testing.T) {
	dir := directoryFixture(func(string, map[string]any) (*onebot.ActionResponse, error) {
		return dataResponse([]map[string]any{
			{"user_id": 1, "nickname": "Alice"},
			{"user_id": 2, "nickname": "Bob"},
			{"user_id": 31, "nickname": "Alicia"},
		})
	})

	entries, err := dir.ListPeers(context.Background(), "main", "ali", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	entries, err = dir.ListPeers(context.Background(), "main", "", 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDirectoryListGroups(t *testing.T) {
	dir := directoryFixture(func(action string, _ map[string]any) (*onebot.ActionResponse, error) {
		assert.Equal(t, "get_group_list", action)
		return dataResponse([]map[string]any{
			{"group_id": 9, "group_name": "Ops"},
			{"group_id": 10, "group_name": "Dev"},
		})
	})

	entries, err := dir.ListGroups(context.Background(), "main", "ops", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DirectoryEntry{Kind: "group", ID: "9", Name: "Ops"}, entries[0])
}

func TestDirectoryBackendFailure(t *testing.T) {
	dir := directoryFixture(func(string, map[string]any) (*onebot.ActionResponse, error) {
		return &onebot.ActionResponse{Status: "failed", Msg: "denied"}, nil
	})

	_, err := dir.Self(context.Background(), "main")
	var derr *onebot.DeliveryError
	require.ErrorAs(t, err, &derr)
}

func TestDirectoryMissingClient(t *testing.T) {
	dir := NewDirectory(onebot.NewRegistry())
	_, err := dir.ListPeers(context.Background(), "gone", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}
