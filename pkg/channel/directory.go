package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

// DirectoryEntry is one peer or group known to the account.
type DirectoryEntry struct {
	Kind string `json:"kind"` // "user" | "group"
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Directory answers who-am-I and contact listing queries.
type Directory struct {
	registry *onebot.Registry
}

func NewDirectory(registry *onebot.Registry) *Directory {
	return &Directory{registry: registry}
}

func (d *Directory) client(accountID string) (onebot.Client, error) {
	client, ok := d.registry.Get(accountID)
	if !ok {
		return nil, fmt.Errorf("QQ client not running for account %s", accountID)
	}
	return client, nil
}

// Self reports the logged-in identity.
func (d *Directory) Self(ctx context.Context, accountID string) (*DirectoryEntry, error) {
	client, err := d.client(accountID)
	if err != nil {
		return nil, err
	}
	resp, err := client.Invoke(ctx, "get_login_info", nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &onebot.DeliveryError{Action: "get_login_info", Reason: resp.ErrorText()}
	}

	var data struct {
		UserID   onebot.ID `json:"user_id"`
		Nickname string    `json:"nickname"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, &onebot.DecodeError{What: "login info", Err: err}
	}
	if data.UserID.String() == "" {
		return nil, nil
	}
	return &DirectoryEntry{
		Kind: "user",
		ID:   data.UserID.String(),
		Name: strings.TrimSpace(data.Nickname),
	}, nil
}

func matchesQuery(entry DirectoryEntry, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(entry.ID), query) ||
		strings.Contains(strings.ToLower(entry.Name), query)
}

// ListPeers returns the friend list, optionally filtered and truncated.
func (d *Directory) ListPeers(ctx context.Context, accountID, query string, limit int) ([]DirectoryEntry, error) {
	client, err := d.client(accountID)
	if err != nil {
		return nil, err
	}
	resp, err := client.Invoke(ctx, "get_friend_list", nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &onebot.DeliveryError{Action: "get_friend_list", Reason: resp.ErrorText()}
	}

	var friends []struct {
		UserID   onebot.ID `json:"user_id"`
		Remark   string    `json:"remark"`
		Nickname string    `json:"nickname"`
	}
	if err := json.Unmarshal(resp.Data, &friends); err != nil {
		return nil, &onebot.DecodeError{What: "friend list", Err: err}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var entries []DirectoryEntry
	for _, f := range friends {
		if f.UserID.String() == "" {
			continue
		}
		name := strings.TrimSpace(f.Remark)
		if name == "" {
			name = strings.TrimSpace(f.Nickname)
		}
		entry := DirectoryEntry{Kind: "user", ID: f.UserID.String(), Name: name}
		if !matchesQuery(entry, q) {
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

// ListGroups returns the joined groups, optionally filtered and truncated.
func (d *Directory) ListGroups(ctx context.Context, accountID, query string, limit int) ([]DirectoryEntry, error) {
	client, err := d.client(accountID)
	if err != nil {
		return nil, err
	}
	resp, err := client.Invoke(ctx, "get_group_list", nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &onebot.DeliveryError{Action: "get_group_list", Reason: resp.ErrorText()}
	}

	var groups []struct {
		GroupID   onebot.ID `json:"group_id"`
		GroupName string    `json:"group_name"`
	}
	if err := json.Unmarshal(resp.Data, &groups); err != nil {
		return nil, &onebot.DecodeError{What: "group list", Err: err}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var entries []DirectoryEntry
	for _, g := range groups {
		if g.GroupID.String() == "" {
			continue
		}
		entry := DirectoryEntry{Kind: "group", ID: g.GroupID.String(), Name: strings.TrimSpace(g.GroupName)}
		if !matchesQuery(entry, q) {
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}
