package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
)

// DefaultAccountID is the account key used when no named accounts are
// configured.
const DefaultAccountID = "default"

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Channel   ChannelConfig   `json:"channel"`
	Agent     AgentConfig     `json:"agent"`
	Session   SessionConfig   `json:"session"`
	Commands  CommandsConfig  `json:"commands"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
}

// ChannelConfig is the QQ channel section. Base fields act as defaults for
// every account; entries under Accounts override them per account.
type ChannelConfig struct {
	AccountConfig

	Accounts       map[string]AccountConfig `json:"accounts,omitempty"`
	DefaultAccount string                   `env:"MOLTBOT_CHANNEL_DEFAULT_ACCOUNT" json:"default_account,omitempty"`
}

// AccountConfig holds the per-account policy surface. Pointer booleans are
// tri-state: nil means "inherit" (base config or built-in default).
type AccountConfig struct {
	Name           string                 `json:"name,omitempty"`
	Enabled        *bool                  `json:"enabled,omitempty"`
	Connection     *ConnectionConfig      `json:"connection,omitempty"`
	AllowFrom      FlexibleStringSlice    `env:"MOLTBOT_CHANNEL_ALLOW_FROM"       json:"allow_from,omitempty"`
	GroupAllowFrom FlexibleStringSlice    `env:"MOLTBOT_CHANNEL_GROUP_ALLOW_FROM" json:"group_allow_from,omitempty"`
	DMPolicy       string                 `env:"MOLTBOT_CHANNEL_DM_POLICY"        json:"dm_policy,omitempty"`
	GroupPolicy    string                 `env:"MOLTBOT_CHANNEL_GROUP_POLICY"     json:"group_policy,omitempty"`
	RequireMention *bool                  `json:"require_mention,omitempty"`
	Groups         map[string]GroupConfig `json:"groups,omitempty"`
}

// GroupConfig overrides gating for a single group id.
type GroupConfig struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	RequireMention *bool  `json:"require_mention,omitempty"`
	AgentID        string `json:"agent_id,omitempty"`
}

// ConnectionConfig describes how to reach the OneBot backend. Immutable
// once a client is started.
type ConnectionConfig struct {
	Type                 string `env:"MOLTBOT_CONNECTION_TYPE"           json:"type"`
	Host                 string `env:"MOLTBOT_CONNECTION_HOST"           json:"host,omitempty"`
	Port                 int    `env:"MOLTBOT_CONNECTION_PORT"           json:"port,omitempty"`
	URL                  string `env:"MOLTBOT_CONNECTION_URL"            json:"url,omitempty"`
	Token                string `env:"MOLTBOT_CONNECTION_TOKEN"          json:"token,omitempty"`
	MessageFormat        string `env:"MOLTBOT_CONNECTION_MESSAGE_FORMAT" json:"message_format,omitempty"`
	ReportSelfMessage    bool   `json:"report_self_message,omitempty"`
	ReportOfflineMessage bool   `json:"report_offline_message,omitempty"`
	HeartInterval        int    `json:"heart_interval,omitempty"`
}

// Connection types.
const (
	ConnectionWS        = "ws"
	ConnectionHTTP      = "http"
	ConnectionHTTPPost  = "http-post"
	ConnectionWSReverse = "ws-reverse"
)

// Message encoding modes.
const (
	FormatArray  = "array"
	FormatString = "string"
)

// DM policies.
const (
	DMPolicyDisabled  = "disabled"
	DMPolicyOpen      = "open"
	DMPolicyPairing   = "pairing"
	DMPolicyAllowlist = "allowlist"
)

// Group policies.
const (
	GroupPolicyDisabled  = "disabled"
	GroupPolicyOpen      = "open"
	GroupPolicyAllowlist = "allowlist"
)

type AgentConfig struct {
	Provider  string `env:"MOLTBOT_AGENT_PROVIDER"   json:"provider"`
	Model     string `env:"MOLTBOT_AGENT_MODEL"      json:"model"`
	APIKey    string `env:"MOLTBOT_AGENT_API_KEY"    json:"api_key"`
	APIBase   string `env:"MOLTBOT_AGENT_API_BASE"   json:"api_base,omitempty"`
	MaxTokens int    `env:"MOLTBOT_AGENT_MAX_TOKENS" json:"max_tokens"`
	System    string `json:"system,omitempty"`
}

type SessionConfig struct {
	Store string `env:"MOLTBOT_SESSION_STORE" json:"store"`
}

type CommandsConfig struct {
	AccessGroups *bool  `json:"use_access_groups,omitempty"`
	TextCommands bool   `env:"MOLTBOT_COMMANDS_TEXT_COMMANDS" json:"text_commands"`
	Prefix       string `env:"MOLTBOT_COMMANDS_PREFIX"        json:"prefix"`
}

type HeartbeatConfig struct {
	Enabled  bool   `env:"MOLTBOT_HEARTBEAT_ENABLED"  json:"enabled"`
	Schedule string `env:"MOLTBOT_HEARTBEAT_SCHEDULE" json:"schedule"`
	Prompt   string `json:"prompt,omitempty"`
	To       string `env:"MOLTBOT_HEARTBEAT_TO"       json:"to,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 4096,
		},
		Session: SessionConfig{
			Store: "~/.moltbot/sessions",
		},
		Commands: CommandsConfig{
			Prefix: "/",
		},
		Heartbeat: HeartbeatConfig{
			Schedule: "*/30 * * * *",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// SessionStorePath returns the session store directory with ~ expanded.
func (c *Config) SessionStorePath() string {
	return expandHome(c.Session.Store)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}

// ResolvedAccount is the merged view of an account's configuration with
// computed enabled/configured flags. Derived fresh on each use; never
// mutated in place.
type ResolvedAccount struct {
	AccountID  string
	Name       string
	Enabled    bool
	Configured bool
	Config     AccountConfig
	Connection *ConnectionConfig
}

// ListAccountIDs returns the configured account ids, sorted; when no named
// accounts exist the default id is returned.
func (c *Config) ListAccountIDs() []string {
	if len(c.Channel.Accounts) == 0 {
		return []string{DefaultAccountID}
	}
	ids := make([]string, 0, len(c.Channel.Accounts))
	for id := range c.Channel.Accounts {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// DefaultAccountID returns the account used when callers do not name one.
func (c *Config) DefaultAccountID() string {
	if id := strings.TrimSpace(c.Channel.DefaultAccount); id != "" {
		return id
	}
	ids := c.ListAccountIDs()
	for _, id := range ids {
		if id == DefaultAccountID {
			return id
		}
	}
	if len(ids) > 0 {
		return ids[0]
	}
	return DefaultAccountID
}

// NormalizeAccountID maps an empty or whitespace id to the default account.
func (c *Config) NormalizeAccountID(accountID string) string {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return c.DefaultAccountID()
	}
	return id
}

// ResolveAccount merges the channel base config with the named account's
// overrides and computes the enabled/configured flags.
func (c *Config) ResolveAccount(accountID string) ResolvedAccount {
	id := c.NormalizeAccountID(accountID)
	merged := c.mergeAccountConfig(id)

	baseEnabled := c.Channel.Enabled == nil || *c.Channel.Enabled
	accountEnabled := merged.Enabled == nil || *merged.Enabled

	return ResolvedAccount{
		AccountID:  id,
		Name:       strings.TrimSpace(merged.Name),
		Enabled:    baseEnabled && accountEnabled,
		Configured: IsConnectionConfigured(merged.Connection),
		Config:     merged,
		Connection: merged.Connection,
	}
}

// ListEnabledAccounts resolves every configured account and keeps the
// enabled ones.
func (c *Config) ListEnabledAccounts() []ResolvedAccount {
	var out []ResolvedAccount
	for _, id := range c.ListAccountIDs() {
		account := c.ResolveAccount(id)
		if account.Enabled {
			out = append(out, account)
		}
	}
	return out
}

func (c *Config) mergeAccountConfig(accountID string) AccountConfig {
	merged := c.Channel.AccountConfig
	account, ok := c.Channel.Accounts[accountID]
	if !ok {
		return merged
	}
	if account.Name != "" {
		merged.Name = account.Name
	}
	if account.Enabled != nil {
		merged.Enabled = account.Enabled
	}
	if account.Connection != nil {
		merged.Connection = account.Connection
	}
	if account.AllowFrom != nil {
		merged.AllowFrom = account.AllowFrom
	}
	if account.GroupAllowFrom != nil {
		merged.GroupAllowFrom = account.GroupAllowFrom
	}
	if account.DMPolicy != "" {
		merged.DMPolicy = account.DMPolicy
	}
	if account.GroupPolicy != "" {
		merged.GroupPolicy = account.GroupPolicy
	}
	if account.RequireMention != nil {
		merged.RequireMention = account.RequireMention
	}
	if account.Groups != nil {
		merged.Groups = account.Groups
	}
	return merged
}

// IsConnectionConfigured reports whether the connection descriptor is
// complete enough to start a client. Only the ws and http variants are
// supported; the reverse/push variants are recognized but rejected.
func IsConnectionConfigured(conn *ConnectionConfig) bool {
	return ConnectionIssue(conn) == ""
}

// ConnectionIssue returns a human-readable reason the connection cannot be
// used, or "" when it can.
func ConnectionIssue(conn *ConnectionConfig) string {
	if conn == nil {
		return "missing connection"
	}
	switch conn.Type {
	case ConnectionWS, ConnectionHTTP:
	case "":
		return "connection type is missing"
	default:
		return fmt.Sprintf("connection type not supported yet: %s", conn.Type)
	}
	if strings.TrimSpace(conn.Host) == "" {
		return "connection host is missing"
	}
	if conn.Port <= 0 {
		return "connection port is missing"
	}
	return ""
}

// Format returns the connection's message encoding mode, defaulting to the
// segment-array form.
func (c *ConnectionConfig) Format() string {
	if c != nil && c.MessageFormat == FormatString {
		return FormatString
	}
	return FormatArray
}

// BaseURL renders the connection endpoint for status displays.
func (c *ConnectionConfig) BaseURL() string {
	if c == nil {
		return ""
	}
	switch c.Type {
	case ConnectionWS, ConnectionHTTP:
		if c.Host == "" || c.Port == 0 {
			return ""
		}
		return fmt.Sprintf("%s://%s:%d", c.Type, c.Host, c.Port)
	case ConnectionHTTPPost, ConnectionWSReverse:
		return strings.TrimSpace(c.URL)
	}
	return ""
}

// UseAccessGroups reports whether command authorization is gated on
// allow-list membership (enabled unless explicitly disabled).
func (c *CommandsConfig) UseAccessGroups() bool {
	return c.AccessGroups == nil || *c.AccessGroups
}
