// Package channel is the QQ channel adapter: account lifecycle, the
// inbound gate pipeline, and the outbound send path over OneBot 11.
package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/logger"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

// ConfigurationError reports an account that cannot start as configured.
type ConfigurationError struct {
	AccountID string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("account %s: %s", e.AccountID, e.Reason)
}

// Status is a point-in-time snapshot of one account's runtime state.
type Status struct {
	AccountID      string    `json:"account_id"`
	Running        bool      `json:"running"`
	Mode           string    `json:"mode,omitempty"`
	Endpoint       string    `json:"endpoint,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	LastInboundAt  time.Time `json:"last_inbound_at,omitzero"`
	LastOutboundAt time.Time `json:"last_outbound_at,omitzero"`
}

type accountRuntime struct {
	account config.ResolvedAccount
	client  onebot.Client
	cancel  context.CancelFunc
	events  chan *onebot.Event

	mu             sync.Mutex
	startedAt      time.Time
	lastError      string
	lastInboundAt  time.Time
	lastOutboundAt time.Time
}

// Manager owns the per-account runtimes: one protocol client plus one
// single-worker gate pipeline each, with status snapshots.
type Manager struct {
	cfg      *config.Config
	registry *onebot.Registry
	selfSent *SelfSentStore
	services Services

	mu         sync.Mutex
	accounts   map[string]*accountRuntime
	lastErrors map[string]string
}

func NewManager(cfg *config.Config, registry *onebot.Registry, selfSent *SelfSentStore, services Services) *Manager {
	return &Manager{
		cfg:        cfg,
		registry:   registry,
		selfSent:   selfSent,
		services:   services,
		accounts:   map[string]*accountRuntime{},
		lastErrors: map[string]string{},
	}
}

// SelfSent exposes the echo store shared with the outbound adapter.
func (m *Manager) SelfSent() *SelfSentStore { return m.selfSent }

// Registry exposes the client registry shared with the outbound adapter.
func (m *Manager) Registry() *onebot.Registry { return m.registry }

// StartAccount resolves, validates, and starts one account. A prior
// runtime for the same id is stopped first.
func (m *Manager) StartAccount(ctx context.Context, accountID string) error {
	account := m.cfg.ResolveAccount(accountID)
	if !account.Enabled {
		return &ConfigurationError{AccountID: account.AccountID, Reason: "account disabled"}
	}
	if !account.Configured {
		issue := config.ConnectionIssue(account.Connection)
		if issue == "" {
			issue = "no connection configured"
		}
		return &ConfigurationError{AccountID: account.AccountID, Reason: issue}
	}

	m.StopAccount(account.AccountID)

	runtime := &accountRuntime{
		account:   account,
		events:    make(chan *onebot.Event, 256),
		startedAt: time.Now(),
	}
	clientCtx, cancel := context.WithCancel(ctx)
	runtime.cancel = cancel

	client, err := onebot.Dial(clientCtx, account.AccountID, account.Connection, func(event *onebot.Event) {
		select {
		case runtime.events <- event:
		case <-clientCtx.Done():
		}
	})
	if err != nil {
		cancel()
		m.noteLastError(account.AccountID, err.Error())
		return err
	}
	runtime.client = client
	m.registry.Put(account.AccountID, client)
	m.noteLastError(account.AccountID, "")

	g := &gate{
		account:      account,
		client:       client,
		selfSent:     m.selfSent,
		services:     m.services,
		commands:     m.cfg.Commands,
		noteInbound:  runtime.noteInbound,
		noteOutbound: runtime.noteOutbound,
		noteError:    runtime.setError,
	}
	go func() {
		for {
			select {
			case event := <-runtime.events:
				g.HandleEvent(clientCtx, event)
			case <-clientCtx.Done():
				return
			}
		}
	}()

	m.mu.Lock()
	m.accounts[account.AccountID] = runtime
	m.mu.Unlock()

	logger.InfoCF("qq", "Account started", map[string]any{
		"account":  account.AccountID,
		"endpoint": account.Connection.BaseURL(),
	})
	return nil
}

// StartEnabledAccounts starts every enabled, configured account. Failures
// are logged per account and do not stop the rest.
func (m *Manager) StartEnabledAccounts(ctx context.Context) int {
	started := 0
	for _, account := range m.cfg.ListEnabledAccounts() {
		if err := m.StartAccount(ctx, account.AccountID); err != nil {
			logger.WarnCF("qq", "Account not started", map[string]any{
				"account": account.AccountID,
				"error":   err.Error(),
			})
			continue
		}
		started++
	}
	return started
}

// StopAccount stops the runtime for accountID, if any.
func (m *Manager) StopAccount(accountID string) {
	m.mu.Lock()
	runtime, ok := m.accounts[accountID]
	if ok {
		delete(m.accounts, accountID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	// The error survives the runtime so post-mortem snapshots keep it.
	runtime.mu.Lock()
	lastError := runtime.lastError
	runtime.mu.Unlock()
	if lastError == "" && runtime.client != nil {
		lastError = runtime.client.LastError()
	}
	if lastError != "" {
		m.noteLastError(accountID, lastError)
	}

	if client, found := m.registry.Remove(accountID); found {
		client.Stop()
	} else if runtime.client != nil {
		runtime.client.Stop()
	}
	runtime.cancel()
	logger.InfoCF("qq", "Account stopped", map[string]any{"account": accountID})
}

// StopAll stops every running account.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.StopAccount(id)
	}
}

// Snapshot reports one account's status. Accounts that are configured but
// not running still produce a snapshot.
func (m *Manager) Snapshot(accountID string) Status {
	m.mu.Lock()
	runtime, running := m.accounts[accountID]
	m.mu.Unlock()

	status := Status{AccountID: accountID, Running: running}
	if running {
		runtime.mu.Lock()
		status.Mode = runtime.account.Connection.Type
		status.Endpoint = runtime.account.Connection.BaseURL()
		status.LastError = runtime.lastError
		status.StartedAt = runtime.startedAt
		status.LastInboundAt = runtime.lastInboundAt
		status.LastOutboundAt = runtime.lastOutboundAt
		runtime.mu.Unlock()
		if status.LastError == "" && runtime.client != nil {
			status.LastError = runtime.client.LastError()
		}
	} else {
		account := m.cfg.ResolveAccount(accountID)
		if account.Connection != nil {
			status.Mode = account.Connection.Type
		}
		status.Endpoint = account.Connection.BaseURL()
		m.mu.Lock()
		status.LastError = m.lastErrors[accountID]
		m.mu.Unlock()
	}
	return status
}

// Snapshots reports every configured account, running or not.
func (m *Manager) Snapshots() []Status {
	ids := m.cfg.ListAccountIDs()
	m.mu.Lock()
	for id := range m.accounts {
		found := false
		for _, known := range ids {
			if known == id {
				found = true
				break
			}
		}
		if !found {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	sort.Strings(ids)

	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.Snapshot(id))
	}
	return out
}

func (rt *accountRuntime) noteInbound(at time.Time) {
	rt.mu.Lock()
	rt.lastInboundAt = at
	rt.mu.Unlock()
}

func (rt *accountRuntime) noteOutbound(at time.Time) {
	rt.mu.Lock()
	rt.lastOutboundAt = at
	rt.mu.Unlock()
}

func (rt *accountRuntime) setError(msg string) {
	rt.mu.Lock()
	rt.lastError = msg
	rt.mu.Unlock()
}

func (m *Manager) noteLastError(accountID, msg string) {
	m.mu.Lock()
	if msg == "" {
		delete(m.lastErrors, accountID)
	} else {
		m.lastErrors[accountID] = msg
	}
	m.mu.Unlock()
}
