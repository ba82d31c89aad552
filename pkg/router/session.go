package router

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/bus"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
)

// sessionMeta is the per-session sidecar recording the last inbound.
type sessionMeta struct {
	SessionKey    string    `json:"session_key"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastFrom      string    `json:"last_from,omitempty"`
	LastSender    string    `json:"last_sender,omitempty"`
	LastMessageID string    `json:"last_message_id,omitempty"`
	ChatType      string    `json:"chat_type,omitempty"`
}

// HistoryEntry is one stored conversation turn.
type HistoryEntry struct {
	Role string    `json:"role"` // "user" | "assistant"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Sessions persists session metadata and conversation history under the
// configured store directory, one subdirectory per agent.
type Sessions struct {
	cfg *config.Config
}

func NewSessions(cfg *config.Config) Sessions {
	return Sessions{cfg: cfg}
}

// StorePath resolves the on-disk directory for an agent's sessions.
func (s Sessions) StorePath(agentID string) string {
	if agentID == "" {
		agentID = DefaultAgentID
	}
	return filepath.Join(s.cfg.SessionStorePath(), agentID)
}

// sanitizeKey maps a session key onto a safe file name.
func sanitizeKey(sessionKey string) string {
	replacer := strings.NewReplacer(":", "-", "/", "-", "\\", "-", " ", "-")
	return replacer.Replace(sessionKey)
}

func metaPath(storePath, sessionKey string) string {
	return filepath.Join(storePath, sanitizeKey(sessionKey)+".meta.json")
}

func historyPath(storePath, sessionKey string) string {
	return filepath.Join(storePath, sanitizeKey(sessionKey)+".jsonl")
}

// UpdatedAt reads when the session last saw an inbound message. The zero
// time means no history.
func (s Sessions) UpdatedAt(storePath, sessionKey string) time.Time {
	data, err := os.ReadFile(metaPath(storePath, sessionKey))
	if err != nil {
		return time.Time{}
	}
	var meta sessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return time.Time{}
	}
	return meta.UpdatedAt
}

// RecordInbound updates the session sidecar for a delivered event.
func (s Sessions) RecordInbound(storePath, sessionKey string, ctx bus.InboundContext) error {
	if err := os.MkdirAll(storePath, 0o755); err != nil {
		return err
	}
	meta := sessionMeta{
		SessionKey:    sessionKey,
		UpdatedAt:     time.Now(),
		LastFrom:      ctx.From,
		LastSender:    ctx.SenderID,
		LastMessageID: ctx.MessageID,
		ChatType:      ctx.ChatType,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath(storePath, sessionKey), data, 0o600)
}

// AppendHistory adds one turn to the session transcript.
func (s Sessions) AppendHistory(storePath, sessionKey, role, text string) error {
	if err := os.MkdirAll(storePath, 0o755); err != nil {
		return err
	}
	entry := HistoryEntry{Role: role, Text: text, At: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(historyPath(storePath, sessionKey), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

// History returns up to limit most recent turns, oldest first.
func (s Sessions) History(storePath, sessionKey string, limit int) ([]HistoryEntry, error) {
	f, err := os.Open(historyPath(storePath, sessionKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []HistoryEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry HistoryEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
