package router

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pendingTTL bounds how long a pairing code stays valid; an expired
// request is replaced by a fresh code on the next contact.
const pendingTTL = time.Hour

// PairingRequest is one unapproved sender waiting for a code approval.
type PairingRequest struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type pairingFile struct {
	Requests  map[string][]PairingRequest `json:"requests,omitempty"`   // channel -> pending
	AllowFrom map[string][]string         `json:"allow_from,omitempty"` // channel -> approved ids
}

// Pairing is the file-backed pairing-code store. Unknown direct senders
// under the pairing policy receive a code; approving the code adds the
// sender to the channel's allow store.
type Pairing struct {
	mu   sync.Mutex
	path string
}

func NewPairing(path string) *Pairing {
	return &Pairing{path: path}
}

func (p *Pairing) load() (*pairingFile, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &pairingFile{}, nil
		}
		return nil, err
	}
	var file pairingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.path, err)
	}
	return &file, nil
}

func (p *Pairing) save(file *pairingFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o600)
}

func newPairingCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func prunePending(requests []PairingRequest) []PairingRequest {
	cutoff := time.Now().Add(-pendingTTL)
	kept := requests[:0]
	for _, r := range requests {
		if r.CreatedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}

// ReadAllowStore returns the approved sender ids for a channel.
func (p *Pairing) ReadAllowStore(channelID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	file, err := p.load()
	if err != nil {
		return nil, err
	}
	return file.AllowFrom[channelID], nil
}

// UpsertRequest records a pairing request for a sender. An unexpired
// pending request keeps its code and reports created=false, so each
// sender gets at most one pairing reply per pending request.
func (p *Pairing) UpsertRequest(channelID, id, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	file, err := p.load()
	if err != nil {
		return "", false, err
	}

	pending := prunePending(file.Requests[channelID])
	for _, r := range pending {
		if r.ID == id {
			if file.Requests == nil {
				file.Requests = map[string][]PairingRequest{}
			}
			file.Requests[channelID] = pending
			if err := p.save(file); err != nil {
				return "", false, err
			}
			return r.Code, false, nil
		}
	}

	request := PairingRequest{
		ID:        id,
		Code:      newPairingCode(),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now(),
	}
	if file.Requests == nil {
		file.Requests = map[string][]PairingRequest{}
	}
	file.Requests[channelID] = append(pending, request)
	if err := p.save(file); err != nil {
		return "", false, err
	}
	return request.Code, true, nil
}

// BuildReply renders the instructions sent back to an unlisted sender.
func (p *Pairing) BuildReply(channelID, idLine, code string) string {
	var b strings.Builder
	b.WriteString("This bot requires pairing before direct messages are handled.\n")
	b.WriteString(idLine)
	b.WriteString("\nPairing code: ")
	b.WriteString(code)
	b.WriteString(fmt.Sprintf("\n\nAsk the bot operator to run: moltbot pairing approve %s %s", channelID, code))
	return b.String()
}

// Approve exchanges a pending code for allow-store membership and returns
// the approved sender id.
func (p *Pairing) Approve(channelID, code string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	file, err := p.load()
	if err != nil {
		return "", err
	}

	pending := prunePending(file.Requests[channelID])
	match := -1
	for i, r := range pending {
		if strings.EqualFold(r.Code, code) {
			match = i
			break
		}
	}
	if match < 0 {
		return "", fmt.Errorf("no pending pairing request with code %s", code)
	}

	approved := pending[match]
	if file.Requests == nil {
		file.Requests = map[string][]PairingRequest{}
	}
	file.Requests[channelID] = append(pending[:match], pending[match+1:]...)

	if file.AllowFrom == nil {
		file.AllowFrom = map[string][]string{}
	}
	exists := false
	for _, id := range file.AllowFrom[channelID] {
		if id == approved.ID {
			exists = true
			break
		}
	}
	if !exists {
		file.AllowFrom[channelID] = append(file.AllowFrom[channelID], approved.ID)
		sort.Strings(file.AllowFrom[channelID])
	}

	if err := p.save(file); err != nil {
		return "", err
	}
	return approved.ID, nil
}

// ListRequests returns the unexpired pending requests for a channel.
func (p *Pairing) ListRequests(channelID string) ([]PairingRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	file, err := p.load()
	if err != nil {
		return nil, err
	}
	return prunePending(file.Requests[channelID]), nil
}
