package channel

import (
	"strings"
	"sync"
	"time"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

const (
	selfSentTTL        = 2 * time.Minute
	selfSentMaxRecords = 200
)

type selfSentRecord struct {
	messageID string
	target    string
	text      string
	recorded  time.Time
}

// SelfSentStore remembers recently sent messages per account so that echo
// events reflected back by the peer can be recognized and dropped. Entries
// expire after a TTL and the store truncates to a capacity bound, oldest
// first, on every access.
type SelfSentStore struct {
	mu      sync.Mutex
	records map[string][]selfSentRecord
	now     func() time.Time
}

func NewSelfSentStore() *SelfSentStore {
	return &SelfSentStore{
		records: map[string][]selfSentRecord{},
		now:     time.Now,
	}
}

func (s *SelfSentStore) prune(accountID string) []selfSentRecord {
	cutoff := s.now().Add(-selfSentTTL)
	kept := s.records[accountID][:0]
	for _, r := range s.records[accountID] {
		if !r.recorded.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	if len(kept) > selfSentMaxRecords {
		kept = kept[len(kept)-selfSentMaxRecords:]
	}
	s.records[accountID] = kept
	return kept
}

// Record remembers a sent message. A call with neither a message id nor
// text is a no-op.
func (s *SelfSentStore) Record(accountID, messageID, target, text string) {
	text = strings.TrimSpace(text)
	if messageID == "" && text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[accountID] = append(s.records[accountID], selfSentRecord{
		messageID: messageID,
		target:    target,
		text:      text,
		recorded:  s.now(),
	})
	s.prune(accountID)
}

// RecordResponse remembers a sent message using the message id the peer
// assigned in its send response.
func (s *SelfSentStore) RecordResponse(accountID string, resp *onebot.ActionResponse, target, text string) {
	messageID := ""
	if resp != nil {
		messageID = resp.MessageID()
	}
	s.Record(accountID, messageID, target, text)
}

// WasSelfSent reports whether a retained record matches by message id, or
// by identical (target, text). False when both identifying fields are
// absent.
func (s *SelfSentStore) WasSelfSent(accountID, messageID, target, text string) bool {
	text = strings.TrimSpace(text)
	if messageID == "" && text == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.prune(accountID) {
		if messageID != "" && r.messageID == messageID {
			return true
		}
		if text != "" && r.text == text && r.target == target {
			return true
		}
	}
	return false
}
