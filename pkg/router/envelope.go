package router

import (
	"fmt"
	"time"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/channel"
)

// conversationGap is the silence after which the envelope marks a fresh
// conversation for the agent.
const conversationGap = 30 * time.Minute

// Envelope wraps inbound text with sender/channel/timestamp metadata so
// the agent sees who is talking and when.
type Envelope struct{}

func (Envelope) FormatEnvelope(p channel.EnvelopeParams) string {
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	header := fmt.Sprintf("[%s] %s (%s)", p.Channel, p.From, ts.Format("2006-01-02 15:04"))
	if p.PreviousTimestamp.IsZero() || ts.Sub(p.PreviousTimestamp) > conversationGap {
		header += " [new conversation]"
	}
	return header + "\n" + p.Body
}
