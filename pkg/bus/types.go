package bus

// Peer identifies the routing peer for a message (direct or group).
type Peer struct {
	Kind string `json:"kind"` // "dm" | "group"
	ID   string `json:"id"`
}

// InboundContext is the normalized message handed to the reply pipeline
// after an event clears every inbound gate.
type InboundContext struct {
	Channel           string   `json:"channel"`
	AccountID         string   `json:"account_id"`
	Body              string   `json:"body"`     // enveloped text
	RawBody           string   `json:"raw_body"` // text as received
	CommandBody       string   `json:"command_body"`
	From              string   `json:"from"`
	To                string   `json:"to"`
	SessionKey        string   `json:"session_key"`
	AgentID           string   `json:"agent_id"`
	ChatType          string   `json:"chat_type"` // "direct" | "group"
	ConversationLabel string   `json:"conversation_label,omitempty"`
	SenderName        string   `json:"sender_name,omitempty"`
	SenderID          string   `json:"sender_id"`
	GroupSubject      string   `json:"group_subject,omitempty"`
	WasMentioned      bool     `json:"was_mentioned,omitempty"`
	MessageID         string   `json:"message_id,omitempty"`
	Timestamp         int64    `json:"timestamp"` // unix millis
	CommandAuthorized bool     `json:"command_authorized"`
	MediaURLs         []string `json:"media_urls,omitempty"`
}

// Reply is one outbound payload produced by the reply pipeline.
type Reply struct {
	Channel   string `json:"channel"`
	AccountID string `json:"account_id"`
	To        string `json:"to"`
	Text      string `json:"text"`
	ReplyToID string `json:"reply_to_id,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
}
