// Package onebot implements the OneBot 11 protocol client: request/response
// actions with correlation and timeout over a pair of persistent websockets,
// or direct HTTP requests plus a long-lived polled event stream.
package onebot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a wire identifier that backends emit as either a JSON number or a
// JSON string. It normalizes to the string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Segment is one typed unit of an array-format message.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Str reads a data field that may arrive as a string or a number.
func (s Segment) Str(key string) string {
	v, ok := s.Data[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Message is a payload in either wire encoding: a CQ-code markup string or
// a list of typed segments.
type Message struct {
	Text     string
	Segments []Segment
	IsArray  bool
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.Text = s
		m.IsArray = false
		m.Segments = nil
		return nil
	}
	var segments []Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return err
	}
	m.Segments = segments
	m.IsArray = true
	m.Text = ""
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.IsArray {
		return json.Marshal(m.Segments)
	}
	return json.Marshal(m.Text)
}

// Sender carries the peer-reported identity of a message author.
type Sender struct {
	UserID   ID     `json:"user_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Card     string `json:"card,omitempty"`
}

// Event is a peer-initiated notification. Known fields are typed; anything
// the backend adds beyond the schema lands in Extra.
type Event struct {
	PostType    string
	MessageType string
	SubType     string
	Message     *Message
	RawMessage  string
	MessageID   ID
	UserID      ID
	GroupID     ID
	SelfID      ID
	Time        int64
	Sender      *Sender

	Extra map[string]json.RawMessage
}

// Post kinds and message scopes.
const (
	PostMessage     = "message"
	PostMessageSent = "message_sent"

	ScopePrivate = "private"
	ScopeGroup   = "group"

	SubTypeOffline = "offline"
)

var eventKnownFields = map[string]bool{
	"post_type": true, "message_type": true, "sub_type": true,
	"message": true, "raw_message": true, "message_id": true,
	"user_id": true, "group_id": true, "self_id": true,
	"time": true, "sender": true,
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	type known struct {
		PostType    string   `json:"post_type"`
		MessageType string   `json:"message_type"`
		SubType     string   `json:"sub_type"`
		Message     *Message `json:"message"`
		RawMessage  string   `json:"raw_message"`
		MessageID   ID       `json:"message_id"`
		UserID      ID       `json:"user_id"`
		GroupID     ID       `json:"group_id"`
		SelfID      ID       `json:"self_id"`
		Time        int64    `json:"time"`
		Sender      *Sender  `json:"sender"`
	}
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}

	e.PostType = strings.ToLower(k.PostType)
	e.MessageType = strings.ToLower(k.MessageType)
	e.SubType = strings.ToLower(k.SubType)
	e.Message = k.Message
	e.RawMessage = k.RawMessage
	e.MessageID = k.MessageID
	e.UserID = k.UserID
	e.GroupID = k.GroupID
	e.SelfID = k.SelfID
	e.Time = k.Time
	e.Sender = k.Sender

	e.Extra = nil
	for key, raw := range fields {
		if eventKnownFields[key] {
			continue
		}
		if e.Extra == nil {
			e.Extra = map[string]json.RawMessage{}
		}
		e.Extra[key] = raw
	}
	return nil
}

// IsGroup reports whether the event belongs to a group conversation.
func (e *Event) IsGroup() bool { return e.MessageType == ScopeGroup }

// SenderName returns the sender's group card if set, else the nickname.
func (e *Event) SenderName() string {
	if e.Sender == nil {
		return ""
	}
	if card := strings.TrimSpace(e.Sender.Card); card != "" {
		return card
	}
	return strings.TrimSpace(e.Sender.Nickname)
}

// ActionResponse is the peer's reply to an action request.
type ActionResponse struct {
	Status  string          `json:"status,omitempty"`
	Retcode *int            `json:"retcode,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Msg     string          `json:"msg,omitempty"`
	Echo    ID              `json:"echo,omitempty"`
}

// OK reports whether the peer accepted the action. Responses with neither a
// status nor a retcode are treated as success.
func (r *ActionResponse) OK() bool {
	if r.Status != "" {
		return r.Status == "ok"
	}
	if r.Retcode != nil {
		return *r.Retcode == 0
	}
	return true
}

// ErrorText renders the peer's failure reason.
func (r *ActionResponse) ErrorText() string {
	if r.Msg != "" {
		return r.Msg
	}
	if r.Retcode != nil {
		return fmt.Sprintf("retcode=%d", *r.Retcode)
	}
	return "action failed"
}

// MessageID extracts data.message_id from a send-style response, or "".
func (r *ActionResponse) MessageID() string {
	if len(r.Data) == 0 {
		return ""
	}
	var data struct {
		MessageID ID `json:"message_id"`
	}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return ""
	}
	return data.MessageID.String()
}

// actionRequest is the wire form of an action invocation.
type actionRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Echo   string         `json:"echo"`
}
