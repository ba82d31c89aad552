// Package message normalizes inbound payloads from either wire encoding
// into plain text plus structured mention, reply, and media references.
package message

import (
	"fmt"
	"strings"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/cqcode"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

// MediaRef points at one attachment carried by a message.
type MediaRef struct {
	Type string
	URL  string
}

// Parsed is the normalized form of an inbound message.
type Parsed struct {
	Text      string
	Mentions  []string
	ReplyToID string
	Media     []MediaRef
}

// IsEmpty reports whether nothing usable was extracted.
func (p Parsed) IsEmpty() bool {
	return p.Text == "" && len(p.Mentions) == 0 && p.ReplyToID == "" && len(p.Media) == 0
}

// Parse normalizes a message in either encoding. rawMessage is the
// backend's markup rendering, used when the structured payload is absent.
func Parse(msg *onebot.Message, rawMessage string) Parsed {
	if msg != nil && msg.IsArray {
		return fromSegments(msg.Segments)
	}
	text := rawMessage
	if msg != nil && msg.Text != "" {
		text = msg.Text
	}
	return fromSegments(fromCQ(cqcode.Parse(text)))
}

func fromCQ(segs []cqcode.Segment) []onebot.Segment {
	out := make([]onebot.Segment, 0, len(segs))
	for _, s := range segs {
		data := make(map[string]any, len(s.Data))
		for k, v := range s.Data {
			data[k] = v
		}
		out = append(out, onebot.Segment{Type: s.Type, Data: data})
	}
	return out
}

func fromSegments(segs []onebot.Segment) Parsed {
	var p Parsed
	var parts []string
	for _, s := range segs {
		switch strings.ToLower(s.Type) {
		case "text":
			if t := s.Str("text"); t != "" {
				parts = append(parts, t)
			}
		case "at":
			if id := s.Str("qq"); id != "" {
				p.Mentions = append(p.Mentions, id)
				if id == "all" {
					parts = append(parts, "@all")
				} else {
					parts = append(parts, "@"+id)
				}
			}
		case "reply":
			if p.ReplyToID == "" {
				p.ReplyToID = s.Str("id")
			}
		case "image", "record", "video":
			url := s.Str("url")
			if url == "" {
				url = s.Str("file")
			}
			if url != "" {
				p.Media = append(p.Media, MediaRef{Type: strings.ToLower(s.Type), URL: url})
				parts = append(parts, "Attachment: "+url)
			}
		case "forward":
			parts = append(parts, fmt.Sprintf("[Forward Message: %s]", s.Str("id")))
		case "face":
			parts = append(parts, fmt.Sprintf("[Face:%s]", s.Str("id")))
		case "poke":
			parts = append(parts, fmt.Sprintf("[Poke:%s:%s]", s.Str("type"), s.Str("id")))
		case "json":
			parts = append(parts, "[JSON Card]")
		case "xml":
			parts = append(parts, "[XML Card]")
		case "file":
			name := s.Str("name")
			if name == "" {
				name = s.Str("file")
			}
			parts = append(parts, fmt.Sprintf("[File: %s]", name))
		}
	}
	p.Text = strings.TrimSpace(strings.Join(parts, ""))
	return p
}

// HasSelfMention reports whether the bot itself was mentioned, counting
// the "all" broadcast mention.
func HasSelfMention(mentions []string, selfID string) bool {
	for _, m := range mentions {
		if m == "all" {
			return true
		}
		if selfID != "" && m == selfID {
			return true
		}
	}
	return false
}
