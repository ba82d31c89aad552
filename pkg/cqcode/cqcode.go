// Package cqcode implements the CQ-code inline markup used by OneBot 11
// string-format messages: plain text interleaved with bracket tags of the
// form [CQ:type,key=value,key=value].
package cqcode

import (
	"regexp"
	"strings"
)

// Segment is one typed unit of a message: a text run or a CQ tag.
type Segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

var tagPattern = regexp.MustCompile(`\[CQ:([a-zA-Z0-9_-]+)([^\]]*)\]`)

// Parse splits markup text into segments, preserving interleaved plain-text
// runs as text segments. Unknown tag types are kept as-is.
func Parse(message string) []Segment {
	var segments []Segment
	last := 0

	for _, match := range tagPattern.FindAllStringSubmatchIndex(message, -1) {
		start, end := match[0], match[1]
		if start > last {
			segments = append(segments, textSegment(message[last:start]))
		}

		tagType := message[match[2]:match[3]]
		rawParams := message[match[4]:match[5]]
		data := map[string]string{}

		trimmed := strings.TrimPrefix(rawParams, ",")
		if trimmed != "" {
			for _, entry := range strings.Split(trimmed, ",") {
				key, value, _ := strings.Cut(entry, "=")
				if key == "" {
					continue
				}
				data[key] = value
			}
		}

		segments = append(segments, Segment{Type: tagType, Data: data})
		last = end
	}

	if last < len(message) {
		segments = append(segments, textSegment(message[last:]))
	}

	return segments
}

func textSegment(text string) Segment {
	return Segment{Type: "text", Data: map[string]string{"text": text}}
}

// Rendered is the flattened projection of a segment list.
type Rendered struct {
	Text      string
	Mentions  []string
	ReplyToID string
}

// Render flattens segments into display text, collecting mention ids in
// encounter order and the first reply-reference id. Mentions render inline
// as @<id> (or @all); media segments render as an attachment placeholder.
func Render(segments []Segment) Rendered {
	var parts []string
	var mentions []string
	replyToID := ""

	for _, segment := range segments {
		switch segment.Type {
		case "text":
			if text := segment.Data["text"]; text != "" {
				parts = append(parts, text)
			}
		case "at":
			if target := segment.Data["qq"]; target != "" {
				mentions = append(mentions, target)
				if target == "all" {
					parts = append(parts, "@all")
				} else {
					parts = append(parts, "@"+target)
				}
			}
		case "reply":
			if id := segment.Data["id"]; id != "" && replyToID == "" {
				replyToID = id
			}
		case "image", "record", "video":
			file := segment.Data["url"]
			if file == "" {
				file = segment.Data["file"]
			}
			if file != "" {
				parts = append(parts, "Attachment: "+file)
			}
		}
	}

	return Rendered{
		Text:      strings.TrimSpace(strings.Join(parts, "")),
		Mentions:  mentions,
		ReplyToID: replyToID,
	}
}

// BuildParams describes an outbound message to compose in markup form.
type BuildParams struct {
	Text      string
	ReplyToID string
	MediaURL  string
	MediaType string // image | record | video; empty defaults to image
}

// Build composes a markup string: reply tag first, then text, then media.
func Build(params BuildParams) string {
	var parts []string
	if params.ReplyToID != "" {
		parts = append(parts, "[CQ:reply,id="+params.ReplyToID+"]")
	}
	if params.Text != "" {
		parts = append(parts, params.Text)
	}
	if params.MediaURL != "" {
		mediaType := params.MediaType
		if mediaType == "" {
			mediaType = "image"
		}
		parts = append(parts, "[CQ:"+mediaType+",file="+params.MediaURL+"]")
	}
	return strings.Join(parts, "")
}
