package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/cqcode"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/onebot"
)

var (
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".bmp": true, ".svg": true,
	}
	audioExtensions = map[string]bool{
		".mp3": true, ".wav": true, ".ogg": true, ".flac": true,
		".silk": true, ".m4a": true,
	}
	videoExtensions = map[string]bool{
		".mp4": true, ".mov": true, ".webm": true, ".mkv": true, ".avi": true,
	}
	fileExtensions = map[string]bool{
		".pdf": true, ".doc": true, ".docx": true, ".xls": true,
		".xlsx": true, ".ppt": true, ".pptx": true, ".zip": true,
		".rar": true, ".7z": true, ".tar": true, ".gz": true,
		".txt": true, ".csv": true, ".json": true,
	}
)

func extension(url string) string {
	lower := strings.ToLower(url)
	if i := strings.Index(lower, "?"); i >= 0 {
		lower = lower[:i]
	}
	if i := strings.LastIndex(lower, "."); i >= 0 {
		return lower[i:]
	}
	return ""
}

// guessMediaType maps a media location to the wire segment type by its
// file extension. Unknown extensions default to image.
func guessMediaType(url string) string {
	ext := extension(url)
	switch {
	case audioExtensions[ext]:
		return "record"
	case videoExtensions[ext]:
		return "video"
	case fileExtensions[ext]:
		return "file"
	case imageExtensions[ext]:
		return "image"
	}
	return "image"
}

func isLocalPath(url string) bool {
	return strings.HasPrefix(url, "/") ||
		strings.HasPrefix(url, "./") ||
		strings.HasPrefix(url, "../")
}

// buildMessagePayload composes the wire message in the connection's
// configured encoding.
func buildMessagePayload(format, text, replyToID, mediaURL string) any {
	mediaType := ""
	if mediaURL != "" {
		mediaType = guessMediaType(mediaURL)
	}

	if format == config.FormatString {
		return cqcode.Build(cqcode.BuildParams{
			Text:      text,
			ReplyToID: replyToID,
			MediaURL:  mediaURL,
			MediaType: mediaType,
		})
	}

	segments := []onebot.Segment{}
	if replyToID != "" {
		segments = append(segments, onebot.Segment{Type: "reply", Data: map[string]any{"id": replyToID}})
	}
	if text != "" {
		segments = append(segments, onebot.Segment{Type: "text", Data: map[string]any{"text": text}})
	}
	if mediaURL != "" {
		segments = append(segments, onebot.Segment{Type: mediaType, Data: map[string]any{"file": mediaURL}})
	}
	return segments
}

// SendMessage delivers a message to a target through the client, picking
// the send action by target kind. Local filesystem media is always
// embedded as markup, whatever the configured encoding, so the backend
// reads the file itself.
func SendMessage(ctx context.Context, client onebot.Client, target Target, text, replyToID, mediaURL string) (*onebot.ActionResponse, error) {
	var payload any
	if mediaURL != "" && isLocalPath(mediaURL) {
		code := fmt.Sprintf("[CQ:%s,file=%s]", guessMediaType(mediaURL), mediaURL)
		if text != "" {
			payload = text + "\n" + code
		} else {
			payload = code
		}
	} else {
		payload = buildMessagePayload(client.Format(), text, replyToID, mediaURL)
	}

	if target.Kind == TargetGroup {
		return client.Invoke(ctx, "send_group_msg", map[string]any{
			"group_id": target.ID,
			"message":  payload,
		})
	}
	return client.Invoke(ctx, "send_private_msg", map[string]any{
		"user_id": target.ID,
		"message": payload,
	})
}
