package router

import (
	"strings"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
)

// Commands detects leading control commands using the configured prefix.
type Commands struct {
	cfg *config.Config
}

func NewCommands(cfg *config.Config) Commands {
	return Commands{cfg: cfg}
}

// HandleTextCommands reports whether text commands are enabled for a
// surface.
func (c Commands) HandleTextCommands(surface string) bool {
	return c.cfg.Commands.TextCommands
}

func (c Commands) prefix() string {
	if p := c.cfg.Commands.Prefix; p != "" {
		return p
	}
	return "/"
}

// HasCommand reports whether the text opens with the command prefix
// followed by a command word.
func (c Commands) HasCommand(text string) bool {
	trimmed := strings.TrimSpace(text)
	prefix := c.prefix()
	if !strings.HasPrefix(trimmed, prefix) {
		return false
	}
	rest := trimmed[len(prefix):]
	return rest != "" && !strings.HasPrefix(rest, prefix) && !strings.HasPrefix(rest, " ")
}

// ParseCommand splits a command text into its word and argument remainder.
func (c Commands) ParseCommand(text string) (word, args string, ok bool) {
	if !c.HasCommand(text) {
		return "", "", false
	}
	rest := strings.TrimSpace(text)[len(c.prefix()):]
	word, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(word), strings.TrimSpace(args), true
}
