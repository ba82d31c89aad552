package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
)

func TestHasCommand(t *testing.T) {
	cmds := NewCommands(config.DefaultConfig())

	assert.True(t, cmds.HasCommand("/status"))
	assert.True(t, cmds.HasCommand("  /help now  "))
	assert.False(t, cmds.HasCommand("status"))
	assert.False(t, cmds.HasCommand("/"))
	assert.False(t, cmds.HasCommand("//escaped"))
	assert.False(t, cmds.HasCommand("/ spaced"))
	assert.False(t, cmds.HasCommand(""))
}

func TestHasCommandCustomPrefix(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Commands.Prefix = "!"
	cmds := NewCommands(cfg)

	assert.True(t, cmds.HasCommand("!status"))
	assert.False(t, cmds.HasCommand("/status"))
	assert.False(t, cmds.HasCommand("!!x"))
}

func TestHasCommandEmptyPrefixDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Commands.Prefix = ""
	cmds := NewCommands(cfg)

	assert.True(t, cmds.HasCommand("/status"))
}

func TestParseCommand(t *testing.T) {
	cmds := NewCommands(config.DefaultConfig())

	word, args, ok := cmds.ParseCommand("/Status now please")
	assert.True(t, ok)
	assert.Equal(t, "status", word)
	assert.Equal(t, "now please", args)

	word, args, ok = cmds.ParseCommand("/help")
	assert.True(t, ok)
	assert.Equal(t, "help", word)
	assert.Empty(t, args)

	_, _, ok = cmds.ParseCommand("no command")
	assert.False(t, ok)
}

func TestHandleTextCommands(t *testing.T) {
	cfg := config.DefaultConfig()
	cmds := NewCommands(cfg)
	assert.False(t, cmds.HandleTextCommands("qq"))

	cfg.Commands.TextCommands = true
	assert.True(t, cmds.HandleTextCommands("qq"))
}
