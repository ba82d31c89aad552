// Package logger provides the channel-scoped leveled logger used across
// the gateway. Every subsystem logs under a short channel tag ("onebot",
// "inbound", "agent") so a single account's traffic can be followed with
// grep.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return "?"
}

var (
	mu    sync.Mutex
	level = INFO
	out   io.Writer = os.Stderr
)

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetOutput redirects log output; used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func logf(l Level, channel, msg string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}
	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(channel)
	b.WriteString("] ")
	b.WriteString(l.String())
	b.WriteString(" ")
	b.WriteString(msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteString("\n")
	io.WriteString(out, b.String())
}

func DebugC(channel, msg string) { logf(DEBUG, channel, msg, nil) }
func InfoC(channel, msg string)  { logf(INFO, channel, msg, nil) }
func WarnC(channel, msg string)  { logf(WARN, channel, msg, nil) }
func ErrorC(channel, msg string) { logf(ERROR, channel, msg, nil) }

func DebugCF(channel, msg string, fields map[string]any) { logf(DEBUG, channel, msg, fields) }
func InfoCF(channel, msg string, fields map[string]any)  { logf(INFO, channel, msg, fields) }
func WarnCF(channel, msg string, fields map[string]any)  { logf(WARN, channel, msg, fields) }
func ErrorCF(channel, msg string, fields map[string]any) { logf(ERROR, channel, msg, fields) }
