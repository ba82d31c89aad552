package onebot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
)

const (
	actionTimeout  = 15 * time.Second
	reconnectDelay = 3 * time.Second
)

// EventHandler receives every decoded inbound event. Handlers run on the
// client's read goroutine and must not block.
type EventHandler func(*Event)

// Client performs OneBot 11 actions against one configured backend.
type Client interface {
	// Invoke sends an action and waits for the correlated response peer
	// acknowledgment, the action timeout, ctx cancellation, or Stop,
	// whichever comes first.
	Invoke(ctx context.Context, action string, params map[string]any) (*ActionResponse, error)

	// Stop tears the client down. Pending invocations fail with
	// ErrClientClosed and later Invoke calls are rejected.
	Stop()

	// LastError reports the most recent transport failure (socket drop,
	// failed reconnect), or "" once the connection recovers.
	LastError() string

	// Format reports the configured outbound message encoding,
	// config.FormatArray or config.FormatString.
	Format() string

	// ReportSelfMessage reports whether self-originated events should
	// flow through the inbound pipeline.
	ReportSelfMessage() bool

	// ReportOfflineMessage reports whether offline-replay direct
	// messages should be processed.
	ReportOfflineMessage() bool
}

// Dial builds and starts a client for the given connection config. The
// returned client is connected: for the websocket transport both sockets
// are established, for HTTP the event poller is running.
func Dial(ctx context.Context, accountID string, conn *config.ConnectionConfig, onEvent EventHandler) (Client, error) {
	if conn == nil {
		return nil, fmt.Errorf("account %s: no connection configured", accountID)
	}
	if issue := config.ConnectionIssue(conn); issue != "" {
		return nil, fmt.Errorf("account %s: %s", accountID, issue)
	}
	switch conn.Type {
	case config.ConnectionWS:
		return dialWS(ctx, accountID, conn, onEvent)
	case config.ConnectionHTTP:
		return dialHTTP(ctx, accountID, conn, onEvent)
	default:
		return nil, fmt.Errorf("account %s: connection type not supported yet: %s", accountID, conn.Type)
	}
}

// Registry tracks live clients by account id.
type Registry struct {
	mu      sync.Mutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: map[string]Client{}}
}

func (r *Registry) Put(accountID string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[accountID] = c
}

func (r *Registry) Get(accountID string) (Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[accountID]
	return c, ok
}

// Remove drops and returns the client for accountID, if any. The caller
// owns stopping it.
func (r *Registry) Remove(accountID string) (Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[accountID]
	if ok {
		delete(r.clients, accountID)
	}
	return c, ok
}

func (r *Registry) AccountIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
