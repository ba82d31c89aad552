package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// wsBackend is a fake OneBot server exposing the /api and /event sockets.
type wsBackend struct {
	t      *testing.T
	server *httptest.Server

	onAction func(req actionRequest) *ActionResponse

	mu        sync.Mutex
	authz     []string
	eventSock *websocket.Conn
}

func newWSBackend(t *testing.T, onAction func(actionRequest) *ActionResponse) *wsBackend {
	t.Helper()
	b := &wsBackend{t: t, onAction: onAction}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.server.Close)
	return b
}

func (b *wsBackend) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.authz = append(b.authz, r.Header.Get("Authorization")+"|"+r.URL.Query().Get("access_token"))
	b.mu.Unlock()

	sock, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	switch r.URL.Path {
	case "/api":
		for {
			_, data, err := sock.ReadMessage()
			if err != nil {
				return
			}
			var req actionRequest
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			if b.onAction == nil {
				continue // swallow, leave the caller pending
			}
			resp := b.onAction(req)
			resp.Echo = ID(req.Echo)
			payload, _ := json.Marshal(resp)
			sock.WriteMessage(websocket.TextMessage, payload)
		}
	case "/event":
		b.mu.Lock()
		b.eventSock = sock
		b.mu.Unlock()
		for {
			if _, _, err := sock.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func (b *wsBackend) pushEvent(raw string) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		sock := b.eventSock
		b.mu.Unlock()
		if sock != nil {
			require.NoError(b.t, sock.WriteMessage(websocket.TextMessage, []byte(raw)))
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	b.t.Fatal("event socket never connected")
}

func (b *wsBackend) connection(token string) *config.ConnectionConfig {
	host, portStr, err := net.SplitHostPort(b.server.Listener.Addr().String())
	require.NoError(b.t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(b.t, err)
	return &config.ConnectionConfig{
		Type:  config.ConnectionWS,
		Host:  host,
		Port:  port,
		Token: token,
	}
}

func TestWSInvokeRoundTrip(t *testing.T) {
	backend := newWSBackend(t, func(req actionRequest) *ActionResponse {
		assert.Equal(t, "send_private_msg", req.Action)
		assert.Equal(t, "42", req.Params["user_id"])
		return &ActionResponse{Status: "ok", Data: json.RawMessage(`{"message_id": 900}`)}
	})

	client, err := dialWS(context.Background(), "main", backend.connection(""), nil)
	require.NoError(t, err)
	defer client.Stop()

	resp, err := client.Invoke(context.Background(), "send_private_msg", map[string]any{"user_id": "42"})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "900", resp.MessageID())
	assert.Equal(t, 0, client.pendingCount())
}

func TestWSAuthHeaders(t *testing.T) {
	backend := newWSBackend(t, func(actionRequest) *ActionResponse {
		return &ActionResponse{Status: "ok"}
	})

	client, err := dialWS(context.Background(), "main", backend.connection("sekrit"), nil)
	require.NoError(t, err)
	defer client.Stop()

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.authz, 2)
	for _, entry := range backend.authz {
		assert.Equal(t, "Bearer sekrit|sekrit", entry)
	}
}

func TestWSStopRejectsPending(t *testing.T) {
	backend := newWSBackend(t, nil) // never answers

	client, err := dialWS(context.Background(), "main", backend.connection(""), nil)
	require.NoError(t, err)

	const callers = 3
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := client.Invoke(context.Background(), "get_login_info", nil)
			results <- err
		}()
	}

	// Wait for all invocations to register before stopping.
	require.Eventually(t, func() bool {
		return client.pendingCount() == callers
	}, 2*time.Second, 10*time.Millisecond)

	client.Stop()
	for i := 0; i < callers; i++ {
		select {
		case err := <-results:
			assert.ErrorIs(t, err, ErrClientClosed)
		case <-time.After(2 * time.Second):
			t.Fatal("invocation never unblocked")
		}
	}
	assert.Equal(t, 0, client.pendingCount())

	_, err = client.Invoke(context.Background(), "get_login_info", nil)
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestWSEventDelivery(t *testing.T) {
	events := make(chan *Event, 1)
	backend := newWSBackend(t, func(actionRequest) *ActionResponse {
		return &ActionResponse{Status: "ok"}
	})

	client, err := dialWS(context.Background(), "main", backend.connection(""), func(ev *Event) {
		events <- ev
	})
	require.NoError(t, err)
	defer client.Stop()

	backend.pushEvent(`{"post_type":"message","message_type":"private","user_id":7,"message":"hi"}`)

	select {
	case ev := <-events:
		assert.Equal(t, PostMessage, ev.PostType)
		assert.Equal(t, ScopePrivate, ev.MessageType)
		assert.Equal(t, ID("7"), ev.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestWSInvokeTimeout(t *testing.T) {
	backend := newWSBackend(t, nil) // never answers

	client, err := dialWS(context.Background(), "main", backend.connection(""), nil)
	require.NoError(t, err)
	defer client.Stop()
	client.timeout = 100 * time.Millisecond

	_, err = client.Invoke(context.Background(), "get_login_info", nil)
	assert.ErrorIs(t, err, ErrActionTimeout)
	assert.Equal(t, 0, client.pendingCount())
}

func TestWSInvokeContextCancel(t *testing.T) {
	backend := newWSBackend(t, nil)

	client, err := dialWS(context.Background(), "main", backend.connection(""), nil)
	require.NoError(t, err)
	defer client.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err = client.Invoke(ctx, "get_login_info", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, client.pendingCount())
}

func TestWSLateResponseIgnored(t *testing.T) {
	c := &wsClient{pending: map[string]chan *ActionResponse{}}

	// No waiter registered for this echo; the frame is dropped.
	c.handleActionFrame([]byte(`{"status":"ok","echo":"qq:1:1"}`))
	assert.Equal(t, 0, c.pendingCount())

	ch := make(chan *ActionResponse, 1)
	c.pending["qq:1:2"] = ch
	c.handleActionFrame([]byte(`{"status":"ok","echo":"qq:1:2"}`))
	select {
	case resp := <-ch:
		assert.True(t, resp.OK())
	default:
		t.Fatal("pending invocation not resolved")
	}
	assert.Equal(t, 0, c.pendingCount())
}

func TestWSDialFailure(t *testing.T) {
	conn := &config.ConnectionConfig{Type: config.ConnectionWS, Host: "127.0.0.1", Port: 1}
	_, err := dialWS(context.Background(), "main", conn, nil)
	require.Error(t, err)
	var terr *TransportError
	assert.True(t, errors.As(err, &terr))
}

func TestWSDialEventSocketRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/event" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		sock, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := sock.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	host, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	conn := &config.ConnectionConfig{Type: config.ConnectionWS, Host: host, Port: port}
	_, err = dialWS(context.Background(), "main", conn, nil)
	require.Error(t, err)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "dial event socket", terr.Op)
}
