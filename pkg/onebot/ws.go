package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/logger"
)

// wsClient drives the forward-websocket transport: one socket for the
// action request/response stream and one for pushed events. Each socket
// reconnects independently on a fixed delay.
type wsClient struct {
	accountID string
	conn      config.ConnectionConfig
	onEvent   EventHandler

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	closed  atomic.Bool
	timeout time.Duration
	lastErr atomic.Value // string

	writeMu    sync.Mutex
	actionSock atomic.Pointer[websocket.Conn]
	eventSock  atomic.Pointer[websocket.Conn]

	pendingMu sync.Mutex
	pending   map[string]chan *ActionResponse

	echoCounter atomic.Int64
}

func dialWS(ctx context.Context, accountID string, conn *config.ConnectionConfig, onEvent EventHandler) (*wsClient, error) {
	derived, cancel := context.WithCancel(ctx)
	c := &wsClient{
		accountID: accountID,
		conn:      *conn,
		onEvent:   onEvent,
		ctx:       derived,
		cancel:    cancel,
		done:      make(chan struct{}),
		timeout:   actionTimeout,
		pending:   map[string]chan *ActionResponse{},
	}

	// Both sockets are dialed concurrently; either failure aborts the dial.
	var actionSock, eventSock *websocket.Conn
	var actionErr, eventErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		actionSock, actionErr = c.dialSocket("/api")
	}()
	go func() {
		defer wg.Done()
		eventSock, eventErr = c.dialSocket("/event")
	}()
	wg.Wait()
	if actionErr != nil {
		if eventSock != nil {
			eventSock.Close()
		}
		cancel()
		return nil, &TransportError{Op: "dial action socket", Err: actionErr}
	}
	if eventErr != nil {
		actionSock.Close()
		cancel()
		return nil, &TransportError{Op: "dial event socket", Err: eventErr}
	}

	c.actionSock.Store(actionSock)
	c.eventSock.Store(eventSock)
	go c.runSocket("/api", actionSock, c.handleActionFrame, func(sock *websocket.Conn) {
		c.actionSock.Store(sock)
	})
	go c.runSocket("/event", eventSock, c.handleEventFrame, func(sock *websocket.Conn) {
		c.eventSock.Store(sock)
	})

	logger.InfoCF("qq", "Connected", map[string]any{
		"account":  accountID,
		"endpoint": c.conn.BaseURL(),
	})
	return c, nil
}

func (c *wsClient) socketURL(path string) string {
	u := url.URL{
		Scheme: "ws",
		Host:   fmt.Sprintf("%s:%d", c.conn.Host, c.conn.Port),
		Path:   path,
	}
	if c.conn.Token != "" {
		q := url.Values{}
		q.Set("access_token", c.conn.Token)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *wsClient) dialSocket(path string) (*websocket.Conn, error) {
	header := http.Header{}
	if c.conn.Token != "" {
		header.Set("Authorization", "Bearer "+c.conn.Token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	sock, _, err := dialer.DialContext(c.ctx, c.socketURL(path), header)
	return sock, err
}

// runSocket reads frames until the socket fails, then redials on a fixed
// delay until the client stops. onRedial publishes the replacement socket.
func (c *wsClient) runSocket(path string, sock *websocket.Conn, handle func([]byte), onRedial func(*websocket.Conn)) {
	for {
		c.readFrames(path, sock, handle)
		sock.Close()
		if onRedial != nil {
			onRedial(nil)
		}

		for {
			select {
			case <-c.done:
				return
			case <-time.After(reconnectDelay):
			}
			next, err := c.dialSocket(path)
			if err != nil {
				c.noteErr("reconnect " + path + ": " + err.Error())
				logger.WarnCF("qq", "Reconnect failed", map[string]any{
					"account": c.accountID,
					"socket":  path,
					"error":   err.Error(),
				})
				continue
			}
			sock = next
			if onRedial != nil {
				onRedial(sock)
			}
			c.noteErr("")
			logger.InfoCF("qq", "Reconnected", map[string]any{
				"account": c.accountID,
				"socket":  path,
			})
			break
		}
	}
}

func (c *wsClient) readFrames(path string, sock *websocket.Conn, handle func([]byte)) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.noteErr("socket " + path + ": " + err.Error())
			logger.WarnCF("qq", "Socket closed", map[string]any{
				"account": c.accountID,
				"socket":  path,
				"error":   err.Error(),
			})
			return
		}
		handle(data)
	}
}

// handleActionFrame resolves the pending invocation correlated by echo.
// Responses with no matching waiter are dropped.
func (c *wsClient) handleActionFrame(data []byte) {
	var resp ActionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.DebugCF("qq", "Dropping frame", map[string]any{
			"account": c.accountID,
			"error":   (&DecodeError{What: "action response", Err: err}).Error(),
		})
		return
	}
	echo := resp.Echo.String()
	if echo == "" {
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[echo]
	if ok {
		delete(c.pending, echo)
	}
	c.pendingMu.Unlock()
	if !ok {
		logger.DebugCF("qq", "Late action response", map[string]any{
			"account": c.accountID,
			"echo":    echo,
		})
		return
	}
	ch <- &resp
}

func (c *wsClient) handleEventFrame(data []byte) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		logger.DebugCF("qq", "Dropping frame", map[string]any{
			"account": c.accountID,
			"error":   (&DecodeError{What: "event", Err: err}).Error(),
		})
		return
	}
	if c.onEvent != nil {
		c.onEvent(&event)
	}
}

func (c *wsClient) nextEcho() string {
	return fmt.Sprintf("qq:%d:%d", time.Now().UnixMilli(), c.echoCounter.Add(1))
}

func (c *wsClient) Invoke(ctx context.Context, action string, params map[string]any) (*ActionResponse, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	sock := c.actionSock.Load()
	if sock == nil {
		return nil, &TransportError{Op: "invoke " + action, Err: fmt.Errorf("action socket not connected")}
	}

	echo := c.nextEcho()
	payload, err := json.Marshal(actionRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", action, err)
	}

	ch := make(chan *ActionResponse, 1)
	c.pendingMu.Lock()
	c.pending[echo] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err = sock.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(echo)
		return nil, &TransportError{Op: "invoke " + action, Err: err}
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		c.dropPending(echo)
		return nil, fmt.Errorf("%s: %w", action, ErrActionTimeout)
	case <-ctx.Done():
		c.dropPending(echo)
		return nil, ctx.Err()
	case <-c.done:
		c.dropPending(echo)
		return nil, ErrClientClosed
	}
}

func (c *wsClient) dropPending(echo string) {
	c.pendingMu.Lock()
	delete(c.pending, echo)
	c.pendingMu.Unlock()
}

func (c *wsClient) pendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

func (c *wsClient) Stop() {
	if c.closed.Swap(true) {
		return
	}
	close(c.done)
	c.cancel()
	if sock := c.actionSock.Load(); sock != nil {
		sock.Close()
	}
	if sock := c.eventSock.Load(); sock != nil {
		sock.Close()
	}
	logger.InfoCF("qq", "Stopped", map[string]any{"account": c.accountID})
}

func (c *wsClient) noteErr(msg string) { c.lastErr.Store(msg) }

func (c *wsClient) LastError() string {
	v, _ := c.lastErr.Load().(string)
	return v
}

func (c *wsClient) Format() string { return c.conn.Format() }

func (c *wsClient) ReportSelfMessage() bool { return c.conn.ReportSelfMessage }

func (c *wsClient) ReportOfflineMessage() bool { return c.conn.ReportOfflineMessage }
