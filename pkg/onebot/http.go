package onebot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/logger"
)

// httpClient drives the HTTP transport: actions POSTed one request each,
// events consumed from a long-lived line-delimited stream that reopens on
// a fixed delay whenever it drops.
type httpClient struct {
	accountID string
	conn      config.ConnectionConfig
	onEvent   EventHandler

	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
	lastErr atomic.Value // string

	actions *http.Client
	stream  *http.Client
}

func dialHTTP(ctx context.Context, accountID string, conn *config.ConnectionConfig, onEvent EventHandler) (*httpClient, error) {
	derived, cancel := context.WithCancel(ctx)
	c := &httpClient{
		accountID: accountID,
		conn:      *conn,
		onEvent:   onEvent,
		ctx:       derived,
		cancel:    cancel,
		actions:   &http.Client{Timeout: actionTimeout},
		stream:    &http.Client{},
	}
	go c.runEventStream()
	logger.InfoCF("qq", "Connected", map[string]any{
		"account":  accountID,
		"endpoint": c.conn.BaseURL(),
	})
	return c, nil
}

func (c *httpClient) endpoint(path string) string {
	u := url.URL{
		Scheme: "http",
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

func (c *httpClient) Invoke(ctx context.Context, action string, params map[string]any) (*ActionResponse, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/"+action), bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "invoke " + action, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.conn.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.conn.Token)
	}

	resp, err := c.actions.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "invoke " + action, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{Op: "invoke " + action, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out ActionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &DecodeError{What: "action response", Err: err}
	}
	return &out, nil
}

// runEventStream keeps the /_events stream open for the client's lifetime.
func (c *httpClient) runEventStream() {
	for {
		if c.closed.Load() {
			return
		}
		if err := c.consumeStream(); err != nil && !c.closed.Load() {
			c.lastErr.Store("event stream: " + err.Error())
			logger.WarnCF("qq", "Event stream closed", map[string]any{
				"account": c.accountID,
				"error":   err.Error(),
			})
		}
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *httpClient) consumeStream() error {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, c.endpoint("/_events"), nil)
	if err != nil {
		return err
	}
	if c.conn.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.conn.Token)
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	c.lastErr.Store("")

	reader := bufio.NewReader(resp.Body)
	var record strings.Builder
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		if after, ok := strings.CutPrefix(line, "data:"); ok {
			record.WriteString(strings.TrimSpace(after))
		} else if line == "" && record.Len() > 0 {
			c.handleEventRecord(record.String())
			record.Reset()
		}

		if err != nil {
			if record.Len() > 0 {
				c.handleEventRecord(record.String())
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (c *httpClient) handleEventRecord(raw string) {
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		logger.DebugCF("qq", "Dropping record", map[string]any{
			"account": c.accountID,
			"error":   (&DecodeError{What: "event", Err: err}).Error(),
		})
		return
	}
	if c.onEvent != nil {
		c.onEvent(&event)
	}
}

func (c *httpClient) Stop() {
	if c.closed.Swap(true) {
		return
	}
	c.cancel()
	logger.InfoCF("qq", "Stopped", map[string]any{"account": c.accountID})
}

func (c *httpClient) LastError() string {
	v, _ := c.lastErr.Load().(string)
	return v
}

func (c *httpClient) Format() string { return c.conn.Format() }

func (c *httpClient) ReportSelfMessage() bool { return c.conn.ReportSelfMessage }

func (c *httpClient) ReportOfflineMessage() bool { return c.conn.ReportOfflineMessage }
