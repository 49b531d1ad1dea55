// Package onebot implements transport.Transport over a OneBot v11 forward
// WebSocket connection (NapCat, go-cqhttp and compatible endpoints).
package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"mangabot/internal/config"
	"mangabot/internal/logger"
	"mangabot/internal/transport"
)

// Client is a OneBot v11 WebSocket transport
type Client struct {
	cfg     config.OneBotConfig
	handler transport.Handler

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool

	writeMu     sync.Mutex
	echoCounter int64
}

type rawEvent struct {
	PostType      string          `json:"post_type"`
	MessageType   string          `json:"message_type"`
	MetaEventType string          `json:"meta_event_type"`
	SelfID        json.RawMessage `json:"self_id"`
	UserID        json.RawMessage `json:"user_id"`
	GroupID       json.RawMessage `json:"group_id"`
	RawMessage    string          `json:"raw_message"`
	Time          int64           `json:"time"`
}

type apiRequest struct {
	Action string      `json:"action"`
	Params interface{} `json:"params"`
	Echo   string      `json:"echo,omitempty"`
}

type messageSegment struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type sendPrivateMsgParams struct {
	UserID  int64       `json:"user_id"`
	Message interface{} `json:"message"`
}

type sendGroupMsgParams struct {
	GroupID int64       `json:"group_id"`
	Message interface{} `json:"message"`
}

// New creates a OneBot transport from configuration
func New(cfg config.OneBotConfig) *Client {
	return &Client{cfg: cfg}
}

// OnEvent registers the inbound event handler
func (c *Client) OnEvent(h transport.Handler) {
	c.handler = h
}

// Start connects and begins the read loop. Reconnects are handled in the
// background when onebot.reconnect_interval is positive.
func (c *Client) Start(ctx context.Context) error {
	if c.cfg.WSURL == "" {
		return fmt.Errorf("onebot ws_url not configured")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		logger.Warnf("OneBot: initial connection failed, will retry in background: %v", err)
	} else {
		go c.listen(c.conn)
	}

	if c.cfg.ReconnectInterval > 0 {
		go c.reconnectLoop()
	} else if !c.connected.Load() {
		return fmt.Errorf("failed to connect to OneBot and reconnect is disabled")
	}

	logger.Infof("OneBot transport started (%s)", redactToken(c.cfg.WSURL))
	return nil
}

// Stop closes the connection
func (c *Client) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	c.connected.Store(false)

	return nil
}

// IsConnected reports whether the WebSocket is currently up
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	header := http.Header{}
	if c.cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}

	conn, _, err := dialer.Dial(c.cfg.WSURL, header)
	if err != nil {
		return err
	}

	conn.SetPongHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)

	go c.pinger(conn)

	logger.Infof("OneBot: WebSocket connected")
	return nil
}

func (c *Client) pinger(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				logger.Debugf("OneBot: ping write failed, stopping pinger: %v", err)
				return
			}
		}
	}
}

func (c *Client) listen(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.connected.Store(false)
		}
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Warnf("OneBot: read failed, connection lost: %v", err)
			return
		}

		var raw rawEvent
		if err := json.Unmarshal(data, &raw); err != nil {
			logger.Debugf("OneBot: dropping undecodable frame: %v", err)
			continue
		}

		// API responses have no post_type
		if raw.PostType == "" {
			continue
		}

		if c.handler != nil {
			c.handler(transport.Event{
				PostType:      raw.PostType,
				MessageType:   raw.MessageType,
				MetaEventType: raw.MetaEventType,
				SelfID:        jsonToString(raw.SelfID),
				UserID:        jsonToString(raw.UserID),
				GroupID:       jsonToString(raw.GroupID),
				RawMessage:    raw.RawMessage,
				Time:          raw.Time,
			})
		}
	}
}

func (c *Client) reconnectLoop() {
	interval := time.Duration(c.cfg.ReconnectInterval) * time.Second
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(interval):
			if c.connected.Load() {
				continue
			}
			logger.Infof("OneBot: attempting to reconnect...")
			if err := c.connect(); err != nil {
				logger.Errorf("OneBot: reconnect failed: %v", err)
				continue
			}
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			go c.listen(conn)
		}
	}
}

// SendText delivers a text message to a user or group
func (c *Client) SendText(userID, text, groupID string, private bool) error {
	action, params, err := buildSendParams(userID, groupID, private, text)
	if err != nil {
		return err
	}
	return c.write(action, params)
}

// SendFile delivers a local file via a OneBot file message segment
func (c *Client) SendFile(userID, path, groupID string, private bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve file path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}

	segments := []messageSegment{{
		Type: "file",
		Data: map[string]interface{}{
			"file": abs,
			"name": filepath.Base(abs),
		},
	}}

	action, params, err := buildSendParams(userID, groupID, private, segments)
	if err != nil {
		return err
	}
	return c.write(action, params)
}

func buildSendParams(userID, groupID string, private bool, message interface{}) (string, interface{}, error) {
	if private {
		uid, err := strconv.ParseInt(userID, 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid user id %q: %w", userID, err)
		}
		return "send_private_msg", sendPrivateMsgParams{UserID: uid, Message: message}, nil
	}

	gid, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid group id %q: %w", groupID, err)
	}
	return "send_group_msg", sendGroupMsgParams{GroupID: gid, Message: message}, nil
}

func (c *Client) write(action string, params interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("OneBot WebSocket not connected")
	}

	req := apiRequest{
		Action: action,
		Params: params,
		Echo:   fmt.Sprintf("send_%d", atomic.AddInt64(&c.echoCounter, 1)),
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal OneBot request: %w", err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to write OneBot request: %w", err)
	}
	return nil
}

// jsonToString renders a numeric or string JSON id as a plain string
func jsonToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n int64
	if json.Unmarshal(raw, &n) == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// redactToken hides query-string tokens when logging the endpoint URL
func redactToken(url string) string {
	if i := strings.Index(url, "token="); i >= 0 {
		return url[:i] + "token=****"
	}
	return url
}
