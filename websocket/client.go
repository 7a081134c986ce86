package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"options-flow-tracker/models"
)

const writeWait = 10 * time.Second

// Client represents a single WebSocket connection to the flow stream
type Client struct {
	url        string
	conn       *websocket.Conn
	header     http.Header
	dialer     *websocket.Dialer
	writeMu    sync.Mutex
	pingMu     sync.Mutex
	pingCancel context.CancelFunc // Cancel function for ping goroutine
	log        *logrus.Entry
}

// NewClient creates a new WebSocket client
func NewClient(url string, header http.Header, dialTimeout time.Duration, log *logrus.Entry) *Client {
	if header == nil {
		header = make(http.Header)
	}
	dialer := *websocket.DefaultDialer
	if dialTimeout > 0 {
		dialer.HandshakeTimeout = dialTimeout
	}

	return &Client{
		url:    url,
		header: header,
		dialer: &dialer,
		log:    log,
	}
}

// Connect establishes WebSocket connection
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	c.conn = conn
	c.log.Infof("✅ Connected to %s", c.url)
	return nil
}

// Subscribe sends the subscription message declaring the symbol universe
func (c *Client) Subscribe(msg models.SubscribeMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}

	c.log.Infof("📡 Subscribed to %d futures and %d equity symbols", len(msg.FuturesSymbols), len(msg.EquitySymbols))
	return nil
}

// StartPing starts periodic control pings to keep the connection alive
func (c *Client) StartPing(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.pingMu.Lock()
	c.pingCancel = cancel
	c.pingMu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.writeControl(websocket.PingMessage, nil); err != nil {
					c.log.Debugf("Failed to send ping: %v", err)
					return
				}
			}
		}
	}()
}

func (c *Client) writeControl(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.conn.WriteControl(messageType, data, time.Now().Add(writeWait))
}

// ReadFrame blocks until the next data frame arrives
func (c *Client) ReadFrame() (binary bool, data []byte, err error) {
	if c.conn == nil {
		return false, nil, fmt.Errorf("connection is nil")
	}
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return false, nil, err
	}
	return messageType == websocket.BinaryMessage, data, nil
}

// Close sends a close frame and closes the connection
func (c *Client) Close() error {
	// Cancel ping goroutine if it's running
	c.pingMu.Lock()
	if c.pingCancel != nil {
		c.pingCancel()
	}
	c.pingMu.Unlock()

	if c.conn != nil {
		_ = c.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return c.conn.Close()
	}
	return nil
}
