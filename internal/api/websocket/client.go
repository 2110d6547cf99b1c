package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/auth"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Time a new connection has to send its auth message
	authWait = 10 * time.Second

	maxMessageSize = 8192
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	devices map[string]bool // nil means every device
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	registered := false
	defer func() {
		if registered {
			select {
			case c.hub.unregister <- c:
			case <-c.hub.done:
			}
			return
		}
		c.closeSend()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(authWait))

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("remote_addr", c.remoteAddr()))
			}
			return
		}

		if registered {
			c.handleMessage(msg)
			continue
		}

		// First message MUST be authentication
		if msg.Type != MessageTypeAuth {
			c.sendAuthFailed("First message must be authentication")
			return
		}
		if msg.Token == "" {
			c.sendAuthFailed("Missing token in auth message")
			return
		}

		permissions, err := c.hub.validator.ValidateToken(msg.Token)
		if err != nil {
			c.logger.Warn("WebSocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.remoteAddr()))
			c.sendAuthFailed("Invalid or expired token")
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		select {
		case c.hub.register <- c:
			registered = true
		case <-c.hub.done:
			return
		}

		c.sendAuthSuccess(permissions)
		c.logger.Info("WebSocket client authenticated",
			zap.String("remote_addr", c.remoteAddr()),
			zap.Any("permissions", permissions))
	}
}

func (c *Client) sendAuthSuccess(permissions []auth.Permission) {
	c.sendJSON(map[string]interface{}{
		"type":        MessageTypeAuthSuccess,
		"timestamp":   time.Now(),
		"permissions": permissions,
	})
}

func (c *Client) sendAuthFailed(reason string) {
	c.sendJSON(map[string]interface{}{
		"type":      MessageTypeAuthFailed,
		"timestamp": time.Now(),
		"reason":    reason,
	})
}

// handleMessage processes subscriptions. An empty device list subscribes
// to every device again.
func (c *Client) handleMessage(msg clientMessage) {
	if msg.Type != MessageTypeSubscribe {
		c.logger.Debug("Ignoring client message",
			zap.String("remote_addr", c.remoteAddr()),
			zap.String("type", string(msg.Type)))
		return
	}

	c.mu.Lock()
	if len(msg.DeviceIDs) == 0 {
		c.devices = nil
	} else {
		c.devices = make(map[string]bool, len(msg.DeviceIDs))
		for _, id := range msg.DeviceIDs {
			c.devices[id] = true
		}
	}
	c.mu.Unlock()

	c.sendJSON(map[string]interface{}{
		"type":       MessageTypeSubscribed,
		"timestamp":  time.Now(),
		"device_ids": msg.DeviceIDs,
	})
}

// wants reports whether a message about deviceID goes to this client.
// Messages without a device go to everyone.
func (c *Client) wants(deviceID string) bool {
	if deviceID == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devices == nil || c.devices[deviceID]
}

func (c *Client) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal client message", zap.Error(err))
		return
	}
	c.enqueue(data)
}

// enqueue hands data to the write pump without blocking. It reports false
// when the client is closed or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend stops the write pump. Safe to call more than once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) remoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// writePump handles writing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request. The client joins the hub once its first
// message authenticates it.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade error",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: hub.logger,
	}

	go client.writePump()
	go client.readPump()
}
