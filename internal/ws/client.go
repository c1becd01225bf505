package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one websocket connection subscribed to a single topic. Clients
// only listen; anything they send is read and dropped.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	AccountID string
	Topic     string
	send      chan []byte
	log       *logrus.Entry
}

func NewClient(hub *Hub, conn *websocket.Conn, accountID, topic string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		AccountID: accountID,
		Topic:     topic,
		send:      make(chan []byte, sendBuffer),
		log:       logrus.WithFields(logrus.Fields{"component": "ws_client", "account_id": accountID, "topic": topic}),
	}
}

// Run registers the client and starts its pumps.
func (c *Client) Run() {
	select {
	case c.hub.Register <- c:
	case <-c.hub.done:
		c.conn.Close()
		return
	}
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump keeps the read deadline fresh and notices disconnects.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.log.Debug("Read pump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("WebSocket read error")
			}
			return
		}
	}
}

// WritePump writes queued events and pings until the hub closes send.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithError(err).Debug("Failed to send ping")
				return
			}
		}
	}
}

// NewUpgrader accepts browser connections from allowedOrigin and
// non-browser clients that send no Origin header.
func NewUpgrader(allowedOrigin string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
		},
	}
}
