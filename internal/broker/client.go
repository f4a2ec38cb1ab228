package broker

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Warpchat/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP blobs fit comfortably.
	maxMessageSize = 64 * 1024
)

// Client is one websocket connection to the broker.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// send is drained by writePump.
	send chan *signaling.Message

	// The fields below are owned by the hub goroutine.
	id         string
	clientType string
	contacts   map[string]bool
}

type inbound struct {
	client *Client
	msg    *signaling.Message
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan *signaling.Message, 256),
		contacts: make(map[string]bool),
	}
}

// readPump pumps messages from the websocket connection to the hub. There is
// at most one reader per connection.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "remote", c.conn.RemoteAddr(), "error", err)
			}
			return
		}

		select {
		case c.hub.inbound <- inbound{client: c, msg: &msg}:
		case <-c.hub.stopped:
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection. There is
// at most one writer per connection.
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
			if err := c.conn.WriteJSON(message); err != nil {
				slog.Debug("websocket write failed", "remote", c.conn.RemoteAddr(), "error", err)
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
