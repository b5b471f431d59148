// internal/app/live/client.go
package live

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait
	writeWait  = 10 * time.Second
)

// Client is one live connection. The group set is the membership
// snapshot taken at connect time; it decides which broadcasts this
// connection receives. Posting is gated per message by the router, so a
// stale snapshot can never be used to write.
type Client struct {
	ID     string
	UserID primitive.ObjectID

	conn   *websocket.Conn
	send   chan []byte
	groups map[primitive.ObjectID]struct{}

	hub    *Hub
	logger *zap.Logger
}

func newClient(conn *websocket.Conn, hub *Hub, userID primitive.ObjectID, groupIDs []primitive.ObjectID, sendBuffer int, logger *zap.Logger) *Client {
	groups := make(map[primitive.ObjectID]struct{}, len(groupIDs))
	for _, gid := range groupIDs {
		groups[gid] = struct{}{}
	}
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		groups: groups,
		hub:    hub,
		logger: logger,
	}
}

// readPump reads frames off the socket and hands them to the router
// until the connection dies. It owns the read side: deadlines, pong
// handling, and the unregister on exit.
func (c *Client) readPump(router *Router, maxMessageBytes int64) {
	defer func() {
		c.hub.Unregister(c)
		router.disconnected(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("live read failed",
					zap.String("conn_id", c.ID),
					zap.Error(err))
			}
			return
		}
		router.handleInbound(c, raw)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings. Exits when the hub closes the send
// channel or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
