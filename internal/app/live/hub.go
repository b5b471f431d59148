// Package live carries real-time chat over WebSockets: a hub that fans
// messages out to the connected members of a group, one client per
// connection with read/write pumps, and a router that gates every
// inbound message against the membership collection before anything is
// persisted or delivered.
package live

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// broadcastReq pairs an encoded frame with the group it belongs to.
type broadcastReq struct {
	groupID primitive.ObjectID
	payload []byte
}

// directReq is a frame addressed to a single client.
type directReq struct {
	client  *Client
	payload []byte
}

// Hub is the process-scoped registry of live connections. Each client
// is subscribed to the set of groups it was a member of at connect
// time; Broadcast delivers a frame to every client subscribed to a
// group.
//
// Every map mutation and every send into a client channel happens on
// the Run goroutine, fed by the register, unregister, broadcast, and
// direct channels. Serializing sends with removal means a send can
// never race the close of a client's channel.
type Hub struct {
	clients map[*Client]struct{}
	rooms   map[primitive.ObjectID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastReq
	direct     chan directReq

	done   chan struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[primitive.ObjectID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastReq),
		direct:     make(chan directReq),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, after
// closing every connected client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case req := <-h.broadcast:
			h.deliver(req)
		case req := <-h.direct:
			h.deliverTo(req)
		}
	}
}

// Register subscribes a client to its group set and starts tracking it.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister drops a client. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast delivers payload to every client subscribed to groupID.
func (h *Hub) Broadcast(groupID primitive.ObjectID, payload []byte) {
	select {
	case h.broadcast <- broadcastReq{groupID: groupID, payload: payload}:
	case <-h.done:
	}
}

// sendTo queues a frame for a single client. A no-op once the client is
// unregistered or the hub has stopped.
func (h *Hub) sendTo(c *Client, payload []byte) {
	select {
	case h.direct <- directReq{client: c, payload: payload}:
	case <-h.done:
	}
}

func (h *Hub) add(c *Client) {
	h.clients[c] = struct{}{}
	for gid := range c.groups {
		room := h.rooms[gid]
		if room == nil {
			room = make(map[*Client]struct{})
			h.rooms[gid] = room
		}
		room[c] = struct{}{}
	}

	h.logger.Info("live client connected",
		zap.String("conn_id", c.ID),
		zap.String("user_id", c.UserID.Hex()),
		zap.Int("groups", len(c.groups)),
		zap.Int("total_clients", len(h.clients)))
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for gid := range c.groups {
		if room := h.rooms[gid]; room != nil {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, gid)
			}
		}
	}

	close(c.send)
	h.logger.Info("live client disconnected",
		zap.String("conn_id", c.ID),
		zap.String("user_id", c.UserID.Hex()),
		zap.Int("total_clients", len(h.clients)))
}

// deliver fans a frame out to a snapshot of the room. Clients whose
// send buffer is full are dropped rather than allowed to stall the
// whole room. The snapshot keeps the drop's map mutation out of the
// room iteration.
func (h *Hub) deliver(req broadcastReq) {
	room := h.rooms[req.groupID]
	targets := make([]*Client, 0, len(room))
	for c := range room {
		targets = append(targets, c)
	}

	var stalled []*Client
	for _, c := range targets {
		select {
		case c.send <- req.payload:
		default:
			stalled = append(stalled, c)
		}
	}

	for _, c := range stalled {
		h.logger.Warn("dropping live client with full send buffer",
			zap.String("conn_id", c.ID),
			zap.String("user_id", c.UserID.Hex()))
		h.remove(c)
	}
}

// deliverTo queues a frame for one still-registered client, dropping it
// if the client is stalled.
func (h *Hub) deliverTo(req directReq) {
	if _, ok := h.clients[req.client]; !ok {
		return
	}
	select {
	case req.client.send <- req.payload:
	default:
		h.logger.Warn("dropping scoped frame for stalled client",
			zap.String("conn_id", req.client.ID))
	}
}

func (h *Hub) closeAll() {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}

	for _, c := range clients {
		h.remove(c)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
	h.logger.Info("live hub stopped", zap.Int("closed_clients", len(clients)))
}

// Shutdown waits for the Run loop to exit after its context is
// cancelled, up to timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
