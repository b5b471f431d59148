// internal/app/live/router.go
package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/driftware/drift/internal/app/system/htmlsanitize"
	"github.com/driftware/drift/internal/app/system/ratelimit"
	"github.com/driftware/drift/internal/app/system/timeouts"
	"github.com/driftware/drift/internal/domain/models"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// postsPerMinute caps how fast one connection may post.
const postsPerMinute = 60

// MembershipSource answers the membership questions the router asks.
// Backed by the membership store in production.
type MembershipSource interface {
	ActiveGroupIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	IsActiveMember(ctx context.Context, userID, groupID primitive.ObjectID) (bool, error)
}

// MessageLog persists messages the router accepts.
type MessageLog interface {
	Append(ctx context.Context, userID, groupID primitive.ObjectID, content string) (models.Message, error)
}

// Router connects authenticated sockets to the hub and applies the
// posting rules to every inbound frame: the sender must be an active
// member of the target group at the moment of posting, and content is
// sanitized before it is persisted or delivered. Rejections go back to
// the sender alone as error events; other members of the group never
// see them.
type Router struct {
	hub     *Hub
	members MembershipSource
	log     MessageLog
	limiter *ratelimit.Limiter

	sendBuffer      int
	maxMessageBytes int64
	logger          *zap.Logger
}

func NewRouter(hub *Hub, members MembershipSource, log MessageLog, sendBuffer int, maxMessageBytes int64, logger *zap.Logger) *Router {
	return &Router{
		hub:             hub,
		members:         members,
		log:             log,
		limiter:         ratelimit.New(postsPerMinute, time.Minute),
		sendBuffer:      sendBuffer,
		maxMessageBytes: maxMessageBytes,
		logger:          logger,
	}
}

// Connect takes an upgraded, authenticated socket, subscribes it to the
// user's current groups, and starts its pumps. The snapshot governs
// delivery only; group membership gained after connect requires a
// reconnect to start receiving.
func (r *Router) Connect(ctx context.Context, conn *websocket.Conn, userID primitive.ObjectID) error {
	groupIDs, err := r.members.ActiveGroupIDs(ctx, userID)
	if err != nil {
		return err
	}

	c := newClient(conn, r.hub, userID, groupIDs, r.sendBuffer, r.logger)
	r.hub.Register(c)

	go c.writePump()
	go c.readPump(r, r.maxMessageBytes)
	return nil
}

// disconnected releases per-connection state after a socket closes.
func (r *Router) disconnected(c *Client) {
	r.limiter.Reset(c.ID)
}

// handleInbound applies the posting rules to one frame from c.
func (r *Router) handleInbound(c *Client, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Medium())
	defer cancel()

	if !r.limiter.Allow(c.ID) {
		r.sendError(c, "", "You are sending messages too quickly.")
		return
	}

	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		r.sendError(c, "", "Malformed message.")
		return
	}
	groupID, err := primitive.ObjectIDFromHex(in.GroupID)
	if err != nil {
		r.sendError(c, in.GroupID, "Invalid group id.")
		return
	}
	content := htmlsanitize.Sanitize(in.Content)
	if content == "" {
		r.sendError(c, in.GroupID, "Message content is empty.")
		return
	}

	// The gate runs per message. A member removed after connect is
	// refused here no matter what their snapshot says.
	allowed, err := r.members.IsActiveMember(ctx, c.UserID, groupID)
	if err != nil {
		r.logger.Error("live membership check failed",
			zap.String("conn_id", c.ID),
			zap.Error(err))
		r.sendError(c, in.GroupID, "Something went wrong.")
		return
	}
	if !allowed {
		r.sendError(c, in.GroupID, "You are not a member of this group.")
		return
	}

	msg, err := r.log.Append(ctx, c.UserID, groupID, content)
	if err != nil {
		r.logger.Error("live message persist failed",
			zap.String("conn_id", c.ID),
			zap.String("group_id", groupID.Hex()),
			zap.Error(err))
		r.sendError(c, in.GroupID, "Something went wrong.")
		return
	}

	payload, err := json.Marshal(Event{
		Event:    EventMessage,
		GroupID:  groupID.Hex(),
		SenderID: c.UserID.Hex(),
		Content:  msg.Content,
		SentAt:   &msg.CreatedAt,
	})
	if err != nil {
		r.logger.Error("live event encode failed", zap.Error(err))
		return
	}
	r.hub.Broadcast(groupID, payload)
}

// sendError emits a scoped error event to one client.
func (r *Router) sendError(c *Client, groupID, reason string) {
	payload, err := json.Marshal(Event{
		Event:   EventError,
		GroupID: groupID,
		Message: reason,
	})
	if err != nil {
		return
	}
	r.hub.sendTo(c, payload)
}
