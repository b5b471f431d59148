// Package groups serves group lifecycle and membership management: the
// discovery lists, creation with initial members, self-serve public
// joins, roster changes, and the message history page.
package groups

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/driftware/drift/internal/app/membership"
	groupstore "github.com/driftware/drift/internal/app/store/groups"
	membershipstore "github.com/driftware/drift/internal/app/store/memberships"
	messagestore "github.com/driftware/drift/internal/app/store/messages"
	"github.com/driftware/drift/internal/app/system/auth"
	"github.com/driftware/drift/internal/app/system/httpapi"
	"github.com/driftware/drift/internal/app/system/limits"
	"github.com/driftware/drift/internal/app/system/timeouts"
	"github.com/driftware/drift/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	coordinator *membership.Coordinator
	groups      *groupstore.Store
	memberships *membershipstore.Store
	messages    *messagestore.Store
	logger      *zap.Logger

	maxPageLimit int64
}

func NewHandler(client *mongo.Client, db *mongo.Database, maxPageLimit int64, logger *zap.Logger) *Handler {
	if maxPageLimit <= 0 {
		maxPageLimit = messagestore.DefaultPageLimit
	}
	return &Handler{
		coordinator:  membership.NewCoordinator(client, db, logger),
		groups:       groupstore.New(db),
		memberships:  membershipstore.New(db),
		messages:     messagestore.New(db),
		logger:       logger,
		maxPageLimit: maxPageLimit,
	}
}

type groupView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	CreatedBy   string `json:"created_by"`
	Description string `json:"description,omitempty"`
}

func viewOf(g models.Group) groupView {
	return groupView{
		ID:          g.ID.Hex(),
		Title:       g.Title,
		Type:        g.Type,
		CreatedBy:   g.CreatedBy.Hex(),
		Description: g.Description,
	}
}

func viewsOf(groups []models.Group) []groupView {
	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, viewOf(g))
	}
	return views
}

type messageView struct {
	ID       string `json:"id"`
	GroupID  string `json:"group_id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
	SentAt   string `json:"sent_at"`
}

// ListPublic handles GET /groups/public.
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	groups, err := h.groups.ListByType(ctx, models.GroupTypePublic)
	if err != nil {
		httpapi.ServerError(w, h.logger, "public group list failed", err)
		return
	}
	httpapi.Success(w, http.StatusOK, "Public groups.", viewsOf(groups))
}

// ListMine handles GET /groups: the caller's active groups.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	uid, ok := auth.CurrentUserID(r)
	if !ok {
		httpapi.Unauthorized(w, "Sign in required.")
		return
	}

	ids, err := h.memberships.ActiveGroupIDs(ctx, uid)
	if err != nil {
		httpapi.ServerError(w, h.logger, "membership list failed", err)
		return
	}
	groups, err := h.groups.ListByIDs(ctx, ids)
	if err != nil {
		httpapi.ServerError(w, h.logger, "group lookup failed", err)
		return
	}
	httpapi.Success(w, http.StatusOK, "Your groups.", viewsOf(groups))
}

type createRequest struct {
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	MemberIDs   []string `json:"member_ids"`
}

// Create handles POST /groups. The creator plus any listed members are
// enrolled with the group in one unit of work.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	uid, ok := auth.CurrentUserID(r)
	if !ok {
		httpapi.Unauthorized(w, "Sign in required.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBodySize)
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.BadRequest(w, "Malformed request body.")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		httpapi.BadRequest(w, "Group title is required.")
		return
	}
	if !models.IsValidGroupType(req.Type) {
		httpapi.BadRequest(w, "Group type must be public or private.")
		return
	}
	memberIDs, err := parseObjectIDs(req.MemberIDs)
	if err != nil {
		httpapi.BadRequest(w, "member_ids contains an invalid id.")
		return
	}

	group, err := h.coordinator.CreateGroup(ctx, models.Group{
		Title:       req.Title,
		Type:        req.Type,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   uid,
	}, memberIDs)
	if err != nil {
		httpapi.ServerError(w, h.logger, "group create failed", err)
		return
	}

	httpapi.Success(w, http.StatusCreated, "Group created.", viewOf(group))
}

// Join handles POST /groups/{groupID}/join: self-service enrollment in
// a public group.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	uid, ok := auth.CurrentUserID(r)
	if !ok {
		httpapi.Unauthorized(w, "Sign in required.")
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		httpapi.BadRequest(w, "Invalid group id.")
		return
	}

	switch err := h.coordinator.JoinPublicGroup(ctx, uid, groupID); err {
	case nil:
		httpapi.Success(w, http.StatusOK, "Joined group.", nil)
	case membership.ErrGroupNotFound:
		httpapi.NotFound(w, "Group not found.")
	case membership.ErrGroupNotPublic:
		httpapi.Forbidden(w, "This group is not open for self-service joining.")
	default:
		httpapi.ServerError(w, h.logger, "group join failed", err)
	}
}

type addMembersRequest struct {
	MemberIDs []string `json:"member_ids"`
}

// AddMembers handles POST /groups/{groupID}/members. The memberpolicy
// gate has already verified the caller belongs to the group.
func (h *Handler) AddMembers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		httpapi.BadRequest(w, "Invalid group id.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBodySize)
	var req addMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.BadRequest(w, "Malformed request body.")
		return
	}
	if len(req.MemberIDs) == 0 {
		httpapi.BadRequest(w, "member_ids must not be empty.")
		return
	}
	memberIDs, err := parseObjectIDs(req.MemberIDs)
	if err != nil {
		httpapi.BadRequest(w, "member_ids contains an invalid id.")
		return
	}

	switch err := h.coordinator.AddMembers(ctx, groupID, memberIDs); err {
	case nil:
		httpapi.Success(w, http.StatusOK, "Members added.", nil)
	case membership.ErrGroupNotFound:
		httpapi.NotFound(w, "Group not found.")
	default:
		httpapi.ServerError(w, h.logger, "add members failed", err)
	}
}

// RemoveMember handles DELETE /groups/{groupID}/members/{userID}: a
// soft removal that a later add or join reverses.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		httpapi.BadRequest(w, "Invalid group id.")
		return
	}
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.BadRequest(w, "Invalid user id.")
		return
	}

	switch err := h.coordinator.RemoveMember(ctx, groupID, userID); err {
	case nil:
		httpapi.Success(w, http.StatusOK, "Member removed.", nil)
	case membership.ErrNotAMember:
		httpapi.NotFound(w, "No membership found for this user.")
	default:
		httpapi.ServerError(w, h.logger, "remove member failed", err)
	}
}

// Messages handles GET /groups/{groupID}/messages?limit=&offset=. The
// gate has already verified membership; history is newest first.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		httpapi.BadRequest(w, "Invalid group id.")
		return
	}

	limit := parseQueryInt(r, "limit", messagestore.DefaultPageLimit)
	if limit > h.maxPageLimit {
		limit = h.maxPageLimit
	}
	offset := parseQueryInt(r, "offset", 0)

	msgs, err := h.messages.Page(ctx, groupID, limit, offset)
	if err != nil {
		httpapi.ServerError(w, h.logger, "message page failed", err)
		return
	}

	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageView{
			ID:       m.ID.Hex(),
			GroupID:  m.GroupID.Hex(),
			SenderID: m.UserID.Hex(),
			Content:  m.Content,
			SentAt:   m.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	httpapi.Success(w, http.StatusOK, "Messages.", views)
}

func parseObjectIDs(raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseQueryInt(r *http.Request, key string, fallback int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
