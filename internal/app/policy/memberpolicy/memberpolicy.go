// Package memberpolicy answers the one authorization question every
// group-scoped operation asks: is this user an active member of this
// group right now?
//
// The group_memberships collection is authoritative. Nothing caches the
// answer — a user removed from a group loses access on their very next
// request, and the live layer re-checks before every delivery decision.
package memberpolicy

import (
	"context"
	"net/http"

	membershipstore "github.com/driftware/drift/internal/app/store/memberships"
	"github.com/driftware/drift/internal/app/system/auth"
	"github.com/driftware/drift/internal/app/system/httpapi"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// CanAccessGroup reports whether userID may read or post in groupID,
// per the authoritative membership collection.
func CanAccessGroup(ctx context.Context, db *mongo.Database, userID, groupID primitive.ObjectID) (bool, error) {
	return membershipstore.New(db).IsActiveMember(ctx, userID, groupID)
}

// RequireGroupMember is route middleware for paths carrying a {groupID}
// parameter. It resolves the authenticated user from the request context
// (auth.RequireSignedIn must run first) and rejects with 403 unless the
// user is an active member of the group.
func RequireGroupMember(db *mongo.Database, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
			allowed, err := CanAccessGroup(r.Context(), db, uid, groupID)
			if err != nil {
				httpapi.ServerError(w, logger, "membership check failed", err)
				return
			}
			if !allowed {
				httpapi.Forbidden(w, "You are not a member of this group.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
