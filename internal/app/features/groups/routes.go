// internal/app/features/groups/routes.go
package groups

import (
	"github.com/driftware/drift/internal/app/policy/memberpolicy"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Routes returns the /groups subrouter. Callers mount it behind
// auth.RequireSignedIn; the per-group routes additionally pass the
// membership gate.
func Routes(h *Handler, db *mongo.Database, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListMine)
	r.Get("/public", h.ListPublic)
	r.Post("/", h.Create)
	r.Post("/{groupID}/join", h.Join)

	// Group-scoped operations require active membership.
	r.Group(func(r chi.Router) {
		r.Use(memberpolicy.RequireGroupMember(db, logger))
		r.Post("/{groupID}/members", h.AddMembers)
		r.Delete("/{groupID}/members/{userID}", h.RemoveMember)
		r.Get("/{groupID}/messages", h.Messages)
	})

	return r
}
