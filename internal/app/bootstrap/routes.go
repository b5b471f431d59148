// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/config"
	authfeature "github.com/driftware/drift/internal/app/features/auth"
	groupsfeature "github.com/driftware/drift/internal/app/features/groups"
	healthfeature "github.com/driftware/drift/internal/app/features/health"
	"github.com/driftware/drift/internal/app/live"
	membershipstore "github.com/driftware/drift/internal/app/store/memberships"
	messagestore "github.com/driftware/drift/internal/app/store/messages"
	"github.com/driftware/drift/internal/app/system/auth"
	"github.com/driftware/drift/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and the Startup hook have completed. The JSON API, the live WebSocket
// endpoint, and the health checks all hang off one chi router:
//
//	/auth      signup + login (public)
//	/groups    group + membership + history API (bearer token required)
//	/ws        live connection (token verified during the handshake)
//	/health    liveness and readiness
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	tokens, err := auth.NewManager(appCfg.JWTSecret, appCfg.JWTExpiry)
	if err != nil {
		logger.Error("auth manager init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase

	r := chi.NewRouter()

	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Credential endpoints get a per-IP rate limit to blunt brute force.
	authLimiter := ratelimit.New(20, time.Minute)
	authHandler := authfeature.NewHandler(db, tokens, logger)
	r.Group(func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Mount("/auth", authfeature.Routes(authHandler))
	})

	groupsHandler := groupsfeature.NewHandler(deps.MongoClient, db, appCfg.MessagePageLimit, logger)
	r.Group(func(r chi.Router) {
		r.Use(tokens.RequireSignedIn)
		r.Mount("/groups", groupsfeature.Routes(groupsHandler, db, logger))
	})

	// The live endpoint authenticates inside the handshake, so it is
	// mounted outside RequireSignedIn.
	router := live.NewRouter(liveHub, membershipstore.New(db), messagestore.New(db),
		appCfg.WSSendBuffer, appCfg.WSMaxMessageBytes, logger)
	wsHandler := live.NewHandler(router, tokens, appCfg.WSBufferBytes, appCfg.WSBufferBytes, logger)
	r.Method(http.MethodGet, "/ws", wsHandler)

	return r, nil
}
