// internal/app/live/handler.go
package live

import (
	"net/http"

	"github.com/driftware/drift/internal/app/system/auth"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades GET /ws requests. The handshake token is verified
// before the upgrade; an anonymous socket never reaches the hub.
type Handler struct {
	router   *Router
	verifier *auth.Manager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(router *Router, verifier *auth.Manager, readBuffer, writeBuffer int, logger *zap.Logger) *Handler {
	return &Handler{
		router:   router,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if err := h.router.Connect(r.Context(), conn, userID); err != nil {
		h.logger.Error("live connect failed",
			zap.String("user_id", userID.Hex()),
			zap.Error(err))
		_ = conn.Close()
	}
}
