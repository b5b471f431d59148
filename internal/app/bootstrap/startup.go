// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"github.com/driftware/drift/internal/app/live"
	"go.uber.org/zap"
)

// The hub outlives any single request, so it is created here and torn
// down in Shutdown rather than inside BuildHandler.
var (
	liveHub     *live.Hub
	stopLiveHub context.CancelFunc
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// It starts the live hub's event loop.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	hubCtx, cancel := context.WithCancel(context.Background())
	liveHub = live.NewHub(logger)
	stopLiveHub = cancel
	go liveHub.Run(hubCtx)
	return nil
}
