package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lca-companion/internal/services/health"
	"lca-companion/internal/shared/config"
	"lca-companion/internal/shared/metrics"
	"lca-companion/internal/shared/server/middleware"
	"lca-companion/internal/shared/server/respond"
)

const healthPath = "/api/v1/health"

// RouteRegistrar is implemented by feature handlers.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries what NewRouter mounts.
type RouterDeps struct {
	Handlers []RouteRegistrar
	Health   *health.Service
	Limiter  *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, deps RouterDeps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.LocalAuth(cfg.LocalToken, healthPath),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    middleware.DefaultRules(),
			GroupFor: middleware.CompanionGroup,
			Limiter:  deps.Limiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.Health))
	for _, h := range deps.Handlers {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}

	return r
}

func healthHandler(svc *health.Service) gin.HandlerFunc {
	if svc == nil {
		svc = health.NewService()
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		results, ok := svc.Status(ctx)
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, gin.H{"ok": ok, "checks": results})
	}
}

// Addr normalizes the listen address. The companion binds to loopback unless
// a host is given.
func Addr(port string) string {
	switch {
	case port == "":
		return "127.0.0.1:8787"
	case port[0] == ':':
		return "127.0.0.1" + port
	case strings.Contains(port, ":"):
		return port
	}
	return "127.0.0.1:" + port
}
