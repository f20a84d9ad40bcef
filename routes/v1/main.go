package v1

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/viberl/BlindTasting-sub000/handlers/tastings"
	"github.com/viberl/BlindTasting-sub000/middleware"
	"github.com/viberl/BlindTasting-sub000/services"
)

// Dependencies are the shared components the v1 routes are built on
type Dependencies struct {
	Sessions    *services.SessionService
	JWTSecret   string
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
}

// Register the endpoints for the v1 API
func Register(r *gin.Engine, deps Dependencies) {
	v1 := r.Group("/api/v1")

	// Add metrics middleware to all routes
	v1.Use(middleware.MetricsMiddleware())
	if deps.RateLimiter != nil {
		v1.Use(middleware.RateLimiterMiddleware(deps.RateLimiter))
	}

	RegisterPingRoutes(v1, deps.JWTSecret)
	RegisterSwaggerRoutes(v1)
	tastings.RegisterRoutes(v1, tastings.NewHandler(deps.Sessions, deps.Logger), deps.JWTSecret)

	// Register metrics endpoint
	RegisterMetricsRoutes(v1)
}
