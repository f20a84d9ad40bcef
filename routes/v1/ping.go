package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/viberl/BlindTasting-sub000/middleware"
)

// @Summary Ping
// @Description Liveness probe. With a valid bearer token the caller's user id is echoed back.
// @Tags Support
// @Produce json
// @Success 200 {object} map[string]string
// @Router /ping [get]
func ping(c *gin.Context) {
	res := gin.H{"message": "pong"}
	if user, ok := middleware.UserFromContext(c); ok {
		res["user_id"] = user.ID
	}
	c.JSON(http.StatusOK, res)
}

// RegisterPingRoutes registers the liveness endpoint. A token is optional.
func RegisterPingRoutes(r *gin.RouterGroup, secret string) {
	r.GET("/ping", middleware.SetUserIdMiddleware(secret), ping)
}
