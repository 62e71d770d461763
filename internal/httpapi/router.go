package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/common"
	"github.com/chatgate/chatgate/internal/httpapi/handlers"
	"github.com/chatgate/chatgate/internal/httpapi/middleware"
)

// NewRouter assembles the gateway's HTTP surface: the message endpoint, the
// caller-facing limits view, and the admin plane.
func NewRouter(h *handlers.Handler, authn *auth.Authenticator, admin *auth.AdminAuth) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	v1 := r.Group("/v1")
	v1.Use(middleware.APIKeyAuth(authn))
	v1.POST("/messages", h.SendMessage)
	v1.GET("/limits", h.GetLimits)

	r.POST("/admin/login", h.AdminLogin)
	adm := r.Group("/admin")
	adm.Use(middleware.AdminRequired(admin))
	adm.POST("/channels", h.CreateChannel)
	adm.GET("/channels", h.ListChannels)
	adm.GET("/channels/:id", h.GetChannel)
	adm.PATCH("/channels/:id", h.UpdateChannel)
	adm.GET("/channels/:id/stats", h.ChannelStats)
	adm.GET("/channels/:id/usage", h.RecentUsage)
	adm.POST("/keys", h.CreateKey)
	adm.DELETE("/keys/:id", h.RevokeKey)

	return r
}
