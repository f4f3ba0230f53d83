// Package handler exposes the engine's operations over HTTP. Identity
// issuance is external: the authenticated user arrives in the X-User-ID
// header set by the gateway.
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/alert"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/geo"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/membership"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/chat"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/metrics"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/middleware"
)

type Handlers struct {
	engine   *alert.Engine
	members  *membership.Store
	location *geo.Lookup
	hub      *chat.Hub // nil when the external provider is wired instead

	apiPrefix string
	rateLimit string
}

func New(engine *alert.Engine, members *membership.Store, location *geo.Lookup, hub *chat.Hub, apiPrefix, rateLimit string) *Handlers {
	return &Handlers{
		engine:    engine,
		members:   members,
		location:  location,
		hub:       hub,
		apiPrefix: apiPrefix,
		rateLimit: rateLimit,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	r := engine.Group(h.apiPrefix)

	h.registerSystemRoutes(engine)
	h.registerCrewRoutes(r)
	h.registerAlertRoutes(r)

	if h.hub != nil {
		r.GET("/stream", func(c *gin.Context) {
			h.hub.Serve(c, currentUser(c))
		})
	}
}

func (h *Handlers) registerSystemRoutes(engine *gin.Engine) {
	engine.GET("/health", h.handleHealth)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func (h *Handlers) registerCrewRoutes(r *gin.RouterGroup) {
	crews := r.Group("/crews")
	{
		crews.POST("", h.handleCreateCrew)

		crews.GET("/:id/permissions/:permission", h.handleCheckPermission)

		crews.POST("/:id/members", h.handleAddMember)

		crews.PUT("/:id/members/:userID/role", h.handleChangeRole)

		crews.DELETE("/:id/members/:userID", h.handleRemoveMember)

		crews.POST("/:id/jobs", h.handleShareJob)
	}
	r.PUT("/users/location", h.handleRecordLocation)
}

func (h *Handlers) registerAlertRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/alerts")
	{
		alerts.POST("",
			middleware.RateLimiter(middleware.RateLimiterConfig{Rate: h.rateLimit, AddHeaders: true}),
			middleware.Idempotency(middleware.IdempotencyConfig{}),
			h.handleCreateAlert)

		alerts.POST("/:id/acknowledge", h.handleAcknowledge)

		alerts.GET("/:id", h.handleAlertStatus)
	}
}

// currentUser reads the gateway-authenticated user id.
func currentUser(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-User-ID"))
}

// fail writes the JSON error envelope for an engine error.
func fail(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), gin.H{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

func requireUser(c *gin.Context) (string, bool) {
	user := currentUser(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID"})
		return "", false
	}
	return user, true
}
