package controller

import (
	"codearena/internal/common/http/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the judging API on the engine.
func RegisterRoutes(r *gin.Engine, h *JudgeController, auth middleware.AuthConfig) {
	r.Use(middleware.TraceContextMiddleware())
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api/v1/judge")
	api.GET("/ws", h.ServeWS)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(auth))
	{
		authed.POST("/submissions", h.Submit)
		authed.GET("/submissions", h.ListSubmissions)
		authed.GET("/submissions/:id", h.GetSubmission)
		authed.GET("/submissions/:id/status", h.GetStatus)
	}
}
