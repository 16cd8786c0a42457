package main

import (
	"context"
	"net/http"

	"ops-dashboard/internal/httpapi"
	"ops-dashboard/internal/jobber"
	"ops-dashboard/internal/rbac"
	"ops-dashboard/internal/telephony"
	"ops-dashboard/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	Handlers httpapi.Handlers
	AuthMW   gin.HandlerFunc
	Metrics  *metrics.Metrics
	Webhook  telephony.WebhookHandler
	// Jobber is nil when the integration is not configured.
	Jobber *jobber.Handlers
	Health func(context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, d routeDeps) {
	h := d.Handlers

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// Provider webhooks authenticate by signature, not bearer token.
	r.POST("/webhooks/openphone", d.Webhook.HandleOpenPhone)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.PostLogin)
		authGroup.POST("/refresh", h.PostRefresh)
	}

	v1 := r.Group("/v1")
	v1.Use(d.AuthMW)
	{
		v1.GET("/me", h.GetMe)

		dashboard := v1.Group("/dashboard")
		dashboard.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleViewer))
		{
			dashboard.GET("/metrics", h.GetDashboardMetrics)
		}

		owner := v1.Group("")
		owner.Use(rbac.RequireAnyRole(rbac.RoleOwner))
		{
			owner.GET("/inspect/:collection", h.GetInspect)
			owner.GET("/inspect/:collection/outstanding", h.GetInspectOutstanding)
			owner.GET("/webhooks/events", h.GetWebhookEvents)
			if d.Jobber != nil {
				owner.GET("/integrations/jobber", d.Jobber.Status)
			}
		}
	}

	if d.Jobber != nil {
		// Connect is called by the dashboard with its bearer token and answers
		// with the consent URL. The consent redirect comes back without the
		// token; the one-shot state authenticates the callback.
		oauth := r.Group("/oauth/jobber")
		oauth.GET("/connect", d.AuthMW, rbac.RequireAnyRole(rbac.RoleOwner), d.Jobber.Connect)
		oauth.GET("/callback", d.Jobber.Callback)
	}
}
