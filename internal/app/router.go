// internal/app/router.go
package app

import (
	auditHandler "rankpilot-service/internal/handlers/audit"
	authHandler "rankpilot-service/internal/handlers/auth"
	entitlementHandler "rankpilot-service/internal/handlers/entitlement"
	eventsHandler "rankpilot-service/internal/handlers/events"
	subscriptionHandler "rankpilot-service/internal/handlers/subscription"
	webhookHandler "rankpilot-service/internal/handlers/webhook"
	"rankpilot-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler         *authHandler.AuthHandler
	WebhookHandler      *webhookHandler.WebhookHandler
	EntitlementHandler  *entitlementHandler.EntitlementHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	AuditHandler        *auditHandler.AuditHandler
	WSHandler           *eventsHandler.WSHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Billing Webhook ====================
	// Authenticated by HMAC signature, not JWT.
	api.POST("/webhooks/billing", h.WebhookHandler.HandleBillingEvent)

	// ==================== Admin Auth ====================
	auth := api.Group("/auth")
	{
		auth.POST("/login", h.AuthHandler.Login)
		auth.GET("/me", h.AuthMiddleware.Auth(), h.AuthHandler.Me)
	}

	// ==================== Entitlements ====================
	// Called service-to-service by trusted platform components.
	entitlements := api.Group("/entitlements")
	{
		entitlements.GET("/check", h.EntitlementHandler.Check)
		entitlements.POST("/consume", h.EntitlementHandler.Consume)
		entitlements.GET("/usage", h.EntitlementHandler.Usage)
	}

	// ==================== Admin: Subscriptions ====================
	subscriptions := api.Group("/admin/subscriptions")
	subscriptions.Use(h.AuthMiddleware.AdminOnly()...)
	{
		subscriptions.GET("", h.SubscriptionHandler.List)
		subscriptions.GET("/stats", h.SubscriptionHandler.Stats)
		subscriptions.GET("/:userId", h.SubscriptionHandler.Get)
	}

	// Overrides rewrite billing state; super admin only.
	overrides := api.Group("/admin/subscriptions")
	overrides.Use(h.AuthMiddleware.SuperAdminOnly()...)
	{
		overrides.PUT("/:userId", h.SubscriptionHandler.Override)
	}

	// ==================== Admin: Consistency Audit ====================
	audit := api.Group("/admin/audit")
	audit.Use(h.AuthMiddleware.AdminOnly()...)
	{
		audit.GET("", h.AuditHandler.Run)
	}

	// ==================== WebSocket Events ====================
	ws := r.Group("/ws")
	ws.Use(h.AuthMiddleware.Auth())
	{
		ws.GET("/events", h.WSHandler.Stream)
	}
}
