// internal/app/router.go
package app

import (
	authHandler "subscription-service/internal/handlers/auth"
	healthHandler "subscription-service/internal/handlers/health"
	planHandler "subscription-service/internal/handlers/plans"
	subscriptionHandler "subscription-service/internal/handlers/subscription"
	wsHandler "subscription-service/internal/handlers/websocket"
	"subscription-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	HealthHandler       *healthHandler.HealthHandler
	AuthHandler         *authHandler.AuthHandler
	PlanHandler         *planHandler.PlanHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	WSHandler           *wsHandler.WebSocketHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Operations ====================
	api.GET("/health", h.HealthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)
	api.GET("/ws/stats", h.AuthMiddleware.Auth(), h.WSHandler.Stats)

	// ==================== Users & Tokens ====================
	api.POST("/users", h.AuthHandler.Register)
	api.POST("/token", h.AuthHandler.Login)

	authProtected := api.Group("")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.GET("/users/me", h.AuthHandler.Me)
	}

	// ==================== Plans ====================
	plans := api.Group("/plans")
	{
		plans.GET("", h.PlanHandler.ListPlans)
		plans.GET("/:id", h.PlanHandler.GetPlan)
		plans.POST("", h.AuthMiddleware.Auth(), h.PlanHandler.CreatePlan)
	}

	// ==================== Subscriptions ====================
	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(h.AuthMiddleware.Auth())
	{
		subscriptions.POST("", h.SubscriptionHandler.Subscribe)
		subscriptions.GET("/me", h.SubscriptionHandler.GetMine)
		subscriptions.PUT("/me", h.SubscriptionHandler.ChangePlan)
		subscriptions.DELETE("/me", h.SubscriptionHandler.Cancel)
		subscriptions.GET("/me/history", h.SubscriptionHandler.History)
	}
}
