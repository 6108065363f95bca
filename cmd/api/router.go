package api

import (
	"net/http"

	authDelivery "mailbridge-backend/internal/auth/delivery"
	mailDelivery "mailbridge-backend/internal/mail/delivery"
	"mailbridge-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, mailHandler *mailDelivery.MailHandler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Provider notification endpoint (no auth; the provider is the caller)
		api.GET("/webhooks/nylas", mailHandler.ProviderWebhook)
		api.POST("/webhooks/nylas", mailHandler.ProviderWebhook)

		// Account routes (protected)
		accounts := api.Group("/accounts")
		accounts.Use(authDelivery.AuthMiddleware(cfg.JWTSecret))
		{
			accounts.POST("/:id/sync", mailHandler.TriggerSync)
			accounts.GET("/:id/sync/status", mailHandler.SyncStatus)
			accounts.GET("/:id/emails", mailHandler.GetEmails)
			accounts.GET("/:id/threads", mailHandler.GetThreads)
			accounts.GET("/:id/search", mailHandler.Search)
			accounts.POST("/:id/search/semantic", mailHandler.SemanticSearch)
			accounts.GET("/:id/webhooks", mailHandler.GetWebhooks)
			accounts.POST("/:id/webhooks", mailHandler.CreateWebhook)
			accounts.DELETE("/:id/webhooks/:webhookId", mailHandler.DeleteWebhook)
			accounts.POST("/:id/send", mailHandler.SendEmail)
		}
	}
}
