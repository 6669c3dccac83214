package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"fieldops-backend/config"
	"fieldops-backend/internal/lifecycle"
	"fieldops-backend/internal/mw"
	"fieldops-backend/internal/realtime"
	"fieldops-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, manager *lifecycle.Manager, s store.Store, hub *realtime.Hub, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(manager, s, hub, webpushOptions)

	rps := cfg.Server.RateLimitPerSec
	if rps <= 0 {
		rps = 10
	}
	rateLimiter := mw.RateLimiter(rate.Limit(rps), 5, cfg.Server.RequestIPHeader)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		authed := api.Group("", mw.Auth([]byte(cfg.Auth.JWTSecret)))
		{
			authed.GET("/events", handler.StreamEvents)

			authed.POST("/operations", mw.RequireRole(mw.RoleTechnician), handler.CreateOperation)
			authed.GET("/operations", handler.ListOperations)
			authed.GET("/operations/:id", handler.GetOperation)
			authed.GET("/operations/:id/queue", handler.GetQueueInfo)
			authed.POST("/operations/:id/assign", mw.RequireRole(mw.RoleOperator), handler.AssignOperation)
			authed.PATCH("/operations/:id/status", mw.RequireRole(mw.RoleOperator, mw.RoleTechnician), handler.UpdateStatus)
			authed.POST("/operations/:id/feedback", mw.RequireRole(mw.RoleOperator), handler.SendFeedback)
			authed.POST("/operations/:id/response", mw.RequireRole(mw.RoleTechnician), handler.SendResponse)
			authed.POST("/operations/:id/complete", mw.RequireRole(mw.RoleOperator), handler.CompleteOperation)
			authed.POST("/operations/:id/cancel", mw.RequireRole(mw.RoleOperator, mw.RoleTechnician), handler.CancelOperation)

			authed.GET("/queue", handler.GetQueue)
			authed.GET("/history", caching, handler.GetHistory)

			authed.GET("/subscriptions", handler.GetSubscription)
			authed.PUT("/subscriptions", handler.PutSubscription)
			authed.DELETE("/subscriptions", handler.DeleteSubscription)
		}
	}

	return r
}
