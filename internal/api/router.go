package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"milk-herd-backend/config"
	"milk-herd-backend/internal/mw"
	"milk-herd-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, cfg *config.Config, webpushOptions *webpush.Options, notifier OffspringNotifier) *gin.Engine {
	r := gin.Default()
	r.Use(mw.RequestID())

	handler := NewHandler(s, cfg, webpushOptions, notifier)
	server := handler.cfg.Server

	rateLimiter := mw.RateLimiter(rate.Limit(server.RateLimitPerSec), server.RateLimitBurst)

	ttl := time.Duration(server.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		herd := api.Group("")
		herd.Use(caching)

		herd.GET("/animals", handler.ListAnimals)
		herd.POST("/animals", handler.CreateAnimal)
		herd.GET("/animals/:id", handler.GetAnimal)
		herd.PUT("/animals/:id", handler.UpdateAnimal)
		herd.DELETE("/animals/:id", handler.DeleteAnimal)

		herd.PUT("/animals/:id/parents", handler.SetParents)
		herd.GET("/animals/:id/children", handler.GetChildren)
		herd.GET("/animals/:id/siblings", handler.GetSiblings)
		herd.GET("/animals/:id/pedigree", handler.GetPedigree)
		herd.GET("/animals/:id/milk", handler.ListAnimalMilk)

		herd.POST("/milk-records", handler.CreateMilkRecord)
		herd.PUT("/milk-records/:id", handler.UpdateMilkRecord)
		herd.DELETE("/milk-records/:id", handler.DeleteMilkRecord)

		herd.GET("/stats", handler.GetStats)

		// Dry runs write nothing, so they bypass the cache flush.
		api.POST("/animals/:id/parents/validate", handler.ValidateParents)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
