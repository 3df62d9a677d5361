package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/pinfeed/internal/api/handler"
	"github.com/timmy/pinfeed/internal/api/middleware"
	"github.com/timmy/pinfeed/internal/config"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/service"
)

// Services groups everything the HTTP layer calls into.
type Services struct {
	Pins            handler.PinManager
	Media           handler.MediaUploader
	Recommendations interface {
		handler.Recommender
		handler.RelatedRanker
	}
	Popular      handler.PopularFeed
	Interactions handler.InteractionRecorder
	// Backfill is optional; admin routes are only mounted when it is set.
	Backfill     handler.Backfiller
	HealthChecks map[string]handler.HealthCheck
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc *Services, cfg *config.Config, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	paging := service.PageConfig{
		DefaultPageSize: cfg.Recommend.DefaultPageSize,
		MaxPageSize:     cfg.Recommend.MaxPageSize,
	}

	// Create handlers
	healthHandler := handler.NewHealthHandler(svc.HealthChecks)
	pinHandler := handler.NewPinHandler(svc.Pins, svc.Media, svc.Recommendations, cfg.Server.MaxUploadBytes)
	interactionHandler := handler.NewInteractionHandler(svc.Interactions)
	feedHandler := handler.NewFeedHandler(svc.Recommendations, svc.Popular, svc.Pins, paging, cfg.Recommend.DegradeToPopular)

	// Health check and metrics
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		// Pins
		v1.POST("/pins", pinHandler.CreatePin)
		v1.GET("/pins/:id", pinHandler.GetPin)
		v1.POST("/pins/:id/media", pinHandler.UploadMedia)
		v1.GET("/pins/:id/related", pinHandler.RelatedPins)

		// Interactions
		v1.POST("/interactions", interactionHandler.Record)
		v1.PATCH("/interactions/unlike", interactionHandler.Unlike)
		v1.GET("/interactions", interactionHandler.List)

		// Feeds
		v1.GET("/feed/popular", feedHandler.Popular)
		v1.GET("/feed/personalized", feedHandler.Personalized)

		if svc.Backfill != nil {
			adminHandler := handler.NewAdminHandler(svc.Backfill, log)
			v1.POST("/admin/backfill", adminHandler.TriggerBackfill)
			v1.GET("/admin/backfill/status", adminHandler.GetBackfillStatus)
		}
	}

	return r
}
