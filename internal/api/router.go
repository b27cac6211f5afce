package api

import (
	"github.com/Conceptual-Machines/nearfield-gen/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/nearfield-gen/internal/api/middleware"
	"github.com/Conceptual-Machines/nearfield-gen/internal/config"
	"github.com/Conceptual-Machines/nearfield-gen/internal/metrics"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter builds the preview server. db may be nil when no database is configured.
func SetupRouter(db *gorm.DB, cfg *config.Config, counters *metrics.Counters, recorder metrics.Recorder, version string) (*gin.Engine, error) {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(metrics.NewSentryMetrics()))

	router.Use(apimiddleware.CORS())

	// Health check
	healthHandler := handlers.NewHealthHandler(db)
	router.GET("/health", healthHandler.HealthCheck)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(version, counters)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	generationHandler, err := handlers.NewGenerationHandler(cfg, recorder)
	if err != nil {
		return nil, err
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/schema", generationHandler.GetSchema)
		v1.POST("/samples", generationHandler.Samples)
		v1.POST("/images", generationHandler.Image)
	}

	return router, nil
}
