// internal/router/router.go
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/printforge/marketplace-backend/internal/cache"
	"github.com/printforge/marketplace-backend/internal/config"
	"github.com/printforge/marketplace-backend/internal/handlers"
	"github.com/printforge/marketplace-backend/internal/middleware"
	"github.com/printforge/marketplace-backend/internal/services"
)

func Initialize(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *cache.RedisClient,
	storage services.StorageProvider,
	bus services.Bus,
	publisher *services.EventPublisher,
	authenticator *middleware.Authenticator,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize services
	listingService := services.NewListingService(db, storage, redisClient, publisher, cfg.Frontend.PublicFilesURL)
	uploadService := services.NewUploadService(storage, cfg.Upload.ValidationWindowHours, services.DefaultFileConstraints())

	// Initialize handlers
	listingHandler := handlers.NewListingHandler(listingService)
	fileHandler := handlers.NewFileHandler(uploadService)

	idempotencyStore := middleware.NewRedisIdempotencyStore(redisClient)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.DomainName))
	r.Use(middleware.RequestTimeout(time.Duration(cfg.Server.RequestTimeout) * time.Second))
	r.Use(middleware.GeneralRateLimit())

	r.GET("/health", healthHandler(db, redisClient, bus))

	v1 := r.Group("/v1")
	{
		// Public reads
		v1.GET("/listings/:id", listingHandler.Get)

		authed := v1.Group("")
		authed.Use(authenticator.Middleware())
		authed.Use(middleware.Idempotency(idempotencyStore))
		{
			authed.GET("/listings", listingHandler.List)
			authed.POST("/listings", listingHandler.Create)
			authed.PUT("/listings/:id", listingHandler.Update)
			authed.DELETE("/listings/:id", listingHandler.Delete)

			authed.POST("/files/presign", middleware.UploadRateLimit(), fileHandler.Presign)
		}
	}

	return r
}

// healthHandler reports per-dependency status. The database is the only hard
// dependency; cache and bus degrade the report without failing it.
func healthHandler(db *gorm.DB, redisClient *cache.RedisClient, bus services.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := gin.H{
			"database": "ok",
			"cache":    "ok",
			"events":   "ok",
		}

		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			components["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}

		if err := redisClient.Ping(ctx); err != nil {
			components["cache"] = "unavailable"
		}

		if !bus.IsConnected() {
			components["events"] = "disconnected"
		}

		overall := "healthy"
		if status != http.StatusOK {
			overall = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status":     overall,
			"components": components,
		})
	}
}
