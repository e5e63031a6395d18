package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ota-fleet-manager/internal/config"
	"ota-fleet-manager/internal/delivery/http/handler"
	"ota-fleet-manager/internal/infrastructure/database/postgres"
	"ota-fleet-manager/internal/infrastructure/storage"
	"ota-fleet-manager/internal/logger"
	"ota-fleet-manager/internal/middleware"
	"ota-fleet-manager/internal/usecase/batch"
	"ota-fleet-manager/internal/usecase/device"
	"ota-fleet-manager/internal/usecase/firmware"
	"ota-fleet-manager/internal/usecase/rollout"
)

// Services bundles the wired use cases so main can hand them to the MQTT
// ingestion client and background jobs.
type Services struct {
	Devices   *device.Service
	Firmwares *firmware.Service
	Rollouts  *rollout.Service
	Batch     *batch.Service
}

func SetupRoutes(cfg *config.Config, db *postgres.DB, store storage.BinaryStore, publisher rollout.CommandPublisher) (*gin.Engine, *Services) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware in order: recovery, request ID, logging, security headers,
	// CORS, request size limit, general rate limit
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(cfg.Storage.MaxUploadBytes))
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst))

	router.GET("/health", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "Database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Service is running",
		})
	})

	deviceRepository := postgres.NewDeviceRepository(db)
	firmwareRepository := postgres.NewFirmwareRepository(db)
	rolloutRepository := postgres.NewRolloutRepository(db)

	deviceService := device.NewService(deviceRepository, rolloutRepository)
	rolloutService := rollout.NewService(rolloutRepository, deviceRepository, firmwareRepository, publisher)
	firmwareService := firmware.NewService(firmwareRepository, deviceRepository, rolloutRepository, store, rolloutService)
	batchService := batch.NewService(firmwareService)

	deviceHandler := handler.NewDeviceHandler(deviceService)
	firmwareHandler := handler.NewFirmwareHandler(firmwareService, cfg.Storage.MaxUploadBytes)
	rolloutHandler := handler.NewRolloutHandler(rolloutService)
	batchHandler := handler.NewBatchHandler(batchService)

	v1 := router.Group("/api/v1")
	{
		deviceHandler.RegisterRoutes(v1)
		firmwareHandler.RegisterRoutes(v1)
		rolloutHandler.RegisterRoutes(v1)
		batchHandler.RegisterRoutes(v1)
	}

	logger.Info("All routes initialized")

	return router, &Services{
		Devices:   deviceService,
		Firmwares: firmwareService,
		Rollouts:  rolloutService,
		Batch:     batchService,
	}
}
