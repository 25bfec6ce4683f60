package controllers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.ApiService/middleware"
	container "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Container"
)

// SetupRouter builds the Gin engine over an initialized container
func SetupRouter(ctr *container.Container) *gin.Engine {
	cfg := ctr.GetConfig()
	log := ctr.GetLogger()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))

	// Configure CORS from config
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log)
	settingsStore := ctr.GetSettings()

	NewSensorController(ctr.GetPipeline(), ctr.GetQueryEngine(), settingsStore, cfg.Auth.APIKey, limiter, log).RegisterRoutes(router)
	NewExportController(ctr.GetQueryEngine(), log).RegisterRoutes(router)
	NewTimezoneController().RegisterRoutes(router)
	NewSettingsController(settingsStore, log).RegisterRoutes(router)
	NewHealthController(ctr.GetHealthChecker()).RegisterRoutes(router)
	NewStaticController(cfg.Server.StaticDir).RegisterRoutes(router)

	router.NoRoute(NotFound)
	return router
}
