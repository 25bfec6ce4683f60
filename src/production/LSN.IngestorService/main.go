package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	container "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Container"
	"gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.IngestorService/client"
	lsningestor "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.IngestorService/ingestor"
	"gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.IngestorService/serialbridge"
)

// source is a gateway connection feeding the forwarder
type source interface {
	Name() string
	Start() error
	Stop()
	IsConnected() bool
}

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewIngestorContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	config := ctr.GetConfig()
	logger.WithField("source", config.Source).Info("Starting gateway ingestor service")

	if config.APIKey == "" {
		logger.Warn("API_KEY is not set, readings are posted unauthenticated")
	}
	apiClient := client.NewAPIClient(config.ApiServiceURL, config.APIKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	forwarder := lsningestor.NewForwarder(apiClient, config.QueueSize, logger)
	forwarder.Start(ctx)

	var src source
	switch config.Source {
	case "serial":
		src = serialbridge.NewSource(config, forwarder, logger)
	default:
		mqttSource := lsningestor.NewMQTTSource(config, forwarder, logger)
		forwarder.SetReporter(mqttSource)
		src = mqttSource
	}

	if err := src.Start(); err != nil {
		logger.FatalWithError(err, "Failed to start gateway source")
	}

	srv := &http.Server{
		Addr:         ":" + config.Server.Port,
		Handler:      healthRouter(src, apiClient, forwarder),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}
	go func() {
		logger.Info("Health server starting on port " + config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithError(err, "Failed to start health server")
		}
	}()

	logger.Info("Gateway ingestor running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	// Stop reading first so queued readings can drain
	src.Stop()
	forwarder.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Health server forced to shutdown")
	}
}

// healthRouter reports gateway connectivity, API reachability and breaker state
func healthRouter(src source, apiClient *client.APIClient, forwarder *lsningestor.Forwarder) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		sourceStatus := "disconnected"
		if src.IsConnected() {
			sourceStatus = "connected"
		}

		apiStatus := "disconnected"
		if err := apiClient.Health(ctx); err == nil {
			apiStatus = "connected"
		}

		status, code := "healthy", http.StatusOK
		if sourceStatus != "connected" || apiStatus != "connected" {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services": gin.H{
				src.Name():    sourceStatus,
				"api_service": apiStatus,
			},
			"circuit_breaker": apiClient.GetCircuitBreakerStatus(),
			"forwarder":       forwarder.Stats(),
		})
	})
	return router
}
