package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.ApiService/controllers"
	container "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Container"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting API Service")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize database")
	}
	if err := ctr.InitializeServices(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize services")
	}
	if err := ctr.StartBackground(); err != nil {
		logger.FatalWithError(err, "Failed to start retention sweeper")
	}

	config := ctr.GetConfig()
	router := controllers.SetupRouter(ctr)

	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	if config.Auth.APIKey == "" {
		logger.Warn("API_KEY is not set; sensor ingestion is open")
	}
	logger.Info("API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
