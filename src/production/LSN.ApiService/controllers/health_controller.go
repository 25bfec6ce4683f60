package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.ApiService/health"
)

// HealthController serves liveness and readiness probes
type HealthController struct {
	checker *health.HealthChecker
}

// NewHealthController creates a new health controller
func NewHealthController(checker *health.HealthChecker) *HealthController {
	return &HealthController{checker: checker}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", c.Health)
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
}

func (c *HealthController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   health.Version,
	})
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// HealthReady is 503 until the store answers
func (c *HealthController) HealthReady(ctx *gin.Context) {
	status := c.checker.GetHealthStatus(ctx.Request.Context())
	if status["status"] != "ok" {
		ctx.JSON(http.StatusServiceUnavailable, status)
		return
	}
	ctx.JSON(http.StatusOK, status)
}
