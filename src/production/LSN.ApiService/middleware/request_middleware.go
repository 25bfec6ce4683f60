package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	api_models "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models/api"
)

const (
	RequestIDHeader     = "X-Request-ID"
	RequestIDContextKey = "request_id"
)

// RequestID propagates the caller's X-Request-ID or assigns a fresh one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIDContextKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id RequestID stored, or ""
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDContextKey)
}

// RequestLogger writes one structured line per request
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	httpLog := log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		event := httpLog.Logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = httpLog.Logger.Error()
		case status >= http.StatusBadRequest:
			event = httpLog.Logger.Warn()
		}
		event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// Recovery turns a handler panic into a logged 500 with a JSON body
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithRequestID(GetRequestID(c)).
			WithField("panic", recovered).
			Error("Recovered from handler panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, api_models.ErrorResponse{
			Success: false,
			Error:   "Internal server error",
		})
	})
}
