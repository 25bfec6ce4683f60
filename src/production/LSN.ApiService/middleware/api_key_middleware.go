package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	api_models "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models/api"
)

// APIKeyHeader carries the shared ingestion secret
const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware rejects requests whose X-API-Key does not match expected.
// An empty expected key leaves the route open.
func APIKeyMiddleware(expected string) gin.HandlerFunc {
	want := []byte(expected)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}

		got := c.GetHeader(APIKeyHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			err := apperrors.NewAuth("Invalid or missing API key")
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), api_models.ErrorResponse{
				Success: false,
				Error:   err.PublicMessage(),
			})
			return
		}

		c.Set("api_key_auth", true)
		c.Next()
	}
}
