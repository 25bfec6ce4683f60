package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	api_models "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models/api"
	timestamp "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Timestamp"
)

// TimezoneController checks zone names for the settings UI
type TimezoneController struct {
	now func() time.Time
}

// NewTimezoneController creates a new timezone controller
func NewTimezoneController() *TimezoneController {
	return &TimezoneController{now: time.Now}
}

// RegisterRoutes registers the timezone routes with Gin
func (c *TimezoneController) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/timezone/validate", c.ValidateTimezone)
}

// ValidateTimezone answers 400 with valid=false for an unknown zone
func (c *TimezoneController) ValidateTimezone(ctx *gin.Context) {
	var req api_models.TimezoneRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, api_models.TimezoneResponse{
			Valid: false,
			Error: "Invalid JSON body",
		})
		return
	}

	loc, err := timestamp.ValidateZone(req.Timezone)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, api_models.TimezoneResponse{
			Valid: false,
			Error: "Unknown timezone",
		})
		return
	}

	local := c.now().In(loc)
	ctx.JSON(http.StatusOK, api_models.TimezoneResponse{
		Valid:       true,
		Timezone:    req.Timezone,
		CurrentTime: local.Format(timestamp.DisplayLayout),
		Offset:      local.Format(timestamp.OffsetLayout),
	})
}
