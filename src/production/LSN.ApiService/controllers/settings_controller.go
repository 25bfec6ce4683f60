package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	api_models "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models/api"
	settings "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Settings"
)

// SettingsController reads and updates the display settings document
type SettingsController struct {
	store  *settings.Store
	logger *logger.Logger
}

// NewSettingsController creates a new settings controller
func NewSettingsController(store *settings.Store, logger *logger.Logger) *SettingsController {
	return &SettingsController{
		store:  store,
		logger: logger.WithComponent("settings_controller"),
	}
}

// RegisterRoutes registers the settings routes with Gin
func (c *SettingsController) RegisterRoutes(router *gin.Engine) {
	s := router.Group("/api/settings")
	{
		s.GET("", c.GetSettings)
		s.POST("", c.UpdateSettings)
		s.DELETE("", c.ResetSettings)
	}
}

func (c *SettingsController) GetSettings(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, api_models.SettingsResponse{
		Success:  true,
		Settings: c.store.Get(),
	})
}

func (c *SettingsController) UpdateSettings(ctx *gin.Context) {
	var patch map[string]interface{}
	if err := json.NewDecoder(ctx.Request.Body).Decode(&patch); err != nil || patch == nil {
		respondError(ctx, c.logger, apperrors.NewValidation("No JSON data received"))
		return
	}

	if _, err := c.store.Update(patch); err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, api_models.StatusResponse{
		Success: true,
		Status:  "success",
		Message: "Settings updated successfully",
	})
}

func (c *SettingsController) ResetSettings(ctx *gin.Context) {
	if _, err := c.store.Reset(); err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, api_models.StatusResponse{
		Success: true,
		Status:  "success",
		Message: "Settings reset to defaults",
	})
}
