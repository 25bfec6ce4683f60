package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.ApiService/middleware"
	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	api_models "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models/api"
	query "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Query"
	units "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Units"
)

// ViewDefaults supplies the persisted display preferences
type ViewDefaults interface {
	Timezone() string
	Unit() units.Unit
}

// respondError converts err to its status and a public JSON body.
// Server-side failures are logged with full detail.
func respondError(ctx *gin.Context, log *logger.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		log.WithRequestID(middleware.GetRequestID(ctx)).
			WithField("path", ctx.Request.URL.Path).
			ErrorWithError(err, "Request failed")
	}
	ctx.JSON(status, api_models.ErrorResponse{
		Success: false,
		Error:   apperrors.Message(err),
	})
}

// viewOptions takes timezone and unit from the query string, falling back to settings
func viewOptions(ctx *gin.Context, defaults ViewDefaults) (query.ViewOptions, error) {
	opts := query.ViewOptions{}
	if defaults != nil {
		opts.Timezone = defaults.Timezone()
		opts.Unit = defaults.Unit()
	}
	if tz := strings.TrimSpace(ctx.Query("timezone")); tz != "" {
		opts.Timezone = tz
	}
	if raw := strings.TrimSpace(ctx.Query("unit")); raw != "" {
		unit, err := units.ParseUnit(raw)
		if err != nil {
			return opts, apperrors.NewValidation("unit must be C or F", "unit")
		}
		opts.Unit = unit
	}
	return opts, nil
}

// intQuery parses an optional integer parameter; absent is 0
func intQuery(ctx *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidation(name+" must be an integer", name)
	}
	if v == 0 {
		return 0, apperrors.NewValidation(name+" must be positive", name)
	}
	return v, nil
}
