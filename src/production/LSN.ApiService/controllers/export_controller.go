package controllers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
	query "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Query"
)

// ExportController serves downloadable reading exports
type ExportController struct {
	engine *query.Engine
	logger *logger.Logger
}

// NewExportController creates a new export controller
func NewExportController(engine *query.Engine, logger *logger.Logger) *ExportController {
	return &ExportController{
		engine: engine,
		logger: logger.WithComponent("export_controller"),
	}
}

// RegisterRoutes registers the export routes with Gin
func (c *ExportController) RegisterRoutes(router *gin.Engine) {
	export := router.Group("/api/export")
	{
		export.GET("/csv", c.ExportCSV)
		export.GET("/json", c.ExportJSON)
	}
}

func (c *ExportController) ExportCSV(ctx *gin.Context) {
	c.export(ctx, "csv", "text/csv; charset=utf-8", query.WriteCSV)
}

func (c *ExportController) ExportJSON(ctx *gin.Context) {
	c.export(ctx, "json", "application/json; charset=utf-8", query.WriteJSON)
}

// export renders into memory first so a failure still gets a JSON error body
func (c *ExportController) export(ctx *gin.Context, ext, contentType string, write func(io.Writer, []lsnmodels.Reading) error) {
	days, err := intQuery(ctx, "days")
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	rows, days, err := c.engine.Export(ctx.Request.Context(), days)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, rows); err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="`+query.ExportFilename(days, ext)+`"`)
	ctx.Data(http.StatusOK, contentType, buf.Bytes())
}
