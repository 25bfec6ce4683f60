package controllers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	api_models "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models/api"
)

// StaticController serves the dashboard pages from STATIC_DIR
type StaticController struct {
	dir string
}

// NewStaticController creates a new static controller
func NewStaticController(dir string) *StaticController {
	return &StaticController{dir: dir}
}

// RegisterRoutes registers the page and asset routes with Gin
func (c *StaticController) RegisterRoutes(router *gin.Engine) {
	router.GET("/", c.page("dashboard.html", "Dashboard not found. Make sure static/dashboard.html exists."))
	router.GET("/dashboard", c.page("dashboard.html", "Dashboard not found. Make sure static/dashboard.html exists."))
	router.GET("/charts", c.page("charts.html", "Charts not found. Make sure static/charts.html exists."))
	router.Static("/static", c.dir)
}

func (c *StaticController) page(name, missing string) gin.HandlerFunc {
	path := filepath.Join(c.dir, name)
	return func(ctx *gin.Context) {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			ctx.JSON(http.StatusNotFound, api_models.ErrorResponse{Success: false, Error: missing})
			return
		}
		ctx.File(path)
	}
}

// NotFound is the JSON fallback for unknown routes
func NotFound(ctx *gin.Context) {
	ctx.JSON(http.StatusNotFound, api_models.ErrorResponse{Success: false, Error: "Endpoint not found"})
}
