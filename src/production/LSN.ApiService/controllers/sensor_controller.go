package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.ApiService/middleware"
	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	ingestor "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Ingestor"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	api_models "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models/api"
	query "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Query"
	timestamp "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Timestamp"
)

// maxPayloadBytes bounds one inbound reading
const maxPayloadBytes = 64 << 10

// SensorController handles ingestion and the read queries over readings
type SensorController struct {
	pipeline *ingestor.Pipeline
	engine   *query.Engine
	defaults ViewDefaults
	apiKey   string
	limiter  *middleware.RateLimiter
	logger   *logger.Logger
}

// NewSensorController creates a new sensor controller
func NewSensorController(pipeline *ingestor.Pipeline, engine *query.Engine, defaults ViewDefaults, apiKey string, limiter *middleware.RateLimiter, logger *logger.Logger) *SensorController {
	return &SensorController{
		pipeline: pipeline,
		engine:   engine,
		defaults: defaults,
		apiKey:   apiKey,
		limiter:  limiter,
		logger:   logger.WithComponent("sensor_controller"),
	}
}

// RegisterRoutes registers the sensor routes with Gin
func (c *SensorController) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/sensor-data", c.limiter.Middleware(), middleware.APIKeyMiddleware(c.apiKey), c.IngestReading)

		api.GET("/sensor-data/latest", c.GetLatest)
		api.GET("/nodes", c.GetNodes)
		api.GET("/sensor-data/history", c.GetHistory)
		api.GET("/readings", c.GetHistory)
		api.GET("/network/stats", c.GetNetworkStats)
	}
}

func (c *SensorController) IngestReading(ctx *gin.Context) {
	payload, err := decodePayload(ctx)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	res, err := c.pipeline.Ingest(ctx.Request.Context(), payload)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, api_models.IngestResponse{
		Success:          true,
		Status:           "success",
		Message:          "Data stored successfully",
		ID:               res.ID,
		NodeID:           res.NodeID,
		Timestamp:        res.Timestamp,
		StoredTimestamp:  res.StoredTimestamp,
		ReceivedAt:       res.ReceivedAt.Format(time.RFC3339),
		NodeStateLagging: res.NodeStateLagging,
	})
}

func decodePayload(ctx *gin.Context) (ingestor.Payload, error) {
	dec := json.NewDecoder(io.LimitReader(ctx.Request.Body, maxPayloadBytes))
	dec.UseNumber()

	var payload ingestor.Payload
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.NewValidation("No JSON data received")
		}
		return nil, apperrors.NewValidation("Invalid JSON body")
	}
	return payload, nil
}

func (c *SensorController) GetLatest(ctx *gin.Context) {
	opts, err := viewOptions(ctx, c.defaults)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	rows, zone, err := c.engine.Latest(ctx.Request.Context(), opts)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	unit := opts.Unit
	if unit == "" {
		unit = c.engine.StorageUnit()
	}
	ctx.JSON(http.StatusOK, api_models.LatestResponse{
		Success:  true,
		Data:     rows,
		Count:    len(rows),
		Timezone: zone,
		Unit:     string(unit),
	})
}

func (c *SensorController) GetNodes(ctx *gin.Context) {
	opts, err := viewOptions(ctx, c.defaults)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	nodes, err := c.engine.Nodes(ctx.Request.Context(), opts)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, api_models.NodesResponse{
		Success: true,
		Data:    nodes,
		Count:   len(nodes),
	})
}

func (c *SensorController) GetHistory(ctx *gin.Context) {
	opts, err := viewOptions(ctx, c.defaults)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	params := query.HistoryParams{NodeID: ctx.Query("node_id")}
	if params.NodeID == "" {
		params.NodeID = ctx.Query("node")
	}
	if params.Hours, err = intQuery(ctx, "hours"); err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	if params.Limit, err = intQuery(ctx, "limit"); err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	rows, applied, err := c.engine.History(ctx.Request.Context(), params, opts)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	_, zone := timestamp.ResolveZone(opts.Timezone)
	ctx.JSON(http.StatusOK, api_models.HistoryResponse{
		Success:  true,
		Data:     rows,
		Count:    len(rows),
		Timezone: zone,
		Hours:    applied.Hours,
		Limit:    applied.Limit,
	})
}

func (c *SensorController) GetNetworkStats(ctx *gin.Context) {
	opts, err := viewOptions(ctx, c.defaults)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	stats, err := c.engine.NetworkStats(ctx.Request.Context(), opts)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	_, zone := timestamp.ResolveZone(opts.Timezone)
	ctx.JSON(http.StatusOK, api_models.StatsResponse{
		Success:  true,
		Stats:    *stats,
		Timezone: zone,
	})
}
