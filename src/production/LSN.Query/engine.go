// Package query answers the read side: latest snapshot, windowed history,
// node listing, network aggregates and exports.
package query

import (
	"context"
	"fmt"
	"time"

	config "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Config"
	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	ingestor "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Ingestor"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
	interfaces "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Repository/Interfaces"
	timestamp "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Timestamp"
	units "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Units"
)

const (
	DefaultHistoryHours = 24
	DefaultExportDays   = 7

	activeWindow = time.Hour
	rssiWindow   = 24 * time.Hour
)

// TelemetrySource reports ingestion counters
type TelemetrySource interface {
	Telemetry() ingestor.Telemetry
}

// LabelSource maps node ids to display labels
type LabelSource interface {
	Labels() map[string]string
}

// ViewOptions are the viewer's display preferences for one call
type ViewOptions struct {
	Timezone string
	Unit     units.Unit
}

// HistoryParams are the caller's window selectors. Zero means default.
type HistoryParams struct {
	NodeID string
	Hours  int
	Limit  int
}

// Engine serves read queries over the Reading Store
type Engine struct {
	repo        interfaces.ReadingRepository
	telemetry   TelemetrySource
	labels      LabelSource
	storageUnit units.Unit
	limits      config.QueryConfig
	startedAt   time.Time
	now         func() time.Time
	logger      *logger.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLabels overlays node labels on Nodes results
func WithLabels(labels LabelSource) EngineOption {
	return func(e *Engine) { e.labels = labels }
}

// WithTelemetry feeds success_rate and the ingest counters in NetworkStats
func WithTelemetry(t TelemetrySource) EngineOption {
	return func(e *Engine) { e.telemetry = t }
}

// WithNow replaces time.Now for window arithmetic and uptime
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(repo interfaces.ReadingRepository, storageUnit units.Unit, limits config.QueryConfig, log *logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:        repo,
		storageUnit: storageUnit,
		limits:      limits,
		now:         time.Now,
		logger:      log.WithComponent("query_engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.startedAt = e.now()
	return e
}

// Latest returns each node's newest reading in the viewer's unit.
// The timezone label returned applies to the whole response.
func (e *Engine) Latest(ctx context.Context, opts ViewOptions) ([]lsnmodels.LatestReading, string, error) {
	_, zone := timestamp.ResolveZone(opts.Timezone)
	unit := e.viewUnit(opts)

	rows, err := e.repo.LatestPerNode(ctx)
	if err != nil {
		return nil, zone, err
	}

	out := make([]lsnmodels.LatestReading, 0, len(rows))
	for _, r := range rows {
		out = append(out, lsnmodels.LatestReading{
			ID:              r.ID,
			NodeID:          r.NodeID,
			Temperature:     e.temperature(r.Temperature, unit),
			TemperatureUnit: string(unit),
			Humidity:        r.Humidity,
			Pressure:        r.Pressure,
			BatteryVoltage:  r.BatteryVoltage,
			RSSI:            r.RSSI,
			SNR:             r.SNR,
			HeatIndex:       r.HeatIndex,
			DewPoint:        r.DewPoint,
			GatewayID:       r.GatewayID,
			Timestamp:       timestamp.Normalize(r.StoredTimestamp, r.ReceivedAt.Time),
			ReceivedAt:      r.ReceivedAt.Format(time.RFC3339),
		})
	}
	return out, zone, nil
}

// History returns readings received within the last Hours, newest first, each
// timestamp expanded for the viewer.
func (e *Engine) History(ctx context.Context, params HistoryParams, opts ViewOptions) ([]lsnmodels.HistoryReading, HistoryParams, error) {
	params, err := e.normalizeHistory(params)
	if err != nil {
		return nil, params, err
	}
	_, zone := timestamp.ResolveZone(opts.Timezone)
	unit := e.viewUnit(opts)

	rows, err := e.repo.History(ctx, interfaces.HistoryQuery{
		NodeID: params.NodeID,
		Since:  e.now().Add(-time.Duration(params.Hours) * time.Hour),
		Limit:  params.Limit,
	})
	if err != nil {
		return nil, params, err
	}

	out := make([]lsnmodels.HistoryReading, 0, len(rows))
	for _, r := range rows {
		out = append(out, lsnmodels.HistoryReading{
			ID:              r.ID,
			NodeID:          r.NodeID,
			Temperature:     e.temperature(r.Temperature, unit),
			TemperatureUnit: string(unit),
			Humidity:        r.Humidity,
			Pressure:        r.Pressure,
			BatteryVoltage:  r.BatteryVoltage,
			RSSI:            r.RSSI,
			SNR:             r.SNR,
			HeatIndex:       r.HeatIndex,
			DewPoint:        r.DewPoint,
			CollectionCycle: r.CollectionCycle,
			GatewayID:       r.GatewayID,
			SourceTimestamp: r.SourceTimestamp,
			NodeTimestamp:   r.NodeTimestamp,
			Timestamp:       timestamp.ForViewer(r.StoredTimestamp, zone),
			ReceivedAt:      r.ReceivedAt.Format(time.RFC3339),
		})
	}
	return out, params, nil
}

func (e *Engine) normalizeHistory(p HistoryParams) (HistoryParams, error) {
	if p.Hours == 0 {
		p.Hours = DefaultHistoryHours
	}
	if p.Hours < 1 || p.Hours > e.limits.HistoryMaxHours {
		return p, apperrors.NewValidation(fmt.Sprintf("hours must be between 1 and %d", e.limits.HistoryMaxHours), "hours")
	}
	if p.Limit == 0 {
		p.Limit = e.limits.HistoryDefaultLimit
	}
	if p.Limit < 1 || p.Limit > e.limits.HistoryMaxLimit {
		return p, apperrors.NewValidation(fmt.Sprintf("limit must be between 1 and %d", e.limits.HistoryMaxLimit), "limit")
	}
	return p, nil
}

// Nodes lists every known node with its label applied as location
func (e *Engine) Nodes(ctx context.Context, opts ViewOptions) ([]lsnmodels.NodeState, error) {
	states, err := e.repo.ListNodeStates(ctx)
	if err != nil {
		return nil, err
	}

	var labels map[string]string
	if e.labels != nil {
		labels = e.labels.Labels()
	}
	unit := e.viewUnit(opts)
	for i := range states {
		states[i].LastTemperature = e.temperature(states[i].LastTemperature, unit)
		if name, ok := labels[states[i].NodeID]; ok {
			label := name
			states[i].Location = &label
		}
	}
	return states, nil
}

// NetworkStats aggregates counts over the store and the pipeline counters
func (e *Engine) NetworkStats(ctx context.Context, opts ViewOptions) (*lsnmodels.NetworkStats, error) {
	now := e.now()
	_, zone := timestamp.ResolveZone(opts.Timezone)

	total, err := e.repo.CountReadings(ctx)
	if err != nil {
		return nil, err
	}
	active, err := e.repo.CountActiveNodes(ctx, now.Add(-activeWindow))
	if err != nil {
		return nil, err
	}
	avg, err := e.repo.AverageRSSI(ctx, now.Add(-rssiWindow))
	if err != nil {
		return nil, err
	}
	last, err := e.repo.LastReceivedAt(ctx)
	if err != nil {
		return nil, err
	}

	stats := &lsnmodels.NetworkStats{
		TotalMessages: total,
		ActiveNodes:   active,
		AvgRSSI:       units.Round1(avg),
		Uptime:        FormatUptime(now.Sub(e.startedAt)),
	}
	if last != nil {
		display := timestamp.ForViewerTime(*last, zone)
		stats.LastUpdate = &display
	}
	if e.telemetry != nil {
		t := e.telemetry.Telemetry()
		stats.SuccessRate = t.SuccessRate()
		stats.IngestAttempts = t.Attempts
		stats.IngestAccepted = t.Accepted
	}
	return stats, nil
}

// Export returns readings received within the last days, newest first.
// Temperatures stay in the storage unit.
func (e *Engine) Export(ctx context.Context, days int) ([]lsnmodels.Reading, int, error) {
	if days == 0 {
		days = DefaultExportDays
	}
	if days < 1 || days > e.limits.ExportMaxDays {
		return nil, days, apperrors.NewValidation(fmt.Sprintf("days must be between 1 and %d", e.limits.ExportMaxDays), "days")
	}
	rows, err := e.repo.ExportSince(ctx, e.now().Add(-time.Duration(days)*24*time.Hour))
	if err != nil {
		return nil, days, err
	}
	e.logger.Logger.Debug().Int("days", days).Int("rows", len(rows)).Msg("Export prepared")
	return rows, days, nil
}

// StorageUnit is the unit export rows are expressed in
func (e *Engine) StorageUnit() units.Unit {
	return e.storageUnit
}

func (e *Engine) viewUnit(opts ViewOptions) units.Unit {
	if opts.Unit == "" {
		return e.storageUnit
	}
	return opts.Unit
}

func (e *Engine) temperature(v *float64, unit units.Unit) *float64 {
	if v == nil {
		return nil
	}
	out := units.Round1(units.Convert(*v, e.storageUnit, unit))
	return &out
}

// FormatUptime renders a duration as its two most significant units
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	hours := secs % 86400 / 3600
	mins := secs % 3600 / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs%60)
	}
	return fmt.Sprintf("%ds", secs)
}
