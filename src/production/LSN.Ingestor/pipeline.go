// Package ingestor validates, normalizes and persists inbound sensor readings.
//
// A call moves Received -> Validated -> Normalized -> Persisted -> Acknowledged,
// or Received -> Rejected when validation fails. A rejected call writes nothing.
package ingestor

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"time"

	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
	interfaces "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Repository/Interfaces"
	timestamp "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Timestamp"
	units "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Units"
)

// Options are the deployment choices that shape validation and normalization
type Options struct {
	StorageUnit    units.Unit
	InputUnit      units.Unit
	RequiredFields []string
}

// Telemetry counts ingestion attempts since the pipeline was built
type Telemetry struct {
	Attempts        int64
	Accepted        int64
	Rejected        int64
	StorageFailures int64
	StartedAt       time.Time
}

// SuccessRate is the accepted share of attempts in percent, nil before any attempt
func (t Telemetry) SuccessRate() *float64 {
	if t.Attempts == 0 {
		return nil
	}
	rate := math.Round(float64(t.Accepted)/float64(t.Attempts)*1000) / 10
	return &rate
}

// Pipeline is the only writer of readings and node state
type Pipeline struct {
	repo   interfaces.ReadingRepository
	opts   Options
	logger *logger.Logger

	startedAt       time.Time
	attempts        atomic.Int64
	accepted        atomic.Int64
	rejected        atomic.Int64
	storageFailures atomic.Int64
}

func NewPipeline(repo interfaces.ReadingRepository, opts Options, log *logger.Logger) *Pipeline {
	if opts.StorageUnit == "" {
		opts.StorageUnit = units.Celsius
	}
	if opts.InputUnit == "" {
		opts.InputUnit = units.Fahrenheit
	}
	return &Pipeline{
		repo:      repo,
		opts:      opts,
		logger:    log.WithComponent("ingestion_pipeline"),
		startedAt: time.Now(),
	}
}

// StorageUnit is the unit temperatures are persisted in
func (p *Pipeline) StorageUnit() units.Unit {
	return p.opts.StorageUnit
}

// Ingest stores one reading and updates its node's state.
// A node state failure after a successful insert is logged and flagged on the
// result; the call still succeeds since the reading is durable.
func (p *Pipeline) Ingest(ctx context.Context, payload Payload) (*lsnmodels.IngestResult, error) {
	p.attempts.Add(1)

	reading, err := p.parse(payload)
	if err != nil {
		p.rejected.Add(1)
		p.logger.WithError(err).Warn("Rejected sensor reading")
		return nil, err
	}

	if _, err := p.repo.Insert(ctx, reading); err != nil {
		if apperrors.Is(err, apperrors.KindValidation) {
			p.rejected.Add(1)
		} else {
			p.storageFailures.Add(1)
			p.logger.WithNode(reading.NodeID).ErrorWithError(err, "Failed to store sensor reading")
		}
		return nil, err
	}

	result := &lsnmodels.IngestResult{
		ID:              reading.ID,
		NodeID:          reading.NodeID,
		StoredTimestamp: reading.StoredTimestamp,
		ReceivedAt:      reading.ReceivedAt.Time,
	}
	if reading.SourceTimestamp != nil {
		result.Timestamp = *reading.SourceTimestamp
	} else {
		result.Timestamp = reading.ReceivedAt.Format(timestamp.Canonical)
	}

	if err := p.repo.UpsertNodeState(ctx, lsnmodels.NodeStateFromReading(reading)); err != nil {
		result.NodeStateLagging = true
		p.logger.WithNode(reading.NodeID).WithField("reading_id", reading.ID).
			ErrorWithError(err, "Reading stored but node state update failed")
	}

	p.accepted.Add(1)
	p.logger.Logger.Debug().
		Str("node_id", reading.NodeID).
		Int64("reading_id", reading.ID).
		Str("stored_timestamp", reading.StoredTimestamp).
		Msg("Stored sensor reading")
	return result, nil
}

// Telemetry returns a snapshot of the counters
func (p *Pipeline) Telemetry() Telemetry {
	return Telemetry{
		Attempts:        p.attempts.Load(),
		Accepted:        p.accepted.Load(),
		Rejected:        p.rejected.Load(),
		StorageFailures: p.storageFailures.Load(),
		StartedAt:       p.startedAt,
	}
}

// parse covers validation and normalization; received_at is left to the store
func (p *Pipeline) parse(payload Payload) (*lsnmodels.Reading, error) {
	if payload == nil {
		return nil, apperrors.NewValidation("No JSON data received")
	}

	var errs fieldErrors
	reading := &lsnmodels.Reading{
		NodeID:          payload.nodeID(&errs),
		Temperature:     payload.temperature(p.opts.InputUnit, p.opts.StorageUnit, &errs),
		Humidity:        payload.number("humidity", &errs),
		Pressure:        payload.firstNumber(pressureKeys, &errs),
		BatteryVoltage:  payload.number("battery_voltage", &errs),
		RSSI:            payload.number("rssi", &errs),
		SNR:             payload.number("snr", &errs),
		HeatIndex:       payload.number("heat_index", &errs),
		DewPoint:        payload.number("dew_point", &errs),
		CollectionCycle: payload.integer("collection_cycle", &errs),
		GatewayID:       payload.text("gateway_id", &errs),
		SourceTimestamp: payload.firstText(sourceTimestampKeys, &errs),
		NodeTimestamp:   payload.text("node_timestamp", &errs),
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if missing := reading.MissingFields(p.opts.RequiredFields); len(missing) > 0 {
		return nil, apperrors.NewValidation("Missing required fields", missing...)
	}

	if reading.SourceTimestamp != nil && strings.TrimSpace(*reading.SourceTimestamp) != "" {
		reading.StoredTimestamp = timestamp.Normalize(*reading.SourceTimestamp, time.Time{})
	}
	return reading, nil
}
