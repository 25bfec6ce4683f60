package lsnmodels

import (
	"time"

	timestamp "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Timestamp"
)

// LatestReading is one row of the latest-per-node snapshot in the caller's unit
type LatestReading struct {
	ID              int64    `json:"id"`
	NodeID          string   `json:"node_id"`
	Temperature     *float64 `json:"temperature"`
	TemperatureUnit string   `json:"temperature_unit"`
	Humidity        *float64 `json:"humidity"`
	Pressure        *float64 `json:"pressure"`
	BatteryVoltage  *float64 `json:"battery_voltage"`
	RSSI            *float64 `json:"rssi"`
	SNR             *float64 `json:"snr"`
	HeatIndex       *float64 `json:"heat_index"`
	DewPoint        *float64 `json:"dew_point"`
	GatewayID       *string  `json:"gateway_id"`
	Timestamp       string   `json:"timestamp"`
	ReceivedAt      string   `json:"received_at"`
}

// HistoryReading is a reading whose stored timestamp is expanded for display
type HistoryReading struct {
	ID              int64             `json:"id"`
	NodeID          string            `json:"node_id"`
	Temperature     *float64          `json:"temperature"`
	TemperatureUnit string            `json:"temperature_unit"`
	Humidity        *float64          `json:"humidity"`
	Pressure        *float64          `json:"pressure"`
	BatteryVoltage  *float64          `json:"battery_voltage"`
	RSSI            *float64          `json:"rssi"`
	SNR             *float64          `json:"snr"`
	HeatIndex       *float64          `json:"heat_index"`
	DewPoint        *float64          `json:"dew_point"`
	CollectionCycle *int64            `json:"collection_cycle"`
	GatewayID       *string           `json:"gateway_id"`
	SourceTimestamp *string           `json:"source_timestamp"`
	NodeTimestamp   *string           `json:"node_timestamp"`
	Timestamp       timestamp.Display `json:"timestamp"`
	ReceivedAt      string            `json:"received_at"`
}

// NetworkStats is the network-wide aggregate.
// SuccessRate is nil until the pipeline has seen its first attempt.
type NetworkStats struct {
	TotalMessages  int64              `json:"total_messages"`
	ActiveNodes    int64              `json:"active_nodes"`
	AvgRSSI        float64            `json:"avg_rssi"`
	SuccessRate    *float64           `json:"success_rate"`
	Uptime         string             `json:"uptime"`
	LastUpdate     *timestamp.Display `json:"last_update"`
	IngestAttempts int64              `json:"ingest_attempts"`
	IngestAccepted int64              `json:"ingest_accepted"`
}

// IngestResult acknowledges one stored reading
type IngestResult struct {
	ID               int64     `json:"id"`
	NodeID           string    `json:"node_id"`
	Timestamp        string    `json:"timestamp"`
	StoredTimestamp  string    `json:"stored_timestamp"`
	ReceivedAt       time.Time `json:"received_at"`
	NodeStateLagging bool      `json:"node_state_lagging,omitempty"`
}
