package lsnmodels

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	timestamp "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Timestamp"
)

// StoreTime is a server-assigned instant kept in a TEXT column as
// timestamp.StoreLayout in UTC.
type StoreTime struct {
	time.Time
}

// NewStoreTime truncates t to the column precision
func NewStoreTime(t time.Time) StoreTime {
	return StoreTime{t.UTC().Truncate(time.Microsecond)}
}

// Value implements driver.Valuer
func (s StoreTime) Value() (driver.Value, error) {
	return timestamp.FormatStore(s.Time), nil
}

// Scan implements sql.Scanner
func (s *StoreTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	case time.Time:
		s.Time = v.UTC()
		return nil
	case nil:
		s.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("store time: unsupported type %T", src)
}

func (s *StoreTime) parse(v string) error {
	t, err := timestamp.ParseStore(v)
	if err != nil {
		return fmt.Errorf("store time: %w", err)
	}
	s.Time = t
	return nil
}

// Reading is one immutable row of the time-series table.
// Temperature is held in the store's canonical unit.
type Reading struct {
	ID              int64     `db:"id" json:"id"`
	NodeID          string    `db:"node_id" json:"node_id"`
	SourceTimestamp *string   `db:"source_timestamp" json:"source_timestamp"`
	NodeTimestamp   *string   `db:"node_timestamp" json:"node_timestamp"`
	StoredTimestamp string    `db:"stored_timestamp" json:"stored_timestamp"`
	Temperature     *float64  `db:"temperature" json:"temperature"`
	Humidity        *float64  `db:"humidity" json:"humidity"`
	Pressure        *float64  `db:"pressure" json:"pressure"`
	BatteryVoltage  *float64  `db:"battery_voltage" json:"battery_voltage"`
	RSSI            *float64  `db:"rssi" json:"rssi"`
	SNR             *float64  `db:"snr" json:"snr"`
	HeatIndex       *float64  `db:"heat_index" json:"heat_index"`
	DewPoint        *float64  `db:"dew_point" json:"dew_point"`
	CollectionCycle *int64    `db:"collection_cycle" json:"collection_cycle"`
	GatewayID       *string   `db:"gateway_id" json:"gateway_id"`
	ReceivedAt      StoreTime `db:"received_at" json:"received_at"`
}

// Measurement returns the named measurement, or nil when absent or unknown
func (r *Reading) Measurement(name string) *float64 {
	switch name {
	case "temperature":
		return r.Temperature
	case "humidity":
		return r.Humidity
	case "pressure":
		return r.Pressure
	case "battery_voltage":
		return r.BatteryVoltage
	case "rssi":
		return r.RSSI
	case "snr":
		return r.SNR
	}
	return nil
}

// MissingFields lists required measurements absent from the reading, led by
// node_id when it is empty
func (r *Reading) MissingFields(required []string) []string {
	var missing []string
	if strings.TrimSpace(r.NodeID) == "" {
		missing = append(missing, "node_id")
	}
	for _, field := range required {
		if r.Measurement(field) == nil {
			missing = append(missing, field)
		}
	}
	return missing
}

// NodeState is the per-node last-known-state row
type NodeState struct {
	NodeID             string    `db:"node_id" json:"node_id"`
	LastSeen           StoreTime `db:"last_seen" json:"last_seen"`
	TotalReadings      int64     `db:"total_readings" json:"total_readings"`
	LastTemperature    *float64  `db:"last_temperature" json:"last_temperature"`
	LastHumidity       *float64  `db:"last_humidity" json:"last_humidity"`
	LastPressure       *float64  `db:"last_pressure" json:"last_pressure"`
	LastBatteryVoltage *float64  `db:"last_battery_voltage" json:"last_battery_voltage"`
	LastRSSI           *float64  `db:"last_rssi" json:"last_rssi"`
	LastSNR            *float64  `db:"last_snr" json:"last_snr"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	Location           *string   `db:"location" json:"location"`
}

// NodeStateFromReading builds the upsert image of a freshly stored reading
func NodeStateFromReading(r *Reading) NodeState {
	return NodeState{
		NodeID:             r.NodeID,
		LastSeen:           r.ReceivedAt,
		TotalReadings:      1,
		LastTemperature:    r.Temperature,
		LastHumidity:       r.Humidity,
		LastPressure:       r.Pressure,
		LastBatteryVoltage: r.BatteryVoltage,
		LastRSSI:           r.RSSI,
		LastSNR:            r.SNR,
		IsActive:           true,
	}
}

// ExportColumns is the fixed column order of CSV and JSON exports
var ExportColumns = []string{
	"id", "node_id", "source_timestamp", "node_timestamp", "stored_timestamp",
	"temperature", "humidity", "pressure", "battery_voltage", "rssi", "snr",
	"heat_index", "dew_point", "collection_cycle", "gateway_id", "received_at",
}
