package api_models

import (
	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type IngestResponse struct {
	Success          bool   `json:"success"`
	Status           string `json:"status"`
	Message          string `json:"message"`
	ID               int64  `json:"id"`
	NodeID           string `json:"node_id"`
	Timestamp        string `json:"timestamp"`
	StoredTimestamp  string `json:"stored_timestamp"`
	ReceivedAt       string `json:"received_at"`
	NodeStateLagging bool   `json:"node_state_lagging,omitempty"`
}

type LatestResponse struct {
	Success  bool                      `json:"success"`
	Data     []lsnmodels.LatestReading `json:"data"`
	Count    int                       `json:"count"`
	Timezone string                    `json:"timezone"`
	Unit     string                    `json:"unit"`
}

type HistoryResponse struct {
	Success  bool                       `json:"success"`
	Data     []lsnmodels.HistoryReading `json:"data"`
	Count    int                        `json:"count"`
	Timezone string                     `json:"timezone"`
	Hours    int                        `json:"hours"`
	Limit    int                        `json:"limit"`
}

type NodesResponse struct {
	Success bool                  `json:"success"`
	Data    []lsnmodels.NodeState `json:"data"`
	Count   int                   `json:"count"`
}

type StatsResponse struct {
	Success  bool                   `json:"success"`
	Stats    lsnmodels.NetworkStats `json:"stats"`
	Timezone string                 `json:"timezone"`
}

type SettingsResponse struct {
	Success  bool               `json:"success"`
	Settings lsnmodels.Settings `json:"settings"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type TimezoneRequest struct {
	Timezone string `json:"timezone"`
}

type TimezoneResponse struct {
	Valid       bool   `json:"valid"`
	Timezone    string `json:"timezone,omitempty"`
	CurrentTime string `json:"current_time,omitempty"`
	Offset      string `json:"offset,omitempty"`
	Error       string `json:"error,omitempty"`
}
