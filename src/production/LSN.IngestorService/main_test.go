package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.IngestorService/client"
	lsningestor "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.IngestorService/ingestor"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
)

type stubSource struct{ connected bool }

func (s *stubSource) Name() string      { return "serial" }
func (s *stubSource) Start() error      { return nil }
func (s *stubSource) Stop()             {}
func (s *stubSource) IsConnected() bool { return s.connected }

func TestHealthRouter(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer api.Close()

	apiClient := client.NewAPIClient(api.URL, "")
	forwarder := lsningestor.NewForwarder(apiClient, 4, logger.Nop())
	src := &stubSource{connected: true}
	router := healthRouter(src, apiClient, forwarder)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	services := body["services"].(map[string]interface{})
	assert.Equal(t, "connected", services["serial"])
	assert.Equal(t, "connected", services["api_service"])
	assert.Equal(t, "closed", body["circuit_breaker"].(map[string]interface{})["state"])

	src.connected = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
