package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostReadingSendsKeyAndDecodesAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sensor-data", r.URL.Path)
		assert.Equal(t, "k3y", r.Header.Get("X-API-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "NODE01", body["node_id"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"status":"success","id":7,"node_id":"NODE01","stored_timestamp":"2025-09-03 14:30:25"}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", "k3y")
	ack, err := c.PostReading(context.Background(), map[string]interface{}{"node_id": "NODE01"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), ack.ID)
	assert.Equal(t, "2025-09-03 14:30:25", ack.StoredTimestamp)
}

func TestPostReadingDoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Missing required fields: pressure"}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "", WithRetry(3, time.Millisecond))
	_, err := c.PostReading(context.Background(), map[string]interface{}{"node_id": "1001"})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Missing required fields: pressure", se.Message)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateClosed, c.circuitBreaker.State())
}

func TestPostReadingRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"success":true,"id":1}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "", WithRetry(3, time.Millisecond))
	ack, err := c.PostReading(context.Background(), map[string]interface{}{"node_id": "1001"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ack.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "", WithRetry(0, time.Millisecond), WithCircuitBreaker(2, time.Hour))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := c.PostReading(ctx, map[string]interface{}{"node_id": "1001"})
		require.Error(t, err)
		assert.False(t, IsPermanent(err))
	}

	_, err := c.PostReading(ctx, map[string]interface{}{"node_id": "1001"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "open", c.GetCircuitBreakerStatus()["state"])
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	fail := atomic.Bool{}
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "", WithRetry(0, time.Millisecond), WithCircuitBreaker(1, 10*time.Millisecond))
	ctx := context.Background()
	_, err := c.PostReading(ctx, map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, StateOpen, c.circuitBreaker.State())

	fail.Store(false)
	time.Sleep(20 * time.Millisecond)
	_, err = c.PostReading(ctx, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, c.circuitBreaker.State())
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/live" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	assert.NoError(t, NewAPIClient(srv.URL, "").Health(context.Background()))

	srv.Close()
	assert.Error(t, NewAPIClient(srv.URL, "").Health(context.Background()))
}
