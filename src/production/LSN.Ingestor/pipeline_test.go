package ingestor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
	implementation "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Repository/Interfaces"
	units "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Units"
)

// fakeRepo records writes and can be told to fail either step
type fakeRepo struct {
	interfaces.ReadingRepository

	mu         sync.Mutex
	inserted   []lsnmodels.Reading
	upserts    []lsnmodels.NodeState
	insertErr  error
	upsertErr  error
	nextID     int64
	receivedAt time.Time
}

func (f *fakeRepo) Insert(_ context.Context, r *lsnmodels.Reading) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	r.ID = f.nextID
	r.ReceivedAt = lsnmodels.NewStoreTime(f.receivedAt)
	if r.StoredTimestamp == "" {
		r.StoredTimestamp = r.ReceivedAt.Format("2006-01-02 15:04:05")
	}
	f.inserted = append(f.inserted, *r)
	return r.ID, nil
}

func (f *fakeRepo) UpsertNodeState(_ context.Context, s lsnmodels.NodeState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, s)
	return f.upsertErr
}

var strict = Options{
	StorageUnit:    units.Celsius,
	InputUnit:      units.Fahrenheit,
	RequiredFields: []string{"temperature", "humidity", "pressure"},
}

func newFake() *fakeRepo {
	return &fakeRepo{receivedAt: time.Date(2025, 9, 3, 14, 30, 27, 0, time.UTC)}
}

func TestIngestGatewayPayload(t *testing.T) {
	repo := newFake()
	p := NewPipeline(repo, strict, logger.Nop())

	res, err := p.Ingest(context.Background(), Payload{
		"node_id":           "NODE01",
		"gateway_timestamp": "Wed-09-03-2025--14:30:25",
		"node_timestamp":    "2025-09-03-14:30:20",
		"temperature_f":     75.2,
		"humidity":          65.1,
		"pressure_hpa":      1013.25,
		"heat_index":        78.5,
		"dew_point":         12.3,
		"rssi":              -85.2,
		"snr":               9.5,
		"collection_cycle":  float64(58),
		"gateway_id":        "GATEWAY_01",
		"unknown_field":     true,
	})
	require.NoError(t, err)

	require.Len(t, repo.inserted, 1)
	got := repo.inserted[0]
	assert.Equal(t, "NODE01", got.NodeID)
	assert.InDelta(t, 24.0, *got.Temperature, 1e-9)
	assert.Equal(t, 1013.25, *got.Pressure)
	assert.Equal(t, 78.5, *got.HeatIndex, "derived fields are stored verbatim")
	assert.Equal(t, "Wed-09-03-2025--14:30:25", *got.SourceTimestamp)
	assert.Equal(t, "2025-09-03-14:30:20", *got.NodeTimestamp)
	assert.Equal(t, "2025-09-03 14:30:25", got.StoredTimestamp)
	assert.Equal(t, int64(58), *got.CollectionCycle)

	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, "Wed-09-03-2025--14:30:25", res.Timestamp)
	assert.False(t, res.NodeStateLagging)

	require.Len(t, repo.upserts, 1)
	assert.Equal(t, "NODE01", repo.upserts[0].NodeID)
	assert.InDelta(t, 24.0, *repo.upserts[0].LastTemperature, 1e-9)
}

func TestIngestTemperatureAliases(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    float64
	}{
		{"celsius field", Payload{"temperature_c": 21.5}, 21.5},
		{"bare uses input unit", Payload{"temperature": 212.0}, 100},
		{"bare with declared unit", Payload{"temperature": 30.0, "temperature_unit": "C"}, 30},
		{"numeric string", Payload{"temperature_f": "32"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFake()
			p := NewPipeline(repo, Options{StorageUnit: units.Celsius, InputUnit: units.Fahrenheit}, logger.Nop())

			tt.payload["node_id"] = "1001"
			_, err := p.Ingest(context.Background(), tt.payload)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, *repo.inserted[0].Temperature, 1e-9)
		})
	}
}

func TestIngestNumericNodeID(t *testing.T) {
	repo := newFake()
	p := NewPipeline(repo, Options{}, logger.Nop())

	res, err := p.Ingest(context.Background(), Payload{"node_id": float64(1001)})
	require.NoError(t, err)
	assert.Equal(t, "1001", res.NodeID)
	assert.Equal(t, "2025-09-03 14:30:27", res.Timestamp, "absent source timestamp echoes receive time")
	assert.Equal(t, "2025-09-03 14:30:27", repo.inserted[0].StoredTimestamp)
}

func TestIngestRejectsWithoutWriting(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		fields  []string
	}{
		{"missing node", Payload{"temperature_f": 70.0, "humidity": 40.0, "pressure": 1000.0}, []string{"node_id"}},
		{"missing measurements", Payload{"node_id": "1001", "humidity": 40.0}, []string{"temperature", "pressure"}},
		{"null counts as missing", Payload{"node_id": "1001", "temperature_f": nil, "humidity": 40.0, "pressure": 1000.0}, []string{"temperature"}},
		{"wrong type", Payload{"node_id": "1001", "temperature_f": true, "humidity": "wet", "pressure": 1000.0}, []string{"temperature_f", "humidity"}},
		{"fractional node id", Payload{"node_id": 10.5, "temperature_f": 70.0, "humidity": 40.0, "pressure": 1000.0}, []string{"node_id"}},
		{"nil payload", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFake()
			p := NewPipeline(repo, strict, logger.Nop())

			_, err := p.Ingest(context.Background(), tt.payload)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation))
			var appErr *apperrors.Error
			require.True(t, errors.As(err, &appErr))
			if tt.fields != nil {
				assert.Equal(t, tt.fields, appErr.Fields)
			}
			assert.Empty(t, repo.inserted)
			assert.Empty(t, repo.upserts)
			assert.Equal(t, int64(1), p.Telemetry().Rejected)
		})
	}
}

func TestIngestStorageFailure(t *testing.T) {
	repo := newFake()
	repo.insertErr = apperrors.Storage(errors.New("disk I/O error"), "failed to insert reading")
	p := NewPipeline(repo, Options{}, logger.Nop())

	_, err := p.Ingest(context.Background(), Payload{"node_id": "1001"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindStorage))
	assert.Empty(t, repo.upserts, "no node state update without a stored reading")

	tel := p.Telemetry()
	assert.Equal(t, int64(1), tel.StorageFailures)
	assert.Equal(t, 0.0, *tel.SuccessRate())
}

func TestIngestToleratesNodeStateFailure(t *testing.T) {
	repo := newFake()
	repo.upsertErr = apperrors.Storage(errors.New("database is locked"), "failed to upsert node state")
	p := NewPipeline(repo, Options{}, logger.Nop())

	res, err := p.Ingest(context.Background(), Payload{"node_id": "1001", "humidity": 50.0})
	require.NoError(t, err)
	assert.True(t, res.NodeStateLagging)
	assert.Len(t, repo.inserted, 1)
	assert.Equal(t, int64(1), p.Telemetry().Accepted)
}

func TestTelemetrySuccessRate(t *testing.T) {
	p := NewPipeline(newFake(), strict, logger.Nop())
	assert.Nil(t, p.Telemetry().SuccessRate())

	ctx := context.Background()
	ok := Payload{"node_id": "1001", "temperature_f": 70.0, "humidity": 40.0, "pressure": 1000.0}
	for i := 0; i < 2; i++ {
		_, err := p.Ingest(ctx, ok)
		require.NoError(t, err)
	}
	_, err := p.Ingest(ctx, Payload{"node_id": "1001"})
	require.Error(t, err)

	tel := p.Telemetry()
	assert.Equal(t, int64(3), tel.Attempts)
	assert.Equal(t, int64(2), tel.Accepted)
	assert.Equal(t, 66.7, *tel.SuccessRate())
}

func TestIngestThenLatestReturnsValues(t *testing.T) {
	db, err := implementation.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "lora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := implementation.NewSQLReadingRepository(db, implementation.WithRequiredFields(strict.RequiredFields))
	p := NewPipeline(repo, strict, logger.Nop())
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Ingest(ctx, Payload{"node_id": "1001", "temperature_f": 75.2, "humidity": 65.1, "pressure_hpa": 1013.25})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err = p.Ingest(ctx, Payload{"node_id": float64(1002), "temperature_f": 68.0, "humidity": 40.0, "pressure_hpa": 1000.0})
	require.NoError(t, err)

	state, err := repo.GetNodeState(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), state.TotalReadings)

	latest, err := repo.LatestPerNode(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	byNode := map[string]lsnmodels.Reading{}
	for _, r := range latest {
		byNode[r.NodeID] = r
	}
	assert.Equal(t, 20.0, units.Round1(*byNode["1002"].Temperature))
	assert.Equal(t, 75.2, units.Round1(units.CelsiusToFahrenheit(*byNode["1001"].Temperature)))
}
