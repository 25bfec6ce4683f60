package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
	units "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Units"
)

func TestOpenCreatesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")
	store, err := Open(dir, logger.Nop())
	require.NoError(t, err)

	got := store.Get()
	assert.Equal(t, "UTC", got.Timezone)
	assert.Equal(t, 30, got.RefreshInterval)
	assert.Equal(t, units.Fahrenheit, store.Unit())

	data, err := os.ReadFile(filepath.Join(dir, SettingsFile))
	require.NoError(t, err)
	var onDisk lsnmodels.Settings
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, "LoRa Sensor Network", onDisk.DashboardSettings["title"])
}

func TestUpdatePersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, logger.Nop())
	require.NoError(t, err)

	_, err = store.Update(map[string]interface{}{
		"timezone":         "America/Chicago",
		"refresh_interval": float64(60),
		"temperature_unit": "celsius",
		"subtitle":         "Greenhouse",
		"dashboard":        map[string]interface{}{"theme": "dark"},
	})
	require.NoError(t, err)

	reopened, err := Open(dir, logger.Nop())
	require.NoError(t, err)
	got := reopened.Get()
	assert.Equal(t, "America/Chicago", got.Timezone)
	assert.Equal(t, 60, got.RefreshInterval)
	assert.Equal(t, "C", got.TemperatureUnit)
	assert.Equal(t, "Greenhouse", got.DashboardSettings["subtitle"])
	assert.Equal(t, "Environmental Data Dashboard", lsnmodels.DefaultSettings().DashboardSettings["subtitle"])
	assert.Equal(t, "dark", got.Dashboard["theme"])
	assert.Equal(t, "LoRa Sensor Network", got.Dashboard["title"])
}

func TestUpdateRejectsInvalidWithoutChanges(t *testing.T) {
	store, err := Open(t.TempDir(), logger.Nop())
	require.NoError(t, err)

	tests := []struct {
		name  string
		patch map[string]interface{}
		kind  apperrors.Kind
	}{
		{"unknown zone", map[string]interface{}{"timezone": "Not/AZone", "refresh_interval": float64(10)}, apperrors.KindInvalidTimezone},
		{"interval too small", map[string]interface{}{"refresh_interval": float64(4)}, apperrors.KindValidation},
		{"interval too large", map[string]interface{}{"refresh_interval": float64(301)}, apperrors.KindValidation},
		{"interval not integral", map[string]interface{}{"refresh_interval": 12.5}, apperrors.KindValidation},
		{"interval as string", map[string]interface{}{"refresh_interval": "30"}, apperrors.KindValidation},
		{"bad unit", map[string]interface{}{"temperature_unit": "K"}, apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Update(tt.patch)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
			assert.Equal(t, lsnmodels.DefaultSettings(), store.Get())
		})
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	store, err := Open(t.TempDir(), logger.Nop())
	require.NoError(t, err)

	_, err = store.Update(map[string]interface{}{"timezone": "Asia/Tokyo", "showRSSI": false})
	require.NoError(t, err)

	got, err := store.Reset()
	require.NoError(t, err)
	assert.Equal(t, lsnmodels.DefaultSettings(), got)
	assert.Equal(t, true, store.Get().DashboardSettings["showRSSI"])
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, logger.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 5; i < 55; i++ {
		wg.Add(1)
		go func(interval int) {
			defer wg.Done()
			_, err := store.Update(map[string]interface{}{"refresh_interval": float64(interval)})
			assert.NoError(t, err)
			_ = store.Get()
		}(i)
	}
	wg.Wait()

	reopened, err := Open(dir, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, store.Get().RefreshInterval, reopened.Get().RefreshInterval)
}

func TestGetReturnsCopy(t *testing.T) {
	store, err := Open(t.TempDir(), logger.Nop())
	require.NoError(t, err)

	got := store.Get()
	got.DashboardSettings["title"] = "mutated"
	assert.Equal(t, "LoRa Sensor Network", store.Get().DashboardSettings["title"])
}

func TestNodeLabels(t *testing.T) {
	dir := t.TempDir()
	labels, err := OpenNodeLabels(dir, logger.Nop())
	require.NoError(t, err)
	assert.Empty(t, labels.Labels())

	doc := `{"nodes":[{"id":"1001","name":"Basement"},{"id":"1002","name":"Attic"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, NodesFile), []byte(doc), 0o644))
	// force a different mtime regardless of filesystem resolution
	labels.modTime = 0

	got := labels.Labels()
	assert.Equal(t, map[string]string{"1001": "Basement", "1002": "Attic"}, got)
}
