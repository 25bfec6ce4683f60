package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
	timestamp "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Timestamp"
	units "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Units"
)

const (
	SettingsFile = "settings.json"
	NodesFile    = "nodes.json"

	MinRefreshInterval = 5
	MaxRefreshInterval = 300
)

// Store owns settings.json. Reads are served from memory; every update is
// validated in full, then written by temp file and rename under one lock.
type Store struct {
	path   string
	logger *logger.Logger

	mu      sync.RWMutex
	current lsnmodels.Settings
}

// Open loads settings from dir, writing the defaults when the file is missing
func Open(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Storage(err, "failed to create config directory")
	}

	s := &Store{path: filepath.Join(dir, SettingsFile), logger: log.WithComponent("settings")}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.current = lsnmodels.DefaultSettings()
		if err := writeJSONAtomic(s.path, s.current); err != nil {
			return nil, apperrors.Storage(err, "failed to write default settings")
		}
		s.logger.WithField("path", s.path).Info("Created default settings")
		return s, nil
	case err != nil:
		return nil, apperrors.Storage(err, "failed to read settings")
	}

	loaded := lsnmodels.DefaultSettings()
	if err := json.Unmarshal(data, &loaded); err != nil {
		// a corrupt document is not fatal; serve defaults until the next write
		s.logger.WithError(err).Warn("Settings file unreadable, using defaults")
		loaded = lsnmodels.DefaultSettings()
	}
	s.current = normalize(loaded)
	return s, nil
}

// Get returns a copy of the current settings
func (s *Store) Get() lsnmodels.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Timezone is the configured viewer zone name
func (s *Store) Timezone() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Timezone
}

// Unit is the configured viewer temperature unit
func (s *Store) Unit() units.Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, err := units.ParseUnit(s.current.TemperatureUnit)
	if err != nil {
		return units.Fahrenheit
	}
	return u
}

// Update applies a partial document. Nothing is changed if any key is invalid.
func (s *Store) Update(patch map[string]interface{}) (lsnmodels.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	if err := apply(&next, patch); err != nil {
		return lsnmodels.Settings{}, err
	}

	if err := writeJSONAtomic(s.path, next); err != nil {
		return lsnmodels.Settings{}, apperrors.Storage(err, "failed to save settings")
	}
	s.current = next
	return next.Clone(), nil
}

// Reset restores and persists the defaults
func (s *Store) Reset() (lsnmodels.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := lsnmodels.DefaultSettings()
	if err := writeJSONAtomic(s.path, next); err != nil {
		return lsnmodels.Settings{}, apperrors.Storage(err, "failed to reset settings")
	}
	s.current = next
	return next.Clone(), nil
}

func apply(next *lsnmodels.Settings, patch map[string]interface{}) error {
	if raw, ok := patch["timezone"]; ok {
		name, _ := raw.(string)
		if _, err := timestamp.ValidateZone(name); err != nil {
			return &apperrors.Error{Kind: apperrors.KindInvalidTimezone, Message: "Invalid timezone", Err: err}
		}
		next.Timezone = name
	}

	if raw, ok := patch["refresh_interval"]; ok {
		interval, ok := integral(raw)
		if !ok || interval < MinRefreshInterval || interval > MaxRefreshInterval {
			return apperrors.NewValidation(fmt.Sprintf("Refresh interval must be between %d and %d seconds", MinRefreshInterval, MaxRefreshInterval))
		}
		next.RefreshInterval = interval
	}

	if raw, ok := patch["temperature_unit"]; ok {
		str, _ := raw.(string)
		unit, err := units.ParseUnit(str)
		if err != nil {
			return apperrors.NewValidation("Temperature unit must be F or C")
		}
		next.TemperatureUnit = string(unit)
	}

	if raw, ok := patch["dashboard"]; ok {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return apperrors.NewValidation("dashboard must be an object")
		}
		next.Dashboard = merge(next.Dashboard, obj)
	}

	if raw, ok := patch["dashboard_settings"]; ok {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return apperrors.NewValidation("dashboard_settings must be an object")
		}
		next.DashboardSettings = merge(next.DashboardSettings, obj)
	}

	folded := map[string]interface{}{}
	for _, field := range lsnmodels.DashboardFields {
		if v, ok := patch[field]; ok {
			folded[field] = v
		}
	}
	if len(folded) > 0 {
		next.DashboardSettings = merge(next.DashboardSettings, folded)
	}
	return nil
}

func integral(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func merge(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{}, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// normalize fills fields an older or hand-edited document may lack
func normalize(s lsnmodels.Settings) lsnmodels.Settings {
	defaults := lsnmodels.DefaultSettings()
	if s.Timezone == "" {
		s.Timezone = defaults.Timezone
	}
	if s.RefreshInterval < MinRefreshInterval || s.RefreshInterval > MaxRefreshInterval {
		s.RefreshInterval = defaults.RefreshInterval
	}
	if _, err := units.ParseUnit(s.TemperatureUnit); err != nil {
		s.TemperatureUnit = defaults.TemperatureUnit
	}
	if s.Dashboard == nil {
		s.Dashboard = defaults.Dashboard
	}
	if s.DashboardSettings == nil {
		s.DashboardSettings = defaults.DashboardSettings
	}
	return s
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
