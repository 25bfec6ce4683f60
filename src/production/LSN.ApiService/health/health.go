package health

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// Pinger checks that the Reading Store answers queries
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	store     Pinger
	driver    string
	configDir string
	startedAt time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(store Pinger, driver, configDir string) *HealthChecker {
	return &HealthChecker{
		store:     store,
		driver:    driver,
		configDir: configDir,
		startedAt: time.Now(),
	}
}

// CheckDatabaseHealth runs a trivial query against the store
func (h *HealthChecker) CheckDatabaseHealth(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("reading store is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.store.Ping(ctx)
}

// CheckConfigDir confirms the settings documents are reachable
func (h *HealthChecker) CheckConfigDir() error {
	info, err := os.Stat(h.configDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", h.configDir)
	}
	return nil
}

// GetHealthStatus returns the current health status
func (h *HealthChecker) GetHealthStatus(ctx context.Context) map[string]interface{} {
	checks := map[string]interface{}{}
	overall := "ok"

	if err := h.CheckDatabaseHealth(ctx); err != nil {
		overall = "degraded"
		checks["database"] = map[string]interface{}{"status": "error", "driver": h.driver, "error": err.Error()}
	} else {
		checks["database"] = map[string]interface{}{"status": "ok", "driver": h.driver}
	}

	if err := h.CheckConfigDir(); err != nil {
		overall = "degraded"
		checks["config"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		checks["config"] = map[string]interface{}{"status": "ok"}
	}

	return map[string]interface{}{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"checks":    checks,
	}
}
