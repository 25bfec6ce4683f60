package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DATA_RETENTION_DAYS", "30")
	t.Setenv("RETENTION_SWEEP_INTERVAL", "6h")
	t.Setenv("REQUIRED_FIELDS", "Temperature, rssi")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30, cfg.Retention.Days)
	assert.Equal(t, 6*time.Hour, cfg.Retention.SweepInterval)
	assert.Equal(t, []string{"temperature", "rssi"}, cfg.Ingest.RequiredFields)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRequiredFieldsNone(t *testing.T) {
	t.Setenv("REQUIRED_FIELDS", "none")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Ingest.RequiredFields)
}

func TestLoadReportsEveryBadVariable(t *testing.T) {
	t.Setenv("DATA_RETENTION_DAYS", "ninety")
	t.Setenv("READ_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_RETENTION_DAYS")
	assert.Contains(t, err.Error(), "READ_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "DB_DRIVER"},
		{"postgres without user", func(c *Config) { c.Database.Driver = "postgres" }, "POSTGRES_USER"},
		{"zero retention", func(c *Config) { c.Retention.Days = 0 }, "DATA_RETENTION_DAYS"},
		{"default limit above max", func(c *Config) { c.Query.HistoryDefaultLimit = c.Query.HistoryMaxLimit + 1 }, "HISTORY_DEFAULT_LIMIT"},
		{"unknown field", func(c *Config) { c.Ingest.RequiredFields = []string{"co2"} }, "co2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadIngestorConfig(t *testing.T) {
	t.Setenv("INGEST_SOURCE", "Serial")
	t.Setenv("BROKER_TLS", "1")
	t.Setenv("BROKER_HOST", "broker.local")
	t.Setenv("BROKER_PORT", "8883")

	cfg, err := LoadIngestorConfig()
	require.NoError(t, err)
	assert.Equal(t, "serial", cfg.Source)
	assert.Equal(t, "tcps://broker.local:8883", cfg.GetMQTTBrokerURL())
	assert.Equal(t, 115200, cfg.Serial.Baud)

	t.Setenv("INGEST_SOURCE", "lorawan")
	_, err = LoadIngestorConfig()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: "sqlite", Path: "/data/lora.db"}}
	assert.Equal(t, "/data/lora.db", cfg.GetDatabaseDSN())

	cfg.Database = DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "lsn", Password: "pw", DBName: "lora", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=lsn password=pw dbname=lora sslmode=disable", cfg.GetDatabaseDSN())
}
