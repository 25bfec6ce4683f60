package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Storage   StorageConfig   `json:"storage"`
	Ingest    IngestConfig    `json:"ingest"`
	Query     QueryConfig     `json:"query"`
	Retention RetentionConfig `json:"retention"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Logging   LoggingConfig   `json:"logging"`
	CORS      CORSConfig      `json:"cors"`
	Debug     bool            `json:"debug"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	StaticDir    string        `json:"static_dir"`
}

// DatabaseConfig holds database-related configuration.
// Driver is "sqlite" (single on-disk file) or "postgres".
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
}

// StorageConfig holds the on-disk locations of the JSON documents
type StorageConfig struct {
	ConfigDir string `json:"config_dir"`
}

// IngestConfig controls how inbound readings are validated and normalized
type IngestConfig struct {
	StorageUnit    string   `json:"storage_unit"`
	InputUnit      string   `json:"input_unit"`
	RequiredFields []string `json:"required_fields"`
}

// QueryConfig bounds the cost of read queries
type QueryConfig struct {
	HistoryMaxHours     int `json:"history_max_hours"`
	HistoryDefaultLimit int `json:"history_default_limit"`
	HistoryMaxLimit     int `json:"history_max_limit"`
	ExportMaxDays       int `json:"export_max_days"`
}

// RetentionConfig holds the rolling retention horizon
type RetentionConfig struct {
	Days          int           `json:"days"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// AuthConfig holds the shared ingestion secret. Empty means open ingestion.
type AuthConfig struct {
	APIKey string `json:"-"`
}

// RateLimitConfig holds per-client ingestion limits. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout, stderr, or file path
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// SerialConfig holds the serial gateway port settings
type SerialConfig struct {
	Port        string        `json:"port"`
	Baud        int           `json:"baud"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// IngestorConfig holds configuration for the gateway bridge service
type IngestorConfig struct {
	Server        ServerConfig  `json:"server"`
	Source        string        `json:"source"` // mqtt or serial
	MQTT          MQTTConfig    `json:"mqtt"`
	Serial        SerialConfig  `json:"serial"`
	Logging       LoggingConfig `json:"logging"`
	ApiServiceURL string        `json:"api_service_url"`
	APIKey        string        `json:"-"`
	QueueSize     int           `json:"queue_size"`
}

// env collects parse failures so Load can report all of them at once
type env struct {
	errs []error
}

// Load loads configuration for the API service from environment variables with fallback defaults
func Load() (*Config, error) {
	// A missing .env file is fine; variables may be set directly
	_ = godotenv.Load()

	e := &env{}
	config := &Config{
		Server: ServerConfig{
			Port:         e.getEnv("PORT", "5001"),
			ReadTimeout:  e.getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: e.getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  e.getDuration("IDLE_TIMEOUT", 120*time.Second),
			StaticDir:    e.getEnv("STATIC_DIR", "./static"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(e.getEnv("DB_DRIVER", "sqlite")),
			Path:     e.getEnv("DATABASE_PATH", "./data/lora_sensors.db"),
			Host:     e.getEnv("POSTGRES_HOST", "localhost"),
			Port:     e.getInt("POSTGRES_PORT", 5432),
			User:     e.getEnv("POSTGRES_USER", ""),
			Password: e.getEnv("POSTGRES_PASSWORD", ""),
			DBName:   e.getEnv("POSTGRES_DB", "lora_sensors"),
			SSLMode:  e.getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: e.getInt("DB_MAX_CONNS", 10),
		},
		Storage: StorageConfig{
			ConfigDir: e.getEnv("CONFIG_PATH", "./config"),
		},
		Ingest: IngestConfig{
			StorageUnit:    e.getEnv("STORAGE_UNIT", "C"),
			InputUnit:      e.getEnv("INPUT_UNIT", "F"),
			RequiredFields: e.getFieldList("REQUIRED_FIELDS", []string{"temperature", "humidity", "pressure"}),
		},
		Query: QueryConfig{
			HistoryMaxHours:     e.getInt("HISTORY_MAX_HOURS", 8760),
			HistoryDefaultLimit: e.getInt("HISTORY_DEFAULT_LIMIT", 1000),
			HistoryMaxLimit:     e.getInt("HISTORY_MAX_LIMIT", 10000),
			ExportMaxDays:       e.getInt("EXPORT_MAX_DAYS", 3650),
		},
		Retention: RetentionConfig{
			Days:          e.getInt("DATA_RETENTION_DAYS", 90),
			SweepInterval: e.getDuration("RETENTION_SWEEP_INTERVAL", 24*time.Hour),
		},
		Auth: AuthConfig{
			APIKey: e.getEnv("API_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			RPS:   e.getFloat("RATE_LIMIT_RPS", 0),
			Burst: e.getInt("RATE_LIMIT_BURST", 20),
		},
		Logging: e.loggingConfig(),
		CORS: CORSConfig{
			AllowedOrigins:   e.getStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:   e.getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
			AllowedHeaders:   e.getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-API-Key", "X-Request-ID"}),
			ExposedHeaders:   e.getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length", "Content-Disposition", "X-Request-ID"}),
			AllowCredentials: e.getBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           e.getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
		Debug: e.getBool("DEBUG", false),
	}

	if config.Debug {
		config.Logging.Level = "debug"
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadIngestorConfig loads configuration for the gateway bridge service
func LoadIngestorConfig() (*IngestorConfig, error) {
	_ = godotenv.Load()

	e := &env{}
	config := &IngestorConfig{
		Server: ServerConfig{
			Port:         e.getEnv("INGESTOR_PORT", "9003"),
			ReadTimeout:  e.getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: e.getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  e.getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Source: strings.ToLower(e.getEnv("INGEST_SOURCE", "mqtt")),
		MQTT: MQTTConfig{
			BrokerHost:  e.getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  e.getInt("BROKER_PORT", 1883),
			BrokerUser:  e.getEnv("BROKER_USER", ""),
			BrokerPass:  e.getEnv("BROKER_PASS", ""),
			UseTLS:      e.getBool("BROKER_TLS", false),
			CACertPath:  e.getEnv("BROKER_CA_FILE", ""),
			Topic:       e.getEnv("MQTT_TOPIC", "lora/+/+"),
			ClientID:    e.getEnv("MQTT_CLIENT_ID", "lsn-ingestor"),
			SharedGroup: e.getEnv("MQTT_SHARED_GROUP", ""),
			KeepAlive:   e.getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: e.getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
		},
		Serial: SerialConfig{
			Port:        e.getEnv("SERIAL_PORT", "/dev/ttyUSB0"),
			Baud:        e.getInt("SERIAL_BAUD", 115200),
			ReadTimeout: e.getDuration("SERIAL_READ_TIMEOUT", 0),
		},
		Logging:       e.loggingConfig(),
		ApiServiceURL: e.getEnv("API_SERVICE_URL", "http://localhost:5001"),
		APIKey:        e.getEnv("API_KEY", ""),
		QueueSize:     e.getInt("FORWARD_QUEUE_SIZE", 1024),
	}

	if e.getBool("DEBUG", false) {
		config.Logging.Level = "debug"
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if config.ApiServiceURL == "" {
		return nil, fmt.Errorf("API_SERVICE_URL is required")
	}
	if config.Source != "mqtt" && config.Source != "serial" {
		return nil, fmt.Errorf("INGEST_SOURCE must be mqtt or serial, got %q", config.Source)
	}
	if config.QueueSize <= 0 {
		return nil, fmt.Errorf("FORWARD_QUEUE_SIZE must be positive")
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.User == "" {
			return fmt.Errorf("POSTGRES_USER is required for the postgres driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("DATA_RETENTION_DAYS must be positive")
	}
	if c.Retention.SweepInterval <= 0 {
		return fmt.Errorf("RETENTION_SWEEP_INTERVAL must be positive")
	}
	if c.Query.HistoryMaxHours <= 0 || c.Query.HistoryMaxLimit <= 0 || c.Query.ExportMaxDays <= 0 {
		return fmt.Errorf("query bounds must be positive")
	}
	if c.Query.HistoryDefaultLimit <= 0 || c.Query.HistoryDefaultLimit > c.Query.HistoryMaxLimit {
		return fmt.Errorf("HISTORY_DEFAULT_LIMIT must be between 1 and HISTORY_MAX_LIMIT")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}
	for _, f := range c.Ingest.RequiredFields {
		switch f {
		case "temperature", "humidity", "pressure", "battery_voltage", "rssi", "snr":
		default:
			return fmt.Errorf("REQUIRED_FIELDS: unknown measurement %q", f)
		}
	}
	return nil
}

// GetDatabaseDSN returns the connection string for the configured driver
func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
	}
	return c.Database.Path
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *IngestorConfig) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

func (e *env) loggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:        e.getEnv("LOG_LEVEL", "info"),
		Format:       e.getEnv("LOG_FORMAT", "text"),
		Output:       e.getEnv("LOG_OUTPUT", "stdout"),
		EnableCaller: e.getBool("LOG_ENABLE_CALLER", false),
	}
}

// Helper functions for environment variable parsing

func (e *env) getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (e *env) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return intValue
}

func (e *env) getFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return f
}

func (e *env) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	e.errs = append(e.errs, fmt.Errorf("invalid %s: %q (expected true/false or 1/0)", key, value))
	return defaultValue
}

func (e *env) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return duration
}

func (e *env) getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// getFieldList is getStringSlice where "none" means an explicitly empty list
func (e *env) getFieldList(key string, defaultValue []string) []string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "none") {
		return []string{}
	}
	fields := e.getStringSlice(key, defaultValue)
	for i := range fields {
		fields[i] = strings.ToLower(fields[i])
	}
	return fields
}
