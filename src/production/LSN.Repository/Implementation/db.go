package implementation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers as "sqlite"; older sqlx releases only know "sqlite3"
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// OpenSQLite opens (creating if needed) the on-disk store with one connection.
// A single connection serializes writers so every statement is its own unit.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenPostgres connects to a PostgreSQL server and ensures the schema
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates tables and indexes if they don't exist
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	idColumn, numeric := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL"
	if db.DriverName() == DriverPostgres {
		idColumn, numeric = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION"
	}

	createReadingsTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS sensor_readings (
			id               %[1]s,
			node_id          TEXT NOT NULL,
			source_timestamp TEXT,
			node_timestamp   TEXT,
			stored_timestamp TEXT NOT NULL,
			temperature      %[2]s,
			humidity         %[2]s,
			pressure         %[2]s,
			battery_voltage  %[2]s,
			rssi             %[2]s,
			snr              %[2]s,
			heat_index       %[2]s,
			dew_point        %[2]s,
			collection_cycle BIGINT,
			gateway_id       TEXT,
			received_at      TEXT NOT NULL
		)`, idColumn, numeric)

	createNodeStatusTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS node_status (
			node_id              TEXT PRIMARY KEY,
			last_seen            TEXT NOT NULL,
			total_readings       BIGINT NOT NULL DEFAULT 0,
			last_temperature     %[1]s,
			last_humidity        %[1]s,
			last_pressure        %[1]s,
			last_battery_voltage %[1]s,
			last_rssi            %[1]s,
			last_snr             %[1]s,
			is_active            INTEGER NOT NULL DEFAULT 1,
			location             TEXT
		)`, numeric)

	queries := []string{
		createReadingsTable,
		createNodeStatusTable,
		`CREATE INDEX IF NOT EXISTS idx_readings_node_stored ON sensor_readings (node_id, stored_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_received_at ON sensor_readings (received_at)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_stored ON sensor_readings (stored_timestamp)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}
