package implementation

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
	interfaces "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Repository/Interfaces"
	timestamp "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Timestamp"
)

const readingColumns = `id, node_id, source_timestamp, node_timestamp, stored_timestamp,
	temperature, humidity, pressure, battery_voltage, rssi, snr,
	heat_index, dew_point, collection_cycle, gateway_id, received_at`

const nodeStateColumns = `node_id, last_seen, total_readings, last_temperature, last_humidity,
	last_pressure, last_battery_voltage, last_rssi, last_snr, is_active, location`

// SQLReadingRepository implements the Reading Store over sqlx for sqlite and postgres
type SQLReadingRepository struct {
	db       *sqlx.DB
	required []string
	now      func() time.Time

	// insertMu keeps received_at in id order within this process
	insertMu sync.Mutex
}

// Option configures a SQLReadingRepository
type Option func(*SQLReadingRepository)

// WithRequiredFields sets the measurements every reading must carry
func WithRequiredFields(fields []string) Option {
	return func(r *SQLReadingRepository) {
		r.required = append([]string(nil), fields...)
	}
}

// WithClock replaces time.Now as the source of received_at
func WithClock(now func() time.Time) Option {
	return func(r *SQLReadingRepository) {
		r.now = now
	}
}

func NewSQLReadingRepository(db *sqlx.DB, opts ...Option) *SQLReadingRepository {
	r := &SQLReadingRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ interfaces.ReadingRepository = (*SQLReadingRepository)(nil)

// Insert assigns id and received_at and appends the reading.
// An empty stored_timestamp takes the receive time in canonical form.
func (r *SQLReadingRepository) Insert(ctx context.Context, reading *lsnmodels.Reading) (int64, error) {
	if missing := reading.MissingFields(r.required); len(missing) > 0 {
		return 0, apperrors.NewValidation("Missing required fields", missing...)
	}

	query := `
		INSERT INTO sensor_readings (
			node_id, source_timestamp, node_timestamp, stored_timestamp,
			temperature, humidity, pressure, battery_voltage, rssi, snr,
			heat_index, dew_point, collection_cycle, gateway_id, received_at
		) VALUES (
			:node_id, :source_timestamp, :node_timestamp, :stored_timestamp,
			:temperature, :humidity, :pressure, :battery_voltage, :rssi, :snr,
			:heat_index, :dew_point, :collection_cycle, :gateway_id, :received_at
		) RETURNING id`

	r.insertMu.Lock()
	defer r.insertMu.Unlock()

	row := *reading
	row.ReceivedAt = lsnmodels.NewStoreTime(r.now())
	if row.StoredTimestamp == "" {
		row.StoredTimestamp = row.ReceivedAt.Format(timestamp.Canonical)
	}

	bound, args, err := r.db.BindNamed(query, &row)
	if err != nil {
		return 0, apperrors.Storage(err, "failed to bind reading insert")
	}
	if err := r.db.QueryRowxContext(ctx, bound, args...).Scan(&row.ID); err != nil {
		return 0, apperrors.Storage(err, "failed to insert reading")
	}

	*reading = row
	return row.ID, nil
}

// UpsertNodeState creates the node row or bumps its counter and overwrites
// every last-known value in one statement. location is never touched.
func (r *SQLReadingRepository) UpsertNodeState(ctx context.Context, state lsnmodels.NodeState) error {
	if strings.TrimSpace(state.NodeID) == "" {
		return apperrors.NewValidation("Missing required fields", "node_id")
	}

	query := `
		INSERT INTO node_status (
			node_id, last_seen, total_readings, last_temperature, last_humidity,
			last_pressure, last_battery_voltage, last_rssi, last_snr, is_active
		) VALUES (
			:node_id, :last_seen, 1, :last_temperature, :last_humidity,
			:last_pressure, :last_battery_voltage, :last_rssi, :last_snr, 1
		)
		ON CONFLICT (node_id) DO UPDATE SET
			last_seen = excluded.last_seen,
			total_readings = node_status.total_readings + 1,
			last_temperature = excluded.last_temperature,
			last_humidity = excluded.last_humidity,
			last_pressure = excluded.last_pressure,
			last_battery_voltage = excluded.last_battery_voltage,
			last_rssi = excluded.last_rssi,
			last_snr = excluded.last_snr,
			is_active = 1`

	if _, err := r.db.NamedExecContext(ctx, query, state); err != nil {
		return apperrors.Storage(err, "failed to upsert node state")
	}
	return nil
}

// LatestPerNode returns each node's row with the greatest stored_timestamp,
// ties broken by id, newest first
func (r *SQLReadingRepository) LatestPerNode(ctx context.Context) ([]lsnmodels.Reading, error) {
	query := `
		SELECT ` + prefixed("r", readingColumns) + `
		FROM sensor_readings r
		WHERE r.id = (
			SELECT r2.id FROM sensor_readings r2
			WHERE r2.node_id = r.node_id
			ORDER BY r2.stored_timestamp DESC, r2.id DESC
			LIMIT 1
		)
		ORDER BY r.stored_timestamp DESC, r.id DESC`

	readings := []lsnmodels.Reading{}
	if err := r.db.SelectContext(ctx, &readings, query); err != nil {
		return nil, apperrors.Storage(err, "failed to query latest readings")
	}
	return readings, nil
}

// History returns readings received since q.Since, newest first
func (r *SQLReadingRepository) History(ctx context.Context, q interfaces.HistoryQuery) ([]lsnmodels.Reading, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + readingColumns + ` FROM sensor_readings WHERE received_at >= ?`)
	args := []interface{}{timestamp.FormatStore(q.Since)}

	if q.NodeID != "" {
		sb.WriteString(` AND node_id = ?`)
		args = append(args, q.NodeID)
	}
	sb.WriteString(` ORDER BY received_at DESC, id DESC`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	readings := []lsnmodels.Reading{}
	if err := r.db.SelectContext(ctx, &readings, r.db.Rebind(sb.String()), args...); err != nil {
		return nil, apperrors.Storage(err, "failed to query reading history")
	}
	return readings, nil
}

// ExportSince returns every reading received since the cutoff, newest first
func (r *SQLReadingRepository) ExportSince(ctx context.Context, since time.Time) ([]lsnmodels.Reading, error) {
	return r.History(ctx, interfaces.HistoryQuery{Since: since})
}

func (r *SQLReadingRepository) ListNodeStates(ctx context.Context) ([]lsnmodels.NodeState, error) {
	query := `SELECT ` + nodeStateColumns + ` FROM node_status ORDER BY last_seen DESC, node_id`

	states := []lsnmodels.NodeState{}
	if err := r.db.SelectContext(ctx, &states, query); err != nil {
		return nil, apperrors.Storage(err, "failed to list node states")
	}
	return states, nil
}

func (r *SQLReadingRepository) GetNodeState(ctx context.Context, nodeID string) (*lsnmodels.NodeState, error) {
	query := r.db.Rebind(`SELECT ` + nodeStateColumns + ` FROM node_status WHERE node_id = ?`)

	var state lsnmodels.NodeState
	if err := r.db.GetContext(ctx, &state, query, nodeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("Node not found")
		}
		return nil, apperrors.Storage(err, "failed to get node state")
	}
	return &state, nil
}

func (r *SQLReadingRepository) CountReadings(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sensor_readings`); err != nil {
		return 0, apperrors.Storage(err, "failed to count readings")
	}
	return count, nil
}

// CountActiveNodes counts distinct nodes with a reading received since the cutoff
func (r *SQLReadingRepository) CountActiveNodes(ctx context.Context, since time.Time) (int64, error) {
	query := r.db.Rebind(`SELECT COUNT(DISTINCT node_id) FROM sensor_readings WHERE received_at >= ?`)

	var count int64
	if err := r.db.GetContext(ctx, &count, query, timestamp.FormatStore(since)); err != nil {
		return 0, apperrors.Storage(err, "failed to count active nodes")
	}
	return count, nil
}

// AverageRSSI is 0 when no reading with an RSSI arrived since the cutoff
func (r *SQLReadingRepository) AverageRSSI(ctx context.Context, since time.Time) (float64, error) {
	query := r.db.Rebind(`SELECT AVG(rssi) FROM sensor_readings WHERE received_at >= ?`)

	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, query, timestamp.FormatStore(since)); err != nil {
		return 0, apperrors.Storage(err, "failed to average rssi")
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// LastReceivedAt is nil for an empty store
func (r *SQLReadingRepository) LastReceivedAt(ctx context.Context) (*time.Time, error) {
	var last sql.NullString
	if err := r.db.GetContext(ctx, &last, `SELECT MAX(received_at) FROM sensor_readings`); err != nil {
		return nil, apperrors.Storage(err, "failed to query last update")
	}
	if !last.Valid {
		return nil, nil
	}
	t, err := timestamp.ParseStore(last.String)
	if err != nil {
		return nil, apperrors.Storage(err, "malformed received_at")
	}
	return &t, nil
}

// DeleteOlderThan removes readings received before the cutoff; node_status is untouched
func (r *SQLReadingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind(`DELETE FROM sensor_readings WHERE received_at < ?`)

	result, err := r.db.ExecContext(ctx, query, timestamp.FormatStore(cutoff))
	if err != nil {
		return 0, apperrors.Storage(err, "failed to delete old readings")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Storage(err, "failed to check rows affected")
	}
	return n, nil
}

func (r *SQLReadingRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return apperrors.Storage(errors.New("database connection is nil"), "ping failed")
	}
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return apperrors.Storage(err, "database query failed")
	}
	return nil
}

// prefixed qualifies a column list with a table alias
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
