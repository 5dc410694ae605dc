package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

// Repository provides database access for the central system handlers and
// the message journal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// =========================================================================
// CHARGE POINTS
// =========================================================================

const chargePointColumns = `id, vendor, model, serial_number, charge_box_serial, firmware_version, iccid, imsi,
	meter_type, meter_serial_number, description, registration_status, firmware_status, diagnostics_status,
	last_boot, last_heartbeat, created, modified`

// UpsertChargePointParams holds the identity a station reports at boot.
type UpsertChargePointParams struct {
	ID                 string
	Vendor             string
	Model              string
	SerialNumber       string
	ChargeBoxSerial    string
	FirmwareVersion    string
	Iccid              string
	Imsi               string
	MeterType          string
	MeterSerialNumber  string
	RegistrationStatus string
	BootTime           time.Time
}

// UpsertChargePoint records a BootNotification. Optional fields the station
// omits keep their previous value.
func (r *Repository) UpsertChargePoint(ctx context.Context, p UpsertChargePointParams) (*ChargePoint, error) {
	slog.Info(fmt.Sprintf("%s - UpsertChargePoint id=%s vendor=%s model=%s", repoLogPrefix, p.ID, p.Vendor, p.Model))

	row := r.pool.QueryRow(ctx,
		`INSERT INTO charge_points (id, vendor, model, serial_number, charge_box_serial, firmware_version,
		                            iccid, imsi, meter_type, meter_serial_number, registration_status, last_boot, modified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   vendor = EXCLUDED.vendor,
		   model = EXCLUDED.model,
		   serial_number = COALESCE(EXCLUDED.serial_number, charge_points.serial_number),
		   charge_box_serial = COALESCE(EXCLUDED.charge_box_serial, charge_points.charge_box_serial),
		   firmware_version = COALESCE(EXCLUDED.firmware_version, charge_points.firmware_version),
		   iccid = COALESCE(EXCLUDED.iccid, charge_points.iccid),
		   imsi = COALESCE(EXCLUDED.imsi, charge_points.imsi),
		   meter_type = COALESCE(EXCLUDED.meter_type, charge_points.meter_type),
		   meter_serial_number = COALESCE(EXCLUDED.meter_serial_number, charge_points.meter_serial_number),
		   registration_status = EXCLUDED.registration_status,
		   last_boot = EXCLUDED.last_boot,
		   modified = EXCLUDED.modified
		 RETURNING `+chargePointColumns,
		p.ID, p.Vendor, p.Model, nullIfEmpty(p.SerialNumber), nullIfEmpty(p.ChargeBoxSerial),
		nullIfEmpty(p.FirmwareVersion), nullIfEmpty(p.Iccid), nullIfEmpty(p.Imsi), nullIfEmpty(p.MeterType),
		nullIfEmpty(p.MeterSerialNumber), p.RegistrationStatus, p.BootTime.UTC())

	return scanChargePoint(row)
}

// TouchChargePoint records a heartbeat. Stations never seen before are
// inserted.
func (r *Repository) TouchChargePoint(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO charge_points (id, last_heartbeat, modified)
		 VALUES ($1, $2, $2)
		 ON CONFLICT (id) DO UPDATE SET last_heartbeat = EXCLUDED.last_heartbeat, modified = EXCLUDED.modified`,
		id, at.UTC())
	if err != nil {
		return fmt.Errorf("%s - touch charge point %s: %w", repoLogPrefix, id, err)
	}
	return nil
}

// UpdateFirmwareStatus records a FirmwareStatusNotification.
func (r *Repository) UpdateFirmwareStatus(ctx context.Context, id, status string) error {
	return r.updateChargePointColumn(ctx, id, "firmware_status", status)
}

// UpdateDiagnosticsStatus records a DiagnosticsStatusNotification.
func (r *Repository) UpdateDiagnosticsStatus(ctx context.Context, id, status string) error {
	return r.updateChargePointColumn(ctx, id, "diagnostics_status", status)
}

// column is one of a fixed set of names, never user input.
func (r *Repository) updateChargePointColumn(ctx context.Context, id, column, value string) error {
	_, err := r.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO charge_points (id, %[1]s) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET %[1]s = EXCLUDED.%[1]s, modified = NOW()`, column),
		id, value)
	if err != nil {
		return fmt.Errorf("%s - update %s of %s: %w", repoLogPrefix, column, id, err)
	}
	return nil
}

// GetChargePoint finds a charge point by id. Returns nil when not found.
func (r *Repository) GetChargePoint(ctx context.Context, id string) (*ChargePoint, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+chargePointColumns+` FROM charge_points WHERE id = $1`, id)
	return scanChargePoint(row)
}

// ListChargePoints lists every known charge point ordered by id.
func (r *Repository) ListChargePoints(ctx context.Context) ([]ChargePoint, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+chargePointColumns+` FROM charge_points ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s - list charge points: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []ChargePoint
	for rows.Next() {
		cp, err := scanChargePoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	return out, rows.Err()
}

// =========================================================================
// CONNECTORS
// =========================================================================

// UpsertConnectorStatus records a StatusNotification.
func (r *Repository) UpsertConnectorStatus(ctx context.Context, s ConnectorStatus) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO connector_status (charge_point_id, connector_id, status, error_code, info, vendor_id,
		                               vendor_error_code, status_time, modified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (charge_point_id, connector_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   error_code = EXCLUDED.error_code,
		   info = EXCLUDED.info,
		   vendor_id = EXCLUDED.vendor_id,
		   vendor_error_code = EXCLUDED.vendor_error_code,
		   status_time = EXCLUDED.status_time,
		   modified = NOW()`,
		s.ChargePointID, s.ConnectorID, s.Status, s.ErrorCode, s.Info, s.VendorID, s.VendorErrorCode, s.StatusTime)
	if err != nil {
		return fmt.Errorf("%s - upsert connector %s/%d: %w", repoLogPrefix, s.ChargePointID, s.ConnectorID, err)
	}
	return nil
}

// ListConnectorStatus returns the last reported state of each connector.
func (r *Repository) ListConnectorStatus(ctx context.Context, chargePointID string) ([]ConnectorStatus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT charge_point_id, connector_id, status, error_code, info, vendor_id, vendor_error_code, status_time, modified
		 FROM connector_status WHERE charge_point_id = $1 ORDER BY connector_id`, chargePointID)
	if err != nil {
		return nil, fmt.Errorf("%s - list connectors of %s: %w", repoLogPrefix, chargePointID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ConnectorStatus, error) {
		var s ConnectorStatus
		err := row.Scan(&s.ChargePointID, &s.ConnectorID, &s.Status, &s.ErrorCode, &s.Info, &s.VendorID,
			&s.VendorErrorCode, &s.StatusTime, &s.Modified)
		return s, err
	})
}

// =========================================================================
// ID TAGS
// =========================================================================

// GetIDTag finds an authorization list entry. Returns nil when not found.
func (r *Repository) GetIDTag(ctx context.Context, tag string) (*IDTag, error) {
	var t IDTag
	err := r.pool.QueryRow(ctx,
		`SELECT id_tag, status, parent_id_tag, expiry_date FROM id_tags WHERE id_tag = $1`, tag).
		Scan(&t.IDTag, &t.Status, &t.ParentIDTag, &t.ExpiryDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - get id tag: %w", repoLogPrefix, err)
	}
	return &t, nil
}

// UpsertIDTag creates or replaces an authorization list entry.
func (r *Repository) UpsertIDTag(ctx context.Context, t IDTag) error {
	return upsertIDTag(ctx, r.pool, t)
}

// =========================================================================
// TRANSACTIONS
// =========================================================================

// StartTransactionParams holds a StartTransaction request.
type StartTransactionParams struct {
	ChargePointID string
	ConnectorID   int
	IDTag         string
	ReservationID *int
	MeterStart    int
	StartTime     time.Time
}

// StartTransaction opens a transaction and returns the allocated id.
func (r *Repository) StartTransaction(ctx context.Context, p StartTransactionParams) (int, error) {
	var id int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO transactions (charge_point_id, connector_id, id_tag, reservation_id, meter_start, start_time)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		p.ChargePointID, p.ConnectorID, p.IDTag, p.ReservationID, p.MeterStart, p.StartTime.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s - start transaction on %s/%d: %w", repoLogPrefix, p.ChargePointID, p.ConnectorID, err)
	}
	slog.Info(fmt.Sprintf("%s - transaction %d started on %s/%d", repoLogPrefix, id, p.ChargePointID, p.ConnectorID))
	return id, nil
}

// StopTransactionParams holds a StopTransaction request.
type StopTransactionParams struct {
	ChargePointID string
	TransactionID int
	MeterStop     int
	StopTime      time.Time
	Reason        string
	IDTag         string
}

// StopTransaction closes an open transaction of the station. Returns nil
// when no such open transaction exists.
func (r *Repository) StopTransaction(ctx context.Context, p StopTransactionParams) (*Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE transactions SET
		   meter_stop = $3, stop_time = $4, stop_reason = $5, stop_id_tag = $6, modified = NOW()
		 WHERE id = $1 AND charge_point_id = $2 AND stop_time IS NULL
		 RETURNING `+transactionColumns,
		p.TransactionID, p.ChargePointID, p.MeterStop, p.StopTime.UTC(), nullIfEmpty(p.Reason), nullIfEmpty(p.IDTag))
	tx, err := scanTransaction(row)
	if err != nil || tx == nil {
		return tx, err
	}
	slog.Info(fmt.Sprintf("%s - transaction %d stopped on %s", repoLogPrefix, tx.ID, p.ChargePointID))
	return tx, nil
}

// GetTransaction finds a transaction by id. Returns nil when not found.
func (r *Repository) GetTransaction(ctx context.Context, id int) (*Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

const transactionColumns = `id, charge_point_id, connector_id, id_tag, reservation_id, meter_start, start_time,
	meter_stop, stop_time, stop_reason, stop_id_tag`

// =========================================================================
// METER VALUES
// =========================================================================

var meterValueColumns = []string{
	"charge_point_id", "connector_id", "transaction_id", "sampled_at", "value",
	"context", "format", "measurand", "phase", "location", "unit",
}

// InsertMeterValues bulk-loads samples with COPY.
func (r *Repository) InsertMeterValues(ctx context.Context, samples []MeterSample) error {
	if len(samples) == 0 {
		return nil
	}
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{"meter_values"}, meterValueColumns,
		pgx.CopyFromSlice(len(samples), func(i int) ([]any, error) {
			s := samples[i]
			return []any{
				s.ChargePointID, s.ConnectorID, s.TransactionID, s.SampledAt.UTC(), s.Value,
				nullIfEmpty(s.Context), nullIfEmpty(s.Format), nullIfEmpty(s.Measurand),
				nullIfEmpty(s.Phase), nullIfEmpty(s.Location), nullIfEmpty(s.Unit),
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("%s - insert meter values: %w", repoLogPrefix, err)
	}
	slog.Debug(fmt.Sprintf("%s - stored %d meter samples", repoLogPrefix, n))
	return nil
}

// =========================================================================
// MESSAGE JOURNAL
// =========================================================================

// InsertMessage journals one frame. CallResult and CallError rows are linked
// to the most recent Call with the same unique id sent the other way.
func (r *Repository) InsertMessage(ctx context.Context, m MessageRecord) (*MessageRecord, error) {
	var payload any
	if len(m.Payload) > 0 {
		payload = string(m.Payload)
	}
	created := m.Created
	if created.IsZero() {
		created = time.Now()
	}

	out := m
	err := r.pool.QueryRow(ctx,
		`INSERT INTO message_log (charge_point_id, direction, message_type, unique_id, action, payload,
		                          error_code, error_description, call_id, created)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8,
		   CASE WHEN $3::smallint = 2 THEN NULL ELSE (
		     SELECT c.id FROM message_log c
		     WHERE c.charge_point_id = $1 AND c.unique_id = $4 AND c.message_type = 2 AND c.direction = $9
		     ORDER BY c.id DESC LIMIT 1
		   ) END,
		   $10)
		 RETURNING id, call_id, created`,
		m.ChargePointID, m.Direction, m.MessageType, m.UniqueID, nullIfEmpty(m.Action), payload,
		nullIfEmpty(m.ErrorCode), nullIfEmpty(m.ErrorDescription), OppositeDirection(m.Direction), created.UTC()).
		Scan(&out.ID, &out.CallID, &out.Created)
	if err != nil {
		return nil, fmt.Errorf("%s - insert message %s/%s: %w", repoLogPrefix, m.ChargePointID, m.UniqueID, err)
	}
	return &out, nil
}

// ListMessages returns the newest journal entries of a station, newest first.
func (r *Repository) ListMessages(ctx context.Context, chargePointID string, limit int) ([]MessageRecord, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, charge_point_id, direction, message_type, unique_id, COALESCE(action, ''), payload,
		        COALESCE(error_code, ''), COALESCE(error_description, ''), call_id, created
		 FROM message_log WHERE charge_point_id = $1
		 ORDER BY id DESC LIMIT $2`, chargePointID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - list messages of %s: %w", repoLogPrefix, chargePointID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MessageRecord, error) {
		var m MessageRecord
		var payload []byte
		err := row.Scan(&m.ID, &m.ChargePointID, &m.Direction, &m.MessageType, &m.UniqueID, &m.Action, &payload,
			&m.ErrorCode, &m.ErrorDescription, &m.CallID, &m.Created)
		m.Payload = payload
		return m, err
	})
}

// =========================================================================
// SCANNING
// =========================================================================

func scanChargePoint(row pgx.Row) (*ChargePoint, error) {
	var c ChargePoint
	err := row.Scan(
		&c.ID, &c.Vendor, &c.Model, &c.SerialNumber, &c.ChargeBoxSerial, &c.FirmwareVersion, &c.Iccid, &c.Imsi,
		&c.MeterType, &c.MeterSerialNumber, &c.Description, &c.RegistrationStatus, &c.FirmwareStatus,
		&c.DiagnosticsStatus, &c.LastBoot, &c.LastHeartbeat, &c.Created, &c.Modified,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan charge point failed: %w", repoLogPrefix, err)
	}
	return &c, nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.ChargePointID, &t.ConnectorID, &t.IDTag, &t.ReservationID, &t.MeterStart,
		&t.StartTime, &t.MeterStop, &t.StopTime, &t.StopReason, &t.StopIDTag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan transaction failed: %w", repoLogPrefix, err)
	}
	return &t, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
