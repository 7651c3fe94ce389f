package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"bluehood/internal/domain"
)

// SQLiteStore implements domain.Store on a single SQLite file.
//
// Concurrency: WAL mode allows readers to proceed while the scan loop
// writes; database/sql serializes statements on the shared handle, which
// is coarse but sufficient at one write burst per scan interval.
type SQLiteStore struct {
	db           *sql.DB
	activeWindow time.Duration
	now          func() time.Time // test seam for FilterActive
}

// New opens (or creates) the store file at dbPath and runs the schema
// migration. activeWindow defines the recency cutoff for FilterActive.
func New(dbPath string, activeWindow time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &SQLiteStore{db: db, activeWindow: activeWindow, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS devices (
			address         TEXT PRIMARY KEY,
			advertised_name TEXT NOT NULL DEFAULT '',
			friendly_name   TEXT NOT NULL DEFAULT '',
			vendor          TEXT NOT NULL DEFAULT '',
			ignored         INTEGER NOT NULL DEFAULT 0,
			watched         INTEGER NOT NULL DEFAULT 0,
			first_seen      TEXT NOT NULL,
			last_seen       TEXT NOT NULL,
			last_rssi       INTEGER NOT NULL DEFAULT 0,
			total_sightings INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS sightings (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			address   TEXT NOT NULL REFERENCES devices(address),
			timestamp TEXT NOT NULL,
			rssi      INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_sightings_address_time ON sightings(address, timestamp);
		CREATE INDEX IF NOT EXISTS idx_sightings_timestamp ON sightings(timestamp);
	`)
	return err
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// unavailable wraps driver failures as the transient storage sentinel so
// the scan loop can skip the cycle instead of crashing.
func unavailable(op string, err error) error {
	return domain.NewDomainError(op, domain.ErrStorageUnavailable, err.Error())
}

// timeLayout is RFC 3339 with a fixed nine-digit fraction. RFC3339Nano
// trims trailing zeros, and the resulting mixed-width strings do not
// compare chronologically ("…:00Z" sorts after "…:00.5Z"), which would
// break the >=/< comparisons in ListDevices, GetSightings and
// PruneSightings at sub-second boundaries.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func (s *SQLiteStore) UpsertDevice(ctx context.Context, ev domain.DiscoveryEvent, vendor string) (domain.Device, error) {
	const op = "Store.UpsertDevice"
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (address, advertised_name, vendor, first_seen, last_seen, last_rssi, total_sightings)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			last_seen       = excluded.last_seen,
			last_rssi       = excluded.last_rssi,
			advertised_name = CASE WHEN devices.advertised_name = '' THEN excluded.advertised_name ELSE devices.advertised_name END,
			vendor          = CASE WHEN devices.vendor = '' THEN excluded.vendor ELSE devices.vendor END,
			total_sightings = devices.total_sightings + 1`,
		ev.Address, ev.Name, vendor, fmtTime(ts), fmtTime(ts), ev.RSSI,
	)
	if err != nil {
		return domain.Device{}, unavailable(op, err)
	}
	return s.GetDevice(ctx, ev.Address)
}

func (s *SQLiteStore) RecordSighting(ctx context.Context, address string, ts time.Time, rssi int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sightings (address, timestamp, rssi) VALUES (?, ?, ?)",
		address, fmtTime(ts), rssi,
	)
	if err != nil {
		return unavailable("Store.RecordSighting", err)
	}
	return nil
}

const deviceColumns = `address, advertised_name, friendly_name, vendor, ignored, watched,
	first_seen, last_seen, last_rssi, total_sightings`

func (s *SQLiteStore) GetDevice(ctx context.Context, address string) (domain.Device, error) {
	const op = "Store.GetDevice"
	row := s.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE address = ?", address)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Device{}, domain.NewDomainError(op, domain.ErrUnknownDevice, address)
	}
	if err != nil {
		return domain.Device{}, unavailable(op, err)
	}
	return d, nil
}

func (s *SQLiteStore) ListDevices(ctx context.Context, filter domain.DeviceFilter) ([]domain.Device, error) {
	const op = "Store.ListDevices"
	query := "SELECT " + deviceColumns + " FROM devices"
	var args []any
	if filter == domain.FilterActive {
		query += " WHERE ignored = 0 AND last_seen >= ?"
		args = append(args, fmtTime(s.now().Add(-s.activeWindow)))
	}
	query += " ORDER BY last_seen DESC, address"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return devices, nil
}

func (s *SQLiteStore) GetSightings(ctx context.Context, address string, since time.Time) ([]domain.Sighting, error) {
	const op = "Store.GetSightings"
	query := "SELECT id, address, timestamp, rssi FROM sightings WHERE address = ?"
	args := []any{address}
	if !since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, fmtTime(since))
	}
	query += " ORDER BY timestamp, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var sightings []domain.Sighting
	for rows.Next() {
		var sg domain.Sighting
		var ts string
		if err := rows.Scan(&sg.ID, &sg.Address, &ts, &sg.RSSI); err != nil {
			return nil, unavailable(op, err)
		}
		sg.Timestamp = parseTime(ts)
		sightings = append(sightings, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return sightings, nil
}

func (s *SQLiteStore) SetFriendlyName(ctx context.Context, address, name string) error {
	return s.updateDevice(ctx, "Store.SetFriendlyName",
		"UPDATE devices SET friendly_name = ? WHERE address = ?", name, address)
}

func (s *SQLiteStore) SetIgnored(ctx context.Context, address string, ignored bool) error {
	return s.updateDevice(ctx, "Store.SetIgnored",
		"UPDATE devices SET ignored = ? WHERE address = ?", boolToInt(ignored), address)
}

func (s *SQLiteStore) SetWatched(ctx context.Context, address string, watched bool) error {
	return s.updateDevice(ctx, "Store.SetWatched",
		"UPDATE devices SET watched = ? WHERE address = ?", boolToInt(watched), address)
}

func (s *SQLiteStore) updateDevice(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(op, err)
	}
	if n == 0 {
		addr, _ := args[len(args)-1].(string)
		return domain.NewDomainError(op, domain.ErrUnknownDevice, addr)
	}
	return nil
}

// PruneSightings removes rows older than the cutoff. The newest sighting
// of each device (highest id, given insertion order equals observation
// order) is always kept so last_seen stays derivable from the log.
func (s *SQLiteStore) PruneSightings(ctx context.Context, olderThan time.Time) (int64, error) {
	const op = "Store.PruneSightings"
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sightings
		WHERE timestamp < ?
		  AND id NOT IN (SELECT MAX(id) FROM sightings GROUP BY address)`,
		fmtTime(olderThan),
	)
	if err != nil {
		return 0, unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(op, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (domain.Device, error) {
	var d domain.Device
	var ignored, watched int
	var firstSeen, lastSeen string
	err := row.Scan(&d.Address, &d.AdvertisedName, &d.FriendlyName, &d.Vendor,
		&ignored, &watched, &firstSeen, &lastSeen, &d.LastRSSI, &d.TotalSightings)
	if err != nil {
		return domain.Device{}, err
	}
	d.Ignored = ignored != 0
	d.Watched = watched != 0
	d.FirstSeen = parseTime(firstSeen)
	d.LastSeen = parseTime(lastSeen)
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
