package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nationalrail/journeycore/model"
)

// SQLiteConfig selects where the database file lives.
type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

// execQuerier is satisfied by both *sql.DB and *sql.Tx, letting SQLiteStore
// methods run unmodified whether called directly or inside Transact.
type execQuerier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// SQLiteStore is the default on-disk Store implementation.
type SQLiteStore struct {
	db   *sql.DB
	conn execQuerier
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agency (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    timezone TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stops (
    id TEXT PRIMARY KEY,
    numeric_id INTEGER NOT NULL,
    code TEXT,
    name TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    location_type INTEGER NOT NULL,
    parent_station TEXT,
    parent_id INTEGER NOT NULL,
    platform_code TEXT,
    zone_id TEXT
);
CREATE INDEX IF NOT EXISTS stops_numeric_id ON stops (numeric_id);
CREATE TABLE IF NOT EXISTS routes (
    id TEXT PRIMARY KEY,
    agency_id TEXT,
    short_name TEXT,
    long_name TEXT NOT NULL,
    type INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS trips (
    id TEXT PRIMARY KEY,
    numeric_id INTEGER NOT NULL,
    route_id TEXT NOT NULL,
    service_id TEXT NOT NULL,
    headsign TEXT,
    direction_id INTEGER,
    delay INTEGER
);
CREATE INDEX IF NOT EXISTS trips_numeric_id ON trips (numeric_id);
CREATE TABLE IF NOT EXISTS calendar (
    service_id TEXT PRIMARY KEY,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    weekday INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS calendar_dates (
    service_id TEXT NOT NULL,
    date TEXT NOT NULL,
    exception_type INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS stop_events (
    event_id INTEGER NOT NULL,
    trip_id TEXT NOT NULL,
    trip_numeric_id INTEGER NOT NULL,
    stop_id TEXT NOT NULL,
    stop_numeric_id INTEGER NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_offset INTEGER NOT NULL,
    departure_offset INTEGER NOT NULL,
    arrival_delay INTEGER,
    departure_delay INTEGER
);
CREATE INDEX IF NOT EXISTS stop_events_trip_id ON stop_events (trip_id);
CREATE INDEX IF NOT EXISTS stop_events_stop_id ON stop_events (stop_id);
CREATE INDEX IF NOT EXISTS stop_events_event_id ON stop_events (event_id);
CREATE TABLE IF NOT EXISTS transfer_times (
    stop_id TEXT PRIMARY KEY,
    stop_numeric_id INTEGER NOT NULL,
    seconds INTEGER NOT NULL
);
`

// NewSQLiteStore opens (creating if absent) the on-disk database, or an
// in-memory one if cfg is omitted, and creates any missing tables. The
// schema carries no version marker.
func NewSQLiteStore(cfg ...SQLiteConfig) (*SQLiteStore, error) {
	onDisk, directory := false, ""
	if len(cfg) > 0 {
		onDisk, directory = cfg[0].OnDisk, cfg[0].Directory
	}

	source := ":memory:"
	if onDisk {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		source = directory + "/journeycore.db"
	}

	db, err := sql.Open("sqlite3", source)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, conn: db}, nil
}

func (s *SQLiteStore) ListParentStations() (map[int64]int64, error) {
	rows, err := s.conn.Query(`SELECT numeric_id, parent_id FROM stops`)
	if err != nil {
		return nil, fmt.Errorf("listing parent stations: %w", err)
	}
	defer rows.Close()

	out := map[int64]int64{}
	for rows.Next() {
		var id, parent int64
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		out[id] = parent
	}
	return out, rows.Err()
}

const stopEventColumns = `event_id, trip_id, trip_numeric_id, stop_id, stop_numeric_id, stop_sequence, arrival_offset, departure_offset, arrival_delay, departure_delay`

func scanStopEvent(rows *sql.Rows) (model.StopEvent, error) {
	var e model.StopEvent
	var arrivalDelay, departureDelay sql.NullInt64
	err := rows.Scan(
		&e.EventID, &e.TripID, &e.TripNumericID, &e.StopID, &e.StopNumericID,
		&e.StopSequence, &e.ArrivalOffset, &e.DepartureOffset, &arrivalDelay, &departureDelay,
	)
	if err != nil {
		return e, err
	}
	if arrivalDelay.Valid {
		v := int32(arrivalDelay.Int64)
		e.ArrivalDelay = &v
	}
	if departureDelay.Valid {
		v := int32(departureDelay.Int64)
		e.DepartureDelay = &v
	}
	return e, nil
}

func (s *SQLiteStore) ScanStopEvents(pageSize int, fn func([]model.StopEvent) error) error {
	if pageSize <= 0 {
		pageSize = 1000000
	}

	offset := 0
	for {
		rows, err := s.conn.Query(
			fmt.Sprintf(`SELECT %s FROM stop_events ORDER BY event_id LIMIT ? OFFSET ?`, stopEventColumns),
			pageSize, offset,
		)
		if err != nil {
			return fmt.Errorf("scanning stop events: %w", err)
		}

		page := make([]model.StopEvent, 0, pageSize)
		for rows.Next() {
			e, err := scanStopEvent(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scanning stop event row: %w", err)
			}
			page = append(page, e)
		}
		rows.Close()

		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		offset += len(page)
		if len(page) < pageSize {
			return nil
		}
	}
}

func (s *SQLiteStore) CountStopEvents() (int64, error) {
	var n int64
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM stop_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting stop events: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListTransferTimes() ([]model.TransferTime, error) {
	rows, err := s.conn.Query(`SELECT stop_id, stop_numeric_id, seconds FROM transfer_times`)
	if err != nil {
		return nil, fmt.Errorf("listing transfer times: %w", err)
	}
	defer rows.Close()

	var out []model.TransferTime
	for rows.Next() {
		var t model.TransferTime
		if err := rows.Scan(&t.StopID, &t.StopNumericID, &t.Seconds); err != nil {
			return nil, fmt.Errorf("scanning transfer time: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) StopEventsByTrip(tripID int64) ([]model.StopEvent, error) {
	rows, err := s.conn.Query(
		fmt.Sprintf(`SELECT %s FROM stop_events WHERE trip_numeric_id = ? ORDER BY stop_sequence`, stopEventColumns),
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stop events by trip: %w", err)
	}
	defer rows.Close()

	var out []model.StopEvent
	for rows.Next() {
		e, err := scanStopEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stop event row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) StopEventsByStop(stopID string) ([]model.StopEvent, error) {
	rows, err := s.conn.Query(
		fmt.Sprintf(`SELECT %s FROM stop_events WHERE stop_id = ?`, stopEventColumns),
		stopID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stop events by stop: %w", err)
	}
	defer rows.Close()

	var out []model.StopEvent
	for rows.Next() {
		e, err := scanStopEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stop event row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateStopEventDelayByStop(stopID string, tripID int64, arrival, departure *int32) error {
	return s.updateStopEventDelay(`trip_numeric_id = ? AND stop_id = ?`, tripID, stopID, arrival, departure)
}

func (s *SQLiteStore) UpdateStopEventDelayBySequence(seq uint32, tripID int64, arrival, departure *int32) error {
	return s.updateStopEventDelay(`trip_numeric_id = ? AND stop_sequence = ?`, tripID, seq, arrival, departure)
}

func (s *SQLiteStore) updateStopEventDelay(where string, tripID int64, key interface{}, arrival, departure *int32) error {
	sets := []string{}
	args := []interface{}{}
	if arrival != nil {
		sets = append(sets, "arrival_delay = ?")
		args = append(args, *arrival)
	}
	if departure != nil {
		sets = append(sets, "departure_delay = ?")
		args = append(args, *departure)
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf(`UPDATE stop_events SET %s WHERE %s`, joinComma(sets), where)
	args = append(args, tripID, key)

	res, err := s.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("updating stop event delay: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func joinComma(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

func (s *SQLiteStore) UpdateTripDelay(tripID int64, delay *int32) error {
	res, err := s.conn.Exec(`UPDATE trips SET delay = ? WHERE numeric_id = ?`, delay, tripID)
	if err != nil {
		return fmt.Errorf("updating trip delay: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Transact(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txStore := &SQLiteStore{db: s.db, conn: tx}
	if err := fn(txStore); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("rolling back after %w: %v", err, rerr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const stopEventChunkSize = 500

func (s *SQLiteStore) ReloadStatic(ctx context.Context, fn func(FeedWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning static reload transaction: %w", err)
	}

	for _, table := range []string{"agency", "stops", "routes", "trips", "calendar", "calendar_dates", "stop_events", "transfer_times"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			tx.Rollback()
			return fmt.Errorf("truncating %s: %w", table, err)
		}
	}

	w := &sqliteFeedWriter{tx: tx, chunk: make([]model.StopEvent, 0, stopEventChunkSize)}
	if err := fn(w); err != nil {
		tx.Rollback()
		return fmt.Errorf("reloading static feed: %w", err)
	}
	if err := w.flush(); err != nil {
		tx.Rollback()
		return fmt.Errorf("flushing stop events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing static reload: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AssignEventIDs() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning event id assignment: %w", err)
	}

	rows, err := tx.Query(`SELECT rowid FROM stop_events ORDER BY trip_id, stop_sequence`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("listing stop event rowids: %w", err)
	}
	var rowids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			tx.Rollback()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowids = append(rowids, id)
	}
	rows.Close()

	stmt, err := tx.Prepare(`UPDATE stop_events SET event_id = ? WHERE rowid = ?`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing event id update: %w", err)
	}
	defer stmt.Close()

	for eventID, rowid := range rowids {
		if _, err := stmt.Exec(eventID, rowid); err != nil {
			tx.Rollback()
			return fmt.Errorf("assigning event id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing event id assignment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteFeedWriter struct {
	tx    *sql.Tx
	chunk []model.StopEvent
}

func (w *sqliteFeedWriter) WriteAgency(a model.Agency) error {
	_, err := w.tx.Exec(`INSERT INTO agency (id, name, url, timezone) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.URL, a.Timezone)
	return err
}

func (w *sqliteFeedWriter) WriteStop(s model.Stop) error {
	_, err := w.tx.Exec(`
INSERT INTO stops (id, numeric_id, code, name, lat, lon, location_type, parent_station, parent_id, platform_code, zone_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.NumericID, s.Code, s.Name, s.Lat, s.Lon, s.LocationType, s.ParentStation, s.ParentID, s.PlatformCode, s.ZoneID)
	return err
}

func (w *sqliteFeedWriter) WriteRoute(r model.Route) error {
	_, err := w.tx.Exec(`INSERT INTO routes (id, agency_id, short_name, long_name, type) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.AgencyID, r.ShortName, r.LongName, r.Type)
	return err
}

func (w *sqliteFeedWriter) BeginTrips() error { return nil }

func (w *sqliteFeedWriter) WriteTrip(t model.Trip) error {
	_, err := w.tx.Exec(`
INSERT INTO trips (id, numeric_id, route_id, service_id, headsign, direction_id, delay)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.NumericID, t.RouteID, t.ServiceID, t.Headsign, t.DirectionID, t.Delay)
	return err
}

func (w *sqliteFeedWriter) EndTrips() error { return nil }

func (w *sqliteFeedWriter) WriteCalendar(c model.Calendar) error {
	_, err := w.tx.Exec(`INSERT INTO calendar (service_id, start_date, end_date, weekday) VALUES (?, ?, ?, ?)`,
		c.ServiceID, c.StartDate, c.EndDate, c.Weekday)
	return err
}

func (w *sqliteFeedWriter) WriteCalendarDate(c model.CalendarDate) error {
	_, err := w.tx.Exec(`INSERT INTO calendar_dates (service_id, date, exception_type) VALUES (?, ?, ?)`,
		c.ServiceID, c.Date, c.ExceptionType)
	return err
}

func (w *sqliteFeedWriter) BeginStopEvents() error {
	w.chunk = w.chunk[:0]
	return nil
}

func (w *sqliteFeedWriter) WriteStopEvent(e model.StopEvent) error {
	w.chunk = append(w.chunk, e)
	if len(w.chunk) >= stopEventChunkSize {
		return w.flush()
	}
	return nil
}

func (w *sqliteFeedWriter) flush() error {
	if len(w.chunk) == 0 {
		return nil
	}

	stmt, err := w.tx.Prepare(`
INSERT INTO stop_events (event_id, trip_id, trip_numeric_id, stop_id, stop_numeric_id, stop_sequence, arrival_offset, departure_offset, arrival_delay, departure_delay)
VALUES (0, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing stop event insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range w.chunk {
		if _, err := stmt.Exec(e.TripID, e.TripNumericID, e.StopID, e.StopNumericID, e.StopSequence,
			e.ArrivalOffset, e.DepartureOffset, e.ArrivalDelay, e.DepartureDelay); err != nil {
			return fmt.Errorf("inserting stop event: %w", err)
		}
	}
	w.chunk = w.chunk[:0]
	return nil
}

func (w *sqliteFeedWriter) EndStopEvents() error {
	return w.flush()
}

func (w *sqliteFeedWriter) WriteTransferTime(t model.TransferTime) error {
	_, err := w.tx.Exec(`INSERT INTO transfer_times (stop_id, stop_numeric_id, seconds) VALUES (?, ?, ?)`,
		t.StopID, t.StopNumericID, t.Seconds)
	return err
}

var _ Store = (*SQLiteStore)(nil)
