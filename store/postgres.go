package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/nationalrail/journeycore/model"
)

// PostgresStore is an alternate Store implementation for deployments that
// want a shared server rather than SQLite's single on-disk file. It
// exercises the same Store contract as SQLiteStore.
type PostgresStore struct {
	db   *sql.DB
	conn pgExecQuerier
}

type pgExecQuerier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS agency (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    timezone TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stops (
    id TEXT PRIMARY KEY,
    numeric_id BIGINT NOT NULL,
    code TEXT,
    name TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    location_type INTEGER NOT NULL,
    parent_station TEXT,
    parent_id BIGINT NOT NULL,
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
    numeric_id BIGINT NOT NULL,
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
    event_id BIGINT NOT NULL,
    trip_id TEXT NOT NULL,
    trip_numeric_id BIGINT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_numeric_id BIGINT NOT NULL,
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
    stop_numeric_id BIGINT NOT NULL,
    seconds INTEGER NOT NULL
);
`

// NewPostgresStore opens connStr (a standard libpq connection string) and
// ensures the schema exists.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &PostgresStore{db: db, conn: db}, nil
}

func (s *PostgresStore) ListParentStations() (map[int64]int64, error) {
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

func (s *PostgresStore) ScanStopEvents(pageSize int, fn func([]model.StopEvent) error) error {
	if pageSize <= 0 {
		pageSize = 1000000
	}

	offset := 0
	for {
		rows, err := s.conn.Query(
			fmt.Sprintf(`SELECT %s FROM stop_events ORDER BY event_id LIMIT $1 OFFSET $2`, stopEventColumns),
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

func (s *PostgresStore) CountStopEvents() (int64, error) {
	var n int64
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM stop_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting stop events: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListTransferTimes() ([]model.TransferTime, error) {
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

func (s *PostgresStore) StopEventsByTrip(tripID int64) ([]model.StopEvent, error) {
	rows, err := s.conn.Query(
		fmt.Sprintf(`SELECT %s FROM stop_events WHERE trip_numeric_id = $1 ORDER BY stop_sequence`, stopEventColumns),
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

func (s *PostgresStore) StopEventsByStop(stopID string) ([]model.StopEvent, error) {
	rows, err := s.conn.Query(
		fmt.Sprintf(`SELECT %s FROM stop_events WHERE stop_id = $1`, stopEventColumns),
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

func (s *PostgresStore) UpdateStopEventDelayByStop(stopID string, tripID int64, arrival, departure *int32) error {
	return s.updateStopEventDelay(`trip_numeric_id = $3 AND stop_id = $4`, tripID, stopID, arrival, departure)
}

func (s *PostgresStore) UpdateStopEventDelayBySequence(seq uint32, tripID int64, arrival, departure *int32) error {
	return s.updateStopEventDelay(`trip_numeric_id = $3 AND stop_sequence = $4`, tripID, seq, arrival, departure)
}

func (s *PostgresStore) updateStopEventDelay(where string, tripID int64, key interface{}, arrival, departure *int32) error {
	query := fmt.Sprintf(`UPDATE stop_events SET arrival_delay = COALESCE($1, arrival_delay), departure_delay = COALESCE($2, departure_delay) WHERE %s`, where)

	res, err := s.conn.Exec(query, arrival, departure, tripID, key)
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

func (s *PostgresStore) UpdateTripDelay(tripID int64, delay *int32) error {
	res, err := s.conn.Exec(`UPDATE trips SET delay = $1 WHERE numeric_id = $2`, delay, tripID)
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

func (s *PostgresStore) Transact(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txStore := &PostgresStore{db: s.db, conn: tx}
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

func (s *PostgresStore) ReloadStatic(ctx context.Context, fn func(FeedWriter) error) error {
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

	w := &postgresFeedWriter{tx: tx, chunk: make([]model.StopEvent, 0, stopEventChunkSize)}
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

// AssignEventIDs assigns dense (trip_id, stop_sequence)-ordered event ids in
// a single set-based update, using Postgres's window functions rather than
// SQLite's rowid-cursor loop.
func (s *PostgresStore) AssignEventIDs() error {
	_, err := s.conn.Exec(`
UPDATE stop_events
SET event_id = ranked.rank - 1
FROM (
    SELECT ctid, ROW_NUMBER() OVER (ORDER BY trip_id, stop_sequence) AS rank
    FROM stop_events
) AS ranked
WHERE stop_events.ctid = ranked.ctid`)
	if err != nil {
		return fmt.Errorf("assigning event ids: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type postgresFeedWriter struct {
	tx    *sql.Tx
	chunk []model.StopEvent
}

func (w *postgresFeedWriter) WriteAgency(a model.Agency) error {
	_, err := w.tx.Exec(`INSERT INTO agency (id, name, url, timezone) VALUES ($1, $2, $3, $4)`,
		a.ID, a.Name, a.URL, a.Timezone)
	return err
}

func (w *postgresFeedWriter) WriteStop(s model.Stop) error {
	_, err := w.tx.Exec(`
INSERT INTO stops (id, numeric_id, code, name, lat, lon, location_type, parent_station, parent_id, platform_code, zone_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.NumericID, s.Code, s.Name, s.Lat, s.Lon, s.LocationType, s.ParentStation, s.ParentID, s.PlatformCode, s.ZoneID)
	return err
}

func (w *postgresFeedWriter) WriteRoute(r model.Route) error {
	_, err := w.tx.Exec(`INSERT INTO routes (id, agency_id, short_name, long_name, type) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.AgencyID, r.ShortName, r.LongName, r.Type)
	return err
}

func (w *postgresFeedWriter) BeginTrips() error { return nil }

func (w *postgresFeedWriter) WriteTrip(t model.Trip) error {
	_, err := w.tx.Exec(`
INSERT INTO trips (id, numeric_id, route_id, service_id, headsign, direction_id, delay)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.NumericID, t.RouteID, t.ServiceID, t.Headsign, t.DirectionID, t.Delay)
	return err
}

func (w *postgresFeedWriter) EndTrips() error { return nil }

func (w *postgresFeedWriter) WriteCalendar(c model.Calendar) error {
	_, err := w.tx.Exec(`INSERT INTO calendar (service_id, start_date, end_date, weekday) VALUES ($1, $2, $3, $4)`,
		c.ServiceID, c.StartDate, c.EndDate, c.Weekday)
	return err
}

func (w *postgresFeedWriter) WriteCalendarDate(c model.CalendarDate) error {
	_, err := w.tx.Exec(`INSERT INTO calendar_dates (service_id, date, exception_type) VALUES ($1, $2, $3)`,
		c.ServiceID, c.Date, c.ExceptionType)
	return err
}

func (w *postgresFeedWriter) BeginStopEvents() error {
	w.chunk = w.chunk[:0]
	return nil
}

func (w *postgresFeedWriter) WriteStopEvent(e model.StopEvent) error {
	w.chunk = append(w.chunk, e)
	if len(w.chunk) >= stopEventChunkSize {
		return w.flush()
	}
	return nil
}

func (w *postgresFeedWriter) flush() error {
	if len(w.chunk) == 0 {
		return nil
	}

	stmt, err := w.tx.Prepare(`
INSERT INTO stop_events (event_id, trip_id, trip_numeric_id, stop_id, stop_numeric_id, stop_sequence, arrival_offset, departure_offset, arrival_delay, departure_delay)
VALUES (0, $1, $2, $3, $4, $5, $6, $7, $8, $9)`)
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

func (w *postgresFeedWriter) EndStopEvents() error {
	return w.flush()
}

func (w *postgresFeedWriter) WriteTransferTime(t model.TransferTime) error {
	_, err := w.tx.Exec(`INSERT INTO transfer_times (stop_id, stop_numeric_id, seconds) VALUES ($1, $2, $3)`,
		t.StopID, t.StopNumericID, t.Seconds)
	return err
}

var _ Store = (*PostgresStore)(nil)
