// Package store holds the Store contract shared by the ingest, realtime and
// timetable-building stages, and its SQLite, Postgres and in-memory
// implementations.
package store

import (
	"context"
	"fmt"

	"github.com/nationalrail/journeycore/model"
)

// FeedWriter receives a full static feed inside a Store.ReloadStatic
// transaction. As stop_events tends to be very large, BeginStopEvents and
// EndStopEvents bracket the batch so an implementation can defer index
// maintenance until the whole table has loaded.
type FeedWriter interface {
	WriteAgency(model.Agency) error
	WriteStop(model.Stop) error
	WriteRoute(model.Route) error

	BeginTrips() error
	WriteTrip(model.Trip) error
	EndTrips() error

	WriteCalendar(model.Calendar) error
	WriteCalendarDate(model.CalendarDate) error

	BeginStopEvents() error
	WriteStopEvent(model.StopEvent) error
	EndStopEvents() error

	WriteTransferTime(model.TransferTime) error
}

// Store is the persistence contract used by every other package. Two
// production implementations exist (SQLiteStore, PostgresStore) plus
// MemoryStore for unit tests.
type Store interface {
	// ListParentStations returns, for every stop's numeric id, the numeric
	// id of its parent station (itself if it has none).
	ListParentStations() (map[int64]int64, error)

	// ScanStopEvents calls fn with successive pages of up to pageSize
	// stop events, ordered by event id (Invariant 1). fn must not retain
	// the slice past the call.
	ScanStopEvents(pageSize int, fn func([]model.StopEvent) error) error

	CountStopEvents() (int64, error)

	ListTransferTimes() ([]model.TransferTime, error)

	StopEventsByTrip(tripID int64) ([]model.StopEvent, error)
	StopEventsByStop(stopID string) ([]model.StopEvent, error)

	// UpdateStopEventDelayByStop and UpdateStopEventDelayBySequence apply a
	// realtime delay overlay to one stop event: by stop id first, falling
	// back to stop_sequence when the feed omits stop_id (the merger decides
	// which to call; these are the two underlying single-row writes).
	UpdateStopEventDelayByStop(stopID string, tripID int64, arrival, departure *int32) error
	UpdateStopEventDelayBySequence(seq uint32, tripID int64, arrival, departure *int32) error

	UpdateTripDelay(tripID int64, delay *int32) error

	// Transact runs fn with a Store bound to a single transaction,
	// committing on success and rolling back when fn returns an error. Used by
	// the realtime merger to apply one tick's delay writes atomically.
	Transact(ctx context.Context, fn func(Store) error) error

	// ReloadStatic truncates and reloads every static table inside one
	// transaction, rolling back on any error from fn.
	ReloadStatic(ctx context.Context, fn func(FeedWriter) error) error

	// AssignEventIDs (re)populates the dense event_id column in
	// (trip_id asc, stop_sequence asc) order. Run once after ReloadStatic
	// (Invariant 1).
	AssignEventIDs() error

	Close() error
}

// ErrNotFound is returned by the keyed delay updates (UpdateStopEventDelay*,
// UpdateTripDelay) when no row matches. StopEventsByTrip and
// StopEventsByStop report no match as an empty result instead.
var ErrNotFound = fmt.Errorf("store: not found")
