package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nationalrail/journeycore/model"
)

// MemoryStore is an in-process Store used by tests; it keeps every table as
// a plain map/slice and applies no indexing beyond what the interface needs.
type MemoryStore struct {
	mu sync.Mutex

	agencies  []model.Agency
	stops     []model.Stop
	routes    []model.Route
	trips     map[string]model.Trip
	calendars []model.Calendar
	calDates  []model.CalendarDate
	events    []model.StopEvent
	transfers []model.TransferTime
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: map[string]model.Trip{}}
}

func (s *MemoryStore) ListParentStations() (map[int64]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[int64]int64{}
	for _, stop := range s.stops {
		out[stop.NumericID] = stop.ParentID
	}
	return out, nil
}

func (s *MemoryStore) ScanStopEvents(pageSize int, fn func([]model.StopEvent) error) error {
	s.mu.Lock()
	events := make([]model.StopEvent, len(s.events))
	copy(events, s.events)
	s.mu.Unlock()

	if pageSize <= 0 {
		pageSize = len(events)
		if pageSize == 0 {
			pageSize = 1
		}
	}

	for i := 0; i < len(events); i += pageSize {
		end := i + pageSize
		if end > len(events) {
			end = len(events)
		}
		if err := fn(events[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) CountStopEvents() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.events)), nil
}

func (s *MemoryStore) ListTransferTimes() ([]model.TransferTime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TransferTime, len(s.transfers))
	copy(out, s.transfers)
	return out, nil
}

func (s *MemoryStore) StopEventsByTrip(tripID int64) ([]model.StopEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StopEvent
	for _, e := range s.events {
		if e.TripNumericID == tripID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StopSequence < out[j].StopSequence })
	return out, nil
}

func (s *MemoryStore) StopEventsByStop(stopID string) ([]model.StopEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StopEvent
	for _, e := range s.events {
		if e.StopID == stopID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateStopEventDelayByStop(stopID string, tripID int64, arrival, departure *int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		e := &s.events[i]
		if e.TripNumericID == tripID && e.StopID == stopID {
			applyDelay(e, arrival, departure)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) UpdateStopEventDelayBySequence(seq uint32, tripID int64, arrival, departure *int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		e := &s.events[i]
		if e.TripNumericID == tripID && e.StopSequence == seq {
			applyDelay(e, arrival, departure)
			return nil
		}
	}
	return ErrNotFound
}

func applyDelay(e *model.StopEvent, arrival, departure *int32) {
	if arrival != nil {
		e.ArrivalDelay = arrival
	}
	if departure != nil {
		e.DepartureDelay = departure
	}
}

func (s *MemoryStore) UpdateTripDelay(tripID int64, delay *int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for id, trip := range s.trips {
		if trip.NumericID == tripID {
			trip.Delay = delay
			s.trips[id] = trip
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// Transact runs fn directly against s without holding s.mu (each method fn
// calls takes the lock itself). Nothing is rolled back on error: whatever fn
// already mutated in place stays applied.
func (s *MemoryStore) Transact(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *MemoryStore) ReloadStatic(ctx context.Context, fn func(FeedWriter) error) error {
	w := &memoryFeedWriter{store: s}
	if err := fn(w); err != nil {
		return fmt.Errorf("reloading static feed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.agencies = w.agencies
	s.stops = w.stops
	s.routes = w.routes
	s.trips = w.trips
	s.calendars = w.calendars
	s.calDates = w.calDates
	s.events = w.events
	s.transfers = w.transfers
	return nil
}

func (s *MemoryStore) AssignEventIDs() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sort.Slice(s.events, func(i, j int) bool {
		a, b := s.events[i], s.events[j]
		if a.TripID != b.TripID {
			return a.TripID < b.TripID
		}
		return a.StopSequence < b.StopSequence
	})
	for i := range s.events {
		s.events[i].EventID = int64(i)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type memoryFeedWriter struct {
	store *MemoryStore

	agencies  []model.Agency
	stops     []model.Stop
	routes    []model.Route
	trips     map[string]model.Trip
	calendars []model.Calendar
	calDates  []model.CalendarDate
	events    []model.StopEvent
	transfers []model.TransferTime
}

func (w *memoryFeedWriter) WriteAgency(a model.Agency) error {
	w.agencies = append(w.agencies, a)
	return nil
}

func (w *memoryFeedWriter) WriteStop(s model.Stop) error {
	w.stops = append(w.stops, s)
	return nil
}

func (w *memoryFeedWriter) WriteRoute(r model.Route) error {
	w.routes = append(w.routes, r)
	return nil
}

func (w *memoryFeedWriter) BeginTrips() error {
	w.trips = map[string]model.Trip{}
	return nil
}

func (w *memoryFeedWriter) WriteTrip(t model.Trip) error {
	w.trips[t.ID] = t
	return nil
}

func (w *memoryFeedWriter) EndTrips() error { return nil }

func (w *memoryFeedWriter) WriteCalendar(c model.Calendar) error {
	w.calendars = append(w.calendars, c)
	return nil
}

func (w *memoryFeedWriter) WriteCalendarDate(c model.CalendarDate) error {
	w.calDates = append(w.calDates, c)
	return nil
}

func (w *memoryFeedWriter) BeginStopEvents() error { return nil }

func (w *memoryFeedWriter) WriteStopEvent(e model.StopEvent) error {
	w.events = append(w.events, e)
	return nil
}

func (w *memoryFeedWriter) EndStopEvents() error { return nil }

func (w *memoryFeedWriter) WriteTransferTime(t model.TransferTime) error {
	w.transfers = append(w.transfers, t)
	return nil
}
