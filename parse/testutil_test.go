package parse

import (
	"github.com/nationalrail/journeycore/model"
)

// captureWriter records every row passed to it, for assertions in table
// tests that don't need a full store.Store round-trip.
type captureWriter struct {
	agencies  []model.Agency
	stops     []model.Stop
	routes    []model.Route
	trips     []model.Trip
	calendars []model.Calendar
	calDates  []model.CalendarDate
	events    []model.StopEvent
	transfers []model.TransferTime
}

func (w *captureWriter) WriteAgency(a model.Agency) error {
	w.agencies = append(w.agencies, a)
	return nil
}

func (w *captureWriter) WriteStop(s model.Stop) error {
	w.stops = append(w.stops, s)
	return nil
}

func (w *captureWriter) WriteRoute(r model.Route) error {
	w.routes = append(w.routes, r)
	return nil
}

func (w *captureWriter) BeginTrips() error { return nil }

func (w *captureWriter) WriteTrip(t model.Trip) error {
	w.trips = append(w.trips, t)
	return nil
}

func (w *captureWriter) EndTrips() error { return nil }

func (w *captureWriter) WriteCalendar(c model.Calendar) error {
	w.calendars = append(w.calendars, c)
	return nil
}

func (w *captureWriter) WriteCalendarDate(c model.CalendarDate) error {
	w.calDates = append(w.calDates, c)
	return nil
}

func (w *captureWriter) BeginStopEvents() error { return nil }

func (w *captureWriter) WriteStopEvent(e model.StopEvent) error {
	w.events = append(w.events, e)
	return nil
}

func (w *captureWriter) EndStopEvents() error { return nil }

func (w *captureWriter) WriteTransferTime(t model.TransferTime) error {
	w.transfers = append(w.transfers, t)
	return nil
}
