// Package timetable derives the CSA connection list and the RAPTOR route
// table from a store.Store's stop events, and caches both to disk.
package timetable

import (
	"fmt"

	"github.com/nationalrail/journeycore/csa"
	"github.com/nationalrail/journeycore/model"
	"github.com/nationalrail/journeycore/raptor"
	"github.com/nationalrail/journeycore/store"
)

// ScanPageSize is the page size BuildConnections and BuildRouteTable use
// when scanning the stop_events table.
const ScanPageSize = 4096

// BuildConnections scans every stop event in event-id order and emits one
// csa.Connection per adjacent same-trip pair, stations resolved to their
// parent station id. The connection list returned is sorted and
// de-duplicated (NewConnectionList does both).
func BuildConnections(s store.Store) (*csa.ConnectionList, error) {
	parents, err := s.ListParentStations()
	if err != nil {
		return nil, fmt.Errorf("listing parent stations: %w", err)
	}

	var conns []csa.Connection
	var prev *model.StopEvent

	err = s.ScanStopEvents(ScanPageSize, func(page []model.StopEvent) error {
		for i := range page {
			e := page[i]
			if prev != nil && prev.TripNumericID == e.TripNumericID {
				conns = append(conns, csa.Connection{
					DepStation: parents[prev.StopNumericID],
					ArrStation: parents[e.StopNumericID],
					DepTime:    prev.DepartureOffset,
					ArrTime:    e.ArrivalOffset,
					TripID:     prev.TripNumericID,
				})
			}
			ev := e
			prev = &ev
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning stop events: %w", err)
	}

	return csa.NewConnectionList(conns), nil
}

// tripBuffer accumulates the Locations and Connections of the trip
// currently being scanned, for BuildRouteTable.
type tripBuffer struct {
	tripID    int64
	locations []raptor.Location
	offsets   []struct{ arr, dep int32 }
}

func (b *tripBuffer) reset(e model.StopEvent, parents map[int64]int64) {
	b.tripID = e.TripNumericID
	b.locations = []raptor.Location{{PlatformID: e.StopNumericID, StationID: parents[e.StopNumericID]}}
	b.offsets = []struct{ arr, dep int32 }{{e.ArrivalOffset, e.DepartureOffset}}
}

func (b *tripBuffer) append(e model.StopEvent, parents map[int64]int64) {
	b.locations = append(b.locations, raptor.Location{PlatformID: e.StopNumericID, StationID: parents[e.StopNumericID]})
	b.offsets = append(b.offsets, struct{ arr, dep int32 }{e.ArrivalOffset, e.DepartureOffset})
}

func (b *tripBuffer) patternKey() string {
	key := make([]byte, 0, len(b.locations)*8)
	for _, loc := range b.locations {
		key = fmt.Appendf(key, "%d,", loc.StationID)
	}
	return string(key)
}

func (b *tripBuffer) connections() []raptor.Connection {
	if len(b.locations) < 2 {
		return nil
	}
	out := make([]raptor.Connection, 0, len(b.locations)-1)
	for i := 0; i+1 < len(b.locations); i++ {
		out = append(out, raptor.Connection{
			From:    b.locations[i],
			To:      b.locations[i+1],
			DepTime: b.offsets[i].dep,
			ArrTime: b.offsets[i+1].arr,
			TripID:  b.tripID,
		})
	}
	return out
}

// BuildRouteTable scans every stop event in event-id order, closing a
// per-trip buffer whenever the trip id changes and filing its connections
// under the route matching its ordered parent-station pattern. Routes are
// re-keyed with dense ids after the scan completes.
func BuildRouteTable(s store.Store) (*raptor.RouteTable, error) {
	parents, err := s.ListParentStations()
	if err != nil {
		return nil, fmt.Errorf("listing parent stations: %w", err)
	}

	routeByPattern := map[string]*raptor.Route{}
	var routesInOrder []*raptor.Route

	var buf *tripBuffer
	closeTrip := func() {
		if buf == nil {
			return
		}
		key := buf.patternKey()
		route, ok := routeByPattern[key]
		if !ok {
			route = &raptor.Route{Pattern: buf.locations}
			routeByPattern[key] = route
			routesInOrder = append(routesInOrder, route)
		}
		route.Trips = append(route.Trips, buf.connections())
	}

	err = s.ScanStopEvents(ScanPageSize, func(page []model.StopEvent) error {
		for i := range page {
			e := page[i]
			switch {
			case buf == nil:
				buf = &tripBuffer{}
				buf.reset(e, parents)
			case buf.tripID != e.TripNumericID:
				closeTrip()
				buf.reset(e, parents)
			default:
				buf.append(e, parents)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning stop events: %w", err)
	}
	closeTrip()

	for i, route := range routesInOrder {
		route.ID = int64(i)
	}

	return raptor.NewRouteTable(routesInOrder), nil
}
