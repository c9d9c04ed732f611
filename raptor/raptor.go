// Package raptor implements the round-based (RAPTOR) earliest-arrival query
// over a route/trip table, generalizing the round-segment and
// marked-stop structuring of go-raptor's SimpleRaptor to this spec's
// single-origin/single-destination search with explicit station transfer
// times and pattern-identified routes.
package raptor

import (
	"fmt"
	"sort"
)

// Location is a (platform, parent station) pair.
type Location struct {
	PlatformID int64
	StationID  int64
}

// Connection is a single scheduled leg between consecutive stops of a
// RaptorRoute's pattern.
type Connection struct {
	From, To Location
	DepTime  int32
	ArrTime  int32
	TripID   int64
}

// Route is a RAPTOR route: trips sharing one ordered stop pattern. Trips
// are kept in the order the builder filed them; Query does not depend on
// that order or on the FIFO property (Invariant 2), since
// findBoardableTrip examines every trip of the route.
type Route struct {
	ID      int64
	Pattern []Location
	Trips   [][]Connection // len(Trips[i]) == len(Pattern)-1
}

// RouteTable indexes a set of Routes for round-based scanning.
type RouteTable struct {
	Routes []*Route

	stationRoutes map[int64][]int64         // station -> route ids serving it, sorted
	stationIndex  map[int64]map[int64]int   // route id -> station -> first pattern index
}

// NewRouteTable builds the lookup indices a Query needs from a set of
// already-built Routes.
func NewRouteTable(routes []*Route) *RouteTable {
	t := &RouteTable{
		Routes:        routes,
		stationRoutes: map[int64][]int64{},
		stationIndex:  map[int64]map[int64]int{},
	}

	for _, r := range routes {
		idxByStation := map[int64]int{}
		for i, loc := range r.Pattern {
			if _, seen := idxByStation[loc.StationID]; !seen {
				idxByStation[loc.StationID] = i
			}
		}
		t.stationIndex[r.ID] = idxByStation

		for station := range idxByStation {
			t.stationRoutes[station] = append(t.stationRoutes[station], r.ID)
		}
	}

	for station, ids := range t.stationRoutes {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		t.stationRoutes[station] = ids
	}

	return t
}

func (t *RouteTable) route(id int64) *Route {
	for _, r := range t.Routes {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Mode classifies how an Arrival was reached.
type Mode int

const (
	ModeOrigin Mode = iota
	ModeTrip
	ModeTransfer
)

// Arrival is the earliest known way to reach a station.
type Arrival struct {
	Time        int32
	Stop        Location
	BoardedFrom Location
	BoardedTime int32
	Mode        Mode
	TripID      int64
}

// TransferRecord notes that boarding the current best trip at a station
// required a platform transfer of Duration seconds from FromPlatform.
type TransferRecord struct {
	Duration     int32
	FromPlatform int64
}

type LegKind int

const (
	LegVehicle LegKind = iota
	LegTransfer
)

// JourneyPart is either a vehicle leg (TripID set) or a transfer leg
// (Duration set).
type JourneyPart struct {
	Kind       LegKind
	From, To   Location
	Departure  int32
	Arrival    int32
	TripID     int64
	Duration   int32
}

type Journey struct {
	Parts   []JourneyPart
	Arrival int32
}

// EngineError is returned for RAPTOR invariant violations: a route id
// missing from the table, or a reconstruction loop.
type EngineError struct {
	Reason string
}

func (e *EngineError) Error() string { return "raptor: " + e.Reason }

// ErrNoJourney is a benign "no path found within K rounds" result.
type ErrNoJourney struct {
	Dep, Arr int64
	T0       int32
	K        int
}

func (e *ErrNoJourney) Error() string {
	return fmt.Sprintf("no journey from %d to %d departing at or after %d within %d rounds", e.Dep, e.Arr, e.T0, e.K)
}

const infinity = int32(1<<31 - 1)

func arrivalTime(m map[int64]Arrival, station int64) int32 {
	if a, ok := m[station]; ok {
		return a.Time
	}
	return infinity
}

// Query runs the round-based earliest-arrival search.
// transferSeconds maps a child stop (platform) id to the transfer duration
// required to change trips at its station.
func Query(table *RouteTable, transferSeconds map[int64]int32, dep, arr int64, t0 int32, k int) (*Journey, error) {
	if dep == arr {
		return &Journey{Arrival: t0}, nil
	}

	tauK := make([]map[int64]Arrival, k+1)
	tauK[0] = map[int64]Arrival{dep: {Time: t0, Stop: Location{PlatformID: dep, StationID: dep}, Mode: ModeOrigin}}
	tauStar := map[int64]Arrival{dep: tauK[0][dep]}
	transfers := map[int64]TransferRecord{}

	marked := map[int64]bool{dep: true}

	for round := 1; round <= k; round++ {
		if len(marked) == 0 {
			break
		}
		tauK[round] = map[int64]Arrival{}
		nextMarked := map[int64]bool{}

		// Step 1: build Q, the earliest-along-each-route marked station.
		type qEntry struct {
			route   int64
			station int64
		}
		q := map[int64]int64{}
		for station := range marked {
			for _, rid := range table.stationRoutes[station] {
				idx := table.stationIndex[rid][station]
				if existing, ok := q[rid]; ok {
					if idx < table.stationIndex[rid][existing] {
						q[rid] = station
					}
				} else {
					q[rid] = station
				}
			}
		}
		marked = map[int64]bool{}

		var entries []qEntry
		for rid, station := range q {
			entries = append(entries, qEntry{rid, station})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].route < entries[j].route })

		// Step 2: scan each route from its earliest marked station.
		for _, e := range entries {
			route := table.route(e.route)
			if route == nil {
				return nil, &EngineError{Reason: fmt.Sprintf("route %d missing from table", e.route)}
			}
			startIdx, ok := table.stationIndex[e.route][e.station]
			if !ok {
				return nil, &EngineError{Reason: fmt.Sprintf("station %d not on route %d", e.station, e.route)}
			}

			boardedTrip := -1
			boardAtIndex := -1
			var boardedFrom Location
			var boardedTime int32

			for i := startIdx; i < len(route.Pattern); i++ {
				stop := route.Pattern[i]

				// (a) Improve-arrival.
				if boardedTrip >= 0 && i > boardAtIndex {
					c := route.Trips[boardedTrip][i-1]
					if c.ArrTime < arrivalTime(tauStar, arr) && c.ArrTime < arrivalTime(tauStar, stop.StationID) {
						a := Arrival{
							Time:        c.ArrTime,
							Stop:        stop,
							BoardedFrom: boardedFrom,
							BoardedTime: boardedTime,
							Mode:        ModeTrip,
							TripID:      c.TripID,
						}
						tauK[round][stop.StationID] = a
						tauStar[stop.StationID] = a
						nextMarked[stop.StationID] = true
					}
				}

				// (b) Earlier-trip check, only where a trip can be boarded
				// (i.e. there's an outgoing connection).
				if i < len(route.Pattern)-1 {
					if a, ok := tauK[round-1][stop.StationID]; ok {
						tIdx := findBoardableTrip(route, i, a.Time)
						if tIdx >= 0 {
							candidate := route.Trips[tIdx][i]

							// Transfer time is not charged at the origin station.
							x := transferSeconds[stop.PlatformID]
							applyTransfer := boardedTrip < 0 && x > 0 && a.Mode != ModeOrigin
							feasible := true
							if applyTransfer {
								feasible = a.Time+x <= candidate.DepTime
								if feasible {
									transfers[stop.StationID] = TransferRecord{Duration: x, FromPlatform: a.Stop.PlatformID}
								}
							}

							if feasible {
								switchTrip := boardedTrip < 0
								if !switchTrip {
									current := route.Trips[boardedTrip][i]
									switchTrip = candidate.DepTime < current.DepTime
								}
								if switchTrip {
									boardedTrip = tIdx
									boardAtIndex = i
									boardedFrom = stop
									boardedTime = candidate.DepTime
								}
							}
						}
					}
				}
			}
		}

		marked = nextMarked
	}

	best, ok := tauStar[arr]
	if !ok {
		return nil, &ErrNoJourney{Dep: dep, Arr: arr, T0: t0, K: k}
	}

	parts, err := reconstruct(tauStar, transfers, dep, arr)
	if err != nil {
		return nil, err
	}

	return &Journey{Parts: parts, Arrival: best.Time}, nil
}

// findBoardableTrip returns the index of the trip on route whose departure
// at index i is >= after, preferring (as a generalization covering feeds
// that violate the FIFO invariant) the one with the earliest
// arrival at index i+1. For a FIFO-respecting route this always agrees with
// "the first such trip by departure time".
func findBoardableTrip(route *Route, i int, after int32) int {
	best := -1
	var bestArrival int32
	for ti, trip := range route.Trips {
		c := trip[i]
		if c.DepTime < after {
			continue
		}
		if best < 0 || c.ArrTime < bestArrival {
			best = ti
			bestArrival = c.ArrTime
		}
	}
	return best
}

func reconstruct(tauStar map[int64]Arrival, transfers map[int64]TransferRecord, dep, arr int64) ([]JourneyPart, error) {
	var parts []JourneyPart
	visited := map[int64]bool{}
	key := arr

	for {
		if visited[key] {
			return nil, &EngineError{Reason: fmt.Sprintf("reconstruction loop at station %d", key)}
		}
		visited[key] = true

		a, ok := tauStar[key]
		if !ok {
			return nil, &EngineError{Reason: fmt.Sprintf("no arrival recorded for station %d", key)}
		}

		if a.Mode == ModeOrigin {
			if key != dep {
				return nil, &EngineError{Reason: fmt.Sprintf("reconstructed origin %d disagrees with requested origin %d", key, dep)}
			}
			break
		}

		parts = append(parts, JourneyPart{
			Kind:      LegVehicle,
			From:      a.BoardedFrom,
			To:        a.Stop,
			Departure: a.BoardedTime,
			Arrival:   a.Time,
			TripID:    a.TripID,
		})

		key = a.BoardedFrom.StationID

		if tr, ok := transfers[key]; ok {
			if inbound, ok := tauStar[key]; ok {
				parts = append(parts, JourneyPart{
					Kind:      LegTransfer,
					From:      Location{PlatformID: tr.FromPlatform, StationID: key},
					To:        a.BoardedFrom,
					Departure: inbound.Time,
					Arrival:   inbound.Time + tr.Duration,
					Duration:  tr.Duration,
				})
			}
		}
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}

	return parts, nil
}
