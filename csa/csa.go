// Package csa implements the Connection Scan Algorithm earliest-arrival
// query over a time-sorted connection list.
package csa

import (
	"fmt"
	"sort"
)

// Connection is a single scheduled stop-to-stop vehicle movement. Station
// fields are parent-station numeric ids.
type Connection struct {
	DepStation int64
	ArrStation int64
	DepTime    int32
	ArrTime    int32
	TripID     int64
}

func less(a, b Connection) bool {
	if a.DepTime != b.DepTime {
		return a.DepTime < b.DepTime
	}
	if a.ArrTime != b.ArrTime {
		return a.ArrTime < b.ArrTime
	}
	if a.DepStation != b.DepStation {
		return a.DepStation < b.DepStation
	}
	if a.ArrStation != b.ArrStation {
		return a.ArrStation < b.ArrStation
	}
	return a.TripID < b.TripID
}

func equal(a, b Connection) bool {
	return a == b
}

// ConnectionList holds the globally sorted, de-duplicated connections
// produced by the timetable builder.
type ConnectionList struct {
	Connections []Connection
}

// NewConnectionList sorts and de-duplicates conns in place, returning a
// ConnectionList ready for querying.
func NewConnectionList(conns []Connection) *ConnectionList {
	sort.Slice(conns, func(i, j int) bool { return less(conns[i], conns[j]) })

	deduped := conns[:0]
	for i, c := range conns {
		if i == 0 || !equal(c, deduped[len(deduped)-1]) {
			deduped = append(deduped, c)
		}
	}

	return &ConnectionList{Connections: deduped}
}

// Journey is a chronological sequence of Connections forming an
// earliest-arrival path from departure to arrival station.
type Journey struct {
	Connections []Connection
	Arrival     int32
}

// ErrNoJourney is returned (as a benign result, not bundled in an error
// return in the Go idiom sense of "fatal") when no path exists. Query
// returns it as its second value so callers can distinguish "no journey"
// from an engine failure.
type ErrNoJourney struct {
	Dep, Arr int64
	T0       int32
}

func (e *ErrNoJourney) Error() string {
	return fmt.Sprintf("no journey from %d to %d departing at or after %d", e.Dep, e.Arr, e.T0)
}

const infinity = int32(1<<31 - 1)

// Query runs the earliest-arrival scan over list, from dep
// to arr, departing no earlier than t0. It returns (*Journey, nil) on
// success, or (nil, *ErrNoJourney) when no journey exists within list.
func Query(list *ConnectionList, dep, arr int64, t0 int32) (*Journey, error) {
	if dep == arr {
		return &Journey{Connections: nil, Arrival: t0}, nil
	}

	earliestArrival := map[int64]int32{dep: t0}
	inConnection := map[int64]int{}

	bestAtTarget := infinity

	for i, c := range list.Connections {
		depKnown, hasDep := earliestArrival[c.DepStation]
		if !hasDep {
			depKnown = infinity
		}

		if c.DepTime >= depKnown {
			arrKnown, hasArr := earliestArrival[c.ArrStation]
			if !hasArr {
				arrKnown = infinity
			}
			if c.ArrTime < arrKnown {
				earliestArrival[c.ArrStation] = c.ArrTime
				inConnection[c.ArrStation] = i
				if c.ArrStation == arr && c.ArrTime < bestAtTarget {
					bestAtTarget = c.ArrTime
				}
			}
		} else if c.ArrTime > bestAtTarget {
			// No later connection can improve arr: terminate the scan.
			break
		}
	}

	if _, found := inConnection[arr]; !found {
		return nil, &ErrNoJourney{Dep: dep, Arr: arr, T0: t0}
	}

	// Walk backward from arr, following in_connection, until the
	// departure station key is absent (we've reached dep).
	var legs []Connection
	station := arr
	for {
		ci, ok := inConnection[station]
		if !ok {
			break
		}
		c := list.Connections[ci]
		legs = append(legs, c)
		station = c.DepStation
	}

	// Reverse into chronological order.
	for i, j := 0, len(legs)-1; i < j; i, j = i+1, j-1 {
		legs[i], legs[j] = legs[j], legs[i]
	}

	return &Journey{Connections: legs, Arrival: earliestArrival[arr]}, nil
}
