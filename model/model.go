// Package model holds the entities shared by the store, the ingest and
// realtime pipelines, and the two query engines.
package model

// Holds all external facing types and constants.

type LocationType int

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
	LocationTypeEntranceExit
	LocationTypeGenericNode
	LocationTypeBoardingArea
)

type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway     RouteType = 1
	RouteTypeRail       RouteType = 2
	RouteTypeBus        RouteType = 3
	RouteTypeFerry      RouteType = 4
	RouteTypeCable      RouteType = 5
	RouteTypeAerial     RouteType = 6
	RouteTypeFunicular  RouteType = 7
	RouteTypeTrolleybus RouteType = 11
	RouteTypeMonorail   RouteType = 12
)

type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
}

type Calendar struct {
	ServiceID string
	StartDate string
	EndDate   string
	Weekday   int8
}

type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType int8
}

// Stop is both a platform and, when NumericID == ParentID (no parent in the
// feed), a station.
type Stop struct {
	ID            string
	NumericID     int64
	Code          string
	Name          string
	Lat           float64
	Lon           float64
	LocationType  LocationType
	ParentStation string // feed stop_id of the parent, "" if none
	ParentID      int64  // resolved numeric id of the parent station (self if none)
	PlatformCode  string
	ZoneID        string
}

type Route struct {
	ID        string
	AgencyID  string
	ShortName string
	LongName  string
	Type      RouteType
}

type Trip struct {
	ID          string
	NumericID   int64
	RouteID     string
	ServiceID   string
	Headsign    string
	DirectionID int8
	Delay       *int32 // realtime overlay, seconds; nil if no update applied
}

// StopEvent is a single scheduled stop on a trip. Offsets are seconds past
// the service day's midnight and may exceed 86400 for next-day service.
type StopEvent struct {
	EventID         int64 // dense, assigned after full static load; pagination cursor
	TripID          string
	TripNumericID   int64
	StopID          string
	StopNumericID   int64
	StopSequence    uint32
	ArrivalOffset   int32
	DepartureOffset int32
	ArrivalDelay    *int32
	DepartureDelay  *int32
}

// EffectiveArrival is scheduled arrival + delay (0 if absent);
// Invariant 3.
func (e StopEvent) EffectiveArrival() int32 {
	if e.ArrivalDelay != nil {
		return e.ArrivalOffset + *e.ArrivalDelay
	}
	return e.ArrivalOffset
}

func (e StopEvent) EffectiveDeparture() int32 {
	if e.DepartureDelay != nil {
		return e.DepartureOffset + *e.DepartureDelay
	}
	return e.DepartureOffset
}

// TransferTime is the minimum dwell, in seconds, required to board a
// different trip at the same station after alighting at this child stop.
type TransferTime struct {
	StopID        string
	StopNumericID int64
	Seconds       int32
}
