package raptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario C: a single route, single trip, direct journey.
func TestQuerySingleRoute(t *testing.T) {
	a := Location{PlatformID: 1, StationID: 1}
	b := Location{PlatformID: 2, StationID: 2}
	c := Location{PlatformID: 3, StationID: 3}

	route := &Route{
		ID:      1,
		Pattern: []Location{a, b, c},
		Trips: [][]Connection{
			{
				{From: a, To: b, DepTime: 0, ArrTime: 100, TripID: 100},
				{From: b, To: c, DepTime: 110, ArrTime: 200, TripID: 100},
			},
		},
	}

	table := NewRouteTable([]*Route{route})
	journey, err := Query(table, nil, a.StationID, c.StationID, 0, 4)
	require.NoError(t, err)
	require.NotNil(t, journey)

	assert.Equal(t, int32(200), journey.Arrival)
	require.Len(t, journey.Parts, 1)
	assert.Equal(t, LegVehicle, journey.Parts[0].Kind)
	assert.Equal(t, int64(100), journey.Parts[0].TripID)
	assert.Equal(t, int32(0), journey.Parts[0].Departure)
	assert.Equal(t, int32(200), journey.Parts[0].Arrival)
}

// Scenario D: two routes meeting at station B, with a 60s transfer time at
// B; the journey requires catching a connecting trip after that transfer.
func TestQueryTransferAtInteriorStation(t *testing.T) {
	a := Location{PlatformID: 1, StationID: 1}
	b := Location{PlatformID: 2, StationID: 2}
	c := Location{PlatformID: 3, StationID: 3}

	r0 := &Route{
		ID:      1,
		Pattern: []Location{a, b},
		Trips: [][]Connection{
			{{From: a, To: b, DepTime: 0, ArrTime: 100, TripID: 100}},
		},
	}
	r1 := &Route{
		ID:      2,
		Pattern: []Location{b, c},
		Trips: [][]Connection{
			{{From: b, To: c, DepTime: 200, ArrTime: 400, TripID: 200}},
		},
	}

	table := NewRouteTable([]*Route{r0, r1})
	transfers := map[int64]int32{b.PlatformID: 60}

	journey, err := Query(table, transfers, a.StationID, c.StationID, 0, 4)
	require.NoError(t, err)
	require.NotNil(t, journey)

	assert.Equal(t, int32(400), journey.Arrival)
	require.Len(t, journey.Parts, 3)

	assert.Equal(t, LegVehicle, journey.Parts[0].Kind)
	assert.Equal(t, int64(100), journey.Parts[0].TripID)
	assert.Equal(t, int32(0), journey.Parts[0].Departure)
	assert.Equal(t, int32(100), journey.Parts[0].Arrival)

	assert.Equal(t, LegTransfer, journey.Parts[1].Kind)
	assert.Equal(t, int32(60), journey.Parts[1].Duration)
	assert.Equal(t, int32(100), journey.Parts[1].Departure)
	assert.Equal(t, int32(160), journey.Parts[1].Arrival)
	assert.Equal(t, b, journey.Parts[1].To)

	assert.Equal(t, LegVehicle, journey.Parts[2].Kind)
	assert.Equal(t, int64(200), journey.Parts[2].TripID)
	assert.Equal(t, int32(200), journey.Parts[2].Departure)
	assert.Equal(t, int32(400), journey.Parts[2].Arrival)
}

// Scenario D variant: the transfer at B is too tight to catch the connecting
// trip, so no journey exists within the round budget.
func TestQueryTransferTooTight(t *testing.T) {
	a := Location{PlatformID: 1, StationID: 1}
	b := Location{PlatformID: 2, StationID: 2}
	c := Location{PlatformID: 3, StationID: 3}

	r0 := &Route{
		ID:      1,
		Pattern: []Location{a, b},
		Trips: [][]Connection{
			{{From: a, To: b, DepTime: 0, ArrTime: 100, TripID: 100}},
		},
	}
	r1 := &Route{
		ID:      2,
		Pattern: []Location{b, c},
		Trips: [][]Connection{
			{{From: b, To: c, DepTime: 130, ArrTime: 400, TripID: 200}},
		},
	}

	table := NewRouteTable([]*Route{r0, r1})
	transfers := map[int64]int32{b.PlatformID: 60}

	journey, err := Query(table, transfers, a.StationID, c.StationID, 0, 4)
	assert.Nil(t, journey)
	require.Error(t, err)
	var noJourney *ErrNoJourney
	assert.ErrorAs(t, err, &noJourney)
}

// Scenario E: a single route carries two trips that violate the FIFO
// invariant (the later-departing trip overtakes). The engine must still
// find the faster trip when it's catchable from the requested departure
// time, rather than greedily boarding whichever trip departs first.
func TestQueryEarlierTripAtInteriorStop(t *testing.T) {
	a := Location{PlatformID: 1, StationID: 1}
	b := Location{PlatformID: 2, StationID: 2}
	c := Location{PlatformID: 3, StationID: 3}

	route := &Route{
		ID:      1,
		Pattern: []Location{a, b, c},
		Trips: [][]Connection{
			{
				{From: a, To: b, DepTime: 0, ArrTime: 100, TripID: 100},
				{From: b, To: c, DepTime: 110, ArrTime: 200, TripID: 100},
			},
			{
				{From: a, To: b, DepTime: 50, ArrTime: 90, TripID: 101},
				{From: b, To: c, DepTime: 95, ArrTime: 180, TripID: 101},
			},
		},
	}

	table := NewRouteTable([]*Route{route})
	journey, err := Query(table, nil, a.StationID, c.StationID, 0, 4)
	require.NoError(t, err)
	require.NotNil(t, journey)

	assert.Equal(t, int32(180), journey.Arrival)
	require.Len(t, journey.Parts, 1)
	assert.Equal(t, int64(101), journey.Parts[0].TripID)
}

// A departure platform carrying its own configured transfer time (normal for
// any interchange station) must not gate boarding the very first trip of a
// query — that cost is only charged when actually changing trips mid-journey.
func TestQueryOriginTransferTimeNotCharged(t *testing.T) {
	a := Location{PlatformID: 1, StationID: 1}
	b := Location{PlatformID: 2, StationID: 2}

	route := &Route{
		ID:      1,
		Pattern: []Location{a, b},
		Trips: [][]Connection{
			{{From: a, To: b, DepTime: 100, ArrTime: 200, TripID: 100}},
		},
	}

	table := NewRouteTable([]*Route{route})
	transfers := map[int64]int32{a.PlatformID: 9999}

	journey, err := Query(table, transfers, a.StationID, b.StationID, 100, 4)
	require.NoError(t, err)
	require.NotNil(t, journey)

	assert.Equal(t, int32(200), journey.Arrival)
	require.Len(t, journey.Parts, 1)
	assert.Equal(t, LegVehicle, journey.Parts[0].Kind)
	assert.Equal(t, int64(100), journey.Parts[0].TripID)
}

func TestQueryDegenerateSameStation(t *testing.T) {
	table := NewRouteTable(nil)
	journey, err := Query(table, nil, 1, 1, 42, 4)
	require.NoError(t, err)
	require.NotNil(t, journey)
	assert.Empty(t, journey.Parts)
	assert.Equal(t, int32(42), journey.Arrival)
}

func TestQueryUnreachableWithinRoundBudget(t *testing.T) {
	a := Location{PlatformID: 1, StationID: 1}
	b := Location{PlatformID: 2, StationID: 2}
	c := Location{PlatformID: 3, StationID: 3}

	r0 := &Route{
		ID:      1,
		Pattern: []Location{a, b},
		Trips: [][]Connection{
			{{From: a, To: b, DepTime: 0, ArrTime: 100, TripID: 100}},
		},
	}
	r1 := &Route{
		ID:      2,
		Pattern: []Location{b, c},
		Trips: [][]Connection{
			{{From: b, To: c, DepTime: 200, ArrTime: 400, TripID: 200}},
		},
	}

	table := NewRouteTable([]*Route{r0, r1})

	// K=1 only allows boarding the first route; the second leg needs a
	// second round.
	journey, err := Query(table, nil, a.StationID, c.StationID, 0, 1)
	assert.Nil(t, journey)
	require.Error(t, err)
	var noJourney *ErrNoJourney
	assert.ErrorAs(t, err, &noJourney)
}
