package parse

import (
	"testing"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"
)

func marshalFeed(t *testing.T, entities ...*gtfsproto.FeedEntity) []byte {
	data, err := proto.Marshal(&gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
		},
		Entity: entities,
	})
	require.NoError(t, err)
	return data
}

func TestParseRealtimeNoEntities(t *testing.T) {
	updates, err := ParseRealtime(marshalFeed(t))
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestParseRealtimeSkipsNonNumericTripID(t *testing.T) {
	updates, err := ParseRealtime(marshalFeed(t, &gtfsproto.FeedEntity{
		Id: proto.String("e1"),
		TripUpdate: &gtfsproto.TripUpdate{
			Trip: &gtfsproto.TripDescriptor{
				TripId: proto.String("not-a-number"),
			},
		},
	}))
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestParseRealtimeSkipsEntityWithoutTripUpdate(t *testing.T) {
	updates, err := ParseRealtime(marshalFeed(t, &gtfsproto.FeedEntity{
		Id: proto.String("e1"),
	}))
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestParseRealtimeTripLevelDelay(t *testing.T) {
	updates, err := ParseRealtime(marshalFeed(t, &gtfsproto.FeedEntity{
		Id: proto.String("e1"),
		TripUpdate: &gtfsproto.TripUpdate{
			Trip: &gtfsproto.TripDescriptor{
				TripId: proto.String("4821"),
			},
			Delay: proto.Int32(90),
		},
	}))
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(4821), updates[0].TripNumericID)
	require.NotNil(t, updates[0].Delay)
	assert.Equal(t, int32(90), *updates[0].Delay)
	assert.Empty(t, updates[0].Stops)
}

func TestParseRealtimeStopLevelDelays(t *testing.T) {
	updates, err := ParseRealtime(marshalFeed(t, &gtfsproto.FeedEntity{
		Id: proto.String("e1"),
		TripUpdate: &gtfsproto.TripUpdate{
			Trip: &gtfsproto.TripDescriptor{
				TripId: proto.String("1"),
			},
			StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{
				{
					StopSequence: proto.Uint32(4),
					StopId:       proto.String("stop1"),
					Arrival:      &gtfsproto.TripUpdate_StopTimeEvent{Delay: proto.Int32(47)},
					Departure:    &gtfsproto.TripUpdate_StopTimeEvent{Delay: proto.Int32(48)},
				},
				{
					StopSequence: proto.Uint32(5),
					StopId:       proto.String("stop2"),
				},
			},
		},
	}))
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Len(t, updates[0].Stops, 2)

	s1 := updates[0].Stops[0]
	assert.Equal(t, "stop1", s1.StopID)
	assert.Equal(t, uint32(4), s1.StopSequence)
	require.NotNil(t, s1.ArrivalDelay)
	assert.Equal(t, int32(47), *s1.ArrivalDelay)
	require.NotNil(t, s1.DepartureDelay)
	assert.Equal(t, int32(48), *s1.DepartureDelay)

	s2 := updates[0].Stops[1]
	assert.Nil(t, s2.ArrivalDelay)
	assert.Nil(t, s2.DepartureDelay)
}

func TestParseRealtimeMultipleEntities(t *testing.T) {
	updates, err := ParseRealtime(marshalFeed(t,
		&gtfsproto.FeedEntity{
			Id: proto.String("e1"),
			TripUpdate: &gtfsproto.TripUpdate{
				Trip: &gtfsproto.TripDescriptor{TripId: proto.String("1")},
			},
		},
		&gtfsproto.FeedEntity{
			Id: proto.String("e2"),
			TripUpdate: &gtfsproto.TripUpdate{
				Trip: &gtfsproto.TripDescriptor{TripId: proto.String("2")},
			},
		},
	))
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, int64(1), updates[0].TripNumericID)
	assert.Equal(t, int64(2), updates[1].TripNumericID)
}

func TestParseRealtimeBadProtobuf(t *testing.T) {
	_, err := ParseRealtime([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	assert.Error(t, err)
}
