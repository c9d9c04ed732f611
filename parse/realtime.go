package parse

import (
	"strconv"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/pkg/errors"
	proto "google.golang.org/protobuf/proto"
)

// StopDelayUpdate carries the delay fields for one scheduled stop of a
// trip update. StopID is preferred for locating the Store row; StopSequence
// is the fallback when the feed omits stop_id.
type StopDelayUpdate struct {
	StopID         string
	StopSequence   uint32
	ArrivalDelay   *int32
	DepartureDelay *int32
}

// TripDelayUpdate is one trip_update entity's delay-only content.
type TripDelayUpdate struct {
	TripNumericID int64
	Stops         []StopDelayUpdate
	Delay         *int32 // trip-level delay, applied after stop-level delays
}

// ParseRealtime decodes a GTFS Realtime FeedMessage and extracts the
// delay-only content of every trip_update entity. A trip_update whose
// trip_id does not parse as a number is skipped silently; the caller is
// responsible for everything else the feed carries (alerts, vehicle
// positions, train updates), which this package does not decode.
func ParseRealtime(feed []byte) ([]TripDelayUpdate, error) {
	f := &gtfsproto.FeedMessage{}
	if err := proto.Unmarshal(feed, f); err != nil {
		return nil, errors.Wrap(err, "unmarshaling protobuf")
	}

	var updates []TripDelayUpdate
	for _, entity := range f.GetEntity() {
		if entity.TripUpdate == nil {
			continue
		}

		trip := entity.TripUpdate.GetTrip()
		numericID, err := parseTripNumericID(trip.GetTripId())
		if err != nil {
			continue
		}

		tu := TripDelayUpdate{TripNumericID: numericID}
		if entity.TripUpdate.Delay != nil {
			delay := entity.TripUpdate.GetDelay()
			tu.Delay = &delay
		}

		for _, u := range entity.TripUpdate.GetStopTimeUpdate() {
			tu.Stops = append(tu.Stops, StopDelayUpdate{
				StopID:         u.GetStopId(),
				StopSequence:   uint32(u.GetStopSequence()),
				ArrivalDelay:   stopEventDelay(u.Arrival),
				DepartureDelay: stopEventDelay(u.Departure),
			})
		}

		updates = append(updates, tu)
	}

	return updates, nil
}

func stopEventDelay(event *gtfsproto.TripUpdate_StopTimeEvent) *int32 {
	if event == nil || event.Delay == nil {
		return nil
	}
	delay := event.GetDelay()
	return &delay
}

func parseTripNumericID(tripID string) (int64, error) {
	return strconv.ParseInt(tripID, 10, 64)
}
