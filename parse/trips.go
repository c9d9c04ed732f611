package parse

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/nationalrail/journeycore/model"
	"github.com/nationalrail/journeycore/store"
)

type TripCSV struct {
	ID          string `csv:"trip_id"`
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	Headsign    string `csv:"trip_headsign"`
	DirectionID int8   `csv:"direction_id"`
}

// ParseTrips loads trips.txt. Unlike stops, a trip's numeric id is parsed
// directly out of trip_id rather than assigned, since feeds report trip_id
// as a numeric reporting id and the realtime stream identifies trips by
// that same number. Returns the trip_id -> numeric id map, used by
// stop_times.
func ParseTrips(
	writer store.FeedWriter,
	data io.Reader,
	routes map[string]bool,
	services map[string]bool,
) (map[string]int64, error) {
	tripCsv := []*TripCSV{}
	if err := gocsv.Unmarshal(data, &tripCsv); err != nil {
		return nil, errors.Wrap(err, "unmarshaling trips.txt")
	}

	trips := map[string]int64{}
	for _, t := range tripCsv {
		if _, dup := trips[t.ID]; dup {
			return nil, errors.Errorf("repeated trip_id '%s'", t.ID)
		}

		if t.ID == "" {
			return nil, errors.New("empty trip_id")
		}
		if t.RouteID == "" {
			return nil, errors.New("empty route_id")
		}

		if !routes[t.RouteID] {
			return nil, errors.Errorf("unknown route_id '%s'", t.RouteID)
		}
		if !services[t.ServiceID] {
			return nil, errors.Errorf("unknown service_id '%s'", t.ServiceID)
		}

		if t.DirectionID != 0 && t.DirectionID != 1 {
			return nil, errors.Errorf("invalid direction_id '%d'", t.DirectionID)
		}

		numericID, err := strconv.ParseInt(t.ID, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "trip_id '%s' is not numeric", t.ID)
		}
		trips[t.ID] = numericID

		if err := writer.WriteTrip(model.Trip{
			ID:          t.ID,
			NumericID:   numericID,
			RouteID:     t.RouteID,
			ServiceID:   t.ServiceID,
			Headsign:    t.Headsign,
			DirectionID: t.DirectionID,
		}); err != nil {
			return nil, errors.Wrap(err, "writing trip")
		}
	}

	return trips, nil
}
