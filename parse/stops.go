package parse

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/nationalrail/journeycore/model"
	"github.com/nationalrail/journeycore/store"
)

type StopCSV struct {
	ID            string  `csv:"stop_id"`
	Code          string  `csv:"stop_code"`
	Name          string  `csv:"stop_name"`
	Lat           float64 `csv:"stop_lat"`
	Lon           float64 `csv:"stop_lon"`
	ZoneID        string  `csv:"zone_id"`
	LocationType  int8    `csv:"location_type"`
	ParentStation string  `csv:"parent_station"`
	PlatformCode  string  `csv:"platform_code"`
}

// ParseStops loads stops.txt, assigning each stop a dense numeric id in
// file order and resolving parent_station references to the parent's
// numeric id (a stop with no parent is its own parent, per model.Stop).
// Returns the stop_id -> numeric id map, used by stop_times and the
// station-transfer side-feed.
func ParseStops(writer store.FeedWriter, data io.Reader) (map[string]int64, error) {
	stopCsv := []*StopCSV{}
	if err := gocsv.Unmarshal(data, &stopCsv); err != nil {
		return nil, errors.Wrap(err, "unmarshaling stops.txt")
	}

	numericID := map[string]int64{}
	for i, st := range stopCsv {
		if _, dup := numericID[st.ID]; dup {
			return nil, errors.Errorf("repeated stop_id '%s'", st.ID)
		}
		if st.ID == "" {
			return nil, errors.New("empty stop_id")
		}
		numericID[st.ID] = int64(i + 1)
	}

	for _, st := range stopCsv {
		locationType := model.LocationType(st.LocationType)

		if locationType != model.LocationTypeGenericNode && locationType != model.LocationTypeBoardingArea {
			// stop_name, stop_lat and stop_lon are optional for generic
			// nodes (location_type=3) and boarding areas (location_type=4),
			// required otherwise.
			if st.Name == "" {
				return nil, errors.Errorf("empty stop_name for stop_id '%s'", st.ID)
			}
			if st.Lat == 0 || st.Lon == 0 {
				return nil, errors.Errorf("empty stop_lat or stop_lon for stop_id '%s'", st.ID)
			}
		}

		parentID := numericID[st.ID]
		if st.ParentStation != "" {
			id, found := numericID[st.ParentStation]
			if !found {
				return nil, errors.Errorf("stop '%s' references unknown parent_station '%s'", st.ID, st.ParentStation)
			}
			parentID = id
		}

		if err := writer.WriteStop(model.Stop{
			ID:            st.ID,
			NumericID:     numericID[st.ID],
			Code:          st.Code,
			Name:          st.Name,
			Lat:           st.Lat,
			Lon:           st.Lon,
			LocationType:  locationType,
			ParentStation: st.ParentStation,
			ParentID:      parentID,
			PlatformCode:  st.PlatformCode,
			ZoneID:        st.ZoneID,
		}); err != nil {
			return nil, errors.Wrapf(err, "writing stop '%s'", st.ID)
		}
	}

	return numericID, nil
}
