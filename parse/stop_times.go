package parse

import (
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/nationalrail/journeycore/model"
	"github.com/nationalrail/journeycore/store"
)

type StopTimeCSV struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  uint32 `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
}

// parseOffset turns "HH:MM:SS" into seconds past midnight. Hours may run
// past 23 for next-day service, so the result is not clamped to a day.
func parseOffset(s string) (int32, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, errors.Errorf("found %d parts in '%s'", len(parts), s)
	}

	hms := [3]int{}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, errors.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = v
	}

	if hms[0] < 0 || hms[0] > 99 {
		return 0, errors.Errorf("invalid hour in '%s'", s)
	}
	if hms[1] < 0 || hms[1] > 59 {
		return 0, errors.Errorf("invalid minute in '%s'", s)
	}
	if hms[2] < 0 || hms[2] > 59 {
		return 0, errors.Errorf("invalid second in '%s'", s)
	}

	return int32(hms[0]*3600 + hms[1]*60 + hms[2]), nil
}

// ParseStopTimes streams stop_times.txt row by row (it is by far the
// largest static file) straight into writer, bracketed by the caller's
// BeginStopEvents/EndStopEvents.
func ParseStopTimes(
	writer store.FeedWriter,
	data io.Reader,
	trips map[string]int64,
	stops map[string]int64,
) error {
	stopSeq := map[string]map[uint32]bool{}

	row := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(st *StopTimeCSV) error {
		row++

		tripNumericID, ok := trips[st.TripID]
		if !ok {
			return errors.Errorf("unknown trip_id: '%s' (row %d)", st.TripID, row+1)
		}
		if st.StopID == "" {
			return errors.Errorf("missing stop_id (row %d)", row+1)
		}
		stopNumericID, ok := stops[st.StopID]
		if !ok {
			return errors.Errorf("unknown stop_id: '%s' (row %d)", st.StopID, row+1)
		}

		if stopSeq[st.TripID] == nil {
			stopSeq[st.TripID] = map[uint32]bool{}
		}
		if stopSeq[st.TripID][st.StopSequence] {
			return errors.Errorf("duplicate stop_sequence %d for trip_id '%s'", st.StopSequence, st.TripID)
		}
		stopSeq[st.TripID][st.StopSequence] = true

		arrival, err := parseOffset(st.ArrivalTime)
		if err != nil {
			return errors.Wrapf(err, "parsing arrival_time (row %d)", row+1)
		}

		departure, err := parseOffset(st.DepartureTime)
		if err != nil {
			return errors.Wrapf(err, "parsing departure_time (row %d)", row+1)
		}

		if err := writer.WriteStopEvent(model.StopEvent{
			TripID:          st.TripID,
			TripNumericID:   tripNumericID,
			StopID:          st.StopID,
			StopNumericID:   stopNumericID,
			StopSequence:    st.StopSequence,
			ArrivalOffset:   arrival,
			DepartureOffset: departure,
		}); err != nil {
			return errors.Wrapf(err, "writing stop_event (row %d)", row+1)
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "unmarshaling stop_times.txt")
	}

	return nil
}
