// Package parse decodes the tabular static feed and the realtime protobuf
// streams into model rows, writing them through a store.FeedWriter.
package parse

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/nationalrail/journeycore/store"
)

// Metadata summarizes the feed just loaded, for the ingestor's logging and
// for joining the station-transfer side feed against stops just written.
type Metadata struct {
	Timezone          string
	CalendarStartDate string
	CalendarEndDate   string

	// FeedVersion is the hex-encoded SHA256 of the archive bytes just
	// parsed, letting callers key a cache to the feed content rather than
	// to a fetch timestamp.
	FeedVersion string

	// StopNumericIDs maps every stop_id seen in stops.txt to its assigned
	// numeric id, for callers that need to write rows referencing stops
	// after ParseStatic returns (e.g. the station-transfer side feed).
	StopNumericIDs map[string]int64
}

// ParseStatic unzips buf and loads every required file through writer. The
// order parsed matters only for cross-reference validation (agency before
// routes, stops/trips before stop_times) — the store itself enforces
// nothing.
func ParseStatic(writer store.FeedWriter, buf []byte) (*Metadata, error) {
	sum := sha256.Sum256(buf)
	feedVersion := hex.EncodeToString(sum[:])

	file := map[string]io.ReadCloser{
		"agency.txt":         nil,
		"routes.txt":         nil,
		"stops.txt":          nil,
		"trips.txt":          nil,
		"stop_times.txt":     nil,
		"calendar.txt":       nil,
		"calendar_dates.txt": nil,
	}

	defer func() {
		for _, rc := range file {
			if rc != nil {
				rc.Close()
			}
		}
	}()

	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, errors.Wrap(err, "unzipping static archive")
	}

	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		fName := path[len(path)-1]

		if _, found := file[fName]; !found {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", f.Name)
		}

		file[fName] = rc
	}

	if file["calendar.txt"] == nil && file["calendar_dates.txt"] == nil {
		return nil, errors.New("missing calendar.txt and calendar_dates.txt")
	}

	for _, required := range []string{"agency.txt", "routes.txt", "stops.txt", "trips.txt", "stop_times.txt"} {
		if file[required] == nil {
			return nil, errors.Errorf("missing %s", required)
		}
	}

	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	agency, timezone, err := ParseAgency(writer, file["agency.txt"])
	if err != nil {
		return nil, errors.Wrap(err, "parsing agency.txt")
	}

	routes, err := ParseRoutes(writer, file["routes.txt"], agency)
	if err != nil {
		return nil, errors.Wrap(err, "parsing routes.txt")
	}

	var calendarStart, calendarEnd string
	services := map[string]bool{}
	if file["calendar.txt"] != nil {
		services, calendarStart, calendarEnd, err = ParseCalendar(writer, file["calendar.txt"])
		if err != nil {
			return nil, errors.Wrap(err, "parsing calendar.txt")
		}
	}
	if file["calendar_dates.txt"] != nil {
		cdServices, minDate, maxDate, err := ParseCalendarDates(writer, file["calendar_dates.txt"])
		if err != nil {
			return nil, errors.Wrap(err, "parsing calendar_dates.txt")
		}
		for serviceID := range cdServices {
			services[serviceID] = true
		}
		if calendarStart == "" || minDate < calendarStart {
			calendarStart = minDate
		}
		if calendarEnd == "" || maxDate > calendarEnd {
			calendarEnd = maxDate
		}
	}

	if err := writer.BeginTrips(); err != nil {
		return nil, errors.Wrap(err, "beginning trips")
	}
	trips, err := ParseTrips(writer, file["trips.txt"], routes, services)
	if err != nil {
		return nil, errors.Wrap(err, "parsing trips.txt")
	}
	if err := writer.EndTrips(); err != nil {
		return nil, errors.Wrap(err, "ending trips")
	}

	stops, err := ParseStops(writer, file["stops.txt"])
	if err != nil {
		return nil, errors.Wrap(err, "parsing stops.txt")
	}

	if err := writer.BeginStopEvents(); err != nil {
		return nil, errors.Wrap(err, "beginning stop events")
	}
	if err := ParseStopTimes(writer, file["stop_times.txt"], trips, stops); err != nil {
		return nil, errors.Wrap(err, "parsing stop_times.txt")
	}
	if err := writer.EndStopEvents(); err != nil {
		return nil, errors.Wrap(err, "ending stop events")
	}

	return &Metadata{
		Timezone:          timezone,
		CalendarStartDate: calendarStart,
		CalendarEndDate:   calendarEnd,
		FeedVersion:       feedVersion,
		StopNumericIDs:    stops,
	}, nil
}
