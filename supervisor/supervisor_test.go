package supervisor

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nationalrail/journeycore/ingest"
	"github.com/nationalrail/journeycore/model"
	"github.com/nationalrail/journeycore/realtime"
	"github.com/nationalrail/journeycore/store"
	"github.com/nationalrail/journeycore/timetable"
)

func buildZip(t *testing.T, files map[string][]string) []byte {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for filename, content := range files {
		f, err := w.Create(filename)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func validFeed() map[string][]string {
	return map[string][]string{
		"agency.txt": {
			"agency_timezone,agency_name,agency_url",
			"America/Los_Angeles,Fake Agency,http://agency/index.html",
		},
		"routes.txt": {
			"route_id,route_short_name,route_type",
			"r,R,3",
		},
		"calendar.txt": {
			"service_id,monday,start_date,end_date",
			"mondays,1,20190101,20190301",
		},
		"trips.txt": {
			"route_id,service_id,trip_id",
			"r,mondays,1",
		},
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"s,S,12,34",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"1,12:00:00,12:00:00,s,1",
		},
	}
}

func TestStartupIngestsWhenStoreIsEmpty(t *testing.T) {
	zipBody := buildZip(t, validFeed())
	staticServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBody)
	}))
	defer staticServer.Close()

	rtServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// An empty but valid protobuf feed message.
	}))
	defer rtServer.Close()

	s := store.NewMemoryStore()
	in := ingest.NewIngestor(staticServer.URL, t.TempDir(), s)
	rt := realtime.NewMerger(rtServer.URL, s)
	cache := &timetable.Cache{
		ConnectionsPath: filepath.Join(t.TempDir(), "connections.gob"),
		RouteTablePath:  filepath.Join(t.TempDir(), "routes.gob"),
	}

	sup := New(Config{}, s, in, rt, cache)
	require.NoError(t, sup.startup(context.Background()))

	count, err := s.CountStopEvents()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.NotNil(t, sup.Connections())
	assert.NotNil(t, sup.Routes())
}

func TestStartupSkipsIngestWhenStoreHasData(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.ReloadStatic(context.Background(), func(w store.FeedWriter) error {
		require.NoError(t, w.BeginStopEvents())
		require.NoError(t, w.WriteStopEvent(model.StopEvent{TripID: "t1", TripNumericID: 1, StopID: "s", StopNumericID: 1}))
		return w.EndStopEvents()
	}))
	require.NoError(t, s.AssignEventIDs())

	in := ingest.NewIngestor("http://unreachable.invalid", t.TempDir(), s)
	rt := realtime.NewMerger("http://unreachable.invalid", s)
	cache := &timetable.Cache{
		ConnectionsPath: filepath.Join(t.TempDir(), "connections.gob"),
		RouteTablePath:  filepath.Join(t.TempDir(), "routes.gob"),
	}

	sup := New(Config{}, s, in, rt, cache)
	require.NoError(t, sup.startup(context.Background()))
}

func TestNextNightlyWrapsToTomorrow(t *testing.T) {
	sup := New(Config{NightlyHour: 3}, nil, nil, nil, nil)

	now := time.Date(2026, 7, 29, 5, 0, 0, 0, time.UTC)
	wait := sup.nextNightly(now)

	next := now.Add(wait)
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, now.Day()+1, next.Day())
}

func TestNextNightlyLaterTodayWhenBeforeThreshold(t *testing.T) {
	sup := New(Config{NightlyHour: 3}, nil, nil, nil, nil)

	now := time.Date(2026, 7, 29, 1, 0, 0, 0, time.UTC)
	wait := sup.nextNightly(now)

	next := now.Add(wait)
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, now.Day(), next.Day())
}

func TestRunHonorsCancellation(t *testing.T) {
	zipBody := buildZip(t, validFeed())
	staticServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBody)
	}))
	defer staticServer.Close()

	rtServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer rtServer.Close()

	s := store.NewMemoryStore()
	in := ingest.NewIngestor(staticServer.URL, t.TempDir(), s)
	rt := realtime.NewMerger(rtServer.URL, s)
	cache := &timetable.Cache{
		ConnectionsPath: filepath.Join(t.TempDir(), "connections.gob"),
		RouteTablePath:  filepath.Join(t.TempDir(), "routes.gob"),
	}

	sup := New(Config{RealtimeInterval: 10 * time.Millisecond, NightlyHour: 3}, s, in, rt, cache)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
