package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nationalrail/journeycore/model"
)

func TestParseOffset(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    int32
		wantErr bool
	}{
		{"10:00:00", 36000, false},
		{"00:00:00", 0, false},
		{"25:00:01", 90001, false},
		{"99:59:59", 99*3600 + 59*60 + 59, false},
		{"10:00", 0, true},
		{"10:00:derp", 0, true},
		{"-1:00:00", 0, true},
		{"10:60:00", 0, true},
		{"10:00:60", 0, true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseOffset(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseStopTimes(t *testing.T) {
	trips := map[string]int64{"t": 1}
	stops := map[string]int64{"s": 1, "s2": 2}

	t.Run("minimal", func(t *testing.T) {
		w := &captureWriter{}
		err := ParseStopTimes(w, bytes.NewBufferString(
			"\ntrip_id,arrival_time,departure_time,stop_id,stop_sequence\nt,10:00:00,10:00:01,s,1"),
			trips, stops)
		require.NoError(t, err)
		assert.Equal(t, []model.StopEvent{
			{
				TripID: "t", TripNumericID: 1,
				StopID: "s", StopNumericID: 1,
				StopSequence:    1,
				ArrivalOffset:   36000,
				DepartureOffset: 36001,
			},
		}, w.events)
	})

	t.Run("multiple rows in sequence", func(t *testing.T) {
		w := &captureWriter{}
		err := ParseStopTimes(w, bytes.NewBufferString(
			"\ntrip_id,arrival_time,departure_time,stop_id,stop_sequence\n"+
				"t,10:00:00,10:00:01,s,1\n"+
				"t,10:05:00,10:05:01,s2,2"),
			trips, stops)
		require.NoError(t, err)
		require.Len(t, w.events, 2)
	})

	t.Run("times above 24h are preserved", func(t *testing.T) {
		w := &captureWriter{}
		err := ParseStopTimes(w, bytes.NewBufferString(
			"\ntrip_id,arrival_time,departure_time,stop_id,stop_sequence\nt,25:00:00,25:00:01,s,1"),
			trips, stops)
		require.NoError(t, err)
		require.Len(t, w.events, 1)
		assert.Equal(t, int32(90000), w.events[0].ArrivalOffset)
	})

	t.Run("unknown trip_id", func(t *testing.T) {
		w := &captureWriter{}
		err := ParseStopTimes(w, bytes.NewBufferString(
			"\ntrip_id,arrival_time,departure_time,stop_id,stop_sequence\nnope,10:00:00,10:00:01,s,1"),
			trips, stops)
		assert.Error(t, err)
	})

	t.Run("unknown stop_id", func(t *testing.T) {
		w := &captureWriter{}
		err := ParseStopTimes(w, bytes.NewBufferString(
			"\ntrip_id,arrival_time,departure_time,stop_id,stop_sequence\nt,10:00:00,10:00:01,nope,1"),
			trips, stops)
		assert.Error(t, err)
	})

	t.Run("duplicate stop_sequence for a trip", func(t *testing.T) {
		w := &captureWriter{}
		err := ParseStopTimes(w, bytes.NewBufferString(
			"\ntrip_id,arrival_time,departure_time,stop_id,stop_sequence\n"+
				"t,10:00:00,10:00:01,s,1\n"+
				"t,10:05:00,10:05:01,s2,1"),
			trips, stops)
		assert.Error(t, err)
	})

	t.Run("invalid arrival_time", func(t *testing.T) {
		w := &captureWriter{}
		err := ParseStopTimes(w, bytes.NewBufferString(
			"\ntrip_id,arrival_time,departure_time,stop_id,stop_sequence\nt,10:00:derp,10:00:01,s,1"),
			trips, stops)
		assert.Error(t, err)
	})

	t.Run("invalid departure_time", func(t *testing.T) {
		w := &captureWriter{}
		err := ParseStopTimes(w, bytes.NewBufferString(
			"\ntrip_id,arrival_time,departure_time,stop_id,stop_sequence\nt,10:00:00,10:00:derp,s,1"),
			trips, stops)
		assert.Error(t, err)
	})
}
