package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrips(t *testing.T) {
	routes := map[string]bool{"R1": true}
	services := map[string]bool{"S1": true}

	t.Run("numeric trip_id becomes the numeric id", func(t *testing.T) {
		w := &captureWriter{}
		ids, err := ParseTrips(w, bytes.NewBufferString(
			"\ntrip_id,route_id,service_id\n4821,R1,S1"), routes, services)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"4821": 4821}, ids)
		require.Len(t, w.trips, 1)
		assert.Equal(t, int64(4821), w.trips[0].NumericID)
	})

	t.Run("non-numeric trip_id fails", func(t *testing.T) {
		w := &captureWriter{}
		_, err := ParseTrips(w, bytes.NewBufferString(
			"\ntrip_id,route_id,service_id\nABC,R1,S1"), routes, services)
		assert.Error(t, err)
	})

	t.Run("unknown route_id", func(t *testing.T) {
		w := &captureWriter{}
		_, err := ParseTrips(w, bytes.NewBufferString(
			"\ntrip_id,route_id,service_id\n1,R9,S1"), routes, services)
		assert.Error(t, err)
	})

	t.Run("unknown service_id", func(t *testing.T) {
		w := &captureWriter{}
		_, err := ParseTrips(w, bytes.NewBufferString(
			"\ntrip_id,route_id,service_id\n1,R1,S9"), routes, services)
		assert.Error(t, err)
	})

	t.Run("duplicate trip_id", func(t *testing.T) {
		w := &captureWriter{}
		_, err := ParseTrips(w, bytes.NewBufferString(
			"\ntrip_id,route_id,service_id\n1,R1,S1\n1,R1,S1"), routes, services)
		assert.Error(t, err)
	})

	t.Run("invalid direction_id", func(t *testing.T) {
		w := &captureWriter{}
		_, err := ParseTrips(w, bytes.NewBufferString(
			"\ntrip_id,route_id,service_id,direction_id\n1,R1,S1,2"), routes, services)
		assert.Error(t, err)
	})
}
