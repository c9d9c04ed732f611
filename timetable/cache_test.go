package timetable

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nationalrail/journeycore/model"
	"github.com/nationalrail/journeycore/store"
)

func seedSingleConnection(t *testing.T) *store.MemoryStore {
	s := store.NewMemoryStore()
	require.NoError(t, s.ReloadStatic(context.Background(), func(w store.FeedWriter) error {
		require.NoError(t, w.WriteStop(model.Stop{ID: "a", NumericID: 1, ParentID: 1}))
		require.NoError(t, w.WriteStop(model.Stop{ID: "b", NumericID: 2, ParentID: 2}))
		require.NoError(t, w.BeginTrips())
		require.NoError(t, w.WriteTrip(model.Trip{ID: "t1", NumericID: 1}))
		require.NoError(t, w.EndTrips())
		require.NoError(t, w.BeginStopEvents())
		require.NoError(t, w.WriteStopEvent(model.StopEvent{TripID: "t1", TripNumericID: 1, StopID: "a", StopNumericID: 1, StopSequence: 1, DepartureOffset: 10}))
		require.NoError(t, w.WriteStopEvent(model.StopEvent{TripID: "t1", TripNumericID: 1, StopID: "b", StopNumericID: 2, StopSequence: 2, ArrivalOffset: 20}))
		return w.EndStopEvents()
	}))
	require.NoError(t, s.AssignEventIDs())
	return s
}

func TestCacheLoadConnectionsBuildsAndPersists(t *testing.T) {
	s := seedSingleConnection(t)
	dir := t.TempDir()
	c := &Cache{ConnectionsPath: filepath.Join(dir, "connections.gob")}

	list, err := c.LoadConnections(s, "v1")
	require.NoError(t, err)
	require.Len(t, list.Connections, 1)

	// Second call with the same version should read the cache rather than
	// rebuild; an empty store (nothing to scan) still returns the cached
	// connection, proving the cache path was taken.
	empty := store.NewMemoryStore()
	cached, err := c.LoadConnections(empty, "v1")
	require.NoError(t, err)
	assert.Equal(t, list.Connections, cached.Connections)
}

func TestCacheLoadConnectionsRebuildsOnVersionMismatch(t *testing.T) {
	s := seedSingleConnection(t)
	dir := t.TempDir()
	c := &Cache{ConnectionsPath: filepath.Join(dir, "connections.gob")}

	_, err := c.LoadConnections(s, "v1")
	require.NoError(t, err)

	empty := store.NewMemoryStore()
	list, err := c.LoadConnections(empty, "v2")
	require.NoError(t, err)
	assert.Empty(t, list.Connections)
}

func TestCacheLoadRouteTableBuildsAndPersists(t *testing.T) {
	s := seedSingleConnection(t)
	dir := t.TempDir()
	c := &Cache{RouteTablePath: filepath.Join(dir, "routes.gob")}

	rt, err := c.LoadRouteTable(s, "v1")
	require.NoError(t, err)
	require.Len(t, rt.Routes, 1)

	empty := store.NewMemoryStore()
	cached, err := c.LoadRouteTable(empty, "v1")
	require.NoError(t, err)
	require.Len(t, cached.Routes, 1)
	assert.Equal(t, rt.Routes[0].Pattern, cached.Routes[0].Pattern)
}

func TestCacheLoadRouteTableFallsBackOnMissingFile(t *testing.T) {
	s := seedSingleConnection(t)
	dir := t.TempDir()
	c := &Cache{RouteTablePath: filepath.Join(dir, "does-not-exist.gob")}

	rt, err := c.LoadRouteTable(s, "v1")
	require.NoError(t, err)
	assert.Len(t, rt.Routes, 1)
}
