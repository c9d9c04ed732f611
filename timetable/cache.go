package timetable

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/nationalrail/journeycore/csa"
	"github.com/nationalrail/journeycore/raptor"
	"github.com/nationalrail/journeycore/store"
)

// Cache reads and writes the two timetable artifacts to disk, keyed by a
// feed version string (the ingestor's feed SHA256, by convention).
type Cache struct {
	ConnectionsPath string
	RouteTablePath  string
}

// LoadConnections reads the cached connection list if its version header
// matches; on any read, decode or version mismatch it rebuilds from s and
// rewrites the cache file.
func (c *Cache) LoadConnections(s store.Store, version string) (*csa.ConnectionList, error) {
	cached, err := readGob[connectionsFile](c.ConnectionsPath)
	if err == nil && cached.Version == version {
		return &csa.ConnectionList{Connections: cached.Connections}, nil
	}

	built, err := BuildConnections(s)
	if err != nil {
		return nil, fmt.Errorf("building connection list: %w", err)
	}

	if err := writeGob(c.ConnectionsPath, connectionsFile{Version: version, Connections: built.Connections}); err != nil {
		return nil, fmt.Errorf("writing connection list cache: %w", err)
	}

	return built, nil
}

// LoadRouteTable reads the cached route table if its version header
// matches; on any read, decode or version mismatch it rebuilds from s and
// rewrites the cache file.
func (c *Cache) LoadRouteTable(s store.Store, version string) (*raptor.RouteTable, error) {
	cached, err := readGob[routeTableFile](c.RouteTablePath)
	if err == nil && cached.Version == version {
		return raptor.NewRouteTable(cached.Routes), nil
	}

	built, err := BuildRouteTable(s)
	if err != nil {
		return nil, fmt.Errorf("building route table: %w", err)
	}

	if err := writeGob(c.RouteTablePath, routeTableFile{Version: version, Routes: built.Routes}); err != nil {
		return nil, fmt.Errorf("writing route table cache: %w", err)
	}

	return built, nil
}

type connectionsFile struct {
	Version     string
	Connections []csa.Connection
}

type routeTableFile struct {
	Version string
	Routes  []*raptor.Route
}

func readGob[T any](path string) (T, error) {
	var out T
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func writeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	return nil
}
