// Package supervisor orchestrates startup, the periodic realtime refresh,
// and the nightly static refresh against a single store.Store.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nationalrail/journeycore/csa"
	"github.com/nationalrail/journeycore/ingest"
	"github.com/nationalrail/journeycore/raptor"
	"github.com/nationalrail/journeycore/realtime"
	"github.com/nationalrail/journeycore/store"
	"github.com/nationalrail/journeycore/timetable"
)

// DefaultRealtimeInterval is how often the realtime refresh task ticks.
const DefaultRealtimeInterval = 60 * time.Second

// DefaultNightlyHour is the local hour (0-23) at which the nightly static
// refresh runs.
const DefaultNightlyHour = 3

// Config holds the knobs a cmd wires from flags; everything has a
// constant default so a zero-value Config is runnable.
type Config struct {
	RealtimeInterval time.Duration
	NightlyHour      int
}

func (c Config) withDefaults() Config {
	if c.RealtimeInterval <= 0 {
		c.RealtimeInterval = DefaultRealtimeInterval
	}
	if c.NightlyHour == 0 {
		c.NightlyHour = DefaultNightlyHour
	}
	return c
}

// Supervisor owns the Store and the two built indices, and runs the
// lifecycle described in the package doc: startup, periodic realtime
// refresh, nightly static refresh.
type Supervisor struct {
	Config Config

	Store    store.Store
	Ingest   *ingest.Ingestor
	Realtime *realtime.Merger
	Cache    *timetable.Cache

	mu          chan struct{} // one-slot semaphore: excludes concurrent static/realtime refresh
	connections *csa.ConnectionList
	routes      *raptor.RouteTable
}

// New returns a Supervisor with Config defaults applied.
func New(cfg Config, s store.Store, in *ingest.Ingestor, rt *realtime.Merger, cache *timetable.Cache) *Supervisor {
	return &Supervisor{
		Config:   cfg.withDefaults(),
		Store:    s,
		Ingest:   in,
		Realtime: rt,
		Cache:    cache,
		mu:       make(chan struct{}, 1),
	}
}

// Connections returns the most recently built CSA connection list.
func (sup *Supervisor) Connections() *csa.ConnectionList { return sup.connections }

// Routes returns the most recently built RAPTOR route table.
func (sup *Supervisor) Routes() *raptor.RouteTable { return sup.routes }

// Run performs startup, then runs the periodic realtime task and the
// nightly static task concurrently until ctx is cancelled.
func (sup *Supervisor) Run(ctx context.Context) error {
	if err := sup.startup(ctx); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.realtimeLoop(ctx)
	}()

	sup.nightlyLoop(ctx)
	<-done

	return nil
}

// startup opens indices from cache if present, ingesting first when the
// store has no stop events at all, or when a download/parse sentinel left
// by an aborted ingest is present under the ingestor's CacheDir.
func (sup *Supervisor) startup(ctx context.Context) error {
	count, err := sup.Store.CountStopEvents()
	if err != nil {
		return fmt.Errorf("counting stop events: %w", err)
	}

	if count == 0 {
		fmt.Println("supervisor: store is empty, running initial ingest")
		if err := sup.Ingest.Run(ctx); err != nil {
			return fmt.Errorf("initial ingest: %w", err)
		}
	} else {
		for _, name := range []string{"download", "parse"} {
			if _, err := os.Stat(filepath.Join(sup.Ingest.CacheDir, name)); err == nil {
				fmt.Println("supervisor: found", name, "sentinel, resuming ingest")
				if err := sup.Ingest.Run(ctx); err != nil {
					return fmt.Errorf("resuming ingest: %w", err)
				}
				break
			}
		}
	}

	return sup.rebuildIndices()
}

// rebuildIndices loads (or builds, on cache miss) both timetable artifacts,
// keyed by the static feed's content hash so a stale on-disk cache from a
// previous feed version is never mistaken for the current one.
func (sup *Supervisor) rebuildIndices() error {
	sup.acquire()
	defer sup.release()

	version := sup.Ingest.FeedVersion()
	connections, err := sup.Cache.LoadConnections(sup.Store, version)
	if err != nil {
		return fmt.Errorf("loading connection list: %w", err)
	}

	routes, err := sup.Cache.LoadRouteTable(sup.Store, version)
	if err != nil {
		return fmt.Errorf("loading route table: %w", err)
	}

	sup.connections = connections
	sup.routes = routes
	return nil
}

// realtimeLoop runs the periodic realtime refresh, serialized against any
// concurrent nightly static refresh via sup.mu.
func (sup *Supervisor) realtimeLoop(ctx context.Context) {
	ticker := time.NewTicker(sup.Config.RealtimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sup.acquire()
			if err := sup.Realtime.Tick(ctx); err != nil {
				fmt.Println("supervisor: realtime refresh failed:", err)
			}
			sup.release()
		}
	}
}

// nightlyLoop sleeps until the next occurrence of Config.NightlyHour local
// time, then runs the static refresh, and repeats until ctx is cancelled.
func (sup *Supervisor) nightlyLoop(ctx context.Context) {
	for {
		wait := sup.nextNightly(time.Now())

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			if err := sup.nightlyRefresh(ctx); err != nil {
				fmt.Println("supervisor: nightly refresh failed:", err)
			}
		}
	}
}

func (sup *Supervisor) nextNightly(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), sup.Config.NightlyHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// nightlyRefresh re-ingests the static feed and rebuilds both indices,
// excluding any concurrent realtime refresh for its duration. Reloading
// through sup.Cache (rather than calling timetable.BuildConnections/
// BuildRouteTable directly) is what actually invalidates the on-disk cache
// once the feed's content hash changes; an unchanged hash means the feed
// didn't actually change, and the existing cache file is reused as-is.
func (sup *Supervisor) nightlyRefresh(ctx context.Context) error {
	sup.acquire()
	defer sup.release()

	fmt.Println("supervisor: running nightly static refresh")
	if err := sup.Ingest.Run(ctx); err != nil {
		return fmt.Errorf("nightly ingest: %w", err)
	}

	version := sup.Ingest.FeedVersion()
	connections, err := sup.Cache.LoadConnections(sup.Store, version)
	if err != nil {
		return fmt.Errorf("rebuilding connection list: %w", err)
	}

	routes, err := sup.Cache.LoadRouteTable(sup.Store, version)
	if err != nil {
		return fmt.Errorf("rebuilding route table: %w", err)
	}

	sup.connections = connections
	sup.routes = routes
	return nil
}

func (sup *Supervisor) acquire() { sup.mu <- struct{}{} }
func (sup *Supervisor) release() { <-sup.mu }
