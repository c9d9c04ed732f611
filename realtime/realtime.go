// Package realtime periodically fetches the upstream's delta streams and
// applies their delay fields to a store.Store.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"

	"github.com/nationalrail/journeycore/parse"
	"github.com/nationalrail/journeycore/store"
)

// DefaultTickInterval is how often Run refreshes the store, absent an
// explicit interval.
const DefaultTickInterval = 60 * time.Second

// Merger fetches the four named delta streams on a schedule and writes their
// delay fields into a Store. TripUpdatesURL is the only stream this package
// decodes past the FeedMessage envelope; AlertsURL, VehiclePositionsURL and
// TrainUpdatesURL are fetched and unmarshaled (so a malformed frame still
// surfaces as an error) and otherwise discarded, since nothing downstream of
// the Store consumes alerts, vehicle positions or train-level updates.
type Merger struct {
	TripUpdatesURL      string
	AlertsURL           string
	VehiclePositionsURL string
	TrainUpdatesURL     string

	Store store.Store

	Client *http.Client
}

// NewMerger returns a Merger with a default 30s HTTP client timeout.
func NewMerger(tripUpdatesURL string, s store.Store) *Merger {
	return &Merger{
		TripUpdatesURL: tripUpdatesURL,
		Store:          s,
		Client:         &http.Client{Timeout: 30 * time.Second},
	}
}

// Run ticks every interval (DefaultTickInterval if zero) until ctx is
// cancelled, logging and continuing past any single Tick's error rather
// than aborting the loop.
func (m *Merger) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := m.Tick(ctx); err != nil {
			fmt.Println("realtime: tick failed:", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick fetches the configured streams, parses them, and applies rules 1-4
// to the Store inside one transaction. AlertsURL/VehiclePositionsURL/
// TrainUpdatesURL are only fetched when set; an empty URL is skipped.
func (m *Merger) Tick(ctx context.Context) error {
	tripUpdatesBody, err := m.fetch(ctx, m.TripUpdatesURL)
	if err != nil {
		return fmt.Errorf("fetching trip updates: %w", err)
	}

	updates, err := parse.ParseRealtime(tripUpdatesBody)
	if err != nil {
		return fmt.Errorf("parsing trip updates: %w", err)
	}

	for _, url := range []string{m.AlertsURL, m.VehiclePositionsURL, m.TrainUpdatesURL} {
		if url == "" {
			continue
		}
		if err := m.fetchAndDiscard(ctx, url); err != nil {
			return fmt.Errorf("fetching %s: %w", url, err)
		}
	}

	return m.Store.Transact(ctx, func(s store.Store) error {
		for _, tu := range updates {
			if err := applyTripUpdate(s, tu); err != nil {
				return fmt.Errorf("applying trip %d: %w", tu.TripNumericID, err)
			}
		}
		return nil
	})
}

// applyTripUpdate applies rules 2-4 to one trip update: stop-level delays
// first (stop id, falling back to sequence, per stop), then the trip-level
// delay. A row that can't be located (store.ErrNotFound) is skipped, not
// treated as a failure of the whole tick.
func applyTripUpdate(s store.Store, tu parse.TripDelayUpdate) error {
	for _, stop := range tu.Stops {
		if stop.ArrivalDelay == nil && stop.DepartureDelay == nil {
			continue
		}

		var err error
		if stop.StopID != "" {
			err = s.UpdateStopEventDelayByStop(stop.StopID, tu.TripNumericID, stop.ArrivalDelay, stop.DepartureDelay)
		} else {
			err = s.UpdateStopEventDelayBySequence(stop.StopSequence, tu.TripNumericID, stop.ArrivalDelay, stop.DepartureDelay)
		}
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("updating stop event: %w", err)
		}
	}

	if tu.Delay != nil {
		if err := s.UpdateTripDelay(tu.TripNumericID, tu.Delay); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("updating trip delay: %w", err)
		}
	}

	return nil
}

func (m *Merger) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// fetchAndDiscard fetches and unmarshals a stream this package does not
// otherwise decode, so a malformed frame is still reported as a tick error.
func (m *Merger) fetchAndDiscard(ctx context.Context, url string) error {
	body, err := m.fetch(ctx, url)
	if err != nil {
		return err
	}

	f := &gtfsproto.FeedMessage{}
	if err := proto.Unmarshal(body, f); err != nil {
		return fmt.Errorf("unmarshaling protobuf: %w", err)
	}

	return nil
}
