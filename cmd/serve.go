package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nationalrail/journeycore/ingest"
	"github.com/nationalrail/journeycore/realtime"
	"github.com/nationalrail/journeycore/supervisor"
	"github.com/nationalrail/journeycore/timetable"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the supervisor: startup, periodic realtime refresh, nightly static refresh",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	if staticURL == "" {
		return fmt.Errorf("--static-url is required")
	}
	if tripUpdatesURL == "" {
		return fmt.Errorf("--trip-updates-url is required")
	}

	in := ingest.NewIngestor(staticURL, filepath.Join(dbDirectory, "feed-cache"), s)
	in.StationTransferURL = transferURL
	in.PlacesURL = placesURL

	rt := realtime.NewMerger(tripUpdatesURL, s)
	rt.AlertsURL = alertsURL
	rt.VehiclePositionsURL = vehiclePositionsURL
	rt.TrainUpdatesURL = trainUpdatesURL

	cache := &timetable.Cache{
		ConnectionsPath: filepath.Join(dbDirectory, "connections.gob"),
		RouteTablePath:  filepath.Join(dbDirectory, "routes.gob"),
	}

	sup := supervisor.New(supervisor.Config{}, s, in, rt, cache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sup.Run(ctx)
}
