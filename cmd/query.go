package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nationalrail/journeycore/csa"
	"github.com/nationalrail/journeycore/ingest"
	"github.com/nationalrail/journeycore/raptor"
	"github.com/nationalrail/journeycore/store"
	"github.com/nationalrail/journeycore/timetable"
)

// defaultMaxRounds bounds the number of vehicle legs a RAPTOR query will
// consider before giving up.
const defaultMaxRounds = 8

var (
	engine    string
	depArg    int64
	arrArg    int64
	t0Arg     int32
	maxRounds int
	visualize bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Runs a one-shot earliest-arrival query against the built (or cached) timetable",
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&engine, "engine", "csa", "query engine: csa or raptor")
	queryCmd.Flags().Int64Var(&depArg, "dep", 0, "departure station numeric id")
	queryCmd.Flags().Int64Var(&arrArg, "arr", 0, "arrival station numeric id")
	queryCmd.Flags().Int32Var(&t0Arg, "t0", 0, "earliest departure time, seconds past service-day midnight")
	queryCmd.Flags().IntVar(&maxRounds, "rounds", defaultMaxRounds, "maximum vehicle legs (raptor only)")
	queryCmd.Flags().BoolVar(&visualize, "visualize", false, "print the found journey as a graphviz DOT graph; never changes query semantics")
}

func runQuery(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	cache := &timetable.Cache{
		ConnectionsPath: filepath.Join(dbDirectory, "connections.gob"),
		RouteTablePath:  filepath.Join(dbDirectory, "routes.gob"),
	}

	// Same CacheDir convention as the ingest/serve commands, read-only here:
	// this keys the cache off the feed version the last ingest persisted,
	// so a one-shot query never mistakes a stale cache for the current feed.
	version := ingest.NewIngestor(staticURL, filepath.Join(dbDirectory, "feed-cache"), s).FeedVersion()

	switch engine {
	case "csa":
		list, err := cache.LoadConnections(s, version)
		if err != nil {
			return fmt.Errorf("loading connection list: %w", err)
		}

		journey, err := csa.Query(list, depArg, arrArg, t0Arg)
		var noJourney *csa.ErrNoJourney
		if errors.As(err, &noJourney) {
			fmt.Println("no journey found")
			return nil
		}
		if err != nil {
			return fmt.Errorf("csa query: %w", err)
		}

		printCSAJourney(journey)
		if visualize {
			printCSADot(journey)
		}

	case "raptor":
		table, err := cache.LoadRouteTable(s, version)
		if err != nil {
			return fmt.Errorf("loading route table: %w", err)
		}

		transfers, err := transferSeconds(s)
		if err != nil {
			return fmt.Errorf("loading transfer times: %w", err)
		}

		journey, err := raptor.Query(table, transfers, depArg, arrArg, t0Arg, maxRounds)
		var noJourney *raptor.ErrNoJourney
		if errors.As(err, &noJourney) {
			fmt.Println("no journey found")
			return nil
		}
		if err != nil {
			return fmt.Errorf("raptor query: %w", err)
		}

		printRaptorJourney(journey)
		if visualize {
			printRaptorDot(journey)
		}

	default:
		return fmt.Errorf("unknown engine %q (want csa or raptor)", engine)
	}

	return nil
}

func transferSeconds(s *store.SQLiteStore) (map[int64]int32, error) {
	transfers, err := s.ListTransferTimes()
	if err != nil {
		return nil, err
	}

	out := map[int64]int32{}
	for _, t := range transfers {
		out[t.StopNumericID] = t.Seconds
	}
	return out, nil
}

func printCSAJourney(j *csa.Journey) {
	for _, c := range j.Connections {
		fmt.Printf("%d -> %d dep=%d arr=%d trip=%d\n", c.DepStation, c.ArrStation, c.DepTime, c.ArrTime, c.TripID)
	}
	fmt.Println("arrival:", j.Arrival)
}

func printCSADot(j *csa.Journey) {
	fmt.Println("digraph journey {")
	for _, c := range j.Connections {
		fmt.Printf("  %d -> %d [label=\"trip %d\"];\n", c.DepStation, c.ArrStation, c.TripID)
	}
	fmt.Println("}")
}

func printRaptorJourney(j *raptor.Journey) {
	for _, p := range j.Parts {
		if p.Kind == raptor.LegVehicle {
			fmt.Printf("vehicle %d->%d dep=%d arr=%d trip=%d\n", p.From.StationID, p.To.StationID, p.Departure, p.Arrival, p.TripID)
		} else {
			fmt.Printf("transfer %d->%d duration=%ds\n", p.From.StationID, p.To.StationID, p.Duration)
		}
	}
	fmt.Println("arrival:", j.Arrival)
}

func printRaptorDot(j *raptor.Journey) {
	fmt.Println("digraph journey {")
	for _, p := range j.Parts {
		label := "transfer"
		if p.Kind == raptor.LegVehicle {
			label = fmt.Sprintf("trip %d", p.TripID)
		}
		fmt.Printf("  %d -> %d [label=\"%s\"];\n", p.From.StationID, p.To.StationID, label)
	}
	fmt.Println("}")
}
