package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "journeycore",
	Short:        "National-scale transit journey planner core",
	Long:         "Ingests a GTFS-family static feed and its realtime streams, builds the CSA and RAPTOR query indices, and answers earliest-arrival queries.",
	SilenceUsage: true,
}

var (
	dbDirectory string

	staticURL   string
	transferURL string
	placesURL   string

	tripUpdatesURL      string
	alertsURL           string
	vehiclePositionsURL string
	trainUpdatesURL     string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDirectory, "db", "./journeycore-data", "directory holding the on-disk store and feed cache")

	rootCmd.PersistentFlags().StringVar(&staticURL, "static-url", "", "static archive URL")
	rootCmd.PersistentFlags().StringVar(&transferURL, "transfer-url", "", "station-transfer minutes CSV URL (optional)")
	rootCmd.PersistentFlags().StringVar(&placesURL, "places-url", "", "place-to-platform XML-gzip export URL (optional)")

	rootCmd.PersistentFlags().StringVar(&tripUpdatesURL, "trip-updates-url", "", "GTFS-Realtime trip updates URL")
	rootCmd.PersistentFlags().StringVar(&alertsURL, "alerts-url", "", "GTFS-Realtime alerts URL (fetched and validated, not applied)")
	rootCmd.PersistentFlags().StringVar(&vehiclePositionsURL, "vehicle-positions-url", "", "GTFS-Realtime vehicle positions URL (fetched and validated, not applied)")
	rootCmd.PersistentFlags().StringVar(&trainUpdatesURL, "train-updates-url", "", "GTFS-Realtime train updates URL (fetched and validated, not applied)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
