package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nationalrail/journeycore/ingest"
	"github.com/nationalrail/journeycore/store"
)

var schemaOnly bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Loads the static archive (and station-transfer side feed) into the store",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&schemaOnly, "schema-only", false, "create the store schema and exit, without fetching any feed")
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(store.SQLiteConfig{OnDisk: true, Directory: dbDirectory})
}

func runIngest(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	if schemaOnly {
		fmt.Println("ingest: schema initialized, skipping fetch")
		return nil
	}

	if staticURL == "" {
		return fmt.Errorf("--static-url is required")
	}

	in := ingest.NewIngestor(staticURL, filepath.Join(dbDirectory, "feed-cache"), s)
	in.StationTransferURL = transferURL
	in.PlacesURL = placesURL

	return in.Run(context.Background())
}
