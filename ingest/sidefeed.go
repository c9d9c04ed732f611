package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/nationalrail/journeycore/model"
	"github.com/nationalrail/journeycore/store"
)

// stationTransferCSV is one row of the tabular transfer-minutes-by-
// station-code file.
type stationTransferCSV struct {
	StationCode    string `csv:"station_code"`
	TransferMinute int32  `csv:"transfer_time"`
}

// stopPlacesExport is the root of the XML-gzipped place-to-platforms
// export: every physical station ("stop place") lists the quays (platform
// ids) it comprises.
type stopPlacesExport struct {
	XMLName    xml.Name    `xml:"stopplaces"`
	StopPlaces []stopPlace `xml:"stopplace"`
}

type stopPlace struct {
	PlaceCode string `xml:"placecode,attr"`
	Quays     []quay `xml:"quays>quay"`
}

type quay struct {
	ID string `xml:"ID"`
}

// loadTransfers fetches the station-transfer minutes file and the place-
// to-platforms export, joins them against the stops just written by
// ParseStatic, and writes one model.TransferTime per platform.
func (in *Ingestor) loadTransfers(ctx context.Context, w store.FeedWriter, stopNumericIDs map[string]int64) error {
	minutesByCode, err := in.fetchStationTransfers(ctx)
	if err != nil {
		return fmt.Errorf("fetching station transfers: %w", err)
	}

	places, err := in.fetchPlaceTransfers(ctx)
	if err != nil {
		return fmt.Errorf("fetching place transfers: %w", err)
	}

	for _, place := range places {
		minutes, ok := minutesByCode[place.PlaceCode]
		if !ok {
			continue
		}

		for _, q := range place.Quays {
			numericID, ok := stopNumericIDs[q.ID]
			if !ok {
				continue
			}

			if err := w.WriteTransferTime(model.TransferTime{
				StopID:        q.ID,
				StopNumericID: numericID,
				Seconds:       minutes * 60,
			}); err != nil {
				return fmt.Errorf("writing transfer time: %w", err)
			}
		}
	}

	return nil
}

func (in *Ingestor) fetchStationTransfers(ctx context.Context) (map[string]int32, error) {
	body, err := in.httpGet(ctx, in.StationTransferURL)
	if err != nil {
		return nil, err
	}

	rows := []*stationTransferCSV{}
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return nil, errors.Wrap(err, "unmarshaling station transfer file")
	}

	minutes := map[string]int32{}
	for _, r := range rows {
		minutes[r.StationCode] = r.TransferMinute
	}

	return minutes, nil
}

func (in *Ingestor) fetchPlaceTransfers(ctx context.Context) ([]stopPlace, error) {
	body, err := in.httpGet(ctx, in.PlacesURL)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "opening gzip stream")
	}
	defer gz.Close()

	var export stopPlacesExport
	if err := xml.NewDecoder(gz).Decode(&export); err != nil {
		return nil, errors.Wrap(err, "decoding places export")
	}

	return export.StopPlaces, nil
}

func (in *Ingestor) httpGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := in.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
