package parse

import (
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/nationalrail/journeycore/model"
	"github.com/nationalrail/journeycore/store"
)

type AgencyCSV struct {
	ID       string `csv:"agency_id"`
	Name     string `csv:"agency_name"`
	URL      string `csv:"agency_url"`
	Timezone string `csv:"agency_timezone"`
}

// ParseAgency loads agency.txt, returning the set of known agency ids and
// the feed-wide timezone (every agency in a feed must share one).
func ParseAgency(writer store.FeedWriter, data io.Reader) (map[string]bool, string, error) {
	agencyCsv := []*AgencyCSV{}
	if err := gocsv.Unmarshal(data, &agencyCsv); err != nil {
		return nil, "", errors.Wrap(err, "unmarshaling agency.txt")
	}

	if len(agencyCsv) == 0 {
		return nil, "", errors.New("no agency record found")
	}

	agencyTz := map[string]bool{}
	for _, a := range agencyCsv {
		agencyTz[a.Timezone] = true
	}
	if len(agencyTz) != 1 {
		return nil, "", errors.New("multiple agency_timezone values")
	}

	tz := agencyCsv[0].Timezone
	if tz == "" {
		return nil, "", errors.New("missing agency_timezone")
	}
	_, err := time.LoadLocation(tz)
	if err != nil {
		return nil, "", errors.Wrapf(err, "agency_timezone '%s' is invalid", tz)
	}

	agency := map[string]bool{}
	for _, a := range agencyCsv {
		if agency[a.ID] {
			return nil, "", errors.Errorf("duplicated agency_id: '%s'", a.ID)
		}
		agency[a.ID] = true

		if a.Name == "" {
			return nil, "", errors.New("missing agency_name")
		}

		if a.URL == "" {
			return nil, "", errors.New("missing agency_url")
		}

		if err := writer.WriteAgency(model.Agency{
			ID:       a.ID,
			Name:     a.Name,
			URL:      a.URL,
			Timezone: tz,
		}); err != nil {
			return nil, "", errors.Wrap(err, "writing agency")
		}
	}

	return agency, tz, nil
}
