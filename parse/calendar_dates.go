package parse

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/nationalrail/journeycore/model"
	"github.com/nationalrail/journeycore/store"
)

type CalendarDateCSV struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType int8   `csv:"exception_type"`
}

func ParseCalendarDates(
	writer store.FeedWriter,
	data io.Reader,
) (map[string]bool, string, string, error) {

	calendarDateCsv := []*CalendarDateCSV{}
	if err := gocsv.Unmarshal(data, &calendarDateCsv); err != nil {
		return nil, "", "", errors.Wrap(err, "unmarshaling calendar_dates.txt")
	}

	knownService := map[string]bool{}
	knownServiceDate := map[string]bool{}
	var minDate, maxDate string

	for _, cd := range calendarDateCsv {
		if cd.ExceptionType < 1 || cd.ExceptionType > 2 {
			return nil, "", "", errors.Errorf("illegal exception_type: '%d'", cd.ExceptionType)
		}

		_, err := time.ParseInLocation("20060102", cd.Date, time.UTC)
		if err != nil {
			return nil, "", "", errors.Wrapf(err, "parsing date '%s'", cd.Date)
		}

		serviceDate := fmt.Sprintf("%s-%s", cd.Date, cd.ServiceID)
		if knownServiceDate[serviceDate] {
			return nil, "", "", errors.Errorf("duplicate service/date: '%s'", serviceDate)
		}
		knownServiceDate[serviceDate] = true
		knownService[cd.ServiceID] = true

		if minDate == "" || cd.Date < minDate {
			minDate = cd.Date
		}
		if maxDate == "" || cd.Date > maxDate {
			maxDate = cd.Date
		}

		if err := writer.WriteCalendarDate(model.CalendarDate{
			ServiceID:     cd.ServiceID,
			Date:          cd.Date,
			ExceptionType: cd.ExceptionType,
		}); err != nil {
			return nil, "", "", errors.Wrap(err, "writing calendar_date")
		}
	}

	return knownService, minDate, maxDate, nil
}
