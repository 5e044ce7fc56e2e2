package forecast

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lox/jmaweather/internal/ingest"
	"github.com/lox/jmaweather/internal/models"
)

// DefaultWindow is the short-range forecast horizon in days.
const DefaultWindow = 3

const dateLayout = "2006-01-02"

// timeDefine layouts, with and without the colon in the offset.
var timeDefineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
}

// Align merges the document's weather series with its temperature series into
// one record per day. Dates come only from the weather series' time axis and
// records keep its order. Temperatures are matched by position; a missing
// series or index leaves the value absent. At most window records are emitted
// and never more than the weather series holds.
//
// Align never fails: any structural problem yields a single data error record.
func Align(doc *ingest.Document, areaCode string, window int) []models.ForecastRecord {
	records, err := align(doc, areaCode, window)
	if err != nil {
		return dataError()
	}
	return records
}

// align is Align reporting why a document could not be aligned.
func align(doc *ingest.Document, areaCode string, window int) (records []models.ForecastRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("align: %v", r)
		}
	}()

	if doc == nil {
		return nil, errors.New("no document")
	}
	weather := doc.WeatherSeries()
	if !weather.OK {
		return nil, errors.New("missing weather series")
	}
	if window <= 0 {
		window = DefaultWindow
	}

	n := min(window, len(weather.Series.TimeDefines), len(weather.Series.Values))
	if n == 0 {
		return nil, errors.New("empty weather series")
	}

	tempMin := doc.TempMinSeries()
	tempMax := doc.TempMaxSeries()

	records = make([]models.ForecastRecord, 0, n)
	for i := 0; i < n; i++ {
		date, err := parseDate(weather.Series.TimeDefines[i])
		if err != nil {
			return nil, err
		}
		records = append(records, models.ForecastRecord{
			AreaCode: areaCode,
			Date:     date,
			Weather:  weather.Series.Values[i],
			TempMin:  tempAt(tempMin, i),
			TempMax:  tempAt(tempMax, i),
		})
	}
	return records, nil
}

func dataError() []models.ForecastRecord {
	return []models.ForecastRecord{models.ErrorRecord(models.TagDataError)}
}

// parseDate truncates an offset-bearing timestamp to its calendar date in that
// same offset.
func parseDate(s string) (string, error) {
	for _, layout := range timeDefineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), nil
		}
	}
	return "", fmt.Errorf("parse time define %q", s)
}

// tempAt returns the numeric value at index i. JMA leaves past slots as empty
// strings; those and any other non-numeric or non-finite value are absent.
func tempAt(series ingest.OptionalSeries, i int) sql.NullFloat64 {
	v, ok := series.At(i)
	if !ok {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
