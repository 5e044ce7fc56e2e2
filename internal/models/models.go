package models

import (
	"database/sql"
)

// Tags carried in the Weather field of an error record.
const (
	TagFetchError = "fetch error"
	TagDataError  = "data error"
)

// NotAvailable is the date of an error record and the display value of an absent temperature.
const NotAvailable = "N/A"

type AreaRef struct {
	Code string
	Name string
}

type ForecastRecord struct {
	AreaCode string
	Date     string // YYYY-MM-DD, taken from the weather series axis
	Weather  string
	TempMin  sql.NullFloat64
	TempMax  sql.NullFloat64
}

// ErrorRecord returns the sentinel substituted for a forecast that could not be
// fetched or parsed.
func ErrorRecord(tag string) ForecastRecord {
	return ForecastRecord{Date: NotAvailable, Weather: tag}
}

// IsError reports whether r is an error record.
func (r ForecastRecord) IsError() bool {
	return r.Date == NotAvailable && (r.Weather == TagFetchError || r.Weather == TagDataError)
}

type StoredForecast struct {
	ID int64
	ForecastRecord
}
