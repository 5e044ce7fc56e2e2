package api

import (
	"database/sql"

	"github.com/lox/jmaweather/internal/forecast"
	"github.com/lox/jmaweather/internal/models"
	"github.com/lox/jmaweather/internal/store"
)

type areaView struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// recordView is a forecast day as served over JSON. Absent temperatures are null.
type recordView struct {
	ID        int64                     `json:"id,omitempty"`
	AreaCode  string                    `json:"area_code,omitempty"`
	Date      string                    `json:"date"`
	Weather   string                    `json:"weather"`
	Condition forecast.WeatherCondition `json:"condition"`
	TempMin   *float64                  `json:"temp_min"`
	TempMax   *float64                  `json:"temp_max"`
}

type refreshView struct {
	AreaCode   string       `json:"area_code"`
	Records    []recordView `json:"records"`
	Stored     int          `json:"stored"`
	StoreError string       `json:"store_error,omitempty"`
}

type runView struct {
	ID            int64   `json:"id"`
	StartedAt     string  `json:"started_at"`
	FinishedAt    *string `json:"finished_at"`
	Source        string  `json:"source"`
	Endpoint      string  `json:"endpoint"`
	AreaCode      string  `json:"area_code"`
	HTTPStatus    *int64  `json:"http_status"`
	RecordsStored *int64  `json:"records_stored"`
	QualityFlags  *int64  `json:"quality_flags"`
	FlagDetail    string  `json:"quality_flag_detail,omitempty"`
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullInt(i sql.NullInt64) *int64 {
	if !i.Valid {
		return nil
	}
	v := i.Int64
	return &v
}

func newRecordView(rec models.ForecastRecord) recordView {
	return recordView{
		AreaCode:  rec.AreaCode,
		Date:      rec.Date,
		Weather:   rec.Weather,
		Condition: forecast.ExtractCondition(rec.Weather),
		TempMin:   nullFloat(rec.TempMin),
		TempMax:   nullFloat(rec.TempMax),
	}
}

func newRecordViews(records []models.ForecastRecord) []recordView {
	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, newRecordView(rec))
	}
	return views
}

func newStoredViews(stored []models.StoredForecast) []recordView {
	views := make([]recordView, 0, len(stored))
	for _, f := range stored {
		v := newRecordView(f.ForecastRecord)
		v.ID = f.ID
		views = append(views, v)
	}
	return views
}

func newRunView(r store.IngestRun) runView {
	v := runView{
		ID:            r.ID,
		StartedAt:     r.StartedAt.UTC().Format(timeFormat),
		Source:        r.Source,
		Endpoint:      r.Endpoint,
		AreaCode:      r.AreaCode,
		HTTPStatus:    nullInt(r.HTTPStatus),
		RecordsStored: nullInt(r.RecordsStored),
		QualityFlags:  nullInt(r.QualityFlags),
		FlagDetail:    r.QualityFlagDetail.String,
		Success:       r.Success,
		Error:         r.ErrorMessage.String,
	}
	if r.FinishedAt.Valid {
		finished := r.FinishedAt.Time.UTC().Format(timeFormat)
		v.FinishedAt = &finished
	}
	return v
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
