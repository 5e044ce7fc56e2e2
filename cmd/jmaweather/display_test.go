package main

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lox/jmaweather/internal/models"
)

func TestFormatTemp(t *testing.T) {
	tests := []struct {
		in   sql.NullFloat64
		want string
	}{
		{sql.NullFloat64{}, "N/A"},
		{sql.NullFloat64{Float64: 25, Valid: true}, "25℃"},
		{sql.NullFloat64{Float64: -2.5, Valid: true}, "-2.5℃"},
		{sql.NullFloat64{Float64: 0, Valid: true}, "0℃"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatTemp(tt.in))
	}
}

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	printRecords(&buf, "130000", []models.ForecastRecord{
		{Date: "2024-05-01", Weather: "晴れ", TempMax: sql.NullFloat64{Float64: 25, Valid: true}},
		models.ErrorRecord(models.TagFetchError),
	})

	out := buf.String()
	assert.Contains(t, out, "== 130000 ==")
	assert.Contains(t, out, "2024-05-01  晴れ\n  最高気温: 25℃\n  最低気温: N/A\n")
	assert.Contains(t, out, "N/A  fetch error\n")
}

func TestPrintStored_Empty(t *testing.T) {
	var buf bytes.Buffer
	printStored(&buf, []models.StoredForecast{})
	assert.Equal(t, "no forecasts stored for that date", strings.TrimSpace(buf.String()))
}

func TestPrintStored(t *testing.T) {
	var buf bytes.Buffer
	printStored(&buf, []models.StoredForecast{
		{ID: 7, ForecastRecord: models.ForecastRecord{AreaCode: "270000", Date: "2024-05-01", Weather: "雨"}},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "7 "))
	assert.Contains(t, lines[1], "270000")
	assert.Contains(t, lines[1], "N/A")
}
