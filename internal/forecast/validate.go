package forecast

import (
	"encoding/json"

	"github.com/lox/jmaweather/internal/models"
)

const (
	FlagTempOutOfRange  = "temp_out_of_range"
	FlagTempMinAboveMax = "temp_min_above_max"
	FlagWeatherEmpty    = "weather_empty"
)

// Plausible surface temperature bounds for Japan, with margin.
const (
	minPlausibleTemp = -50
	maxPlausibleTemp = 50
)

// ValidateRecord returns quality flags for an aligned record. Flags are
// advisory; flagged records are still stored.
func ValidateRecord(rec models.ForecastRecord) []string {
	var flags []string

	if rec.IsError() {
		return nil
	}

	if outOfRange(rec.TempMin.Valid, rec.TempMin.Float64) || outOfRange(rec.TempMax.Valid, rec.TempMax.Float64) {
		flags = append(flags, FlagTempOutOfRange)
	}

	if rec.TempMin.Valid && rec.TempMax.Valid && rec.TempMin.Float64 > rec.TempMax.Float64 {
		flags = append(flags, FlagTempMinAboveMax)
	}

	if rec.Weather == "" {
		flags = append(flags, FlagWeatherEmpty)
	}

	return flags
}

func outOfRange(valid bool, v float64) bool {
	return valid && (v < minPlausibleTemp || v > maxPlausibleTemp)
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
