package forecast

import (
	"strings"

	"github.com/lox/jmaweather/internal/models"
)

// WeatherCondition represents a categorized weather state derived from the
// JMA forecast text.
type WeatherCondition string

const (
	ConditionClear   WeatherCondition = "clear"
	ConditionCloudy  WeatherCondition = "cloudy"
	ConditionRain    WeatherCondition = "rain"
	ConditionSnow    WeatherCondition = "snow"
	ConditionStorm   WeatherCondition = "storm"
	ConditionUnknown WeatherCondition = "unknown"
)

// Base markers in the order they are tried when several share a position.
var conditionMarkers = []struct {
	marker    string
	condition WeatherCondition
}{
	{"晴", ConditionClear},
	{"曇", ConditionCloudy},
	{"くもり", ConditionCloudy},
	{"雨", ConditionRain},
}

// ExtractCondition categorizes a JMA weather phrase such as "くもり　時々　雨".
// Thunder and snow take priority anywhere in the phrase; otherwise the
// leading phenomenon wins, so "晴れ　のち　くもり" is clear.
func ExtractCondition(weather string) WeatherCondition {
	weather = strings.TrimSpace(weather)
	if weather == "" || weather == models.TagFetchError || weather == models.TagDataError {
		return ConditionUnknown
	}

	// Storm conditions (highest priority)
	if strings.Contains(weather, "雷") {
		return ConditionStorm
	}
	if strings.Contains(weather, "雪") {
		return ConditionSnow
	}

	best, bestAt := ConditionUnknown, -1
	for _, m := range conditionMarkers {
		at := strings.Index(weather, m.marker)
		if at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = m.condition, at
		}
	}
	return best
}
