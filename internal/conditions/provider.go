package conditions

import (
	"context"
	"errors"
	"time"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

var (
	ErrNoProviders    = errors.New("no conditions providers configured")
	ErrNoReadings     = errors.New("no successful provider readings")
	errMissingAPIKey  = errors.New("api key is not configured")
	errMissingCoords  = errors.New("station coordinates are not configured")
	errMissingStation = errors.New("station city is not configured")
)

// Reading is one provider's view of the current weather at the station.
type Reading struct {
	ProviderName string
	Timestamp    time.Time
	Condition    weather.Condition
	// Forecast is the expected condition for the coming day, if the provider
	// reports one.
	Forecast weather.Condition
	Text     string
}

// Provider abstracts a conditions source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, st weather.Station) (Reading, error)
}

// Icon maps a condition onto the Weather Display icon set. Unknown
// conditions have no icon.
func Icon(c weather.Condition) (int, bool) {
	switch c {
	case weather.ConditionClear:
		return 0, true
	case weather.ConditionMist:
		return 10, true
	case weather.ConditionCloudy:
		return 18, true
	case weather.ConditionRain:
		return 20, true
	case weather.ConditionSnow:
		return 25, true
	case weather.ConditionStorm:
		return 31, true
	}
	return 0, false
}
