package conditions

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-clientraw/internal/common"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

// OpenWeatherProvider reads current conditions from OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg common.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		httpCfg: common.HTTPClientConfig{
			Client:  client,
			Backoff: common.DefaultBackoff(),
		},
		circuit: common.NewBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, st weather.Station) (Reading, error) {
	if p.apiKey == "" {
		return Reading{}, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")

		switch {
		case st.Latitude.Hemisphere != 0 && st.Longitude.Hemisphere != 0:
			values.Set("lat", strconv.FormatFloat(st.Latitude.Signed(), 'f', 4, 64))
			values.Set("lon", strconv.FormatFloat(st.Longitude.Signed(), 'f', 4, 64))
		case st.City != "":
			q := st.City
			if st.Country != "" {
				q = fmt.Sprintf("%s,%s", st.City, st.Country)
			}
			values.Set("q", q)
		default:
			return nil, fmt.Errorf("openweather: %w", errMissingStation)
		}

		return http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := common.DoWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return Reading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Dt      int64          `json:"dt"`
		Weather []owmCondition `json:"weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Reading{}, err
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	var text string
	if len(payload.Weather) > 0 {
		text = payload.Weather[0].Description
	}

	return Reading{
		ProviderName: p.name,
		Timestamp:    ts,
		Condition:    mapOpenWeatherCondition(payload.Weather),
		Forecast:     weather.ConditionUnknown,
		Text:         text,
	}, nil
}

type owmCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

func mapOpenWeatherCondition(items []owmCondition) weather.Condition {
	if len(items) == 0 {
		return weather.ConditionUnknown
	}
	switch items[0].Main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze":
		return weather.ConditionMist
	default:
		return weather.ConditionUnknown
	}
}
