package conditions

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-clientraw/internal/common"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

// WeatherAPIProvider reads current conditions and tomorrow's outlook from
// WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg common.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: common.HTTPClientConfig{
			Client:  client,
			Backoff: common.DefaultBackoff(),
		},
		circuit: common.NewBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, st weather.Station) (Reading, error) {
	if p.apiKey == "" {
		return Reading{}, fmt.Errorf("weatherapi: %w", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("days", "2")
		// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
		switch {
		case st.Latitude.Hemisphere != 0 && st.Longitude.Hemisphere != 0:
			values.Set("q", fmt.Sprintf("%.4f,%.4f", st.Latitude.Signed(), st.Longitude.Signed()))
		case st.City != "":
			q := st.City
			if st.Country != "" {
				q = fmt.Sprintf("%s,%s", st.City, st.Country)
			}
			values.Set("q", q)
		default:
			return nil, fmt.Errorf("weatherapi: %w", errMissingStation)
		}

		return http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := common.DoWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return Reading{}, err
	}
	defer resp.Body.Close()

	type conditionText struct {
		Text string `json:"text"`
	}
	var payload struct {
		Current struct {
			LastUpdatedEpoch int64         `json:"last_updated_epoch"`
			Condition        conditionText `json:"condition"`
		} `json:"current"`
		Forecast struct {
			ForecastDay []struct {
				Day struct {
					Condition conditionText `json:"condition"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Reading{}, err
	}

	ts := time.Now().UTC()
	if payload.Current.LastUpdatedEpoch > 0 {
		ts = time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
	}

	forecast := weather.ConditionUnknown
	if days := payload.Forecast.ForecastDay; len(days) > 1 {
		forecast = mapWeatherAPICondition(days[1].Day.Condition.Text)
	}

	return Reading{
		ProviderName: p.name,
		Timestamp:    ts,
		Condition:    mapWeatherAPICondition(payload.Current.Condition.Text),
		Forecast:     forecast,
		Text:         payload.Current.Condition.Text,
	}, nil
}

func mapWeatherAPICondition(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case common.HasAny(text, "thunder", "storm"):
		return weather.ConditionStorm
	case common.HasAny(text, "snow", "sleet", "blizzard", "ice"):
		return weather.ConditionSnow
	case common.HasAny(text, "rain", "shower", "drizzle"):
		return weather.ConditionRain
	case common.HasAny(text, "mist", "fog"):
		return weather.ConditionMist
	case common.HasAny(text, "cloud", "overcast"):
		return weather.ConditionCloudy
	case common.HasAny(text, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
