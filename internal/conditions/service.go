package conditions

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/weather-clientraw/internal/clientraw"
	"github.com/i474232898/weather-clientraw/internal/logging"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

// Summary is the combined view of all provider readings.
type Summary struct {
	Timestamp time.Time
	Condition weather.Condition
	Forecast  weather.Condition
	Text      string
	Providers []string
}

// Service polls the configured providers and keeps the latest summary.
type Service struct {
	station   weather.Station
	providers []Provider
	maxAge    time.Duration

	mu     sync.RWMutex
	latest Summary
	now    func() time.Time
}

// NewService creates a new Service. Summaries older than maxAge are ignored
// by Current.
func NewService(station weather.Station, providers []Provider, maxAge time.Duration) *Service {
	return &Service{
		station:   station,
		providers: providers,
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// Refresh fetches from all providers concurrently and keeps the aggregated
// result. When every provider fails, the previous summary is kept.
func (s *Service) Refresh(ctx context.Context) error {
	if len(s.providers) == 0 {
		return ErrNoProviders
	}

	var (
		wg       sync.WaitGroup
		readings = make([]*Reading, len(s.providers))
	)

	for i, p := range s.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()

			r, err := p.Fetch(ctx, s.station)
			if err != nil {
				// Log and continue; we want partial success when possible.
				logging.Error().Err(err).Str("provider", p.Name()).Msg("conditions fetch failed")
				return
			}
			readings[i] = &r
		}(i, p)
	}

	wg.Wait()

	ok := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if r != nil {
			ok = append(ok, *r)
		}
	}
	if len(ok) == 0 {
		logging.Info().Str("station", s.station.Name).Msg("no successful conditions readings; keeping last summary")
		return ErrNoReadings
	}

	summary := AggregateReadings(ok)
	s.mu.Lock()
	s.latest = summary
	s.mu.Unlock()

	logging.Debug().
		Str("condition", string(summary.Condition)).
		Str("forecast", string(summary.Forecast)).
		Strs("providers", summary.Providers).
		Msg("conditions refreshed")
	return nil
}

// Latest returns the last aggregated summary.
func (s *Service) Latest() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Current renders the latest summary for record builds.
func (s *Service) Current() clientraw.Conditions {
	summary := s.Latest()
	if summary.Timestamp.IsZero() {
		return clientraw.NoConditions
	}
	if s.maxAge > 0 && s.now().Sub(summary.Timestamp) > s.maxAge {
		return clientraw.NoConditions
	}

	return clientraw.Conditions{
		Icon:         iconResult(summary.Condition),
		ForecastIcon: iconResult(summary.Forecast),
		Text:         summary.Text,
	}
}

func iconResult(c weather.Condition) weather.Result {
	icon, ok := Icon(c)
	if !ok {
		return weather.Absent(weather.ReasonAbsent)
	}
	return weather.Value(float64(icon))
}

// AggregateReadings combines provider readings into a single Summary.
// Conditions are selected by majority; on a tie the condition that reached
// the count first wins. Unknown conditions never win over a known one.
func AggregateReadings(readings []Reading) Summary {
	if len(readings) == 0 {
		return Summary{Condition: weather.ConditionUnknown, Forecast: weather.ConditionUnknown}
	}

	var newest time.Time
	current := make([]weather.Condition, 0, len(readings))
	forecast := make([]weather.Condition, 0, len(readings))
	providers := make([]string, 0, len(readings))

	for _, r := range readings {
		current = append(current, r.Condition)
		forecast = append(forecast, r.Forecast)
		providers = append(providers, r.ProviderName)
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}

	best := majority(current)

	// Prefer a provider's own wording for the winning condition.
	text := ""
	for _, r := range readings {
		if r.Condition == best && r.Text != "" {
			text = r.Text
			break
		}
	}
	if text == "" && best != weather.ConditionUnknown {
		text = string(best)
	}

	return Summary{
		Timestamp: newest,
		Condition: best,
		Forecast:  majority(forecast),
		Text:      text,
		Providers: providers,
	}
}

func majority(conds []weather.Condition) weather.Condition {
	counts := make(map[weather.Condition]int)
	best := weather.ConditionUnknown
	bestCount := 0
	for _, c := range conds {
		if c == "" || c == weather.ConditionUnknown {
			continue
		}
		counts[c]++
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best
}
