package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

var (
	// ErrNotFound is returned when no observations are held.
	ErrNotFound = errors.New("no observations")
)

// MemoryStore is a concurrency-safe in-memory observation history. It serves
// window queries for stations without an archive database.
type MemoryStore struct {
	mu sync.RWMutex

	// ordered by timestamp, oldest first
	history []weather.Observation

	// retention configuration
	maxHistory int           // max number of observations kept
	maxAge     time.Duration // optional max age for observations

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save inserts an observation in timestamp order and enforces retention.
func (s *MemoryStore) Save(obs weather.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if n == 0 || s.history[n-1].Timestamp <= obs.Timestamp {
		s.history = append(s.history, obs)
	} else {
		i := sort.Search(n, func(i int) bool { return s.history[i].Timestamp > obs.Timestamp })
		s.history = append(s.history, weather.Observation{})
		copy(s.history[i+1:], s.history[i:])
		s.history[i] = obs
	}

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		over := len(s.history) - s.maxHistory
		s.history = s.history[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge).Unix()
		i := sort.Search(len(s.history), func(i int) bool { return s.history[i].Timestamp >= cutoff })
		if i > 0 {
			s.history = s.history[i:]
		}
	}
}

// Len reports the number of observations held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Latest returns the most recent observation.
func (s *MemoryStore) Latest() (weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return weather.Observation{}, ErrNotFound
	}
	return s.history[len(s.history)-1], nil
}

// Range returns all observations with from < ts <= to.
func (s *MemoryStore) Range(from, to time.Time) []weather.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := s.bounds(from.Unix(), to.Unix())
	out := make([]weather.Observation, hi-lo)
	copy(out, s.history[lo:hi])
	return out
}

// bounds returns the index range of observations in (from, to]. Callers hold
// the read lock.
func (s *MemoryStore) bounds(from, to int64) (int, int) {
	lo := sort.Search(len(s.history), func(i int) bool { return s.history[i].Timestamp > from })
	hi := sort.Search(len(s.history), func(i int) bool { return s.history[i].Timestamp > to })
	return lo, hi
}

// Window implements weather.Source.
func (s *MemoryStore) Window(ctx context.Context, q weather.Query) ([]weather.Sample, error) {
	if err := q.Window.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slots := q.Slots()
	out := make([]weather.Sample, len(slots))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, slot := range slots {
		lo, hi := s.bounds(slot.Start.Unix(), slot.End.Unix())
		out[i] = weather.Aggregate(q.Agg, slot.End.Unix(), points(s.history[lo:hi], q.Metric))
	}
	return out, nil
}

// MonthlyAverages implements weather.MonthlySource over whatever history is
// retained: the per-month aggregate of every (year, month) in loc, averaged
// across years.
func (s *MemoryStore) MonthlyAverages(ctx context.Context, metric weather.Metric, agg weather.Aggregation, loc *time.Location) ([]weather.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if agg != weather.AggSum && agg != weather.AggAvg {
		return nil, fmt.Errorf("monthly %s not supported", agg)
	}

	if loc == nil {
		loc = time.UTC
	}

	type monthKey struct {
		year  int
		month time.Month
	}

	s.mu.RLock()
	byMonth := make(map[monthKey][]weather.Point)
	for _, obs := range s.history {
		v, ok := obs.Values[metric]
		if !ok {
			continue
		}
		t := time.Unix(obs.Timestamp, 0).In(loc)
		k := monthKey{t.Year(), t.Month()}
		byMonth[k] = append(byMonth[k], weather.Point{Timestamp: obs.Timestamp, Value: v})
	}
	s.mu.RUnlock()

	var sums [12]float64
	var counts [12]int
	for k, pts := range byMonth {
		sample := weather.Aggregate(agg, 0, pts)
		sums[k.month-1] += sample.Value
		counts[k.month-1]++
	}

	out := make([]weather.Sample, 12)
	for m := 0; m < 12; m++ {
		if counts[m] > 0 {
			out[m] = weather.Sample{Value: sums[m] / float64(counts[m]), Valid: true}
		}
	}
	return out, nil
}

// points extracts metric values from observations. Wind direction points are
// weighted by the wind speed reported alongside them.
func points(history []weather.Observation, metric weather.Metric) []weather.Point {
	var out []weather.Point
	for _, obs := range history {
		v, ok := obs.Values[metric]
		if !ok {
			continue
		}
		p := weather.Point{Timestamp: obs.Timestamp, Value: v, Weight: 1}
		if metric == weather.WindDir {
			if speed, ok := obs.Values[weather.WindSpeed]; ok {
				p.Weight = speed
			}
		}
		out = append(out, p)
	}
	return out
}
