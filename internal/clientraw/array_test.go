package clientraw

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

func values(ts int64, step int64, vals ...float64) []weather.Sample {
	out := make([]weather.Sample, len(vals))
	for i, v := range vals {
		out[i] = weather.Sample{Timestamp: ts + int64(i)*step, Value: v, Valid: true}
	}
	return out
}

func TestBuildArrayPadsMissingSlots(t *testing.T) {
	got := BuildArray(values(0, 60, 1, 2, 3), 5, places1, OldestFirst)
	assert.Equal(t, []string{"1.0", "2.0", "3.0", "0", "0"}, got)
}

func TestBuildArraySentinelForBadSlots(t *testing.T) {
	samples := values(0, 60, 1, 2, 3)
	samples[1].Valid = false
	samples[2].Value = math.NaN()

	got := BuildArray(samples, 3, places0, OldestFirst)
	assert.Equal(t, []string{"1", "0", "0"}, got)
}

func TestBuildArrayNewestFirst(t *testing.T) {
	got := BuildArray(values(0, 60, 1, 2, 3), 4, places0, NewestFirst)
	assert.Equal(t, []string{"0", "3", "2", "1"}, got)
}

func TestBuildArrayConverts(t *testing.T) {
	got := BuildArray(values(0, 60, 10), 1, knots, OldestFirst)
	assert.Equal(t, []string{"19.4"}, got)
	assert.Nil(t, BuildArray(nil, 0, places0, OldestFirst))
}

func TestBuildRainWindow(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	noon := time.Date(2024, 5, 10, 12, 0, 0, 0, loc).Unix()

	got := BuildRainWindow(values(noon, 60, 1, 2, 3), 3, weather.Value(0), loc)
	assert.Equal(t, []string{"1.0", "3.0", "6.0"}, got)
}

func TestBuildRainWindowResetsAfterMidnightSlot(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	midnight := time.Date(2024, 5, 11, 0, 0, 0, 0, loc).Unix()

	got := BuildRainWindow(values(midnight-60, 60, 1, 2, 3), 3, weather.Value(0), loc)
	assert.Equal(t, []string{"1.0", "3.0", "3.0"}, got)
}

func TestBuildRainWindowSeedAndSkips(t *testing.T) {
	loc := time.UTC
	noon := time.Date(2024, 5, 10, 12, 0, 0, 0, loc).Unix()

	deltas := values(noon, 60, 0.2, 0.4, 0.2)
	deltas[1].Valid = false

	got := BuildRainWindow(deltas, 4, weather.Value(5), loc)
	assert.Equal(t, []string{"5.2", "0.0", "5.4", "0.0"}, got)

	got = BuildRainWindow(values(noon, 60, 0.2), 1, weather.Absent(weather.ReasonSourceError), loc)
	assert.Equal(t, []string{"0.2"}, got)
}

func TestBuildRainWindowEveryMidnightResets(t *testing.T) {
	loc := time.UTC
	day := int64(24 * 3600)
	first := time.Date(2024, 5, 10, 0, 0, 0, 0, loc).Unix()

	got := BuildRainWindow(values(first, day, 1, 2, 3), 3, weather.Value(4), loc)
	assert.Equal(t, []string{"5.0", "2.0", "3.0"}, got)
}

func TestBuildRainWindowSkippedMidnightDoesNotReset(t *testing.T) {
	loc := time.UTC
	midnight := time.Date(2024, 5, 11, 0, 0, 0, 0, loc).Unix()

	deltas := values(midnight-60, 60, 1, 2, 3)
	deltas[1].Valid = false

	got := BuildRainWindow(deltas, 3, weather.Value(0), loc)
	assert.Equal(t, []string{"1.0", "0.0", "4.0"}, got)
}
