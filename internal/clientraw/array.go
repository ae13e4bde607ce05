package clientraw

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

// Order fixes the direction in which a field group lists its slots.
type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

// BuildArray renders exactly count entries from samples, which are ordered
// oldest first. Slots beyond the samples, absent or mistyped render "0".
func BuildArray(samples []weather.Sample, count int, n Numeric, order Order) []string {
	if count <= 0 {
		return nil
	}
	out := make([]string, count)
	for i := 0; i < count; i++ {
		r := weather.Absent(weather.ReasonOutOfRange)
		if i < len(samples) {
			r = samples[i].Result()
		}
		if r.OK() && n.Convert != nil {
			r = r.Map(n.Convert)
		}
		idx := i
		if order == NewestFirst {
			idx = count - 1 - i
		}
		if !r.OK() {
			out[idx] = SentinelSlot
			continue
		}
		out[idx] = FormatFloat(r.Value, n.Places)
	}
	return out
}

// BuildRainWindow renders a running rain total per slot. The total starts at
// seed (zero when unavailable) and accumulates each slot's delta. A slot whose
// delta cannot be read renders "0.0" and leaves the total untouched. After a
// slot whose timestamp falls exactly on local midnight the total restarts at
// zero.
func BuildRainWindow(deltas []weather.Sample, count int, seed weather.Result, loc *time.Location) []string {
	if count <= 0 {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}

	total := decimal.Zero
	if seed.OK() {
		total = decimal.NewFromFloat(seed.Value)
	}

	out := make([]string, count)
	for i := 0; i < count; i++ {
		if i >= len(deltas) {
			out[i] = SentinelRain
			continue
		}
		r := deltas[i].Result()
		if !r.OK() {
			out[i] = SentinelRain
			continue
		}
		total = total.Add(decimal.NewFromFloat(r.Value))
		out[i] = total.StringFixed(1)

		ts := time.Unix(deltas[i].Timestamp, 0).In(loc)
		if ts.Equal(weather.LocalMidnight(ts)) {
			total = decimal.Zero
		}
	}
	return out
}
