package clientraw

import (
	"math"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

type fallbackMode int

const (
	fallbackZero fallbackMode = iota
	fallbackSentinel
	fallbackSkip
)

// Fallback decides what a field renders when its value is unavailable.
type Fallback struct {
	mode fallbackMode
	text string
}

// Zero renders a numeric zero at the field's precision.
func Zero() Fallback { return Fallback{mode: fallbackZero} }

// Sentinel renders a fixed text.
func Sentinel(text string) Fallback { return Fallback{mode: fallbackSentinel, text: text} }

// SkipInvalid drops unavailable inputs of a combined field and only falls
// back to zero when none remain.
func SkipInvalid() Fallback { return Fallback{mode: fallbackSkip} }

// Text maps an absent reason to the field's sentinel text.
func (f Fallback) Text(reason weather.AbsentReason, places int) string {
	if f.mode == fallbackSentinel {
		return f.text
	}
	return FormatFloat(0, places)
}

// Numeric describes how a numeric field is rendered.
type Numeric struct {
	Places   int
	Convert  func(float64) float64
	Fallback Fallback
}

// Resolve renders r according to n.
func Resolve(r weather.Result, n Numeric) string {
	if r.OK() && n.Convert != nil {
		r = r.Map(n.Convert)
	}
	if !r.OK() {
		return n.Fallback.Text(r.Reason, n.Places)
	}
	return FormatFloat(r.Value, n.Places)
}

// ResolveMany combines several results into one field. With SkipInvalid only
// the available inputs are passed to combine; with any other fallback a single
// unavailable input makes the whole field fall back.
func ResolveMany(results []weather.Result, combine func(vals []float64) float64, n Numeric) string {
	return Resolve(combineResults(results, combine, n.Fallback.mode == fallbackSkip), n)
}

func combineResults(results []weather.Result, combine func([]float64) float64, skip bool) weather.Result {
	vals := make([]float64, 0, len(results))
	for _, r := range results {
		if !r.OK() {
			if skip {
				continue
			}
			return r
		}
		vals = append(vals, r.Value)
	}
	if len(vals) == 0 {
		return weather.Absent(weather.ReasonAbsent)
	}
	v := combine(vals)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return weather.Absent(weather.ReasonComputation)
	}
	return weather.Value(v)
}

// Sum adds all values.
func Sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}
