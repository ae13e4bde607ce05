package clientraw

import (
	"time"

	"github.com/i474232898/weather-clientraw/internal/units"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

var (
	places0 = Numeric{Places: 0, Fallback: Zero()}
	places1 = Numeric{Places: 1, Fallback: Zero()}
	knots   = Numeric{Places: 1, Convert: units.MSToKnots, Fallback: Zero()}
	perMin  = Numeric{Places: 1, Convert: units.PerHourToPerMinute, Fallback: Zero()}

	// rainTotal adds whichever partial totals are available.
	rainTotal = Numeric{Places: 1, Fallback: SkipInvalid()}
)

type valueFunc func(b *Build) weather.Result

// num renders one numeric position.
func num(name string, n Numeric, value valueFunc) Field {
	return single(name, n.Fallback.Text(weather.ReasonAbsent, n.Places), func(b *Build) string {
		return b.Num(value(b), n)
	})
}

// many renders one numeric position combined from several values.
func many(name string, n Numeric, combine func(vals []float64) float64, parts ...valueFunc) Field {
	return single(name, n.Fallback.Text(weather.ReasonAbsent, n.Places), func(b *Build) string {
		results := make([]weather.Result, len(parts))
		for i, part := range parts {
			results[i] = part(b)
		}
		return b.NumMany(results, combine, n)
	})
}

func current(m weather.Metric) valueFunc {
	return func(b *Build) weather.Result { return b.Current(m) }
}

func today(m weather.Metric, agg weather.Aggregation) valueFunc {
	return func(b *Build) weather.Result { return b.Value(b.Today(m, agg)) }
}

func over(m weather.Metric, agg weather.Aggregation, span func(o Options) time.Duration) valueFunc {
	return func(b *Build) weather.Result { return b.Value(b.Over(m, agg, span(b.Options))) }
}

func fixed(d time.Duration) func(Options) time.Duration {
	return func(Options) time.Duration { return d }
}

// firstOf returns the first present result.
func firstOf(fns ...valueFunc) valueFunc {
	return func(b *Build) weather.Result {
		r := weather.Absent(weather.ReasonAbsent)
		for _, fn := range fns {
			if r = fn(b); r.OK() {
				return r
			}
		}
		return r
	}
}

// stamp renders the build time with a Go time layout.
func stamp(name, layout string) Field {
	return single(name, SentinelSlot, func(b *Build) string { return b.Now.Format(layout) })
}

// clock renders the local HH:MM of the sample time of q, "00:00" when absent.
func clock(name string, q func(b *Build) weather.Query) Field {
	return single(name, SentinelClock, func(b *Build) string {
		s, reason := b.Sample(q(b))
		if reason == weather.ReasonNone && !s.Valid {
			reason = weather.ReasonAbsent
		}
		if reason != weather.ReasonNone {
			b.countFallback(reason)
			return SentinelClock
		}
		return time.Unix(s.Timestamp, 0).In(b.Station.Loc()).Format("15:04")
	})
}

// trend renders the direction of change of m over period.
func trend(name string, m weather.Metric, period func(o Options) time.Duration) Field {
	return single(name, "0", func(b *Build) string {
		now := b.Current(m)
		then := b.At(m, b.Now.Add(-period(b.Options)))
		return Trend(now.Sub(then))
	})
}
