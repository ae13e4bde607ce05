package clientraw

import (
	"time"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

func perMinute(m weather.Metric, agg weather.Aggregation) window {
	return window{m, agg, weather.WindowSpec{Count: 60, Step: time.Minute, Align: weather.AlignBoundary}}
}

func perQuarter(m weather.Metric) window {
	return window{m, weather.AggAvg, weather.WindowSpec{Count: 96, Step: 15 * time.Minute, Align: weather.AlignBoundary}}
}

var (
	hrWind      = perMinute(weather.WindSpeed, weather.AggAvg)
	hrGust      = perMinute(weather.WindGust, weather.AggMax)
	hrDir       = perMinute(weather.WindDir, weather.AggVecDir)
	hrTemp      = perMinute(weather.OutTemp, weather.AggAvg)
	hrHumidity  = perMinute(weather.OutHumidity, weather.AggAvg)
	hrBarometer = perMinute(weather.Barometer, weather.AggAvg)
	hrRain      = perMinute(weather.Rain, weather.AggSum)
	hrSolar     = perMinute(weather.Radiation, weather.AggAvg)
	hrSolar15   = perQuarter(weather.Radiation)
	hrUV15      = perQuarter(weather.UV)
)

// HourlyPlan lays out clientrawhour.txt, positions 000 to 673.
func HourlyPlan(opts Options) Plan {
	opts = opts.withDefaults()
	return Plan{
		Kind: KindHourly,
		Fields: []Field{
			constant("header", Header),
			array("wind_minute", hrWind, knots, OldestFirst),
			array("gust_minute", hrGust, knots, OldestFirst),
			array("wind_dir_minute", hrDir, places0, OldestFirst),
			array("temp_minute", hrTemp, places1, OldestFirst),
			array("humidity_minute", hrHumidity, places0, OldestFirst),
			array("barometer_minute", hrBarometer, places1, OldestFirst),
			rainRun("rain_minute", hrRain),
			array("solar_minute", hrSolar, places0, OldestFirst),
			array("solar_quarter", hrSolar15, places0, OldestFirst),
			array("uv_quarter", hrUV15, places1, OldestFirst),
		},
		Trailer: Trailer(opts.RecordTag),
		Queries: queriesOf(hrWind, hrGust, hrDir, hrTemp, hrHumidity, hrBarometer, hrRain, hrSolar, hrSolar15, hrUV15),
	}
}

// rainRun renders the per-minute running rain total, seeded with the rain
// that fell between local midnight and the start of the first slot.
func rainRun(name string, w window) Field {
	return Field{
		Name:     name,
		Width:    w.spec.Count,
		Sentinel: SentinelRain,
		Render: func(b *Build) []string {
			q := w.query(b)
			deltas, reason := b.Series(q)
			b.countSlots(deltas, w.spec.Count, reason)
			return BuildRainWindow(deltas, w.spec.Count, rainSeed(b, q), b.Station.Loc())
		},
	}
}

func rainSeed(b *Build, q weather.Query) weather.Result {
	slots := q.Slots()
	if len(slots) == 0 {
		return weather.Absent(weather.ReasonOutOfRange)
	}
	first := slots[0].Start
	midnight := weather.LocalMidnight(first)
	if !first.After(midnight) {
		return weather.Absent(weather.ReasonOutOfRange)
	}
	return b.Value(b.Between(weather.Rain, weather.AggSum, midnight, first))
}
