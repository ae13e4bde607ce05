package clientraw

import (
	"time"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

func perDay(m weather.Metric, agg weather.Aggregation) window {
	return window{m, agg, weather.WindowSpec{Count: 31, Step: 24 * time.Hour, Align: weather.AlignBoundary}}
}

func perSixHours(m weather.Metric, agg weather.Aggregation) window {
	return window{m, agg, weather.WindowSpec{Count: 28, Step: 6 * time.Hour, Align: weather.AlignBoundary}}
}

var (
	dyTempMax   = perDay(weather.OutTemp, weather.AggMax)
	dyTempMin   = perDay(weather.OutTemp, weather.AggMin)
	dyRain      = perDay(weather.Rain, weather.AggSum)
	dyBarometer = perDay(weather.Barometer, weather.AggAvg)
	dyWind      = perDay(weather.WindSpeed, weather.AggAvg)
	dyDir       = perDay(weather.WindDir, weather.AggVecDir)
	dySolarMax  = perDay(weather.Radiation, weather.AggMax)
	dyUVMax     = perDay(weather.UV, weather.AggMax)

	sxTemp      = perSixHours(weather.OutTemp, weather.AggAvg)
	sxHumidity  = perSixHours(weather.OutHumidity, weather.AggAvg)
	sxBarometer = perSixHours(weather.Barometer, weather.AggAvg)
	sxWind      = perSixHours(weather.WindSpeed, weather.AggAvg)
	sxDir       = perSixHours(weather.WindDir, weather.AggVecDir)
	sxSolar     = perSixHours(weather.Radiation, weather.AggAvg)
	sxUV        = perSixHours(weather.UV, weather.AggAvg)
)

// DailyPlan lays out clientrawdaily.txt, positions 000 to 469.
func DailyPlan(opts Options) Plan {
	opts = opts.withDefaults()
	return Plan{
		Kind: KindDaily,
		Fields: []Field{
			constant("header", Header),
			array("temp_max_day", dyTempMax, places1, OldestFirst),
			array("temp_min_day", dyTempMin, places1, OldestFirst),
			array("rain_day", dyRain, places1, OldestFirst),
			array("barometer_day", dyBarometer, places1, OldestFirst),
			array("wind_day", dyWind, knots, OldestFirst),
			array("wind_dir_day", dyDir, places0, OldestFirst),
			monthlyRain("rain_month"),
			monthlyAverageRain("rain_month_average"),
			array("temp_six_hours", sxTemp, places1, OldestFirst),
			array("humidity_six_hours", sxHumidity, places0, OldestFirst),
			array("barometer_six_hours", sxBarometer, places1, OldestFirst),
			array("wind_six_hours", sxWind, knots, OldestFirst),
			array("wind_dir_six_hours", sxDir, places0, OldestFirst),
			array("solar_max_day", dySolarMax, places0, OldestFirst),
			array("uv_max_day", dyUVMax, places1, OldestFirst),
			array("solar_six_hours", sxSolar, places0, OldestFirst),
			array("uv_six_hours", sxUV, places1, OldestFirst),
		},
		Trailer: Trailer(opts.RecordTag),
		Queries: queriesOf(
			dyTempMax, dyTempMin, dyRain, dyBarometer, dyWind, dyDir, dySolarMax, dyUVMax,
			sxTemp, sxHumidity, sxBarometer, sxWind, sxDir, sxSolar, sxUV,
		),
	}
}

// MonthSlot is the position, within a 12-slot monthly run, of the value for
// month (1-based) when the current month is current.
func MonthSlot(current time.Month, month int) int {
	k := month - 1
	return (13 - int(current) + k) % 12
}

// monthRange is the latest occurrence of month up to now: this year when it
// has started, otherwise last year. The end is capped at now.
func monthRange(now time.Time, month time.Month) (time.Time, time.Time) {
	year := now.Year()
	if month > now.Month() {
		year--
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0)
	if end.After(now) {
		end = now
	}
	return start, end
}

func monthlyRain(name string) Field {
	return Field{
		Name:     name,
		Width:    12,
		Sentinel: "0.0",
		Render: func(b *Build) []string {
			out := make([]string, 12)
			for k := 0; k < 12; k++ {
				start, end := monthRange(b.Now, time.Month(k+1))
				r := b.Value(b.Between(weather.Rain, weather.AggSum, start, end))
				out[MonthSlot(b.Now.Month(), k+1)] = b.Num(r, places1)
			}
			return out
		},
	}
}

func monthlyAverageRain(name string) Field {
	return Field{
		Name:     name,
		Width:    12,
		Sentinel: "0.0",
		Render: func(b *Build) []string {
			avgs := MonthlyRainAverages(b)
			out := make([]string, 12)
			for k := 0; k < 12; k++ {
				src := k
				if b.Options.LegacyDuplicate && time.Month(k+1) == time.November {
					src = int(time.October) - 1
				}
				out[MonthSlot(b.Now.Month(), k+1)] = b.Num(avgs[src], places1)
			}
			return out
		},
	}
}

// MonthlyRainAverages resolves the average rainfall of every month, January
// first, following the configured source chain.
func MonthlyRainAverages(b *Build) [12]weather.Result {
	computed, reason := b.MonthlyAverages(weather.Rain, weather.AggSum)

	var out [12]weather.Result
	for k := 0; k < 12; k++ {
		comp := weather.Absent(reason)
		if reason == weather.ReasonNone {
			comp = weather.Absent(weather.ReasonOutOfRange)
			if k < len(computed) {
				comp = computed[k].Result()
			}
		}
		manual := weather.Absent(weather.ReasonAbsent)
		if v, ok := b.Options.ManualRainAverages[time.Month(k+1)]; ok {
			manual = weather.Value(v)
		}

		switch b.Options.MonthAvgSource {
		case MonthAvgComputed:
			out[k] = comp
		case MonthAvgAuto:
			out[k] = comp.Or(manual)
		default:
			out[k] = manual.Or(comp)
		}
	}
	return out
}
