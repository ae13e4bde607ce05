package clientraw

import (
	"strconv"
	"time"

	"github.com/i474232898/weather-clientraw/internal/units"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

// Arrays of the near-real-time record, oldest slot first.
var (
	rtWindHour     = window{weather.WindSpeed, weather.AggAvg, weather.WindowSpec{Count: 20, Step: 3 * time.Minute}}
	rtWindTenths   = window{weather.WindSpeed, weather.AggAvg, weather.WindowSpec{Count: 10, Step: 6 * time.Minute}}
	rtTempTenths   = window{weather.OutTemp, weather.AggAvg, weather.WindowSpec{Count: 10, Step: 6 * time.Minute}}
	rtRainTenths   = window{weather.Rain, weather.AggSum, weather.WindowSpec{Count: 10, Step: 6 * time.Minute}}
	rtWindDirTenth = window{weather.WindDir, weather.AggVecDir, weather.WindowSpec{Count: 10, Step: 6 * time.Minute}}
)

var realtimeCurrent = []weather.Metric{
	weather.WindSpeed, weather.WindGust, weather.WindDir, weather.OutTemp,
	weather.OutHumidity, weather.Barometer, weather.RainRate, weather.InTemp,
	weather.InHumidity, weather.Windchill, weather.Humidex, weather.Dewpoint,
	weather.Cloudbase, weather.UV, weather.Heatindex, weather.Radiation,
	weather.MaxSolarRad, weather.AppTemp,
}

var realtimeDaily = []struct {
	metric weather.Metric
	agg    weather.Aggregation
}{
	{weather.Rain, weather.AggSum},
	{weather.OutTemp, weather.AggMax}, {weather.OutTemp, weather.AggMin},
	{weather.WindGust, weather.AggMax}, {weather.WindSpeed, weather.AggMax},
	{weather.WindSpeed, weather.AggAvg}, {weather.WindDir, weather.AggVecDir},
	{weather.OutHumidity, weather.AggMax}, {weather.OutHumidity, weather.AggMin},
	{weather.Barometer, weather.AggMax}, {weather.Barometer, weather.AggMin},
	{weather.Dewpoint, weather.AggMax}, {weather.Dewpoint, weather.AggMin},
}

// RealtimePlan lays out clientraw.txt, positions 000 to 177.
func RealtimePlan(opts Options) Plan {
	opts = opts.withDefaults()

	avgSpeed := func(o Options) time.Duration { return o.AvgSpeedPeriod }
	trendPeriod := func(o Options) time.Duration { return o.TrendPeriod }

	fields := []Field{
		constant("header", Header),
		num("wind_avg", knots, over(weather.WindSpeed, weather.AggAvg, avgSpeed)),
		num("wind_gust", knots, gust),
		num("wind_dir", places0, current(weather.WindDir)),
		num("out_temp", places1, current(weather.OutTemp)),
		num("out_humidity", places1, current(weather.OutHumidity)),
		num("barometer", places1, current(weather.Barometer)),
		num("rain_day", places1, today(weather.Rain, weather.AggSum)),
		many("rain_month", rainTotal, Sum, rainBetween(monthStart, weather.LocalMidnight), today(weather.Rain, weather.AggSum)),
		many("rain_year", rainTotal, Sum, rainBetween(yearStart, monthStart), rainBetween(monthStart, weather.LocalMidnight), today(weather.Rain, weather.AggSum)),
		num("rain_rate", perMin, current(weather.RainRate)),
		num("rain_rate_max_today", perMin, today(weather.RainRate, weather.AggMax)),
		num("in_temp", places1, current(weather.InTemp)),
		num("in_humidity", places1, current(weather.InHumidity)),
		num("soil_temp", Numeric{Places: 1, Fallback: Sentinel("100.0")}, current(weather.SoilTemp1)),
		num("forecast_icon", places0, func(b *Build) weather.Result { return b.Conditions.ForecastIcon }),
		constants("unused_016", "0.0", 3),
		num("rain_yesterday", places1, rainYesterday),
	}
	for i := 1; i <= 6; i++ {
		fields = append(fields, num(sensorName("extra_temp", i), Numeric{Places: 1, Fallback: Sentinel("-100.0")}, current(weather.ExtraTemp(i))))
	}
	for i := 1; i <= 3; i++ {
		fields = append(fields, num(sensorName("extra_humidity", i), Numeric{Places: 1, Fallback: Sentinel("-100.0")}, current(weather.ExtraHumid(i))))
	}
	fields = append(fields,
		stamp("hour", "15"),
		stamp("minute", "04"),
		stamp("second", "05"),
		single("station_time", "station", func(b *Build) string {
			return CollapseText(b.Station.Name, "", "station", 0) + "-" + b.Now.Format("15:04:05")
		}),
		constant("lightning", "0"),
		single("solar_percent", SentinelMissing, func(b *Build) string {
			return PercentOfMax(b.Current(weather.Radiation), b.Current(weather.MaxSolarRad))
		}),
		stamp("day", "2"),
		stamp("month", "1"),
		constants("battery_low", "0", 2),
		constants("battery_ok", "100", 5),
		num("windchill", places1, current(weather.Windchill)),
		num("humidex", places1, humidexNow),
		num("temp_max_today", places1, today(weather.OutTemp, weather.AggMax)),
		num("temp_min_today", places1, today(weather.OutTemp, weather.AggMin)),
		num("icon", places0, func(b *Build) weather.Result { return b.Conditions.Icon }),
		single("description", SentinelMissing, func(b *Build) string {
			return CollapseText(b.Conditions.Text, "_", SentinelMissing, 40)
		}),
		num("barometer_trend", places1, func(b *Build) weather.Result {
			return b.Current(weather.Barometer).Sub(b.At(weather.Barometer, b.Now.Add(-b.Options.BaroTrendPeriod)))
		}),
		array("wind_hour", rtWindHour, knots, OldestFirst),
		num("gust_max_today", knots, firstOf(today(weather.WindGust, weather.AggMax), today(weather.WindSpeed, weather.AggMax))),
		num("dewpoint", places1, dewpointNow),
		num("cloud_height", Numeric{Places: 1, Convert: units.MetersToFeet, Fallback: Zero()}, cloudbaseNow),
		stamp("date", "2/1/2006"),
		num("humidex_max_today", places1, today(weather.Humidex, weather.AggMax)),
		num("humidex_min_today", places1, today(weather.Humidex, weather.AggMin)),
		num("windchill_max_today", places1, today(weather.Windchill, weather.AggMax)),
		num("windchill_min_today", places1, today(weather.Windchill, weather.AggMin)),
		num("uv", places1, current(weather.UV)),
		array("wind_tenths", rtWindTenths, knots, OldestFirst),
		array("temp_tenths", rtTempTenths, places1, OldestFirst),
		array("rain_tenths", rtRainTenths, places1, OldestFirst),
		num("heatindex_max_today", places1, today(weather.Heatindex, weather.AggMax)),
		num("heatindex_min_today", places1, today(weather.Heatindex, weather.AggMin)),
		num("heatindex", places1, current(weather.Heatindex)),
		num("wind_max_today", knots, today(weather.WindSpeed, weather.AggMax)),
		constant("unused_114", "0"),
		constants("unused_115", SentinelMissing, 2),
		num("wind_dir_avg_today", places1, today(weather.WindDir, weather.AggVecDir)),
		constants("unused_118", "0.0", 2),
	)
	for i := 7; i <= 8; i++ {
		fields = append(fields, num(sensorName("extra_temp", i), Numeric{Places: 1, Fallback: Sentinel("-100.0")}, current(weather.ExtraTemp(i))))
	}
	for i := 4; i <= 8; i++ {
		fields = append(fields, num(sensorName("extra_humidity", i), Numeric{Places: 0, Fallback: Sentinel("-100")}, current(weather.ExtraHumid(i))))
	}
	fields = append(fields,
		num("radiation", places1, current(weather.Radiation)),
		num("in_temp_max_today", places1, today(weather.InTemp, weather.AggMax)),
		num("in_temp_min_today", places1, today(weather.InTemp, weather.AggMin)),
		num("apparent_temp", places1, appTempNow),
		num("barometer_max_today", places1, today(weather.Barometer, weather.AggMax)),
		num("barometer_min_today", places1, today(weather.Barometer, weather.AggMin)),
		num("gust_max_hour", knots, over(weather.WindGust, weather.AggMax, fixed(time.Hour))),
		clock("gust_max_hour_time", func(b *Build) weather.Query { return b.Over(weather.WindGust, weather.AggMaxTime, time.Hour) }),
		clock("gust_max_today_time", func(b *Build) weather.Query { return b.Today(weather.WindGust, weather.AggMaxTime) }),
		num("apparent_temp_max_today", places1, today(weather.AppTemp, weather.AggMax)),
		num("apparent_temp_min_today", places1, today(weather.AppTemp, weather.AggMin)),
		num("dewpoint_max_today", places1, today(weather.Dewpoint, weather.AggMax)),
		num("dewpoint_min_today", places1, today(weather.Dewpoint, weather.AggMin)),
		num("gust_max_minute", knots, over(weather.WindGust, weather.AggMax, fixed(time.Minute))),
		stamp("year", "2006"),
		constant("unused_142", "0.0"),
		trend("temp_trend", weather.OutTemp, trendPeriod),
		trend("humidity_trend", weather.OutHumidity, trendPeriod),
		trend("humidex_trend", weather.Humidex, trendPeriod),
		array("wind_dir_tenths", rtWindDirTenth, places1, OldestFirst),
		num("leaf_wetness", places1, current(weather.LeafWet1)),
		num("soil_moisture", Numeric{Places: 1, Fallback: Sentinel("255.0")}, current(weather.SoilMoist1)),
		num("wind_avg_10min", knots, over(weather.WindSpeed, weather.AggAvg, fixed(10*time.Minute))),
		num("wet_bulb", places1, wetBulbNow),
		single("latitude", "0", func(b *Build) string { return FormatLatitude(b.Station.Latitude) }),
		single("longitude", "0", func(b *Build) string { return FormatLongitude(b.Station.Longitude) }),
		num("rain_9am", places1, rainSince(nineAM)),
		num("humidity_max_today", places1, today(weather.OutHumidity, weather.AggMax)),
		num("humidity_min_today", places1, today(weather.OutHumidity, weather.AggMin)),
		num("rain_midnight", places1, today(weather.Rain, weather.AggSum)),
		clock("windchill_min_today_time", func(b *Build) weather.Query { return b.Today(weather.Windchill, weather.AggMinTime) }),
		constants("unused_167", "0.0", 6),
		num("windrun_today", places1, windrunToday),
		clock("temp_max_today_time", func(b *Build) weather.Query { return b.Today(weather.OutTemp, weather.AggMaxTime) }),
		clock("temp_min_today_time", func(b *Build) weather.Query { return b.Today(weather.OutTemp, weather.AggMinTime) }),
		num("wind_dir_avg_10min", places0, over(weather.WindDir, weather.AggVecDir, fixed(10*time.Minute))),
	)

	return Plan{
		Kind:    KindRealtime,
		Fields:  fields,
		Trailer: Trailer(opts.RecordTag),
		Queries: realtimeQueries,
	}
}

func realtimeQueries(b *Build) []weather.Query {
	qs := queriesOf(rtWindHour, rtWindTenths, rtTempTenths, rtRainTenths, rtWindDirTenth)(b)
	for _, m := range realtimeCurrent {
		qs = append(qs, b.Over(m, weather.AggLast, b.Options.Stale))
	}
	for _, d := range realtimeDaily {
		qs = append(qs, b.Today(d.metric, d.agg))
	}
	return qs
}

func sensorName(prefix string, i int) string {
	return prefix + "_" + strconv.Itoa(i)
}

// gust is the highest gust over the gust period, or the current wind speed
// when the period is zero.
func gust(b *Build) weather.Result {
	if b.Options.GustPeriod == 0 {
		return b.Current(weather.WindSpeed)
	}
	r := b.Value(b.Over(weather.WindGust, weather.AggMax, b.Options.GustPeriod))
	if r.OK() {
		return r
	}
	return b.Value(b.Over(weather.WindSpeed, weather.AggMax, b.Options.GustPeriod))
}

func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

func yearStart(now time.Time) time.Time {
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
}

// nineAM is the most recent 09:00 local at or before now.
func nineAM(now time.Time) time.Time {
	t := weather.LocalMidnight(now).Add(9 * time.Hour)
	if t.After(now) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

func rainSince(start func(now time.Time) time.Time) valueFunc {
	return func(b *Build) weather.Result {
		return b.Value(b.Since(weather.Rain, weather.AggSum, start(b.Now)))
	}
}

// rainBetween sums rain over (from(now), to(now)]. An empty span is absent.
func rainBetween(from, to func(now time.Time) time.Time) valueFunc {
	return func(b *Build) weather.Result {
		start, end := from(b.Now), to(b.Now)
		if !start.Before(end) {
			return weather.Absent(weather.ReasonOutOfRange)
		}
		return b.Value(b.Between(weather.Rain, weather.AggSum, start, end))
	}
}

func rainYesterday(b *Build) weather.Result {
	midnight := weather.LocalMidnight(b.Now)
	return b.Value(b.Between(weather.Rain, weather.AggSum, midnight.AddDate(0, 0, -1), midnight))
}

func humidexNow(b *Build) weather.Result {
	return b.Current(weather.Humidex).Or(derive(func(v []float64) (float64, bool) {
		return HumidexC(v[0], v[1])
	}, b.Current(weather.OutTemp), b.Current(weather.OutHumidity)))
}

func dewpointNow(b *Build) weather.Result {
	return b.Current(weather.Dewpoint).Or(derive(func(v []float64) (float64, bool) {
		return DewpointC(v[0], v[1])
	}, b.Current(weather.OutTemp), b.Current(weather.OutHumidity)))
}

func cloudbaseNow(b *Build) weather.Result {
	alt := b.Station.AltitudeM
	return b.Current(weather.Cloudbase).Or(derive(func(v []float64) (float64, bool) {
		return CloudbaseM(v[0], v[1], alt)
	}, b.Current(weather.OutTemp), b.Current(weather.OutHumidity)))
}

func appTempNow(b *Build) weather.Result {
	return b.Current(weather.AppTemp).Or(derive(func(v []float64) (float64, bool) {
		return AppTempC(v[0], v[1], v[2]), true
	}, b.Current(weather.OutTemp), b.Current(weather.OutHumidity), b.Current(weather.WindSpeed)))
}

func wetBulbNow(b *Build) weather.Result {
	return derive(func(v []float64) (float64, bool) {
		return WetBulbC(v[0], v[1], v[2]), true
	}, b.Current(weather.OutTemp), b.Current(weather.OutHumidity), b.Current(weather.Barometer))
}

func windrunToday(b *Build) weather.Result {
	elapsed := b.Now.Sub(weather.LocalMidnight(b.Now)).Seconds()
	return b.Value(b.Today(weather.WindSpeed, weather.AggAvg)).Map(func(avg float64) float64 {
		return units.Windrun(avg, elapsed)
	})
}
