package clientraw

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

// seriesSource answers queries from in-memory points, one metric at a time.
type seriesSource struct {
	points  map[weather.Metric][]weather.Point
	monthly []weather.Sample
	calls   atomic.Int64
}

func (s *seriesSource) Window(_ context.Context, q weather.Query) ([]weather.Sample, error) {
	s.calls.Add(1)
	slots := q.Slots()
	out := make([]weather.Sample, len(slots))
	for i, slot := range slots {
		var in []weather.Point
		for _, p := range s.points[q.Metric] {
			if slot.Contains(p.Timestamp) {
				in = append(in, p)
			}
		}
		out[i] = weather.Aggregate(q.Agg, slot.End.Unix(), in)
	}
	return out, nil
}

func (s *seriesSource) MonthlyAverages(context.Context, weather.Metric, weather.Aggregation, *time.Location) ([]weather.Sample, error) {
	if s.monthly == nil {
		return nil, errors.New("no monthly data")
	}
	return s.monthly, nil
}

var testLoc = time.FixedZone("AEST", 10*3600)

func testStation() weather.Station {
	return weather.Station{
		Name:      "Test Station",
		Latitude:  weather.Coordinate{Degrees: 27.47, Hemisphere: 'S'},
		Longitude: weather.Coordinate{Degrees: 153.02, Hemisphere: 'E'},
		AltitudeM: 40,
		Location:  testLoc,
	}
}

func testNow() time.Time {
	return time.Date(2024, 5, 10, 14, 30, 0, 0, testLoc)
}

// populated returns a source with one observation per minute over the last
// two hours: steady wind, rising temperature, light rain.
func populated(now time.Time) *seriesSource {
	src := &seriesSource{points: map[weather.Metric][]weather.Point{}}
	for i := 120; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * time.Minute).Unix()
		add := func(m weather.Metric, v float64) {
			src.points[m] = append(src.points[m], weather.Point{Timestamp: ts, Value: v, Weight: 1})
		}
		add(weather.WindSpeed, 10)
		add(weather.WindGust, 12)
		add(weather.WindDir, 180)
		add(weather.OutTemp, 20+float64(120-i)*0.01)
		add(weather.OutHumidity, 60)
		add(weather.Barometer, 1013.2)
		add(weather.Rain, 0.1)
		add(weather.Radiation, 60)
		add(weather.MaxSolarRad, 120)
	}
	return src
}

func assemble(t *testing.T, kind Kind, src weather.Source, opts Options) (Record, *Build) {
	t.Helper()
	plan, err := PlanFor(kind, opts)
	require.NoError(t, err)
	require.NoError(t, plan.Validate())
	b := NewBuild(context.Background(), kind, testNow(), testStation(), opts, src)
	return Assemble(b, plan), b
}

func TestPlanWidths(t *testing.T) {
	widths := map[Kind]int{KindRealtime: 178, KindHourly: 674, KindDaily: 470}
	for kind, want := range widths {
		plan, err := PlanFor(kind, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, want, plan.Width(), kind)
		require.NoError(t, plan.Validate(), kind)
	}

	_, err := PlanFor("weekly", DefaultOptions())
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestRecordWidthWithoutData(t *testing.T) {
	failing := weather.SourceFunc(func(context.Context, weather.Query) ([]weather.Sample, error) {
		return nil, errors.New("archive offline")
	})
	sources := map[string]weather.Source{
		"empty":   &seriesSource{},
		"failing": failing,
		"nil":     nil,
	}
	widths := map[Kind]int{KindRealtime: 178, KindHourly: 674, KindDaily: 470}

	for name, src := range sources {
		for kind, want := range widths {
			rec, b := assemble(t, kind, src, DefaultOptions())
			fields := strings.Split(rec.String(), " ")
			assert.Len(t, fields, want, "%s/%s", name, kind)
			assert.Equal(t, Header, fields[0])
			assert.Equal(t, "!!C10.37S120!!", fields[len(fields)-1])
			for i, f := range fields {
				assert.NotEmpty(t, f, "%s/%s position %d", name, kind, i)
			}
			assert.Positive(t, b.FallbackTotal())
			_, err := ParseRecord(rec.String())
			assert.NoError(t, err)
		}
	}
}

func TestRealtimeLayout(t *testing.T) {
	layout := RealtimePlan(DefaultOptions()).Layout()
	expect := map[string]int{
		"header":              0,
		"wind_avg":            1,
		"forecast_icon":       15,
		"rain_yesterday":      19,
		"extra_temp_1":        20,
		"hour":                29,
		"station_time":        32,
		"solar_percent":       34,
		"battery_ok":          39,
		"description":         49,
		"barometer_trend":     50,
		"wind_hour":           51,
		"gust_max_today":      71,
		"date":                74,
		"uv":                  79,
		"wind_tenths":         80,
		"temp_tenths":         90,
		"rain_tenths":         100,
		"extra_temp_7":        120,
		"extra_humidity_4":    122,
		"radiation":           127,
		"gust_max_minute":     140,
		"year":                141,
		"temp_trend":          143,
		"humidex_trend":       145,
		"wind_dir_tenths":     146,
		"latitude":            160,
		"longitude":           161,
		"rain_9am":            162,
		"windrun_today":       173,
		"temp_max_today_time": 174,
		"temp_min_today_time": 175,
		"wind_dir_avg_10min":  176,
	}
	for name, pos := range expect {
		assert.Equal(t, pos, layout[name], name)
	}
}

func TestHourlyAndDailyLayout(t *testing.T) {
	hourly := HourlyPlan(DefaultOptions()).Layout()
	assert.Equal(t, 1, hourly["wind_minute"])
	assert.Equal(t, 121, hourly["wind_dir_minute"])
	assert.Equal(t, 361, hourly["rain_minute"])
	assert.Equal(t, 481, hourly["solar_quarter"])
	assert.Equal(t, 577, hourly["uv_quarter"])

	daily := DailyPlan(DefaultOptions()).Layout()
	assert.Equal(t, 63, daily["rain_day"])
	assert.Equal(t, 187, daily["rain_month"])
	assert.Equal(t, 199, daily["rain_month_average"])
	assert.Equal(t, 211, daily["temp_six_hours"])
	assert.Equal(t, 351, daily["solar_max_day"])
	assert.Equal(t, 441, daily["uv_six_hours"])
}

func TestRealtimeValues(t *testing.T) {
	rec, _ := assemble(t, KindRealtime, populated(testNow()), DefaultOptions())
	f := append(rec.Fields, rec.Trailer)
	require.Len(t, f, 178)

	assert.Equal(t, "19.4", f[1], "avg wind in knots")
	assert.Equal(t, "23.3", f[2], "gust in knots")
	assert.Equal(t, "180", f[3])
	assert.Equal(t, "21.2", f[4])
	assert.Equal(t, "1013.2", f[6])
	assert.Equal(t, "100.0", f[14], "soil temperature sentinel")
	assert.Equal(t, "-100.0", f[20], "extra temperature sentinel")
	assert.Equal(t, "14", f[29])
	assert.Equal(t, "30", f[30])
	assert.Equal(t, "TestStation-14:30:00", f[32])
	assert.Equal(t, "50", f[34], "solar percent")
	assert.Equal(t, "10", f[35])
	assert.Equal(t, "5", f[36])
	assert.Equal(t, "---", f[49])
	assert.Equal(t, "0.0", f[50], "steady barometer")
	assert.Equal(t, "19.4", f[51])
	assert.Equal(t, "10/5/2024", f[74])
	assert.Equal(t, "2024", f[141])
	assert.Equal(t, "+1", f[143], "temperature rising")
	assert.Equal(t, "+1", f[144], "humidity steady")
	assert.Equal(t, "0", f[145], "no humidex history")
	assert.Equal(t, "180.0", f[146])
	assert.Equal(t, "255.0", f[157])
	assert.Equal(t, "-27.47", f[160])
	assert.Equal(t, "-153.02", f[161])
	assert.Equal(t, "14:30", f[174], "max temp time")
	assert.Equal(t, "12:30", f[175], "min temp time")
	assert.Equal(t, "!!C10.37S120!!", f[177])
}

func TestRealtimeRainTotalsSkipUnavailableParts(t *testing.T) {
	src := populated(testNow())
	midnight := weather.LocalMidnight(testNow())
	olderRainFails := weather.SourceFunc(func(ctx context.Context, q weather.Query) ([]weather.Sample, error) {
		if q.Metric == weather.Rain && !q.End.After(midnight) {
			return nil, errors.New("partition offline")
		}
		return src.Window(ctx, q)
	})

	layout := RealtimePlan(DefaultOptions()).Layout()
	rec, _ := assemble(t, KindRealtime, olderRainFails, DefaultOptions())
	assert.Equal(t, "12.1", rec.Fields[layout["rain_day"]])
	assert.Equal(t, "12.1", rec.Fields[layout["rain_month"]], "today's rain still counts")
	assert.Equal(t, "12.1", rec.Fields[layout["rain_year"]])

	src.points[weather.Rain] = append([]weather.Point{
		{Timestamp: time.Date(2024, 5, 3, 8, 0, 0, 0, testLoc).Unix(), Value: 4, Weight: 1},
		{Timestamp: time.Date(2024, 2, 3, 8, 0, 0, 0, testLoc).Unix(), Value: 30, Weight: 1},
	}, src.points[weather.Rain]...)
	rec, _ = assemble(t, KindRealtime, src, DefaultOptions())
	assert.Equal(t, "16.1", rec.Fields[layout["rain_month"]])
	assert.Equal(t, "46.1", rec.Fields[layout["rain_year"]])

	rec, _ = assemble(t, KindRealtime, &seriesSource{}, DefaultOptions())
	assert.Equal(t, "0.0", rec.Fields[layout["rain_month"]], "no part available")
}

func TestAssembleIsDeterministic(t *testing.T) {
	for _, kind := range Kinds {
		first, _ := assemble(t, kind, populated(testNow()), DefaultOptions())
		second, _ := assemble(t, kind, populated(testNow()), DefaultOptions())
		assert.Equal(t, first.String(), second.String(), kind)
	}
}

func TestPrefetchSharesQueries(t *testing.T) {
	src := populated(testNow())
	plan := HourlyPlan(DefaultOptions())
	b := NewBuild(context.Background(), KindHourly, testNow(), testStation(), DefaultOptions(), src)
	Assemble(b, plan)

	// Ten prefetched arrays plus the rain seed.
	assert.Equal(t, int64(11), src.calls.Load())
}

func TestHourlyRainRunningTotal(t *testing.T) {
	rec, _ := assemble(t, KindHourly, populated(testNow()), DefaultOptions())
	layout := HourlyPlan(DefaultOptions()).Layout()
	rain := rec.Fields[layout["rain_minute"] : layout["rain_minute"]+60]

	// The seed holds the 61 observations from 12:30 to 13:30.
	assert.Equal(t, "6.2", rain[0])
	assert.Equal(t, "12.1", rain[59])
}

func TestAssembleContainsBrokenFields(t *testing.T) {
	plan := Plan{
		Kind:    KindRealtime,
		Trailer: Trailer("TEST"),
		Fields: []Field{
			constant("header", Header),
			{Name: "panics", Width: 3, Sentinel: "---", Render: func(*Build) []string { panic("boom") }},
			{Name: "short", Width: 2, Render: func(*Build) []string { return []string{"7"} }},
			{Name: "blank", Width: 1, Sentinel: "0.0", Render: func(*Build) []string { return []string{""} }},
			constant("after", "42"),
		},
	}
	require.NoError(t, plan.Validate())

	b := NewBuild(context.Background(), KindRealtime, testNow(), testStation(), DefaultOptions(), nil)
	rec := Assemble(b, plan)
	assert.Equal(t, "12345 --- --- --- 7 0 0.0 42 !!TEST!!", rec.String())
	assert.Equal(t, plan.Width(), rec.Width())
}

func TestPlanValidate(t *testing.T) {
	ok := func(*Build) []string { return []string{"1"} }
	tests := []struct {
		name string
		plan Plan
	}{
		{"empty", Plan{Trailer: "!!X!!"}},
		{"bad trailer", Plan{Trailer: "X", Fields: []Field{{Name: "a", Width: 1, Render: ok}}}},
		{"duplicate", Plan{Trailer: "!!X!!", Fields: []Field{{Name: "a", Width: 1, Render: ok}, {Name: "a", Width: 1, Render: ok}}}},
		{"zero width", Plan{Trailer: "!!X!!", Fields: []Field{{Name: "a", Width: 0, Render: ok}}}},
		{"no renderer", Plan{Trailer: "!!X!!", Fields: []Field{{Name: "a", Width: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.plan.Validate(), ErrInvalidPlan))
		})
	}
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord("12345 1.0 2.0 !!C10.37S120!!\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"12345", "1.0", "2.0"}, rec.Fields)
	assert.Equal(t, "!!C10.37S120!!", rec.Trailer)

	bad := []string{
		"",
		"12345",
		"54321 1.0 !!C10!!",
		"12345 1.0 C10",
		"12345 1.0 !!!!",
		"12345 1.0 !!C10",
	}
	for _, text := range bad {
		_, err := ParseRecord(text)
		assert.True(t, errors.Is(err, ErrInvalidShape), text)
	}
}

func TestMonthSlotRotation(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		seen := map[int]bool{}
		for month := 1; month <= 12; month++ {
			slot := MonthSlot(m, month)
			assert.True(t, slot >= 0 && slot < 12)
			seen[slot] = true
		}
		assert.Len(t, seen, 12, m)
		assert.Equal(t, 0, MonthSlot(m, int(m)), "current month leads")
	}
	assert.Equal(t, 1, MonthSlot(time.May, 6))
	assert.Equal(t, 11, MonthSlot(time.May, 4))
}

func TestMonthlyRainAverageChains(t *testing.T) {
	computed := make([]weather.Sample, 12)
	for i := range computed {
		computed[i] = weather.Sample{Value: float64(i + 1), Valid: true}
	}
	computed[2] = weather.Sample{}

	manual := map[time.Month]float64{time.January: 100, time.March: 300}
	src := &seriesSource{monthly: computed}

	build := func(opts Options) [12]weather.Result {
		opts.ManualRainAverages = manual
		b := NewBuild(context.Background(), KindDaily, testNow(), testStation(), opts, src)
		return MonthlyRainAverages(b)
	}

	got := build(Options{MonthAvgSource: MonthAvgManual})
	assert.Equal(t, weather.Value(100), got[0])
	assert.Equal(t, weather.Value(2), got[1])
	assert.Equal(t, weather.Value(300), got[2])

	got = build(Options{MonthAvgSource: MonthAvgComputed})
	assert.Equal(t, weather.Value(1), got[0])
	assert.False(t, got[2].OK())

	got = build(Options{MonthAvgSource: MonthAvgAuto})
	assert.Equal(t, weather.Value(1), got[0])
	assert.Equal(t, weather.Value(300), got[2])
}

func TestMonthlyAverageLegacyDuplicate(t *testing.T) {
	computed := make([]weather.Sample, 12)
	for i := range computed {
		computed[i] = weather.Sample{Value: float64(10 * (i + 1)), Valid: true}
	}
	src := &seriesSource{monthly: computed}
	layout := DailyPlan(DefaultOptions()).Layout()
	start := layout["rain_month_average"]
	now := testNow()

	opts := Options{MonthAvgSource: MonthAvgComputed}
	rec, _ := assemble(t, KindDaily, src, opts)
	assert.Equal(t, "110.0", rec.Fields[start+MonthSlot(now.Month(), 11)])
	assert.Equal(t, "100.0", rec.Fields[start+MonthSlot(now.Month(), 10)])

	opts.LegacyDuplicate = true
	rec, _ = assemble(t, KindDaily, src, opts)
	assert.Equal(t, "100.0", rec.Fields[start+MonthSlot(now.Month(), 11)])
	assert.Equal(t, "100.0", rec.Fields[start+MonthSlot(now.Month(), 10)])
}

func TestMonthlyRainUsesLatestOccurrence(t *testing.T) {
	now := testNow()
	src := &seriesSource{points: map[weather.Metric][]weather.Point{
		weather.Rain: {
			{Timestamp: time.Date(2024, 5, 2, 0, 0, 0, 0, testLoc).Unix(), Value: 5},
			{Timestamp: time.Date(2023, 6, 15, 0, 0, 0, 0, testLoc).Unix(), Value: 7},
			{Timestamp: time.Date(2024, 6, 15, 0, 0, 0, 0, testLoc).Unix(), Value: 99},
		},
	}}
	rec, _ := assemble(t, KindDaily, src, DefaultOptions())
	start := DailyPlan(DefaultOptions()).Layout()["rain_month"]

	assert.Equal(t, "5.0", rec.Fields[start+MonthSlot(now.Month(), 5)])
	assert.Equal(t, "7.0", rec.Fields[start+MonthSlot(now.Month(), 6)])
	assert.Equal(t, "0.0", rec.Fields[start+MonthSlot(now.Month(), 7)])
}
