package clientraw

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "12.3", FormatFloat(12.345, 1))
	assert.Equal(t, "12", FormatFloat(12.345, 0))
	assert.Equal(t, "1000000.0", FormatFloat(1e6, 1))
	assert.Equal(t, "0.0", FormatFloat(0.00001, 1))
	assert.Equal(t, "-3", FormatFloat(-3.2, -1))
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name  string
		delta weather.Result
		want  string
	}{
		{"rising", weather.Value(0.4), "+1"},
		{"steady", weather.Value(0), "+1"},
		{"falling", weather.Value(-0.1), "-1"},
		{"absent", weather.Absent(weather.ReasonAbsent), "0"},
		{"computation failed", weather.Absent(weather.ReasonComputation), "0"},
		{"source error", weather.Absent(weather.ReasonSourceError), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Trend(tt.delta))
		})
	}

	nan := weather.Value(1).Map(func(float64) float64 { return math.NaN() })
	assert.Equal(t, "0", Trend(nan))
}

func TestPercentOfMax(t *testing.T) {
	assert.Equal(t, "50", PercentOfMax(weather.Value(60), weather.Value(120)))
	assert.Equal(t, "0", PercentOfMax(weather.Value(0), weather.Value(120)))
	assert.Equal(t, "33", PercentOfMax(weather.Value(1), weather.Value(3)))
	assert.Equal(t, "---", PercentOfMax(weather.Value(60), weather.Absent(weather.ReasonAbsent)))
	assert.Equal(t, "---", PercentOfMax(weather.Value(60), weather.Value(0)))
	assert.Equal(t, "---", PercentOfMax(weather.Absent(weather.ReasonTypeMismatch), weather.Value(100)))
}

func TestCollapseText(t *testing.T) {
	assert.Equal(t, "Light_rain_showers", CollapseText("  Light rain\tshowers ", "_", "---", 0))
	assert.Equal(t, "Light", CollapseText("Light rain", "_", "---", 6))
	assert.Equal(t, "---", CollapseText("   ", "_", "---", 10))
	assert.Equal(t, "---", CollapseText("", "_", "---", 10))
	assert.Equal(t, "MyStation", CollapseText("My Station", "", "station", 0))
	assert.Equal(t, "---", CollapseText("a b", " ", "---", 0))
}

func TestFormatCoordinates(t *testing.T) {
	assert.Equal(t, "-27.47", FormatLatitude(weather.Coordinate{Degrees: 27.47, Hemisphere: 'S'}))
	assert.Equal(t, "51.5", FormatLatitude(weather.Coordinate{Degrees: 51.5, Hemisphere: 'N'}))
	assert.Equal(t, "-153.02", FormatLongitude(weather.Coordinate{Degrees: 153.02, Hemisphere: 'E'}))
	assert.Equal(t, "0.12", FormatLongitude(weather.Coordinate{Degrees: 0.12, Hemisphere: 'W'}))
	// The sign comes from the hemisphere letter, not the stored number.
	assert.Equal(t, "-153.02", FormatLongitude(weather.Coordinate{Degrees: -153.02, Hemisphere: 'E'}))
	assert.Equal(t, "0", FormatLongitude(weather.Coordinate{Degrees: 0, Hemisphere: 'E'}))
}

func TestResolve(t *testing.T) {
	n := Numeric{Places: 1, Fallback: Zero()}
	assert.Equal(t, "21.5", Resolve(weather.Value(21.46), n))
	assert.Equal(t, "0.0", Resolve(weather.Absent(weather.ReasonAbsent), n))

	soil := Numeric{Places: 1, Fallback: Sentinel("100.0")}
	assert.Equal(t, "100.0", Resolve(weather.Absent(weather.ReasonTypeMismatch), soil))

	kt := Numeric{Places: 1, Convert: func(v float64) float64 { return v * 2 }, Fallback: Zero()}
	assert.Equal(t, "4.0", Resolve(weather.Value(2), kt))

	broken := Numeric{Places: 0, Convert: func(v float64) float64 { return math.Inf(1) }, Fallback: Sentinel("---")}
	assert.Equal(t, "---", Resolve(weather.Value(1), broken))
}

func TestResolveMany(t *testing.T) {
	in := []weather.Result{weather.Value(10), weather.Absent(weather.ReasonAbsent), weather.Value(20)}

	assert.Equal(t, "30.0", ResolveMany(in, Sum, Numeric{Places: 1, Fallback: SkipInvalid()}))
	assert.Equal(t, "0.0", ResolveMany(in, Sum, Numeric{Places: 1, Fallback: Zero()}))
	assert.Equal(t, "--", ResolveMany(in, Sum, Numeric{Places: 1, Fallback: Sentinel("--")}))

	none := []weather.Result{weather.Absent(weather.ReasonAbsent)}
	assert.Equal(t, "0", ResolveMany(none, Sum, Numeric{Fallback: SkipInvalid()}))
}

func TestFallbackText(t *testing.T) {
	assert.Equal(t, "0", Zero().Text(weather.ReasonAbsent, 0))
	assert.Equal(t, "0.0", Zero().Text(weather.ReasonSourceError, 1))
	assert.Equal(t, "-100.0", Sentinel("-100.0").Text(weather.ReasonTypeMismatch, 1))
	assert.Equal(t, "0.0", SkipInvalid().Text(weather.ReasonAbsent, 1))
}
