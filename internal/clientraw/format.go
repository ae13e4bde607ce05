package clientraw

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

// Sentinels shared by several field groups.
const (
	SentinelMissing = "---"
	SentinelSlot    = "0"
	SentinelRain    = "0.0"
	SentinelClock   = "00:00"
)

// FormatFloat renders v with a fixed number of decimals. Scientific notation
// and digit grouping are never used.
func FormatFloat(v float64, places int) string {
	if places < 0 {
		places = 0
	}
	return strconv.FormatFloat(v, 'f', places, 64)
}

// Trend maps a delta onto the three-way trend token: "+1" for a delta >= 0,
// "-1" for a negative delta and "0" when the delta is unavailable.
func Trend(delta weather.Result) string {
	if !delta.OK() {
		return "0"
	}
	if delta.Value >= 0 {
		return "+1"
	}
	return "-1"
}

// PercentOfMax renders round(100*cur/max), or "---" unless both operands are
// present and max is positive.
func PercentOfMax(cur, max weather.Result) string {
	if !cur.OK() || !max.OK() || max.Value <= 0 {
		return SentinelMissing
	}
	return FormatFloat(math.Round(100*cur.Value/max.Value), 0)
}

// CollapseText makes free text safe for a space-delimited record: runs of
// whitespace become join, the result is cut to maxLen runes (0 means no limit)
// and an empty outcome is replaced by sentinel.
func CollapseText(s, join, sentinel string, maxLen int) string {
	out := strings.Join(strings.Fields(s), join)
	if maxLen > 0 && utf8.RuneCountInString(out) > maxLen {
		out = string([]rune(out)[:maxLen])
		if join != "" {
			out = strings.TrimRight(out, join)
		}
	}
	if out == "" || strings.ContainsAny(out, " \t\r\n") {
		return sentinel
	}
	return out
}

// FormatLatitude renders a latitude with south as a leading minus sign.
func FormatLatitude(c weather.Coordinate) string {
	return signedCoordinate(c, 'S')
}

// FormatLongitude renders a longitude with east as a leading minus sign, the
// convention clientraw consumers expect.
func FormatLongitude(c weather.Coordinate) string {
	return signedCoordinate(c, 'E')
}

func signedCoordinate(c weather.Coordinate, negative byte) string {
	text := strconv.FormatFloat(math.Abs(c.Degrees), 'f', -1, 64)
	if c.Hemisphere == negative && c.Degrees != 0 {
		return "-" + text
	}
	return text
}
