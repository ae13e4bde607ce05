package weather

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Metric names an archive observation type. Values follow the archive column
// names so they can be used directly by SQL sources.
type Metric string

const (
	OutTemp     Metric = "outTemp"
	OutHumidity Metric = "outHumidity"
	InTemp      Metric = "inTemp"
	InHumidity  Metric = "inHumidity"
	Barometer   Metric = "barometer"
	Rain        Metric = "rain"
	RainRate    Metric = "rainRate"
	WindSpeed   Metric = "windSpeed"
	WindGust    Metric = "windGust"
	WindDir     Metric = "windDir"
	Dewpoint    Metric = "dewpoint"
	Windchill   Metric = "windchill"
	Heatindex   Metric = "heatindex"
	Humidex     Metric = "humidex"
	AppTemp     Metric = "appTemp"
	Radiation   Metric = "radiation"
	MaxSolarRad Metric = "maxSolarRad"
	UV          Metric = "UV"
	Cloudbase   Metric = "cloudbase"
	SoilTemp1   Metric = "soilTemp1"
	SoilMoist1  Metric = "soilMoist1"
	LeafWet1    Metric = "leafWet1"
)

// ExtraTemp names the n-th extra temperature sensor (1-based).
func ExtraTemp(n int) Metric { return Metric(fmt.Sprintf("extraTemp%d", n)) }

// ExtraHumid names the n-th extra humidity sensor (1-based).
func ExtraHumid(n int) Metric { return Metric(fmt.Sprintf("extraHumid%d", n)) }

// Coordinate is an unsigned angle plus its hemisphere letter (N, S, E or W).
type Coordinate struct {
	Degrees    float64
	Hemisphere byte
}

// ParseLatitude accepts "27.47S", "27.47 S" or a signed decimal ("-27.47").
func ParseLatitude(s string) (Coordinate, error) {
	return parseCoordinate(s, 'N', 'S', 90)
}

// ParseLongitude accepts "153.02E", "153.02 W" or a signed decimal.
func ParseLongitude(s string) (Coordinate, error) {
	return parseCoordinate(s, 'E', 'W', 180)
}

// LatitudeFromFloat builds a Coordinate from a signed latitude.
func LatitudeFromFloat(v float64) Coordinate {
	if v < 0 {
		return Coordinate{Degrees: -v, Hemisphere: 'S'}
	}
	return Coordinate{Degrees: v, Hemisphere: 'N'}
}

// LongitudeFromFloat builds a Coordinate from a signed longitude.
func LongitudeFromFloat(v float64) Coordinate {
	if v < 0 {
		return Coordinate{Degrees: -v, Hemisphere: 'W'}
	}
	return Coordinate{Degrees: v, Hemisphere: 'E'}
}

func parseCoordinate(s string, pos, neg byte, limit float64) (Coordinate, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Coordinate{}, fmt.Errorf("empty coordinate")
	}
	hemi := byte(0)
	if last := s[len(s)-1]; last == pos || last == neg {
		hemi = last
		s = strings.TrimSpace(s[:len(s)-1])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: %w", s, err)
	}
	if hemi == 0 {
		hemi = pos
		if v < 0 {
			hemi = neg
		}
	}
	v = math.Abs(v)
	if v > limit {
		return Coordinate{}, fmt.Errorf("coordinate %v out of range", v)
	}
	return Coordinate{Degrees: v, Hemisphere: hemi}, nil
}

// Signed returns the coordinate as a signed decimal (S and W negative).
func (c Coordinate) Signed() float64 {
	if c.Hemisphere == 'S' || c.Hemisphere == 'W' {
		return -c.Degrees
	}
	return c.Degrees
}

// Station describes the reporting station.
type Station struct {
	Name      string
	City      string
	Country   string
	Latitude  Coordinate
	Longitude Coordinate
	AltitudeM float64

	// Location is the station's local time zone; day boundaries use it.
	Location *time.Location
}

// Loc returns the station time zone, falling back to time.Local.
func (s Station) Loc() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// Observation is a single loop packet or archive record: a timestamp plus
// whatever metrics the station reported.
type Observation struct {
	Timestamp int64              `json:"dateTime"`
	Values    map[Metric]float64 `json:"values"`
}
