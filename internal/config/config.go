package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/i474232898/weather-clientraw/internal/clientraw"
	"github.com/i474232898/weather-clientraw/internal/logging"
	"github.com/i474232898/weather-clientraw/internal/units"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

// ConfigPathEnvVar names the optional YAML configuration file.
const ConfigPathEnvVar = "CONFIG_FILE"

var ErrNoCoordinates = errors.New("station coordinates missing")

var validate = validator.New()

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Output     OutputConfig     `koanf:"output"`
	Schedule   ScheduleConfig   `koanf:"schedule"`
	Source     SourceConfig     `koanf:"source"`
	NATS       NATSConfig       `koanf:"nats"`
	Station    StationConfig    `koanf:"station"`
	Record     RecordConfig     `koanf:"record"`
	Averages   AveragesConfig   `koanf:"averages"`
	Conditions ConditionsConfig `koanf:"conditions"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Port        string `koanf:"port" validate:"required,numeric"`
	IngestPath  string `koanf:"ingest_path" validate:"required,startswith=/"`
	IngestField string `koanf:"ingest_field" validate:"required"`
	// IngestDest disables the ingest endpoint when empty.
	IngestDest string `koanf:"ingest_dest"`
}

type OutputConfig struct {
	Dir           string        `koanf:"dir"`
	RemoteURL     string        `koanf:"remote_url" validate:"omitempty,url"`
	RemoteTimeout time.Duration `koanf:"remote_timeout" validate:"gt=0"`
}

type ScheduleConfig struct {
	Realtime    time.Duration `koanf:"realtime" validate:"gte=0"`
	Hourly      time.Duration `koanf:"hourly" validate:"gte=0"`
	Daily       time.Duration `koanf:"daily" validate:"gte=0"`
	MinInterval time.Duration `koanf:"min_interval" validate:"gte=0"`
	Conditions  time.Duration `koanf:"conditions" validate:"gte=0"`
}

type SourceConfig struct {
	Type       string        `koanf:"type" validate:"oneof=memory duckdb postgres"`
	DSN        string        `koanf:"dsn" validate:"required_unless=Type memory"`
	Table      string        `koanf:"table" validate:"required"`
	MaxHistory int           `koanf:"max_history" validate:"gte=0"`
	MaxAge     time.Duration `koanf:"max_age" validate:"gte=0"`
}

type NATSConfig struct {
	// URL disables the loop packet trigger when empty.
	URL     string `koanf:"url"`
	Subject string `koanf:"subject" validate:"required_with=URL"`
}

type StationConfig struct {
	Name      string  `koanf:"name" validate:"required"`
	City      string  `koanf:"city"`
	Country   string  `koanf:"country"`
	Latitude  string  `koanf:"latitude"`
	Longitude string  `koanf:"longitude"`
	AltitudeM float64 `koanf:"altitude"`
	Timezone  string  `koanf:"timezone" validate:"required,timezone"`
}

type RecordConfig struct {
	Tag             string        `koanf:"tag" validate:"required,printascii,excludesall=!"`
	AvgSpeedPeriod  time.Duration `koanf:"avgspeed_period" validate:"gt=0"`
	GustPeriod      time.Duration `koanf:"gust_period" validate:"gte=0"`
	TrendPeriod     time.Duration `koanf:"trend_period" validate:"gt=0"`
	BaroTrendPeriod time.Duration `koanf:"baro_trend_period" validate:"gt=0"`
	MonthAvgSource  string        `koanf:"month_avg_source" validate:"oneof=manual computed auto"`
	LegacyDuplicate bool          `koanf:"month_avg_legacy_duplicate"`
}

type AveragesConfig struct {
	// Rainfall holds manual long-term monthly rain keyed by three-letter
	// month name. Values carry a unit ("24.6 mm", "2.4 cm", "1 in"); a bare
	// number is millimetres.
	Rainfall map[string]string `koanf:"rainfall"`
}

type ConditionsConfig struct {
	OpenMeteo         bool          `koanf:"openmeteo"`
	OpenWeatherAPIKey string        `koanf:"openweather_api_key"`
	WeatherAPIKey     string        `koanf:"weatherapi_api_key"`
	GeocoderAPIKey    string        `koanf:"geocoder_api_key"`
	HTTPTimeout       time.Duration `koanf:"http_timeout" validate:"gt=0"`
	MaxAge            time.Duration `koanf:"max_age" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			IngestPath:  "/clientraw",
			IngestField: "clientraw",
		},
		Output: OutputConfig{
			Dir:           "",
			RemoteTimeout: 2 * time.Second,
		},
		Schedule: ScheduleConfig{
			Realtime:    10 * time.Second,
			Hourly:      time.Minute,
			Daily:       5 * time.Minute,
			MinInterval: 0,
			Conditions:  15 * time.Minute,
		},
		Source: SourceConfig{
			Type:       "memory",
			Table:      "archive",
			MaxHistory: 0,
			MaxAge:     32 * 24 * time.Hour,
		},
		NATS: NATSConfig{
			Subject: "weather.loop",
		},
		Station: StationConfig{
			Name:     "station",
			Timezone: "UTC",
		},
		Record: RecordConfig{
			Tag:             clientraw.DefaultRecordTag,
			AvgSpeedPeriod:  5 * time.Minute,
			GustPeriod:      5 * time.Minute,
			TrendPeriod:     time.Hour,
			BaroTrendPeriod: time.Hour,
			MonthAvgSource:  string(clientraw.MonthAvgManual),
		},
		Averages: AveragesConfig{
			Rainfall: map[string]string{},
		},
		Conditions: ConditionsConfig{
			OpenMeteo:   true,
			HTTPTimeout: 10 * time.Second,
			MaxAge:      time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env, then layers defaults, the optional YAML file and the
// environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Info().Err(err).Msg("no .env file loaded")
	}

	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks struct constraints plus the manual average month keys.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.ManualRainAverages(); err != nil {
		return err
	}
	return nil
}

// envMappings maps environment variable names to koanf config paths.
var envMappings = map[string]string{
	"port":         "server.port",
	"ingest_path":  "server.ingest_path",
	"ingest_field": "server.ingest_field",
	"ingest_dest":  "server.ingest_dest",

	"output_dir":        "output.dir",
	"remote_server_url": "output.remote_url",
	"remote_timeout":    "output.remote_timeout",

	"realtime_interval":   "schedule.realtime",
	"hourly_interval":     "schedule.hourly",
	"daily_interval":      "schedule.daily",
	"min_interval":        "schedule.min_interval",
	"conditions_interval": "schedule.conditions",

	"source":            "source.type",
	"archive_dsn":       "source.dsn",
	"archive_table":     "source.table",
	"store_max_history": "source.max_history",
	"store_max_age":     "source.max_age",

	"nats_url":     "nats.url",
	"nats_subject": "nats.subject",

	"station_name":      "station.name",
	"station_city":      "station.city",
	"station_country":   "station.country",
	"station_latitude":  "station.latitude",
	"station_longitude": "station.longitude",
	"station_altitude":  "station.altitude",
	"station_timezone":  "station.timezone",

	"record_tag":                 "record.tag",
	"avgspeed_period":            "record.avgspeed_period",
	"gust_period":                "record.gust_period",
	"trend_period":               "record.trend_period",
	"baro_trend_period":          "record.baro_trend_period",
	"month_avg_source":           "record.month_avg_source",
	"month_avg_legacy_duplicate": "record.month_avg_legacy_duplicate",

	"openmeteo_enabled":   "conditions.openmeteo",
	"openweather_api_key": "conditions.openweather_api_key",
	"weatherapi_api_key":  "conditions.weatherapi_api_key",
	"geocoder_api_key":    "conditions.geocoder_api_key",
	"http_timeout":        "conditions.http_timeout",
	"conditions_max_age":  "conditions.max_age",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc maps known environment variables and drops the rest so
// unrelated variables never pollute the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var monthKeys = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ManualRainAverages converts the configured monthly averages.
func (c *Config) ManualRainAverages() (map[time.Month]float64, error) {
	out := make(map[time.Month]float64, len(c.Averages.Rainfall))
	for key, raw := range c.Averages.Rainfall {
		m, ok := monthKeys[strings.ToLower(key)]
		if !ok {
			return nil, fmt.Errorf("averages.rainfall: unknown month %q", key)
		}
		v, err := units.ParseRain(raw)
		if err != nil {
			return nil, fmt.Errorf("averages.rainfall.%s: %w", key, err)
		}
		out[m] = v
	}
	return out, nil
}

// RecordOptions returns the field plan options.
func (c *Config) RecordOptions() clientraw.Options {
	manual, _ := c.ManualRainAverages()
	opts := clientraw.DefaultOptions()
	opts.RecordTag = c.Record.Tag
	opts.AvgSpeedPeriod = c.Record.AvgSpeedPeriod
	opts.GustPeriod = c.Record.GustPeriod
	opts.TrendPeriod = c.Record.TrendPeriod
	opts.BaroTrendPeriod = c.Record.BaroTrendPeriod
	opts.MonthAvgSource = clientraw.MonthAvgSource(c.Record.MonthAvgSource)
	opts.LegacyDuplicate = c.Record.LegacyDuplicate
	opts.ManualRainAverages = manual
	return opts
}

// geocode resolves a city to coordinates. Replaced in tests.
var geocode = func(apiKey, city, country string) (float64, float64, error) {
	geocoder.ApiKey = apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
	if err != nil {
		return 0, 0, err
	}
	return loc.Latitude, loc.Longitude, nil
}

// StationInfo builds the station description. Missing coordinates are looked
// up by city when a geocoder key is configured.
func (c *Config) StationInfo() (weather.Station, error) {
	sc := c.Station
	loc, err := time.LoadLocation(sc.Timezone)
	if err != nil {
		return weather.Station{}, fmt.Errorf("station timezone: %w", err)
	}

	st := weather.Station{
		Name:      sc.Name,
		City:      sc.City,
		Country:   sc.Country,
		AltitudeM: sc.AltitudeM,
		Location:  loc,
	}

	if sc.Latitude == "" || sc.Longitude == "" {
		if c.Conditions.GeocoderAPIKey == "" || sc.City == "" {
			logging.Warn().Str("station", sc.Name).Msg("station coordinates not configured")
			return st, nil
		}
		lat, lon, err := geocode(c.Conditions.GeocoderAPIKey, sc.City, sc.Country)
		if err != nil {
			return st, fmt.Errorf("%w: geocoding %s: %v", ErrNoCoordinates, sc.City, err)
		}
		st.Latitude = weather.LatitudeFromFloat(lat)
		st.Longitude = weather.LongitudeFromFloat(lon)
		return st, nil
	}

	if st.Latitude, err = weather.ParseLatitude(sc.Latitude); err != nil {
		return st, err
	}
	if st.Longitude, err = weather.ParseLongitude(sc.Longitude); err != nil {
		return st, err
	}
	return st, nil
}

// OutputPath returns where records of kind are written, or "" when file
// output is disabled.
func (c *Config) OutputPath(kind clientraw.Kind) string {
	if c.Output.Dir == "" {
		return ""
	}
	return filepath.Join(c.Output.Dir, kind.FileName())
}
