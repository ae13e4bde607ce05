package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-clientraw/internal/clientraw"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "/clientraw", cfg.Server.IngestPath)
	assert.Equal(t, "memory", cfg.Source.Type)
	assert.Equal(t, 10*time.Second, cfg.Schedule.Realtime)
	assert.Equal(t, clientraw.DefaultRecordTag, cfg.Record.Tag)
	assert.True(t, cfg.Conditions.OpenMeteo)
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
server:
  port: "9000"
station:
  name: Hilltop
  latitude: "52.5N"
  longitude: "13.4E"
  timezone: Europe/Berlin
schedule:
  hourly: 2m
averages:
  rainfall:
    jan: 24.6 mm
    feb: 2.4 cm
    Nov: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PORT", "9100")
	t.Setenv("REALTIME_INTERVAL", "15s")
	t.Setenv("MONTH_AVG_LEGACY_DUPLICATE", "true")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port, "env overrides file")
	assert.Equal(t, "Hilltop", cfg.Station.Name)
	assert.Equal(t, 2*time.Minute, cfg.Schedule.Hourly)
	assert.Equal(t, 15*time.Second, cfg.Schedule.Realtime)
	assert.True(t, cfg.Record.LegacyDuplicate)

	opts := cfg.RecordOptions()
	assert.InDelta(t, 24.6, opts.ManualRainAverages[time.January], 1e-9)
	assert.InDelta(t, 24.0, opts.ManualRainAverages[time.February], 1e-9)
	assert.InDelta(t, 50.0, opts.ManualRainAverages[time.November], 1e-9)
	assert.True(t, opts.LegacyDuplicate)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown source", map[string]string{"SOURCE": "mysql"}},
		{"database without dsn", map[string]string{"SOURCE": "duckdb"}},
		{"bad port", map[string]string{"PORT": "http"}},
		{"relative ingest path", map[string]string{"INGEST_PATH": "clientraw"}},
		{"bad remote url", map[string]string{"REMOTE_SERVER_URL": "not a url"}},
		{"bad timezone", map[string]string{"STATION_TIMEZONE": "Mars/Olympus"}},
		{"bad month source", map[string]string{"MONTH_AVG_SOURCE": "guess"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigPathEnvVar, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestManualRainAveragesRejectsBadEntries(t *testing.T) {
	for _, rainfall := range []map[string]string{
		{"january": "10"},
		{"jan": "3 furlongs"},
		{"jan": "-2 mm"},
	} {
		cfg := defaultConfig()
		cfg.Averages.Rainfall = rainfall
		assert.Error(t, cfg.Validate(), rainfall)
	}
}

func TestStationInfo(t *testing.T) {
	cfg := defaultConfig()
	cfg.Station.Latitude = "52.52S"
	cfg.Station.Longitude = "13.40W"
	cfg.Station.Timezone = "UTC"

	st, err := cfg.StationInfo()
	require.NoError(t, err)
	assert.InDelta(t, -52.52, st.Latitude.Signed(), 1e-9)
	assert.InDelta(t, -13.40, st.Longitude.Signed(), 1e-9)
	assert.Equal(t, time.UTC, st.Location)
}

func TestStationInfoGeocodesCity(t *testing.T) {
	orig := geocode
	t.Cleanup(func() { geocode = orig })

	var gotCity string
	geocode = func(apiKey, city, country string) (float64, float64, error) {
		gotCity = city
		return 48.85, 2.35, nil
	}

	cfg := defaultConfig()
	cfg.Station.City = "Paris"
	cfg.Station.Country = "France"
	cfg.Conditions.GeocoderAPIKey = "key"

	st, err := cfg.StationInfo()
	require.NoError(t, err)
	assert.Equal(t, "Paris", gotCity)
	assert.InDelta(t, 48.85, st.Latitude.Signed(), 1e-9)

	geocode = func(string, string, string) (float64, float64, error) {
		return 0, 0, errors.New("quota exceeded")
	}
	_, err = cfg.StationInfo()
	assert.ErrorIs(t, err, ErrNoCoordinates)
}

func TestOutputPath(t *testing.T) {
	cfg := defaultConfig()
	assert.Empty(t, cfg.OutputPath(clientraw.KindRealtime))

	cfg.Output.Dir = "/var/www"
	assert.Equal(t, filepath.Join("/var/www", clientraw.KindRealtime.FileName()), cfg.OutputPath(clientraw.KindRealtime))
}
