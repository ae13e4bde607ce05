package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-clientraw/internal/api/http"
	"github.com/i474232898/weather-clientraw/internal/archive"
	"github.com/i474232898/weather-clientraw/internal/clientraw"
	"github.com/i474232898/weather-clientraw/internal/conditions"
	"github.com/i474232898/weather-clientraw/internal/config"
	"github.com/i474232898/weather-clientraw/internal/fsutil"
	"github.com/i474232898/weather-clientraw/internal/logging"
	"github.com/i474232898/weather-clientraw/internal/scheduler"
	"github.com/i474232898/weather-clientraw/internal/sink"
	"github.com/i474232898/weather-clientraw/internal/snapshot"
	"github.com/i474232898/weather-clientraw/internal/store"
	"github.com/i474232898/weather-clientraw/internal/supervisor"
	"github.com/i474232898/weather-clientraw/internal/trigger"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("failed to load config")
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("clientraw stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	station, err := cfg.StationInfo()
	if err != nil {
		return err
	}

	// Observation source: in-memory history fed by the loop trigger, or an
	// archive database.
	var (
		source weather.Source
		memory *store.MemoryStore
		db     *sql.DB
	)
	switch cfg.Source.Type {
	case "memory":
		memory = store.NewMemoryStore(cfg.Source.MaxHistory, cfg.Source.MaxAge)
		source = memory
	default:
		var src *archive.SQLSource
		src, db, err = archive.Open(ctx, cfg.Source.Type, cfg.Source.DSN, cfg.Source.Table)
		if err != nil {
			return err
		}
		defer db.Close()
		source = src
	}

	locks := &fsutil.PathLocks{}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{Timeout: cfg.Conditions.HTTPTimeout}

	sinks := make(map[clientraw.Kind][]sink.Sink)
	for _, kind := range clientraw.Kinds {
		if path := cfg.OutputPath(kind); path != "" {
			sinks[kind] = append(sinks[kind], sink.NewFileSink(path, locks))
		}
	}
	if cfg.Output.RemoteURL != "" {
		remoteClient := &http.Client{Timeout: cfg.Output.RemoteTimeout}
		sinks[clientraw.KindRealtime] = append(sinks[clientraw.KindRealtime],
			sink.NewRemoteSink(remoteClient, cfg.Output.RemoteURL, cfg.Server.IngestField))
	}

	// Conditions providers with resilience (backoff + circuit breaker).
	var provs []conditions.Provider
	if cfg.Conditions.OpenMeteo {
		provs = append(provs, conditions.NewOpenMeteoProvider(httpClient))
	}
	if cfg.Conditions.OpenWeatherAPIKey != "" {
		provs = append(provs, conditions.NewOpenWeatherProvider(httpClient, cfg.Conditions.OpenWeatherAPIKey))
	}
	if cfg.Conditions.WeatherAPIKey != "" {
		provs = append(provs, conditions.NewWeatherAPIProvider(httpClient, cfg.Conditions.WeatherAPIKey))
	}

	var (
		conds     *conditions.Service
		refresher scheduler.Refresher
		current   snapshot.ConditionsSource
	)
	if len(provs) > 0 {
		conds = conditions.NewService(station, provs, cfg.Conditions.MaxAge)
		refresher, current = conds, conds
	}

	snapshots, err := snapshot.NewService(snapshot.Config{
		Station:     station,
		Options:     cfg.RecordOptions(),
		Source:      source,
		Conditions:  current,
		Sinks:       sinks,
		MinInterval: cfg.Schedule.MinInterval,
	})
	if err != nil {
		return err
	}
	kinds := snapshots.Kinds()
	if len(kinds) == 0 {
		logging.Warn().Msg("no output configured; records are only served over HTTP")
	}

	app := fiber.New(fiber.Config{
		AppName:               "clientraw",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	routes := httpapi.Routes{
		IngestPath: cfg.Server.IngestPath,
		Builder:    snapshots,
		Plans:      snapshots,
	}
	if cfg.Server.IngestDest != "" {
		routes.Ingester = httpapi.NewIngester(cfg.Server.IngestField, cfg.Server.IngestDest, locks)
	}
	if memory != nil {
		routes.Latest = memory
	}
	httpapi.RegisterRoutes(app, routes)

	tree := supervisor.NewTree("clientraw", supervisor.TreeConfig{})

	// Only kinds with sinks are scheduled.
	intervals := scheduler.Intervals{Conditions: cfg.Schedule.Conditions}
	for _, kind := range kinds {
		switch kind {
		case clientraw.KindRealtime:
			intervals.Realtime = cfg.Schedule.Realtime
		case clientraw.KindHourly:
			intervals.Hourly = cfg.Schedule.Hourly
		case clientraw.KindDaily:
			intervals.Daily = cfg.Schedule.Daily
		}
	}
	tree.AddProducer(scheduler.New(station.Loc(), intervals, snapshots, refresher))

	tree.AddInbound(httpapi.NewServer(app, ":"+cfg.Server.Port, 10*time.Second))

	if cfg.NATS.URL != "" {
		var saver trigger.Saver
		if memory != nil {
			saver = memory
		}
		var publisher trigger.Publisher
		if len(sinks[clientraw.KindRealtime]) > 0 {
			publisher = snapshots
		}
		tree.AddInbound(trigger.NewSubscriber(cfg.NATS.URL, cfg.NATS.Subject, saver, publisher))
	}

	logging.Info().
		Str("station", station.Name).
		Str("source", cfg.Source.Type).
		Str("port", cfg.Server.Port).
		Int("providers", len(provs)).
		Msg("clientraw starting")

	return tree.Serve(ctx)
}
